package http_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/esocial-sst-api/internal/interfaces/http"
	"github.com/jhoicas/esocial-sst-api/internal/testutil"
	pkgjwt "github.com/jhoicas/esocial-sst-api/pkg/jwt"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testCompanyID = "00000000-0000-0000-0000-000000000002"
)

var signPayload = map[string]string{"empresaId": "e1", "certPassword": "x", "rawXml": "<eSocial/>"}

func testVerifier() *pkgjwt.Verifier {
	return pkgjwt.NewVerifier(testJWTSecret, "", 0)
}

// tokenForRole cabecera Authorization de un usuario con el rol indicado ("" = sin rol).
func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	return "Bearer " + testutil.UserToken(t, testJWTSecret, testUserID, testCompanyID, role, time.Hour)
}

func postWithAuth(t *testing.T, app *fiber.App, path, authHeader string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

// ──────────────────────────────────────────────────────────────────────────────
// Roles en las rutas del canal
// ──────────────────────────────────────────────────────────────────────────────

func TestAssinarXML_PorRol(t *testing.T) {
	cases := []struct {
		role   string
		status int
		code   string
	}{
		{"admin", http.StatusOK, ""},
		{"tecnico_sst", http.StatusOK, ""},
		{"medico", http.StatusForbidden, "FORBIDDEN"},
		{"", http.StatusUnauthorized, "MISSING_ROLE"},
	}
	for _, tc := range cases {
		t.Run("rol="+tc.role, func(t *testing.T) {
			app := newESocialApp(handlerDeps{sign: &fakeSign{out: "<eSocial><Signature/></eSocial>"}})
			resp, raw := callJSON(t, app, http.MethodPost, "/api/esocial/assinar-xml", signPayload, tc.role)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.code != "" {
				assert.Equal(t, tc.code, decode(t, raw)["code"])
			}
		})
	}
}

func TestTestarConexao_MedicoProhibido(t *testing.T) {
	conn := &fakeConnection{}
	app := newESocialApp(handlerDeps{connection: conn})

	resp, raw := callJSON(t, app, http.MethodPost, "/api/esocial/testar-conexao", map[string]string{"empresa_id": "e1"}, "medico")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", decode(t, raw)["code"])
	assert.Empty(t, conn.gotEmpresa, "la prueba no debe ejecutarse")

	resp, _ = callJSON(t, app, http.MethodPost, "/api/esocial/testar-conexao", map[string]string{"empresa_id": "e1"}, "tecnico_sst")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "e1", conn.gotEmpresa)
	assert.Equal(t, testUserID, conn.gotUsuario)
}

func TestRutasDeConsulta_AbiertasATodosLosRoles(t *testing.T) {
	app := newESocialApp(handlerDeps{verify: &fakeVerify{ok: true}})
	for _, role := range []string{"admin", "tecnico_sst", "medico"} {
		resp, _ := callJSON(t, app, http.MethodGet, "/api/esocial/diagnosticos/certificado-conta", nil, role)
		assert.Equal(t, http.StatusOK, resp.StatusCode, role)
		resp, _ = callJSON(t, app, http.MethodPost, "/api/esocial/validar-assinatura", map[string]string{"xml": "<eSocial/>"}, role)
		assert.NotEqual(t, http.StatusForbidden, resp.StatusCode, role)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Token
// ──────────────────────────────────────────────────────────────────────────────

func TestAuth_TokenRechazado(t *testing.T) {
	app := newESocialApp(handlerDeps{})
	expired := testutil.UserToken(t, testJWTSecret, testUserID, testCompanyID, "admin", -time.Minute)
	otherSecret := testutil.UserToken(t, "otro-secret-completamente-distinto", testUserID, testCompanyID, "admin", time.Hour)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"sin cabecera", "", "MISSING_TOKEN"},
		{"esquema Basic", "Basic dXNlcjpwYXNz", "INVALID_TOKEN"},
		{"vencido", "Bearer " + expired, "INVALID_TOKEN"},
		{"otro secreto", "Bearer " + otherSecret, "INVALID_TOKEN"},
		{"basura", "Bearer abc.def.ghi", "INVALID_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := postWithAuth(t, app, "/api/esocial/assinar-xml", tc.header)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.code, decode(t, raw)["code"])
		})
	}
}

func TestAuth_SubYEmpresaIDDelToken(t *testing.T) {
	conn := &fakeConnection{}
	app := newESocialApp(handlerDeps{connection: conn})
	tok := testutil.SignToken(t, testJWTSecret, pkgjwt.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-sub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		EmpresaID: "e-token",
		Role:      "tecnico_sst",
	})

	resp, _ := postWithAuth(t, app, "/api/esocial/testar-conexao", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u-sub", conn.gotUsuario)
	assert.Equal(t, "e-token", conn.gotEmpresa, "sin empresa_id en el cuerpo se usa la del token")
}

func TestRouter_EmisorConfigurado(t *testing.T) {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{JWTSecret: testJWTSecret, JWTIssuer: "plataforma-sst"})

	foreign := testutil.SignToken(t, testJWTSecret, pkgjwt.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "otra-plataforma",
			Subject:   testUserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
	})
	resp, raw := postWithAuth(t, app, "/api/esocial/assinar-xml", "Bearer "+foreign)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", decode(t, raw)["code"])
}
