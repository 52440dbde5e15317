package jwt_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/esocial-sst-api/pkg/jwt"
)

const secret = "segredo-plataforma"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func registered(ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    "plataforma-sst",
		Subject:   "u-sub",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
}

func TestVerifier_ClaimsHistoricos(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), pkgjwt.Claims{
		RegisteredClaims: registered(time.Hour),
		UserID:           "u1",
		CompanyID:        "e1",
		Role:             "tecnico_sst",
	})

	id, err := pkgjwt.NewVerifier(secret, "plataforma-sst", 0).Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, pkgjwt.Identity{UserID: "u1", CompanyID: "e1", Role: "tecnico_sst"}, id)
}

func TestVerifier_SubYEmpresaIDComoAlternativa(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), pkgjwt.Claims{
		RegisteredClaims: registered(time.Hour),
		EmpresaID:        "e9",
		Role:             "medico",
	})

	id, err := pkgjwt.NewVerifier(secret, "", 0).Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-sub", id.UserID)
	assert.Equal(t, "e9", id.CompanyID)
}

func TestVerifier_Rechazos(t *testing.T) {
	valid := pkgjwt.Claims{RegisteredClaims: registered(time.Hour), Role: "admin"}
	noExp := pkgjwt.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	noSub := pkgjwt.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}

	cases := []struct {
		name string
		tok  string
		want error
	}{
		{"vencido", sign(t, jwt.SigningMethodHS256, []byte(secret), pkgjwt.Claims{RegisteredClaims: registered(-time.Hour)}), pkgjwt.ErrInvalidToken},
		{"otro secreto", sign(t, jwt.SigningMethodHS256, []byte("otro"), valid), pkgjwt.ErrInvalidToken},
		{"HS512 no admitido", sign(t, jwt.SigningMethodHS512, []byte(secret), valid), pkgjwt.ErrInvalidToken},
		{"alg none", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), pkgjwt.ErrInvalidToken},
		{"sin exp", sign(t, jwt.SigningMethodHS256, []byte(secret), noExp), pkgjwt.ErrInvalidToken},
		{"sin usuario", sign(t, jwt.SigningMethodHS256, []byte(secret), noSub), pkgjwt.ErrMissingSubject},
		{"basura", "token.invalido.aqui", pkgjwt.ErrInvalidToken},
	}
	v := pkgjwt.NewVerifier(secret, "", 0)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Parse(tc.tok)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifier_EmisorDistinto(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), pkgjwt.Claims{RegisteredClaims: registered(time.Hour)})
	_, err := pkgjwt.NewVerifier(secret, "otra-plataforma", 0).Parse(tok)
	assert.ErrorIs(t, err, pkgjwt.ErrInvalidToken)
}

func TestVerifier_LeewayToleraDesfase(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), pkgjwt.Claims{RegisteredClaims: registered(-10 * time.Second)})

	_, err := pkgjwt.NewVerifier(secret, "", 0).Parse(tok)
	assert.ErrorIs(t, err, pkgjwt.ErrInvalidToken)

	_, err = pkgjwt.NewVerifier(secret, "", time.Minute).Parse(tok)
	assert.NoError(t, err)
}

func TestVerifier_SinSecreto(t *testing.T) {
	_, err := pkgjwt.NewVerifier("", "", 0).Parse("x")
	assert.ErrorIs(t, err, pkgjwt.ErrEmptySecret)
}
