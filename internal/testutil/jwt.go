package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgjwt "github.com/jhoicas/esocial-sst-api/pkg/jwt"
)

// SignToken firma claims arbitrarios con HS256, como haría la plataforma.
func SignToken(t testing.TB, secret string, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("firmar token: %v", err)
	}
	return tok
}

// UserToken token de usuario con rol, válido durante ttl (negativo = ya vencido).
func UserToken(t testing.TB, secret, userID, companyID, role string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	return SignToken(t, secret, pkgjwt.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
	})
}
