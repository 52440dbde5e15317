// Package jwt verifica los tokens de acceso emitidos por la plataforma SST.
// El servicio no emite tokens: solo valida firma, expiración y emisor.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrEmptySecret el verificador no tiene secreto configurado.
	ErrEmptySecret = errors.New("jwt: secret vacío")
	// ErrInvalidToken firma, expiración, emisor o formato no válidos.
	ErrInvalidToken = errors.New("jwt: token inválido")
	// ErrMissingSubject el token no identifica al usuario.
	ErrMissingSubject = errors.New("jwt: token sin usuario")
)

// Claims de los tokens de la plataforma. user_id y company_id son los nombres históricos;
// sub y empresa_id se aceptan como alternativa.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	EmpresaID string `json:"empresa_id,omitempty"`
	Role      string `json:"role,omitempty"` // "admin" | "tecnico_sst" | "medico"
}

// Identity lo que el middleware necesita del token.
type Identity struct {
	UserID    string
	CompanyID string
	Role      string
}

// Verifier valida tokens HS256.
type Verifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewVerifier issuer vacío = no se comprueba el emisor. leeway tolera desfases de reloj en exp/nbf/iat.
func NewVerifier(secret, issuer string, leeway time.Duration) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Verifier{secret: []byte(secret), opts: opts}
}

// Parse valida el token y devuelve la identidad. Los errores envuelven ErrInvalidToken
// o ErrMissingSubject para que el llamador no dependa del texto de la librería.
func (v *Verifier) Parse(tokenString string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, ErrEmptySecret
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	id := Identity{UserID: claims.UserID, CompanyID: claims.CompanyID, Role: claims.Role}
	if id.UserID == "" {
		id.UserID = claims.Subject
	}
	if id.CompanyID == "" {
		id.CompanyID = claims.EmpresaID
	}
	if id.UserID == "" {
		return Identity{}, ErrMissingSubject
	}
	return id, nil
}
