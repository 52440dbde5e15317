// Package esocial: puertos y utilidades públicas del canal seguro eSocial.

package esocial

import "crypto/tls"

// Signer firma un evento eSocial y devuelve el XML con ds:Signature dentro del elemento evento.
type Signer interface {
	// Sign toma el XML con un único elemento <evento Id="..."> y el certificado con llave privada.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}

// Verifier comprueba la firma enveloped de un XML ya firmado.
// Devuelve false (sin error) cuando el documento no contiene firma.
type Verifier interface {
	Verify(xmlBytes []byte) (bool, error)
}
