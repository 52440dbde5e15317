// Package testutil genera material criptográfico para tests: certificados A1 de prueba y sus PKCS#12.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// CertOptions parámetros del certificado de prueba. Los ceros toman valores razonables.
type CertOptions struct {
	CommonName   string
	SerialNumber string // atributo serialNumber del subject (CNPJ en certificados e-CNPJ)
	NotBefore    time.Time
	NotAfter     time.Time
	KeyBits      int
	SelfSigned   bool
}

// Identity llave + certificado generados.
type Identity struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
	CA   *x509.Certificate
}

var oidSerialNumber = asn1.ObjectIdentifier{2, 5, 4, 5}

// NewIdentity genera un certificado hoja (emitido por una AC de prueba salvo SelfSigned).
func NewIdentity(t testing.TB, opts CertOptions) Identity {
	t.Helper()
	if opts.CommonName == "" {
		opts.CommonName = "EMPRESA TESTE LTDA:03731608000184"
	}
	if opts.NotBefore.IsZero() {
		opts.NotBefore = time.Now().Add(-time.Hour)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = time.Now().Add(365 * 24 * time.Hour)
	}
	if opts.KeyBits == 0 {
		opts.KeyBits = 2048
	}

	key, err := rsa.GenerateKey(rand.Reader, opts.KeyBits)
	if err != nil {
		t.Fatalf("generar llave: %v", err)
	}

	subject := pkix.Name{CommonName: opts.CommonName, Organization: []string{"ICP-Brasil"}, Country: []string{"BR"}}
	if opts.SerialNumber != "" {
		subject.ExtraNames = append(subject.ExtraNames, pkix.AttributeTypeAndValue{Type: oidSerialNumber, Value: opts.SerialNumber})
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               subject,
		NotBefore:             opts.NotBefore,
		NotAfter:              opts.NotAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	parent, parentKey := tmpl, key
	var ca *x509.Certificate
	if !opts.SelfSigned {
		caKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generar llave AC: %v", err)
		}
		caTmpl := &x509.Certificate{
			SerialNumber:          big.NewInt(1),
			Subject:               pkix.Name{CommonName: "AC TESTE RFB v5", Country: []string{"BR"}},
			NotBefore:             time.Now().Add(-24 * time.Hour),
			NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
			IsCA:                  true,
			KeyUsage:              x509.KeyUsageCertSign,
			BasicConstraintsValid: true,
		}
		caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
		if err != nil {
			t.Fatalf("crear AC: %v", err)
		}
		ca, err = x509.ParseCertificate(caDER)
		if err != nil {
			t.Fatalf("parsear AC: %v", err)
		}
		parent, parentKey = ca, caKey
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, parentKey)
	if err != nil {
		t.Fatalf("crear certificado: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsear certificado: %v", err)
	}
	return Identity{Key: key, Cert: cert, CA: ca}
}

// LegacyPFX codifica con 3DES + MAC SHA-1 (formato habitual de los A1 emitidos en Windows).
func (id Identity) LegacyPFX(t testing.TB, password string) []byte {
	t.Helper()
	return id.encode(t, gopkcs12.LegacyDES, password)
}

// ModernPFX codifica con PBES2/AES-256 + MAC SHA-256.
func (id Identity) ModernPFX(t testing.TB, password string) []byte {
	t.Helper()
	return id.encode(t, gopkcs12.Modern, password)
}

// CertOnlyPFX contenedor sin llave privada (solo truststore).
func (id Identity) CertOnlyPFX(t testing.TB, password string) []byte {
	t.Helper()
	data, err := gopkcs12.Modern.EncodeTrustStore([]*x509.Certificate{id.Cert}, password)
	if err != nil {
		t.Fatalf("codificar truststore: %v", err)
	}
	return data
}

func (id Identity) encode(t testing.TB, enc *gopkcs12.Encoder, password string) []byte {
	var chain []*x509.Certificate
	if id.CA != nil {
		chain = []*x509.Certificate{id.CA}
	}
	data, err := enc.Encode(id.Key, id.Cert, chain, password)
	if err != nil {
		t.Fatalf("codificar PKCS#12: %v", err)
	}
	return data
}
