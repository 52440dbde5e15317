// Decodificación de certificados A1 (PKCS#12) con fallos clasificados.

package signer

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	encasn1 "encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	"github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	xpkcs12 "golang.org/x/crypto/pkcs12"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

const opDecode = "decode"

// CertificateStore decodifica blobs PKCS#12. No guarda estado entre llamadas.
type CertificateStore struct {
	now func() time.Time
}

// NewCertificateStore crea el store con el reloj del sistema.
func NewCertificateStore() *CertificateStore {
	return &CertificateStore{now: time.Now}
}

// WithClock devuelve una copia que usa el reloj indicado (tests).
func (s *CertificateStore) WithClock(now func() time.Time) *CertificateStore {
	return &CertificateStore{now: now}
}

// Decode abre el contenedor y exige que el certificado esté vigente.
func (s *CertificateStore) Decode(raw []byte, passphrase string) (*entity.DigitalCertificate, error) {
	dc, err := s.Open(raw, passphrase)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if now.Before(dc.ValidFrom) || now.After(dc.ValidTo) {
		return nil, esocial.Errorf(esocial.KindExpiredCertificate, opDecode,
			"vigencia %s a %s", dc.ValidFrom.Format(time.RFC3339), dc.ValidTo.Format(time.RFC3339))
	}
	return dc, nil
}

// Open abre el contenedor sin evaluar la vigencia.
//  1. estructura ASN.1 -> MalformedContainer
//  2. contraseña (MAC / descifrado) -> WrongPassphrase
//  3. llave privada + certificado que le corresponda -> IncompleteCertificate
func (s *CertificateStore) Open(raw []byte, passphrase string) (*entity.DigitalCertificate, error) {
	if err := checkPFXStructure(raw); err != nil {
		return nil, esocial.E(esocial.KindMalformedContainer, opDecode, "estructura PFX inválida", err)
	}

	key, certs, err := decodeBags(raw, passphrase)
	if err != nil {
		return nil, err
	}
	if key == nil || len(certs) == 0 {
		return nil, esocial.Errorf(esocial.KindIncompleteCertificate, opDecode,
			"llave privada presente=%t, certificados=%d", key != nil, len(certs))
	}
	leaf := matchLeaf(key, certs)
	if leaf == nil {
		return nil, esocial.Errorf(esocial.KindIncompleteCertificate, opDecode,
			"ningún certificado corresponde a la llave privada")
	}

	return &entity.DigitalCertificate{
		Raw:         raw,
		Passphrase:  passphrase,
		PrivateKey:  key,
		Certificate: leaf,
		ValidFrom:   leaf.NotBefore,
		ValidTo:     leaf.NotAfter,
		SubjectDN:   leaf.Subject.String(),
		IssuerDN:    leaf.Issuer.String(),
	}, nil
}

// LoadFile lee y decodifica un .pfx/.p12 desde disco.
func (s *CertificateStore) LoadFile(path, passphrase string) (*entity.DigitalCertificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer p12: %w", err)
	}
	return s.Decode(data, passphrase)
}

// checkPFXStructure valida PFX ::= SEQUENCE { version INTEGER (3), authSafe ContentInfo, macData OPTIONAL }.
func checkPFXStructure(raw []byte) error {
	if len(raw) == 0 {
		return errors.New("contenedor vacío")
	}
	input := cryptobyte.String(raw)
	var pfx cryptobyte.String
	if !input.ReadASN1(&pfx, cbasn1.SEQUENCE) {
		return errors.New("se esperaba SEQUENCE PFX")
	}
	if !input.Empty() {
		return errors.New("datos sobrantes tras PFX")
	}
	var version int
	if !pfx.ReadASN1Integer(&version) {
		return errors.New("versión PFX ilegible")
	}
	if version != 3 {
		return fmt.Errorf("versión PFX %d no soportada", version)
	}
	var authSafe cryptobyte.String
	if !pfx.ReadASN1(&authSafe, cbasn1.SEQUENCE) {
		return errors.New("authSafe ContentInfo ausente")
	}
	var contentType encasn1.ObjectIdentifier
	if !authSafe.ReadASN1ObjectIdentifier(&contentType) {
		return errors.New("contentType de authSafe ilegible")
	}
	if !authSafe.PeekASN1Tag(cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return errors.New("authSafe sin contenido [0]")
	}
	return nil
}

// decodeBags intenta primero x/crypto/pkcs12 (3DES/RC2 + MAC SHA-1, lo habitual en A1)
// y recurre a go-pkcs12 para contenedores PBES2/AES o atributos que x/crypto no reconoce.
func decodeBags(raw []byte, passphrase string) (crypto.Signer, []*x509.Certificate, error) {
	blocks, err := xpkcs12.ToPEM(raw, passphrase)
	if err == nil {
		return fromPEMBlocks(blocks)
	}
	if errors.Is(err, xpkcs12.ErrIncorrectPassword) || errors.Is(err, xpkcs12.ErrDecryption) {
		return nil, nil, esocial.E(esocial.KindWrongPassphrase, opDecode, "", err)
	}

	priv, leaf, chain, err := gopkcs12.DecodeChain(raw, passphrase)
	if err != nil {
		return nil, nil, classifyModernError(err)
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, nil, esocial.Errorf(esocial.KindIncompleteCertificate, opDecode, "llave privada de tipo %T no soportada", priv)
	}
	certs := append([]*x509.Certificate{leaf}, chain...)
	return signer, certs, nil
}

func classifyModernError(err error) error {
	switch {
	case errors.Is(err, gopkcs12.ErrIncorrectPassword), errors.Is(err, gopkcs12.ErrDecryption):
		return esocial.E(esocial.KindWrongPassphrase, opDecode, "", err)
	case strings.Contains(err.Error(), "private key missing"), strings.Contains(err.Error(), "certificate missing"):
		return esocial.E(esocial.KindIncompleteCertificate, opDecode, "", err)
	default:
		return esocial.E(esocial.KindMalformedContainer, opDecode, "contenido PKCS#12 ilegible", err)
	}
}

func fromPEMBlocks(blocks []*pem.Block) (crypto.Signer, []*x509.Certificate, error) {
	var key crypto.Signer
	var certs []*x509.Certificate
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			k, err := parsePrivateKey(b.Bytes)
			if err != nil {
				return nil, nil, esocial.E(esocial.KindIncompleteCertificate, opDecode, "llave privada ilegible", err)
			}
			key = k
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, nil, esocial.E(esocial.KindMalformedContainer, opDecode, "certificado ilegible", err)
			}
			certs = append(certs, c)
		}
	}
	return key, certs, nil
}

// parsePrivateKey: x/crypto entrega PKCS#1 (RSA) o SEC1 (EC) bajo el tipo "PRIVATE KEY".
func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(der); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	signer, ok := k.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("tipo de llave %T no soportado", k)
	}
	return signer, nil
}

func matchLeaf(key crypto.Signer, certs []*x509.Certificate) *x509.Certificate {
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return nil
	}
	for _, c := range certs {
		if pub.Equal(c.PublicKey) {
			return c
		}
	}
	return nil
}

// CertDigestAndIssuerSerial devuelve el digest SHA-256 del certificado (Base64), el emisor y el serial en hex.
func CertDigestAndIssuerSerial(cert *x509.Certificate) (digestB64 string, issuerName string, serialHex string) {
	h := sha256.Sum256(cert.Raw)
	digestB64 = base64.StdEncoding.EncodeToString(h[:])
	issuerName = cert.Issuer.String()
	serialHex = cert.SerialNumber.Text(16)
	return digestB64, issuerName, serialHex
}
