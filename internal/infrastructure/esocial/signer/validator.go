package signer

import (
	"crypto/x509"
	"encoding/base64"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	pkgesocial "github.com/jhoicas/esocial-sst-api/pkg/esocial"
)

const opValidate = "validate"

// SignatureValidator verifica firmas enveloped producidas con el certificado embebido en KeyInfo.
type SignatureValidator struct{}

// NewSignatureValidator crea el validador.
func NewSignatureValidator() *SignatureValidator {
	return &SignatureValidator{}
}

// Verify implementa pkg/esocial.Verifier.
// Sin ds:Signature devuelve false, nil. Una firma que no cuadra también es false, nil;
// solo un XML ilegible produce error.
func (v *SignatureValidator) Verify(xmlBytes []byte) (bool, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return false, esocial.E(esocial.KindInvalidInputXML, opValidate, "", err)
	}
	if doc.Root() == nil {
		return false, esocial.Errorf(esocial.KindInvalidInputXML, opValidate, "documento sin raíz")
	}

	sig := findSignature(doc)
	if sig == nil {
		return false, nil
	}
	signedEl := sig.Parent()
	if signedEl == nil {
		return false, nil
	}
	cert := embeddedCertificate(sig)
	if cert == nil {
		return false, nil
	}

	ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	})
	ctx.IdAttribute = TargetIDAttr
	// La vigencia del certificado no forma parte de la verificación: un evento firmado
	// con un A1 hoy vencido sigue siendo íntegro.
	ctx.Clock = dsig.NewFakeClockAt(cert.NotBefore)
	if _, err := ctx.Validate(signedEl); err != nil {
		return false, nil
	}
	return true, nil
}

// findSignature busca el primer Signature cuyo namespace resuelto sea XMLDSig.
func findSignature(doc *etree.Document) *etree.Element {
	for _, el := range doc.FindElements("//Signature") {
		if el.NamespaceURI() == NamespaceDS {
			return el
		}
	}
	return nil
}

func embeddedCertificate(sig *etree.Element) *x509.Certificate {
	el := sig.FindElement("./KeyInfo/X509Data/X509Certificate")
	if el == nil {
		return nil
	}
	der, err := base64.StdEncoding.DecodeString(compactBase64(el.Text()))
	if err != nil {
		return nil
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil
	}
	return cert
}

func compactBase64(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

var _ pkgesocial.Verifier = (*SignatureValidator)(nil)
