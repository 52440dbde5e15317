// Firma XMLDSig enveloped de eventos eSocial: C14N exclusiva, RSA-SHA256, digest SHA-256.
// La ds:Signature se agrega como último hijo del elemento <evento Id="...">.

package signer

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	pkgesocial "github.com/jhoicas/esocial-sst-api/pkg/esocial"
)

const opSign = "sign"

// DigitalSignatureService implementa la firma enveloped sobre el elemento evento.
type DigitalSignatureService struct{}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign implementa pkg/esocial.Signer.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, esocial.E(esocial.KindInvalidInputXML, opSign, "", err)
	}
	if doc.Root() == nil {
		return nil, esocial.Errorf(esocial.KindInvalidInputXML, opSign, "documento sin raíz")
	}

	target, err := findSignable(doc)
	if err != nil {
		return nil, err
	}
	if len(cert.Certificate) == 0 {
		return nil, esocial.Errorf(esocial.KindSigningFailed, opSign, "certificado vacío")
	}
	if _, ok := cert.PrivateKey.(*rsa.PrivateKey); !ok {
		return nil, esocial.Errorf(esocial.KindSigningFailed, opSign, "RSA-SHA256 requiere llave privada RSA (recibida %T)", cert.PrivateKey)
	}

	// La C14N exclusiva de goxmldsig solo ve el subárbol: se redeclaran en el elemento
	// los namespaces heredados de sus ancestros.
	inheritNamespaces(target)

	ctx := dsig.NewDefaultSigningContext(dsig.TLSCertKeyStore(cert))
	ctx.IdAttribute = TargetIDAttr
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := ctx.SetSignatureMethod(dsig.RSASHA256SignatureMethod); err != nil {
		return nil, esocial.E(esocial.KindSigningFailed, opSign, "", err)
	}

	signed, err := ctx.SignEnveloped(target)
	if err != nil {
		return nil, esocial.E(esocial.KindSigningFailed, opSign, "", err)
	}

	if parent := target.Parent(); parent != nil {
		idx := target.Index()
		parent.RemoveChildAt(idx)
		parent.InsertChildAt(idx, signed)
	} else {
		doc.SetRoot(signed)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, esocial.E(esocial.KindSigningFailed, opSign, "serializar XML firmado", err)
	}
	return out, nil
}

// findSignable exige exactamente un elemento evento con Id no vacío.
func findSignable(doc *etree.Document) (*etree.Element, error) {
	var found []*etree.Element
	for _, el := range doc.FindElements("//" + TargetLocalName) {
		if el.SelectAttrValue(TargetIDAttr, "") != "" {
			found = append(found, el)
		}
	}
	switch len(found) {
	case 0:
		return nil, esocial.Errorf(esocial.KindNoSignableElement, opSign,
			"no existe <%s> con atributo %s", TargetLocalName, TargetIDAttr)
	case 1:
		return found[0], nil
	default:
		return nil, esocial.Errorf(esocial.KindNoSignableElement, opSign,
			"%d elementos <%s> con %s; se esperaba uno", len(found), TargetLocalName, TargetIDAttr)
	}
}

// inheritNamespaces copia al elemento las declaraciones xmlns de sus ancestros que no redefine.
func inheritNamespaces(el *etree.Element) {
	declared := map[string]bool{}
	for _, a := range el.Attr {
		if key, ok := nsDeclKey(a); ok {
			declared[key] = true
		}
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			key, ok := nsDeclKey(a)
			if !ok || declared[key] {
				continue
			}
			declared[key] = true
			el.CreateAttr(key, a.Value)
		}
	}
}

func nsDeclKey(a etree.Attr) (string, bool) {
	switch {
	case a.Space == "" && a.Key == "xmlns":
		return "xmlns", true
	case a.Space == "xmlns":
		return "xmlns:" + a.Key, true
	}
	return "", false
}

// CanonicalDigest devuelve el SHA-256 (Base64) de la forma canónica inclusiva del XML.
// Se usa como huella de sobres y documentos en logs y auditoría.
func CanonicalDigest(xmlBytes []byte) (string, error) {
	canonical, err := canonicalizeXML(xmlBytes)
	if err != nil {
		return "", fmt.Errorf("esocial: canonicalizar: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("XML vacío")
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

var _ pkgesocial.Signer = (*DigitalSignatureService)(nil)
