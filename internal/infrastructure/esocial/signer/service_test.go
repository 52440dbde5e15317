package signer_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial/signer"
	"github.com/jhoicas/esocial-sst-api/internal/testutil"
)

const eventoXML = `<?xml version="1.0" encoding="UTF-8"?>
<eSocial xmlns="http://www.esocial.gov.br/schema/evt/evtMonit/v_S_01_02_00" xmlns:x="urn:extra">
  <evento Id="ID1037316080001842026101812000000001">
    <ideEmpregador><tpInsc>1</tpInsc><nrInsc>03731608</nrInsc></ideEmpregador>
    <exMedOcup><tpExameOcup>0</tpExameOcup><x:obs>apto</x:obs></exMedOcup>
  </evento>
</eSocial>`

func tlsIdentity(t *testing.T) tls.Certificate {
	t.Helper()
	id := testutil.NewIdentity(t, testutil.CertOptions{})
	return tls.Certificate{Certificate: [][]byte{id.Cert.Raw}, PrivateKey: id.Key, Leaf: id.Cert}
}

func TestSign_EstructuraDeLaFirma(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	signed, err := svc.Sign([]byte(eventoXML), tlsIdentity(t))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))

	evento := doc.FindElement("//evento")
	require.NotNil(t, evento)
	children := evento.ChildElements()
	sig := children[len(children)-1]
	assert.Equal(t, "Signature", sig.Tag, "la firma debe ser el último hijo del evento")
	assert.Equal(t, signer.NamespaceDS, sig.NamespaceURI())

	ref := sig.FindElement("./SignedInfo/Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#ID1037316080001842026101812000000001", ref.SelectAttrValue("URI", ""))

	assert.Equal(t, signer.AlgExcC14N, sig.FindElement("./SignedInfo/CanonicalizationMethod").SelectAttrValue("Algorithm", ""))
	assert.Equal(t, signer.AlgRSASHA256, sig.FindElement("./SignedInfo/SignatureMethod").SelectAttrValue("Algorithm", ""))
	assert.Equal(t, signer.AlgSHA256, ref.FindElement("./DigestMethod").SelectAttrValue("Algorithm", ""))

	transforms := ref.FindElements("./Transforms/Transform")
	require.Len(t, transforms, 2)
	assert.Equal(t, signer.TransformEnveloped, transforms[0].SelectAttrValue("Algorithm", ""))
	assert.Equal(t, signer.AlgExcC14N, transforms[1].SelectAttrValue("Algorithm", ""))

	assert.NotEmpty(t, sig.FindElement("./KeyInfo/X509Data/X509Certificate").Text())
	assert.NotEmpty(t, sig.FindElement("./SignatureValue").Text())

	// La raíz conserva su estructura.
	assert.Equal(t, "eSocial", doc.Root().Tag)
}

func TestSignYValidar_RoundTripYManipulacion(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	validator := signer.NewSignatureValidator()

	signed, err := svc.Sign([]byte(eventoXML), tlsIdentity(t))
	require.NoError(t, err)

	ok, err := validator.Verify(signed)
	require.NoError(t, err)
	assert.True(t, ok, "la firma recién generada debe validar")

	tampered := strings.Replace(string(signed), "<tpExameOcup>0</tpExameOcup>", "<tpExameOcup>1</tpExameOcup>", 1)
	require.NotEqual(t, string(signed), tampered)
	ok, err = validator.Verify([]byte(tampered))
	require.NoError(t, err)
	assert.False(t, ok, "modificar el contenido firmado invalida la firma")

	tamperedText := strings.Replace(string(signed), ">apto<", ">inapto<", 1)
	ok, err = validator.Verify([]byte(tamperedText))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_CertificadoVencidoSigueValidando(t *testing.T) {
	id := testutil.NewIdentity(t, testutil.CertOptions{
		NotBefore: time.Now().Add(-48 * time.Hour),
		NotAfter:  time.Now().Add(-time.Hour),
	})
	cert := tls.Certificate{Certificate: [][]byte{id.Cert.Raw}, PrivateKey: id.Key, Leaf: id.Cert}

	signed, err := signer.NewDigitalSignatureService().Sign([]byte(eventoXML), cert)
	require.NoError(t, err)

	ok, err := signer.NewSignatureValidator().Verify(signed)
	require.NoError(t, err)
	assert.True(t, ok, "la vigencia actual del certificado no afecta la integridad de la firma")

	tampered := strings.Replace(string(signed), ">apto<", ">inapto<", 1)
	ok, err = signer.NewSignatureValidator().Verify([]byte(tampered))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSign_EventoConPrefijo(t *testing.T) {
	xml := `<esoc:lote xmlns:esoc="urn:esocial"><esoc:evento Id="ID1"><esoc:dado>1</esoc:dado></esoc:evento></esoc:lote>`
	signed, err := signer.NewDigitalSignatureService().Sign([]byte(xml), tlsIdentity(t))
	require.NoError(t, err)

	ok, err := signer.NewSignatureValidator().Verify(signed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSign_ErroresTipados(t *testing.T) {
	svc := signer.NewDigitalSignatureService()
	cert := tlsIdentity(t)

	_, err := svc.Sign([]byte(`<evento Id=>`), cert)
	assert.ErrorIs(t, err, esocial.ErrInvalidInputXML)

	_, err = svc.Sign([]byte("<eSocial><evento><a/></evento></eSocial>"), cert)
	assert.ErrorIs(t, err, esocial.ErrNoSignableElement, "evento sin Id no es firmable")

	_, err = svc.Sign([]byte(`<eSocial><evtMonit Id="X"/></eSocial>`), cert)
	assert.ErrorIs(t, err, esocial.ErrNoSignableElement)

	_, err = svc.Sign([]byte(`<l><evento Id="A"/><evento Id="B"/></l>`), cert)
	assert.ErrorIs(t, err, esocial.ErrNoSignableElement)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	badCert := tls.Certificate{Certificate: cert.Certificate, PrivateKey: ecKey}
	_, err = svc.Sign([]byte(`<evento Id="A"/>`), badCert)
	assert.ErrorIs(t, err, esocial.ErrSigningFailed, "una llave no RSA es un fallo criptográfico, no de forma")
}

func TestVerify_SinFirmaEsFalseSinError(t *testing.T) {
	ok, err := signer.NewSignatureValidator().Verify([]byte(eventoXML))
	require.NoError(t, err)
	assert.False(t, ok)

	// Un Signature fuera del namespace XMLDSig no cuenta.
	ok, err = signer.NewSignatureValidator().Verify([]byte(`<evento Id="A"><Signature>x</Signature></evento>`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = signer.NewSignatureValidator().Verify([]byte("<roto"))
	assert.ErrorIs(t, err, esocial.ErrInvalidInputXML)
}

func TestCanonicalDigest_IgnoraFormatoNoSignificativo(t *testing.T) {
	a, err := signer.CanonicalDigest([]byte(`<a b="1"   c="2"></a>`))
	require.NoError(t, err)
	b, err := signer.CanonicalDigest([]byte(`<a c="2" b="1"/>`))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = signer.CanonicalDigest(nil)
	assert.Error(t, err)
}
