package esocial_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/domain"
	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial/signer"
	"github.com/jhoicas/esocial-sst-api/internal/testutil"
)

const evento = `<eSocial xmlns="http://www.esocial.gov.br/schema/evt/evtMonit/v_S_01_02_00"><evento Id="ID1037316080001842026101812000000001"><ideEmpregador><tpInsc>1</tpInsc><nrInsc>03731608</nrInsc></ideEmpregador></evento></eSocial>`

func newSign(t *testing.T) *appesocial.SignEventUseCase {
	t.Helper()
	pfx := testutil.NewIdentity(t, testutil.CertOptions{}).LegacyPFX(t, senha)
	records := &fakeRecords{records: map[string]*entity.CertificateRecord{
		"empresa-e1": {ArquivoBase64: base64.StdEncoding.EncodeToString(pfx), SenhaCertificado: b64("guardada-distinta")},
	}}
	resolver := appesocial.NewCertificateResolver(records, &fakeBlobs{}, nil, nil)
	return appesocial.NewSignEventUseCase(resolver, signer.NewCertificateStore(), signer.NewDigitalSignatureService(), nil, nil)
}

func TestSignEvent_FirmaYValida(t *testing.T) {
	signed, err := newSign(t).Execute(context.Background(), appesocial.SignInput{EmpresaID: "e1", CertPassword: senha, RawXML: evento})
	require.NoError(t, err)
	assert.True(t, strings.Contains(signed, "SignatureValue"))

	ok, err := appesocial.NewVerifyUseCase(signer.NewSignatureValidator()).Execute(context.Background(), signed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignEvent_Errores(t *testing.T) {
	uc := newSign(t)
	ctx := context.Background()

	_, err := uc.Execute(ctx, appesocial.SignInput{EmpresaID: "e1", RawXML: evento})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "certPassword es obligatorio")

	_, err = uc.Execute(ctx, appesocial.SignInput{EmpresaID: "e1", CertPassword: "errada", RawXML: evento})
	assert.ErrorIs(t, err, domesocial.ErrWrongPassphrase)

	_, err = uc.Execute(ctx, appesocial.SignInput{EmpresaID: "e1", CertPassword: senha, RawXML: "<eSocial><outro/></eSocial>"})
	assert.ErrorIs(t, err, domesocial.ErrNoSignableElement)

	_, err = uc.Execute(ctx, appesocial.SignInput{EmpresaID: "e2", CertPassword: senha, RawXML: evento})
	assert.ErrorIs(t, err, domesocial.ErrCertificateNotFound)
}

func TestVerify_SinFirmaEsFalse(t *testing.T) {
	uc := appesocial.NewVerifyUseCase(signer.NewSignatureValidator())

	ok, err := uc.Execute(context.Background(), evento)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = uc.Execute(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
