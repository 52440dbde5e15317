package esocial_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
)

var conta = entity.CertificateOwner{Kind: entity.OwnerUsuario, ID: userID}

func TestResolve_SoloArquivoURLSaltaBase64(t *testing.T) {
	records := &fakeRecords{records: map[string]*entity.CertificateRecord{
		conta.Prefix(): {ArquivoURL: "usuario-x/cert.pfx", SenhaCertificado: b64(senha)},
	}}
	blobs := &fakeBlobs{objects: map[string][]byte{"usuario-x/cert.pfx": []byte("PFX-URL")}}

	got, err := appesocial.NewCertificateResolver(records, blobs, nil, nil).Resolve(context.Background(), conta)
	require.NoError(t, err)

	assert.Equal(t, entity.SourceArquivoURL, got.Source)
	assert.Equal(t, []byte("PFX-URL"), got.PFX)
	assert.Equal(t, senha, got.Passphrase)
	assert.True(t, got.Diagnostics.StorageTried)
	assert.False(t, got.Diagnostics.MetaChecked)
	assert.False(t, got.Diagnostics.DirectPathTried)
	assert.Equal(t, entity.SourceArquivoURL, got.Diagnostics.PFXSource)
	assert.Equal(t, len("PFX-URL"), got.Diagnostics.PFXBytesLength)
	assert.Equal(t, []string{"usuario-x/cert.pfx"}, blobs.asked)
}

func TestResolve_Base64TienePrioridad(t *testing.T) {
	records := &fakeRecords{records: map[string]*entity.CertificateRecord{
		conta.Prefix(): {ArquivoBase64: "data:application/x-pkcs12;base64," + b64("PFX-INLINE"), ArquivoURL: "no/usar.pfx"},
	}}
	blobs := &fakeBlobs{}

	got, err := appesocial.NewCertificateResolver(records, blobs, nil, nil).Resolve(context.Background(), conta)
	require.NoError(t, err)

	assert.Equal(t, entity.SourceBase64, got.Source)
	assert.Equal(t, []byte("PFX-INLINE"), got.PFX)
	assert.Empty(t, blobs.asked)
	assert.Empty(t, got.Passphrase)
	assert.False(t, got.Diagnostics.SenhaPresent)
}

func TestResolve_SinRegistroUsaMetadatos(t *testing.T) {
	meta, _ := json.Marshal(map[string]string{"arquivo_url": "usuario-x/real.pfx"})
	blobs := &fakeBlobs{objects: map[string][]byte{
		conta.MetaPath():     meta,
		"usuario-x/real.pfx": []byte("PFX-META"),
	}}

	got, err := appesocial.NewCertificateResolver(&fakeRecords{}, blobs, nil, nil).Resolve(context.Background(), conta)
	require.NoError(t, err)

	assert.Equal(t, entity.SourceMeta, got.Source)
	assert.False(t, got.Diagnostics.HasRecord)
	assert.True(t, got.Diagnostics.MetaChecked)
	assert.True(t, got.Diagnostics.MetaFound)
	assert.Equal(t, "usuario-x/real.pfx", got.Diagnostics.MetaArquivoURL)
	assert.False(t, got.Diagnostics.DirectPathTried)
}

func TestResolve_URLFallidaNoConsultaMetadatosYCaeARutaPorDefecto(t *testing.T) {
	records := &fakeRecords{records: map[string]*entity.CertificateRecord{
		conta.Prefix(): {ArquivoURL: "roto.pfx", SenhaCertificado: "texto-plano!"},
	}}
	blobs := &fakeBlobs{
		objects: map[string][]byte{conta.DefaultPFXPath(): []byte("PFX-DIRECT")},
		errs:    map[string]error{"roto.pfx": errRede},
	}

	got, err := appesocial.NewCertificateResolver(records, blobs, nil, nil).Resolve(context.Background(), conta)
	require.NoError(t, err)

	assert.Equal(t, entity.SourceDirect, got.Source)
	assert.Equal(t, "texto-plano!", got.Passphrase)
	assert.Equal(t, errRede.Error(), got.Diagnostics.StorageError)
	assert.False(t, got.Diagnostics.MetaChecked)
	assert.True(t, got.Diagnostics.DirectPathTried)
	assert.Equal(t, []string{"roto.pfx", conta.DefaultPFXPath()}, blobs.asked)
}

func TestResolve_NoEncontradoLlevaDiagnostico(t *testing.T) {
	_, err := appesocial.NewCertificateResolver(&fakeRecords{}, &fakeBlobs{}, nil, nil).Resolve(context.Background(), conta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domesocial.ErrCertificateNotFound)

	var rerr *appesocial.ResolutionError
	require.True(t, errors.As(err, &rerr))
	d := rerr.Diagnostics
	assert.False(t, d.HasRecord)
	assert.True(t, d.MetaChecked)
	assert.False(t, d.MetaFound)
	assert.NotEmpty(t, d.StorageError)
	assert.True(t, d.DirectPathTried)
	assert.NotEmpty(t, d.DirectPathError)
	assert.Empty(t, d.PFXSource)
	require.Len(t, d.Attempts, 2)
	assert.Equal(t, entity.SourceMeta, d.Attempts[0].Source)
	assert.Equal(t, entity.SourceDirect, d.Attempts[1].Source)
}

func TestResolve_ErrorDelRepositorioSePropaga(t *testing.T) {
	boom := errors.New("pool cerrado")
	_, err := appesocial.NewCertificateResolver(&fakeRecords{err: boom}, &fakeBlobs{}, nil, nil).Resolve(context.Background(), conta)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domesocial.ErrCertificateNotFound)
}

func TestResolve_EmpresaUsaSuPrefijo(t *testing.T) {
	empresa := entity.CertificateOwner{Kind: entity.OwnerEmpresa, ID: "e1"}
	blobs := &fakeBlobs{objects: map[string][]byte{"empresa-e1/certificado-a1.pfx": []byte("PFX")}}

	got, err := appesocial.NewCertificateResolver(&fakeRecords{}, blobs, nil, nil).Resolve(context.Background(), empresa)
	require.NoError(t, err)
	assert.Equal(t, entity.SourceDirect, got.Source)
}

func TestDecodePassphrase(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"vacía", "", ""},
		{"base64", b64("Minha$Senha1"), "Minha$Senha1"},
		{"texto plano no base64", "senha com espaço", "senha com espaço"},
		{"base64 que decodifica a binario", "AAEC", "AAEC"},
		{"texto plano que parece base64", "abcd", "abcd"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, appesocial.DecodePassphrase(tc.in))
		})
	}
}
