package esocial_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/domain"
	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
)

type fakeChecker struct {
	ok  bool
	err error
}

func (f fakeChecker) Ping(context.Context) (bool, error) { return f.ok, f.err }
func (f fakeChecker) Ambiente() domesocial.Ambiente { return domesocial.AmbienteProducao }

var directorio = &fakeDirectory{companies: []entity.Company{{ID: "e1", Nome: "Alfa", CNPJ: cnpjTest}}}

func TestConnectionTest_ConectadoRegistraAuditoria(t *testing.T) {
	audit := &fakeAudit{}
	uc := appesocial.NewConnectionTestUseCase(directorio, fakeChecker{ok: true}, audit, nil)

	res, err := uc.Execute(context.Background(), "e1", "u1")
	require.NoError(t, err)
	assert.Equal(t, &appesocial.ConnectionResult{Conectado: true, Ambiente: "producao"}, res)

	require.Len(t, audit.entries, 1)
	e := audit.entries[0]
	assert.Equal(t, "e1", e.EmpresaID)
	assert.Equal(t, "u1", e.UsuarioID)
	assert.Equal(t, "testar_conexao_esocial", e.Acao)
	assert.Equal(t, "esocial", e.Tabela)
	assert.Equal(t, "e1", e.RegistroID)
	assert.Equal(t, map[string]any{"conectado": true, "ambiente": "producao", "erro": ""}, e.Detalhes)
}

func TestConnectionTest_EmpresaInexistente(t *testing.T) {
	audit := &fakeAudit{}
	res, err := appesocial.NewConnectionTestUseCase(directorio, fakeChecker{ok: true}, audit, nil).
		Execute(context.Background(), "nao-existe", "u1")
	require.NoError(t, err)

	assert.False(t, res.Conectado)
	assert.Equal(t, "N/A", res.Ambiente)
	assert.Equal(t, "Empresa não encontrada", res.Erro)
	assert.Len(t, audit.entries, 1)
}

func TestConnectionTest_ErrorDeRedYAuditoriaFallidaNoRompen(t *testing.T) {
	audit := &fakeAudit{err: errors.New("logs_auditoria no existe")}
	res, err := appesocial.NewConnectionTestUseCase(directorio, fakeChecker{err: errRede}, audit, nil).
		Execute(context.Background(), "e1", "u1")
	require.NoError(t, err)

	assert.False(t, res.Conectado)
	assert.Equal(t, "Falha de conexão com o eSocial", res.Erro)
	assert.NotContains(t, res.Erro, errRede.Error())
}

func TestConnectionTest_FalloDelDirectorioNoExponeElError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New(`pq: relation "empresas" does not exist`)}
	res, err := appesocial.NewConnectionTestUseCase(dir, fakeChecker{ok: true}, &fakeAudit{}, nil).
		Execute(context.Background(), "e1", "u1")
	require.NoError(t, err)

	assert.False(t, res.Conectado)
	assert.Equal(t, "Erro ao consultar a empresa", res.Erro)
}

func TestConnectionTest_SinEmpresaEsEntradaInvalida(t *testing.T) {
	_, err := appesocial.NewConnectionTestUseCase(directorio, fakeChecker{}, &fakeAudit{}, nil).
		Execute(context.Background(), "", "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAccountDiagnostics_RevisaTodasLasUbicaciones(t *testing.T) {
	meta, _ := json.Marshal(map[string]string{"arquivo_url": "usuario-x/real.pfx"})
	records := &fakeRecords{records: map[string]*entity.CertificateRecord{
		conta.Prefix(): {ArquivoURL: "usuario-x/real.pfx", SenhaCertificado: "s"},
	}}
	blobs := &fakeBlobs{objects: map[string][]byte{
		conta.DefaultPFXPath(): []byte("PFX"),
		conta.MetaPath():       meta,
	}}

	d := appesocial.NewAccountDiagnosticsUseCase(records, blobs, "certificados-esocial").Execute(context.Background(), userID)

	assert.True(t, d.Table.HasRecord)
	assert.True(t, d.Table.HasArquivoURL)
	assert.True(t, d.Table.HasSenhaCertificado)
	assert.Equal(t, "usuario-x/real.pfx", d.Table.RecordArquivoURL)
	assert.Equal(t, "certificados-esocial", d.Storage.Bucket)
	assert.True(t, d.Storage.DirectPath.Exists)
	assert.True(t, d.Storage.JSON.Exists)
	assert.True(t, d.Storage.Meta.DownloadTried)
	assert.False(t, d.Storage.Meta.DownloadExists)
	assert.NotEmpty(t, d.Storage.Meta.DownloadError)
}
