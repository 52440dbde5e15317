package esocial

import (
	"context"
	"fmt"

	"github.com/jhoicas/esocial-sst-api/internal/domain"
	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	"github.com/jhoicas/esocial-sst-api/internal/domain/repository"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

const (
	auditAcaoTestarConexao  = "testar_conexao_esocial"
	auditTabelaESocial      = "esocial"
	ambienteDesconocido     = "N/A"
	msgEmpresaNaoEncontrada = "Empresa não encontrada"
	msgFalhaConsultaEmpresa = "Erro ao consultar a empresa"
	msgFalhaConexao         = "Falha de conexão com o eSocial"
)

// ConnectionResult resultado de la prueba de conexión.
type ConnectionResult struct {
	Conectado bool
	Ambiente  string
	Erro      string
}

// ConnectionTestUseCase comprueba que el web service responde y deja constancia en logs_auditoria.
type ConnectionTestUseCase struct {
	directory repository.CompanyDirectory
	checker   ConnectivityChecker
	audit     repository.AuditLogRepository
	log       *logger.Logger
}

// NewConnectionTestUseCase crea el caso de uso.
func NewConnectionTestUseCase(directory repository.CompanyDirectory, checker ConnectivityChecker, audit repository.AuditLogRepository, log *logger.Logger) *ConnectionTestUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &ConnectionTestUseCase{directory: directory, checker: checker, audit: audit, log: log.Component("esocial.connectivity")}
}

// Execute nunca falla por la red: el error queda en Erro. Solo falla por entrada inválida.
func (uc *ConnectionTestUseCase) Execute(ctx context.Context, empresaID, usuarioID string) (*ConnectionResult, error) {
	if empresaID == "" {
		return nil, fmt.Errorf("%w: empresa_id inválido", domain.ErrInvalidInput)
	}

	res := uc.test(ctx, empresaID)

	entry := &entity.AuditLog{
		EmpresaID:  empresaID,
		UsuarioID:  usuarioID,
		Acao:       auditAcaoTestarConexao,
		Tabela:     auditTabelaESocial,
		RegistroID: empresaID,
		Detalhes: map[string]any{
			"conectado": res.Conectado,
			"ambiente":  res.Ambiente,
			"erro":      res.Erro,
		},
	}
	if err := uc.audit.Insert(ctx, entry); err != nil {
		uc.log.Warn().Err(err).Str("empresa_id", empresaID).Msg("no se pudo registrar la auditoría")
	}
	return res, nil
}

func (uc *ConnectionTestUseCase) test(ctx context.Context, empresaID string) *ConnectionResult {
	company, err := uc.directory.GetCompany(ctx, empresaID)
	if err != nil {
		uc.log.Error().Err(err).Str("empresa_id", empresaID).Msg("consultar empresa")
		return &ConnectionResult{Ambiente: ambienteDesconocido, Erro: msgFalhaConsultaEmpresa}
	}
	if company == nil {
		return &ConnectionResult{Ambiente: ambienteDesconocido, Erro: msgEmpresaNaoEncontrada}
	}

	res := &ConnectionResult{Ambiente: string(uc.checker.Ambiente())}
	ok, err := uc.checker.Ping(ctx)
	res.Conectado = ok
	if err != nil {
		uc.log.Warn().Err(err).Str("empresa_id", empresaID).Msg("ping al eSocial")
		res.Erro = msgFalhaConexao
	}
	uc.log.Info().
		Str("empresa_id", empresaID).
		Str("ambiente", res.Ambiente).
		Bool("conectado", res.Conectado).
		Msg("prueba de conexión")
	return res
}
