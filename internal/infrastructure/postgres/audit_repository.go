package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	"github.com/jhoicas/esocial-sst-api/internal/domain/repository"
)

var _ repository.AuditLogRepository = (*AuditRepo)(nil)

// AuditRepo escribe en logs_auditoria.
type AuditRepo struct {
	db Querier
}

// NewAuditRepository construye el adaptador.
func NewAuditRepository(db Querier) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert completa ID y CreatedAt si vienen vacíos. detalhes se guarda como jsonb.
func (r *AuditRepo) Insert(ctx context.Context, e *entity.AuditLog) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO logs_auditoria (id, empresa_id, usuario_id, acao, tabela, registro_id, detalhes, created_at)
		VALUES ($1, NULLIF($2::text, '')::uuid, NULLIF($3::text, '')::uuid, $4, $5, NULLIF($6::text, ''), $7, $8)`
	_, err := r.db.Exec(ctx, query,
		e.ID, e.EmpresaID, e.UsuarioID, e.Acao, e.Tabela, e.RegistroID, e.Detalhes, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert log auditoria: %w", err)
	}
	return nil
}
