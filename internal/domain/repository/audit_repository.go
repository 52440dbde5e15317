package repository

import (
	"context"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
)

// AuditLogRepository persiste eventos de auditoría.
type AuditLogRepository interface {
	Insert(ctx context.Context, entry *entity.AuditLog) error
}
