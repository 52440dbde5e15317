package repository

import (
	"context"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
)

// CertificateRecordRepository lee la fila de certificado de una cuenta o empresa.
// Devuelve nil, nil cuando no hay registro.
type CertificateRecordRepository interface {
	FindCertificate(ctx context.Context, owner entity.CertificateOwner) (*entity.CertificateRecord, error)
}
