package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	"github.com/jhoicas/esocial-sst-api/internal/domain/repository"
)

var _ repository.CertificateRecordRepository = (*CertificateRepo)(nil)

// CertificateRepo lee certificados_conta (por user_id) y certificados_empresa (por empresa_id).
type CertificateRepo struct {
	db Querier
}

// NewCertificateRepository construye el adaptador.
func NewCertificateRepository(db Querier) *CertificateRepo {
	return &CertificateRepo{db: db}
}

// FindCertificate devuelve nil, nil si no hay fila o si la tabla aún no existe
// (el resolver sigue entonces con los metadatos del bucket).
func (r *CertificateRepo) FindCertificate(ctx context.Context, owner entity.CertificateOwner) (*entity.CertificateRecord, error) {
	var query string
	switch owner.Kind {
	case entity.OwnerUsuario:
		query = `
			SELECT COALESCE(arquivo_base64, ''), COALESCE(arquivo_url, ''), COALESCE(senha_certificado, '')
			FROM certificados_conta WHERE user_id::text = $1 LIMIT 1`
	case entity.OwnerEmpresa:
		query = `
			SELECT COALESCE(arquivo_base64, ''), COALESCE(arquivo_url, ''), COALESCE(senha_certificado, '')
			FROM certificados_empresa WHERE empresa_id::text = $1 LIMIT 1`
	default:
		return nil, fmt.Errorf("certificado: titular desconocido %q", owner.Kind)
	}

	var rec entity.CertificateRecord
	err := r.db.QueryRow(ctx, query, owner.ID).Scan(&rec.ArquivoBase64, &rec.ArquivoURL, &rec.SenhaCertificado)
	switch {
	case err == nil:
		return &rec, nil
	case isNoRows(err), isUndefinedTable(err):
		return nil, nil
	default:
		return nil, fmt.Errorf("get certificado %s: %w", owner.Prefix(), err)
	}
}
