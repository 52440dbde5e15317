package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	"github.com/jhoicas/esocial-sst-api/internal/domain/repository"
)

// Asegura que CompanyRepo implementa repository.CompanyDirectory.
var _ repository.CompanyDirectory = (*CompanyRepo)(nil)

// CompanyRepo directorio de empresas sobre la tabla empresas.
type CompanyRepo struct {
	db Querier
}

// NewCompanyRepository construye el adaptador.
func NewCompanyRepository(db Querier) *CompanyRepo {
	return &CompanyRepo{db: db}
}

// ListCompanies devuelve todas las empresas. El orden final lo decide el caso de uso (collation pt-BR).
func (r *CompanyRepo) ListCompanies(ctx context.Context) ([]entity.Company, error) {
	query := `SELECT id::text, COALESCE(nome, ''), COALESCE(cnpj, '') FROM empresas ORDER BY nome`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list empresas: %w", err)
	}
	defer rows.Close()

	var out []entity.Company
	for rows.Next() {
		var c entity.Company
		if err := rows.Scan(&c.ID, &c.Nome, &c.CNPJ); err != nil {
			return nil, fmt.Errorf("scan empresa: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list empresas: %w", err)
	}
	return out, nil
}

// GetCompany obtiene una empresa por ID. nil, nil si no existe.
func (r *CompanyRepo) GetCompany(ctx context.Context, id string) (*entity.Company, error) {
	query := `SELECT id::text, COALESCE(nome, ''), COALESCE(cnpj, '') FROM empresas WHERE id::text = $1`
	var c entity.Company
	if err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Nome, &c.CNPJ); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get empresa: %w", err)
	}
	return &c, nil
}
