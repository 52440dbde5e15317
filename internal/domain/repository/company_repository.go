package repository

import (
	"context"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
)

// CompanyDirectory puerto de lectura del directorio de empresas (DIP).
// La implementación vive en infrastructure.
type CompanyDirectory interface {
	// ListCompanies devuelve todas las empresas conocidas.
	ListCompanies(ctx context.Context) ([]entity.Company, error)
	// GetCompany devuelve nil, nil si no existe.
	GetCompany(ctx context.Context, id string) (*entity.Company, error)
}
