package repository

import (
	"context"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// ProductCatalog maestro de productos (solo lectura). GetByIDs omite los ids desconocidos.
type ProductCatalog interface {
	GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.Product, error)
}

// LocationCatalog maestro de ubicaciones (solo lectura).
type LocationCatalog interface {
	GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.Location, error)
}

// PartnerCatalog maestro de terceros (solo lectura).
type PartnerCatalog interface {
	GetByID(ctx context.Context, companyID, id string) (*entity.Partner, error)
}
