package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

var (
	_ repository.ProductCatalog  = (*ProductCatalog)(nil)
	_ repository.LocationCatalog = (*LocationCatalog)(nil)
	_ repository.PartnerCatalog  = (*PartnerCatalog)(nil)
)

// ProductCatalog lectura del maestro de productos.
type ProductCatalog struct {
	q Querier
}

// NewProductCatalog construye el adaptador.
func NewProductCatalog(q Querier) *ProductCatalog {
	return &ProductCatalog{q: q}
}

// GetByIDs devuelve los productos encontrados indexados por id; los desconocidos se omiten.
func (c *ProductCatalog) GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.Product, error) {
	out := make(map[string]*entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := c.q.Query(ctx, `
		SELECT id, company_id, sku, name, tracking, ownership, standard_price
		FROM products WHERE company_id = $1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.Tracking, &p.Ownership, &p.StandardPrice); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}

// LocationCatalog lectura del maestro de ubicaciones.
type LocationCatalog struct {
	q Querier
}

// NewLocationCatalog construye el adaptador.
func NewLocationCatalog(q Querier) *LocationCatalog {
	return &LocationCatalog{q: q}
}

// GetByIDs devuelve las ubicaciones encontradas indexadas por id.
func (c *LocationCatalog) GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.Location, error) {
	out := make(map[string]*entity.Location, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := c.q.Query(ctx, `
		SELECT id, company_id, path, type, COALESCE(category, ''), COALESCE(warehouse_id, '')
		FROM locations WHERE company_id = $1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("get locations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.Location
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.Path, &l.Type, &l.Category, &l.WarehouseID); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out[l.ID] = &l
	}
	return out, rows.Err()
}

// PartnerCatalog lectura del maestro de terceros.
type PartnerCatalog struct {
	q Querier
}

// NewPartnerCatalog construye el adaptador.
func NewPartnerCatalog(q Querier) *PartnerCatalog {
	return &PartnerCatalog{q: q}
}

// GetByID devuelve el tercero o nil si no existe en la empresa.
func (c *PartnerCatalog) GetByID(ctx context.Context, companyID, id string) (*entity.Partner, error) {
	var p entity.Partner
	err := c.q.QueryRow(ctx, `
		SELECT id, company_id, name, categories FROM partners WHERE company_id = $1 AND id = $2`,
		companyID, id,
	).Scan(&p.ID, &p.CompanyID, &p.Name, &p.Categories)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get partner: %w", err)
	}
	return &p, nil
}
