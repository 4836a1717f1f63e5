package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
)

// LotBalance saldo de un lote (o del quant sin lote, LotID vacío).
type LotBalance struct {
	LotID     string
	Physical  decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
}

// AvailableStock saldo de un producto en una ubicación.
type AvailableStock struct {
	ProductID  string
	LocationID string
	Physical   decimal.Decimal
	Reserved   decimal.Decimal
	Available  decimal.Decimal
	Lots       []LotBalance
}

// GetAvailableStock lectura sin bloqueo del saldo; puede quedar desactualizada frente a
// transacciones concurrentes. Quien necesite garantía debe revalidar dentro de su transición.
func (uc *PickingUseCase) GetAvailableStock(ctx context.Context, scope domain.Scope, productID, locationID string) (*AvailableStock, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	errs := domain.NewValidationError()
	if productID == "" {
		errs.Add("product_id", "requerido")
	}
	if locationID == "" {
		errs.Add("location_id", "requerido")
	}
	if errs.HasItems() {
		return nil, errs
	}
	if _, err := uc.loadProducts(ctx, scope.CompanyID, []string{productID}); err != nil {
		return nil, err
	}
	if _, err := uc.loadLocations(ctx, scope.CompanyID, locationID); err != nil {
		return nil, err
	}

	out := &AvailableStock{
		ProductID:  productID,
		LocationID: locationID,
		Physical:   decimal.Zero,
		Reserved:   decimal.Zero,
		Available:  decimal.Zero,
	}
	err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		quants, err := repos.Quants.List(ctx, scope.CompanyID, productID, locationID)
		if err != nil {
			return err
		}
		for _, q := range quants {
			out.Physical = out.Physical.Add(q.PhysicalQuantity)
			out.Reserved = out.Reserved.Add(q.ReservedQuantity)
			out.Available = out.Available.Add(q.Available())
			out.Lots = append(out.Lots, LotBalance{
				LotID:     q.LotID,
				Physical:  q.PhysicalQuantity,
				Reserved:  q.ReservedQuantity,
				Available: q.Available(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
