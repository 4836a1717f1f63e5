package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
)

// AdjustmentLine línea de un lote de ajustes. Quantity positiva entra, negativa sale; cero no se admite.
type AdjustmentLine struct {
	ProductID        string
	Quantity         decimal.Decimal
	PriceUnit        decimal.Decimal
	CostAtAdjustment *decimal.Decimal
	Tracking         []inventory.TrackingInput
}

// AdjustmentBatch conjunto de ajustes sobre una ubicación interna (ej. conteo físico).
type AdjustmentBatch struct {
	LocationID          string
	Reason              string
	CustomOperationType string
	AccountingDate      *time.Time
	Lines               []AdjustmentLine
}

// PostAdjustments valida todas las líneas y reporta todos los errores juntos. Si el lote está
// limpio crea el picking ADJ, lo reserva y lo valida en una sola transacción.
func (uc *PickingUseCase) PostAdjustments(ctx context.Context, scope domain.Scope, batch AdjustmentBatch) (*PickingDetail, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if err := uc.precheckAdjustments(ctx, scope, batch); err != nil {
		return nil, err
	}
	p, err := uc.buildPicking(ctx, scope, CreatePickingInput{
		TypeCode:            entity.PickingTypeADJ,
		LocationDestID:      batch.LocationID,
		AdjustmentReason:    batch.Reason,
		CustomOperationType: batch.CustomOperationType,
		AccountingDate:      batch.AccountingDate,
	})
	if err != nil {
		return nil, err
	}

	var moves []*entity.StockMove
	var touched []string
	err = uc.txRunner.Run(ctx, func(repos TxRepos) error {
		if err := repos.Pickings.Create(ctx, p); err != nil {
			return err
		}
		tracking := make(TrackingMap, len(batch.Lines))
		for i, line := range batch.Lines {
			m, err := uc.buildMove(ctx, p, MoveInput{
				ProductID:        line.ProductID,
				Quantity:         line.Quantity,
				PriceUnit:        line.PriceUnit,
				CostAtAdjustment: line.CostAtAdjustment,
			}, i+1)
			if err != nil {
				return err
			}
			if err := repos.Moves.Create(ctx, m); err != nil {
				return err
			}
			if len(line.Tracking) > 0 {
				tracking[m.ID] = line.Tracking
			}
			moves = append(moves, m)
		}
		if err := uc.markReadyTx(ctx, repos, p); err != nil {
			return err
		}
		var err error
		touched, err = uc.validateTx(ctx, repos, p, tracking)
		return err
	})
	if err != nil {
		uc.logRejected(scope, p.ID, entity.PickingDone, err)
		return nil, err
	}
	uc.logTransition(p, entity.PickingDraft, entity.PickingDone)
	uc.afterValidate(ctx, ValidatedEvent{
		CompanyID:     p.CompanyID,
		PickingID:     p.ID,
		ProductIDs:    touched,
		EffectiveDate: p.EffectiveDate(),
	})
	return &PickingDetail{Picking: p, Moves: moves}, nil
}

// precheckAdjustments recorre todas las líneas sin bloquear y acumula cada error encontrado:
// campos, productos desconocidos, series/lotes y faltantes de stock físico.
func (uc *PickingUseCase) precheckAdjustments(ctx context.Context, scope domain.Scope, batch AdjustmentBatch) error {
	errs := domain.NewValidationError()
	if batch.LocationID == "" {
		errs.Add("location_id", "requerido")
	}
	if batch.Reason == "" {
		errs.Add("adjustment_reason", "requerido")
	}
	if batch.AccountingDate == nil {
		errs.Add("accounting_date", "requerido")
	}
	if len(batch.Lines) == 0 {
		errs.Add("lines", "el ajuste no tiene líneas")
	}

	var loc *entity.Location
	if batch.LocationID != "" {
		locs, err := uc.catalogs.Locations.GetByIDs(ctx, scope.CompanyID, []string{batch.LocationID})
		if err != nil {
			return err
		}
		loc = locs[batch.LocationID]
		switch {
		case loc == nil:
			errs.Add("location_id", "ubicación %s no encontrada", batch.LocationID)
		case !loc.IsInternal():
			errs.Add("location_id", "la ubicación %s debe ser interna", loc.Path)
		}
	}

	ids := make([]string, 0, len(batch.Lines))
	for _, l := range batch.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := uc.catalogs.Products.GetByIDs(ctx, scope.CompanyID, uniqueIDs(ids...))
	if err != nil {
		return err
	}

	tv := inventory.NewTrackingValidator()
	requested := make(map[string]decimal.Decimal)
	firstLine := make(map[string]int)
	for i, l := range batch.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		prod := products[l.ProductID]
		if l.ProductID == "" {
			errs.Add(field+".product_id", "requerido")
		} else if prod == nil {
			errs.Add(field+".product_id", "producto %s no encontrado", l.ProductID)
		}
		if l.Quantity.IsZero() {
			errs.Add(field+".quantity", "la cantidad no puede ser cero")
		}
		if l.CostAtAdjustment != nil && l.CostAtAdjustment.IsNegative() {
			errs.Add(field+".cost_at_adjustment", "no puede ser negativo")
		}
		if prod == nil || l.Quantity.IsZero() {
			continue
		}
		tv.Check(field+".tracking", prod, l.Quantity.Abs(), l.Tracking)
		if l.Quantity.IsNegative() {
			if _, ok := firstLine[prod.ID]; !ok {
				firstLine[prod.ID] = i
			}
			requested[prod.ID] = requested[prod.ID].Add(l.Quantity.Neg())
		}
	}
	if err := tv.Err(); err != nil {
		if ve, ok := err.(*domain.ValidationError); ok {
			errs.Merge(ve)
		}
	}

	if loc.IsInternal() && len(requested) > 0 {
		err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
			for _, id := range uniqueIDs(keysOf(requested)...) {
				quants, err := repos.Quants.List(ctx, scope.CompanyID, id, loc.ID)
				if err != nil {
					return err
				}
				physical := decimal.Zero
				for _, q := range quants {
					physical = physical.Add(q.PhysicalQuantity)
				}
				if physical.LessThan(requested[id]) {
					errs.AddCode(fmt.Sprintf("lines[%d].quantity", firstLine[id]), domain.CodeInsufficientStock,
						"stock físico insuficiente para %s: physical %s < requested %s",
						products[id].Label(), physical.String(), requested[id].String())
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return errs.OrNil()
}

func keysOf(m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
