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

// MarkReady valida el encabezado y las reglas de operación, reserva stock para cada línea
// y deja el picking en ready. Sobre un picking ya ready no hace nada.
// Si alguna línea no alcanza, no se reserva nada y el error lista todos los productos.
func (uc *PickingUseCase) MarkReady(ctx context.Context, scope domain.Scope, pickingID string) (*entity.Picking, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var picking *entity.Picking
	var from string
	err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		p, err := repos.Pickings.GetForUpdate(ctx, scope.CompanyID, pickingID)
		if err != nil {
			return err
		}
		from = p.State
		picking = p
		if p.State == entity.PickingReady {
			return nil
		}
		return uc.markReadyTx(ctx, repos, p)
	})
	if err != nil {
		uc.logRejected(scope, pickingID, entity.PickingReady, err)
		return nil, err
	}
	if from != entity.PickingReady {
		uc.logTransition(picking, from, entity.PickingReady)
	}
	return picking, nil
}

func (uc *PickingUseCase) markReadyTx(ctx context.Context, repos TxRepos, p *entity.Picking) error {
	if err := inventory.CheckTransition(p, entity.PickingReady); err != nil {
		return err
	}
	moves, err := repos.Moves.ListByPicking(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(moves) == 0 {
		return domain.NewBusinessRuleError(domain.CodeEmptyPicking,
			fmt.Sprintf("el picking %s no tiene líneas", p.Reference))
	}
	products, err := uc.loadProducts(ctx, p.CompanyID, moveProductIDs(moves))
	if err != nil {
		return err
	}
	locs, err := uc.loadLocations(ctx, p.CompanyID, moveLocationIDs(p, moves)...)
	if err != nil {
		return err
	}
	if err := uc.checkRules(ctx, p, moves, products, locs); err != nil {
		return err
	}

	now := uc.now()
	reservations, err := uc.reserve(ctx, repos, p, moves, products, locs, now)
	if err != nil {
		return err
	}
	if len(reservations) > 0 {
		if err := repos.Reservations.Create(ctx, reservations); err != nil {
			return err
		}
	}
	return uc.setState(ctx, repos, p, entity.PickingReady, now)
}

// checkRules aplica encabezado, cuadrilla, propiedad, categorías y tercero.
// Los errores de campo se reportan juntos antes que las reglas de negocio.
func (uc *PickingUseCase) checkRules(
	ctx context.Context,
	p *entity.Picking,
	moves []*entity.StockMove,
	products map[string]*entity.Product,
	locs map[string]*entity.Location,
) error {
	verrs := domain.NewValidationError()
	collect := func(err error) error {
		if ve, ok := err.(*domain.ValidationError); ok {
			verrs.Merge(ve)
			return nil
		}
		return err
	}
	if err := collect(uc.rules.CheckHeader(p)); err != nil {
		return err
	}
	if err := collect(uc.rules.CheckCuadrilla(p, moves, locs)); err != nil {
		return err
	}
	if p.TypeCode == entity.PickingTypeADJ {
		if loc := locs[p.AffectedLocationID()]; loc != nil && !loc.IsInternal() {
			verrs.Add("location_id", "la ubicación afectada %s debe ser interna", loc.Path)
		}
	}
	if verrs.HasItems() {
		return verrs
	}
	if err := uc.rules.CheckOwnership(p, moves, products); err != nil {
		return err
	}
	if err := uc.rules.CheckLocationCategories(p, moves, locs); err != nil {
		return err
	}
	if p.PartnerID != "" {
		partner, err := uc.loadPartner(ctx, p.CompanyID, p.PartnerID)
		if err != nil {
			return err
		}
		if err := uc.rules.CheckPartner(p, partner); err != nil {
			return err
		}
	}
	return nil
}

// reserve incrementa el reservado en la ubicación que consume cada línea. Productos sin
// seguimiento reservan en el quant sin lote; con lote o serie se reparte en orden de lote.
func (uc *PickingUseCase) reserve(
	ctx context.Context,
	repos TxRepos,
	p *entity.Picking,
	moves []*entity.StockMove,
	products map[string]*entity.Product,
	locs map[string]*entity.Location,
	now time.Time,
) ([]*entity.StockReservation, error) {
	var keys, lotPairs []entity.QuantKey
	for _, m := range moves {
		if !locs[m.LocationSrcID].IsInternal() {
			continue
		}
		k := entity.QuantKey{ProductID: m.ProductID, LocationID: m.LocationSrcID}
		if products[m.ProductID].IsTracked() {
			lotPairs = append(lotPairs, k)
			continue
		}
		// El quant sin lote se materializa para poder bloquear el par aunque no exista saldo.
		keys = append(keys, k)
	}
	book, err := lockQuants(ctx, repos.Quants, p.CompanyID, keys, lotPairs...)
	if err != nil {
		return nil, err
	}

	var details []string
	if p.TypeCode == entity.PickingTypeADJ {
		details = append(details, physicalShortfalls(book, moves, products, locs)...)
	}

	var out []*entity.StockReservation
	for _, m := range moves {
		if !locs[m.LocationSrcID].IsInternal() {
			continue
		}
		prod := products[m.ProductID]
		var candidates []*entity.StockQuant
		if prod.IsTracked() {
			candidates = book.lots(m.ProductID, m.LocationSrcID)
		} else {
			candidates = []*entity.StockQuant{book.get(entity.QuantKey{ProductID: m.ProductID, LocationID: m.LocationSrcID})}
		}
		available := decimal.Zero
		for _, q := range candidates {
			available = available.Add(q.Available())
		}
		if available.LessThan(m.Quantity) {
			details = append(details, fmt.Sprintf("producto %s en %s: disponible %s < solicitado %s",
				prod.Label(), locationLabel(locs, m.LocationSrcID), available.String(), m.Quantity.String()))
			continue
		}
		remaining := m.Quantity
		for _, q := range candidates {
			if !remaining.IsPositive() {
				break
			}
			take := decimal.Min(remaining, q.Available())
			if !take.IsPositive() {
				continue
			}
			book.addReserved(q.Key(), take)
			remaining = remaining.Sub(take)
			out = append(out, &entity.StockReservation{
				PickingID:  p.ID,
				MoveID:     m.ID,
				ProductID:  q.ProductID,
				LocationID: q.LocationID,
				LotID:      q.LotID,
				Quantity:   take,
			})
		}
	}
	if len(details) > 0 {
		return nil, domain.NewBusinessRuleError(domain.CodeInsufficientStock, "stock insuficiente", details...)
	}
	if err := book.save(ctx, repos.Quants, now); err != nil {
		return nil, err
	}
	return out, nil
}

// physicalShortfalls compara las salidas de un ajuste contra el físico (no el disponible)
// de cada producto en la ubicación afectada.
func physicalShortfalls(book *quantBook, moves []*entity.StockMove, products map[string]*entity.Product, locs map[string]*entity.Location) []string {
	requested := make(map[entity.QuantKey]decimal.Decimal)
	var order []entity.QuantKey
	for _, m := range moves {
		if !locs[m.LocationSrcID].IsInternal() {
			continue
		}
		k := entity.QuantKey{ProductID: m.ProductID, LocationID: m.LocationSrcID}
		if _, ok := requested[k]; !ok {
			order = append(order, k)
		}
		requested[k] = requested[k].Add(m.Quantity)
	}
	var details []string
	for _, k := range order {
		physical := book.physical(k.ProductID, k.LocationID)
		if physical.LessThan(requested[k]) {
			details = append(details, fmt.Sprintf("stock físico insuficiente para %s en %s: physical %s < requested %s",
				products[k.ProductID].Label(), locationLabel(locs, k.LocationID), physical.String(), requested[k].String()))
		}
	}
	return details
}
