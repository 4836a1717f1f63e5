package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
)

// TrackingMap series/lotes por id de movimiento, tal como los envía el llamador.
type TrackingMap map[string][]inventory.TrackingInput

// Validate confirma un picking ready: libera sus reservas, mueve el stock físico, actualiza el
// costo promedio de cada ubicación interna, guarda las series/lotes y deja todo en done.
// Cualquier falla revierte la transacción completa.
func (uc *PickingUseCase) Validate(ctx context.Context, scope domain.Scope, pickingID string, tracking TrackingMap) (*entity.Picking, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var picking *entity.Picking
	var from string
	var touched []string
	err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		p, err := repos.Pickings.GetForUpdate(ctx, scope.CompanyID, pickingID)
		if err != nil {
			return err
		}
		from = p.State
		touched, err = uc.validateTx(ctx, repos, p, tracking)
		if err != nil {
			return err
		}
		picking = p
		return nil
	})
	if err != nil {
		uc.logRejected(scope, pickingID, entity.PickingDone, err)
		return nil, err
	}
	uc.logTransition(picking, from, entity.PickingDone)
	uc.afterValidate(ctx, ValidatedEvent{
		CompanyID:     picking.CompanyID,
		PickingID:     picking.ID,
		ProductIDs:    touched,
		EffectiveDate: picking.EffectiveDate(),
	})
	return picking, nil
}

func (uc *PickingUseCase) validateTx(ctx context.Context, repos TxRepos, p *entity.Picking, tracking TrackingMap) ([]string, error) {
	if err := inventory.CheckTransition(p, entity.PickingDone); err != nil {
		return nil, err
	}
	moves, err := repos.Moves.ListByPicking(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(moves) == 0 {
		return nil, domain.NewBusinessRuleError(domain.CodeEmptyPicking,
			fmt.Sprintf("el picking %s no tiene líneas", p.Reference))
	}
	productIDs := moveProductIDs(moves)
	products, err := uc.loadProducts(ctx, p.CompanyID, productIDs)
	if err != nil {
		return nil, err
	}
	locs, err := uc.loadLocations(ctx, p.CompanyID, moveLocationIDs(p, moves)...)
	if err != nil {
		return nil, err
	}
	lots, err := checkTracking(moves, products, tracking)
	if err != nil {
		return nil, err
	}
	reservations, err := repos.Reservations.ListByPicking(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	// Bloqueos: quants y valoraciones, siempre en orden de clave.
	var keys, valPairs []entity.QuantKey
	for _, r := range reservations {
		keys = append(keys, r.Key())
	}
	for _, m := range moves {
		for _, loc := range []string{m.LocationSrcID, m.LocationDestID} {
			if !locs[loc].IsInternal() {
				continue
			}
			valPairs = append(valPairs, entity.QuantKey{ProductID: m.ProductID, LocationID: loc})
			keys = append(keys, quantKeysFor(products[m.ProductID], m, loc, lots[m.ID])...)
		}
	}
	book, err := lockQuants(ctx, repos.Quants, p.CompanyID, keys)
	if err != nil {
		return nil, err
	}
	vals, err := repos.Valuations.LockMany(ctx, p.CompanyID, uniqueKeys(valPairs))
	if err != nil {
		return nil, err
	}
	if vals == nil {
		vals = make(map[entity.QuantKey]*entity.StockValuation)
	}

	for _, r := range reservations {
		book.addReserved(r.Key(), r.Quantity.Neg())
	}

	now := uc.now()
	var moveLines []*entity.StockMoveLine
	dirtyVals := make(map[entity.QuantKey]bool)
	for _, m := range moves {
		prod := products[m.ProductID]
		var issued *inventory.Valuation
		if locs[m.LocationSrcID].IsInternal() {
			applyPhysical(book, prod, m, m.LocationSrcID, lots[m.ID], true)
			k := entity.QuantKey{ProductID: m.ProductID, LocationID: m.LocationSrcID}
			val := valuationFor(vals, p.CompanyID, k)
			next, out := balanceOf(val).Issue(m.Quantity, m.CostAtAdjustment)
			if m.HasCostOverride() {
				uc.log.Warn().
					Str("company_id", p.CompanyID).
					Str("picking_id", p.ID).
					Str("move_id", m.ID).
					Str("cost_at_adjustment", out.UnitCost.String()).
					Str("running_cost", val.UnitCost.String()).
					Msg("salida valorizada con costo manual en lugar del promedio")
			}
			storeBalance(val, next, now)
			dirtyVals[k] = true
			issued = &out
			m.PriceUnit, m.Value = out.UnitCost, out.Value
		}
		if locs[m.LocationDestID].IsInternal() {
			applyPhysical(book, prod, m, m.LocationDestID, lots[m.ID], false)
			k := entity.QuantKey{ProductID: m.ProductID, LocationID: m.LocationDestID}
			val := valuationFor(vals, p.CompanyID, k)
			price := incomingPrice(p, m, prod, val, issued)
			next, in := balanceOf(val).Receive(m.Quantity, price)
			storeBalance(val, next, now)
			dirtyVals[k] = true
			m.PriceUnit, m.Value = in.UnitCost, in.Value
		}
		for _, l := range lots[m.ID] {
			moveLines = append(moveLines, &entity.StockMoveLine{
				ID:        uuid.New().String(),
				MoveID:    m.ID,
				ProductID: m.ProductID,
				LotName:   l.LotName,
				Quantity:  l.Quantity,
				CreatedAt: now,
			})
		}
		m.State = entity.PickingDone
		m.UpdatedAt = now
	}

	if neg := book.negatives(); len(neg) > 0 {
		details := make([]string, 0, len(neg))
		for _, q := range neg {
			lot := ""
			if q.LotID != "" {
				lot = " lote " + q.LotID
			}
			details = append(details, fmt.Sprintf("producto %s en %s%s: físico %s, reservado %s",
				products[q.ProductID].Label(), locationLabel(locs, q.LocationID), lot,
				q.PhysicalQuantity.String(), q.ReservedQuantity.String()))
		}
		return nil, domain.NewBusinessRuleError(domain.CodeInsufficientStock, "stock insuficiente al validar", details...)
	}

	if err := book.save(ctx, repos.Quants, now); err != nil {
		return nil, err
	}
	valKeys := make([]entity.QuantKey, 0, len(dirtyVals))
	for k := range dirtyVals {
		valKeys = append(valKeys, k)
	}
	sort.Slice(valKeys, func(i, j int) bool { return valKeys[i].Less(valKeys[j]) })
	for _, k := range valKeys {
		if err := repos.Valuations.Save(ctx, vals[k]); err != nil {
			return nil, err
		}
	}
	if err := repos.Reservations.DeleteByPicking(ctx, p.ID); err != nil {
		return nil, err
	}
	if len(moveLines) > 0 {
		if err := repos.MoveLines.CreateBatch(ctx, moveLines); err != nil {
			return nil, err
		}
	}
	for _, m := range moves {
		if err := repos.Moves.Update(ctx, m); err != nil {
			return nil, err
		}
	}
	if err := uc.setState(ctx, repos, p, entity.PickingDone, now); err != nil {
		return nil, err
	}
	// Los saldos precalculados posteriores a la fecha efectiva ya no son válidos. La versión
	// sube primero: un snapshot que se esté reconstruyendo en paralelo ya no se podrá guardar.
	if err := repos.Kardex.BumpHistoryVersions(ctx, p.CompanyID, productIDs); err != nil {
		return nil, err
	}
	if err := repos.Kardex.DeleteSnapshotsAfter(ctx, p.CompanyID, productIDs, p.EffectiveDate()); err != nil {
		return nil, err
	}
	return productIDs, nil
}

// checkTracking valida el mapa de series/lotes contra cada movimiento y devuelve las cantidades
// normalizadas por movimiento. Todos los errores se reportan juntos.
func checkTracking(moves []*entity.StockMove, products map[string]*entity.Product, tracking TrackingMap) (map[string][]inventory.TrackedQuantity, error) {
	tv := inventory.NewTrackingValidator()
	known := make(map[string]bool, len(moves))
	out := make(map[string][]inventory.TrackedQuantity, len(moves))
	for _, m := range moves {
		known[m.ID] = true
		out[m.ID] = tv.Check("tracking["+m.ID+"]", products[m.ProductID], m.Quantity, tracking[m.ID])
	}
	errs := domain.NewValidationError()
	unknown := make([]string, 0)
	for id := range tracking {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		errs.Add("tracking["+id+"]", "el movimiento no pertenece al picking")
	}
	if err := tv.Err(); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			errs.Merge(ve)
		} else {
			return nil, err
		}
	}
	if errs.HasItems() {
		return nil, errs
	}
	return out, nil
}

func quantKeysFor(prod *entity.Product, m *entity.StockMove, loc string, lots []inventory.TrackedQuantity) []entity.QuantKey {
	if !prod.IsTracked() {
		return []entity.QuantKey{{ProductID: m.ProductID, LocationID: loc}}
	}
	keys := make([]entity.QuantKey, 0, len(lots))
	for _, l := range lots {
		keys = append(keys, entity.QuantKey{ProductID: m.ProductID, LocationID: loc, LotID: l.LotName})
	}
	return keys
}

// applyPhysical debita (out) o acredita el físico de la línea en loc, por lote si aplica.
func applyPhysical(book *quantBook, prod *entity.Product, m *entity.StockMove, loc string, lots []inventory.TrackedQuantity, out bool) {
	sign := decimal.NewFromInt(1)
	if out {
		sign = sign.Neg()
	}
	if !prod.IsTracked() {
		book.addPhysical(entity.QuantKey{ProductID: m.ProductID, LocationID: loc}, m.Quantity.Mul(sign))
		return
	}
	for _, l := range lots {
		book.addPhysical(entity.QuantKey{ProductID: m.ProductID, LocationID: loc, LotID: l.LotName}, l.Quantity.Mul(sign))
	}
}

// incomingPrice resuelve el costo unitario de una entrada a ubicación interna.
// Traslados: el costo que salió del origen. Ajustes: costo manual, precio, promedio vigente o
// costo estándar. Resto: precio de la línea o costo estándar.
func incomingPrice(p *entity.Picking, m *entity.StockMove, prod *entity.Product, dest *entity.StockValuation, issued *inventory.Valuation) decimal.Decimal {
	if issued != nil {
		return issued.UnitCost
	}
	if p.TypeCode == entity.PickingTypeADJ {
		switch {
		case m.HasCostOverride():
			return *m.CostAtAdjustment
		case m.PriceUnit.IsPositive():
			return m.PriceUnit
		case dest.UnitCost.IsPositive():
			return dest.UnitCost
		}
		return prod.StandardPrice
	}
	if m.PriceUnit.IsPositive() {
		return m.PriceUnit
	}
	return prod.StandardPrice
}

func valuationFor(vals map[entity.QuantKey]*entity.StockValuation, companyID string, k entity.QuantKey) *entity.StockValuation {
	v, ok := vals[k]
	if !ok {
		v = &entity.StockValuation{CompanyID: companyID, ProductID: k.ProductID, LocationID: k.LocationID}
		vals[k] = v
	}
	return v
}

func balanceOf(v *entity.StockValuation) inventory.CostBalance {
	return inventory.CostBalance{Quantity: v.Quantity, UnitCost: v.UnitCost, Value: v.Value}
}

func storeBalance(v *entity.StockValuation, b inventory.CostBalance, now time.Time) {
	v.Quantity, v.UnitCost, v.Value = b.Quantity, b.UnitCost, b.Value
	v.UpdatedAt = now
}

// afterValidate ejecuta los efectos posteriores al commit. Sus errores no revierten el validate.
func (uc *PickingUseCase) afterValidate(ctx context.Context, ev ValidatedEvent) {
	for _, h := range uc.hooks {
		if err := h.OnValidated(ctx, ev); err != nil {
			uc.log.Warn().Err(err).
				Str("company_id", ev.CompanyID).
				Str("picking_id", ev.PickingID).
				Msg("efecto posterior a validación falló")
		}
	}
}
