package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

var (
	_ repository.PickingRepository     = pickingRepo{}
	_ repository.StockMoveRepository   = moveRepo{}
	_ repository.MoveLineRepository    = moveLineRepo{}
	_ repository.StockQuantRepository  = quantRepo{}
	_ repository.ReservationRepository = reservationRepo{}
	_ repository.ValuationRepository   = valuationRepo{}
	_ repository.KardexRepository      = kardexRepo{}
	_ repository.ProductCatalog        = productCatalog{}
	_ repository.LocationCatalog       = locationCatalog{}
	_ repository.PartnerCatalog        = partnerCatalog{}
)

// ──────────────────────────────────────────────────────────────────────────────
// Pickings y movimientos
// ──────────────────────────────────────────────────────────────────────────────

type pickingRepo struct{ s *Store }

func (r pickingRepo) Create(_ context.Context, p *entity.Picking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Pickings.Create"); err != nil {
		return err
	}
	if _, ok := r.s.st.pickings[p.ID]; ok {
		return domain.ErrDuplicate
	}
	c := *p
	r.s.st.pickings[p.ID] = &c
	return nil
}

func (r pickingRepo) GetByID(_ context.Context, companyID, id string) (*entity.Picking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.pickings[id]
	if !ok || p.CompanyID != companyID {
		return nil, domain.NewNotFoundError("picking", id)
	}
	c := *p
	return &c, nil
}

func (r pickingRepo) GetForUpdate(ctx context.Context, companyID, id string) (*entity.Picking, error) {
	return r.GetByID(ctx, companyID, id)
}

func (r pickingRepo) Update(_ context.Context, p *entity.Picking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Pickings.Update"); err != nil {
		return err
	}
	if _, ok := r.s.st.pickings[p.ID]; !ok {
		return domain.NewNotFoundError("picking", p.ID)
	}
	c := *p
	r.s.st.pickings[p.ID] = &c
	return nil
}

type moveRepo struct{ s *Store }

func (r moveRepo) Create(_ context.Context, m *entity.StockMove) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Moves.Create"); err != nil {
		return err
	}
	c := *m
	r.s.st.moves[m.ID] = &c
	return nil
}

func (r moveRepo) GetByID(_ context.Context, companyID, id string) (*entity.StockMove, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.moves[id]
	if !ok || m.CompanyID != companyID {
		return nil, domain.NewNotFoundError("stock_move", id)
	}
	c := *m
	return &c, nil
}

func (r moveRepo) ListByPicking(_ context.Context, pickingID string) ([]*entity.StockMove, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.StockMove
	for _, m := range r.s.st.moves {
		if m.PickingID == pickingID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r moveRepo) Update(_ context.Context, m *entity.StockMove) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Moves.Update"); err != nil {
		return err
	}
	c := *m
	r.s.st.moves[m.ID] = &c
	return nil
}

func (r moveRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.st.moves, id)
	return nil
}

func (r moveRepo) SetStateByPicking(_ context.Context, pickingID, state string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.st.moves {
		if m.PickingID == pickingID {
			m.State = state
		}
	}
	return nil
}

type moveLineRepo struct{ s *Store }

func (r moveLineRepo) CreateBatch(_ context.Context, lines []*entity.StockMoveLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range lines {
		c := *l
		r.s.st.lines[l.MoveID] = append(r.s.st.lines[l.MoveID], &c)
	}
	return nil
}

func (r moveLineRepo) ListByMove(_ context.Context, moveID string) ([]*entity.StockMoveLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entity.StockMoveLine, 0, len(r.s.st.lines[moveID]))
	for _, l := range r.s.st.lines[moveID] {
		c := *l
		out = append(out, &c)
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Quants, reservas y valoraciones
// ──────────────────────────────────────────────────────────────────────────────

type quantRepo struct{ s *Store }

func (r quantRepo) Ensure(_ context.Context, companyID string, keys []entity.QuantKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, k := range keys {
		id := quantID{companyID, k}
		if _, ok := r.s.st.quants[id]; !ok {
			r.s.st.quants[id] = &entity.StockQuant{
				CompanyID: companyID, ProductID: k.ProductID, LocationID: k.LocationID, LotID: k.LotID,
				PhysicalQuantity: decimal.Zero, ReservedQuantity: decimal.Zero,
			}
		}
	}
	return nil
}

func (r quantRepo) LockByProductLocation(_ context.Context, companyID string, pairs []entity.QuantKey) ([]*entity.StockQuant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[entity.QuantKey]bool, len(pairs))
	for _, p := range pairs {
		want[entity.QuantKey{ProductID: p.ProductID, LocationID: p.LocationID}] = true
	}
	var out []*entity.StockQuant
	for id, q := range r.s.st.quants {
		if id.companyID != companyID || !want[entity.QuantKey{ProductID: q.ProductID, LocationID: q.LocationID}] {
			continue
		}
		c := *q
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (r quantRepo) Save(_ context.Context, quants []*entity.StockQuant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Quants.Save"); err != nil {
		return err
	}
	for _, q := range quants {
		c := *q
		r.s.st.quants[quantID{q.CompanyID, q.Key()}] = &c
	}
	return nil
}

func (r quantRepo) List(_ context.Context, companyID, productID, locationID string) ([]*entity.StockQuant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.StockQuant
	for id, q := range r.s.st.quants {
		if id.companyID == companyID && q.ProductID == productID && q.LocationID == locationID {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotID < out[j].LotID })
	return out, nil
}

type reservationRepo struct{ s *Store }

func (r reservationRepo) Create(_ context.Context, rs []*entity.StockReservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range rs {
		c := *res
		r.s.st.reservations = append(r.s.st.reservations, &c)
	}
	return nil
}

func (r reservationRepo) ListByPicking(_ context.Context, pickingID string) ([]*entity.StockReservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.StockReservation
	for _, res := range r.s.st.reservations {
		if res.PickingID == pickingID {
			c := *res
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r reservationRepo) DeleteByPicking(_ context.Context, pickingID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.st.reservations[:0]
	for _, res := range r.s.st.reservations {
		if res.PickingID != pickingID {
			kept = append(kept, res)
		}
	}
	r.s.st.reservations = kept
	return nil
}

type valuationRepo struct{ s *Store }

func (r valuationRepo) LockMany(_ context.Context, companyID string, pairs []entity.QuantKey) (map[entity.QuantKey]*entity.StockValuation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[entity.QuantKey]*entity.StockValuation, len(pairs))
	for _, p := range pairs {
		k := entity.QuantKey{ProductID: p.ProductID, LocationID: p.LocationID}
		if v, ok := r.s.st.valuations[quantID{companyID, k}]; ok {
			c := *v
			out[k] = &c
			continue
		}
		out[k] = &entity.StockValuation{CompanyID: companyID, ProductID: k.ProductID, LocationID: k.LocationID}
	}
	return out, nil
}

func (r valuationRepo) Save(_ context.Context, v *entity.StockValuation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *v
	r.s.st.valuations[quantID{v.CompanyID, entity.QuantKey{ProductID: v.ProductID, LocationID: v.LocationID}}] = &c
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Kardex
// ──────────────────────────────────────────────────────────────────────────────

type kardexRepo struct{ s *Store }

func (r kardexRepo) inScope(locID, warehouseID string) bool {
	l := r.s.locations[locID]
	return l.IsInternal() && (warehouseID == "" || l.WarehouseID == warehouseID)
}

func (r kardexRepo) ListDoneMoves(_ context.Context, companyID string, f repository.KardexMoveFilter) ([]entity.KardexMove, error) {
	out := r.listDoneMoves(companyID, f)
	r.s.mu.Lock()
	hook := r.s.afterList
	r.s.afterList = nil
	r.s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (r kardexRepo) listDoneMoves(companyID string, f repository.KardexMoveFilter) []entity.KardexMove {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	products := make(map[string]bool, len(f.ProductIDs))
	for _, id := range f.ProductIDs {
		products[id] = true
	}
	var out []entity.KardexMove
	for _, m := range r.s.st.moves {
		if m.CompanyID != companyID || m.State != entity.PickingDone {
			continue
		}
		if len(products) > 0 && !products[m.ProductID] {
			continue
		}
		p := r.s.st.pickings[m.PickingID]
		if p == nil {
			continue
		}
		date := p.EffectiveDate()
		if f.From != nil && date.Before(*f.From) {
			continue
		}
		if f.To != nil && !date.Before(*f.To) {
			continue
		}
		km := entity.KardexMove{
			MoveID:           m.ID,
			PickingID:        p.ID,
			Reference:        p.Reference,
			TypeCode:         p.TypeCode,
			ProductID:        m.ProductID,
			Date:             date,
			Quantity:         m.Quantity,
			PriceUnit:        m.PriceUnit,
			CostAtAdjustment: m.CostAtAdjustment,
			SrcInScope:       r.inScope(m.LocationSrcID, f.WarehouseID),
			DestInScope:      r.inScope(m.LocationDestID, f.WarehouseID),
		}
		if km.SrcInScope || km.DestInScope {
			out = append(out, km)
		}
	}
	inventory.SortKardexMoves(out)
	return out
}

func (r kardexRepo) CompaniesWithMoves(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, m := range r.s.st.moves {
		if m.State == entity.PickingDone && !seen[m.CompanyID] {
			seen[m.CompanyID] = true
			out = append(out, m.CompanyID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r kardexRepo) ProductsWithMoves(_ context.Context, companyID, warehouseID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, m := range r.s.st.moves {
		if m.CompanyID != companyID || m.State != entity.PickingDone || seen[m.ProductID] {
			continue
		}
		if r.inScope(m.LocationSrcID, warehouseID) || r.inScope(m.LocationDestID, warehouseID) {
			seen[m.ProductID] = true
			out = append(out, m.ProductID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r kardexRepo) LatestSnapshot(_ context.Context, companyID, productID, warehouseID string, at time.Time) (*entity.KardexSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *entity.KardexSnapshot
	for _, sn := range r.s.st.snapshots {
		if sn.CompanyID != companyID || sn.ProductID != productID || sn.WarehouseID != warehouseID || sn.AsOf.After(at) {
			continue
		}
		if best == nil || sn.AsOf.After(best.AsOf) {
			best = sn
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

func versionKey(companyID, productID string) string { return companyID + "|" + productID }

func (r kardexRepo) HistoryVersion(_ context.Context, companyID, productID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.st.versions[versionKey(companyID, productID)], nil
}

func (r kardexRepo) BumpHistoryVersions(_ context.Context, companyID string, productIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range productIDs {
		r.s.st.versions[versionKey(companyID, id)]++
	}
	return nil
}

func (r kardexRepo) SaveSnapshot(_ context.Context, s *entity.KardexSnapshot, version int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.st.versions[versionKey(s.CompanyID, s.ProductID)] != version {
		return false, nil
	}
	c := *s
	for i, sn := range r.s.st.snapshots {
		if sn.CompanyID == s.CompanyID && sn.ProductID == s.ProductID && sn.WarehouseID == s.WarehouseID && sn.AsOf.Equal(s.AsOf) {
			r.s.st.snapshots[i] = &c
			return true, nil
		}
	}
	r.s.st.snapshots = append(r.s.st.snapshots, &c)
	return true, nil
}

func (r kardexRepo) DeleteSnapshotsAfter(_ context.Context, companyID string, productIDs []string, from time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Kardex.DeleteSnapshotsAfter"); err != nil {
		return err
	}
	ids := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		ids[id] = true
	}
	kept := r.s.st.snapshots[:0]
	for _, sn := range r.s.st.snapshots {
		if sn.CompanyID == companyID && ids[sn.ProductID] && sn.AsOf.After(from) {
			continue
		}
		kept = append(kept, sn)
	}
	r.s.st.snapshots = kept
	return nil
}
