package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

var (
	_ repository.StockQuantRepository  = (*StockQuantRepo)(nil)
	_ repository.ReservationRepository = (*ReservationRepo)(nil)
	_ repository.ValuationRepository   = (*ValuationRepo)(nil)
)

// StockQuantRepo saldos por (producto, ubicación, lote). lot_id = '' para stock sin lote.
type StockQuantRepo struct {
	q Querier
}

// NewStockQuantRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockQuantRepository(q Querier) *StockQuantRepo {
	return &StockQuantRepo{q: q}
}

func splitKeys(keys []entity.QuantKey) (products, locations, lots []string) {
	products = make([]string, len(keys))
	locations = make([]string, len(keys))
	lots = make([]string, len(keys))
	for i, k := range keys {
		products[i], locations[i], lots[i] = k.ProductID, k.LocationID, k.LotID
	}
	return products, locations, lots
}

// Ensure inserta en cero los quants que faltan. No bloquea filas existentes.
func (r *StockQuantRepo) Ensure(ctx context.Context, companyID string, keys []entity.QuantKey) error {
	if len(keys) == 0 {
		return nil
	}
	products, locations, lots := splitKeys(keys)
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_quants (company_id, product_id, location_id, lot_id, physical_quantity, reserved_quantity, updated_at)
		SELECT $1, k.product_id, k.location_id, k.lot_id, 0, 0, now()
		FROM unnest($2::text[], $3::text[], $4::text[]) AS k(product_id, location_id, lot_id)
		ON CONFLICT (company_id, product_id, location_id, lot_id) DO NOTHING`,
		companyID, products, locations, lots)
	if err != nil {
		return fmt.Errorf("ensure stock quants: %w", err)
	}
	return nil
}

// LockByProductLocation bloquea todos los lotes de cada par en orden (producto, ubicación, lote).
// El ORDER BY se evalúa antes del bloqueo, así dos transacciones nunca se esperan en ciclo.
func (r *StockQuantRepo) LockByProductLocation(ctx context.Context, companyID string, pairs []entity.QuantKey) ([]*entity.StockQuant, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	products, locations, _ := splitKeys(pairs)
	rows, err := r.q.Query(ctx, `
		SELECT q.company_id, q.product_id, q.location_id, q.lot_id, q.physical_quantity, q.reserved_quantity, q.updated_at
		FROM stock_quants q
		JOIN unnest($2::text[], $3::text[]) AS k(product_id, location_id)
			ON q.product_id = k.product_id AND q.location_id = k.location_id
		WHERE q.company_id = $1
		ORDER BY q.product_id, q.location_id, q.lot_id
		FOR UPDATE OF q`,
		companyID, products, locations)
	if err != nil {
		return nil, fmt.Errorf("lock stock quants: %w", err)
	}
	return collectQuants(rows)
}

// Save escribe los quants modificados (upsert).
func (r *StockQuantRepo) Save(ctx context.Context, quants []*entity.StockQuant) error {
	if len(quants) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, qt := range quants {
		batch.Queue(`
			INSERT INTO stock_quants (company_id, product_id, location_id, lot_id, physical_quantity, reserved_quantity, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (company_id, product_id, location_id, lot_id)
			DO UPDATE SET physical_quantity = EXCLUDED.physical_quantity,
				reserved_quantity = EXCLUDED.reserved_quantity, updated_at = EXCLUDED.updated_at`,
			qt.CompanyID, qt.ProductID, qt.LocationID, qt.LotID, qt.PhysicalQuantity, qt.ReservedQuantity, now)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()
	for range quants {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save stock quant: %w", err)
		}
	}
	return nil
}

// List lectura sin bloqueo de los quants de un producto en una ubicación, por lote.
func (r *StockQuantRepo) List(ctx context.Context, companyID, productID, locationID string) ([]*entity.StockQuant, error) {
	rows, err := r.q.Query(ctx, `
		SELECT company_id, product_id, location_id, lot_id, physical_quantity, reserved_quantity, updated_at
		FROM stock_quants
		WHERE company_id = $1 AND product_id = $2 AND location_id = $3
		ORDER BY lot_id`, companyID, productID, locationID)
	if err != nil {
		return nil, fmt.Errorf("list stock quants: %w", err)
	}
	return collectQuants(rows)
}

func collectQuants(rows pgx.Rows) ([]*entity.StockQuant, error) {
	defer rows.Close()
	var out []*entity.StockQuant
	for rows.Next() {
		var q entity.StockQuant
		if err := rows.Scan(&q.CompanyID, &q.ProductID, &q.LocationID, &q.LotID,
			&q.PhysicalQuantity, &q.ReservedQuantity, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock quant: %w", err)
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}

// ReservationRepo registro de reservas por movimiento.
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador.
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

// Create inserta las reservas de un mark_ready.
func (r *ReservationRepo) Create(ctx context.Context, rs []*entity.StockReservation) error {
	if len(rs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, res := range rs {
		batch.Queue(`
			INSERT INTO stock_move_reservations (picking_id, move_id, product_id, location_id, lot_id, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			res.PickingID, res.MoveID, res.ProductID, res.LocationID, res.LotID, res.Quantity)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()
	for range rs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
	}
	return nil
}

// ListByPicking devuelve las reservas vigentes del picking.
func (r *ReservationRepo) ListByPicking(ctx context.Context, pickingID string) ([]*entity.StockReservation, error) {
	rows, err := r.q.Query(ctx, `
		SELECT picking_id, move_id, product_id, location_id, lot_id, quantity
		FROM stock_move_reservations WHERE picking_id = $1
		ORDER BY id`, pickingID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	var out []*entity.StockReservation
	for rows.Next() {
		var res entity.StockReservation
		if err := rows.Scan(&res.PickingID, &res.MoveID, &res.ProductID, &res.LocationID, &res.LotID, &res.Quantity); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

// DeleteByPicking elimina las reservas al liberar o consumir.
func (r *ReservationRepo) DeleteByPicking(ctx context.Context, pickingID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM stock_move_reservations WHERE picking_id = $1`, pickingID); err != nil {
		return fmt.Errorf("delete reservations: %w", err)
	}
	return nil
}

// ValuationRepo costo promedio por (producto, ubicación interna).
type ValuationRepo struct {
	q Querier
}

// NewValuationRepository construye el adaptador.
func NewValuationRepository(q Querier) *ValuationRepo {
	return &ValuationRepo{q: q}
}

// LockMany materializa en cero y bloquea las valoraciones en orden (producto, ubicación).
func (r *ValuationRepo) LockMany(ctx context.Context, companyID string, pairs []entity.QuantKey) (map[entity.QuantKey]*entity.StockValuation, error) {
	out := make(map[entity.QuantKey]*entity.StockValuation, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}
	products, locations, _ := splitKeys(pairs)
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_valuations (company_id, product_id, location_id, quantity, unit_cost, value, updated_at)
		SELECT $1, k.product_id, k.location_id, 0, 0, 0, now()
		FROM unnest($2::text[], $3::text[]) AS k(product_id, location_id)
		ON CONFLICT (company_id, product_id, location_id) DO NOTHING`,
		companyID, products, locations)
	if err != nil {
		return nil, fmt.Errorf("ensure valuations: %w", err)
	}
	rows, err := r.q.Query(ctx, `
		SELECT v.company_id, v.product_id, v.location_id, v.quantity, v.unit_cost, v.value, v.updated_at
		FROM stock_valuations v
		JOIN unnest($2::text[], $3::text[]) AS k(product_id, location_id)
			ON v.product_id = k.product_id AND v.location_id = k.location_id
		WHERE v.company_id = $1
		ORDER BY v.product_id, v.location_id
		FOR UPDATE OF v`,
		companyID, products, locations)
	if err != nil {
		return nil, fmt.Errorf("lock valuations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v entity.StockValuation
		if err := rows.Scan(&v.CompanyID, &v.ProductID, &v.LocationID, &v.Quantity, &v.UnitCost, &v.Value, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan valuation: %w", err)
		}
		out[entity.QuantKey{ProductID: v.ProductID, LocationID: v.LocationID}] = &v
	}
	return out, rows.Err()
}

// Save actualiza una valoración ya bloqueada.
func (r *ValuationRepo) Save(ctx context.Context, v *entity.StockValuation) error {
	_, err := r.q.Exec(ctx, `
		UPDATE stock_valuations SET quantity = $4, unit_cost = $5, value = $6, updated_at = now()
		WHERE company_id = $1 AND product_id = $2 AND location_id = $3`,
		v.CompanyID, v.ProductID, v.LocationID, v.Quantity, v.UnitCost, v.Value)
	if err != nil {
		return fmt.Errorf("save valuation: %w", err)
	}
	return nil
}
