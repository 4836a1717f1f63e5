package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

var _ repository.KardexRepository = (*KardexRepo)(nil)

// KardexRepo lectura del historial done y de kardex_snapshots.
type KardexRepo struct {
	q Querier
}

// NewKardexRepository construye el adaptador. Pasar pool o tx (Querier).
func NewKardexRepository(q Querier) *KardexRepo {
	return &KardexRepo{q: q}
}

// Un extremo está en alcance si es interno y, con bodega filtrada, pertenece a ella.
const kardexMovesQuery = `
	WITH scoped AS (
		SELECT m.id, m.picking_id, p.reference, p.type_code, m.product_id,
			COALESCE(p.date_transfer, p.accounting_date, p.done_at, p.created_at) AS effective_date,
			m.quantity, m.price_unit, m.cost_at_adjustment,
			COALESCE(ls.type = 'internal' AND ($2::text = '' OR ls.warehouse_id = $2), false) AS src_in_scope,
			COALESCE(ld.type = 'internal' AND ($2::text = '' OR ld.warehouse_id = $2), false) AS dest_in_scope
		FROM stock_moves m
		JOIN pickings p ON p.id = m.picking_id
		LEFT JOIN locations ls ON ls.id = m.location_src_id
		LEFT JOIN locations ld ON ld.id = m.location_dest_id
		WHERE m.company_id = $1 AND m.state = 'done'
			AND ($3::text[] IS NULL OR m.product_id = ANY($3))
	)
	SELECT id, picking_id, reference, type_code, product_id, effective_date, quantity, price_unit,
		cost_at_adjustment, src_in_scope, dest_in_scope
	FROM scoped
	WHERE (src_in_scope OR dest_in_scope)
		AND ($4::timestamptz IS NULL OR effective_date >= $4)
		AND ($5::timestamptz IS NULL OR effective_date < $5)
	ORDER BY effective_date, id`

// ListDoneMoves devuelve los movimientos done en [From, To) que tocan el alcance.
func (r *KardexRepo) ListDoneMoves(ctx context.Context, companyID string, f repository.KardexMoveFilter) ([]entity.KardexMove, error) {
	var products []string
	if len(f.ProductIDs) > 0 {
		products = f.ProductIDs
	}
	rows, err := r.q.Query(ctx, kardexMovesQuery, companyID, f.WarehouseID, products, utcPtr(f.From), utcPtr(f.To))
	if err != nil {
		return nil, fmt.Errorf("list kardex moves: %w", err)
	}
	defer rows.Close()
	var out []entity.KardexMove
	for rows.Next() {
		var m entity.KardexMove
		var override decimal.NullDecimal
		if err := rows.Scan(&m.MoveID, &m.PickingID, &m.Reference, &m.TypeCode, &m.ProductID, &m.Date,
			&m.Quantity, &m.PriceUnit, &override, &m.SrcInScope, &m.DestInScope); err != nil {
			return nil, fmt.Errorf("scan kardex move: %w", err)
		}
		if override.Valid {
			v := override.Decimal
			m.CostAtAdjustment = &v
		}
		m.Date = m.Date.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// CompaniesWithMoves empresas con historial done.
func (r *KardexRepo) CompaniesWithMoves(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT company_id FROM stock_moves WHERE state = 'done' ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("list companies with moves: %w", err)
	}
	return collectStrings(rows)
}

// ProductsWithMoves productos con historial done en el alcance, ordenados.
func (r *KardexRepo) ProductsWithMoves(ctx context.Context, companyID, warehouseID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT m.product_id
		FROM stock_moves m
		LEFT JOIN locations ls ON ls.id = m.location_src_id
		LEFT JOIN locations ld ON ld.id = m.location_dest_id
		WHERE m.company_id = $1 AND m.state = 'done'
			AND (COALESCE(ls.type = 'internal' AND ($2::text = '' OR ls.warehouse_id = $2), false)
				OR COALESCE(ld.type = 'internal' AND ($2::text = '' OR ld.warehouse_id = $2), false))
		ORDER BY m.product_id`, companyID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list products with moves: %w", err)
	}
	return collectStrings(rows)
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSnapshot saldo precalculado más reciente con as_of <= at.
func (r *KardexRepo) LatestSnapshot(ctx context.Context, companyID, productID, warehouseID string, at time.Time) (*entity.KardexSnapshot, error) {
	var s entity.KardexSnapshot
	err := r.q.QueryRow(ctx, `
		SELECT company_id, product_id, warehouse_id, as_of, quantity, unit_cost, value, created_at
		FROM kardex_snapshots
		WHERE company_id = $1 AND product_id = $2 AND warehouse_id = $3 AND as_of <= $4
		ORDER BY as_of DESC LIMIT 1`,
		companyID, productID, warehouseID, at.UTC(),
	).Scan(&s.CompanyID, &s.ProductID, &s.WarehouseID, &s.AsOf, &s.Quantity, &s.UnitCost, &s.Value, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get kardex snapshot: %w", err)
	}
	s.AsOf = s.AsOf.UTC()
	return &s, nil
}

// HistoryVersion versión del historial de (empresa, producto). El registro se crea si falta para
// que SaveSnapshot tenga una fila que bloquear contra un validate en curso.
func (r *KardexRepo) HistoryVersion(ctx context.Context, companyID, productID string) (int64, error) {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO kardex_versions (company_id, product_id) VALUES ($1, $2)
		ON CONFLICT (company_id, product_id) DO NOTHING`, companyID, productID); err != nil {
		return 0, fmt.Errorf("ensure kardex version: %w", err)
	}
	var v int64
	err := r.q.QueryRow(ctx, `
		SELECT version FROM kardex_versions WHERE company_id = $1 AND product_id = $2`,
		companyID, productID).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("get kardex version: %w", err)
	}
	return v, nil
}

// BumpHistoryVersions incrementa la versión de cada producto. Los ids se ordenan para que dos
// validates tomen los bloqueos de fila en el mismo orden.
func (r *KardexRepo) BumpHistoryVersions(ctx context.Context, companyID string, productIDs []string) error {
	ids := append([]string(nil), productIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO kardex_versions (company_id, product_id, version) VALUES ($1, $2, 1)
			ON CONFLICT (company_id, product_id) DO UPDATE SET version = kardex_versions.version + 1`,
			companyID, id); err != nil {
			return fmt.Errorf("bump kardex version %s: %w", id, err)
		}
	}
	return nil
}

// SaveSnapshot inserta o reemplaza el saldo de (producto, bodega, as_of) si la versión del
// historial sigue siendo version. FOR SHARE espera a un validate sin confirmar sobre el producto
// y relee la versión que este deja.
func (r *KardexRepo) SaveSnapshot(ctx context.Context, s *entity.KardexSnapshot, version int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		WITH v AS (
			SELECT version FROM kardex_versions
			WHERE company_id = $1 AND product_id = $2
			FOR SHARE
		)
		INSERT INTO kardex_snapshots (company_id, product_id, warehouse_id, as_of, quantity, unit_cost, value, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8 FROM v WHERE v.version = $9
		ON CONFLICT (company_id, product_id, warehouse_id, as_of)
		DO UPDATE SET quantity = EXCLUDED.quantity, unit_cost = EXCLUDED.unit_cost,
			value = EXCLUDED.value, created_at = EXCLUDED.created_at`,
		s.CompanyID, s.ProductID, s.WarehouseID, s.AsOf.UTC(), s.Quantity, s.UnitCost, s.Value, s.CreatedAt, version)
	if err != nil {
		return false, fmt.Errorf("save kardex snapshot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteSnapshotsAfter invalida los saldos posteriores a from (un validate con fecha pasada los deja obsoletos).
func (r *KardexRepo) DeleteSnapshotsAfter(ctx context.Context, companyID string, productIDs []string, from time.Time) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `
		DELETE FROM kardex_snapshots WHERE company_id = $1 AND product_id = ANY($2) AND as_of > $3`,
		companyID, productIDs, from.UTC())
	if err != nil {
		return fmt.Errorf("delete kardex snapshots: %w", err)
	}
	return nil
}
