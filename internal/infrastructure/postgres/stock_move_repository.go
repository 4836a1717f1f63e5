package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

var (
	_ repository.StockMoveRepository = (*StockMoveRepo)(nil)
	_ repository.MoveLineRepository  = (*MoveLineRepo)(nil)
)

// StockMoveRepo implementación de StockMoveRepository sobre PostgreSQL.
type StockMoveRepo struct {
	q Querier
}

// NewStockMoveRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMoveRepository(q Querier) *StockMoveRepo {
	return &StockMoveRepo{q: q}
}

const moveColumns = `id, company_id, picking_id, product_id, quantity, location_src_id, location_dest_id,
	price_unit, cost_at_adjustment, value, state, sequence, created_at, updated_at`

// Create persiste un movimiento.
func (r *StockMoveRepo) Create(ctx context.Context, m *entity.StockMove) error {
	query := `INSERT INTO stock_moves (` + moveColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.CompanyID, m.PickingID, m.ProductID, m.Quantity,
		nullString(m.LocationSrcID), nullString(m.LocationDestID),
		m.PriceUnit, toNullDecimal(m.CostAtAdjustment), m.Value, m.State, m.Sequence, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert stock move: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento de la empresa.
func (r *StockMoveRepo) GetByID(ctx context.Context, companyID, id string) (*entity.StockMove, error) {
	row := r.q.QueryRow(ctx, `SELECT `+moveColumns+` FROM stock_moves WHERE company_id = $1 AND id = $2`, companyID, id)
	m, err := scanMove(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("stock_move", id)
		}
		return nil, fmt.Errorf("get stock move: %w", err)
	}
	return m, nil
}

// ListByPicking devuelve los movimientos del picking por secuencia.
func (r *StockMoveRepo) ListByPicking(ctx context.Context, pickingID string) ([]*entity.StockMove, error) {
	rows, err := r.q.Query(ctx, `SELECT `+moveColumns+` FROM stock_moves WHERE picking_id = $1 ORDER BY sequence, id`, pickingID)
	if err != nil {
		return nil, fmt.Errorf("list stock moves: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockMove
	for rows.Next() {
		m, err := scanMove(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock move: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Update reescribe cantidad, ubicaciones, precio, valor y estado.
func (r *StockMoveRepo) Update(ctx context.Context, m *entity.StockMove) error {
	query := `
		UPDATE stock_moves SET quantity = $3, location_src_id = $4, location_dest_id = $5, price_unit = $6,
			cost_at_adjustment = $7, value = $8, state = $9, updated_at = $10
		WHERE company_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query,
		m.CompanyID, m.ID, m.Quantity, nullString(m.LocationSrcID), nullString(m.LocationDestID),
		m.PriceUnit, toNullDecimal(m.CostAtAdjustment), m.Value, m.State, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update stock move: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("stock_move", m.ID)
	}
	return nil
}

// Delete elimina un movimiento (solo pickings en draft).
func (r *StockMoveRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM stock_moves WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete stock move: %w", err)
	}
	return nil
}

// SetStateByPicking propaga el estado del encabezado.
func (r *StockMoveRepo) SetStateByPicking(ctx context.Context, pickingID, state string) error {
	_, err := r.q.Exec(ctx, `UPDATE stock_moves SET state = $2, updated_at = now() WHERE picking_id = $1`, pickingID, state)
	if err != nil {
		return fmt.Errorf("set stock move state: %w", err)
	}
	return nil
}

func scanMove(row pgx.Row) (*entity.StockMove, error) {
	var m entity.StockMove
	var src, dest *string
	var override decimal.NullDecimal
	err := row.Scan(
		&m.ID, &m.CompanyID, &m.PickingID, &m.ProductID, &m.Quantity, &src, &dest,
		&m.PriceUnit, &override, &m.Value, &m.State, &m.Sequence, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.LocationSrcID, m.LocationDestID = derefString(src), derefString(dest)
	if override.Valid {
		v := override.Decimal
		m.CostAtAdjustment = &v
	}
	return &m, nil
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// MoveLineRepo detalle de series/lotes.
type MoveLineRepo struct {
	q Querier
}

// NewMoveLineRepository construye el adaptador.
func NewMoveLineRepository(q Querier) *MoveLineRepo {
	return &MoveLineRepo{q: q}
}

// CreateBatch inserta todas las líneas en un único viaje a la BD.
func (r *MoveLineRepo) CreateBatch(ctx context.Context, lines []*entity.StockMoveLine) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`
			INSERT INTO stock_move_lines (id, move_id, product_id, lot_name, quantity, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, l.MoveID, l.ProductID, l.LotName, l.Quantity, l.CreatedAt)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()
	for range lines {
		if _, err := br.Exec(); err != nil {
			if isUniqueViolation(err) {
				return domain.NewBusinessRuleError(domain.CodeDuplicateSerial, "serie ya registrada en el movimiento")
			}
			return fmt.Errorf("insert move line: %w", err)
		}
	}
	return nil
}

// ListByMove devuelve las líneas en orden de inserción.
func (r *MoveLineRepo) ListByMove(ctx context.Context, moveID string) ([]*entity.StockMoveLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, move_id, product_id, lot_name, quantity, created_at
		FROM stock_move_lines WHERE move_id = $1 ORDER BY created_at, lot_name`, moveID)
	if err != nil {
		return nil, fmt.Errorf("list move lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockMoveLine
	for rows.Next() {
		var l entity.StockMoveLine
		if err := rows.Scan(&l.ID, &l.MoveID, &l.ProductID, &l.LotName, &l.Quantity, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan move line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
