package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

var _ repository.PickingRepository = (*PickingRepo)(nil)

// PickingRepo implementación de PickingRepository sobre PostgreSQL (usable con pool o tx).
type PickingRepo struct {
	q Querier
}

// NewPickingRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPickingRepository(q Querier) *PickingRepo {
	return &PickingRepo{q: q}
}

const pickingColumns = `id, company_id, reference, type_code, state, location_src_id, location_dest_id,
	partner_id, employee_id, purchase_order, adjustment_reason, custom_operation_type,
	scheduled_date, date_transfer, accounting_date, done_at, created_by, created_at, updated_at`

// Create persiste un encabezado nuevo.
func (r *PickingRepo) Create(ctx context.Context, p *entity.Picking) error {
	query := `INSERT INTO pickings (` + pickingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.CompanyID, p.Reference, p.TypeCode, p.State,
		nullString(p.LocationSrcID), nullString(p.LocationDestID), nullString(p.PartnerID), nullString(p.EmployeeID),
		p.PurchaseOrder, p.AdjustmentReason, p.CustomOperationType,
		utcPtr(p.ScheduledDate), utcPtr(p.DateTransfer), utcPtr(p.AccountingDate), utcPtr(p.DoneAt),
		p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert picking: %w", err)
	}
	return nil
}

// GetByID obtiene un picking de la empresa; si no existe (o es de otra empresa) devuelve NotFoundError.
func (r *PickingRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Picking, error) {
	return r.get(ctx, `SELECT `+pickingColumns+` FROM pickings WHERE company_id = $1 AND id = $2`, companyID, id)
}

// GetForUpdate como GetByID pero bloquea la fila hasta el fin de la transacción.
func (r *PickingRepo) GetForUpdate(ctx context.Context, companyID, id string) (*entity.Picking, error) {
	return r.get(ctx, `SELECT `+pickingColumns+` FROM pickings WHERE company_id = $1 AND id = $2 FOR UPDATE`, companyID, id)
}

func (r *PickingRepo) get(ctx context.Context, query, companyID, id string) (*entity.Picking, error) {
	var p entity.Picking
	var src, dest, partner, empl *string
	err := r.q.QueryRow(ctx, query, companyID, id).Scan(
		&p.ID, &p.CompanyID, &p.Reference, &p.TypeCode, &p.State, &src, &dest, &partner, &empl,
		&p.PurchaseOrder, &p.AdjustmentReason, &p.CustomOperationType,
		&p.ScheduledDate, &p.DateTransfer, &p.AccountingDate, &p.DoneAt,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("picking", id)
		}
		return nil, fmt.Errorf("get picking: %w", err)
	}
	p.LocationSrcID, p.LocationDestID = derefString(src), derefString(dest)
	p.PartnerID, p.EmployeeID = derefString(partner), derefString(empl)
	return &p, nil
}

// Update reescribe los campos mutables del encabezado.
func (r *PickingRepo) Update(ctx context.Context, p *entity.Picking) error {
	query := `
		UPDATE pickings SET state = $3, location_src_id = $4, location_dest_id = $5, partner_id = $6,
			employee_id = $7, purchase_order = $8, adjustment_reason = $9, custom_operation_type = $10,
			scheduled_date = $11, date_transfer = $12, accounting_date = $13, done_at = $14, updated_at = $15
		WHERE company_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query,
		p.CompanyID, p.ID, p.State,
		nullString(p.LocationSrcID), nullString(p.LocationDestID), nullString(p.PartnerID), nullString(p.EmployeeID),
		p.PurchaseOrder, p.AdjustmentReason, p.CustomOperationType,
		utcPtr(p.ScheduledDate), utcPtr(p.DateTransfer), utcPtr(p.AccountingDate), utcPtr(p.DoneAt), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update picking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("picking", p.ID)
	}
	return nil
}
