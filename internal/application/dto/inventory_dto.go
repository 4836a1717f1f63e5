package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatePickingRequest body para POST /api/pickings.
type CreatePickingRequest struct {
	TypeCode            string     `json:"type_code" validate:"required,oneof=IN OUT INT ADJ RET"`
	LocationSrcID       string     `json:"location_src_id,omitempty"`
	LocationDestID      string     `json:"location_dest_id,omitempty"`
	PartnerID           string     `json:"partner_id,omitempty"`
	EmployeeID          string     `json:"employee_id,omitempty"`
	PurchaseOrder       string     `json:"purchase_order,omitempty" validate:"max=64"`
	AdjustmentReason    string     `json:"adjustment_reason,omitempty" validate:"max=255"`
	CustomOperationType string     `json:"custom_operation_type,omitempty"`
	ScheduledDate       *time.Time `json:"scheduled_date,omitempty"`
	DateTransfer        *time.Time `json:"date_transfer,omitempty"`
	AccountingDate      *time.Time `json:"accounting_date,omitempty"`
}

// AddMoveRequest body para POST /api/pickings/:id/moves. En ADJ la cantidad lleva signo.
type AddMoveRequest struct {
	ProductID        string           `json:"product_id" validate:"required"`
	Quantity         decimal.Decimal  `json:"quantity"`
	LocationSrcID    string           `json:"location_src_id,omitempty"`
	LocationDestID   string           `json:"location_dest_id,omitempty"`
	PriceUnit        decimal.Decimal  `json:"price_unit"`
	CostAtAdjustment *decimal.Decimal `json:"cost_at_adjustment,omitempty"`
}

// TrackingItem serie o lote enviado al validar.
type TrackingItem struct {
	Name     string          `json:"name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ValidatePickingRequest body para POST /api/pickings/:id/validate: series/lotes por id de movimiento.
type ValidatePickingRequest struct {
	Tracking map[string][]TrackingItem `json:"tracking,omitempty" validate:"dive,dive"`
}

// PickingResponse encabezado de picking.
type PickingResponse struct {
	ID                  string     `json:"id"`
	Reference           string     `json:"reference"`
	TypeCode            string     `json:"type_code"`
	State               string     `json:"state"`
	LocationSrcID       string     `json:"location_src_id,omitempty"`
	LocationDestID      string     `json:"location_dest_id,omitempty"`
	PartnerID           string     `json:"partner_id,omitempty"`
	EmployeeID          string     `json:"employee_id,omitempty"`
	PurchaseOrder       string     `json:"purchase_order,omitempty"`
	AdjustmentReason    string     `json:"adjustment_reason,omitempty"`
	CustomOperationType string     `json:"custom_operation_type,omitempty"`
	ScheduledDate       *time.Time `json:"scheduled_date,omitempty"`
	DateTransfer        *time.Time `json:"date_transfer,omitempty"`
	AccountingDate      *time.Time `json:"accounting_date,omitempty"`
	DoneAt              *time.Time `json:"done_at,omitempty"`
	CreatedBy           string     `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// MoveLineResponse detalle de serie/lote validado.
type MoveLineResponse struct {
	LotName  string          `json:"lot_name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MoveResponse línea de un picking.
type MoveResponse struct {
	ID               string             `json:"id"`
	ProductID        string             `json:"product_id"`
	Quantity         decimal.Decimal    `json:"quantity"`
	LocationSrcID    string             `json:"location_src_id,omitempty"`
	LocationDestID   string             `json:"location_dest_id,omitempty"`
	PriceUnit        decimal.Decimal    `json:"price_unit"`
	CostAtAdjustment *decimal.Decimal   `json:"cost_at_adjustment,omitempty"`
	Value            decimal.Decimal    `json:"value"`
	State            string             `json:"state"`
	Sequence         int                `json:"sequence"`
	Lines            []MoveLineResponse `json:"lines,omitempty"`
}

// PickingDetailResponse picking con movimientos.
type PickingDetailResponse struct {
	PickingResponse
	Moves []MoveResponse `json:"moves"`
}

// AvailableStockQuery query de GET /api/stock/available.
type AvailableStockQuery struct {
	ProductID  string `query:"product_id" validate:"required"`
	LocationID string `query:"location_id" validate:"required"`
}

// LotBalanceResponse saldo por lote.
type LotBalanceResponse struct {
	LotID     string          `json:"lot_id,omitempty"`
	Physical  decimal.Decimal `json:"physical"`
	Reserved  decimal.Decimal `json:"reserved"`
	Available decimal.Decimal `json:"available"`
}

// AvailableStockResponse saldo de un producto en una ubicación.
type AvailableStockResponse struct {
	ProductID  string               `json:"product_id"`
	LocationID string               `json:"location_id"`
	Physical   decimal.Decimal      `json:"physical"`
	Reserved   decimal.Decimal      `json:"reserved"`
	Available  decimal.Decimal      `json:"available"`
	Lots       []LotBalanceResponse `json:"lots,omitempty"`
}
