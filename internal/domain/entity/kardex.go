package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de fila del Kardex.
const (
	KardexRowOpening = "OPENING"
	KardexRowMove    = "MOVE"
)

// KardexMove es un movimiento done tal como lo consume la reconstrucción del Kardex.
// SrcInScope/DestInScope ya resuelven si cada extremo cuenta para el filtro de bodega.
type KardexMove struct {
	MoveID           string
	PickingID        string
	Reference        string
	TypeCode         string
	ProductID        string
	Date             time.Time
	Quantity         decimal.Decimal
	PriceUnit        decimal.Decimal
	CostAtAdjustment *decimal.Decimal
	SrcInScope       bool
	DestInScope      bool
}

// KardexEntry es una fila derivada (no persistida) del libro valorizado.
type KardexEntry struct {
	ProductID    string          `json:"product_id"`
	Kind         string          `json:"kind"`
	Timestamp    time.Time       `json:"timestamp"`
	Reference    string          `json:"reference,omitempty"`
	TypeCode     string          `json:"type_code,omitempty"`
	MoveID       string          `json:"move_id,omitempty"`
	QtyIn        decimal.Decimal `json:"qty_in"`
	QtyOut       decimal.Decimal `json:"qty_out"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Value        decimal.Decimal `json:"value"`
	RunningQty   decimal.Decimal `json:"running_qty"`
	RunningValue decimal.Decimal `json:"running_value"`
	RunningCost  decimal.Decimal `json:"running_cost"`
}

// KardexSnapshot es un saldo precalculado de apertura al inicio de AsOf.
// WarehouseID vacío = todas las bodegas.
type KardexSnapshot struct {
	CompanyID   string
	ProductID   string
	WarehouseID string
	AsOf        time.Time
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	Value       decimal.Decimal
	CreatedAt   time.Time
}
