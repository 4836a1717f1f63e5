package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockMove es una línea producto-cantidad dentro de un picking.
// Quantity siempre es positiva; la dirección la dan las ubicaciones origen/destino.
type StockMove struct {
	ID               string
	CompanyID        string
	PickingID        string
	ProductID        string
	Quantity         decimal.Decimal
	LocationSrcID    string
	LocationDestID   string
	PriceUnit        decimal.Decimal
	CostAtAdjustment *decimal.Decimal // sobrescritura manual de costo para salidas
	Value            decimal.Decimal  // valor valorizado al validar
	State            string
	Sequence         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasCostOverride indica si hay costo manual positivo.
func (m *StockMove) HasCostOverride() bool {
	return m.CostAtAdjustment != nil && m.CostAtAdjustment.GreaterThan(decimal.Zero)
}

// StockMoveLine es el detalle de serie/lote de un movimiento validado.
type StockMoveLine struct {
	ID        string
	MoveID    string
	ProductID string
	LotName   string          // normalizado
	Quantity  decimal.Decimal // 1 para serie
	CreatedAt time.Time
}
