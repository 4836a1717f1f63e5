package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentLineRequest línea de ajuste. Quantity positiva entra, negativa sale.
type AdjustmentLineRequest struct {
	ProductID        string           `json:"product_id"`
	Quantity         decimal.Decimal  `json:"quantity"`
	PriceUnit        decimal.Decimal  `json:"price_unit"`
	CostAtAdjustment *decimal.Decimal `json:"cost_at_adjustment,omitempty"`
	Tracking         []TrackingItem   `json:"tracking,omitempty"`
}

// PostAdjustmentsRequest body para POST /api/adjustments. Los errores por línea los reporta
// el caso de uso completos; aquí solo se exige la forma.
type PostAdjustmentsRequest struct {
	LocationID          string                  `json:"location_id" validate:"required"`
	Reason              string                  `json:"reason" validate:"required,max=255"`
	CustomOperationType string                  `json:"custom_operation_type,omitempty"`
	AccountingDate      *time.Time              `json:"accounting_date" validate:"required"`
	Lines               []AdjustmentLineRequest `json:"lines" validate:"required,min=1"`
}
