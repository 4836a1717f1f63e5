package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockValuation es el costo promedio ponderado vigente de un producto en una ubicación interna.
type StockValuation struct {
	CompanyID  string
	ProductID  string
	LocationID string
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	Value      decimal.Decimal
	UpdatedAt  time.Time
}
