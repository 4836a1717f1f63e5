package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuantKey identifica un saldo materializado. LotID vacío = sin lote.
type QuantKey struct {
	ProductID  string
	LocationID string
	LotID      string
}

// Less ordena claves para bloquear filas siempre en el mismo orden.
func (k QuantKey) Less(o QuantKey) bool {
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	if k.LocationID != o.LocationID {
		return k.LocationID < o.LocationID
	}
	return k.LotID < o.LotID
}

// StockQuant es el saldo físico/reservado por producto, ubicación y lote.
type StockQuant struct {
	CompanyID        string
	ProductID        string
	LocationID       string
	LotID            string
	PhysicalQuantity decimal.Decimal
	ReservedQuantity decimal.Decimal
	UpdatedAt        time.Time
}

// Key devuelve la clave del quant.
func (q *StockQuant) Key() QuantKey {
	return QuantKey{ProductID: q.ProductID, LocationID: q.LocationID, LotID: q.LotID}
}

// Available = max(0, físico − reservado).
func (q *StockQuant) Available() decimal.Decimal {
	return decimal.Max(decimal.Zero, q.PhysicalQuantity.Sub(q.ReservedQuantity))
}

// Balance devuelve físico − reservado sin acotar (puede ser negativo si se viola la invariante).
func (q *StockQuant) Balance() decimal.Decimal {
	return q.PhysicalQuantity.Sub(q.ReservedQuantity)
}

// StockReservation registra cuánto reservó un movimiento en un quant, para liberarlo exacto.
type StockReservation struct {
	PickingID  string
	MoveID     string
	ProductID  string
	LocationID string
	LotID      string
	Quantity   decimal.Decimal
}

// Key devuelve la clave del quant reservado.
func (r *StockReservation) Key() QuantKey {
	return QuantKey{ProductID: r.ProductID, LocationID: r.LocationID, LotID: r.LotID}
}
