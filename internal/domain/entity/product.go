package entity

import "github.com/shopspring/decimal"

// Granularidad de identidad del producto.
const (
	TrackingNone   = "none"
	TrackingLot    = "lot"
	TrackingSerial = "serial"
)

// Propiedad del stock.
const (
	OwnershipOwned     = "owned"     // propio de la empresa
	OwnershipConsigned = "consigned" // de un tercero (consignación)
)

// Product es el maestro de producto visto por el motor (solo lectura).
type Product struct {
	ID            string
	CompanyID     string
	SKU           string
	Name          string
	Tracking      string
	Ownership     string
	StandardPrice decimal.Decimal // costo estándar; respaldo cuando no hay precio de entrada
}

// IsTracked indica si el producto exige lotes o series al validar.
func (p *Product) IsTracked() bool {
	return p.Tracking == TrackingLot || p.Tracking == TrackingSerial
}

// Label devuelve el SKU (o el ID si no tiene) para mensajes de error.
func (p *Product) Label() string {
	if p.SKU != "" {
		return p.SKU
	}
	return p.ID
}
