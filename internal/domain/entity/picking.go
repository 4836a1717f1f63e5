package entity

import "time"

// Tipos de documento de bodega.
const (
	PickingTypeIN  = "IN"  // entrada (compra)
	PickingTypeOUT = "OUT" // salida (venta, consumo)
	PickingTypeINT = "INT" // traslado interno
	PickingTypeADJ = "ADJ" // ajuste de inventario
	PickingTypeRET = "RET" // devolución
)

// Estados del picking.
const (
	PickingDraft     = "draft"
	PickingReady     = "ready"
	PickingDone      = "done"
	PickingCancelled = "cancelled"
)

// ValidPickingType indica si t es un tipo de documento soportado.
func ValidPickingType(t string) bool {
	switch t {
	case PickingTypeIN, PickingTypeOUT, PickingTypeINT, PickingTypeADJ, PickingTypeRET:
		return true
	}
	return false
}

// Picking es el encabezado de un documento de bodega compuesto por uno o más movimientos.
// Solo se modifica en draft/ready; una vez done es inmutable.
type Picking struct {
	ID                  string
	CompanyID           string
	Reference           string
	TypeCode            string
	State               string
	LocationSrcID       string
	LocationDestID      string
	PartnerID           string
	EmployeeID          string
	PurchaseOrder       string
	AdjustmentReason    string
	CustomOperationType string
	ScheduledDate       *time.Time
	DateTransfer        *time.Time
	AccountingDate      *time.Time
	DoneAt              *time.Time
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EffectiveDate es la fecha con la que el picking entra al Kardex.
func (p *Picking) EffectiveDate() time.Time {
	switch {
	case p.DateTransfer != nil:
		return *p.DateTransfer
	case p.AccountingDate != nil:
		return *p.AccountingDate
	case p.DoneAt != nil:
		return *p.DoneAt
	}
	return p.CreatedAt
}

// AffectedLocationID devuelve la ubicación física de un ajuste.
func (p *Picking) AffectedLocationID() string {
	if p.LocationDestID != "" {
		return p.LocationDestID
	}
	return p.LocationSrcID
}
