package entity

// Tipos de ubicación.
const (
	LocationInternal   = "internal"
	LocationVendor     = "vendor"
	LocationCustomer   = "customer"
	LocationInventory  = "inventory" // virtual de ajustes
	LocationProduction = "production"
	LocationTransit    = "transit"
)

// Location representa una ubicación física o virtual. WarehouseID solo aplica a las internas.
type Location struct {
	ID          string
	CompanyID   string
	Path        string // ej. "BOD1/Stock/Estante A"
	Type        string
	Category    string
	WarehouseID string
}

// IsInternal indica si la ubicación mantiene stock físico propio.
func (l *Location) IsInternal() bool { return l != nil && l.Type == LocationInternal }

// ValidLocationType indica si t es un tipo de ubicación conocido.
func ValidLocationType(t string) bool {
	switch t {
	case LocationInternal, LocationVendor, LocationCustomer, LocationInventory, LocationProduction, LocationTransit:
		return true
	}
	return false
}
