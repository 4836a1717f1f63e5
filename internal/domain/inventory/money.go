package inventory

import "github.com/shopspring/decimal"

// Reglas de redondeo compartidas por el costo promedio y el Kardex.
// Cualquier cuantización de costos o valores debe pasar por estas funciones.
const (
	CostPlaces  int32 = 4 // costo unitario
	ValuePlaces int32 = 2 // valores monetarios
)

// dustThreshold: saldos a menos de esta distancia de cero se llevan a cero exacto.
var dustThreshold = decimal.New(5, -3)

// RoundCost cuantiza un costo unitario a 4 decimales (mitad hacia arriba).
func RoundCost(d decimal.Decimal) decimal.Decimal { return d.Round(CostPlaces) }

// RoundValue cuantiza un valor monetario a 2 decimales (mitad hacia arriba).
func RoundValue(d decimal.Decimal) decimal.Decimal { return d.Round(ValuePlaces) }

// SnapZero devuelve cero exacto si |d| < 0.005; evita acumular residuos en historias largas.
func SnapZero(d decimal.Decimal) decimal.Decimal {
	if d.Abs().LessThan(dustThreshold) {
		return decimal.Zero
	}
	return d
}

// Value calcula cantidad × costo unitario ya cuantizado a 2 decimales.
func Value(qty, unitCost decimal.Decimal) decimal.Decimal {
	return RoundValue(qty.Mul(unitCost))
}
