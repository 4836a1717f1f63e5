package inventory

import "github.com/shopspring/decimal"

// CostCalculator implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((max(0,StockActual) * CostoActual) + (CantEntrada * CostoEntrada)) / (max(0,StockActual) + CantEntrada)
// Si la cantidad resultante es <= 0 devuelve el costo de entrada.
func CostCalculator(stockActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	base := decimal.Max(decimal.Zero, stockActual)
	sum := base.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return RoundCost(costoEntrada)
	}
	num := base.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return RoundCost(num.Div(sum))
}

// CostBalance es el saldo valorizado sobre el que opera el costo promedio:
// una ubicación al validar o el alcance de un Kardex al reconstruir.
type CostBalance struct {
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
	Value    decimal.Decimal
}

// Valuation es el resultado de valorizar un movimiento.
type Valuation struct {
	UnitCost decimal.Decimal
	Value    decimal.Decimal
}

// Receive aplica un evento que incrementa cantidad.
func (b CostBalance) Receive(qty, price decimal.Decimal) (CostBalance, Valuation) {
	price = RoundCost(price)
	v := Valuation{UnitCost: price, Value: Value(qty, price)}
	next := CostBalance{
		Quantity: SnapZero(b.Quantity.Add(qty)),
		UnitCost: CostCalculator(b.Quantity, b.UnitCost, qty, price),
		Value:    SnapZero(RoundValue(b.Value.Add(v.Value))),
	}
	return next.closeIfEmpty(), v
}

// Issue aplica un evento que disminuye cantidad. Si override es positivo se usa como costo
// unitario de la salida; si no, el promedio vigente. El promedio no cambia con las salidas.
func (b CostBalance) Issue(qty decimal.Decimal, override *decimal.Decimal) (CostBalance, Valuation) {
	unit := b.UnitCost
	if override != nil && override.GreaterThan(decimal.Zero) {
		unit = RoundCost(*override)
	}
	v := Valuation{UnitCost: unit, Value: Value(qty, unit)}
	next := CostBalance{
		Quantity: SnapZero(b.Quantity.Sub(qty)),
		UnitCost: b.UnitCost,
		Value:    SnapZero(RoundValue(b.Value.Sub(v.Value))),
	}
	return next.closeIfEmpty(), v
}

// closeIfEmpty fuerza valor cero cuando no queda cantidad.
func (b CostBalance) closeIfEmpty() CostBalance {
	if b.Quantity.IsZero() {
		b.Value = decimal.Zero
	}
	return b
}
