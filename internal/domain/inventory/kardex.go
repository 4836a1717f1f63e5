package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// SortKardexMoves ordena por (producto, fecha, movimiento). El id de movimiento desempata
// fechas iguales para que la reconstrucción sea siempre la misma.
func SortKardexMoves(moves []entity.KardexMove) {
	sort.SliceStable(moves, func(i, j int) bool {
		a, b := moves[i], moves[j]
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.MoveID < b.MoveID
	})
}

// ApplyKardexMove aplica un movimiento al saldo del alcance.
// ok = false cuando ningún extremo pertenece al alcance y el movimiento no genera fila.
// Un traslado con ambos extremos dentro del alcance genera una fila neutra (entra y sale lo mismo).
func ApplyKardexMove(bal CostBalance, m entity.KardexMove) (next CostBalance, row entity.KardexEntry, ok bool) {
	row = entity.KardexEntry{
		ProductID: m.ProductID,
		Kind:      entity.KardexRowMove,
		Timestamp: m.Date,
		Reference: m.Reference,
		TypeCode:  m.TypeCode,
		MoveID:    m.MoveID,
		QtyIn:     decimal.Zero,
		QtyOut:    decimal.Zero,
	}
	var v Valuation
	switch {
	case m.DestInScope && !m.SrcInScope:
		next, v = bal.Receive(m.Quantity, m.PriceUnit)
		row.QtyIn = m.Quantity
	case m.SrcInScope && !m.DestInScope:
		next, v = bal.Issue(m.Quantity, m.CostAtAdjustment)
		row.QtyOut = m.Quantity
	case m.SrcInScope && m.DestInScope:
		next = bal
		v = Valuation{UnitCost: bal.UnitCost, Value: Value(m.Quantity, bal.UnitCost)}
		row.QtyIn = m.Quantity
		row.QtyOut = m.Quantity
	default:
		return bal, entity.KardexEntry{}, false
	}
	row.UnitCost = v.UnitCost
	row.Value = v.Value
	fillRunning(&row, next)
	return next, row, true
}

// OpeningBalance reproduce los movimientos sobre start sin emitir filas.
// Los movimientos deben venir ordenados y pertenecer a un único producto.
func OpeningBalance(start CostBalance, moves []entity.KardexMove) CostBalance {
	bal := start
	for _, m := range moves {
		bal, _, _ = ApplyKardexMove(bal, m)
	}
	return bal
}

// ReplayProduct emite la fila de apertura del producto y luego una fila por movimiento.
func ReplayProduct(productID string, opening CostBalance, from time.Time, moves []entity.KardexMove) []entity.KardexEntry {
	rows := make([]entity.KardexEntry, 0, len(moves)+1)
	rows = append(rows, OpeningRow(productID, opening, from))
	bal := opening
	for _, m := range moves {
		var row entity.KardexEntry
		var ok bool
		bal, row, ok = ApplyKardexMove(bal, m)
		if ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// OpeningRow construye la fila sintética de saldo inicial.
func OpeningRow(productID string, opening CostBalance, at time.Time) entity.KardexEntry {
	row := entity.KardexEntry{
		ProductID: productID,
		Kind:      entity.KardexRowOpening,
		Timestamp: at,
		QtyIn:     decimal.Zero,
		QtyOut:    decimal.Zero,
		UnitCost:  opening.UnitCost,
		Value:     opening.Value,
	}
	fillRunning(&row, opening)
	return row
}

func fillRunning(row *entity.KardexEntry, bal CostBalance) {
	row.RunningQty = bal.Quantity
	row.RunningCost = bal.UnitCost
	row.RunningValue = bal.Value
	if bal.Quantity.IsZero() {
		row.RunningValue = decimal.Zero
	}
}
