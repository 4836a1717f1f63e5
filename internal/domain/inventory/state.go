package inventory

import (
	"fmt"

	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// pickingTransitions tabla de transiciones permitidas. done es terminal.
var pickingTransitions = map[string][]string{
	entity.PickingDraft:     {entity.PickingReady, entity.PickingCancelled},
	entity.PickingReady:     {entity.PickingDraft, entity.PickingDone, entity.PickingCancelled},
	entity.PickingDone:      {},
	entity.PickingCancelled: {entity.PickingDraft},
}

// CanTransition indica si from → to está en la tabla.
func CanTransition(from, to string) bool {
	for _, s := range pickingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition devuelve BusinessRuleError si la transición no está permitida.
func CheckTransition(p *entity.Picking, to string) error {
	if CanTransition(p.State, to) {
		return nil
	}
	return domain.NewBusinessRuleError(domain.CodeInvalidTransition,
		fmt.Sprintf("transición %s → %s no permitida para %s", p.State, to, p.Reference))
}

// CheckEditable exige estado draft para modificar las líneas del picking.
func CheckEditable(p *entity.Picking) error {
	if p.State == entity.PickingDraft {
		return nil
	}
	return domain.NewBusinessRuleError(domain.CodeImmutable,
		fmt.Sprintf("el picking %s está en %s; solo se modifica en draft", p.Reference, p.State))
}
