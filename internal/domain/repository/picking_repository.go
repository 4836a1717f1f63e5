package repository

import (
	"context"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// PickingRepository define el puerto de persistencia para encabezados de picking.
// Todas las consultas filtran por empresa; un picking de otra empresa se reporta como no encontrado.
type PickingRepository interface {
	Create(ctx context.Context, p *entity.Picking) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Picking, error)
	// GetForUpdate bloquea la fila del picking (SELECT FOR UPDATE) hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, companyID, id string) (*entity.Picking, error)
	Update(ctx context.Context, p *entity.Picking) error
}
