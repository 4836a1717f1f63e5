package repository

import (
	"context"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// StockMoveRepository define el puerto de persistencia para las líneas de un picking.
type StockMoveRepository interface {
	Create(ctx context.Context, m *entity.StockMove) error
	GetByID(ctx context.Context, companyID, id string) (*entity.StockMove, error)
	// ListByPicking devuelve los movimientos ordenados por secuencia.
	ListByPicking(ctx context.Context, pickingID string) ([]*entity.StockMove, error)
	Update(ctx context.Context, m *entity.StockMove) error
	Delete(ctx context.Context, id string) error
	// SetStateByPicking propaga el estado del encabezado a todos sus movimientos.
	SetStateByPicking(ctx context.Context, pickingID, state string) error
}

// MoveLineRepository guarda el detalle de series/lotes de movimientos validados.
type MoveLineRepository interface {
	CreateBatch(ctx context.Context, lines []*entity.StockMoveLine) error
	ListByMove(ctx context.Context, moveID string) ([]*entity.StockMoveLine, error)
}
