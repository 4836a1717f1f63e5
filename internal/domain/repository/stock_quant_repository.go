package repository

import (
	"context"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// StockQuantRepository define el puerto para los saldos físico/reservado por (producto, ubicación, lote).
// Usado dentro de transacciones para garantizar consistencia.
type StockQuantRepository interface {
	// Ensure materializa en cero los quants que no existen, sin bloquear.
	Ensure(ctx context.Context, companyID string, keys []entity.QuantKey) error
	// LockByProductLocation bloquea (SELECT FOR UPDATE) todos los quants de cada par producto-ubicación,
	// siempre en orden (producto, ubicación, lote). El LotID de los pares se ignora.
	LockByProductLocation(ctx context.Context, companyID string, pairs []entity.QuantKey) ([]*entity.StockQuant, error)
	Save(ctx context.Context, quants []*entity.StockQuant) error
	// List lectura sin bloqueo; puede estar desactualizada frente a escritores concurrentes.
	List(ctx context.Context, companyID, productID, locationID string) ([]*entity.StockQuant, error)
}

// ReservationRepository registra lo que reservó cada movimiento para liberarlo exacto.
type ReservationRepository interface {
	Create(ctx context.Context, rs []*entity.StockReservation) error
	ListByPicking(ctx context.Context, pickingID string) ([]*entity.StockReservation, error)
	DeleteByPicking(ctx context.Context, pickingID string) error
}

// ValuationRepository define el puerto para el costo promedio por (producto, ubicación interna).
type ValuationRepository interface {
	// LockMany materializa y bloquea las valoraciones de los pares dados en orden de clave.
	// El mapa usa QuantKey con LotID vacío.
	LockMany(ctx context.Context, companyID string, pairs []entity.QuantKey) (map[entity.QuantKey]*entity.StockValuation, error)
	Save(ctx context.Context, v *entity.StockValuation) error
}
