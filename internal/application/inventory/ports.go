package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/Inventario-movimientos/internal/domain/repository"
)

// TxRepos repositorios atados a una misma transacción de BD.
type TxRepos struct {
	Pickings     repository.PickingRepository
	Moves        repository.StockMoveRepository
	MoveLines    repository.MoveLineRepository
	Quants       repository.StockQuantRepository
	Reservations repository.ReservationRepository
	Valuations   repository.ValuationRepository
	Kardex       repository.KardexRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback y ningún cambio queda visible.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos TxRepos) error) error
}

// Catalogs maestros de solo lectura consultados fuera de la transacción.
type Catalogs struct {
	Products  repository.ProductCatalog
	Locations repository.LocationCatalog
	Partners  repository.PartnerCatalog
}

// ValidatedEvent describe un picking recién validado, para los efectos posteriores al commit.
type ValidatedEvent struct {
	CompanyID     string
	PickingID     string
	ProductIDs    []string
	EffectiveDate time.Time
}

// ValidationHook se invoca después del commit de un validate. Sus errores se registran y no
// revierten la validación.
type ValidationHook interface {
	OnValidated(ctx context.Context, ev ValidatedEvent) error
}
