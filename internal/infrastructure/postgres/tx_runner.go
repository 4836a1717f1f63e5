package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL (READ COMMITTED + bloqueos de fila).
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(repos inventory.TxRepos) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewTxRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NewTxRepos arma los repositorios del motor sobre q (pool o tx).
func NewTxRepos(q Querier) inventory.TxRepos {
	return inventory.TxRepos{
		Pickings:     NewPickingRepository(q),
		Moves:        NewStockMoveRepository(q),
		MoveLines:    NewMoveLineRepository(q),
		Quants:       NewStockQuantRepository(q),
		Reservations: NewReservationRepository(q),
		Valuations:   NewValuationRepository(q),
		Kardex:       NewKardexRepository(q),
	}
}

// NewCatalogs arma los maestros de solo lectura sobre el pool.
func NewCatalogs(q Querier) inventory.Catalogs {
	return inventory.Catalogs{
		Products:  NewProductCatalog(q),
		Locations: NewLocationCatalog(q),
		Partners:  NewPartnerCatalog(q),
	}
}
