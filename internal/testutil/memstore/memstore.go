// Package memstore implementa en memoria todos los puertos de persistencia del motor de
// inventario. Run serializa las transacciones y restaura el estado completo si fn falla,
// así la atomicidad es observable en los tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// ErrInjected error devuelto por una operación marcada con FailOn.
var ErrInjected = errors.New("memstore: falla inyectada")

type quantID struct {
	companyID string
	key       entity.QuantKey
}

type state struct {
	pickings     map[string]*entity.Picking
	moves        map[string]*entity.StockMove
	lines        map[string][]*entity.StockMoveLine
	quants       map[quantID]*entity.StockQuant
	reservations []*entity.StockReservation
	valuations   map[quantID]*entity.StockValuation
	snapshots    []*entity.KardexSnapshot
	versions     map[string]int64
}

// Store base de datos en memoria. Los maestros se cargan con AddProduct, AddLocation y AddPartner.
type Store struct {
	txMu sync.Mutex // una transacción a la vez
	mu   sync.Mutex // acceso a los mapas

	products  map[string]*entity.Product
	locations map[string]*entity.Location
	partners  map[string]*entity.Partner

	st     state
	failOn map[string]bool
	Runs   int

	afterList func()
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		products:  make(map[string]*entity.Product),
		locations: make(map[string]*entity.Location),
		partners:  make(map[string]*entity.Partner),
		failOn:    make(map[string]bool),
		st: state{
			pickings:   make(map[string]*entity.Picking),
			moves:      make(map[string]*entity.StockMove),
			lines:      make(map[string][]*entity.StockMoveLine),
			quants:     make(map[quantID]*entity.StockQuant),
			valuations: make(map[quantID]*entity.StockValuation),
			versions:   make(map[string]int64),
		},
	}
}

// FailOn hace que la próxima llamada a op (ej. "Kardex.DeleteSnapshotsAfter") devuelva ErrInjected.
func (s *Store) FailOn(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = true
}

func (s *Store) fail(op string) error {
	if s.failOn[op] {
		delete(s.failOn, op)
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

// AfterListDoneMoves registra fn para que corra una vez justo después de la próxima lectura
// de Kardex.ListDoneMoves, fuera del candado. Sirve para intercalar un validate concurrente.
func (s *Store) AfterListDoneMoves(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterList = fn
}

// Run ejecuta fn con repositorios sobre el store; si fn devuelve error se restaura el estado previo.
func (s *Store) Run(ctx context.Context, fn func(repos inventory.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	saved := s.st.clone()
	s.Runs++
	s.mu.Unlock()

	if err := fn(s.Repos()); err != nil {
		s.mu.Lock()
		s.st = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

// Repos devuelve los repositorios sin transacción (lecturas directas en tests).
func (s *Store) Repos() inventory.TxRepos {
	return inventory.TxRepos{
		Pickings:     pickingRepo{s},
		Moves:        moveRepo{s},
		MoveLines:    moveLineRepo{s},
		Quants:       quantRepo{s},
		Reservations: reservationRepo{s},
		Valuations:   valuationRepo{s},
		Kardex:       kardexRepo{s},
	}
}

// Catalogs devuelve los maestros de solo lectura.
func (s *Store) Catalogs() inventory.Catalogs {
	return inventory.Catalogs{
		Products:  productCatalog{s},
		Locations: locationCatalog{s},
		Partners:  partnerCatalog{s},
	}
}

func (st state) clone() state {
	out := state{
		pickings:     make(map[string]*entity.Picking, len(st.pickings)),
		moves:        make(map[string]*entity.StockMove, len(st.moves)),
		lines:        make(map[string][]*entity.StockMoveLine, len(st.lines)),
		quants:       make(map[quantID]*entity.StockQuant, len(st.quants)),
		reservations: make([]*entity.StockReservation, 0, len(st.reservations)),
		valuations:   make(map[quantID]*entity.StockValuation, len(st.valuations)),
		snapshots:    make([]*entity.KardexSnapshot, 0, len(st.snapshots)),
		versions:     make(map[string]int64, len(st.versions)),
	}
	for k, v := range st.versions {
		out.versions[k] = v
	}
	for k, v := range st.pickings {
		c := *v
		out.pickings[k] = &c
	}
	for k, v := range st.moves {
		c := *v
		out.moves[k] = &c
	}
	for k, ls := range st.lines {
		cp := make([]*entity.StockMoveLine, 0, len(ls))
		for _, l := range ls {
			c := *l
			cp = append(cp, &c)
		}
		out.lines[k] = cp
	}
	for k, v := range st.quants {
		c := *v
		out.quants[k] = &c
	}
	for _, r := range st.reservations {
		c := *r
		out.reservations = append(out.reservations, &c)
	}
	for k, v := range st.valuations {
		c := *v
		out.valuations[k] = &c
	}
	for _, sn := range st.snapshots {
		c := *sn
		out.snapshots = append(out.snapshots, &c)
	}
	return out
}
