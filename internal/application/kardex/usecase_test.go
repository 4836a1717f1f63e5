package kardex_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/testutil/memstore"
)

// ──────────────────────────────────────────────────────────────────────────────
// Historial de prueba
// ──────────────────────────────────────────────────────────────────────────────

const (
	company  = "c1"
	prodA    = "prod-a"
	prodB    = "prod-b"
	vendor   = "loc-vendor"
	customer = "loc-customer"
	stock    = "loc-stock"
	crew     = "loc-crew"
)

var scope = domain.Scope{CompanyID: company, UserID: "u1"}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(month time.Month, dd int) time.Time { return time.Date(2026, month, dd, 0, 0, 0, 0, time.UTC) }

type history struct {
	t     *testing.T
	store *memstore.Store
	n     int
}

func newHistory(t *testing.T) *history {
	s := memstore.New()
	for _, l := range []*entity.Location{
		{ID: vendor, Type: entity.LocationVendor},
		{ID: customer, Type: entity.LocationCustomer},
		{ID: stock, Type: entity.LocationInternal, WarehouseID: "wh-1", Path: "BOD1/Stock"},
		{ID: crew, Type: entity.LocationInternal, WarehouseID: "wh-2", Path: "Cuadrilla"},
	} {
		l.CompanyID = company
		s.AddLocation(l)
	}
	s.AddProduct(&entity.Product{ID: prodA, CompanyID: company, SKU: "P-001", Name: "Cable"})
	s.AddProduct(&entity.Product{ID: prodB, CompanyID: company, SKU: "P-002", Name: "Conector"})
	return &history{t: t, store: s}
}

// done registra un picking done de una línea con fecha efectiva date.
func (h *history) done(date time.Time, productID, src, dest, qty, price string) {
	h.t.Helper()
	h.n++
	ctx := context.Background()
	repos := h.store.Repos()
	p := &entity.Picking{
		ID:           fmt.Sprintf("pk-%02d", h.n),
		CompanyID:    company,
		Reference:    fmt.Sprintf("DOC/%02d", h.n),
		TypeCode:     entity.PickingTypeINT,
		State:        entity.PickingDone,
		DateTransfer: &date,
	}
	require.NoError(h.t, repos.Pickings.Create(ctx, p))
	require.NoError(h.t, repos.Moves.Create(ctx, &entity.StockMove{
		ID:             fmt.Sprintf("mv-%02d", h.n),
		CompanyID:      company,
		PickingID:      p.ID,
		ProductID:      productID,
		Quantity:       d(qty),
		LocationSrcID:  src,
		LocationDestID: dest,
		PriceUnit:      d(price),
		State:          entity.PickingDone,
	}))
}

func (h *history) useCase(opts ...kardex.Option) *kardex.UseCase {
	return kardex.NewUseCase(h.store.Repos().Kardex, h.store.Catalogs().Products, zerolog.Nop(), opts...)
}

// seedBasic: dos compras y una venta del producto A.
func (h *history) seedBasic() {
	h.done(day(1, 5), prodA, vendor, stock, "10", "5")
	h.done(day(1, 20), prodA, vendor, stock, "10", "7")
	h.done(day(2, 10), prodA, stock, customer, "5", "0")
}

func rowsJSON(t *testing.T, r *kardex.Report) string {
	t.Helper()
	raw, err := json.Marshal(r.Rows)
	require.NoError(t, err)
	return string(raw)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconstrucción
// ──────────────────────────────────────────────────────────────────────────────

func TestGetKardex_AperturaYPromedio(t *testing.T) {
	h := newHistory(t)
	h.seedBasic()

	r, err := h.useCase().GetKardex(context.Background(), scope, kardex.Query{
		ProductIDs: []string{prodA}, DateFrom: day(2, 1), DateTo: day(3, 1),
	})
	require.NoError(t, err)
	require.Len(t, r.Rows, 2)

	opening := r.Rows[0]
	assert.Equal(t, entity.KardexRowOpening, opening.Kind)
	assert.Equal(t, "20", opening.RunningQty.String())
	assert.Equal(t, "6", opening.RunningCost.String())
	assert.Equal(t, "120", opening.RunningValue.String())

	out := r.Rows[1]
	assert.Equal(t, "mv-03", out.MoveID)
	assert.Equal(t, "5", out.QtyOut.String())
	assert.True(t, out.QtyIn.IsZero())
	assert.Equal(t, "30", out.Value.String())
	assert.Equal(t, "15", out.RunningQty.String())
	assert.Equal(t, "90", out.RunningValue.String())

	require.Len(t, r.Products, 1)
	assert.Equal(t, "P-001", r.Products[0].SKU)
}

func TestGetKardex_TodosLosProductosEnOrden(t *testing.T) {
	h := newHistory(t)
	h.done(day(1, 3), prodB, vendor, stock, "2", "10")
	h.seedBasic()

	r, err := h.useCase().GetKardex(context.Background(), scope, kardex.Query{DateFrom: day(1, 1), DateTo: day(3, 1)})
	require.NoError(t, err)

	var kinds []string
	for _, row := range r.Rows {
		kinds = append(kinds, row.ProductID+"/"+row.Kind)
	}
	assert.Equal(t, []string{
		prodA + "/OPENING", prodA + "/MOVE", prodA + "/MOVE", prodA + "/MOVE",
		prodB + "/OPENING", prodB + "/MOVE",
	}, kinds)
	assert.True(t, r.Rows[0].RunningQty.IsZero())
}

func TestGetKardex_CeroCantidadFuerzaValorCero(t *testing.T) {
	h := newHistory(t)
	h.done(day(1, 5), prodA, vendor, stock, "3", "3.3333")
	h.done(day(1, 6), prodA, stock, customer, "3", "0")

	r, err := h.useCase().GetKardex(context.Background(), scope, kardex.Query{
		ProductIDs: []string{prodA}, DateFrom: day(1, 1), DateTo: day(2, 1),
	})
	require.NoError(t, err)
	last := r.Rows[len(r.Rows)-1]
	assert.True(t, last.RunningQty.IsZero())
	assert.True(t, last.RunningValue.IsZero())
}

func TestGetKardex_FiltroPorBodega(t *testing.T) {
	h := newHistory(t)
	h.done(day(1, 5), prodA, vendor, stock, "10", "5")
	h.done(day(1, 6), prodA, stock, crew, "4", "5") // precio ya resuelto al validar
	uc := h.useCase()
	q := kardex.Query{ProductIDs: []string{prodA}, DateFrom: day(1, 1), DateTo: day(2, 1)}

	all, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	require.Len(t, all.Rows, 3)
	neutral := all.Rows[2]
	assert.Equal(t, "4", neutral.QtyIn.String())
	assert.Equal(t, "4", neutral.QtyOut.String())
	assert.Equal(t, "10", neutral.RunningQty.String())

	q.WarehouseID = "wh-1"
	wh1, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	require.Len(t, wh1.Rows, 3)
	assert.Equal(t, "6", wh1.Rows[2].RunningQty.String())

	q.WarehouseID = "wh-2"
	wh2, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	require.Len(t, wh2.Rows, 2, "la compra no toca la bodega 2")
	assert.Equal(t, "4", wh2.Rows[1].QtyIn.String())
	assert.Equal(t, "5", wh2.Rows[1].UnitCost.String())
}

func TestGetKardex_Determinista(t *testing.T) {
	h := newHistory(t)
	h.seedBasic()
	h.done(day(2, 10), prodA, vendor, stock, "7", "6.1234")
	h.done(day(2, 10), prodA, stock, customer, "1", "0")
	uc := h.useCase()
	q := kardex.Query{ProductIDs: []string{prodA}, DateFrom: day(1, 1), DateTo: day(3, 1)}

	first, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	second, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	assert.Equal(t, rowsJSON(t, first), rowsJSON(t, second))
}

func TestGetKardex_SnapshotEquivaleAReproducir(t *testing.T) {
	h := newHistory(t)
	h.seedBasic()
	h.done(day(2, 20), prodA, vendor, stock, "5", "9")
	uc := h.useCase()
	q := kardex.Query{ProductIDs: []string{prodA}, DateFrom: day(2, 15), DateTo: day(3, 1)}

	without, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)

	snap, err := uc.BuildSnapshot(context.Background(), company, prodA, "", day(2, 1))
	require.NoError(t, err)
	assert.Equal(t, "20", snap.Quantity.String())
	assert.Equal(t, "120", snap.Value.String())

	with, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	assert.Equal(t, rowsJSON(t, without), rowsJSON(t, with))
}

func TestGetKardex_UsaElSnapshot(t *testing.T) {
	h := newHistory(t)
	h.seedBasic()
	// Un snapshot con valores distintos a la historia demuestra que la apertura parte de él.
	saved, err := h.store.Repos().Kardex.SaveSnapshot(context.Background(), &entity.KardexSnapshot{
		CompanyID: company, ProductID: prodA, AsOf: day(2, 1),
		Quantity: d("100"), UnitCost: d("1"), Value: d("100"),
	}, 0)
	require.NoError(t, err)
	require.True(t, saved)

	r, err := h.useCase().GetKardex(context.Background(), scope, kardex.Query{
		ProductIDs: []string{prodA}, DateFrom: day(2, 15), DateTo: day(3, 1),
	})
	require.NoError(t, err)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "95", r.Rows[0].RunningQty.String())
	assert.Equal(t, "95", r.Rows[0].RunningValue.String())
}

// validateBackdated simula lo que confirma un validate con fecha efectiva date: el movimiento
// done, la versión del historial y la invalidación de saldos posteriores, en una transacción.
func (h *history) validateBackdated(date time.Time, productID, src, dest, qty, price string) {
	h.t.Helper()
	h.done(date, productID, src, dest, qty, price)
	require.NoError(h.t, h.store.Run(context.Background(), func(repos appinv.TxRepos) error {
		if err := repos.Kardex.BumpHistoryVersions(context.Background(), company, []string{productID}); err != nil {
			return err
		}
		return repos.Kardex.DeleteSnapshotsAfter(context.Background(), company, []string{productID}, date)
	}))
}

func TestBuildSnapshot_ValidateConcurrenteNoDejaSaldoViejo(t *testing.T) {
	h := newHistory(t)
	h.done(day(1, 5), prodA, vendor, stock, "10", "5")
	uc := h.useCase()

	// El validate del 20 de enero confirma después de que el snapshot leyó el historial.
	h.store.AfterListDoneMoves(func() {
		h.validateBackdated(day(1, 20), prodA, vendor, stock, "10", "5")
	})
	_, err := uc.BuildSnapshot(context.Background(), company, prodA, "", day(2, 1))
	require.ErrorIs(t, err, kardex.ErrStaleSnapshot)
	assert.Empty(t, h.store.Snapshots())

	r, err := uc.GetKardex(context.Background(), scope, kardex.Query{
		ProductIDs: []string{prodA}, DateFrom: day(2, 10), DateTo: day(3, 1),
	})
	require.NoError(t, err)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "20", r.Rows[0].RunningQty.String())

	// El reintento parte de la versión nueva y guarda el saldo correcto.
	snap, err := uc.BuildSnapshot(context.Background(), company, prodA, "", day(2, 1))
	require.NoError(t, err)
	assert.Equal(t, "20", snap.Quantity.String())
	require.Len(t, h.store.Snapshots(), 1)
}

func TestSnapshotAll_OmiteSaldosObsoletos(t *testing.T) {
	h := newHistory(t)
	h.done(day(1, 5), prodA, vendor, stock, "10", "5")
	h.done(day(1, 3), prodB, vendor, stock, "2", "10")
	h.store.AfterListDoneMoves(func() {
		h.validateBackdated(day(1, 20), prodA, vendor, stock, "10", "5")
	})

	n, err := h.useCase(kardex.WithConcurrency(1)).SnapshotAll(context.Background(), company, day(2, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	snaps := h.store.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, prodB, snaps[0].ProductID)
}

func TestSnapshotAll(t *testing.T) {
	h := newHistory(t)
	h.seedBasic()
	h.done(day(1, 3), prodB, vendor, stock, "2", "10")

	n, err := h.useCase().SnapshotAll(context.Background(), "", day(3, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, h.store.Snapshots(), 2)
}

// ──────────────────────────────────────────────────────────────────────────────
// Validaciones y caché
// ──────────────────────────────────────────────────────────────────────────────

func TestGetKardex_Validaciones(t *testing.T) {
	h := newHistory(t)
	uc := h.useCase()

	_, err := uc.GetKardex(context.Background(), scope, kardex.Query{})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Items, 2)

	_, err = uc.GetKardex(context.Background(), scope, kardex.Query{DateFrom: day(2, 1), DateTo: day(1, 1)})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = uc.GetKardex(context.Background(), scope, kardex.Query{
		ProductIDs: []string{"desconocido"}, DateFrom: day(1, 1), DateTo: day(2, 1),
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]*kardex.Report
	version int64
	getErr  error
	gets    int
	setKeys []string
}

func (c *fakeCache) Get(_ context.Context, companyID, key string) (*kardex.Report, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, 0, false, c.getErr
	}
	r, ok := c.data[fmt.Sprintf("%s|%d|%s", companyID, c.version, key)]
	return r, c.version, ok, nil
}

func (c *fakeCache) Set(_ context.Context, companyID, key string, version int64, r *kardex.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		return nil
	}
	if c.data == nil {
		c.data = make(map[string]*kardex.Report)
	}
	c.data[fmt.Sprintf("%s|%d|%s", companyID, version, key)] = r
	c.setKeys = append(c.setKeys, key)
	return nil
}

func (c *fakeCache) bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
}

func TestGetKardex_Cache(t *testing.T) {
	h := newHistory(t)
	h.seedBasic()
	cache := &fakeCache{}
	uc := h.useCase(kardex.WithCache(cache))
	q := kardex.Query{ProductIDs: []string{prodA, prodA}, DateFrom: day(1, 1), DateTo: day(3, 1)}

	first, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	require.Len(t, cache.setKeys, 1)

	// Un movimiento nuevo no se ve mientras la caché no se invalide.
	h.done(day(2, 20), prodA, vendor, stock, "1", "1")
	second, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 2, cache.gets)
}

func TestGetKardex_CacheNoGuardaReporteDeVersionVieja(t *testing.T) {
	h := newHistory(t)
	h.done(day(1, 5), prodA, vendor, stock, "10", "5")
	cache := &fakeCache{}
	uc := h.useCase(kardex.WithCache(cache))
	q := kardex.Query{ProductIDs: []string{prodA}, DateFrom: day(2, 10), DateTo: day(3, 1)}

	// Un validate confirma e invalida la caché mientras la reconstrucción ya leyó el historial.
	h.store.AfterListDoneMoves(func() {
		h.done(day(1, 20), prodA, vendor, stock, "10", "5")
		cache.bump()
	})
	first, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	assert.Equal(t, "10", first.Rows[0].RunningQty.String())
	assert.Empty(t, cache.setKeys)

	second, err := uc.GetKardex(context.Background(), scope, q)
	require.NoError(t, err)
	assert.Equal(t, "20", second.Rows[0].RunningQty.String())
	assert.Len(t, cache.setKeys, 1)
}

func TestGetKardex_CacheCaidaNoFalla(t *testing.T) {
	h := newHistory(t)
	h.seedBasic()
	cache := &fakeCache{getErr: errors.New("redis caído")}
	uc := h.useCase(kardex.WithCache(cache))

	r, err := uc.GetKardex(context.Background(), scope, kardex.Query{DateFrom: day(1, 1), DateTo: day(3, 1)})
	require.NoError(t, err)
	assert.Len(t, r.Rows, 4)
	assert.Empty(t, cache.setKeys, "sin versión leída no se guarda")
}
