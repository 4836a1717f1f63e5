package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/testutil/memstore"
)

// ──────────────────────────────────────────────────────────────────────────────
// Datos maestros de prueba
// ──────────────────────────────────────────────────────────────────────────────

const (
	company = "c1"
	user    = "u1"

	locVendor   = "loc-vendor"
	locCustomer = "loc-customer"
	locAdj      = "loc-adj"
	locStock    = "loc-stock"
	locShelf    = "loc-shelf"
	locCrew     = "loc-crew"

	partnerSupplier = "partner-prov"
	partnerClient   = "partner-cli"

	prodA      = "prod-a"
	prodB      = "prod-b"
	prodSerial = "prod-serial"
	prodLot    = "prod-lot"
	prodCons   = "prod-cons"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	uc    *appinv.PickingUseCase
	scope domain.Scope
	now   time.Time
}

func newFixture(t *testing.T, opts ...appinv.Option) *fixture {
	t.Helper()
	s := memstore.New()
	for _, l := range []*entity.Location{
		{ID: locVendor, Path: "Proveedores", Type: entity.LocationVendor},
		{ID: locCustomer, Path: "Clientes", Type: entity.LocationCustomer},
		{ID: locAdj, Path: "Virtual/Ajustes", Type: entity.LocationInventory},
		{ID: locStock, Path: "BOD1/Stock", Type: entity.LocationInternal, WarehouseID: "wh-1"},
		{ID: locShelf, Path: "BOD1/Estante A", Type: entity.LocationInternal, WarehouseID: "wh-1"},
		{ID: locCrew, Path: "Cuadrilla Norte", Type: entity.LocationInternal, Category: inventory.DefaultCuadrillaCategory, WarehouseID: "wh-2"},
	} {
		l.CompanyID = company
		s.AddLocation(l)
	}
	s.AddPartner(&entity.Partner{ID: partnerSupplier, CompanyID: company, Name: "Proveedor SAS", Categories: []string{"PROVEEDOR"}})
	s.AddPartner(&entity.Partner{ID: partnerClient, CompanyID: company, Name: "Cliente SAS", Categories: []string{"CLIENTE"}})
	for _, p := range []*entity.Product{
		{ID: prodA, SKU: "P-001", Tracking: entity.TrackingNone, Ownership: entity.OwnershipOwned, StandardPrice: d("5")},
		{ID: prodB, SKU: "P-002", Tracking: entity.TrackingNone, Ownership: entity.OwnershipOwned, StandardPrice: d("3")},
		{ID: prodSerial, SKU: "SER-01", Tracking: entity.TrackingSerial, Ownership: entity.OwnershipOwned},
		{ID: prodLot, SKU: "LOT-01", Tracking: entity.TrackingLot, Ownership: entity.OwnershipOwned},
		{ID: prodCons, SKU: "CONS-01", Tracking: entity.TrackingNone, Ownership: entity.OwnershipConsigned},
	} {
		p.CompanyID = company
		s.AddProduct(p)
	}

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	opts = append([]appinv.Option{appinv.WithClock(func() time.Time { return now })}, opts...)
	uc := appinv.NewPickingUseCase(s, s.Catalogs(), inventory.NewRuleSet(nil, ""), locAdj, zerolog.Nop(), opts...)
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: s,
		uc:    uc,
		scope: domain.Scope{CompanyID: company, UserID: user},
		now:   now,
	}
}

func (f *fixture) key(productID, locationID string) entity.QuantKey {
	return entity.QuantKey{ProductID: productID, LocationID: locationID}
}

// seedStock deja physical unidades en la ubicación con el costo promedio dado.
func (f *fixture) seedStock(productID, locationID, physical, unitCost string) {
	qty := d(physical)
	f.store.SetQuant(company, f.key(productID, locationID), qty, decimal.Zero)
	f.store.SetValuation(entity.StockValuation{
		CompanyID: company, ProductID: productID, LocationID: locationID,
		Quantity: qty, UnitCost: d(unitCost), Value: qty.Mul(d(unitCost)),
	})
}

func (f *fixture) inHeader(date time.Time) appinv.CreatePickingInput {
	return appinv.CreatePickingInput{
		TypeCode:       entity.PickingTypeIN,
		LocationSrcID:  locVendor,
		LocationDestID: locStock,
		PartnerID:      partnerSupplier,
		PurchaseOrder:  "OC-1001",
		ScheduledDate:  ptr(date),
		DateTransfer:   ptr(date),
	}
}

func (f *fixture) outHeader() appinv.CreatePickingInput {
	return appinv.CreatePickingInput{
		TypeCode:       entity.PickingTypeOUT,
		LocationSrcID:  locStock,
		LocationDestID: locCustomer,
		PartnerID:      partnerClient,
		DateTransfer:   ptr(f.now),
	}
}

func (f *fixture) adjHeader() appinv.CreatePickingInput {
	return appinv.CreatePickingInput{
		TypeCode:         entity.PickingTypeADJ,
		LocationDestID:   locStock,
		AdjustmentReason: "conteo físico",
		AccountingDate:   ptr(f.now),
	}
}

// draft crea un picking con una línea por cada par (producto, cantidad).
func (f *fixture) draft(in appinv.CreatePickingInput, lines ...appinv.MoveInput) (*entity.Picking, []*entity.StockMove) {
	f.t.Helper()
	p, err := f.uc.CreateDraftPicking(f.ctx, f.scope, in)
	require.NoError(f.t, err)
	moves := make([]*entity.StockMove, 0, len(lines))
	for _, l := range lines {
		m, err := f.uc.AddMove(f.ctx, f.scope, p.ID, l)
		require.NoError(f.t, err)
		moves = append(moves, m)
	}
	return p, moves
}

func (f *fixture) ready(in appinv.CreatePickingInput, lines ...appinv.MoveInput) (*entity.Picking, []*entity.StockMove) {
	f.t.Helper()
	p, moves := f.draft(in, lines...)
	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	require.NoError(f.t, err)
	return p, moves
}

// receive ingresa qty unidades al stock a precio unitario price con fecha efectiva date.
func (f *fixture) receive(productID, qty, price string, date time.Time) *entity.Picking {
	f.t.Helper()
	p, _ := f.ready(f.inHeader(date), appinv.MoveInput{ProductID: productID, Quantity: d(qty), PriceUnit: d(price)})
	done, err := f.uc.Validate(f.ctx, f.scope, p.ID, nil)
	require.NoError(f.t, err)
	return done
}

func (f *fixture) state(pickingID string) string {
	f.t.Helper()
	detail, err := f.uc.GetPicking(f.ctx, f.scope, pickingID)
	require.NoError(f.t, err)
	return detail.Picking.State
}

func line(productID, qty string) appinv.MoveInput {
	return appinv.MoveInput{ProductID: productID, Quantity: d(qty)}
}

func requireBusinessRule(t *testing.T, err error, code string) *domain.BusinessRuleError {
	t.Helper()
	var be *domain.BusinessRuleError
	require.True(t, errors.As(err, &be), "se esperaba BusinessRuleError, recibido %v", err)
	require.Equal(t, code, be.Code)
	return be
}

func requireValidation(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "se esperaba ValidationError, recibido %v", err)
	return ve
}

func fieldsOf(ve *domain.ValidationError) []string {
	out := make([]string, 0, len(ve.Items))
	for _, it := range ve.Items {
		out = append(out, it.Field)
	}
	return out
}
