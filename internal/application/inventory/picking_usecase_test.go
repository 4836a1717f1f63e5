package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/testutil/memstore"
)

// ──────────────────────────────────────────────────────────────────────────────
// Borrador y edición
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateDraftPicking_Referencia(t *testing.T) {
	f := newFixture(t)
	p, err := f.uc.CreateDraftPicking(f.ctx, f.scope, f.outHeader())
	require.NoError(t, err)
	assert.Equal(t, entity.PickingDraft, p.State)
	assert.Regexp(t, `^OUT/2026/[0-9A-F]{8}$`, p.Reference)
	assert.Equal(t, user, p.CreatedBy)
}

func TestCreateDraftPicking_Rechazos(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.CreateDraftPicking(f.ctx, domain.Scope{CompanyID: company}, f.outHeader())
	requireValidation(t, err)

	in := f.outHeader()
	in.TypeCode = "XYZ"
	_, err = f.uc.CreateDraftPicking(f.ctx, f.scope, in)
	assert.Contains(t, fieldsOf(requireValidation(t, err)), "type_code")

	in = f.outHeader()
	in.LocationDestID = in.LocationSrcID
	_, err = f.uc.CreateDraftPicking(f.ctx, f.scope, in)
	requireValidation(t, err)

	in = f.outHeader()
	in.LocationDestID = "no-existe"
	_, err = f.uc.CreateDraftPicking(f.ctx, f.scope, in)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetPicking_OtraEmpresaNoEncontrado(t *testing.T) {
	f := newFixture(t)
	p, _ := f.draft(f.outHeader(), line(prodA, "1"))
	_, err := f.uc.GetPicking(f.ctx, domain.Scope{CompanyID: "otra", UserID: user}, p.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAddMove_AjusteUsaSignoParaLaDireccion(t *testing.T) {
	f := newFixture(t)
	_, moves := f.draft(f.adjHeader(), line(prodA, "3"), line(prodB, "-2"))

	require.Len(t, moves, 2)
	assert.Equal(t, locAdj, moves[0].LocationSrcID)
	assert.Equal(t, locStock, moves[0].LocationDestID)
	assert.True(t, d("3").Equal(moves[0].Quantity))
	assert.Equal(t, locStock, moves[1].LocationSrcID)
	assert.Equal(t, locAdj, moves[1].LocationDestID)
	assert.True(t, d("2").Equal(moves[1].Quantity))
	assert.Equal(t, 1, moves[0].Sequence)
	assert.Equal(t, 2, moves[1].Sequence)
}

func TestAddMove_Validaciones(t *testing.T) {
	f := newFixture(t)
	p, _ := f.draft(f.outHeader())

	_, err := f.uc.AddMove(f.ctx, f.scope, p.ID, appinv.MoveInput{Quantity: d("0"), PriceUnit: d("-1")})
	assert.ElementsMatch(t, []string{"product_id", "quantity", "price_unit"}, fieldsOf(requireValidation(t, err)))

	_, err = f.uc.AddMove(f.ctx, f.scope, p.ID, line(prodA, "-1"))
	requireValidation(t, err)

	_, err = f.uc.AddMove(f.ctx, f.scope, p.ID, line("desconocido", "1"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAddMove_SoloEnBorrador(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")
	p, moves := f.ready(f.outHeader(), line(prodA, "1"))

	_, err := f.uc.AddMove(f.ctx, f.scope, p.ID, line(prodA, "1"))
	requireBusinessRule(t, err, domain.CodeImmutable)

	err = f.uc.RemoveMove(f.ctx, f.scope, p.ID, moves[0].ID)
	requireBusinessRule(t, err, domain.CodeImmutable)
}

func TestRemoveMove(t *testing.T) {
	f := newFixture(t)
	p, moves := f.draft(f.outHeader(), line(prodA, "1"), line(prodB, "2"))
	other, otherMoves := f.draft(f.outHeader(), line(prodA, "1"))

	err := f.uc.RemoveMove(f.ctx, f.scope, p.ID, otherMoves[0].ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "un movimiento de otro picking no se puede borrar")

	require.NoError(t, f.uc.RemoveMove(f.ctx, f.scope, p.ID, moves[0].ID))
	detail, err := f.uc.GetPicking(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Moves, 1)
	assert.Equal(t, prodB, detail.Moves[0].ProductID)

	detail, err = f.uc.GetPicking(f.ctx, f.scope, other.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Moves, 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reservas
// ──────────────────────────────────────────────────────────────────────────────

func TestMarkReady_ReturnToDraftRestauraDisponible(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")

	p, _ := f.ready(f.outHeader(), line(prodA, "4"))
	q := f.store.Quant(company, f.key(prodA, locStock))
	assert.True(t, d("4").Equal(q.ReservedQuantity))
	assert.True(t, d("6").Equal(q.Available()))
	assert.Equal(t, 1, f.store.ReservationCount())

	back, err := f.uc.ReturnToDraft(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PickingDraft, back.State)

	q = f.store.Quant(company, f.key(prodA, locStock))
	assert.True(t, q.ReservedQuantity.IsZero())
	assert.True(t, d("10").Equal(q.Available()))
	assert.Zero(t, f.store.ReservationCount())
}

func TestMarkReady_Idempotente(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")
	p, _ := f.ready(f.outHeader(), line(prodA, "4"))

	again, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PickingReady, again.State)

	q := f.store.Quant(company, f.key(prodA, locStock))
	assert.True(t, d("4").Equal(q.ReservedQuantity), "la segunda llamada no debe reservar de nuevo")
	assert.Equal(t, 1, f.store.ReservationCount())
}

func TestMarkReady_StockInsuficienteListaTodos(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "2", "5")
	f.seedStock(prodB, locStock, "10", "3")
	p, _ := f.draft(f.outHeader(), line(prodA, "5"), line(prodB, "3"), line(prodCons, "1"))

	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	be := requireBusinessRule(t, err, domain.CodeInsufficientStock)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	require.Len(t, be.Details, 2)
	assert.Contains(t, be.Details[0], "P-001")
	assert.Contains(t, be.Details[0], "disponible 2 < solicitado 5")
	assert.Contains(t, be.Details[1], "CONS-01")

	// Nada quedó reservado, ni siquiera el producto que sí alcanzaba.
	assert.True(t, f.store.Quant(company, f.key(prodB, locStock)).ReservedQuantity.IsZero())
	assert.Zero(t, f.store.ReservationCount())
	assert.Equal(t, entity.PickingDraft, f.state(p.ID))
}

func TestMarkReady_SinLineas(t *testing.T) {
	f := newFixture(t)
	p, _ := f.draft(f.outHeader())
	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	requireBusinessRule(t, err, domain.CodeEmptyPicking)
}

func TestMarkReady_EncabezadoIncompleto(t *testing.T) {
	f := newFixture(t)
	in := f.inHeader(f.now)
	in.PurchaseOrder = ""
	in.ScheduledDate = nil
	p, _ := f.draft(in, line(prodA, "1"))

	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	assert.ElementsMatch(t, []string{"purchase_order", "scheduled_date"}, fieldsOf(requireValidation(t, err)))
}

func TestMarkReady_LotesReservaEnOrdenDeLote(t *testing.T) {
	f := newFixture(t)
	f.store.SetQuant(company, entity.QuantKey{ProductID: prodLot, LocationID: locStock, LotID: "L2"}, d("5"), d("0"))
	f.store.SetQuant(company, entity.QuantKey{ProductID: prodLot, LocationID: locStock, LotID: "L1"}, d("3"), d("0"))

	f.ready(f.outHeader(), line(prodLot, "4"))

	assert.True(t, d("3").Equal(f.store.Quant(company, entity.QuantKey{ProductID: prodLot, LocationID: locStock, LotID: "L1"}).ReservedQuantity))
	assert.True(t, d("1").Equal(f.store.Quant(company, entity.QuantKey{ProductID: prodLot, LocationID: locStock, LotID: "L2"}).ReservedQuantity))
}

func TestMarkReady_AjusteFisicoInsuficiente(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "5", "2")
	p, _ := f.draft(f.adjHeader(), line(prodA, "-8"))

	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	be := requireBusinessRule(t, err, domain.CodeInsufficientStock)
	assert.Contains(t, be.Details[0], "physical 5 < requested 8")
	assert.True(t, f.store.Quant(company, f.key(prodA, locStock)).ReservedQuantity.IsZero())
}

func TestMarkReady_AjusteNoTomaLoReservado(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "5", "2")
	f.ready(f.outHeader(), line(prodA, "4"))

	// El físico alcanza (5 >= 3) pero solo 1 unidad está disponible.
	p, _ := f.draft(f.adjHeader(), line(prodA, "-3"))
	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	be := requireBusinessRule(t, err, domain.CodeInsufficientStock)
	require.Len(t, be.Details, 1)
	assert.Contains(t, be.Details[0], "disponible 1 < solicitado 3")

	q := f.store.Quant(company, f.key(prodA, locStock))
	assert.Equal(t, "4", q.ReservedQuantity.String())
	assert.False(t, q.Available().IsNegative())
}

func TestMarkReady_CompraNacionalConConsignado(t *testing.T) {
	f := newFixture(t)
	in := f.inHeader(f.now)
	in.CustomOperationType = "Compra Nacional"
	p, _ := f.draft(in, line(prodA, "1"), line(prodCons, "2"))

	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	be := requireBusinessRule(t, err, domain.CodeOwnershipMismatch)
	assert.Contains(t, err.Error(), "ownership mismatch")
	require.Len(t, be.Details, 1)
	assert.Contains(t, be.Details[0], "CONS-01")
	assert.NotContains(t, be.Details[0], "P-001")
	assert.Equal(t, entity.PickingDraft, f.state(p.ID))
}

func TestMarkReady_TrasladoCuadrillaExigeEmpleado(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")
	in := appinv.CreatePickingInput{
		TypeCode:            entity.PickingTypeINT,
		LocationSrcID:       locStock,
		LocationDestID:      locCrew,
		CustomOperationType: "Traslado Cuadrilla",
		DateTransfer:        ptr(f.now),
	}
	p, _ := f.draft(in, line(prodA, "2"))

	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	assert.Contains(t, fieldsOf(requireValidation(t, err)), "employee_id")

	in.EmployeeID = "emp-7"
	f.ready(in, line(prodA, "2"))
}

func TestMarkReady_CategoriaDeTercero(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")
	in := f.outHeader()
	in.CustomOperationType = "Venta"
	in.PartnerID = partnerSupplier
	p, _ := f.draft(in, line(prodA, "1"))

	_, err := f.uc.MarkReady(f.ctx, f.scope, p.ID)
	requireBusinessRule(t, err, domain.CodePartnerCategory)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transiciones
// ──────────────────────────────────────────────────────────────────────────────

func TestTransicionesIlegales_SinEfectos(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")

	draft, _ := f.draft(f.outHeader(), line(prodA, "1"))
	_, err := f.uc.Validate(f.ctx, f.scope, draft.ID, nil)
	requireBusinessRule(t, err, domain.CodeInvalidTransition)
	_, err = f.uc.ReturnToDraft(f.ctx, f.scope, draft.ID)
	requireBusinessRule(t, err, domain.CodeInvalidTransition)
	assert.Equal(t, entity.PickingDraft, f.state(draft.ID))

	done, _ := f.ready(f.outHeader(), line(prodA, "3"))
	_, err = f.uc.Validate(f.ctx, f.scope, done.ID, nil)
	require.NoError(t, err)
	before := f.store.Quant(company, f.key(prodA, locStock))

	for name, call := range map[string]func() (*entity.Picking, error){
		"cancel":          func() (*entity.Picking, error) { return f.uc.Cancel(f.ctx, f.scope, done.ID) },
		"return_to_draft": func() (*entity.Picking, error) { return f.uc.ReturnToDraft(f.ctx, f.scope, done.ID) },
		"mark_ready":      func() (*entity.Picking, error) { return f.uc.MarkReady(f.ctx, f.scope, done.ID) },
		"validate":        func() (*entity.Picking, error) { return f.uc.Validate(f.ctx, f.scope, done.ID, nil) },
	} {
		_, err := call()
		requireBusinessRule(t, err, domain.CodeInvalidTransition)
		assert.Equal(t, entity.PickingDone, f.state(done.ID), name)
	}
	after := f.store.Quant(company, f.key(prodA, locStock))
	assert.True(t, before.PhysicalQuantity.Equal(after.PhysicalQuantity))
	assert.True(t, before.ReservedQuantity.Equal(after.ReservedQuantity))
}

func TestCancel_LiberaReservas(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")
	p, _ := f.ready(f.outHeader(), line(prodA, "7"))

	cancelled, err := f.uc.Cancel(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PickingCancelled, cancelled.State)
	assert.True(t, f.store.Quant(company, f.key(prodA, locStock)).ReservedQuantity.IsZero())

	detail, err := f.uc.GetPicking(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PickingCancelled, detail.Moves[0].State)

	back, err := f.uc.ReturnToDraft(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PickingDraft, back.State)
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación
// ──────────────────────────────────────────────────────────────────────────────

func TestValidate_CostoPromedioPonderado(t *testing.T) {
	f := newFixture(t)
	f.receive(prodA, "10", "5", f.now)
	f.receive(prodA, "10", "7", f.now)

	v := f.store.Valuation(company, prodA, locStock)
	assert.Equal(t, "6", v.UnitCost.String())
	assert.Equal(t, "20", v.Quantity.String())
	assert.Equal(t, "120", v.Value.String())

	p, _ := f.ready(f.outHeader(), line(prodA, "5"))
	_, err := f.uc.Validate(f.ctx, f.scope, p.ID, nil)
	require.NoError(t, err)

	detail, err := f.uc.GetPicking(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PickingDone, detail.Picking.State)
	require.NotNil(t, detail.Picking.DoneAt)
	assert.Equal(t, "6", detail.Moves[0].PriceUnit.String())
	assert.Equal(t, "30", detail.Moves[0].Value.String())

	v = f.store.Valuation(company, prodA, locStock)
	assert.Equal(t, "15", v.Quantity.String())
	assert.Equal(t, "90", v.Value.String())
	q := f.store.Quant(company, f.key(prodA, locStock))
	assert.Equal(t, "15", q.PhysicalQuantity.String())
	assert.True(t, q.ReservedQuantity.IsZero())
}

func TestValidate_EntradaSinPrecioUsaCostoEstandar(t *testing.T) {
	f := newFixture(t)
	f.receive(prodA, "4", "0", f.now)
	assert.Equal(t, "5", f.store.Valuation(company, prodA, locStock).UnitCost.String())
}

func TestValidate_TrasladoConservaElCosto(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "6")
	in := appinv.CreatePickingInput{
		TypeCode:       entity.PickingTypeINT,
		LocationSrcID:  locStock,
		LocationDestID: locShelf,
		DateTransfer:   ptr(f.now),
	}
	p, _ := f.ready(in, appinv.MoveInput{ProductID: prodA, Quantity: d("4"), PriceUnit: d("99")})
	_, err := f.uc.Validate(f.ctx, f.scope, p.ID, nil)
	require.NoError(t, err)

	shelf := f.store.Valuation(company, prodA, locShelf)
	assert.Equal(t, "6", shelf.UnitCost.String())
	assert.Equal(t, "24", shelf.Value.String())
	assert.Equal(t, "36", f.store.Valuation(company, prodA, locStock).Value.String())
}

func TestValidate_AjusteConCostoManual(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "6")
	p, _ := f.ready(f.adjHeader(), appinv.MoveInput{ProductID: prodA, Quantity: d("-10"), CostAtAdjustment: ptr(d("7.5"))})
	_, err := f.uc.Validate(f.ctx, f.scope, p.ID, nil)
	require.NoError(t, err)

	detail, err := f.uc.GetPicking(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "75", detail.Moves[0].Value.String())
	v := f.store.Valuation(company, prodA, locStock)
	assert.True(t, v.Quantity.IsZero())
	assert.True(t, v.Value.IsZero(), "sin cantidad el valor queda en cero")
}

func TestValidate_AtomicoAnteFalla(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")
	p, _ := f.ready(f.outHeader(), line(prodA, "4"))

	f.store.FailOn("Kardex.DeleteSnapshotsAfter")
	_, err := f.uc.Validate(f.ctx, f.scope, p.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, memstore.ErrInjected))

	detail, err := f.uc.GetPicking(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PickingReady, detail.Picking.State)
	assert.Equal(t, entity.PickingReady, detail.Moves[0].State)
	assert.True(t, detail.Moves[0].Value.IsZero())

	q := f.store.Quant(company, f.key(prodA, locStock))
	assert.Equal(t, "10", q.PhysicalQuantity.String())
	assert.Equal(t, "4", q.ReservedQuantity.String())

	assert.Equal(t, "50", f.store.Valuation(company, prodA, locStock).Value.String())
	assert.Equal(t, 1, f.store.ReservationCount())

	version, err := f.store.Repos().Kardex.HistoryVersion(f.ctx, company, prodA)
	require.NoError(t, err)
	assert.Zero(t, version, "la versión del historial vuelve atrás con el rollback")

	// El reintento sin falla completa la validación.
	_, err = f.uc.Validate(f.ctx, f.scope, p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "6", f.store.Quant(company, f.key(prodA, locStock)).PhysicalQuantity.String())
}

func TestValidate_Series(t *testing.T) {
	f := newFixture(t)
	p, moves := f.ready(f.inHeader(f.now), appinv.MoveInput{ProductID: prodSerial, Quantity: d("3"), PriceUnit: d("100")})

	short := appinv.TrackingMap{moves[0].ID: {{Name: "sn-1"}, {Name: "sn-2"}}}
	_, err := f.uc.Validate(f.ctx, f.scope, p.ID, short)
	ve := requireValidation(t, err)
	assert.Contains(t, err.Error(), "tracking mismatch")
	assert.Equal(t, domain.CodeTrackingMismatch, ve.Items[0].Code)
	assert.Equal(t, entity.PickingReady, f.state(p.ID))

	dup := appinv.TrackingMap{moves[0].ID: {{Name: "sn-1"}, {Name: "SN-1"}, {Name: "sn-3"}}}
	_, err = f.uc.Validate(f.ctx, f.scope, p.ID, dup)
	assert.Equal(t, domain.CodeDuplicateSerial, requireValidation(t, err).Items[0].Code)

	full := appinv.TrackingMap{moves[0].ID: {{Name: "sn-1"}, {Name: " sn-2 "}, {Name: "ｓｎ-3"}}}
	_, err = f.uc.Validate(f.ctx, f.scope, p.ID, full)
	require.NoError(t, err)

	detail, err := f.uc.GetPicking(f.ctx, f.scope, p.ID)
	require.NoError(t, err)
	lines := detail.Lines[moves[0].ID]
	require.Len(t, lines, 3)
	names := []string{lines[0].LotName, lines[1].LotName, lines[2].LotName}
	assert.Equal(t, []string{"SN-1", "SN-2", "SN-3"}, names)
	for _, name := range names {
		q := f.store.Quant(company, entity.QuantKey{ProductID: prodSerial, LocationID: locStock, LotID: name})
		assert.Equal(t, "1", q.PhysicalQuantity.String())
	}
}

func TestValidate_SeguimientoDeMovimientoAjeno(t *testing.T) {
	f := newFixture(t)
	p, _ := f.ready(f.inHeader(f.now), line(prodA, "1"))
	_, err := f.uc.Validate(f.ctx, f.scope, p.ID, appinv.TrackingMap{"otro": {{Name: "X"}}})
	assert.Contains(t, fieldsOf(requireValidation(t, err)), "tracking[otro]")
}

func TestValidate_LotesSalenDeLosLotesIndicados(t *testing.T) {
	f := newFixture(t)
	p, moves := f.ready(f.inHeader(f.now), appinv.MoveInput{ProductID: prodLot, Quantity: d("8"), PriceUnit: d("2")})
	_, err := f.uc.Validate(f.ctx, f.scope, p.ID, appinv.TrackingMap{moves[0].ID: {
		{Name: "a-1", Quantity: d("5")}, {Name: "A-2", Quantity: d("3")},
	}})
	require.NoError(t, err)

	out, outMoves := f.ready(f.outHeader(), line(prodLot, "4"))
	_, err = f.uc.Validate(f.ctx, f.scope, out.ID, appinv.TrackingMap{outMoves[0].ID: {
		{Name: "A-1", Quantity: d("4")},
	}})
	require.NoError(t, err)

	a1 := f.store.Quant(company, entity.QuantKey{ProductID: prodLot, LocationID: locStock, LotID: "A-1"})
	a2 := f.store.Quant(company, entity.QuantKey{ProductID: prodLot, LocationID: locStock, LotID: "A-2"})
	assert.Equal(t, "1", a1.PhysicalQuantity.String())
	assert.Equal(t, "3", a2.PhysicalQuantity.String())
	assert.True(t, a1.ReservedQuantity.IsZero())
	assert.True(t, a2.ReservedQuantity.IsZero())
}

func TestValidate_InvalidaSnapshotsPosteriores(t *testing.T) {
	f := newFixture(t)
	effective := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	kardex := f.store.Repos().Kardex
	save := func(productID string, asOf time.Time, version int64) bool {
		saved, err := kardex.SaveSnapshot(f.ctx, &entity.KardexSnapshot{
			CompanyID: company, ProductID: productID, AsOf: asOf,
		}, version)
		require.NoError(t, err)
		return saved
	}
	for _, asOf := range []time.Time{effective.AddDate(0, 0, -1), effective.AddDate(0, 0, 1)} {
		require.True(t, save(prodA, asOf, 0))
	}
	require.True(t, save(prodB, effective.AddDate(0, 0, 1), 0))

	f.receive(prodA, "1", "5", effective)

	snaps := f.store.Snapshots()
	require.Len(t, snaps, 2)
	for _, sn := range snaps {
		if sn.ProductID == prodA {
			assert.True(t, sn.AsOf.Before(effective))
		}
	}

	// La versión del historial sube solo para el producto tocado.
	va, err := kardex.HistoryVersion(f.ctx, company, prodA)
	require.NoError(t, err)
	vb, err := kardex.HistoryVersion(f.ctx, company, prodB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), va)
	assert.Equal(t, int64(0), vb)
	assert.False(t, save(prodA, effective.AddDate(0, 0, 2), 0), "un saldo leído antes del validate no se guarda")
	assert.True(t, save(prodA, effective.AddDate(0, 0, 2), va))
}

type recordingHook struct {
	events []appinv.ValidatedEvent
	err    error
}

func (h *recordingHook) OnValidated(_ context.Context, ev appinv.ValidatedEvent) error {
	h.events = append(h.events, ev)
	return h.err
}

func TestValidate_InvocaHooksDespuesDelCommit(t *testing.T) {
	failing := &recordingHook{err: errors.New("redis caído")}
	ok := &recordingHook{}
	f := newFixture(t, appinv.WithValidationHooks(failing, ok))

	date := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	p := f.receive(prodA, "2", "5", date)

	require.Len(t, ok.events, 1)
	assert.Equal(t, p.ID, ok.events[0].PickingID)
	assert.Equal(t, []string{prodA}, ok.events[0].ProductIDs)
	assert.True(t, date.Equal(ok.events[0].EffectiveDate))
	assert.Len(t, failing.events, 1)
	assert.Equal(t, entity.PickingDone, f.state(p.ID), "un hook fallido no revierte la validación")
}

func TestValidate_HooksNoSeInvocanSiFalla(t *testing.T) {
	hook := &recordingHook{}
	f := newFixture(t, appinv.WithValidationHooks(hook))
	f.seedStock(prodA, locStock, "10", "5")
	p, _ := f.ready(f.outHeader(), line(prodA, "1"))

	f.store.FailOn("Quants.Save")
	_, err := f.uc.Validate(f.ctx, f.scope, p.ID, nil)
	require.Error(t, err)
	assert.Empty(t, hook.events)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas y lotes de ajuste
// ──────────────────────────────────────────────────────────────────────────────

func TestGetAvailableStock(t *testing.T) {
	f := newFixture(t)
	f.store.SetQuant(company, f.key(prodA, locStock), d("10"), d("3"))
	f.store.SetQuant(company, entity.QuantKey{ProductID: prodLot, LocationID: locStock, LotID: "L2"}, d("2"), d("0"))
	f.store.SetQuant(company, entity.QuantKey{ProductID: prodLot, LocationID: locStock, LotID: "L1"}, d("5"), d("1"))

	st, err := f.uc.GetAvailableStock(f.ctx, f.scope, prodA, locStock)
	require.NoError(t, err)
	assert.Equal(t, "10", st.Physical.String())
	assert.Equal(t, "3", st.Reserved.String())
	assert.Equal(t, "7", st.Available.String())

	st, err = f.uc.GetAvailableStock(f.ctx, f.scope, prodLot, locStock)
	require.NoError(t, err)
	assert.Equal(t, "6", st.Available.String())
	require.Len(t, st.Lots, 2)
	assert.Equal(t, "L1", st.Lots[0].LotID)
	assert.Equal(t, "4", st.Lots[0].Available.String())

	st, err = f.uc.GetAvailableStock(f.ctx, f.scope, prodB, locShelf)
	require.NoError(t, err)
	assert.True(t, st.Available.IsZero())

	_, err = f.uc.GetAvailableStock(f.ctx, f.scope, "", "")
	assert.ElementsMatch(t, []string{"product_id", "location_id"}, fieldsOf(requireValidation(t, err)))
}

func TestPostAdjustments_ReportaTodosLosErrores(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "5", "2")

	_, err := f.uc.PostAdjustments(f.ctx, f.scope, appinv.AdjustmentBatch{
		LocationID:     locStock,
		Reason:         "conteo",
		AccountingDate: ptr(f.now),
		Lines: []appinv.AdjustmentLine{
			{ProductID: prodA, Quantity: d("-8")},
			{ProductID: "desconocido", Quantity: d("1")},
			{ProductID: prodB, Quantity: d("0")},
			{ProductID: prodSerial, Quantity: d("2"), Tracking: []inventory.TrackingInput{{Name: "S1"}}},
		},
	})
	ve := requireValidation(t, err)
	assert.ElementsMatch(t, []string{
		"lines[0].quantity", "lines[1].product_id", "lines[2].quantity", "lines[3].tracking",
	}, fieldsOf(ve))
	for _, it := range ve.Items {
		if it.Field == "lines[0].quantity" {
			assert.Equal(t, domain.CodeInsufficientStock, it.Code)
			assert.Contains(t, it.Message, "physical 5 < requested 8")
		}
	}
	assert.Equal(t, "5", f.store.Quant(company, f.key(prodA, locStock)).PhysicalQuantity.String())
}

func TestPostAdjustments_Aplica(t *testing.T) {
	f := newFixture(t)
	f.seedStock(prodA, locStock, "10", "5")

	detail, err := f.uc.PostAdjustments(f.ctx, f.scope, appinv.AdjustmentBatch{
		LocationID:     locStock,
		Reason:         "conteo",
		AccountingDate: ptr(f.now),
		Lines: []appinv.AdjustmentLine{
			{ProductID: prodA, Quantity: d("2")},
			{ProductID: prodB, Quantity: d("3"), PriceUnit: d("4")},
			{ProductID: prodA, Quantity: d("-1")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PickingDone, detail.Picking.State)
	assert.Equal(t, entity.PickingTypeADJ, detail.Picking.TypeCode)
	assert.Len(t, detail.Moves, 3)

	assert.Equal(t, "11", f.store.Quant(company, f.key(prodA, locStock)).PhysicalQuantity.String())
	a := f.store.Valuation(company, prodA, locStock)
	assert.Equal(t, "5", a.UnitCost.String(), "la entrada sin precio toma el promedio vigente")
	assert.Equal(t, "55", a.Value.String())
	b := f.store.Valuation(company, prodB, locStock)
	assert.Equal(t, "3", b.Quantity.String())
	assert.Equal(t, "12", b.Value.String())
	assert.Zero(t, f.store.ReservationCount())
}

func TestPostAdjustments_UbicacionNoInterna(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.PostAdjustments(f.ctx, f.scope, appinv.AdjustmentBatch{
		LocationID:     locCustomer,
		Reason:         "conteo",
		AccountingDate: ptr(f.now),
		Lines:          []appinv.AdjustmentLine{{ProductID: prodA, Quantity: d("1")}},
	})
	assert.Contains(t, fieldsOf(requireValidation(t, err)), "location_id")
}
