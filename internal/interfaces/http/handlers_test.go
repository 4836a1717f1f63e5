package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Inventario-movimientos/internal/application/dto"
	appinv "github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	apphttp "github.com/jhoicas/Inventario-movimientos/internal/interfaces/http"
)

// fakePickings registra la última llamada y responde lo configurado.
type fakePickings struct {
	err        error
	scope      domain.Scope
	created    appinv.CreatePickingInput
	tracking   appinv.TrackingMap
	adjustment appinv.AdjustmentBatch
	removed    string
}

func (f *fakePickings) picking(id, state string) *entity.Picking {
	return &entity.Picking{ID: id, Reference: "WH/IN/00001", TypeCode: entity.PickingTypeIN, State: state, CreatedBy: f.scope.UserID}
}

func (f *fakePickings) CreateDraftPicking(_ context.Context, s domain.Scope, in appinv.CreatePickingInput) (*entity.Picking, error) {
	f.scope, f.created = s, in
	if f.err != nil {
		return nil, f.err
	}
	return f.picking("pk-1", entity.PickingDraft), nil
}

func (f *fakePickings) AddMove(_ context.Context, s domain.Scope, pickingID string, in appinv.MoveInput) (*entity.StockMove, error) {
	f.scope = s
	if f.err != nil {
		return nil, f.err
	}
	return &entity.StockMove{ID: "mv-1", PickingID: pickingID, ProductID: in.ProductID, Quantity: in.Quantity, State: entity.PickingDraft, Sequence: 1}, nil
}

func (f *fakePickings) RemoveMove(_ context.Context, s domain.Scope, _, moveID string) error {
	f.scope, f.removed = s, moveID
	return f.err
}

func (f *fakePickings) GetPicking(_ context.Context, s domain.Scope, id string) (*appinv.PickingDetail, error) {
	f.scope = s
	if f.err != nil {
		return nil, f.err
	}
	return &appinv.PickingDetail{
		Picking: f.picking(id, entity.PickingDone),
		Moves:   []*entity.StockMove{{ID: "mv-1", ProductID: "prod-a", Quantity: decimal.NewFromInt(2)}},
		Lines: map[string][]*entity.StockMoveLine{
			"mv-1": {{MoveID: "mv-1", LotName: "SN-1", Quantity: decimal.NewFromInt(1)}, {MoveID: "mv-1", LotName: "SN-2", Quantity: decimal.NewFromInt(1)}},
		},
	}, nil
}

func (f *fakePickings) transition(s domain.Scope, id, to string) (*entity.Picking, error) {
	f.scope = s
	if f.err != nil {
		return nil, f.err
	}
	return f.picking(id, to), nil
}

func (f *fakePickings) MarkReady(_ context.Context, s domain.Scope, id string) (*entity.Picking, error) {
	return f.transition(s, id, entity.PickingReady)
}

func (f *fakePickings) Validate(_ context.Context, s domain.Scope, id string, tracking appinv.TrackingMap) (*entity.Picking, error) {
	f.tracking = tracking
	return f.transition(s, id, entity.PickingDone)
}

func (f *fakePickings) Cancel(_ context.Context, s domain.Scope, id string) (*entity.Picking, error) {
	return f.transition(s, id, entity.PickingCancelled)
}

func (f *fakePickings) ReturnToDraft(_ context.Context, s domain.Scope, id string) (*entity.Picking, error) {
	return f.transition(s, id, entity.PickingDraft)
}

func (f *fakePickings) PostAdjustments(_ context.Context, s domain.Scope, b appinv.AdjustmentBatch) (*appinv.PickingDetail, error) {
	f.scope, f.adjustment = s, b
	if f.err != nil {
		return nil, f.err
	}
	return &appinv.PickingDetail{Picking: f.picking("pk-adj", entity.PickingDone)}, nil
}

func (f *fakePickings) GetAvailableStock(_ context.Context, s domain.Scope, productID, locationID string) (*appinv.AvailableStock, error) {
	f.scope = s
	if f.err != nil {
		return nil, f.err
	}
	return &appinv.AvailableStock{
		ProductID: productID, LocationID: locationID,
		Physical: decimal.NewFromInt(10), Reserved: decimal.NewFromInt(4), Available: decimal.NewFromInt(6),
	}, nil
}

type fakeKardex struct {
	query kardex.Query
}

func (f *fakeKardex) GetKardex(_ context.Context, s domain.Scope, q kardex.Query) (*kardex.Report, error) {
	f.query = q
	return &kardex.Report{CompanyID: s.CompanyID, DateFrom: q.DateFrom, DateTo: q.DateTo, Rows: []entity.KardexEntry{}}, nil
}

type fakeExporter struct{}

func (fakeExporter) ContentType() string { return "application/xml" }

func (fakeExporter) Export(*kardex.Report) ([]byte, error) { return []byte("<Kardex/>"), nil }

func newAPI(t *testing.T, p *fakePickings, k *fakeKardex) *fiber.App {
	t.Helper()
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Pickings:        p,
		Kardex:          k,
		KardexExporters: map[string]kardex.Exporter{"xml": fakeExporter{}},
		JWTSecret:       testJWTSecret,
		JWTIssuer:       testIssuer,
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, role, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", tokenForRole(t, role))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPickingHandler_CreateUsaAlcanceDelToken(t *testing.T) {
	p := &fakePickings{}
	app := newAPI(t, p, &fakeKardex{})

	resp := call(t, app, http.MethodPost, "/api/pickings/", "bodeguero",
		`{"type_code":"IN","location_src_id":"loc-vendor","location_dest_id":"loc-stock","purchase_order":"OC-7"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[dto.PickingResponse](t, resp)

	assert.Equal(t, "pk-1", body.ID)
	assert.Equal(t, entity.PickingDraft, body.State)
	assert.Equal(t, domain.Scope{CompanyID: testCompanyID, UserID: testUserID}, p.scope)
	assert.Equal(t, "OC-7", p.created.PurchaseOrder)
	assert.Equal(t, "loc-stock", p.created.LocationDestID)
}

func TestPickingHandler_CreateTipoInvalido(t *testing.T) {
	app := newAPI(t, &fakePickings{}, &fakeKardex{})
	resp := call(t, app, http.MethodPost, "/api/pickings/", "admin", `{"type_code":"XX"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "VALIDATION", body.Code)
	require.NotEmpty(t, body.Fields)
	assert.Equal(t, "oneof", body.Fields[0].Code)
}

func TestPickingHandler_AuditorNoEscribe(t *testing.T) {
	app := newAPI(t, &fakePickings{}, &fakeKardex{})
	resp := call(t, app, http.MethodPost, "/api/pickings/pk-1/ready", "auditor", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = call(t, app, http.MethodGet, "/api/pickings/pk-1", "auditor", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[dto.PickingDetailResponse](t, resp)
	require.Len(t, body.Moves, 1)
	require.Len(t, body.Moves[0].Lines, 2)
	assert.Equal(t, "SN-1", body.Moves[0].Lines[0].LotName)
}

func TestPickingHandler_ValidateConTracking(t *testing.T) {
	p := &fakePickings{}
	app := newAPI(t, p, &fakeKardex{})

	resp := call(t, app, http.MethodPost, "/api/pickings/pk-1/validate", "bodeguero",
		`{"tracking":{"mv-1":[{"name":"sn-001","quantity":"1"},{"name":"sn-002","quantity":"1"}]}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[dto.PickingResponse](t, resp)
	assert.Equal(t, entity.PickingDone, body.State)

	require.Len(t, p.tracking["mv-1"], 2)
	assert.Equal(t, "sn-002", p.tracking["mv-1"][1].Name)
	assert.True(t, p.tracking["mv-1"][0].Quantity.Equal(decimal.NewFromInt(1)))
}

func TestPickingHandler_ValidateSinBody(t *testing.T) {
	p := &fakePickings{}
	app := newAPI(t, p, &fakeKardex{})
	resp := call(t, app, http.MethodPost, "/api/pickings/pk-1/validate", "admin", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, p.tracking)
}

func TestPickingHandler_ErroresDeDominio(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"stock insuficiente", domain.NewBusinessRuleError(domain.CodeInsufficientStock, "stock insuficiente", "P-001 @ WH/Stock"), http.StatusConflict, domain.CodeInsufficientStock},
		{"transición", domain.NewBusinessRuleError(domain.CodeInvalidTransition, "no se puede"), http.StatusConflict, domain.CodeInvalidTransition},
		{"otra empresa", domain.NewBusinessRuleError(domain.CodeForbiddenCompany, "no pertenece"), http.StatusForbidden, domain.CodeForbiddenCompany},
		{"no existe", &domain.NotFoundError{Resource: "picking", ID: "pk-9"}, http.StatusNotFound, "NOT_FOUND"},
		{"validación", domain.NewValidationError(domain.FieldError{Field: "quantity", Message: "debe ser positiva"}), http.StatusBadRequest, "VALIDATION"},
		{"interno", assert.AnError, http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newAPI(t, &fakePickings{err: tc.err}, &fakeKardex{})
			resp := call(t, app, http.MethodPost, "/api/pickings/pk-1/ready", "admin", "")
			assert.Equal(t, tc.status, resp.StatusCode)
			body := decode[dto.ErrorResponse](t, resp)
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestPickingHandler_ErrorConDetalles(t *testing.T) {
	err := domain.NewBusinessRuleError(domain.CodeInsufficientStock, "stock insuficiente", "P-001 @ WH/Stock", "P-002 @ WH/Stock")
	app := newAPI(t, &fakePickings{err: err}, &fakeKardex{})
	resp := call(t, app, http.MethodPost, "/api/pickings/pk-1/ready", "admin", "")
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, []string{"P-001 @ WH/Stock", "P-002 @ WH/Stock"}, body.Details)
}

func TestPickingHandler_RemoveMove(t *testing.T) {
	p := &fakePickings{}
	app := newAPI(t, p, &fakeKardex{})
	resp := call(t, app, http.MethodDelete, "/api/pickings/pk-1/moves/mv-3", "bodeguero", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "mv-3", p.removed)
}

func TestPickingHandler_PostAdjustments(t *testing.T) {
	p := &fakePickings{}
	app := newAPI(t, p, &fakeKardex{})
	resp := call(t, app, http.MethodPost, "/api/adjustments", "admin", `{
		"location_id":"loc-stock","reason":"conteo","accounting_date":"2026-03-31T00:00:00Z",
		"lines":[{"product_id":"prod-a","quantity":"-3","price_unit":"0"},
		         {"product_id":"prod-b","quantity":"2","price_unit":"7.5","tracking":[{"name":"L-1","quantity":"2"}]}]}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	require.Len(t, p.adjustment.Lines, 2)
	assert.True(t, p.adjustment.Lines[0].Quantity.Equal(decimal.NewFromInt(-3)))
	assert.Equal(t, "L-1", p.adjustment.Lines[1].Tracking[0].Name)
	require.NotNil(t, p.adjustment.AccountingDate)
	assert.Equal(t, 31, p.adjustment.AccountingDate.Day())
}

func TestPickingHandler_PostAdjustmentsSinLineas(t *testing.T) {
	app := newAPI(t, &fakePickings{}, &fakeKardex{})
	resp := call(t, app, http.MethodPost, "/api/adjustments", "admin",
		`{"location_id":"loc-stock","reason":"conteo","accounting_date":"2026-03-31T00:00:00Z","lines":[]}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPickingHandler_AvailableStock(t *testing.T) {
	app := newAPI(t, &fakePickings{}, &fakeKardex{})
	resp := call(t, app, http.MethodGet, "/api/stock/available?product_id=prod-a&location_id=loc-stock", "auditor", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[dto.AvailableStockResponse](t, resp)
	assert.True(t, body.Available.Equal(decimal.NewFromInt(6)))

	resp = call(t, app, http.MethodGet, "/api/stock/available?product_id=prod-a", "auditor", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKardexHandler_DateToIncluido(t *testing.T) {
	k := &fakeKardex{}
	app := newAPI(t, &fakePickings{}, k)
	resp := call(t, app, http.MethodGet, "/api/kardex?date_from=2026-03-01&date_to=2026-03-31&product_ids=prod-a,%20prod-b,&warehouse_id=wh-1", "auditor", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), k.query.DateFrom)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), k.query.DateTo)
	assert.Equal(t, []string{"prod-a", "prod-b"}, k.query.ProductIDs)
	assert.Equal(t, "wh-1", k.query.WarehouseID)
}

func TestKardexHandler_Formatos(t *testing.T) {
	app := newAPI(t, &fakePickings{}, &fakeKardex{})

	resp := call(t, app, http.MethodGet, "/api/kardex?date_from=2026-03-01&date_to=2026-03-31&format=xml", "admin", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "kardex_2026-03-01_2026-03-31.xml")
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "<Kardex/>", string(raw))

	// pdf no registrado en este router
	resp2 := call(t, app, http.MethodGet, "/api/kardex?date_from=2026-03-01&date_to=2026-03-31&format=pdf", "admin", "")
	body := decode[dto.ErrorResponse](t, resp2)
	assert.Equal(t, "UNSUPPORTED_FORMAT", body.Code)

	resp3 := call(t, app, http.MethodGet, "/api/kardex?date_from=01-03-2026&date_to=2026-03-31", "admin", "")
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestPickingHandler_BodyMalformado(t *testing.T) {
	p := &fakePickings{}
	app := newAPI(t, p, &fakeKardex{})
	resp := call(t, app, http.MethodPost, "/api/pickings/pk-1/moves", "admin", `{"product_id":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "INVALID_BODY", body.Code)
	assert.Empty(t, p.scope.CompanyID, "el servicio no debe llamarse")
}
