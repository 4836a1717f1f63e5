package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Inventario-movimientos/internal/application/dto"
	appinv "github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/domain"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
)

// PickingService operaciones de pickings que expone la API (implementada por appinv.PickingUseCase).
type PickingService interface {
	CreateDraftPicking(ctx context.Context, scope domain.Scope, in appinv.CreatePickingInput) (*entity.Picking, error)
	AddMove(ctx context.Context, scope domain.Scope, pickingID string, in appinv.MoveInput) (*entity.StockMove, error)
	RemoveMove(ctx context.Context, scope domain.Scope, pickingID, moveID string) error
	GetPicking(ctx context.Context, scope domain.Scope, pickingID string) (*appinv.PickingDetail, error)
	MarkReady(ctx context.Context, scope domain.Scope, pickingID string) (*entity.Picking, error)
	Validate(ctx context.Context, scope domain.Scope, pickingID string, tracking appinv.TrackingMap) (*entity.Picking, error)
	Cancel(ctx context.Context, scope domain.Scope, pickingID string) (*entity.Picking, error)
	ReturnToDraft(ctx context.Context, scope domain.Scope, pickingID string) (*entity.Picking, error)
	PostAdjustments(ctx context.Context, scope domain.Scope, batch appinv.AdjustmentBatch) (*appinv.PickingDetail, error)
	GetAvailableStock(ctx context.Context, scope domain.Scope, productID, locationID string) (*appinv.AvailableStock, error)
}

var _ PickingService = (*appinv.PickingUseCase)(nil)

// PickingHandler maneja pickings, ajustes y stock disponible.
type PickingHandler struct {
	svc PickingService
}

// NewPickingHandler construye el handler.
func NewPickingHandler(svc PickingService) *PickingHandler {
	return &PickingHandler{svc: svc}
}

// handled devuelve nil si bind ya escribió la respuesta de error.
func handled(err error) error {
	if errors.Is(err, errBound) {
		return nil
	}
	return err
}

// Create crea un picking en borrador.
// @Summary Crear picking
// @Tags pickings
// @Accept json
// @Produce json
// @Param body body dto.CreatePickingRequest true "Encabezado"
// @Success 201 {object} dto.PickingResponse
// @Failure 400 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/pickings [post]
func (h *PickingHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePickingRequest
	if err := bindJSON(c, &req); err != nil {
		return handled(err)
	}
	p, err := h.svc.CreateDraftPicking(c.UserContext(), ScopeFrom(c), appinv.CreatePickingInput{
		TypeCode:            req.TypeCode,
		LocationSrcID:       req.LocationSrcID,
		LocationDestID:      req.LocationDestID,
		PartnerID:           req.PartnerID,
		EmployeeID:          req.EmployeeID,
		PurchaseOrder:       req.PurchaseOrder,
		AdjustmentReason:    req.AdjustmentReason,
		CustomOperationType: req.CustomOperationType,
		ScheduledDate:       req.ScheduledDate,
		DateTransfer:        req.DateTransfer,
		AccountingDate:      req.AccountingDate,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toPickingResponse(p))
}

// Get devuelve el picking con sus movimientos.
// @Summary Obtener picking
// @Tags pickings
// @Produce json
// @Param id path string true "ID del picking"
// @Success 200 {object} dto.PickingDetailResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/pickings/{id} [get]
func (h *PickingHandler) Get(c *fiber.Ctx) error {
	d, err := h.svc.GetPicking(c.UserContext(), ScopeFrom(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toDetailResponse(d))
}

// AddMove agrega una línea al borrador.
// @Summary Agregar movimiento
// @Tags pickings
// @Accept json
// @Produce json
// @Param id path string true "ID del picking"
// @Param body body dto.AddMoveRequest true "Movimiento"
// @Success 201 {object} dto.MoveResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/pickings/{id}/moves [post]
func (h *PickingHandler) AddMove(c *fiber.Ctx) error {
	var req dto.AddMoveRequest
	if err := bindJSON(c, &req); err != nil {
		return handled(err)
	}
	m, err := h.svc.AddMove(c.UserContext(), ScopeFrom(c), c.Params("id"), appinv.MoveInput{
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		LocationSrcID:    req.LocationSrcID,
		LocationDestID:   req.LocationDestID,
		PriceUnit:        req.PriceUnit,
		CostAtAdjustment: req.CostAtAdjustment,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMoveResponse(m, nil))
}

// RemoveMove quita una línea del borrador.
// @Summary Quitar movimiento
// @Tags pickings
// @Param id path string true "ID del picking"
// @Param moveId path string true "ID del movimiento"
// @Success 204
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/pickings/{id}/moves/{moveId} [delete]
func (h *PickingHandler) RemoveMove(c *fiber.Ctx) error {
	if err := h.svc.RemoveMove(c.UserContext(), ScopeFrom(c), c.Params("id"), c.Params("moveId")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type transitionFunc func(ctx context.Context, scope domain.Scope, pickingID string) (*entity.Picking, error)

func (h *PickingHandler) transition(fn transitionFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := fn(c.UserContext(), ScopeFrom(c), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(toPickingResponse(p))
	}
}

// MarkReady reserva stock y pasa el picking a ready.
// @Summary Marcar listo
// @Tags pickings
// @Produce json
// @Param id path string true "ID del picking"
// @Success 200 {object} dto.PickingResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/pickings/{id}/ready [post]
func (h *PickingHandler) MarkReady(c *fiber.Ctx) error {
	return h.transition(h.svc.MarkReady)(c)
}

// Cancel cancela el picking y libera reservas.
// @Summary Cancelar picking
// @Tags pickings
// @Produce json
// @Param id path string true "ID del picking"
// @Success 200 {object} dto.PickingResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/pickings/{id}/cancel [post]
func (h *PickingHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(h.svc.Cancel)(c)
}

// ReturnToDraft devuelve un picking ready a borrador.
// @Summary Volver a borrador
// @Tags pickings
// @Produce json
// @Param id path string true "ID del picking"
// @Success 200 {object} dto.PickingResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/pickings/{id}/draft [post]
func (h *PickingHandler) ReturnToDraft(c *fiber.Ctx) error {
	return h.transition(h.svc.ReturnToDraft)(c)
}

// Validate ejecuta el picking: mueve stock físico y valoriza.
// @Summary Validar picking
// @Tags pickings
// @Accept json
// @Produce json
// @Param id path string true "ID del picking"
// @Param body body dto.ValidatePickingRequest false "Series/lotes por movimiento"
// @Success 200 {object} dto.PickingResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/pickings/{id}/validate [post]
func (h *PickingHandler) Validate(c *fiber.Ctx) error {
	var req dto.ValidatePickingRequest
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return handled(err)
		}
	}
	tracking := make(appinv.TrackingMap, len(req.Tracking))
	for moveID, items := range req.Tracking {
		tracking[moveID] = toTrackingInputs(items)
	}
	p, err := h.svc.Validate(c.UserContext(), ScopeFrom(c), c.Params("id"), tracking)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toPickingResponse(p))
}

// PostAdjustments crea y valida un ajuste por lote de líneas.
// @Summary Publicar ajustes
// @Tags adjustments
// @Accept json
// @Produce json
// @Param body body dto.PostAdjustmentsRequest true "Ajustes"
// @Success 201 {object} dto.PickingDetailResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/adjustments [post]
func (h *PickingHandler) PostAdjustments(c *fiber.Ctx) error {
	var req dto.PostAdjustmentsRequest
	if err := bindJSON(c, &req); err != nil {
		return handled(err)
	}
	batch := appinv.AdjustmentBatch{
		LocationID:          req.LocationID,
		Reason:              req.Reason,
		CustomOperationType: req.CustomOperationType,
		AccountingDate:      req.AccountingDate,
		Lines:               make([]appinv.AdjustmentLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		batch.Lines = append(batch.Lines, appinv.AdjustmentLine{
			ProductID:        l.ProductID,
			Quantity:         l.Quantity,
			PriceUnit:        l.PriceUnit,
			CostAtAdjustment: l.CostAtAdjustment,
			Tracking:         toTrackingInputs(l.Tracking),
		})
	}
	d, err := h.svc.PostAdjustments(c.UserContext(), ScopeFrom(c), batch)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDetailResponse(d))
}

// AvailableStock consulta físico, reservado y disponible de un producto en una ubicación.
// @Summary Stock disponible
// @Tags stock
// @Produce json
// @Param product_id query string true "Producto"
// @Param location_id query string true "Ubicación"
// @Success 200 {object} dto.AvailableStockResponse
// @Failure 400 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/stock/available [get]
func (h *PickingHandler) AvailableStock(c *fiber.Ctx) error {
	var q dto.AvailableStockQuery
	if err := bindQuery(c, &q); err != nil {
		return handled(err)
	}
	s, err := h.svc.GetAvailableStock(c.UserContext(), ScopeFrom(c), q.ProductID, q.LocationID)
	if err != nil {
		return writeError(c, err)
	}
	resp := dto.AvailableStockResponse{
		ProductID:  s.ProductID,
		LocationID: s.LocationID,
		Physical:   s.Physical,
		Reserved:   s.Reserved,
		Available:  s.Available,
	}
	for _, l := range s.Lots {
		resp.Lots = append(resp.Lots, dto.LotBalanceResponse{LotID: l.LotID, Physical: l.Physical, Reserved: l.Reserved, Available: l.Available})
	}
	return c.JSON(resp)
}

func toTrackingInputs(items []dto.TrackingItem) []inventory.TrackingInput {
	if len(items) == 0 {
		return nil
	}
	out := make([]inventory.TrackingInput, 0, len(items))
	for _, it := range items {
		out = append(out, inventory.TrackingInput{Name: it.Name, Quantity: it.Quantity})
	}
	return out
}

func toPickingResponse(p *entity.Picking) dto.PickingResponse {
	return dto.PickingResponse{
		ID:                  p.ID,
		Reference:           p.Reference,
		TypeCode:            p.TypeCode,
		State:               p.State,
		LocationSrcID:       p.LocationSrcID,
		LocationDestID:      p.LocationDestID,
		PartnerID:           p.PartnerID,
		EmployeeID:          p.EmployeeID,
		PurchaseOrder:       p.PurchaseOrder,
		AdjustmentReason:    p.AdjustmentReason,
		CustomOperationType: p.CustomOperationType,
		ScheduledDate:       p.ScheduledDate,
		DateTransfer:        p.DateTransfer,
		AccountingDate:      p.AccountingDate,
		DoneAt:              p.DoneAt,
		CreatedBy:           p.CreatedBy,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func toMoveResponse(m *entity.StockMove, lines []*entity.StockMoveLine) dto.MoveResponse {
	resp := dto.MoveResponse{
		ID:               m.ID,
		ProductID:        m.ProductID,
		Quantity:         m.Quantity,
		LocationSrcID:    m.LocationSrcID,
		LocationDestID:   m.LocationDestID,
		PriceUnit:        m.PriceUnit,
		CostAtAdjustment: m.CostAtAdjustment,
		Value:            m.Value,
		State:            m.State,
		Sequence:         m.Sequence,
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, dto.MoveLineResponse{LotName: l.LotName, Quantity: l.Quantity})
	}
	return resp
}

func toDetailResponse(d *appinv.PickingDetail) dto.PickingDetailResponse {
	resp := dto.PickingDetailResponse{
		PickingResponse: toPickingResponse(d.Picking),
		Moves:           make([]dto.MoveResponse, 0, len(d.Moves)),
	}
	for _, m := range d.Moves {
		resp.Moves = append(resp.Moves, toMoveResponse(m, d.Lines[m.ID]))
	}
	return resp
}
