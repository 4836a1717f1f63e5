package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Inventario-movimientos/internal/application/dto"
	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
	"github.com/jhoicas/Inventario-movimientos/internal/domain"
)

const dateLayout = "2006-01-02"

// KardexService reconstrucción del Kardex (implementada por kardex.UseCase).
type KardexService interface {
	GetKardex(ctx context.Context, scope domain.Scope, q kardex.Query) (*kardex.Report, error)
}

var _ KardexService = (*kardex.UseCase)(nil)

// KardexHandler expone el Kardex en JSON o como archivo (pdf, xml).
type KardexHandler struct {
	svc       KardexService
	exporters map[string]kardex.Exporter
}

// NewKardexHandler construye el handler. exporters va indexado por formato ("pdf", "xml").
func NewKardexHandler(svc KardexService, exporters map[string]kardex.Exporter) *KardexHandler {
	return &KardexHandler{svc: svc, exporters: exporters}
}

// Get devuelve el Kardex del rango [date_from, date_to], ambos incluidos.
// @Summary Kardex valorizado
// @Tags kardex
// @Produce json,application/pdf,application/xml
// @Param date_from query string true "Desde (YYYY-MM-DD)"
// @Param date_to query string true "Hasta (YYYY-MM-DD, incluido)"
// @Param product_ids query string false "Productos separados por coma"
// @Param warehouse_id query string false "Bodega"
// @Param format query string false "json | pdf | xml"
// @Success 200 {object} kardex.Report
// @Failure 400 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /api/kardex [get]
func (h *KardexHandler) Get(c *fiber.Ctx) error {
	var q dto.KardexQuery
	if err := bindQuery(c, &q); err != nil {
		return handled(err)
	}
	query, err := toKardexQuery(q)
	if err != nil {
		return writeError(c, err)
	}
	report, err := h.svc.GetKardex(c.UserContext(), ScopeFrom(c), query)
	if err != nil {
		return writeError(c, err)
	}

	format := strings.ToLower(q.Format)
	if format == "" || format == "json" {
		return c.JSON(report)
	}
	exp, ok := h.exporters[format]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "UNSUPPORTED_FORMAT", Message: "formato no disponible: " + format})
	}
	body, err := exp.Export(report)
	if err != nil {
		return writeError(c, fmt.Errorf("exportar kardex %s: %w", format, err))
	}
	c.Set(fiber.HeaderContentType, exp.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="kardex_%s_%s.%s"`, q.DateFrom, q.DateTo, format))
	return c.Send(body)
}

// toKardexQuery convierte date_to incluido en el límite excluido del caso de uso.
func toKardexQuery(q dto.KardexQuery) (kardex.Query, error) {
	from, err := time.Parse(dateLayout, q.DateFrom)
	if err != nil {
		return kardex.Query{}, domain.NewValidationError(domain.FieldError{Field: "date_from", Code: "datetime", Message: "fecha inválida"})
	}
	to, err := time.Parse(dateLayout, q.DateTo)
	if err != nil {
		return kardex.Query{}, domain.NewValidationError(domain.FieldError{Field: "date_to", Code: "datetime", Message: "fecha inválida"})
	}
	var ids []string
	for _, id := range strings.Split(q.ProductIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return kardex.Query{
		ProductIDs:  ids,
		DateFrom:    from,
		DateTo:      to.AddDate(0, 0, 1),
		WarehouseID: strings.TrimSpace(q.WarehouseID),
	}, nil
}
