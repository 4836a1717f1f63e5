package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Pickings        PickingService
	Kardex          KardexService
	KardexExporters map[string]kardex.Exporter
	JWTSecret       string
	JWTIssuer       string
}

// Router registra las rutas de la API. Todo /api requiere Bearer Token; las escrituras
// solo para admin y bodeguero, las lecturas también para auditor.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	writers := RequireRole(RoleAdmin, RoleBodeguero)
	readers := RequireRole(RoleAdmin, RoleBodeguero, RoleAuditor)

	// Pickings
	pickingHandler := NewPickingHandler(deps.Pickings)
	pickings := api.Group("/pickings")
	pickings.Post("/", writers, pickingHandler.Create)
	pickings.Get("/:id", readers, pickingHandler.Get)
	pickings.Post("/:id/moves", writers, pickingHandler.AddMove)
	pickings.Delete("/:id/moves/:moveId", writers, pickingHandler.RemoveMove)
	pickings.Post("/:id/ready", writers, pickingHandler.MarkReady)
	pickings.Post("/:id/validate", writers, pickingHandler.Validate)
	pickings.Post("/:id/cancel", writers, pickingHandler.Cancel)
	pickings.Post("/:id/draft", writers, pickingHandler.ReturnToDraft)

	// Ajustes y stock
	api.Post("/adjustments", writers, pickingHandler.PostAdjustments)
	api.Get("/stock/available", readers, pickingHandler.AvailableStock)

	// Kardex
	kardexHandler := NewKardexHandler(deps.Kardex, deps.KardexExporters)
	api.Get("/kardex", readers, kardexHandler.Get)
}
