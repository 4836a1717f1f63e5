package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"

	_ "github.com/jhoicas/Inventario-movimientos/docs"
	appinv "github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/inventory"
	"github.com/jhoicas/Inventario-movimientos/internal/infrastructure/cache"
	infrapdf "github.com/jhoicas/Inventario-movimientos/internal/infrastructure/pdf"
	"github.com/jhoicas/Inventario-movimientos/internal/infrastructure/postgres"
	"github.com/jhoicas/Inventario-movimientos/internal/infrastructure/queue"
	"github.com/jhoicas/Inventario-movimientos/internal/infrastructure/xmlexport"
	httpRouter "github.com/jhoicas/Inventario-movimientos/internal/interfaces/http"
	"github.com/jhoicas/Inventario-movimientos/pkg/config"
	"github.com/jhoicas/Inventario-movimientos/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET requerido")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	rules, err := config.LoadOperationRules(cfg.Inventory.OperationRulesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("reglas de operación")
	}
	ruleSet := inventory.NewRuleSet(rules, cfg.Inventory.CuadrillaCategory)

	var (
		hooks      []appinv.ValidationHook
		kardexOpts = []kardex.Option{kardex.WithConcurrency(cfg.Inventory.KardexConcurrency)}
	)
	// Redis es opcional: sin él no hay caché de Kardex ni snapshots en segundo plano.
	if cfg.Redis.Enabled() {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		kardexCache := cache.NewKardexCache(rdb, cfg.Redis.KardexTTL)

		queueClient := queue.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer queueClient.Close()

		hooks = append(hooks, kardexCache, queueClient)
		kardexOpts = append(kardexOpts, kardex.WithCache(kardexCache))
	} else {
		log.Warn().Msg("REDIS_ADDR vacío: Kardex sin caché ni snapshots")
	}

	pickingUC := appinv.NewPickingUseCase(
		postgres.NewTxRunner(pool),
		postgres.NewCatalogs(pool),
		ruleSet,
		cfg.Inventory.AdjustmentLocationID,
		log.Component("pickings"),
		appinv.WithValidationHooks(hooks...),
	)
	kardexUC := kardex.NewUseCase(
		postgres.NewKardexRepository(pool),
		postgres.NewProductCatalog(pool),
		log.Component("kardex"),
		kardexOpts...,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Inventario Movimientos API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Pickings: pickingUC,
		Kardex:   kardexUC,
		KardexExporters: map[string]kardex.Exporter{
			"pdf": infrapdf.NewKardexExporter(),
			"xml": xmlexport.NewKardexExporter(),
		},
		JWTSecret: cfg.JWT.Secret,
		JWTIssuer: cfg.JWT.Issuer,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
