package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
	"github.com/jhoicas/Inventario-movimientos/internal/infrastructure/postgres"
	"github.com/jhoicas/Inventario-movimientos/internal/infrastructure/queue"
	"github.com/jhoicas/Inventario-movimientos/pkg/config"
	"github.com/jhoicas/Inventario-movimientos/pkg/logger"
)

// Worker de snapshots de Kardex (kardex:snapshot, kardex:snapshot-all).
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name + "-worker",
	})
	if !cfg.Redis.Enabled() {
		log.Fatal().Msg("REDIS_ADDR requerido para el worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	kardexUC := kardex.NewUseCase(
		postgres.NewKardexRepository(pool),
		postgres.NewProductCatalog(pool),
		log.Component("kardex"),
		kardex.WithConcurrency(cfg.Inventory.KardexConcurrency),
	)

	worker, err := queue.NewWorker(queue.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Concurrency:  cfg.Worker.Concurrency,
		SnapshotCron: cfg.Worker.SnapshotCron,
		Handlers:     queue.NewHandlers(kardexUC, log.Component("queue")),
		Logger:       log.Component("worker"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("crear worker")
	}
	if err := worker.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker finalizado con error")
	}
	log.Info().Msg("worker detenido")
}
