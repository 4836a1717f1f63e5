package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Worker envuelve el servidor asynq y el scheduler opcional.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	log       zerolog.Logger
}

// WorkerConfig dependencias del worker. SnapshotCron vacío desactiva la programación.
type WorkerConfig struct {
	RedisOpts    asynq.RedisClientOpt
	Concurrency  int
	SnapshotCron string
	Handlers     *Handlers
	Logger       zerolog.Logger
}

// NewWorker arma servidor, rutas y scheduler.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handlers == nil {
		return nil, errors.New("worker: handlers requeridos")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	log := cfg.Logger
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task", task.Type()).Msg("tarea falló")
		}),
	})
	mux := NewServeMux(cfg.Handlers)

	var scheduler *asynq.Scheduler
	if cfg.SnapshotCron != "" {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		task, err := NewSnapshotAllTask(SnapshotAllPayload{})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cfg.SnapshotCron, task); err != nil {
			return nil, err
		}
	}
	return &Worker{server: srv, mux: mux, scheduler: scheduler, log: log}, nil
}

// NewServeMux registra los handlers por tipo de tarea.
func NewServeMux(h *Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskKardexSnapshot, h.HandleSnapshot)
	mux.HandleFunc(TaskKardexSnapshotAll, h.HandleSnapshotAll)
	return mux
}

// Run procesa tareas hasta que se cancela ctx.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return err
		}
	}
	w.log.Info().Bool("scheduler", w.scheduler != nil).Msg("worker de kardex iniciado")

	<-ctx.Done()
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	w.log.Info().Msg("worker de kardex detenido")
	return nil
}
