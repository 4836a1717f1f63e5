package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	appinv "github.com/jhoicas/Inventario-movimientos/internal/application/inventory"
)

var _ appinv.ValidationHook = (*Client)(nil)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client encola tareas de snapshot.
type Client struct {
	client enqueuer
	now    func() time.Time
}

// NewClient construye el cliente asynq.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return newClient(asynq.NewClient(redisOpts), func() time.Time { return time.Now().UTC() })
}

func newClient(e enqueuer, now func() time.Time) *Client {
	return &Client{client: e, now: now}
}

// EnqueueSnapshot encola kardex:snapshot. Si ya hay una tarea igual pendiente no hace nada.
func (c *Client) EnqueueSnapshot(ctx context.Context, p SnapshotPayload) error {
	task, err := NewSnapshotTask(p)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}
	return nil
}

// OnValidated reprograma el saldo del mes en curso de cada producto tocado. Solo hace falta
// cuando el picking tiene fecha anterior al inicio del mes: ese validate borró el saldo.
func (c *Client) OnValidated(ctx context.Context, ev appinv.ValidatedEvent) error {
	asOf := MonthStart(c.now())
	if !ev.EffectiveDate.Before(asOf) {
		return nil
	}
	var errs []error
	for _, productID := range ev.ProductIDs {
		if err := c.EnqueueSnapshot(ctx, SnapshotPayload{
			CompanyID: ev.CompanyID,
			ProductID: productID,
			AsOf:      asOf,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close libera la conexión.
func (c *Client) Close() error {
	return c.client.Close()
}
