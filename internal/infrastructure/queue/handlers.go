package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Inventario-movimientos/internal/application/kardex"
	"github.com/jhoicas/Inventario-movimientos/internal/domain/entity"
)

// Snapshotter lo implementa kardex.UseCase.
type Snapshotter interface {
	BuildSnapshot(ctx context.Context, companyID, productID, warehouseID string, asOf time.Time) (*entity.KardexSnapshot, error)
	SnapshotAll(ctx context.Context, companyID string, asOf time.Time) (int, error)
}

// Handlers procesa las tareas de snapshots.
type Handlers struct {
	snapshots Snapshotter
	log       zerolog.Logger
	now       func() time.Time
}

// NewHandlers construye los handlers.
func NewHandlers(s Snapshotter, log zerolog.Logger) *Handlers {
	return &Handlers{snapshots: s, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// HandleSnapshot procesa kardex:snapshot. Un payload ilegible no se reintenta.
func (h *Handlers) HandleSnapshot(ctx context.Context, t *asynq.Task) error {
	var p SnapshotPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("payload %s: %v: %w", TaskKardexSnapshot, err, asynq.SkipRetry)
	}
	if p.CompanyID == "" || p.ProductID == "" || p.AsOf.IsZero() {
		return fmt.Errorf("payload %s incompleto: %w", TaskKardexSnapshot, asynq.SkipRetry)
	}
	snap, err := h.snapshots.BuildSnapshot(ctx, p.CompanyID, p.ProductID, p.WarehouseID, p.AsOf)
	if errors.Is(err, kardex.ErrStaleSnapshot) {
		// Se reintenta con el historial ya confirmado.
		h.log.Warn().Str("company_id", p.CompanyID).Str("product_id", p.ProductID).Msg("snapshot de kardex obsoleto, se reintenta")
		return err
	}
	if err != nil {
		h.log.Error().Err(err).Str("company_id", p.CompanyID).Str("product_id", p.ProductID).Msg("snapshot de kardex falló")
		return err
	}
	h.log.Info().
		Str("company_id", p.CompanyID).
		Str("product_id", p.ProductID).
		Time("as_of", snap.AsOf).
		Str("quantity", snap.Quantity.String()).
		Msg("snapshot de kardex listo")
	return nil
}

// HandleSnapshotAll procesa kardex:snapshot-all.
func (h *Handlers) HandleSnapshotAll(ctx context.Context, t *asynq.Task) error {
	var p SnapshotAllPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("payload %s: %v: %w", TaskKardexSnapshotAll, err, asynq.SkipRetry)
		}
	}
	asOf := p.AsOf
	if asOf.IsZero() {
		asOf = MonthStart(h.now())
	}
	n, err := h.snapshots.SnapshotAll(ctx, p.CompanyID, asOf)
	if err != nil {
		h.log.Error().Err(err).Int("done", n).Msg("snapshot-all de kardex falló")
		return err
	}
	h.log.Info().Int("products", n).Time("as_of", asOf).Msg("snapshot-all de kardex listo")
	return nil
}
