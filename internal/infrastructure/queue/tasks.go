// Package queue encola y procesa con asynq los precálculos de saldos del Kardex.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault cola única de los snapshots.
	QueueDefault = "default"
	// TaskKardexSnapshot recalcula el saldo de apertura de un producto.
	TaskKardexSnapshot = "kardex:snapshot"
	// TaskKardexSnapshotAll recalcula el saldo de todos los productos (tarea programada).
	TaskKardexSnapshotAll = "kardex:snapshot-all"
)

// SnapshotPayload datos de kardex:snapshot.
type SnapshotPayload struct {
	CompanyID   string    `json:"company_id"`
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id,omitempty"`
	AsOf        time.Time `json:"as_of"`
}

// SnapshotAllPayload datos de kardex:snapshot-all. CompanyID vacío = todas las empresas;
// AsOf cero = primer día del mes en curso al momento de procesar.
type SnapshotAllPayload struct {
	CompanyID string    `json:"company_id,omitempty"`
	AsOf      time.Time `json:"as_of,omitempty"`
}

// NewSnapshotTask construye la tarea. El TaskID evita encolar dos veces el mismo saldo.
func NewSnapshotTask(p SnapshotPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s:%s:%s:%s:%s", TaskKardexSnapshot, p.CompanyID, p.ProductID, p.WarehouseID, p.AsOf.UTC().Format("20060102"))
	return asynq.NewTask(TaskKardexSnapshot, body, asynq.Queue(QueueDefault), asynq.TaskID(id), asynq.MaxRetry(5)), nil
}

// NewSnapshotAllTask construye la tarea programada.
func NewSnapshotAllTask(p SnapshotAllPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskKardexSnapshotAll, body, asynq.Queue(QueueDefault), asynq.Timeout(time.Hour)), nil
}

// MonthStart primer instante del mes de t en UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
