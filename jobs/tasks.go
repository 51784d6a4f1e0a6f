package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/reconcile"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile recomputes cached stock quantities from assets and the ledger.
	TaskStockReconcile = "inventory:stock_reconcile"
)

// StockReconcilePayload narrows a reconciliation run. Zero values mean every
// unit and both natures.
type StockReconcilePayload struct {
	UnitID *int64 `json:"unit_id,omitempty"`
	Nature string `json:"nature,omitempty"`
}

// NewStockReconcileTask constructs an Asynq task.
func NewStockReconcileTask(payload StockReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, data), nil
}

func (p StockReconcilePayload) filter() reconcile.Filter {
	return reconcile.Filter{UnitID: p.UnitID, Nature: catalog.Nature(p.Nature)}
}
