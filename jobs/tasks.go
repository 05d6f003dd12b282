package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile retries journal postings left pending on invoices and payments.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskLedgerIntegrity checks monthly ledger summaries against posted lines.
	TaskLedgerIntegrity = "ledger:integrity"
)

// ReconcilePayload names the scope to reconcile.
type ReconcilePayload struct {
	WorkspaceID string `json:"workspace_id"`
	OrgID       string `json:"org_id"`
}

// Scope returns the payload scope.
func (p ReconcilePayload) Scope() docstore.Scope {
	return docstore.Scope{WorkspaceID: p.WorkspaceID, OrgID: p.OrgID}
}

// IntegrityPayload names the scope and month to check. A zero year or month
// selects the current month at run time.
type IntegrityPayload struct {
	WorkspaceID string `json:"workspace_id"`
	OrgID       string `json:"org_id"`
	Year        int    `json:"year,omitempty"`
	Month       int    `json:"month,omitempty"`
}

// Scope returns the payload scope.
func (p IntegrityPayload) Scope() docstore.Scope {
	return docstore.Scope{WorkspaceID: p.WorkspaceID, OrgID: p.OrgID}
}

// period resolves the payload month, defaulting to the month of now.
func (p IntegrityPayload) period(now time.Time) (int, time.Month, error) {
	if p.Year == 0 || p.Month == 0 {
		now = now.UTC()
		return now.Year(), now.Month(), nil
	}
	if p.Month < 1 || p.Month > 12 {
		return 0, 0, fmt.Errorf("integrity: invalid month %d", p.Month)
	}
	return p.Year, time.Month(p.Month), nil
}

// NewReconcileTask creates an Asynq task reconciling one scope.
func NewReconcileTask(scope docstore.Scope) (*asynq.Task, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(ReconcilePayload{WorkspaceID: scope.WorkspaceID, OrgID: scope.OrgID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault)), nil
}

// NewIntegrityTask creates an Asynq task checking one scope and month. Pass a
// zero year and month to check whichever month is current when the task runs.
func NewIntegrityTask(scope docstore.Scope, year int, month time.Month) (*asynq.Task, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	payload := IntegrityPayload{WorkspaceID: scope.WorkspaceID, OrgID: scope.OrgID, Year: year, Month: int(month)}
	if _, _, err := payload.period(time.Now()); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}
