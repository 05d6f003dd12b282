package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// AuditCollection holds audit records inside each scope.
const AuditCollection = "audit_logs"

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID       string         `json:"id"`
	ActorID  string         `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditLogger writes records into the audit_logs collection.
type AuditLogger struct {
	store docstore.Store
	now   func() time.Time
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(store docstore.Store) *AuditLogger {
	return &AuditLogger{store: store, now: time.Now}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, scope docstore.Scope, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.At.IsZero() {
		log.At = l.now().UTC()
	}
	return l.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Set(scope.Doc(AuditCollection, log.ID), log)
	})
}

// List returns audit records for one entity, oldest first.
func (l *AuditLogger) List(ctx context.Context, scope docstore.Scope, entity, entityID string) ([]AuditLog, error) {
	snaps, err := l.store.Query(ctx, scope, docstore.Query{
		Collection: AuditCollection,
		Filters: []docstore.Filter{
			docstore.Where("entity", docstore.OpEq, entity),
			docstore.Where("entityId", docstore.OpEq, entityID),
		},
		OrderBy: "at",
	})
	if err != nil {
		return nil, err
	}
	out := make([]AuditLog, 0, len(snaps))
	for _, snap := range snaps {
		var log AuditLog
		if err := snap.DataTo(&log); err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	return out, nil
}
