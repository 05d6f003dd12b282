package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/payments"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// InvoiceReconciler lists and retries invoices whose journal posting is pending.
type InvoiceReconciler interface {
	ListPendingAccounting(ctx context.Context, scope docstore.Scope) ([]ar.Invoice, error)
	ReconcileInvoicePosting(ctx context.Context, scope docstore.Scope, id string) (ar.Invoice, error)
}

// PaymentReconciler lists and retries payments whose journal posting is pending.
type PaymentReconciler interface {
	ListPendingAccounting(ctx context.Context, scope docstore.Scope) ([]payments.Payment, error)
	ReconcilePaymentPosting(ctx context.Context, scope docstore.Scope, id string) (payments.Payment, error)
}

// ReconcileResult summarises one reconcile run.
type ReconcileResult struct {
	Invoices int
	Payments int
	Posted   int
	Failed   int
}

// ReconcileJob retries pending journal postings for one scope.
type ReconcileJob struct {
	Invoices InvoiceReconciler
	Payments PaymentReconciler
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewReconcileJob constructs the reconcile handler.
func NewReconcileJob(invoices InvoiceReconciler, payments PaymentReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Invoices: invoices, Payments: payments, Logger: logger, Metrics: metrics}
}

// Handle executes the reconcile task.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil || j.Payments == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	scope := payload.Scope()
	if err := scope.Validate(); err != nil {
		return fmt.Errorf("reconcile: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskLedgerReconcile)
	start := time.Now()
	result, err := j.Run(ctx, scope)
	if err != nil {
		j.logger().Error("reconcile failed", slog.String("scope", scope.String()), slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("completed reconcile",
		slog.String("scope", scope.String()),
		slog.Int("invoices", result.Invoices),
		slog.Int("payments", result.Payments),
		slog.Int("posted", result.Posted),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(nil)
}

// Run retries every pending invoice and payment in scope. Documents that
// still fail stay pending for the next run; only listing errors fail the run.
func (j *ReconcileJob) Run(ctx context.Context, scope docstore.Scope) (ReconcileResult, error) {
	var result ReconcileResult

	invoices, err := j.Invoices.ListPendingAccounting(ctx, scope)
	if err != nil {
		return result, fmt.Errorf("reconcile: list invoices: %w", err)
	}
	result.Invoices = len(invoices)
	for _, inv := range invoices {
		_, err := j.Invoices.ReconcileInvoicePosting(ctx, scope, inv.ID)
		j.record(&result, "invoice", inv.ID, err)
	}

	pending, err := j.Payments.ListPendingAccounting(ctx, scope)
	if err != nil {
		return result, fmt.Errorf("reconcile: list payments: %w", err)
	}
	result.Payments = len(pending)
	for _, p := range pending {
		_, err := j.Payments.ReconcilePaymentPosting(ctx, scope, p.ID)
		j.record(&result, "payment", p.ID, err)
	}
	return result, nil
}

func (j *ReconcileJob) record(result *ReconcileResult, kind, id string, err error) {
	if err != nil {
		result.Failed++
		j.Metrics.AddReconciled(kind, "failed", 1)
		j.logger().Warn("posting still pending",
			slog.String("kind", kind),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return
	}
	result.Posted++
	j.Metrics.AddReconciled(kind, "posted", 1)
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerReconcile))
	}
	return slog.Default().With(slog.String("job", TaskLedgerReconcile))
}
