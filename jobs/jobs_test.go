package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/payments"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

var scope = docstore.Scope{WorkspaceID: "ws", OrgID: "org"}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTaskConstructors(t *testing.T) {
	task, err := NewReconcileTask(scope)
	require.NoError(t, err)
	require.Equal(t, TaskLedgerReconcile, task.Type())
	var rp ReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &rp))
	require.Equal(t, scope, rp.Scope())

	task, err = NewIntegrityTask(scope, 2024, time.July)
	require.NoError(t, err)
	var ip IntegrityPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &ip))
	require.Equal(t, 2024, ip.Year)
	require.Equal(t, 7, ip.Month)

	_, err = NewReconcileTask(docstore.Scope{WorkspaceID: "ws"})
	require.ErrorIs(t, err, docstore.ErrInvalidPath)
	_, err = NewIntegrityTask(scope, 2024, 13)
	require.Error(t, err)
}

func TestIntegrityPayloadDefaultsToCurrentMonth(t *testing.T) {
	now := time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)
	year, month, err := IntegrityPayload{}.period(now)
	require.NoError(t, err)
	require.Equal(t, 2024, year)
	require.Equal(t, time.February, month)
}

func TestScheduleLedgerJobs(t *testing.T) {
	other := docstore.Scope{WorkspaceID: "ws", OrgID: "org2"}
	regs, err := ScheduleLedgerJobs([]docstore.Scope{scope, other}, "*/15 * * * *", "0 3 * * *")
	require.NoError(t, err)
	require.Len(t, regs, 4)
	require.Equal(t, TaskLedgerReconcile, regs[0].Task.Type())
	require.Equal(t, TaskLedgerIntegrity, regs[1].Task.Type())

	regs, err = ScheduleLedgerJobs([]docstore.Scope{scope}, "", "0 3 * * *")
	require.NoError(t, err)
	require.Len(t, regs, 1)
}

type stubInvoices struct {
	pending []ar.Invoice
	fail    map[string]bool
	calls   []string
}

func (s *stubInvoices) ListPendingAccounting(context.Context, docstore.Scope) ([]ar.Invoice, error) {
	return s.pending, nil
}

func (s *stubInvoices) ReconcileInvoicePosting(_ context.Context, _ docstore.Scope, id string) (ar.Invoice, error) {
	s.calls = append(s.calls, id)
	if s.fail[id] {
		return ar.Invoice{}, errors.New("ledger down")
	}
	return ar.Invoice{ID: id, AccountingStatus: ar.AccountingPosted}, nil
}

type stubPayments struct {
	pending []payments.Payment
	listErr error
	calls   []string
}

func (s *stubPayments) ListPendingAccounting(context.Context, docstore.Scope) ([]payments.Payment, error) {
	return s.pending, s.listErr
}

func (s *stubPayments) ReconcilePaymentPosting(_ context.Context, _ docstore.Scope, id string) (payments.Payment, error) {
	s.calls = append(s.calls, id)
	return payments.Payment{ID: id}, nil
}

func TestReconcileRetriesEveryPendingDocument(t *testing.T) {
	invoices := &stubInvoices{
		pending: []ar.Invoice{{ID: "inv-1"}, {ID: "inv-2"}},
		fail:    map[string]bool{"inv-2": true},
	}
	pays := &stubPayments{pending: []payments.Payment{{ID: "pay-1"}}}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewReconcileJob(invoices, pays, nil, metrics)

	result, err := job.Run(context.Background(), scope)
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Invoices: 2, Payments: 1, Posted: 2, Failed: 1}, result)
	require.Equal(t, []string{"inv-1", "inv-2"}, invoices.calls)
	require.Equal(t, []string{"pay-1"}, pays.calls)

	task, err := NewReconcileTask(scope)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestReconcileListFailureFailsRun(t *testing.T) {
	pays := &stubPayments{listErr: errors.New("store unavailable")}
	job := NewReconcileJob(&stubInvoices{}, pays, nil, nil)
	task, err := NewReconcileTask(scope)
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestHandlersSkipRetryOnBadPayload(t *testing.T) {
	reconcile := NewReconcileJob(&stubInvoices{}, &stubPayments{}, nil, nil)
	err := reconcile.Handle(context.Background(), asynq.NewTask(TaskLedgerReconcile, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	err = reconcile.Handle(context.Background(), asynq.NewTask(TaskLedgerReconcile, []byte(`{"workspace_id":"ws"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	integrity := NewGLIntegrityJob(stubSummaries{}, stubEntries{}, nil, nil, nil)
	err = integrity.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte(`{"workspace_id":"ws","org_id":"org","year":2024,"month":14}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type stubSummaries struct{}

func (stubSummaries) Month(context.Context, docstore.Scope, int, time.Month) ([]periods.Summary, error) {
	return nil, nil
}

type stubEntries struct{}

func (stubEntries) ListPosted(context.Context, docstore.Scope, time.Time, time.Time) ([]journals.JournalEntry, error) {
	return nil, nil
}

type ledgerFixture struct {
	store    *docstore.Memory
	journals *journals.Service
	job      *GLIntegrityJob
	ledger   *observability.LedgerMetrics
	registry *prometheus.Registry
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory(docstore.Options{Backoff: time.Millisecond})
	accountSvc := accounts.NewService(accounts.NewRepository(store))
	for _, in := range []accounts.CreateInput{
		{ID: "1000", Code: "1000", Name: "Cash", Type: "asset"},
		{ID: "4000", Code: "4000", Name: "Sales", Type: "revenue"},
	} {
		_, err := accountSvc.Create(ctx, scope, in)
		require.NoError(t, err)
	}
	registry := prometheus.NewRegistry()
	ledger := observability.NewLedgerMetrics(registry)
	journalSvc := journals.NewService(journals.NewRepository(store), nil, nil, ledger, nil)
	summaries := periods.NewService(periods.NewRepository(store))
	job := NewGLIntegrityJob(summaries, journalSvc, nil, jobmetrics.NewMetrics(registry), ledger)
	job.clock = func() time.Time { return time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC) }
	return &ledgerFixture{store: store, journals: journalSvc, job: job, ledger: ledger, registry: registry}
}

func (f *ledgerFixture) post(t *testing.T, key string, date time.Time, amount string) {
	t.Helper()
	_, err := f.journals.PostJournalEntry(context.Background(), scope, journals.PostingInput{
		IdempotencyKey: key,
		Date:           date,
		Lines: []accounts.Line{
			{AccountID: "1000", Debit: d(amount)},
			{AccountID: "4000", Credit: d(amount)},
		},
	})
	require.NoError(t, err)
}

func TestIntegrityCheckPassesForConsistentLedger(t *testing.T) {
	f := newLedgerFixture(t)
	f.post(t, "s1", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), "40")
	f.post(t, "s2", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), "100")
	f.post(t, "s3", time.Date(2024, 7, 31, 23, 0, 0, 0, time.UTC), "25.50")

	mismatches, err := f.job.Check(context.Background(), scope, 2024, time.July)
	require.NoError(t, err)
	require.Empty(t, mismatches)

	mismatches, err = f.job.Check(context.Background(), scope, 2024, time.June)
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestIntegrityCheckReportsTamperedSummary(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.post(t, "s1", time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), "100")

	key := periods.Key{AccountID: "1000", Year: 2024, Month: time.July}
	err := f.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var s periods.Summary
		if err := tx.Get(ctx, periods.Path(scope, key), &s); err != nil {
			return err
		}
		s.ClosingBalance = d("90")
		return tx.Set(periods.Path(scope, key), s)
	})
	require.NoError(t, err)

	mismatches, err := f.job.Check(ctx, scope, 2024, time.July)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, "closingBalance", mismatches[0].Field)
	require.Equal(t, "100.00", mismatches[0].Expected)

	task, err := NewIntegrityTask(scope, 0, 0)
	require.NoError(t, err)
	require.NoError(t, f.job.Handle(ctx, task))
	families, err := f.registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "ledger_integrity_mismatches_total" {
			found = true
			require.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	require.True(t, found)
}

func TestIntegrityCheckReportsMissingSummary(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.post(t, "s1", time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), "10")

	key := periods.Key{AccountID: "4000", Year: 2024, Month: time.July}
	summaries := periods.NewService(periods.NewRepository(f.store))
	job := NewGLIntegrityJob(filterSummaries{inner: summaries, drop: key.AccountID}, f.journals, nil, nil, nil)

	mismatches, err := job.Check(ctx, scope, 2024, time.July)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, "summary", mismatches[0].Field)
	require.Equal(t, key, mismatches[0].Key)
	require.Equal(t, "missing", mismatches[0].Actual)
}

type filterSummaries struct {
	inner SummarySource
	drop  string
}

func (f filterSummaries) Month(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]periods.Summary, error) {
	all, err := f.inner.Month(ctx, scope, year, month)
	if err != nil {
		return nil, err
	}
	var out []periods.Summary
	for _, s := range all {
		if s.AccountID != f.drop {
			out = append(out, s)
		}
	}
	return out, nil
}
