package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// SummarySource reads the ledger summaries of a month.
type SummarySource interface {
	Month(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]periods.Summary, error)
}

// PostedEntrySource lists posted journal entries in a date range.
type PostedEntrySource interface {
	ListPosted(ctx context.Context, scope docstore.Scope, from, to time.Time) ([]journals.JournalEntry, error)
}

// GLIntegrityJob verifies that every monthly summary equals the fold of the
// posted lines it covers.
type GLIntegrityJob struct {
	Summaries SummarySource
	Entries   PostedEntrySource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Ledger    *observability.LedgerMetrics
	clock     func() time.Time
}

// NewGLIntegrityJob constructs the integrity handler.
func NewGLIntegrityJob(summaries SummarySource, entries PostedEntrySource, logger *slog.Logger, metrics *jobmetrics.Metrics, ledger *observability.LedgerMetrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Summaries: summaries,
		Entries:   entries,
		Logger:    logger,
		Metrics:   metrics,
		Ledger:    ledger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the integrity task. Mismatches are reported, not repaired.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Summaries == nil || j.Entries == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	scope := payload.Scope()
	if err := scope.Validate(); err != nil {
		return fmt.Errorf("gl integrity: %v: %w", err, asynq.SkipRetry)
	}
	year, month, err := payload.period(j.now())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	logger := j.logger().With(
		slog.String("scope", scope.String()),
		slog.String("period", fmt.Sprintf("%04d-%02d", year, int(month))),
	)
	mismatches, err := j.Check(ctx, scope, year, month)
	if err != nil {
		logger.Error("integrity check failed", slog.Any("error", err))
		return tracker.End(err)
	}
	for _, m := range mismatches {
		logger.Warn("ledger summary mismatch", slog.String("detail", m.String()))
	}
	j.Ledger.AddMismatches(len(mismatches))
	logger.Info("completed integrity check", slog.Int("mismatches", len(mismatches)))
	return tracker.End(nil)
}

// Check compares the month's summaries with the posted lines dated in it.
// Accounts with posted lines but no summary are reported as missing.
func (j *GLIntegrityJob) Check(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]periods.Mismatch, error) {
	summaries, err := j.Summaries.Month(ctx, scope, year, month)
	if err != nil {
		return nil, fmt.Errorf("gl integrity: summaries: %w", err)
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	entries, err := j.Entries.ListPosted(ctx, scope, from, to)
	if err != nil {
		return nil, fmt.Errorf("gl integrity: entries: %w", err)
	}

	lines := make(map[string][]accounts.Line)
	for _, entry := range entries {
		for _, line := range entry.Lines {
			lines[line.AccountID] = append(lines[line.AccountID], line)
		}
	}

	var out []periods.Mismatch
	seen := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		seen[s.AccountID] = true
		out = append(out, periods.Reconcile(s, lines[s.AccountID])...)
	}
	var missing []string
	for id := range lines {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	for _, id := range missing {
		net := decimal.Zero
		for _, line := range lines[id] {
			net = net.Add(line.Debit).Sub(line.Credit)
		}
		out = append(out, periods.Mismatch{
			Key:      periods.Key{AccountID: id, Year: year, Month: month},
			Field:    "summary",
			Expected: fmt.Sprintf("%d lines, net debit %s", len(lines[id]), net.StringFixed(2)),
			Actual:   "missing",
		})
	}
	return out, nil
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
