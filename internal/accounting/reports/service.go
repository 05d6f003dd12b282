package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

const (
	reportBalanceSheet    = "balance-sheet"
	reportIncomeStatement = "income-statement"
	reportTrialBalance    = "trial-balance"
)

// AccountSource lists chart-of-accounts snapshots.
type AccountSource interface {
	List(ctx context.Context, scope docstore.Scope, activeOnly bool) ([]accounts.Account, error)
}

// EntrySource lists posted journal entries within an inclusive date range.
type EntrySource interface {
	ListPosted(ctx context.Context, scope docstore.Scope, from, to time.Time) ([]journals.JournalEntry, error)
}

// LedgerSource reads general ledger summaries.
type LedgerSource interface {
	Month(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]periods.Summary, error)
	BalancesAsOf(ctx context.Context, scope docstore.Scope, year int, month time.Month, list []accounts.Account) (map[string]decimal.Decimal, error)
}

// Service derives read-only financial statements from posted ledger state.
type Service struct {
	accounts AccountSource
	entries  EntrySource
	ledger   LedgerSource
	cache    *Cache
	group    singleflight.Group
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(accounts AccountSource, entries EntrySource, ledger LedgerSource, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{accounts: accounts, entries: entries, ledger: ledger, cache: cache, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GenerateBalanceSheet buckets active accounts into assets, liabilities and
// equity. A zero asOf reports live balances; otherwise balances are taken
// from the general ledger at the end of asOf's month.
func (s *Service) GenerateBalanceSheet(ctx context.Context, scope docstore.Scope, asOf time.Time) (BalanceSheetViewModel, error) {
	if err := scope.Validate(); err != nil {
		return BalanceSheetViewModel{}, shared.Validation("scope", err.Error())
	}
	label := "current"
	if !asOf.IsZero() {
		asOf = asOf.UTC()
		label = asOf.Format("2006-01")
	}

	var vm BalanceSheetViewModel
	err := s.fetch(ctx, scope, reportBalanceSheet, []string{label}, &vm, func(ctx context.Context) (any, error) {
		list, err := s.accounts.List(ctx, scope, true)
		if err != nil {
			return nil, err
		}
		var balances map[string]decimal.Decimal
		if !asOf.IsZero() {
			balances, err = s.ledger.BalancesAsOf(ctx, scope, asOf.Year(), asOf.Month(), list)
			if err != nil {
				return nil, err
			}
		}
		rows := make([]AccountBalance, 0, len(list))
		for _, acc := range list {
			row := accountBalance(acc)
			if balances != nil {
				row.Opening = balances[acc.ID]
			} else {
				row.Opening = acc.Balance
			}
			rows = append(rows, row)
		}
		report := BuildBalanceSheet(rows)
		if !asOf.IsZero() {
			at := asOf
			report.AsOf = &at
		}
		return BalanceSheetViewModel{
			WorkspaceID: scope.WorkspaceID,
			OrgID:       scope.OrgID,
			PeriodLabel: label,
			GeneratedAt: s.now().UTC(),
			Report:      report,
		}, nil
	})
	if err != nil {
		return BalanceSheetViewModel{}, shared.StoreError("generate balance sheet", err)
	}
	return vm, nil
}

// GenerateIncomeStatement classifies posted activity between from and to,
// both inclusive.
func (s *Service) GenerateIncomeStatement(ctx context.Context, scope docstore.Scope, from, to time.Time) (IncomeStatementViewModel, error) {
	if err := scope.Validate(); err != nil {
		return IncomeStatementViewModel{}, shared.Validation("scope", err.Error())
	}
	if from.IsZero() || to.IsZero() {
		return IncomeStatementViewModel{}, shared.Validation("from", "from and to are required")
	}
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return IncomeStatementViewModel{}, shared.Validation("to", "must not be before from")
	}
	label := from.Format(time.RFC3339) + ".." + to.Format(time.RFC3339)

	var vm IncomeStatementViewModel
	err := s.fetch(ctx, scope, reportIncomeStatement, []string{label}, &vm, func(ctx context.Context) (any, error) {
		var (
			byID    map[string]accounts.Account
			entries []journals.JournalEntry
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			byID, err = s.accountIndex(gctx, scope)
			return err
		})
		g.Go(func() error {
			var err error
			entries, err = s.entries.ListPosted(gctx, scope, from, to)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		report := BuildIncomeStatement(entries, byID)
		report.From, report.To = from, to
		if len(report.UnknownAccounts) > 0 {
			s.logger.Warn("income statement skipped lines on unknown accounts",
				slog.String("scope", scope.String()), slog.Any("account_ids", report.UnknownAccounts))
		}
		return IncomeStatementViewModel{
			WorkspaceID: scope.WorkspaceID,
			OrgID:       scope.OrgID,
			PeriodLabel: from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
			GeneratedAt: s.now().UTC(),
			Report:      report,
		}, nil
	})
	if err != nil {
		return IncomeStatementViewModel{}, shared.StoreError("generate income statement", err)
	}
	return vm, nil
}

// GenerateTrialBalance lists one month's general ledger summaries.
func (s *Service) GenerateTrialBalance(ctx context.Context, scope docstore.Scope, year int, month time.Month) (TrialBalanceViewModel, error) {
	if err := scope.Validate(); err != nil {
		return TrialBalanceViewModel{}, shared.Validation("scope", err.Error())
	}
	if month < time.January || month > time.December {
		return TrialBalanceViewModel{}, shared.Validation("month", "must be between 1 and 12")
	}
	if year < 1 || year > 9999 {
		return TrialBalanceViewModel{}, shared.Validation("year", "out of range")
	}
	label := fmt.Sprintf("%04d-%02d", year, int(month))

	var vm TrialBalanceViewModel
	err := s.fetch(ctx, scope, reportTrialBalance, []string{label}, &vm, func(ctx context.Context) (any, error) {
		var (
			byID      map[string]accounts.Account
			summaries []periods.Summary
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			byID, err = s.accountIndex(gctx, scope)
			return err
		})
		g.Go(func() error {
			var err error
			summaries, err = s.ledger.Month(gctx, scope, year, month)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		rows := make([]AccountBalance, 0, len(summaries))
		for _, summary := range summaries {
			acc, ok := byID[summary.AccountID]
			if !ok {
				acc = accounts.Account{ID: summary.AccountID, Code: summary.AccountID, Type: summary.AccountType}
			}
			row := accountBalance(acc)
			row.Opening = summary.OpeningBalance
			row.Debit = summary.TotalDebits
			row.Credit = summary.TotalCredits
			rows = append(rows, row)
		}
		report := BuildTrialBalance(rows)
		report.Year, report.Month = year, int(month)
		return TrialBalanceViewModel{
			WorkspaceID: scope.WorkspaceID,
			OrgID:       scope.OrgID,
			PeriodLabel: label,
			GeneratedAt: s.now().UTC(),
			Report:      report,
		}, nil
	})
	if err != nil {
		return TrialBalanceViewModel{}, shared.StoreError("generate trial balance", err)
	}
	return vm, nil
}

func (s *Service) accountIndex(ctx context.Context, scope docstore.Scope) (map[string]accounts.Account, error) {
	list, err := s.accounts.List(ctx, scope, false)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]accounts.Account, len(list))
	for _, acc := range list {
		byID[acc.ID] = acc
	}
	return byID, nil
}

// fetch serves a report from the cache, building it at most once per
// versioned key across concurrent callers.
func (s *Service) fetch(ctx context.Context, scope docstore.Scope, report string, params []string, dest any, loader func(context.Context) (any, error)) error {
	parts := append([]string{report}, params...)
	key, err := s.cache.BuildKey(ctx, scope, parts...)
	cached := err == nil
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", report), slog.Any("error", err))
		key = "uncached:" + scope.String() + ":" + strings.Join(parts, ":")
	}
	raw, err, coalesced := build(ctx, &s.group, key, func(ctx context.Context) ([]byte, error) {
		var payload json.RawMessage
		if cached {
			if err := s.cache.FetchJSON(ctx, report, key, &payload, loader); err != nil {
				return nil, err
			}
			return payload, nil
		}
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		return err
	}
	if coalesced {
		s.logger.Debug("report build shared", slog.String("key", key))
	}
	return json.Unmarshal(raw, dest)
}

func accountBalance(acc accounts.Account) AccountBalance {
	return AccountBalance{
		ID:      acc.ID,
		Code:    acc.Code,
		Name:    acc.Name,
		Type:    acc.Type,
		Subtype: acc.Subtype,
		Opening: decimal.Zero,
		Debit:   decimal.Zero,
		Credit:  decimal.Zero,
	}
}
