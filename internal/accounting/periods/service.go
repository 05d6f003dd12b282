package periods

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, scope docstore.Scope, key Key) (Summary, error) {
	summary, err := s.repo.Get(ctx, scope, key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Summary{}, &shared.NotFoundError{Kind: "ledger summary", ID: key.DocID()}
		}
		return Summary{}, shared.StoreError("get ledger summary", err)
	}
	return summary, nil
}

// Month lists every account summary for one month.
func (s *Service) Month(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]Summary, error) {
	if month < time.January || month > time.December {
		return nil, shared.Validation("month", "must be between 1 and 12")
	}
	out, err := s.repo.ListMonth(ctx, scope, year, month)
	return out, shared.StoreError("list ledger summaries", err)
}

// LatestAsOf returns, per account, the last summary at or before the month.
func (s *Service) LatestAsOf(ctx context.Context, scope docstore.Scope, year int, month time.Month) (map[string]Summary, error) {
	all, err := s.repo.ListUpTo(ctx, scope, year, month)
	if err != nil {
		return nil, shared.StoreError("list ledger summaries", err)
	}
	latest := make(map[string]Summary, len(all))
	for _, summary := range all {
		// ordered by period, so later months overwrite earlier ones
		latest[summary.AccountID] = summary
	}
	return latest, nil
}

// History lists an account's summaries oldest first.
func (s *Service) History(ctx context.Context, scope docstore.Scope, accountID string) ([]Summary, error) {
	out, err := s.repo.ListAccount(ctx, scope, accountID)
	return out, shared.StoreError("list account history", err)
}

// BalancesAsOf reconstructs each account's balance at the end of the month:
// the closing of its latest summary at or before the month, else the opening
// of its first later summary, else the live balance of an untouched account.
func (s *Service) BalancesAsOf(ctx context.Context, scope docstore.Scope, year int, month time.Month, list []accounts.Account) (map[string]decimal.Decimal, error) {
	all, err := s.repo.ListAll(ctx, scope)
	if err != nil {
		return nil, shared.StoreError("list ledger summaries", err)
	}
	upTo := make(map[string]Summary)
	after := make(map[string]Summary)
	for _, summary := range all {
		key := summary.Key()
		if key.Year > year || (key.Year == year && key.Month > month) {
			if _, seen := after[summary.AccountID]; !seen {
				after[summary.AccountID] = summary
			}
			continue
		}
		upTo[summary.AccountID] = summary
	}
	out := make(map[string]decimal.Decimal, len(list))
	for _, account := range list {
		switch {
		case hasKey(upTo, account.ID):
			out[account.ID] = upTo[account.ID].ClosingBalance
		case hasKey(after, account.ID):
			out[account.ID] = after[account.ID].OpeningBalance
		default:
			out[account.ID] = account.Balance
		}
	}
	return out, nil
}

func hasKey(m map[string]Summary, id string) bool {
	_, ok := m[id]
	return ok
}
