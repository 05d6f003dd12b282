package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// AccountBalance models a general ledger account with aggregated balances.
type AccountBalance struct {
	ID      string               `json:"accountId"`
	Code    string               `json:"accountCode"`
	Name    string               `json:"accountName"`
	Type    accounts.AccountType `json:"accountType"`
	Subtype string               `json:"accountSubtype,omitempty"`
	Opening decimal.Decimal      `json:"opening"`
	Debit   decimal.Decimal      `json:"debit"`
	Credit  decimal.Decimal      `json:"credit"`
}

// Closing computes the closing balance following the account's normal side.
func (a AccountBalance) Closing() decimal.Decimal {
	return accounts.ApplyDelta(a.Opening, a.Type, a.Debit, a.Credit)
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	ID      string          `json:"accountId"`
	Code    string          `json:"accountCode"`
	Name    string          `json:"accountName"`
	Opening decimal.Decimal `json:"opening"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Closing decimal.Decimal `json:"closing"`
}

// TrialBalanceGroup aggregates accounts for presentation.
type TrialBalanceGroup struct {
	Key      string                `json:"key"`
	Accounts []TrialBalanceAccount `json:"accounts"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
}

// TrialBalance lists the month's activity per account.
type TrialBalance struct {
	Year        int                 `json:"year"`
	Month       int                 `json:"month"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"totalDebit"`
	TotalCredit decimal.Decimal     `json:"totalCredit"`
	IsBalanced  bool                `json:"isBalanced"`
}

// BuildTrialBalance converts account balances into grouped trial balance data.
// Opening and closing are signed by each account's normal side, so only the
// debit and credit columns are totalled.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	result := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, acc := range balances {
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceAccount{
			ID:      acc.ID,
			Code:    acc.Code,
			Name:    acc.Name,
			Opening: acc.Opening.Round(2),
			Debit:   acc.Debit.Round(2),
			Credit:  acc.Credit.Round(2),
			Closing: acc.Closing().Round(2),
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	sort.Strings(keys)
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	result.IsBalanced = result.TotalDebit.Equal(result.TotalCredit)
	return result
}
