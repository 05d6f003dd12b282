// Package periods maintains the monthly general ledger summaries that sit
// beside every account balance.
package periods

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Collection holds one summary document per account and month.
const Collection = "general_ledger"

// Key identifies a summary.
type Key struct {
	AccountID string
	Year      int
	Month     time.Month
}

// KeyFor derives the key for a posting date, always in UTC.
func KeyFor(accountID string, date time.Time) Key {
	utc := date.UTC()
	return Key{AccountID: accountID, Year: utc.Year(), Month: utc.Month()}
}

// DocID renders the document id {accountId}_{yyyy}_{mm}.
func (k Key) DocID() string {
	return fmt.Sprintf("%s_%04d_%02d", k.AccountID, k.Year, int(k.Month))
}

// Summary is the running total for one account in one month.
type Summary struct {
	AccountID        string               `json:"accountId"`
	AccountType      accounts.AccountType `json:"accountType"`
	Year             int                  `json:"year"`
	Month            int                  `json:"month"`
	Period           string               `json:"period"`
	OpeningBalance   decimal.Decimal      `json:"openingBalance"`
	TotalDebits      decimal.Decimal      `json:"totalDebits"`
	TotalCredits     decimal.Decimal      `json:"totalCredits"`
	ClosingBalance   decimal.Decimal      `json:"closingBalance"`
	TransactionCount int                  `json:"transactionCount"`
	Currency         string               `json:"currency"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// Key returns the summary's key.
func (s Summary) Key() Key {
	return Key{AccountID: s.AccountID, Year: s.Year, Month: time.Month(s.Month)}
}

// Open starts an empty summary whose opening and closing equal the balance
// of account before the first posting of the month.
func Open(key Key, account accounts.Account, at time.Time) Summary {
	return Summary{
		AccountID:      key.AccountID,
		AccountType:    account.Type,
		Year:           key.Year,
		Month:          int(key.Month),
		Period:         periodLabel(key.Year, key.Month),
		OpeningBalance: account.Balance,
		TotalDebits:    decimal.Zero,
		TotalCredits:   decimal.Zero,
		ClosingBalance: account.Balance,
		Currency:       account.Currency,
		UpdatedAt:      at,
	}
}

// Apply records one line against the summary.
func (s Summary) Apply(debit, credit decimal.Decimal, at time.Time) Summary {
	s.TotalDebits = s.TotalDebits.Add(debit)
	s.TotalCredits = s.TotalCredits.Add(credit)
	s.ClosingBalance = accounts.ApplyDelta(s.ClosingBalance, s.AccountType, debit, credit)
	s.TransactionCount++
	s.UpdatedAt = at
	return s
}

// Rounded returns the summary with persisted amounts rounded to cents.
func (s Summary) Rounded() Summary {
	s.OpeningBalance = s.OpeningBalance.Round(2)
	s.TotalDebits = s.TotalDebits.Round(2)
	s.TotalCredits = s.TotalCredits.Round(2)
	s.ClosingBalance = s.ClosingBalance.Round(2)
	return s
}

// Expected folds the recorded totals onto the opening balance.
func (s Summary) Expected() decimal.Decimal {
	return accounts.ApplyDelta(s.OpeningBalance, s.AccountType, s.TotalDebits, s.TotalCredits).Round(2)
}

// Mismatch describes a summary that does not reconcile.
type Mismatch struct {
	Key      Key
	Field    string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s %s: expected %s, got %s", m.Key.DocID(), m.Field, m.Expected, m.Actual)
}

// Reconcile checks s against the lines posted to its account in its month.
func Reconcile(s Summary, lines []accounts.Line) []Mismatch {
	var out []Mismatch
	debits, credits := decimal.Zero, decimal.Zero
	closing := s.OpeningBalance
	for _, line := range lines {
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
		closing = accounts.ApplyDelta(closing, s.AccountType, line.Debit, line.Credit)
	}
	check := func(field string, want, got decimal.Decimal) {
		if !want.Round(2).Equal(got.Round(2)) {
			out = append(out, Mismatch{Key: s.Key(), Field: field, Expected: want.StringFixed(2), Actual: got.StringFixed(2)})
		}
	}
	check("totalDebits", debits, s.TotalDebits)
	check("totalCredits", credits, s.TotalCredits)
	check("closingBalance", closing, s.ClosingBalance)
	if len(lines) != s.TransactionCount {
		out = append(out, Mismatch{
			Key:      s.Key(),
			Field:    "transactionCount",
			Expected: fmt.Sprint(len(lines)),
			Actual:   fmt.Sprint(s.TransactionCount),
		})
	}
	return out
}
