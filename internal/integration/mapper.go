package integration

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

func debit(accountID string, amount decimal.Decimal, memo string) accounts.Line {
	return accounts.Line{AccountID: accountID, Debit: amount.Round(2), Description: memo}
}

func credit(accountID string, amount decimal.Decimal, memo string) accounts.Line {
	return accounts.Line{AccountID: accountID, Credit: amount.Round(2), Description: memo}
}

// compact drops lines that carry no amount.
func compact(lines []accounts.Line) []accounts.Line {
	out := lines[:0]
	for _, line := range lines {
		if line.Debit.IsZero() && line.Credit.IsZero() {
			continue
		}
		out = append(out, line)
	}
	return out
}
