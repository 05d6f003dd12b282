package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// RetainedEarningsCode marks the synthesized equity line.
const RetainedEarningsCode = "RE"

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	ID      string          `json:"accountId,omitempty"`
	Code    string          `json:"accountCode"`
	Name    string          `json:"accountName"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	AsOf                      *time.Time          `json:"asOf,omitempty"`
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	RetainedEarnings          decimal.Decimal     `json:"retainedEarnings"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"totalLiabilitiesAndEquity"`
	IsBalanced                bool                `json:"isBalanced"`
}

// BuildBalanceSheet aggregates closing balances into assets, liabilities and
// equity, then adds a retained earnings line so that assets equal
// liabilities plus equity. Revenue and expense accounts only reach the
// report through that plug.
func BuildBalanceSheet(balances []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets", Total: decimal.Zero}
	liabilities := BalanceSheetSection{Label: "Liabilities", Total: decimal.Zero}
	equity := BalanceSheetSection{Label: "Equity", Total: decimal.Zero}

	for _, acc := range balances {
		row := BalanceSheetAccount{ID: acc.ID, Code: acc.Code, Name: acc.Name, Balance: acc.Closing().Round(2)}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			assets.Accounts = append(assets.Accounts, row)
			assets.Total = assets.Total.Add(row.Balance)
		case accounts.AccountTypeLiability:
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total = liabilities.Total.Add(row.Balance)
		case accounts.AccountTypeEquity:
			equity.Accounts = append(equity.Accounts, row)
			equity.Total = equity.Total.Add(row.Balance)
		}
	}

	sort.Slice(assets.Accounts, func(i, j int) bool { return assets.Accounts[i].Code < assets.Accounts[j].Code })
	sort.Slice(liabilities.Accounts, func(i, j int) bool { return liabilities.Accounts[i].Code < liabilities.Accounts[j].Code })
	sort.Slice(equity.Accounts, func(i, j int) bool { return equity.Accounts[i].Code < equity.Accounts[j].Code })

	retained := assets.Total.Sub(liabilities.Total).Sub(equity.Total)
	equity.Accounts = append(equity.Accounts, BalanceSheetAccount{
		Code:    RetainedEarningsCode,
		Name:    "Retained earnings",
		Balance: retained,
	})
	equity.Total = equity.Total.Add(retained)

	total := liabilities.Total.Add(equity.Total)
	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		RetainedEarnings:          retained,
		TotalLiabilitiesAndEquity: total,
		IsBalanced:                assets.Total.Round(2).Equal(total.Round(2)),
	}
}
