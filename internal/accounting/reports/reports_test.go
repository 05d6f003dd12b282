package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildTrialBalance(t *testing.T) {
	rows := []AccountBalance{
		{Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, Opening: d("1000"), Debit: d("200"), Credit: d("150")},
		{Code: "1001", Name: "Bank", Type: accounts.AccountTypeAsset, Opening: d("500"), Debit: d("100"), Credit: d("50")},
		{Code: "2000", Name: "Accounts Payable", Type: accounts.AccountTypeLiability, Opening: d("0"), Debit: d("10"), Credit: d("400")},
	}

	tb := BuildTrialBalance(rows)
	require.Len(t, tb.Groups, 2)
	require.Equal(t, "10", tb.Groups[0].Key)
	require.True(t, tb.TotalDebit.Equal(d("310")), tb.TotalDebit.String())
	require.True(t, tb.TotalCredit.Equal(d("600")), tb.TotalCredit.String())
	require.False(t, tb.IsBalanced)
	// liability closing follows the credit side
	require.True(t, tb.Groups[1].Accounts[0].Closing.Equal(d("390")))
	require.True(t, tb.Groups[0].Accounts[0].Closing.Equal(d("1050")))
}

func TestBuildBalanceSheetPlugsRetainedEarnings(t *testing.T) {
	rows := []AccountBalance{
		{ID: "1000", Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, Opening: d("1500")},
		{ID: "1200", Code: "1200", Name: "Inventory", Type: accounts.AccountTypeAsset, Opening: d("300")},
		{ID: "2000", Code: "2000", Name: "Payables", Type: accounts.AccountTypeLiability, Opening: d("700")},
		{ID: "3000", Code: "3000", Name: "Capital", Type: accounts.AccountTypeEquity, Opening: d("800")},
		{ID: "4000", Code: "4000", Name: "Sales", Type: accounts.AccountTypeRevenue, Opening: d("900")},
		{ID: "6000", Code: "6000", Name: "Rent", Type: accounts.AccountTypeExpense, Opening: d("600")},
	}

	bs := BuildBalanceSheet(rows)
	require.True(t, bs.Assets.Total.Equal(d("1800")))
	require.True(t, bs.Liabilities.Total.Equal(d("700")))
	require.True(t, bs.RetainedEarnings.Equal(d("300")), bs.RetainedEarnings.String())
	require.True(t, bs.Equity.Total.Equal(d("1100")))
	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(bs.Assets.Total))
	require.True(t, bs.IsBalanced)

	last := bs.Equity.Accounts[len(bs.Equity.Accounts)-1]
	require.Equal(t, RetainedEarningsCode, last.Code)
	require.Len(t, bs.Assets.Accounts, 2)
	require.Equal(t, "1000", bs.Assets.Accounts[0].Code)
}

func TestBuildBalanceSheetEmpty(t *testing.T) {
	bs := BuildBalanceSheet(nil)
	require.True(t, bs.IsBalanced)
	require.True(t, bs.RetainedEarnings.IsZero())
}

func TestBuildIncomeStatement(t *testing.T) {
	byID := map[string]accounts.Account{
		"1000": {ID: "1000", Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset},
		"4000": {ID: "4000", Code: "4000", Name: "Sales", Type: accounts.AccountTypeRevenue},
		"5000": {ID: "5000", Code: "5000", Name: "Merchandise", Type: accounts.AccountTypeExpense, Subtype: "COGS"},
		"5100": {ID: "5100", Code: "5100", Name: "COGS - freight", Type: accounts.AccountTypeExpense},
		"6000": {ID: "6000", Code: "6000", Name: "Rent", Type: accounts.AccountTypeExpense},
	}
	posted := func(lines ...accounts.Line) journals.JournalEntry {
		return journals.JournalEntry{Status: journals.JournalStatusPosted, Lines: lines}
	}
	entries := []journals.JournalEntry{
		posted(accounts.Line{AccountID: "1000", Debit: d("1200")}, accounts.Line{AccountID: "4000", Credit: d("1200")}),
		posted(accounts.Line{AccountID: "5000", Debit: d("300")}, accounts.Line{AccountID: "1000", Credit: d("300")}),
		posted(accounts.Line{AccountID: "5100", Debit: d("50")}, accounts.Line{AccountID: "1000", Credit: d("50")}),
		posted(accounts.Line{AccountID: "6000", Debit: d("200")}, accounts.Line{AccountID: "1000", Credit: d("200")}),
		// a refund reduces revenue
		posted(accounts.Line{AccountID: "4000", Debit: d("100")}, accounts.Line{AccountID: "1000", Credit: d("100")}),
		posted(accounts.Line{AccountID: "9999", Debit: d("1")}, accounts.Line{AccountID: "1000", Credit: d("1")}),
		{Status: journals.JournalStatusDraft, Lines: []accounts.Line{{AccountID: "6000", Debit: d("999")}}},
	}

	stmt := BuildIncomeStatement(entries, byID)
	require.True(t, stmt.Revenue.Equal(d("1100")), stmt.Revenue.String())
	require.True(t, stmt.COGS.Equal(d("350")), stmt.COGS.String())
	require.True(t, stmt.GrossProfit.Equal(d("750")))
	require.True(t, stmt.OperatingExpenses.Equal(d("200")))
	require.True(t, stmt.NetIncome.Equal(d("550")))
	require.Equal(t, []string{"9999"}, stmt.UnknownAccounts)
	require.Len(t, stmt.COGSLines, 2)
}

func TestIsCOGS(t *testing.T) {
	require.True(t, IsCOGS(accounts.Account{Subtype: "cogs"}))
	require.True(t, IsCOGS(accounts.Account{Name: "Cost of Goods Sold"}))
	require.False(t, IsCOGS(accounts.Account{Name: "Salaries"}))
}

func TestAccountBalanceClosing(t *testing.T) {
	revenue := AccountBalance{Type: accounts.AccountTypeRevenue, Opening: d("10"), Debit: d("2"), Credit: d("5")}
	require.True(t, revenue.Closing().Equal(d("13")))
	expense := AccountBalance{Type: accounts.AccountTypeExpense, Opening: d("10"), Debit: d("2"), Credit: d("5")}
	require.True(t, expense.Closing().Equal(d("7")))
}
