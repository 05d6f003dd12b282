package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

// SubtypeCOGS tags expense accounts reported as cost of goods sold.
const SubtypeCOGS = "cogs"

// IncomeStatementLine represents an account row inside an income statement section.
type IncomeStatementLine struct {
	ID     string          `json:"accountId"`
	Code   string          `json:"accountCode"`
	Name   string          `json:"accountName"`
	Amount decimal.Decimal `json:"amount"`
}

// IncomeStatement is the structured response for the income statement report.
type IncomeStatement struct {
	From              time.Time             `json:"from"`
	To                time.Time             `json:"to"`
	Revenue           decimal.Decimal       `json:"revenue"`
	COGS              decimal.Decimal       `json:"cogs"`
	GrossProfit       decimal.Decimal       `json:"grossProfit"`
	OperatingExpenses decimal.Decimal       `json:"operatingExpenses"`
	NetIncome         decimal.Decimal       `json:"netIncome"`
	RevenueLines      []IncomeStatementLine `json:"revenueLines"`
	COGSLines         []IncomeStatementLine `json:"cogsLines"`
	ExpenseLines      []IncomeStatementLine `json:"expenseLines"`
	EntryCount        int                   `json:"entryCount"`
	UnknownAccounts   []string              `json:"unknownAccounts,omitempty"`
}

// IsCOGS reports whether an expense account belongs to cost of goods sold,
// either by subtype or by a "cogs" marker in its name.
func IsCOGS(acc accounts.Account) bool {
	if strings.EqualFold(acc.Subtype, SubtypeCOGS) {
		return true
	}
	name := strings.ToLower(acc.Name)
	return strings.Contains(name, "cogs") || strings.Contains(name, "cost of goods")
}

// BuildIncomeStatement classifies every line of the posted entries by the
// referenced account's type. Amounts are signed by the normal balance side,
// so a revenue credit and an expense debit both count positively.
func BuildIncomeStatement(entries []journals.JournalEntry, byID map[string]accounts.Account) IncomeStatement {
	revenue := make(map[string]decimal.Decimal)
	cogs := make(map[string]decimal.Decimal)
	expense := make(map[string]decimal.Decimal)
	unknown := make(map[string]struct{})

	for _, entry := range entries {
		if !entry.IsPosted() {
			continue
		}
		for _, line := range entry.Lines {
			acc, ok := byID[line.AccountID]
			if !ok {
				unknown[line.AccountID] = struct{}{}
				continue
			}
			switch acc.Type {
			case accounts.AccountTypeRevenue:
				revenue[acc.ID] = revenue[acc.ID].Add(accounts.SignedAmount(acc.Type, line.Debit, line.Credit))
			case accounts.AccountTypeExpense:
				signed := accounts.SignedAmount(acc.Type, line.Debit, line.Credit)
				if IsCOGS(acc) {
					cogs[acc.ID] = cogs[acc.ID].Add(signed)
				} else {
					expense[acc.ID] = expense[acc.ID].Add(signed)
				}
			}
		}
	}

	stmt := IncomeStatement{EntryCount: len(entries)}
	stmt.RevenueLines, stmt.Revenue = incomeLines(revenue, byID)
	stmt.COGSLines, stmt.COGS = incomeLines(cogs, byID)
	stmt.ExpenseLines, stmt.OperatingExpenses = incomeLines(expense, byID)
	stmt.GrossProfit = stmt.Revenue.Sub(stmt.COGS)
	stmt.NetIncome = stmt.GrossProfit.Sub(stmt.OperatingExpenses)
	for id := range unknown {
		stmt.UnknownAccounts = append(stmt.UnknownAccounts, id)
	}
	sort.Strings(stmt.UnknownAccounts)
	return stmt
}

func incomeLines(amounts map[string]decimal.Decimal, byID map[string]accounts.Account) ([]IncomeStatementLine, decimal.Decimal) {
	total := decimal.Zero
	lines := make([]IncomeStatementLine, 0, len(amounts))
	for id, amount := range amounts {
		acc := byID[id]
		amount = amount.Round(2)
		lines = append(lines, IncomeStatementLine{ID: id, Code: acc.Code, Name: acc.Name, Amount: amount})
		total = total.Add(amount)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Code < lines[j].Code })
	return lines, total
}
