package reports

import "time"

// TrialBalanceViewModel wraps the trial balance with the scope and period it covers.
type TrialBalanceViewModel struct {
	WorkspaceID string       `json:"workspaceId"`
	OrgID       string       `json:"orgId"`
	PeriodLabel string       `json:"period"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Report      TrialBalance `json:"report"`
}

// IncomeStatementViewModel wraps the income statement for a date range.
type IncomeStatementViewModel struct {
	WorkspaceID string          `json:"workspaceId"`
	OrgID       string          `json:"orgId"`
	PeriodLabel string          `json:"period"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Report      IncomeStatement `json:"report"`
}

// BalanceSheetViewModel contains data for the balance sheet report.
type BalanceSheetViewModel struct {
	WorkspaceID string       `json:"workspaceId"`
	OrgID       string       `json:"orgId"`
	PeriodLabel string       `json:"period"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Report      BalanceSheet `json:"report"`
}
