package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is one of the five account categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// ParseAccountType accepts any casing ("ASSET", "Asset").
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", shared.Validation("accountType", fmt.Sprintf("unknown account type %q", raw))
	}
	return t, nil
}

// Side is the side of an entry that increases an account.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// NormalBalanceSide returns the side that increases accounts of type t.
// Callers must only pass validated types.
func NormalBalanceSide(t AccountType) Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	case AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue:
		return SideCredit
	}
	panic(fmt.Sprintf("accounts: unknown account type %q", string(t)))
}

// ApplyDelta moves balance by one debit/credit pair following the normal side of t.
// Every balance mutation in the ledger goes through this function.
func ApplyDelta(balance decimal.Decimal, t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if NormalBalanceSide(t) == SideDebit {
		return balance.Add(debit).Sub(credit)
	}
	return balance.Sub(debit).Add(credit)
}

// SignedAmount is the effect of a single debit/credit pair on an account of type t.
func SignedAmount(t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	return ApplyDelta(decimal.Zero, t, debit, credit)
}

// Account models a chart of accounts node.
type Account struct {
	ID        string          `json:"accountId"`
	Code      string          `json:"accountCode"`
	Name      string          `json:"accountName"`
	Type      AccountType     `json:"accountType"`
	Subtype   string          `json:"accountSubtype,omitempty"`
	ParentID  string          `json:"parentAccountId,omitempty"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Line is one debit or credit posting against an account.
type Line struct {
	AccountID   string          `json:"accountId"`
	Debit       decimal.Decimal `json:"debitAmount"`
	Credit      decimal.Decimal `json:"creditAmount"`
	Description string          `json:"description,omitempty"`
}

// Totals are the rounded sums returned by ValidateEntry.
type Totals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// ValidateEntry checks the shape of a set of lines and returns their totals
// rounded to cents. Callers use these totals instead of summing again.
func ValidateEntry(lines []Line) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, shared.Validationf(shared.ErrNoLines, "lineItems", "at least one line item is required")
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range lines {
		field := fmt.Sprintf("lineItems[%d]", idx)
		if strings.TrimSpace(line.AccountID) == "" {
			return Totals{}, shared.Validation(field, "accountId required")
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return Totals{}, shared.Validation(field, "amounts must not be negative")
		}
		if !line.Debit.IsZero() && !line.Credit.IsZero() {
			return Totals{}, shared.Validation(field, "cannot be both debit and credit")
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return Totals{}, shared.Validation(field, "debit or credit required")
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	totals := Totals{Debit: debit.Round(2), Credit: credit.Round(2)}
	if !totals.Debit.Equal(totals.Credit) {
		return Totals{}, shared.Validationf(shared.ErrUnbalanced, "lineItems",
			"debits %s do not equal credits %s", totals.Debit.StringFixed(2), totals.Credit.StringFixed(2))
	}
	return totals, nil
}

// CreateInput carries the fields accepted when opening an account.
type CreateInput struct {
	ID       string `json:"accountId" yaml:"id" validate:"omitempty,max=64,excludesall=/"`
	Code     string `json:"accountCode" yaml:"code" validate:"required,max=32"`
	Name     string `json:"accountName" yaml:"name" validate:"required,max=200"`
	Type     string `json:"accountType" yaml:"type" validate:"required"`
	Subtype  string `json:"accountSubtype" yaml:"subtype" validate:"omitempty,max=64"`
	ParentID string `json:"parentAccountId" yaml:"parent" validate:"omitempty,excludesall=/"`
	Currency string `json:"currency" yaml:"currency" validate:"omitempty,len=3"`
}

// Validate normalises and checks the input, returning the parsed type.
func (in *CreateInput) Validate() (AccountType, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return "", shared.Validation("accountCode", "required")
	}
	if strings.Contains(in.Code, "/") || strings.Contains(in.ID, "/") {
		return "", shared.Validation("accountCode", "must not contain '/'")
	}
	if in.Name == "" {
		return "", shared.Validation("accountName", "required")
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	in.Currency = strings.ToUpper(in.Currency)
	return ParseAccountType(in.Type)
}
