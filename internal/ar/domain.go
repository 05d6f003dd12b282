package ar

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Collection holds invoice documents.
const Collection = "invoices"

var hundred = decimal.NewFromInt(100)

// DocumentStatus enumerates invoice and bill statuses.
type DocumentStatus string

const (
	StatusDraft         DocumentStatus = "draft"
	StatusPosted        DocumentStatus = "posted"
	StatusPartiallyPaid DocumentStatus = "partially_paid"
	StatusPaid          DocumentStatus = "paid"
)

// AccountingStatus tracks the journal follow-up of a document.
type AccountingStatus string

const (
	AccountingNone    AccountingStatus = "none"
	AccountingPending AccountingStatus = "pending"
	AccountingPosted  AccountingStatus = "posted"
)

// Item is one invoice line. The Line* fields are derived.
type Item struct {
	Description  string          `json:"description,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	DiscountPct  decimal.Decimal `json:"discountPct"`
	TaxRatePct   decimal.Decimal `json:"taxRatePct"`
	LineSubtotal decimal.Decimal `json:"lineSubtotal"`
	LineDiscount decimal.Decimal `json:"lineDiscount"`
	LineTax      decimal.Decimal `json:"lineTax"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
}

// Totals are the derived document amounts.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

// ValidateItems rejects empty lists, non-positive quantities, negative prices
// and percentages outside their range.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return shared.Validation("items", "at least one item is required")
	}
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case !item.Quantity.IsPositive():
			return shared.Validation(field+".quantity", "must be positive")
		case item.UnitPrice.IsNegative():
			return shared.Validation(field+".unitPrice", "must not be negative")
		case item.DiscountPct.IsNegative() || item.DiscountPct.GreaterThan(hundred):
			return shared.Validation(field+".discountPct", "must be between 0 and 100")
		case item.TaxRatePct.IsNegative():
			return shared.Validation(field+".taxRatePct", "must not be negative")
		}
	}
	return nil
}

// ComputeInvoiceTotals derives per-line and document amounts. Sums are
// accumulated at full precision and every persisted figure is rounded once.
func ComputeInvoiceTotals(items []Item) ([]Item, Totals) {
	out := make([]Item, len(items))
	subtotal, discount, tax := decimal.Zero, decimal.Zero, decimal.Zero
	for i, item := range items {
		lineSubtotal := item.Quantity.Mul(item.UnitPrice)
		lineDiscount := lineSubtotal.Mul(item.DiscountPct).Div(hundred)
		lineTax := lineSubtotal.Sub(lineDiscount).Mul(item.TaxRatePct).Div(hundred)
		lineTotal := lineSubtotal.Sub(lineDiscount).Add(lineTax)

		subtotal = subtotal.Add(lineSubtotal)
		discount = discount.Add(lineDiscount)
		tax = tax.Add(lineTax)

		item.LineSubtotal = lineSubtotal.Round(2)
		item.LineDiscount = lineDiscount.Round(2)
		item.LineTax = lineTax.Round(2)
		item.LineTotal = lineTotal.Round(2)
		out[i] = item
	}
	return out, Totals{
		Subtotal:       subtotal.Round(2),
		DiscountAmount: discount.Round(2),
		TaxAmount:      tax.Round(2),
		TotalAmount:    subtotal.Sub(discount).Add(tax).Round(2),
	}
}

// PaymentRecord is the history entry a payment leaves on its source document.
type PaymentRecord struct {
	PaymentID string          `json:"paymentId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"paymentMethod,omitempty"`
	PaidAt    time.Time       `json:"paidAt"`
}

// Settlement tracks what has been paid against a document.
type Settlement struct {
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	BalanceAmount decimal.Decimal `json:"balanceAmount"`
	Payments      []PaymentRecord `json:"payments"`
}

// NewSettlement seeds a settlement from payments already taken.
func NewSettlement(total decimal.Decimal, payments []PaymentRecord) Settlement {
	s := Settlement{PaidAmount: decimal.Zero, BalanceAmount: total, Payments: []PaymentRecord{}}
	for _, p := range payments {
		s.Apply(total, p)
	}
	return s
}

// Apply adds a payment. The balance never drops below zero.
func (s *Settlement) Apply(total decimal.Decimal, p PaymentRecord) {
	s.PaidAmount = s.PaidAmount.Add(p.Amount).Round(2)
	balance := total.Sub(s.PaidAmount)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	s.BalanceAmount = balance
	s.Payments = append(s.Payments, p)
}

// Has reports whether the payment is already recorded.
func (s Settlement) Has(paymentID string) bool {
	for _, p := range s.Payments {
		if p.PaymentID == paymentID {
			return true
		}
	}
	return false
}

// Status derives the settlement status, keeping current while nothing is paid.
func (s Settlement) Status(current DocumentStatus) DocumentStatus {
	switch {
	case !s.BalanceAmount.IsPositive():
		return StatusPaid
	case s.PaidAmount.IsPositive():
		return StatusPartiallyPaid
	}
	return current
}

// Invoice model.
type Invoice struct {
	ID           string    `json:"invoiceId"`
	Number       string    `json:"invoiceNumber"`
	SaleID       string    `json:"saleId,omitempty"`
	CustomerID   string    `json:"customerId,omitempty"`
	CustomerName string    `json:"customerName,omitempty"`
	Currency     string    `json:"currency"`
	IssueDate    time.Time `json:"issueDate"`
	DueDate      time.Time `json:"dueDate"`
	Items        []Item    `json:"items"`
	Totals
	Settlement
	Status           DocumentStatus    `json:"status"`
	AccountingStatus AccountingStatus  `json:"accountingStatus"`
	JournalEntryID   string            `json:"journalEntryId,omitempty"`
	PendingJournal   *journals.Request `json:"pendingJournal,omitempty"`
	AccountingError  string            `json:"accountingError,omitempty"`
	CreatedBy        string            `json:"createdBy,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// ApplyPayment records a payment and refreshes the status.
func (inv *Invoice) ApplyPayment(p PaymentRecord) {
	inv.Settlement.Apply(inv.TotalAmount, p)
	inv.Status = inv.Settlement.Status(inv.Status)
}

// InvoiceInput is the sale data an invoice is raised from.
type InvoiceInput struct {
	ID           string          `json:"invoiceId" validate:"omitempty,max=64,excludesall=/"`
	Number       string          `json:"invoiceNumber" validate:"omitempty,max=64"`
	SaleID       string          `json:"saleId" validate:"omitempty,max=64"`
	CustomerID   string          `json:"customerId" validate:"omitempty,max=64"`
	CustomerName string          `json:"customerName" validate:"omitempty,max=200"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
	IssueDate    time.Time       `json:"issueDate"`
	DueDate      time.Time       `json:"dueDate"`
	Items        []Item          `json:"items" validate:"required,min=1"`
	Payments     []PaymentRecord `json:"payments"`
	CreatedBy    string          `json:"createdBy"`
}

// Validate checks the items and any payments taken at the sale.
func (in InvoiceInput) Validate() error {
	if err := ValidateItems(in.Items); err != nil {
		return err
	}
	for i, p := range in.Payments {
		if !p.Amount.IsPositive() {
			return shared.Validation(fmt.Sprintf("payments[%d].amount", i), "must be positive")
		}
	}
	if !in.DueDate.IsZero() && !in.IssueDate.IsZero() && in.DueDate.Before(in.IssueDate) {
		return shared.Validation("dueDate", "must not be before issueDate")
	}
	return nil
}
