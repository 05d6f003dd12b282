package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/payments"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	PostJournalEntry(ctx context.Context, scope docstore.Scope, input journals.PostingInput) (journals.JournalEntry, error)
}

// AccountMappingRepository provides mapping lookups.
type AccountMappingRepository interface {
	Get(ctx context.Context, scope docstore.Scope, module, key string) (mappings.AccountMapping, error)
}

// Hooks translates invoices and payments into journal entries. Each document
// posts under a key derived from its id, so retries address the same entry.
type Hooks struct {
	ledger      Ledger
	mappingRepo AccountMappingRepository
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, mappingRepo AccountMappingRepository) *Hooks {
	return &Hooks{ledger: ledger, mappingRepo: mappingRepo}
}

func (h *Hooks) resolveAccount(ctx context.Context, scope docstore.Scope, module, key string) (string, error) {
	mapping, err := h.mappingRepo.Get(ctx, scope, module, key)
	if err != nil {
		return "", err
	}
	return mapping.AccountID, nil
}

// PostInvoice posts the sale: receivable against revenue and tax. When a
// discount account is mapped the discount is shown gross, otherwise revenue
// is credited net of it.
func (h *Hooks) PostInvoice(ctx context.Context, scope docstore.Scope, inv ar.Invoice, req journals.Request) (journals.JournalEntry, error) {
	lines := req.Lines
	if len(lines) == 0 {
		var err error
		if lines, err = h.invoiceLines(ctx, scope, inv); err != nil {
			return journals.JournalEntry{}, err
		}
	}
	input := journals.PostingInput{
		IdempotencyKey: "invoice:" + inv.ID,
		Date:           entryDate(req, inv.IssueDate, inv.CreatedAt),
		Description:    firstNonEmpty(req.Description, fmt.Sprintf("Invoice %s", inv.Number)),
		Reference:      firstNonEmpty(req.Reference, inv.Number),
		ReferenceType:  "invoice",
		CreatedBy:      firstNonEmpty(req.CreatedBy, inv.CreatedBy),
		Lines:          lines,
	}
	return h.ledger.PostJournalEntry(ctx, scope, input)
}

func (h *Hooks) invoiceLines(ctx context.Context, scope docstore.Scope, inv ar.Invoice) ([]accounts.Line, error) {
	receivable, err := h.resolveAccount(ctx, scope, mappings.ModuleAR, mappings.KeyInvoiceReceivable)
	if err != nil {
		return nil, err
	}
	revenue, err := h.resolveAccount(ctx, scope, mappings.ModuleAR, mappings.KeyInvoiceRevenue)
	if err != nil {
		return nil, err
	}
	memo := fmt.Sprintf("Invoice %s", inv.Number)
	// revenue is the plug so rounding differences cannot unbalance the entry
	net := inv.TotalAmount.Sub(inv.TaxAmount)
	lines := []accounts.Line{debit(receivable, inv.TotalAmount, memo)}

	if inv.DiscountAmount.IsPositive() {
		discount, err := h.resolveAccount(ctx, scope, mappings.ModuleAR, mappings.KeyInvoiceDiscount)
		switch {
		case err == nil:
			lines = append(lines, debit(discount, inv.DiscountAmount, memo))
			net = net.Add(inv.DiscountAmount)
		case !errors.Is(err, shared.ErrMappingNotFound):
			return nil, err
		}
	}
	lines = append(lines, credit(revenue, net, memo))
	if inv.TaxAmount.IsPositive() {
		tax, err := h.resolveAccount(ctx, scope, mappings.ModuleAR, mappings.KeyInvoiceTax)
		if err != nil {
			return nil, err
		}
		lines = append(lines, credit(tax, inv.TaxAmount, memo))
	}
	return compact(lines), nil
}

// PostPayment posts cash against the source: receivable for invoices,
// payable for bills. Payments without a source need explicit lines.
func (h *Hooks) PostPayment(ctx context.Context, scope docstore.Scope, p payments.Payment, req journals.Request) (journals.JournalEntry, error) {
	lines := req.Lines
	if len(lines) == 0 {
		var err error
		if lines, err = h.paymentLines(ctx, scope, p); err != nil {
			return journals.JournalEntry{}, err
		}
	}
	input := journals.PostingInput{
		IdempotencyKey: "payment:" + p.ID,
		Date:           entryDate(req, p.PaidAt, p.CreatedAt),
		Description:    firstNonEmpty(req.Description, fmt.Sprintf("Payment %s", p.ID)),
		Reference:      firstNonEmpty(req.Reference, p.Reference, p.ID),
		ReferenceType:  "payment",
		CreatedBy:      firstNonEmpty(req.CreatedBy, p.CreatedBy),
		Lines:          lines,
	}
	return h.ledger.PostJournalEntry(ctx, scope, input)
}

func (h *Hooks) paymentLines(ctx context.Context, scope docstore.Scope, p payments.Payment) ([]accounts.Line, error) {
	var counterModule, counterKey string
	switch p.SourceType {
	case payments.SourceInvoice:
		counterModule, counterKey = mappings.ModuleAR, mappings.KeyInvoiceReceivable
	case payments.SourceBill:
		counterModule, counterKey = mappings.ModuleAP, mappings.KeyBillPayable
	default:
		return nil, shared.Validation("lineItems", "required for payments without a source document")
	}
	cash, err := h.resolveAccount(ctx, scope, mappings.ModulePayment, mappings.KeyPaymentCash)
	if err != nil {
		return nil, err
	}
	counter, err := h.resolveAccount(ctx, scope, counterModule, counterKey)
	if err != nil {
		return nil, err
	}
	memo := fmt.Sprintf("Payment %s for %s %s", p.ID, p.SourceType, p.SourceID)
	if p.SourceType == payments.SourceBill {
		return []accounts.Line{debit(counter, p.Amount, memo), credit(cash, p.Amount, memo)}, nil
	}
	return []accounts.Line{debit(cash, p.Amount, memo), credit(counter, p.Amount, memo)}, nil
}

func entryDate(req journals.Request, candidates ...time.Time) time.Time {
	if req.Date != nil && !req.Date.IsZero() {
		return req.Date.UTC()
	}
	for _, t := range candidates {
		if !t.IsZero() {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ ar.Poster = (*Hooks)(nil)
var _ payments.Poster = (*Hooks)(nil)
