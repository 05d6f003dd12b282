package ar

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Poster turns an invoice into its journal entry. Posting the same invoice
// twice must address the same entry.
type Poster interface {
	PostInvoice(ctx context.Context, scope docstore.Scope, inv Invoice, req journals.Request) (journals.JournalEntry, error)
}

// Service handles AR business logic.
type Service struct {
	repo    Repository
	poster  Poster
	metrics *observability.LedgerMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, poster Poster, metrics *observability.LedgerMetrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, poster: poster, metrics: metrics, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInvoiceFromSale persists the invoice, then posts its journal entry
// when req is given and the total is non-zero. The two steps are separate:
// if posting fails the invoice stays committed with accounting pending and
// the error is a PartialCompletionError carrying the posting failure.
func (s *Service) CreateInvoiceFromSale(ctx context.Context, scope docstore.Scope, input InvoiceInput, req *journals.Request) (Invoice, error) {
	if err := scope.Validate(); err != nil {
		return Invoice{}, shared.Validation("scope", err.Error())
	}
	if err := input.Validate(); err != nil {
		return Invoice{}, err
	}
	inv := s.build(input)
	if req != nil && !inv.TotalAmount.IsZero() {
		pending := *req
		inv.PendingJournal = &pending
		inv.AccountingStatus = AccountingPending
		inv.Status = inv.Settlement.Status(StatusDraft)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.GetInvoice(ctx, scope, inv.ID)
		switch {
		case err == nil:
			return shared.Validation("invoiceId", "invoice "+inv.ID+" already exists")
		case !errors.Is(err, docstore.ErrNotFound):
			return err
		}
		return tx.PutInvoice(scope, inv)
	})
	if err != nil {
		return Invoice{}, shared.StoreError("create invoice", err)
	}
	if inv.AccountingStatus != AccountingPending {
		return inv, nil
	}
	s.metrics.ObservePending("invoice")

	linked, err := s.post(ctx, scope, inv)
	if err != nil {
		return linked, &shared.PartialCompletionError{Kind: "invoice", ID: inv.ID, Err: err}
	}
	return linked, nil
}

// ReconcileInvoicePosting retries only the journal step of a pending invoice.
// Invoices that are not pending are returned unchanged.
func (s *Service) ReconcileInvoicePosting(ctx context.Context, scope docstore.Scope, id string) (Invoice, error) {
	inv, err := s.Get(ctx, scope, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.AccountingStatus != AccountingPending {
		return inv, nil
	}
	if inv.PendingJournal == nil {
		return inv, shared.Validationf(shared.ErrInvalidStatus, "invoiceId", "invoice %s has no pending journal request", id)
	}
	return s.post(ctx, scope, inv)
}

// Get loads one invoice.
func (s *Service) Get(ctx context.Context, scope docstore.Scope, id string) (Invoice, error) {
	if err := scope.Validate(); err != nil {
		return Invoice{}, shared.Validation("scope", err.Error())
	}
	inv, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Invoice{}, &shared.NotFoundError{Kind: "invoice", ID: id}
		}
		return Invoice{}, shared.StoreError("get invoice", err)
	}
	return inv, nil
}

// ListPendingAccounting lists invoices whose journal entry is still pending.
func (s *Service) ListPendingAccounting(ctx context.Context, scope docstore.Scope) ([]Invoice, error) {
	if err := scope.Validate(); err != nil {
		return nil, shared.Validation("scope", err.Error())
	}
	out, err := s.repo.ListByAccountingStatus(ctx, scope, AccountingPending)
	return out, shared.StoreError("list pending invoices", err)
}

func (s *Service) build(input InvoiceInput) Invoice {
	now := s.now().UTC()
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	number := input.Number
	if number == "" {
		number = id
	}
	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = "USD"
	}
	issue := input.IssueDate.UTC()
	if input.IssueDate.IsZero() {
		issue = now
	}
	items, totals := ComputeInvoiceTotals(input.Items)
	settlement := NewSettlement(totals.TotalAmount, input.Payments)
	return Invoice{
		ID:               id,
		Number:           number,
		SaleID:           input.SaleID,
		CustomerID:       input.CustomerID,
		CustomerName:     input.CustomerName,
		Currency:         currency,
		IssueDate:        issue,
		DueDate:          input.DueDate.UTC(),
		Items:            items,
		Totals:           totals,
		Settlement:       settlement,
		Status:           settlement.Status(StatusPosted),
		AccountingStatus: AccountingNone,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// post runs the journal step and links the entry. A failure is noted on the
// invoice on a best-effort basis and returned as is.
func (s *Service) post(ctx context.Context, scope docstore.Scope, inv Invoice) (Invoice, error) {
	entry, err := s.poster.PostInvoice(ctx, scope, inv, *inv.PendingJournal)
	if err != nil {
		s.logger.Warn("invoice journal posting failed",
			slog.String("invoice_id", inv.ID), slog.String("scope", scope.String()), slog.Any("error", err))
		inv.AccountingError = err.Error()
		s.noteFailure(ctx, scope, inv.ID, err)
		return inv, err
	}

	var linked Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoice(ctx, scope, inv.ID)
		if err != nil {
			return err
		}
		current.JournalEntryID = entry.ID
		current.AccountingStatus = AccountingPosted
		current.AccountingError = ""
		current.PendingJournal = nil
		if current.Status == StatusDraft {
			current.Status = current.Settlement.Status(StatusPosted)
		}
		current.UpdatedAt = s.now().UTC()
		linked = current
		return tx.PutInvoice(scope, current)
	})
	if err != nil {
		err = shared.StoreError("link invoice journal", err)
		s.logger.Warn("invoice journal link failed",
			slog.String("invoice_id", inv.ID), slog.String("entry_id", entry.ID), slog.Any("error", err))
		return inv, err
	}
	return linked, nil
}

func (s *Service) noteFailure(ctx context.Context, scope docstore.Scope, id string, cause error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoice(ctx, scope, id)
		if err != nil {
			return err
		}
		if current.AccountingStatus != AccountingPending {
			return nil
		}
		current.AccountingError = cause.Error()
		current.UpdatedAt = s.now().UTC()
		return tx.PutInvoice(scope, current)
	})
	if err != nil {
		s.logger.Warn("recording invoice posting failure", slog.String("invoice_id", id), slog.Any("error", err))
	}
}
