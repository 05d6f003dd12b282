package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Poster turns a payment into its journal entry. Posting the same payment
// twice must address the same entry.
type Poster interface {
	PostPayment(ctx context.Context, scope docstore.Scope, p Payment, req journals.Request) (journals.JournalEntry, error)
}

// Service records payments against invoices and bills.
type Service struct {
	repo    Repository
	poster  Poster
	metrics *observability.LedgerMetrics
	logger  *slog.Logger
	now     func() time.Time
}

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

// RecordPayment writes the payment and settles its source document in one
// transaction. The journal entry, when req is given, follows after commit;
// if it fails the payment stays committed with accounting pending and the
// error is a PartialCompletionError. Replaying the same payment id returns
// the stored payment without settling the source again.
func (s *Service) RecordPayment(ctx context.Context, scope docstore.Scope, input PaymentInput, req *journals.Request) (Payment, error) {
	if err := scope.Validate(); err != nil {
		return Payment{}, shared.Validation("scope", err.Error())
	}
	if err := input.Validate(); err != nil {
		return Payment{}, err
	}
	payment := s.build(scope, input, req)

	var replayed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		replayed = false
		existing, err := tx.GetPayment(ctx, scope, payment.ID)
		switch {
		case err == nil:
			if !existing.samePayload(payment) {
				return shared.Validationf(shared.ErrIdempotencyMismatch, "paymentId", "payment %s already recorded with a different payload", payment.ID)
			}
			replayed = true
			return nil
		case !errors.Is(err, docstore.ErrNotFound):
			return err
		}
		if err := s.settle(ctx, tx, scope, payment); err != nil {
			return err
		}
		return tx.PutPayment(scope, payment)
	})
	if err != nil {
		return Payment{}, shared.StoreError("record payment", err)
	}
	if replayed {
		if payment, err = s.Get(ctx, scope, payment.ID); err != nil {
			return Payment{}, err
		}
	}
	if payment.AccountingStatus != ar.AccountingPending {
		return payment, nil
	}
	if !replayed {
		s.metrics.ObservePending("payment")
	}

	linked, err := s.post(ctx, scope, payment)
	if err != nil {
		return linked, &shared.PartialCompletionError{Kind: "payment", ID: payment.ID, Err: err}
	}
	return linked, nil
}

// ReconcilePaymentPosting retries the journal follow-up of a pending payment.
func (s *Service) ReconcilePaymentPosting(ctx context.Context, scope docstore.Scope, id string) (Payment, error) {
	payment, err := s.Get(ctx, scope, id)
	if err != nil {
		return Payment{}, err
	}
	if payment.AccountingStatus != ar.AccountingPending {
		return payment, nil
	}
	if payment.PendingJournal == nil {
		return payment, shared.Validationf(shared.ErrInvalidStatus, "paymentId", "payment %s has no pending journal request", id)
	}
	return s.post(ctx, scope, payment)
}

// Get loads one payment.
func (s *Service) Get(ctx context.Context, scope docstore.Scope, id string) (Payment, error) {
	if err := scope.Validate(); err != nil {
		return Payment{}, shared.Validation("scope", err.Error())
	}
	payment, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Payment{}, &shared.NotFoundError{Kind: "payment", ID: id}
		}
		return Payment{}, shared.StoreError("get payment", err)
	}
	return payment, nil
}

// ListPendingAccounting lists payments whose journal entry is still pending.
func (s *Service) ListPendingAccounting(ctx context.Context, scope docstore.Scope) ([]Payment, error) {
	if err := scope.Validate(); err != nil {
		return nil, shared.Validation("scope", err.Error())
	}
	out, err := s.repo.ListByAccountingStatus(ctx, scope, ar.AccountingPending)
	return out, shared.StoreError("list pending payments", err)
}

func (s *Service) build(scope docstore.Scope, input PaymentInput, req *journals.Request) Payment {
	now := s.now().UTC()
	paidAt := input.PaidAt.UTC()
	if input.PaidAt.IsZero() {
		paidAt = now
	}
	payment := Payment{
		ID:               PaymentID(scope, input),
		IdempotencyKey:   input.IdempotencyKey,
		Amount:           input.Amount,
		SourceType:       input.SourceType,
		SourceID:         input.SourceID,
		PaymentMethod:    input.PaymentMethod,
		Reference:        input.Reference,
		PaidAt:           paidAt,
		Status:           StatusCompleted,
		AccountingStatus: ar.AccountingNone,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req != nil {
		pending := *req
		payment.PendingJournal = &pending
		payment.AccountingStatus = ar.AccountingPending
	}
	return payment
}

// settle applies the payment to its source document.
func (s *Service) settle(ctx context.Context, tx TxRepository, scope docstore.Scope, payment Payment) error {
	now := s.now().UTC()
	switch payment.SourceType {
	case SourceInvoice:
		inv, err := tx.GetInvoice(ctx, scope, payment.SourceID)
		if errors.Is(err, docstore.ErrNotFound) {
			return &shared.NotFoundError{Kind: "invoice", ID: payment.SourceID}
		}
		if err != nil {
			return err
		}
		inv.ApplyPayment(payment.Record())
		inv.UpdatedAt = now
		return tx.PutInvoice(scope, inv)
	case SourceBill:
		bill, err := tx.GetBill(ctx, scope, payment.SourceID)
		if errors.Is(err, docstore.ErrNotFound) {
			return &shared.NotFoundError{Kind: "bill", ID: payment.SourceID}
		}
		if err != nil {
			return err
		}
		bill.ApplyPayment(payment.Record())
		bill.UpdatedAt = now
		return tx.PutBill(scope, bill)
	}
	return nil
}

func (s *Service) post(ctx context.Context, scope docstore.Scope, payment Payment) (Payment, error) {
	entry, err := s.poster.PostPayment(ctx, scope, payment, *payment.PendingJournal)
	if err != nil {
		s.logger.Warn("payment journal posting failed",
			slog.String("payment_id", payment.ID), slog.String("scope", scope.String()), slog.Any("error", err))
		payment.AccountingError = err.Error()
		s.update(ctx, scope, payment.ID, func(p *Payment) bool {
			if p.AccountingStatus != ar.AccountingPending {
				return false
			}
			p.AccountingError = err.Error()
			return true
		})
		return payment, err
	}

	linked, err := s.update(ctx, scope, payment.ID, func(p *Payment) bool {
		p.JournalEntryID = entry.ID
		p.AccountingStatus = ar.AccountingPosted
		p.AccountingError = ""
		p.PendingJournal = nil
		return true
	})
	if err != nil {
		return payment, err
	}
	return linked, nil
}

// update rewrites the stored payment when mutate reports a change. Failures
// are logged and returned.
func (s *Service) update(ctx context.Context, scope docstore.Scope, id string, mutate func(*Payment) bool) (Payment, error) {
	var out Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPayment(ctx, scope, id)
		if err != nil {
			return err
		}
		out = current
		if !mutate(&current) {
			return nil
		}
		current.UpdatedAt = s.now().UTC()
		out = current
		return tx.PutPayment(scope, current)
	})
	if err != nil {
		err = shared.StoreError("update payment", err)
		s.logger.Warn("payment update failed", slog.String("payment_id", id), slog.Any("error", err))
		return Payment{}, err
	}
	return out, nil
}
