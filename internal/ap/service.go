package ap

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateBill records a vendor bill so payments can settle against it.
func (s *Service) CreateBill(ctx context.Context, scope docstore.Scope, input BillInput) (Bill, error) {
	if err := scope.Validate(); err != nil {
		return Bill{}, shared.Validation("scope", err.Error())
	}
	if err := ar.ValidateItems(input.Items); err != nil {
		return Bill{}, err
	}
	if !input.DueDate.IsZero() && !input.IssueDate.IsZero() && input.DueDate.Before(input.IssueDate) {
		return Bill{}, shared.Validation("dueDate", "must not be before issueDate")
	}

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
	items, totals := ar.ComputeInvoiceTotals(input.Items)
	settlement := ar.NewSettlement(totals.TotalAmount, nil)
	bill := Bill{
		ID:         id,
		Number:     number,
		VendorID:   input.VendorID,
		VendorName: input.VendorName,
		Currency:   currency,
		IssueDate:  issue,
		DueDate:    input.DueDate.UTC(),
		Items:      items,
		Totals:     totals,
		Settlement: settlement,
		Status:     settlement.Status(ar.StatusPosted),
		CreatedBy:  input.CreatedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.GetBill(ctx, scope, bill.ID)
		switch {
		case err == nil:
			return shared.Validation("billId", "bill "+bill.ID+" already exists")
		case !errors.Is(err, docstore.ErrNotFound):
			return err
		}
		return tx.PutBill(scope, bill)
	})
	if err != nil {
		return Bill{}, shared.StoreError("create bill", err)
	}
	return bill, nil
}

// Get loads one bill.
func (s *Service) Get(ctx context.Context, scope docstore.Scope, id string) (Bill, error) {
	if err := scope.Validate(); err != nil {
		return Bill{}, shared.Validation("scope", err.Error())
	}
	bill, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Bill{}, &shared.NotFoundError{Kind: "bill", ID: id}
		}
		return Bill{}, shared.StoreError("get bill", err)
	}
	return bill, nil
}
