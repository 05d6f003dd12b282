package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/ap"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

var (
	scope    = docstore.Scope{WorkspaceID: "ws", OrgID: "org"}
	fixedNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubPoster struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *stubPoster) PostPayment(_ context.Context, _ docstore.Scope, payment Payment, _ journals.Request) (journals.JournalEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return journals.JournalEntry{}, p.err
	}
	return journals.JournalEntry{ID: "je-" + payment.ID}, nil
}

type fixture struct {
	store    *docstore.Memory
	invoices *ar.Service
	bills    *ap.Service
	payments *Service
	poster   *stubPoster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory(docstore.Options{Backoff: time.Millisecond})
	invoices := ar.NewService(ar.NewRepository(store), nil, nil, nil)
	bills := ap.NewService(ap.NewRepository(store))
	poster := &stubPoster{}
	payments := NewService(NewRepository(store), poster, nil, nil)
	payments.WithNow(func() time.Time { return fixedNow })

	_, err := invoices.CreateInvoiceFromSale(ctx, scope, ar.InvoiceInput{
		ID:    "inv-1",
		Items: []ar.Item{{Quantity: d("1"), UnitPrice: d("200")}},
	}, nil)
	require.NoError(t, err)
	_, err = bills.CreateBill(ctx, scope, ap.BillInput{
		ID:    "bill-1",
		Items: []ar.Item{{Quantity: d("2"), UnitPrice: d("40")}},
	})
	require.NoError(t, err)
	return &fixture{store: store, invoices: invoices, bills: bills, payments: payments, poster: poster}
}

func TestPaymentsSettleInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p1, err := f.payments.RecordPayment(ctx, scope, PaymentInput{Amount: d("50"), SourceType: SourceInvoice, SourceID: "inv-1"}, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, p1.Status)

	inv, err := f.invoices.Get(ctx, scope, "inv-1")
	require.NoError(t, err)
	require.True(t, inv.PaidAmount.Equal(d("50")))
	require.True(t, inv.BalanceAmount.Equal(d("150")))
	require.Equal(t, ar.StatusPartiallyPaid, inv.Status)
	require.True(t, inv.Has(p1.ID))

	_, err = f.payments.RecordPayment(ctx, scope, PaymentInput{Amount: d("150"), SourceType: SourceInvoice, SourceID: "inv-1"}, nil)
	require.NoError(t, err)

	inv, err = f.invoices.Get(ctx, scope, "inv-1")
	require.NoError(t, err)
	require.True(t, inv.BalanceAmount.IsZero())
	require.True(t, inv.PaidAmount.Equal(d("200")))
	require.Equal(t, ar.StatusPaid, inv.Status)
	require.Len(t, inv.Payments, 2)
}

func TestPaymentSettlesBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.RecordPayment(ctx, scope, PaymentInput{Amount: d("80"), SourceType: SourceBill, SourceID: "bill-1"}, nil)
	require.NoError(t, err)
	bill, err := f.bills.Get(ctx, scope, "bill-1")
	require.NoError(t, err)
	require.Equal(t, ar.StatusPaid, bill.Status)
}

func TestPaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := map[string]PaymentInput{
		"zero":           {Amount: d("0"), SourceType: SourceInvoice, SourceID: "inv-1"},
		"negative":       {Amount: d("-5"), SourceType: SourceInvoice, SourceID: "inv-1"},
		"sub-cent":       {Amount: d("0.001"), SourceType: SourceInvoice, SourceID: "inv-1"},
		"unknown source": {Amount: d("5"), SourceType: "order", SourceID: "o-1"},
		"missing id":     {Amount: d("5"), SourceType: SourceInvoice},
		"orphan id":      {Amount: d("5"), SourceID: "inv-1"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.payments.RecordPayment(ctx, scope, input, nil)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestMissingSourceWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.RecordPayment(ctx, scope, PaymentInput{ID: "p-x", Amount: d("5"), SourceType: SourceInvoice, SourceID: "nope"}, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.payments.Get(ctx, scope, "p-x")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUnattachedPayment(t *testing.T) {
	f := newFixture(t)
	p, err := f.payments.RecordPayment(context.Background(), scope, PaymentInput{Amount: d("12.5"), PaymentMethod: "cash"}, nil)
	require.NoError(t, err)
	require.Equal(t, SourceNone, p.SourceType)
	require.True(t, p.Amount.Equal(d("12.5")))
}

func TestReplayDoesNotSettleTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	input := PaymentInput{IdempotencyKey: "k1", Amount: d("60"), SourceType: SourceInvoice, SourceID: "inv-1"}

	first, err := f.payments.RecordPayment(ctx, scope, input, nil)
	require.NoError(t, err)
	second, err := f.payments.RecordPayment(ctx, scope, input, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	inv, err := f.invoices.Get(ctx, scope, "inv-1")
	require.NoError(t, err)
	require.True(t, inv.PaidAmount.Equal(d("60")))

	input.Amount = d("61")
	_, err = f.payments.RecordPayment(ctx, scope, input, nil)
	require.ErrorIs(t, err, shared.ErrIdempotencyMismatch)
}

func TestConcurrentPaymentsAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.RecordPayment(ctx, scope, PaymentInput{Amount: d("25"), SourceType: SourceInvoice, SourceID: "inv-1"}, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, shared.ErrTransient)
	}

	inv, err := f.invoices.Get(ctx, scope, "inv-1")
	require.NoError(t, err)
	require.True(t, inv.PaidAmount.Equal(d("25").Mul(decimal.NewFromInt(int64(succeeded)))), inv.PaidAmount.String())
	require.Len(t, inv.Payments, succeeded)
}

func TestJournalFollowUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.payments.RecordPayment(ctx, scope, PaymentInput{ID: "p-ok", Amount: d("10"), SourceType: SourceInvoice, SourceID: "inv-1"}, &journals.Request{})
	require.NoError(t, err)
	require.Equal(t, ar.AccountingPosted, p.AccountingStatus)
	require.Equal(t, "je-p-ok", p.JournalEntryID)

	f.poster.err = &shared.TransientError{Op: "post", Err: errors.New("down")}
	p, err = f.payments.RecordPayment(ctx, scope, PaymentInput{ID: "p-late", Amount: d("10"), SourceType: SourceInvoice, SourceID: "inv-1"}, &journals.Request{})
	require.ErrorIs(t, err, shared.ErrPartialCompletion)
	require.Equal(t, "p-late", p.ID)

	// the settlement committed regardless
	inv, err := f.invoices.Get(ctx, scope, "inv-1")
	require.NoError(t, err)
	require.True(t, inv.PaidAmount.Equal(d("20")))

	pending, err := f.payments.ListPendingAccounting(ctx, scope)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotEmpty(t, pending[0].AccountingError)

	f.poster.err = nil
	p, err = f.payments.ReconcilePaymentPosting(ctx, scope, "p-late")
	require.NoError(t, err)
	require.Equal(t, ar.AccountingPosted, p.AccountingStatus)
	require.Equal(t, 3, f.poster.calls)

	pending, err = f.payments.ListPendingAccounting(ctx, scope)
	require.NoError(t, err)
	require.Empty(t, pending)
}
