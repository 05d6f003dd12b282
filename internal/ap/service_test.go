package ap

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

var scope = docstore.Scope{WorkspaceID: "ws", OrgID: "org"}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateBill(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewRepository(docstore.NewMemory(docstore.Options{Backoff: time.Millisecond})))

	bill, err := svc.CreateBill(ctx, scope, BillInput{
		ID:       "bill-1",
		VendorID: "acme",
		Currency: "eur",
		Items: []ar.Item{
			{Quantity: d("4"), UnitPrice: d("25"), TaxRatePct: d("5")},
		},
	})
	require.NoError(t, err)
	require.True(t, bill.TotalAmount.Equal(d("105")))
	require.True(t, bill.BalanceAmount.Equal(d("105")))
	require.Equal(t, ar.StatusPosted, bill.Status)
	require.Equal(t, "EUR", bill.Currency)

	got, err := svc.Get(ctx, scope, "bill-1")
	require.NoError(t, err)
	require.Equal(t, "acme", got.VendorID)

	_, err = svc.CreateBill(ctx, scope, BillInput{ID: "bill-1", Items: []ar.Item{{Quantity: d("1"), UnitPrice: d("1")}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateBill(ctx, scope, BillInput{ID: "bill-2"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Get(ctx, scope, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBillApplyPayment(t *testing.T) {
	bill := Bill{Totals: ar.Totals{TotalAmount: d("80")}, Settlement: ar.NewSettlement(d("80"), nil), Status: ar.StatusPosted}
	bill.ApplyPayment(ar.PaymentRecord{PaymentID: "p", Amount: d("30")})
	require.Equal(t, ar.StatusPartiallyPaid, bill.Status)
	require.True(t, bill.BalanceAmount.Equal(d("50")))
	bill.ApplyPayment(ar.PaymentRecord{PaymentID: "q", Amount: d("50")})
	require.Equal(t, ar.StatusPaid, bill.Status)
}
