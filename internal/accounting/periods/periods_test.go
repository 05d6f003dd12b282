package periods

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var at = time.Date(2024, 2, 10, 23, 30, 0, 0, time.FixedZone("WIB", 7*3600))

func TestKeyForUsesUTC(t *testing.T) {
	key := KeyFor("1000", time.Date(2024, 3, 1, 3, 0, 0, 0, time.FixedZone("WIB", 7*3600)))
	require.Equal(t, Key{AccountID: "1000", Year: 2024, Month: time.February}, key)
	require.Equal(t, "1000_2024_02", key.DocID())
}

func TestOpenApplyReconcile(t *testing.T) {
	cash := accounts.Account{ID: "1000", Type: accounts.AccountTypeAsset, Balance: d("50"), Currency: "USD"}
	s := Open(KeyFor(cash.ID, at), cash, at)
	require.True(t, s.OpeningBalance.Equal(d("50")))

	lines := []accounts.Line{
		{AccountID: "1000", Debit: d("100")},
		{AccountID: "1000", Credit: d("30.25")},
	}
	for _, l := range lines {
		s = s.Apply(l.Debit, l.Credit, at)
	}
	require.Equal(t, 2, s.TransactionCount)
	require.True(t, s.ClosingBalance.Equal(d("119.75")))
	require.True(t, s.Expected().Equal(s.ClosingBalance))
	require.Empty(t, Reconcile(s, lines))

	drifted := s
	drifted.ClosingBalance = d("120")
	mismatches := Reconcile(drifted, lines)
	require.Len(t, mismatches, 1)
	require.Equal(t, "closingBalance", mismatches[0].Field)

	require.Len(t, Reconcile(s, lines[:1]), 3)
}

func TestBalancesAsOf(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory(docstore.Options{})
	scope := docstore.Scope{WorkspaceID: "ws", OrgID: "org"}

	cash := accounts.Account{ID: "1000", Type: accounts.AccountTypeAsset, Balance: d("300")}
	bank := accounts.Account{ID: "1010", Type: accounts.AccountTypeAsset, Balance: d("80")}
	idle := accounts.Account{ID: "1020", Type: accounts.AccountTypeAsset, Balance: d("7")}

	jan := Open(Key{AccountID: "1000", Year: 2024, Month: time.January}, accounts.Account{Type: cash.Type, Balance: d("0")}, at).Apply(d("100"), decimal.Zero, at)
	mar := Open(Key{AccountID: "1000", Year: 2024, Month: time.March}, accounts.Account{Type: cash.Type, Balance: d("100")}, at).Apply(d("200"), decimal.Zero, at)
	bankApr := Open(Key{AccountID: "1010", Year: 2024, Month: time.April}, accounts.Account{Type: bank.Type, Balance: d("30")}, at).Apply(d("50"), decimal.Zero, at)

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		repo := NewTxRepository(tx)
		for _, s := range []Summary{jan, mar, bankApr} {
			if err := repo.PutSummary(scope, s); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	svc := NewService(NewRepository(store))
	balances, err := svc.BalancesAsOf(ctx, scope, 2024, time.February, []accounts.Account{cash, bank, idle})
	require.NoError(t, err)
	require.True(t, balances["1000"].Equal(d("100")), balances["1000"].String())
	require.True(t, balances["1010"].Equal(d("30")))
	require.True(t, balances["1020"].Equal(d("7")))

	month, err := svc.Month(ctx, scope, 2024, time.March)
	require.NoError(t, err)
	require.Len(t, month, 1)

	_, err = svc.Month(ctx, scope, 2024, 13)
	require.Error(t, err)
}
