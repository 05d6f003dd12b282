package accounts

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalBalanceSide(t *testing.T) {
	cases := map[AccountType]Side{
		AccountTypeAsset:     SideDebit,
		AccountTypeExpense:   SideDebit,
		AccountTypeLiability: SideCredit,
		AccountTypeEquity:    SideCredit,
		AccountTypeRevenue:   SideCredit,
	}
	for typ, want := range cases {
		require.Equal(t, want, NormalBalanceSide(typ), typ)
	}
	require.Panics(t, func() { NormalBalanceSide("cash") })
}

func TestApplyDelta(t *testing.T) {
	require.True(t, ApplyDelta(d("10"), AccountTypeAsset, d("5"), d("2")).Equal(d("13")))
	require.True(t, ApplyDelta(d("10"), AccountTypeRevenue, d("5"), d("2")).Equal(d("7")))
	require.True(t, SignedAmount(AccountTypeLiability, decimal.Zero, d("40")).Equal(d("40")))
	require.True(t, SignedAmount(AccountTypeExpense, decimal.Zero, d("40")).Equal(d("-40")))
}

func TestApplyDeltaFoldIsOrderIndependent(t *testing.T) {
	pairs := [][2]string{{"100", "0"}, {"0", "25.50"}, {"13.37", "0"}, {"0", "0.01"}}
	forward, backward := decimal.Zero, decimal.Zero
	for i := range pairs {
		f := pairs[i]
		b := pairs[len(pairs)-1-i]
		forward = ApplyDelta(forward, AccountTypeAsset, d(f[0]), d(f[1]))
		backward = ApplyDelta(backward, AccountTypeAsset, d(b[0]), d(b[1]))
	}
	require.True(t, forward.Equal(backward))
	require.True(t, forward.Equal(d("87.86")))
}

func TestParseAccountType(t *testing.T) {
	typ, err := ParseAccountType("ASSET")
	require.NoError(t, err)
	require.Equal(t, AccountTypeAsset, typ)

	_, err = ParseAccountType("cash")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestValidateEntry(t *testing.T) {
	totals, err := ValidateEntry([]Line{
		{AccountID: "1000", Debit: d("33.333")},
		{AccountID: "1000", Debit: d("66.667")},
		{AccountID: "4000", Credit: d("100")},
	})
	require.NoError(t, err)
	require.Equal(t, "100.00", totals.Debit.StringFixed(2))
	require.True(t, totals.Debit.Equal(totals.Credit))

	cases := []struct {
		name  string
		lines []Line
		cause error
	}{
		{name: "empty", lines: nil, cause: shared.ErrNoLines},
		{name: "missing account", lines: []Line{{Debit: d("1")}, {AccountID: "2", Credit: d("1")}}},
		{name: "negative", lines: []Line{{AccountID: "1", Debit: d("-1")}, {AccountID: "2", Credit: d("-1")}}},
		{name: "both sides", lines: []Line{{AccountID: "1", Debit: d("1"), Credit: d("1")}}},
		{name: "neither side", lines: []Line{{AccountID: "1"}}},
		{name: "unbalanced", lines: []Line{{AccountID: "1", Debit: d("100")}, {AccountID: "2", Credit: d("90")}}, cause: shared.ErrUnbalanced},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateEntry(tc.lines)
			require.ErrorIs(t, err, shared.ErrValidation)
			var verr *shared.ValidationError
			require.True(t, errors.As(err, &verr))
			if tc.cause != nil {
				require.ErrorIs(t, err, tc.cause)
			}
		})
	}
}
