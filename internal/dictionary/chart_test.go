package dictionary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fundledger/internal/ledger"
)

func TestChartCodesMatchRanges(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range Chart(nil) {
		require.False(t, seen[d.Code], "duplicate code %s", d.Code)
		seen[d.Code] = true
		typ, ok := SuggestType(d.Code)
		require.True(t, ok, d.Code)
		require.Equal(t, d.Type, typ, d.Code)
		require.True(t, d.Type.Valid())
	}
}

func TestChartFilterAndOrder(t *testing.T) {
	rev := ledger.AccountTypeRevenue
	list := Chart(&rev)
	require.NotEmpty(t, list)
	for i, d := range list {
		require.Equal(t, rev, d.Type)
		if i > 0 {
			require.Less(t, list[i-1].Code, d.Code)
		}
	}
}

func TestSuggestType(t *testing.T) {
	typ, ok := SuggestType(" 2150 ")
	require.True(t, ok)
	require.Equal(t, ledger.AccountTypeLiability, typ)
	_, ok = SuggestType("ABC1")
	require.False(t, ok)
	_, ok = SuggestType("0999")
	require.False(t, ok)
}

func TestReservedControlAccounts(t *testing.T) {
	require.True(t, IsReserved("2000"))
	require.True(t, IsReserved("1200"))
	require.False(t, IsReserved("1000"))
}
