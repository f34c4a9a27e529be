package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fundledger/internal/errs"
)

type note struct {
	Version
	Text string
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestOpenIsCurrent(t *testing.T) {
	v := Open(t0)
	require.NotEqual(t, uuid.Nil, v.ID)
	require.NotEqual(t, v.ID, v.VersionID)
	require.True(t, v.IsCurrent())
	require.Nil(t, v.PreviousVersionID)
	require.Equal(t, MaxDate, v.ValidTo)
	require.Equal(t, MaxDate, v.SystemTo)
}

func TestCloseTwiceIsConflict(t *testing.T) {
	v := Open(t0)
	require.NoError(t, v.Close(t0.Add(time.Hour)))
	require.Equal(t, t0.Add(time.Hour), v.ValidTo)
	require.Equal(t, t0.Add(time.Hour), v.SystemTo)
	require.False(t, v.IsCurrent())
	require.True(t, errors.Is(v.Close(t0.Add(2*time.Hour)), errs.ErrConcurrentModification))
}

func TestBuildNextLinksAndRefreshes(t *testing.T) {
	first := note{Version: Open(t0), Text: "a"}
	at := t0.Add(time.Minute)
	next := BuildNext(first, at, func(n *note) {
		n.Text = "b"
		// attempts to tamper with versioning are overwritten
		n.VersionID = first.VersionID
		n.ValidTo = at
	})
	require.Equal(t, "b", next.Text)
	require.Equal(t, first.ID, next.ID)
	require.NotEqual(t, first.VersionID, next.VersionID)
	require.NotNil(t, next.PreviousVersionID)
	require.Equal(t, first.VersionID, *next.PreviousVersionID)
	require.Equal(t, at, next.ValidFrom)
	require.Equal(t, at, next.SystemFrom)
	require.Equal(t, MaxDate, next.ValidTo)
	require.Equal(t, "a", first.Text, "existing row must not change")
}

func TestBuildNextKeepsDeletion(t *testing.T) {
	first := note{Version: Open(t0)}
	next := BuildNext(first, t0.Add(time.Second), func(n *note) { n.IsDeleted = true; n.DeletedBy = "ana" })
	require.True(t, next.IsDeleted)
	require.Equal(t, "ana", next.DeletedBy)
	require.False(t, next.IsCurrent())
}

func history(t *testing.T, edits int) []note {
	t.Helper()
	cur := note{Version: Open(t0), Text: "v0"}
	rows := []note{}
	for i := 1; i <= edits; i++ {
		at := t0.Add(time.Duration(i) * time.Minute)
		next := BuildNext(cur, at, func(n *note) { n.Text = "v" + string(rune('0'+i)) })
		require.NoError(t, cur.Close(at))
		rows = append(rows, cur)
		cur = next
	}
	return append(rows, cur)
}

func TestChainNewestFirst(t *testing.T) {
	rows := history(t, 2)
	// storage order is arbitrary
	shuffled := []note{rows[1], rows[2], rows[0]}
	chain := Chain(shuffled)
	require.Len(t, chain, 3)
	require.Equal(t, "v2", chain[0].Text)
	require.Equal(t, "v1", chain[1].Text)
	require.Equal(t, "v0", chain[2].Text)
	require.Equal(t, chain[1].VersionID, *chain[0].PreviousVersionID)
	require.Equal(t, chain[2].VersionID, *chain[1].PreviousVersionID)
	require.Nil(t, chain[2].PreviousVersionID)
}

func TestChainToleratesGaps(t *testing.T) {
	rows := history(t, 3)
	// drop v1: the walk from v3 stops at v2 and restarts at v0
	chain := Chain([]note{rows[0], rows[2], rows[3]})
	require.Len(t, chain, 3)
	require.Equal(t, "v3", chain[0].Text)
	require.Equal(t, "v2", chain[1].Text)
	require.Equal(t, "v0", chain[2].Text)
	require.Empty(t, Chain[note]([]note{}))
}

func TestAsOf(t *testing.T) {
	rows := history(t, 2)
	got, ok := AsOf(rows, t0.Add(30*time.Second))
	require.True(t, ok)
	require.Equal(t, "v0", got.Text)
	got, ok = AsOf(rows, t0.Add(time.Minute))
	require.True(t, ok)
	require.Equal(t, "v1", got.Text)
	got, ok = AsOf(rows, t0.Add(24*time.Hour))
	require.True(t, ok)
	require.Equal(t, "v2", got.Text)
	_, ok = AsOf(rows, t0.Add(-time.Second))
	require.False(t, ok)
}

func TestIndexCurrentAndFilter(t *testing.T) {
	rows := history(t, 2)
	other := note{Version: Open(t0), Text: "other"}
	deleted := BuildNext(other, t0.Add(time.Second), func(n *note) { n.IsDeleted = true })
	idx := IndexCurrent(append(rows, deleted))
	require.Len(t, idx, 1)
	require.Equal(t, "v2", idx[rows[0].ID].Text)
	_, ok := idx[other.ID]
	require.False(t, ok)

	onlyV2 := Current[note](func(n note) bool { return n.Text == "v2" })
	require.True(t, onlyV2(rows[2]))
	require.False(t, onlyV2(rows[0]))
	require.False(t, Current[note](nil)(deleted))
}

func TestWhere(t *testing.T) {
	org, id := uuid.New(), uuid.New()
	sql, args := Where(map[string]any{"organization_id": org, "id": id}, 1)
	require.Equal(t, "valid_to = $1 and is_deleted = false and id = $2 and organization_id = $3", sql)
	require.Equal(t, []any{MaxDate, id, org}, args)

	sql, args = Where(nil, 4)
	require.Equal(t, "valid_to = $4 and is_deleted = false", sql)
	require.Len(t, args, 1)
}

func TestCheckClosed(t *testing.T) {
	require.NoError(t, CheckClosed(1))
	require.ErrorIs(t, CheckClosed(0), errs.ErrConcurrentModification)
	require.ErrorIs(t, CheckClosed(2), errs.ErrConcurrentModification)
}
