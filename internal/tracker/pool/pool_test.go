package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitmr/shuttle/internal/tracker/core"
)

func TestPool_NextAscendingAndAllocates(t *testing.T) {
	p := NewReducePool(3, false)

	first, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, 0, first.No)
	require.Equal(t, 1, first.Attempt)
	require.Equal(t, core.ResAllocated, first.Status)
	require.Equal(t, 2, p.Pending())
	require.Equal(t, 1, p.Allocated())

	second, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, 1, second.No)
}

func TestPool_NextExhaustedWithoutDuplicates(t *testing.T) {
	p := NewReducePool(1, false)

	_, ok := p.Next()
	require.True(t, ok)

	_, ok = p.Next()
	require.False(t, ok, "no pending ids remain and duplicates are disallowed")
}

func TestPool_FinishIsIdempotent(t *testing.T) {
	p := NewReducePool(1, false)
	_, _ = p.Next()

	require.True(t, p.Finish(0))
	require.False(t, p.Finish(0), "second Finish of the same id is a no-op")
	require.Equal(t, 1, p.Done())
	require.True(t, p.IsDone(0))
}

func TestPool_ReturnBackReopensWhenLastHolderLeaves(t *testing.T) {
	p := NewReducePool(1, true)
	_, _ = p.Next()
	dup, ok := p.Take(0)
	require.True(t, ok)
	require.Equal(t, 2, dup.Attempt)

	p.ReturnBack(0)
	require.True(t, p.IsAllocated(0), "one holder remains")

	p.ReturnBack(0)
	require.False(t, p.IsAllocated(0))
	require.Equal(t, 1, p.Pending())
}

func TestPool_ReturnBackAfterDoneIsNoop(t *testing.T) {
	p := NewReducePool(1, false)
	_, _ = p.Next()
	p.Finish(0)

	p.ReturnBack(0)
	require.True(t, p.IsDone(0))
	require.Equal(t, 0, p.Allocated())
}

func TestPool_TakeRejectsDoneAndDisallowed(t *testing.T) {
	p := NewReducePool(1, true)
	_, _ = p.Next()
	p.Finish(0)

	_, ok := p.Take(0)
	require.False(t, ok, "Done ids cannot be duplicated")

	np := NewReducePool(1, false)
	_, _ = np.Next()
	_, ok = np.Take(0)
	require.False(t, ok, "duplicates are disallowed for this pool")
}

func TestPool_DumpLoadRoundTrip(t *testing.T) {
	p := NewMapPool([]core.ResourceItem{
		{IdItem: core.IdItem{No: 0, Status: core.ResPending}, InputPath: "a", Length: 10},
		{IdItem: core.IdItem{No: 1, Status: core.ResPending}, InputPath: "b", Length: 20},
	}, true)
	item, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, "a", item.InputPath)
	p.Finish(1)

	dump := p.Dump()

	restored := NewMapPool(nil, true)
	restored.Load(dump)

	require.Equal(t, p.Pending(), restored.Pending())
	require.Equal(t, p.Allocated(), restored.Allocated())
	require.Equal(t, p.Done(), restored.Done())
	got, ok := restored.Get(1)
	require.True(t, ok)
	require.Equal(t, core.ResDone, got.Status)
	require.Equal(t, "b", got.InputPath)
}
