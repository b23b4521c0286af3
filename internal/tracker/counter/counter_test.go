package counter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregator_AccumulateSumsRepeats(t *testing.T) {
	a := New(0)
	require.True(t, a.Accumulate("records", 5))
	require.True(t, a.Accumulate("records", 3))
	require.Equal(t, int64(8), a.Snapshot()["records"])
}

func TestAggregator_DropsBeyondCap(t *testing.T) {
	a := New(1)
	require.True(t, a.Accumulate("a", 1))
	require.False(t, a.Accumulate("b", 1), "second distinct name exceeds the cap")
	require.True(t, a.Accumulate("a", 1), "existing names keep accumulating past the cap")
	require.Equal(t, int64(2), a.Snapshot()["a"])
	require.NotContains(t, a.Snapshot(), "b")
}

func TestAggregator_AccumulateAllReportsDropped(t *testing.T) {
	a := New(1)
	dropped := a.AccumulateAll(map[string]int64{"a": 1})
	require.Empty(t, dropped)
	dropped = a.AccumulateAll(map[string]int64{"b": 1})
	require.Equal(t, []string{"b"}, dropped)
}
