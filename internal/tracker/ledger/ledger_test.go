package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitmr/shuttle/internal/tracker/core"
)

func TestLedger_AppendAndLookup(t *testing.T) {
	l := New()
	e := l.Append(core.AllocateItem{
		Endpoint: "w1", ResourceNo: 0, Attempt: 1, IsMap: true,
		State: core.TaskRunning, AllocTime: time.Now(),
	})

	got, ok := l.Lookup(true, 0, 1)
	require.True(t, ok)
	require.Equal(t, e.ID, got.ID)
	require.Equal(t, "w1", got.Item.Endpoint)
}

func TestLedger_SetTerminalPersists(t *testing.T) {
	l := New()
	e := l.Append(core.AllocateItem{ResourceNo: 0, Attempt: 1, IsMap: true, State: core.TaskRunning, AllocTime: time.Now()})
	l.SetTerminal(e.ID, core.TaskCompleted, 5*time.Second)

	rec, ok := l.Get(e.ID)
	require.True(t, ok)
	require.Equal(t, core.TaskCompleted, rec.State)
	require.Equal(t, 5*time.Second, rec.Period)
}

func TestLedger_CompletedPeriodsFiltersByPhase(t *testing.T) {
	l := New()
	e1 := l.Append(core.AllocateItem{ResourceNo: 0, Attempt: 1, IsMap: true, AllocTime: time.Now()})
	e2 := l.Append(core.AllocateItem{ResourceNo: 0, Attempt: 1, IsMap: false, AllocTime: time.Now()})
	l.SetTerminal(e1.ID, core.TaskCompleted, 10*time.Second)
	l.SetTerminal(e2.ID, core.TaskCompleted, 99*time.Second)

	periods := l.CompletedPeriods(true)
	require.Equal(t, []time.Duration{10 * time.Second}, periods)
}

func TestLedger_PopOldestOrdersByAllocTime(t *testing.T) {
	l := New()
	now := time.Now()
	l.Append(core.AllocateItem{ResourceNo: 1, IsMap: true, AllocTime: now.Add(2 * time.Second)})
	older := l.Append(core.AllocateItem{ResourceNo: 0, IsMap: true, AllocTime: now})

	e, ok := l.PopOldest()
	require.True(t, ok)
	require.Equal(t, older.ID, e.ID)
}

func TestLedger_PurgeMapEntriesKeepsOnlyReduce(t *testing.T) {
	l := New()
	now := time.Now()
	l.Append(core.AllocateItem{ResourceNo: 0, IsMap: true, AllocTime: now})
	l.Append(core.AllocateItem{ResourceNo: 0, IsMap: false, AllocTime: now.Add(time.Second)})

	require.Equal(t, 2, l.Len())
	l.PurgeMapEntries()
	require.Equal(t, 1, l.Len())

	e, ok := l.PopOldest()
	require.True(t, ok)
	require.False(t, e.Item.IsMap)
}

func TestLedger_RecordFailureDedupesByHost(t *testing.T) {
	l := New()
	require.Equal(t, 1, l.RecordFailure(true, 0, "host-a"))
	require.Equal(t, 1, l.RecordFailure(true, 0, "host-a"), "same host does not bump the count")
	require.Equal(t, 2, l.RecordFailure(true, 0, "host-b"))
	require.Equal(t, 2, l.FailedCount(true, 0))
}

func TestLedger_SlugFIFOOrder(t *testing.T) {
	l := New()
	l.PushMapSlug(3)
	l.PushMapSlug(1)
	no, ok := l.PopMapSlug()
	require.True(t, ok)
	require.Equal(t, 3, no)
	require.Equal(t, 1, l.MapSlugSize())
}

func TestLedger_IndexSizeCountsDistinctIdsNotAttempts(t *testing.T) {
	l := New()
	now := time.Now()
	l.Append(core.AllocateItem{ResourceNo: 0, Attempt: 1, IsMap: true, AllocTime: now})
	l.Append(core.AllocateItem{ResourceNo: 0, Attempt: 2, IsMap: true, AllocTime: now.Add(time.Second)})
	l.Append(core.AllocateItem{ResourceNo: 0, Attempt: 3, IsMap: true, AllocTime: now.Add(2 * time.Second)})
	l.Append(core.AllocateItem{ResourceNo: 1, Attempt: 1, IsMap: true, AllocTime: now.Add(3 * time.Second)})
	l.Append(core.AllocateItem{ResourceNo: 0, Attempt: 1, IsMap: false, AllocTime: now})

	require.Equal(t, 2, l.IndexSize(true), "three attempts on id 0 plus one on id 1 is still two distinct map ids")
	require.Equal(t, 1, l.IndexSize(false))
}

func TestLedger_DumpLoadRoundTrip(t *testing.T) {
	l := New()
	e := l.Append(core.AllocateItem{ResourceNo: 0, Attempt: 1, IsMap: true, State: core.TaskRunning, AllocTime: time.Now()})
	l.SetTerminal(e.ID, core.TaskCompleted, time.Second)
	l.Append(core.AllocateItem{ResourceNo: 1, Attempt: 1, IsMap: true, State: core.TaskRunning, AllocTime: time.Now()})

	history := l.Snapshot()

	fresh := New()
	fresh.LoadHistory(history)

	require.Equal(t, l.CompletedPeriods(true), fresh.CompletedPeriods(true))
	require.Equal(t, 1, fresh.Len(), "only the still-running attempt reseeds the heap")
}
