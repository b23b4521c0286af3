package jobtracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitmr/shuttle/internal/shared/logging"
	"github.com/orbitmr/shuttle/internal/tracker/core"
	"github.com/orbitmr/shuttle/internal/tracker/ledger"
)

type fakeDeployer struct {
	mu      sync.Mutex
	started []Phase
	stopped bool
}

func (f *fakeDeployer) Start(ctx context.Context, phase Phase) core.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, phase)
	return core.Ok
}

func (f *fakeDeployer) Update(ctx context.Context, priority string, capacity int) core.Status {
	return core.Ok
}

func (f *fakeDeployer) Stop(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

type fakeDFS struct {
	mu      sync.Mutex
	exists  map[string]bool
	removed []string
	written map[string][]byte
}

func newFakeDFS() *fakeDFS {
	return &fakeDFS{exists: map[string]bool{}, written: map[string][]byte{}}
}

func (f *fakeDFS) Exist(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists[path], nil
}

func (f *fakeDFS) Remove(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeDFS) OpenWrite(ctx context.Context, path string) (WriteCloser, error) {
	return &fakeWriter{fs: f, path: path}, nil
}

type fakeWriter struct {
	fs   *fakeDFS
	path string
	buf  []byte
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *fakeWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.written[w.path] = w.buf
	return nil
}

type fakeHost struct {
	mu        sync.Mutex
	retracted bool
	endState  core.JobState
}

func (h *fakeHost) Retract(jobID string, endState core.JobState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retracted = true
	h.endState = endState
}

type fakeMinion struct {
	mu        sync.Mutex
	cancelled []string
	queryFn   func(endpoint string) (QueryResult, error)
}

func (m *fakeMinion) Query(ctx context.Context, endpoint string) (QueryResult, error) {
	if m.queryFn != nil {
		return m.queryFn(endpoint)
	}
	return QueryResult{}, errors.New("no route")
}

func (m *fakeMinion) CancelTask(ctx context.Context, endpoint, jobID string, no, attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, fmt.Sprintf("%d:%d", no, attempt))
}

// fixedPartitioner stands in for InputPartitioner: it produces n bare
// ResourceItems, ignoring the actual input paths, so jobtracker tests
// don't need a real filesystem.
type fixedPartitioner struct{ n int }

func (p fixedPartitioner) Partition(inputPaths []string) ([]core.ResourceItem, error) {
	items := make([]core.ResourceItem, p.n)
	for i := range items {
		items[i] = core.ResourceItem{
			IdItem:    core.IdItem{No: i, Status: core.ResPending},
			InputPath: fmt.Sprintf("part-%d", i),
		}
	}
	return items, nil
}

// baseDesc returns tunables that keep the end-game and dismissal paths
// quiet unless a test deliberately provokes them (ReplicaBegin=0 and
// ReplicaBeginPercent=0 push mapEndGameBegin/reduceEndGameBegin out to
// mapTotal/reduceTotal, which no valid id ever reaches).
func baseDesc() core.JobDescriptor {
	return core.JobDescriptor{
		ParallelAttempts: 5,
		MapRetry:         100,
		ReduceRetry:      100,
		LeftPercent:      120,
		FirstSleepTime:   10 * time.Millisecond,
		TimeTolerance:    100 * time.Millisecond,
		MapCapacity:      100,
		ReduceCapacity:   100,
	}
}

func TestS1_MapOnlyHappyPath(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	reduceDep := &fakeDeployer{}
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"

	jt := New("job1", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 2},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: reduceDep,
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	item0, status := jt.AssignMap(context.Background(), "w1:9000")
	require.Equal(t, core.Ok, status)
	item1, status := jt.AssignMap(context.Background(), "w2:9000")
	require.Equal(t, core.Ok, status)

	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item0.No, item0.Attempt, core.TaskCompleted, "", nil))
	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item1.No, item1.Attempt, core.TaskCompleted, "", nil))

	require.True(t, host.retracted)
	require.Equal(t, core.JobCompleted, host.endState)
	require.Contains(t, dfs.removed, "/out/_temporary")
	require.Empty(t, reduceDep.started)
}

func TestS2_EndGameDuplication(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	minion := &fakeMinion{}
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"
	desc.ReplicaBegin = 1
	desc.ReplicaBeginPercent = 0
	desc.ReplicaNum = 2
	desc.AllowDuplicates = true

	jt := New("job2", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 5},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
		Minion:         minion,
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	var items [4]core.ResourceItem
	for i := 0; i < 4; i++ {
		it, status := jt.AssignMap(context.Background(), fmt.Sprintf("w%d:9000", i))
		require.Equal(t, core.Ok, status)
		items[i] = it
	}
	for i := 0; i < 4; i++ {
		require.Equal(t, core.Ok, jt.FinishMap(context.Background(), items[i].No, items[i].Attempt, core.TaskCompleted, "", nil))
	}

	item4a, status := jt.AssignMap(context.Background(), "w4:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, 4, item4a.No)

	item4b, status := jt.AssignMap(context.Background(), "w5:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, 4, item4b.No)
	require.NotEqual(t, item4a.Attempt, item4b.Attempt)

	item4c, status := jt.AssignMap(context.Background(), "w6:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, 4, item4c.No)

	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), 4, item4a.Attempt, core.TaskCompleted, "", nil))

	require.True(t, host.retracted)
	require.Equal(t, core.JobCompleted, host.endState)
	// CancelTask is fire-and-forget (sent from goroutines), so wait for both.
	require.Eventually(t, func() bool {
		minion.mu.Lock()
		defer minion.mu.Unlock()
		return len(minion.cancelled) == 2
	}, time.Second, time.Millisecond)
}

// TestS3_StragglerKillAndRequeue drives RunPass directly rather than
// waiting on the monitor's own timer: item0 completes first so
// CompletedPeriods is non-empty and RunPass takes the deterministic
// median-timeout branch instead of the random first-sleep coin flip.
// AllowDuplicates is left false, so evaluateStraggler always queries
// (doQuery := !allowDup || ...) regardless of that coin flip too.
func TestS3_StragglerKillAndRequeue(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	minion := &fakeMinion{
		queryFn: func(endpoint string) (QueryResult, error) {
			return QueryResult{}, errors.New("dial timeout")
		},
	}
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"

	jt := New("job3", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 3},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
		Minion:         minion,
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	item0, status := jt.AssignMap(context.Background(), "w0:9000")
	require.Equal(t, core.Ok, status)
	item1, status := jt.AssignMap(context.Background(), "w1:9000")
	require.Equal(t, core.Ok, status)
	item2, status := jt.AssignMap(context.Background(), "w2:9000")
	require.Equal(t, core.Ok, status)

	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item0.No, item0.Attempt, core.TaskCompleted, "", nil))

	jt.RunPass(context.Background(), true)

	entry1, ok := jt.ledger.Lookup(true, item1.No, item1.Attempt)
	require.True(t, ok)
	require.Equal(t, core.TaskKilled, entry1.Item.State)
	entry2, ok := jt.ledger.Lookup(true, item2.No, item2.Attempt)
	require.True(t, ok)
	require.Equal(t, core.TaskKilled, entry2.Item.State)

	require.False(t, jt.mapPool.IsAllocated(item1.No))
	require.False(t, jt.mapPool.IsAllocated(item2.No))

	retry, status := jt.AssignMap(context.Background(), "w3:9000")
	require.Equal(t, core.Ok, status)
	require.Contains(t, []int{item1.No, item2.No}, retry.No)
	priorAttempt := entry1.Item.Attempt
	if retry.No == item2.No {
		priorAttempt = entry2.Item.Attempt
	}
	require.Equal(t, priorAttempt+1, retry.Attempt)

	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), retry.No, retry.Attempt, core.TaskCompleted, "", nil))
	other := item1.No
	if retry.No == item1.No {
		other = item2.No
	}
	last, status := jt.AssignMap(context.Background(), "w4:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, other, last.No)
	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), last.No, last.Attempt, core.TaskCompleted, "", nil))

	require.True(t, host.retracted)
	require.Equal(t, core.JobCompleted, host.endState)
}

// TestRunPass_SkippedTerminalEntriesGrantFreeScanSlots proves the scan
// budget in RunPass only counts entries actually evaluated. Three already
// terminal (Completed) attempts sit oldest in the heap ahead of ten still
// Running ones; a scan budget that (incorrectly) spent slots on skipping
// those three would stop three short and leave stragglers alive.
func TestRunPass_SkippedTerminalEntriesGrantFreeScanSlots(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	minion := &fakeMinion{
		queryFn: func(endpoint string) (QueryResult, error) {
			return QueryResult{}, errors.New("dial timeout")
		},
	}
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"

	const terminalCount = 3
	const runningCount = 10
	total := terminalCount + runningCount

	jt := New("job-budget", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: total},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
		Minion:         minion,
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	for i := 0; i < terminalCount; i++ {
		item, status := jt.AssignMap(context.Background(), fmt.Sprintf("w%d:9000", i))
		require.Equal(t, core.Ok, status)
		require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item.No, item.Attempt, core.TaskCompleted, "", nil))
	}

	running := make([]core.ResourceItem, runningCount)
	for i := 0; i < runningCount; i++ {
		item, status := jt.AssignMap(context.Background(), fmt.Sprintf("w%d:9000", terminalCount+i))
		require.Equal(t, core.Ok, status)
		running[i] = item
	}

	jt.RunPass(context.Background(), true)

	for _, item := range running {
		entry, ok := jt.ledger.Lookup(true, item.No, item.Attempt)
		require.True(t, ok)
		require.Equal(t, core.TaskKilled, entry.Item.State,
			"resource %d must be evaluated within one pass despite the terminal entries ahead of it", item.No)
	}
}

// TestEvaluateStraggler_QueryDeadBypassesParallelAttemptsGuard proves an
// attempt whose liveness query comes back definitively dead (a mismatched
// response) is always killed outright, regardless of AllowDuplicates or the
// slug backlog — only the un-queried timeout path gets a reprieve.
func TestEvaluateStraggler_QueryDeadBypassesParallelAttemptsGuard(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	minion := &fakeMinion{
		queryFn: func(endpoint string) (QueryResult, error) {
			// A mismatched response: the minion answers, but for a
			// different task/attempt than the one being polled.
			return QueryResult{OK: true, JobID: "job-guard", TaskNo: 999, Attempt: 999}, nil
		},
	}
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"
	desc.ParallelAttempts = 1 // any Running attempt is already at the boundary
	desc.AllowDuplicates = true

	jt := New("job-guard", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 1},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
		Minion:         minion,
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	item, status := jt.AssignMap(context.Background(), "w0:9000")
	require.Equal(t, core.Ok, status)

	entry, ok := jt.ledger.Lookup(true, item.No, item.Attempt)
	require.True(t, ok)

	// A generous timeout keeps age < timeout true regardless of scheduling
	// jitter, so doQuery is driven by the query branch, not the timeout.
	jt.evaluateStraggler(context.Background(), entry, time.Hour, &[]ledger.Entry{})

	after, ok := jt.ledger.Lookup(true, item.No, item.Attempt)
	require.True(t, ok)
	require.Equal(t, core.TaskKilled, after.Item.State)
}

// TestEvaluateStraggler_NotQueryingSeedsSpeculativeDuplicate proves that
// when duplicates are allowed and an old attempt isn't picked for the
// random liveness query, the original attempt is left Running (never
// killed) and a fresh duplicate is queued via the slug FIFO instead,
// matching job_tracker.cc's KeepMonitoring fall-through. The minion always
// answers with a mismatched response, so if the code incorrectly queried
// (or killed outright) this test would observe the attempt as Killed.
func TestEvaluateStraggler_NotQueryingSeedsSpeculativeDuplicate(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	minion := &fakeMinion{
		queryFn: func(endpoint string) (QueryResult, error) {
			return QueryResult{OK: true, JobID: "job-dup", TaskNo: 999, Attempt: 999}, nil
		},
	}
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"
	desc.AllowDuplicates = true

	const attempts = 300
	jt := New("job-dup", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: attempts},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
		Minion:         minion,
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	found := false
	for i := 0; i < attempts; i++ {
		item, status := jt.AssignMap(context.Background(), fmt.Sprintf("w%d:9000", i))
		require.Equal(t, core.Ok, status)

		entry, ok := jt.ledger.Lookup(true, item.No, item.Attempt)
		require.True(t, ok)

		before := jt.ledger.SlugSize(true)
		// timeout <= 0 forces age >= timeout for any real elapsed time,
		// so doQuery collapses to just the random-query coin.
		jt.evaluateStraggler(context.Background(), entry, 0, &[]ledger.Entry{})

		after, ok := jt.ledger.Lookup(true, item.No, item.Attempt)
		require.True(t, ok)
		if after.Item.State == core.TaskRunning {
			require.Equal(t, before+1, jt.ledger.SlugSize(true),
				"a not-queried Running attempt must seed exactly one duplicate")
			found = true
			break
		}
		require.Equal(t, core.TaskKilled, after.Item.State, "the only other outcome here is the query branch killing a mismatched attempt")
	}
	require.True(t, found, "expected at least one of %d attempts to skip the random query", attempts)
}

func TestS4_IgnoreFailureSlot(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	desc := baseDesc()
	desc.Type = core.JobTypeMapReduce
	desc.OutputPath = "/out"
	desc.MapRetry = 2
	desc.IgnoreMapFailures = 1
	desc.ReduceTotal = 1

	jt := New("job4", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 2},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	item0a, status := jt.AssignMap(context.Background(), "host-a:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item0a.No, item0a.Attempt, core.TaskFailed, "boom", nil))

	item0b, status := jt.AssignMap(context.Background(), "host-b:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item0b.No, item0b.Attempt, core.TaskFailed, "boom", nil))

	item0c, status := jt.AssignMap(context.Background(), "host-c:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item0c.No, item0c.Attempt, core.TaskFailed, "boom", nil))
	require.Contains(t, dfs.written, "/out/_temporary/shuffle/map_0/0.sort")

	item1, status := jt.AssignMap(context.Background(), "host-d:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item1.No, item1.Attempt, core.TaskCompleted, "", nil))
	require.False(t, host.retracted, "a map-reduce job completes only once its reduces do")

	reduceItem, status := jt.AssignReduce(context.Background(), "host-e:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, core.Ok, jt.FinishReduce(context.Background(), reduceItem.No, reduceItem.Attempt, core.TaskCompleted, "", nil))

	require.True(t, host.retracted)
	require.NotEqual(t, core.JobFailed, host.endState)
}

func TestS5_EarlyReduceRejection(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	desc := baseDesc()
	desc.Type = core.JobTypeMapReduce
	desc.OutputPath = "/out"
	desc.ReduceTotal = 1

	jt := New("job5", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 5},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	var mapItems []core.ResourceItem
	for i := 0; i < 3; i++ {
		it, status := jt.AssignMap(context.Background(), fmt.Sprintf("m%d:9000", i))
		require.Equal(t, core.Ok, status)
		mapItems = append(mapItems, it)
	}
	for _, it := range mapItems {
		require.Equal(t, core.Ok, jt.FinishMap(context.Background(), it.No, it.Attempt, core.TaskCompleted, "", nil))
	}

	reduceItem, status := jt.AssignReduce(context.Background(), "r0:9000")
	require.Equal(t, core.Ok, status)

	require.Equal(t, core.Suspend, jt.FinishReduce(context.Background(), reduceItem.No, reduceItem.Attempt, core.TaskCompleted, "", nil))
	require.False(t, host.retracted)

	for i := 3; i < 5; i++ {
		it, status := jt.AssignMap(context.Background(), fmt.Sprintf("m%d:9000", i))
		require.Equal(t, core.Ok, status)
		require.Equal(t, core.Ok, jt.FinishMap(context.Background(), it.No, it.Attempt, core.TaskCompleted, "", nil))
	}

	require.Equal(t, core.Ok, jt.FinishReduce(context.Background(), reduceItem.No, reduceItem.Attempt, core.TaskCompleted, "", nil))
	require.True(t, host.retracted)
	require.Equal(t, core.JobCompleted, host.endState)
}

func TestS6_CrashAndResume(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"

	jt := New("job6", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 2},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	item0, status := jt.AssignMap(context.Background(), "w0:9000")
	require.Equal(t, core.Ok, status)
	require.Equal(t, core.Ok, jt.FinishMap(context.Background(), item0.No, item0.Attempt, core.TaskCompleted, "", map[string]int64{"records": 10}))

	item1, status := jt.AssignMap(context.Background(), "w1:9000")
	require.Equal(t, core.Ok, status)

	cp := jt.Dump()

	dfs2 := newFakeDFS()
	host2 := &fakeHost{}
	resumed := New("job6", core.JobDescriptor{}, Deps{
		DFS: dfs2, Host: host2, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 2},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
	})
	resumed.Load(cp)

	require.Equal(t, core.Ok, resumed.FinishMap(context.Background(), item1.No, item1.Attempt, core.TaskCompleted, "", map[string]int64{"records": 5}))

	require.True(t, host2.retracted)
	require.Equal(t, core.JobCompleted, host2.endState)
	require.Equal(t, int64(15), resumed.Snapshot().Counters["records"])
}

func TestKill_MarksRunningKilledAndBlocksFurtherWork(t *testing.T) {
	dfs := newFakeDFS()
	host := &fakeHost{}
	mapDep := &fakeDeployer{}
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"

	jt := New("job-kill", desc, Deps{
		DFS: dfs, Host: host, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 2},
		MapDeployer:    mapDep,
		ReduceDeployer: &fakeDeployer{},
	})
	require.Equal(t, core.Ok, jt.Start(context.Background()))

	item, status := jt.AssignMap(context.Background(), "w0:9000")
	require.Equal(t, core.Ok, status)

	jt.Kill(context.Background(), core.JobKilled)
	require.True(t, mapDep.stopped)

	_, status = jt.AssignMap(context.Background(), "w1:9000")
	require.Equal(t, core.NoMore, status)
	require.Equal(t, core.NoMore, jt.FinishMap(context.Background(), item.No, item.Attempt, core.TaskCompleted, "", nil))
}

func TestStart_RejectsExistingOutput(t *testing.T) {
	dfs := newFakeDFS()
	dfs.exists["/out"] = true
	desc := baseDesc()
	desc.Type = core.JobTypeMapOnly
	desc.OutputPath = "/out"

	jt := New("job-exists", desc, Deps{
		DFS: dfs, Host: &fakeHost{}, Logger: logging.NewNoop(),
		Partitioner:    fixedPartitioner{n: 2},
		MapDeployer:    &fakeDeployer{},
		ReduceDeployer: &fakeDeployer{},
	})
	require.Equal(t, core.WriteFileFail, jt.Start(context.Background()))
}
