package jobtracker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbitmr/shuttle/internal/shared/logging"
	"github.com/orbitmr/shuttle/internal/tracker/core"
	"github.com/orbitmr/shuttle/internal/tracker/counter"
	"github.com/orbitmr/shuttle/internal/tracker/ledger"
	"github.com/orbitmr/shuttle/internal/tracker/monitor"
	"github.com/orbitmr/shuttle/internal/tracker/partition"
	"github.com/orbitmr/shuttle/internal/tracker/pool"
)

// randomQueryProbability is the monitor's chance of querying an attempt
// that is already past its computed timeout when duplicates are allowed
// (attempts still within the timeout are always queried), and of
// proceeding with a pass when there is no completed-period sample yet
// (spec §4.4 step 1's "biased coin").
const randomQueryProbability = 0.1

// Deps collects JobTracker's external collaborators, all specified only by
// interface per spec §6/§9.
type Deps struct {
	Store          Store
	DFS            DFS
	Minion         MinionStub
	Host           JobHost
	Logger         logging.Logger
	Partitioner    partition.Partitioner
	MapDeployer    Deployer
	ReduceDeployer Deployer
}

// JobTracker is the coordinator of spec §4.3: the state machine for one
// job. It owns two TaskPools, an AllocationLedger, a StragglerMonitor and
// a CounterAggregator, and drives the job to a terminal JobState.
type JobTracker struct {
	id string

	// jobMu is the "job lock" of spec §5: JobState, Deployer handles, the
	// monitor handle, ignore-failure sets, dismissal sets and end-game
	// flags. The AllocationLedger has its own mutex and never acquires
	// jobMu. FinishMap and FinishReduce call the ledger's failure
	// bookkeeping and heap purge while holding jobMu, so the two locks
	// nest only in jobMu-then-ledger order.
	jobMu sync.Mutex

	desc       core.JobDescriptor
	state      core.JobState
	errorMsg   string
	startTime  time.Time
	finishTime time.Time

	mapPool    *pool.MapPool
	reducePool *pool.ReducePool
	ledger     *ledger.Ledger
	counters   *counter.Aggregator
	monitor    *monitor.Monitor

	partitioner partition.Partitioner

	mapDeployer    Deployer
	reduceDeployer Deployer
	store          Store
	dfs            DFS
	minion         MinionStub
	host           JobHost
	logger         logging.Logger

	mapEndGameBegin    int
	reduceBegin        int
	reduceEndGameBegin int

	mapMonitoring    bool
	reduceMonitoring bool

	mapDismissed    map[string]struct{}
	reduceDismissed map[string]struct{}

	ignoreFailureMappers  map[int]struct{}
	ignoreFailureReducers map[int]struct{}
	ignoredMapFailures    int
	ignoredReduceFailures int

	mapKilled, reduceKilled int
	mapFailed, reduceFailed int
}

// New builds a JobTracker for a not-yet-started job. Call Start before
// assigning any tasks, or Load to resume a checkpointed job.
func New(id string, desc core.JobDescriptor, deps Deps) *JobTracker {
	if deps.Logger == nil {
		deps.Logger = logging.NewNoop()
	}
	jt := &JobTracker{
		id:                    id,
		desc:                  desc,
		state:                 core.JobPending,
		ledger:                ledger.New(),
		counters:              counter.New(desc.MaxCountersPerJob),
		partitioner:           deps.Partitioner,
		mapDeployer:           deps.MapDeployer,
		reduceDeployer:        deps.ReduceDeployer,
		store:                 deps.Store,
		dfs:                   deps.DFS,
		minion:                deps.Minion,
		host:                  deps.Host,
		logger:                deps.Logger,
		mapDismissed:          make(map[string]struct{}),
		reduceDismissed:       make(map[string]struct{}),
		ignoreFailureMappers:  make(map[int]struct{}),
		ignoreFailureReducers: make(map[int]struct{}),
	}
	jt.monitor = monitor.New(jt, deps.Logger)
	return jt
}

// GenerateJobID builds a job id in the spec §6 format
// job_YYYYMMDD_HHMMSS_<randomInt>, in local time.
func GenerateJobID() string {
	return fmt.Sprintf("job_%s_%d", time.Now().Format("20060102_150405"), rand.Intn(1_000_000))
}

// ID returns the job's identity.
func (jt *JobTracker) ID() string { return jt.id }

// Start validates the output does not already exist, partitions the
// input into the map id-space, computes the end-game thresholds, and
// launches the map-phase Deployer. Per spec §4.3.
func (jt *JobTracker) Start(ctx context.Context) core.Status {
	exists, err := jt.dfs.Exist(ctx, jt.desc.OutputPath)
	if err != nil {
		jt.logger.Error("output pre-check failed", "job", jt.id, "err", err)
		return core.WriteFileFail
	}
	if exists {
		jt.logger.Warn("output path already exists", "job", jt.id, "path", jt.desc.OutputPath)
		return core.WriteFileFail
	}

	items, err := jt.partitioner.Partition(jt.desc.InputPaths)
	if err != nil {
		jt.logger.Error("input partition failed", "job", jt.id, "err", err)
		return core.OpenFileFail
	}
	if len(items) == 0 {
		jt.logger.Warn("input partition produced no map items", "job", jt.id)
		return core.OpenFileFail
	}

	jt.jobMu.Lock()
	jt.desc.MapTotal = len(items)
	jt.mapPool = pool.NewMapPool(items, jt.desc.AllowDuplicates)
	if jt.desc.Type != core.JobTypeMapOnly {
		jt.reducePool = pool.NewReducePool(jt.desc.ReduceTotal, jt.desc.AllowDuplicates)
	}
	jt.computeEndGameThresholds()
	jt.startTime = time.Now()
	jt.jobMu.Unlock()

	if st := jt.mapDeployer.Start(ctx, PhaseMap); st != core.Ok {
		jt.logger.Error("map deployer failed to start", "job", jt.id)
		return core.GalaxyError
	}
	jt.logger.Info("job started", "job", jt.id, "map_total", jt.desc.MapTotal, "reduce_total", jt.desc.ReduceTotal)
	return core.Ok
}

// computeEndGameThresholds derives the end-game and reduce-begin
// boundaries per spec §4.3. Callers must hold jobMu.
func (jt *JobTracker) computeEndGameThresholds() {
	d := &jt.desc
	mapTotal := d.MapTotal
	reduceTotal := d.ReduceTotal

	jt.mapEndGameBegin = min(mapTotal-d.ReplicaBegin, mapTotal-mapTotal*d.ReplicaBeginPercent/100)
	jt.reduceBegin = mapTotal - mapTotal*d.ReplicaBeginPercent/100
	jt.reduceEndGameBegin = max(reduceTotal-d.ReplicaBegin, reduceTotal*d.ReplicaBeginPercent/100)

	if d.ReduceCapacity > 2*reduceTotal {
		clamp := 2 * reduceTotal
		if clamp < 60 {
			clamp = 60
		}
		d.ReduceCapacity = clamp
	}
}

// AssignMap hands out the next map task, per spec §4.3 AssignMap.
func (jt *JobTracker) AssignMap(ctx context.Context, endpoint string) (core.ResourceItem, core.Status) {
	jt.jobMu.Lock()
	if jt.state == core.JobPending {
		jt.state = core.JobRunning
	}
	dead := jt.state.Terminal()
	jt.jobMu.Unlock()
	if dead {
		return core.ResourceItem{}, core.NoMore
	}

	if item, ok := jt.mapPool.Next(); ok {
		if item.No >= jt.mapEndGameBegin && jt.desc.AllowDuplicates {
			for i := 0; i < jt.desc.ReplicaNum; i++ {
				jt.ledger.PushMapSlug(item.No)
			}
		}
		jt.maybeStartMonitor(true, item.No)
		jt.recordAllocation(true, endpoint, item.No, item.Attempt)
		return item, core.Ok
	}

	if no, ok := jt.drainSlugForCandidate(true); ok {
		if candidate, ok := jt.mapPool.Take(no); ok {
			jt.maybeStartMonitor(true, candidate.No)
			jt.recordAllocation(true, endpoint, candidate.No, candidate.Attempt)
			return candidate, core.Ok
		}
	}
	return core.ResourceItem{}, jt.canMapDismiss(endpoint)
}

// AssignReduce hands out the next reduce task, per spec §4.3 AssignReduce
// (the exact structural mirror of AssignMap).
func (jt *JobTracker) AssignReduce(ctx context.Context, endpoint string) (core.IdItem, core.Status) {
	jt.jobMu.Lock()
	dead := jt.state.Terminal()
	jt.jobMu.Unlock()
	if dead || jt.reducePool == nil {
		return core.IdItem{}, core.NoMore
	}

	if item, ok := jt.reducePool.Next(); ok {
		if item.No >= jt.reduceEndGameBegin && jt.desc.AllowDuplicates {
			for i := 0; i < jt.desc.ReplicaNum; i++ {
				jt.ledger.PushReduceSlug(item.No)
			}
		}
		jt.maybeStartMonitor(false, item.No)
		jt.recordAllocation(false, endpoint, item.No, item.Attempt)
		return item, core.Ok
	}

	if no, ok := jt.drainSlugForCandidate(false); ok {
		if candidate, ok := jt.reducePool.Take(no); ok {
			jt.maybeStartMonitor(false, candidate.No)
			jt.recordAllocation(false, endpoint, candidate.No, candidate.Attempt)
			return candidate, core.Ok
		}
	}
	return core.IdItem{}, jt.canReduceDismiss(endpoint)
}

// drainSlugForCandidate pops the phase's slug FIFO past any ids that
// finished before their re-issue was picked up, per spec §4.3 step 3.
func (jt *JobTracker) drainSlugForCandidate(isMap bool) (int, bool) {
	for {
		no, ok := jt.ledger.PopSlug(isMap)
		if !ok {
			return 0, false
		}
		if jt.poolDone(isMap, no) {
			continue
		}
		return no, true
	}
}

func (jt *JobTracker) poolDone(isMap bool, no int) bool {
	if isMap {
		return jt.mapPool.IsDone(no)
	}
	return jt.reducePool.IsDone(no)
}

func (jt *JobTracker) poolAllocated(isMap bool, no int) bool {
	if isMap {
		return jt.mapPool.IsAllocated(no)
	}
	return jt.reducePool.IsAllocated(no)
}

// maybeStartMonitor schedules the StragglerMonitor for the given phase the
// first time an id at or past that phase's end-game boundary is handed
// out, per spec §4.3 step 4.
func (jt *JobTracker) maybeStartMonitor(isMap bool, no int) {
	threshold := jt.mapEndGameBegin
	if !isMap {
		threshold = jt.reduceEndGameBegin
	}
	if no < threshold {
		return
	}
	jt.jobMu.Lock()
	defer jt.jobMu.Unlock()
	if isMap && !jt.mapMonitoring {
		jt.mapMonitoring = true
		jt.monitor.Start(true)
	} else if !isMap && !jt.reduceMonitoring {
		jt.reduceMonitoring = true
		jt.monitor.Start(false)
	}
}

// recordAllocation appends the new attempt to the ledger. The ledger is a
// standalone lock domain per spec §5; no job lock is held here.
func (jt *JobTracker) recordAllocation(isMap bool, endpoint string, no, attempt int) ledger.Entry {
	entry := jt.ledger.Append(core.AllocateItem{
		Endpoint:   endpoint,
		ResourceNo: no,
		Attempt:    attempt,
		IsMap:      isMap,
		State:      core.TaskRunning,
		AllocTime:  time.Now(),
		TraceID:    uuid.NewString(),
	})
	jt.logger.Info("attempt allocated", "job", jt.id, "trace", entry.Item.TraceID,
		"endpoint", endpoint, "no", no, "attempt", attempt, "isMap", isMap)
	return entry
}

// canMapDismiss decides whether a worker with no map work available should
// sleep (Suspend) or exit (NoMore), per spec §4.3 and the exact `>=`
// dismissal boundary resolved by the open question in spec §9.
func (jt *JobTracker) canMapDismiss(endpoint string) core.Status {
	jt.jobMu.Lock()
	defer jt.jobMu.Unlock()
	notDone := jt.desc.MapTotal - jt.mapPool.Done()
	if jt.desc.MapCapacity <= notDone {
		return core.Suspend
	}
	budget := dismissBudget(jt.desc.MapCapacity, notDone, jt.desc.LeftPercent)
	if len(jt.mapDismissed) >= budget {
		return core.Suspend
	}
	jt.mapDismissed[endpoint] = struct{}{}
	return core.NoMore
}

// canReduceDismiss is the reduce-phase mirror of canMapDismiss.
func (jt *JobTracker) canReduceDismiss(endpoint string) core.Status {
	jt.jobMu.Lock()
	defer jt.jobMu.Unlock()
	notDone := jt.desc.ReduceTotal - jt.reducePool.Done()
	if jt.desc.ReduceCapacity <= notDone {
		return core.Suspend
	}
	budget := dismissBudget(jt.desc.ReduceCapacity, notDone, jt.desc.LeftPercent)
	if len(jt.reduceDismissed) >= budget {
		return core.Suspend
	}
	jt.reduceDismissed[endpoint] = struct{}{}
	return core.NoMore
}

func dismissBudget(capacity, notDone, leftPercent int) int {
	base := notDone
	if base < 5 {
		base = 5
	}
	return capacity - int(math.Ceil(float64(base)*float64(leftPercent)/100))
}

// FinishMap records a worker's terminal report for one map attempt, per
// spec §4.3 FinishMap.
func (jt *JobTracker) FinishMap(ctx context.Context, no, attempt int, state core.TaskState, errMsg string, counters map[string]int64) core.Status {
	entry, ok := jt.ledger.Lookup(true, no, attempt)
	if !ok || entry.Item.State != core.TaskRunning {
		jt.logger.Warn("finish map: unknown or non-running attempt", "job", jt.id, "no", no, "attempt", attempt)
		return core.NoMore
	}

	if state == core.TaskState(core.KTaskMoveOutputFailed) {
		if !jt.mapPool.IsDone(no) {
			state = core.TaskFailed
		} else {
			state = core.TaskCanceled
		}
	}
	host := hostOf(entry.Item.Endpoint)

	var retract bool
	var retractWith core.JobState

	jt.jobMu.Lock()
	if state == core.TaskFailed {
		if _, ignored := jt.ignoreFailureMappers[no]; ignored {
			jt.logger.Warn("fake-completing repeatedly failing map task", "job", jt.id, "no", no)
			state = core.TaskCompleted
			if jt.desc.Type != core.JobTypeMapOnly {
				jt.jobMu.Unlock()
				if err := jt.writeSyntheticSortFile(ctx, no); err != nil {
					jt.logger.Warn("synthetic sort file write failed", "job", jt.id, "no", no, "err", err)
					state = core.TaskFailed
				}
				jt.jobMu.Lock()
			}
		}
	}

	switch state {
	case core.TaskCompleted:
		if !jt.mapPool.Finish(no) {
			jt.logger.Warn("ignoring finish for already-done map task", "job", jt.id, "no", no)
			state = core.TaskCanceled
			break
		}
		if dropped := jt.counters.AccumulateAll(counters); len(dropped) > 0 {
			jt.logger.Warn("counters dropped past cap", "job", jt.id, "names", dropped)
		}
		completed := jt.mapPool.Done()
		jt.logger.Info("map task completed", "job", jt.id, "completed", completed, "total", jt.mapPool.SumOfItems())

		if completed == jt.reduceBegin && jt.desc.Type != core.JobTypeMapOnly {
			reduceDeployer := jt.reduceDeployer
			jt.jobMu.Unlock()
			deployStatus := reduceDeployer.Start(ctx, PhaseReduce)
			jt.jobMu.Lock()
			if deployStatus != core.Ok {
				jt.logger.Warn("reduce deployer failed to start", "job", jt.id)
				jt.errorMsg = "failed to start reduce phase"
				retract, retractWith = true, core.JobFailed
				jt.state = core.JobFailed
			}
		}

		if completed == jt.mapPool.SumOfItems() {
			if jt.desc.Type == core.JobTypeMapOnly {
				jt.jobMu.Unlock()
				jt.dfs.Remove(ctx, jt.desc.OutputPath+"/_temporary")
				jt.jobMu.Lock()
				retract, retractWith = true, core.JobCompleted
				jt.state = core.JobCompleted
			} else {
				jt.logger.Info("map phase ends, pivoting to reduce", "job", jt.id)
				jt.ledger.ResetReduceFailures()
				jt.ledger.PurgeMapEntries()
				jt.monitor.Stop()
				if jt.reduceMonitoring {
					jt.monitor.Start(false)
				}
				jt.mapMonitoring = false
				mapDeployer := jt.mapDeployer
				jt.jobMu.Unlock()
				if mapDeployer != nil {
					mapDeployer.Stop(ctx)
				}
				jt.jobMu.Lock()
			}
		}
	case core.TaskFailed:
		jt.mapPool.ReturnBack(no)
		jt.mapFailed++
		failedCount := jt.ledger.RecordFailure(true, no, host)
		if failedCount >= jt.desc.MapRetry {
			if jt.ignoredMapFailures < jt.desc.IgnoreMapFailures {
				jt.ignoreFailureMappers[no] = struct{}{}
				jt.ignoredMapFailures++
				jt.logger.Warn("ignoring repeated map failure", "job", jt.id, "no", no)
			} else {
				jt.logger.Error("map task exhausted retries, failing job", "job", jt.id, "no", no)
				jt.errorMsg = errMsg
				retract, retractWith = true, core.JobFailed
				jt.state = core.JobFailed
			}
		}
	case core.TaskKilled:
		jt.mapPool.ReturnBack(no)
		jt.mapKilled++
	case core.TaskCanceled:
		if !jt.mapPool.IsDone(no) {
			jt.mapPool.ReturnBack(no)
		}
	default:
		jt.jobMu.Unlock()
		jt.logger.Warn("unfamiliar map finish state", "job", jt.id, "state", state)
		return core.NoMore
	}
	jt.jobMu.Unlock()

	period := time.Since(entry.Item.AllocTime)
	jt.ledger.SetTerminal(entry.ID, state, period)
	if jt.desc.AllowDuplicates && (state == core.TaskKilled || state == core.TaskFailed) {
		jt.ledger.PushMapSlug(no)
	}

	if retract {
		jt.host.Retract(jt.id, retractWith)
	}

	if state == core.TaskCompleted && jt.desc.AllowDuplicates {
		jt.cancelOtherAttempts(ctx, true, no, attempt)
	}
	return core.Ok
}

// FinishReduce records a worker's terminal report for one reduce attempt,
// per spec §4.3 FinishReduce.
func (jt *JobTracker) FinishReduce(ctx context.Context, no, attempt int, state core.TaskState, errMsg string, counters map[string]int64) core.Status {
	if jt.desc.Type != core.JobTypeMapOnly && jt.mapPool.Done() < jt.desc.MapTotal && state != core.TaskKilled {
		return core.Suspend
	}

	entry, ok := jt.ledger.Lookup(false, no, attempt)
	if !ok || entry.Item.State != core.TaskRunning {
		jt.logger.Warn("finish reduce: unknown or non-running attempt", "job", jt.id, "no", no, "attempt", attempt)
		return core.NoMore
	}

	if state == core.TaskState(core.KTaskMoveOutputFailed) {
		if !jt.reducePool.IsDone(no) {
			state = core.TaskFailed
		} else {
			state = core.TaskCanceled
		}
	}
	host := hostOf(entry.Item.Endpoint)

	var retract bool
	var retractWith core.JobState

	jt.jobMu.Lock()
	if state == core.TaskFailed {
		if _, ignored := jt.ignoreFailureReducers[no]; ignored {
			jt.logger.Warn("fake-completing repeatedly failing reduce task", "job", jt.id, "no", no)
			state = core.TaskCompleted
		}
	}

	switch state {
	case core.TaskCompleted:
		if !jt.reducePool.Finish(no) {
			jt.logger.Warn("ignoring finish for already-done reduce task", "job", jt.id, "no", no)
			state = core.TaskCanceled
			break
		}
		if dropped := jt.counters.AccumulateAll(counters); len(dropped) > 0 {
			jt.logger.Warn("counters dropped past cap", "job", jt.id, "names", dropped)
		}
		if jt.reducePool.Done() == jt.reducePool.SumOfItems() {
			jt.jobMu.Unlock()
			jt.dfs.Remove(ctx, jt.desc.OutputPath+"/_temporary")
			jt.jobMu.Lock()
			jt.monitor.Stop()
			reduceDeployer := jt.reduceDeployer
			jt.jobMu.Unlock()
			if reduceDeployer != nil {
				reduceDeployer.Stop(ctx)
			}
			jt.jobMu.Lock()
			retract, retractWith = true, core.JobCompleted
			jt.state = core.JobCompleted
		}
	case core.TaskFailed:
		jt.reducePool.ReturnBack(no)
		jt.reduceFailed++
		failedCount := jt.ledger.RecordFailure(false, no, host)
		if failedCount >= jt.desc.ReduceRetry {
			if jt.ignoredReduceFailures < jt.desc.IgnoreReduceFailures {
				jt.ignoreFailureReducers[no] = struct{}{}
				jt.ignoredReduceFailures++
				jt.logger.Warn("ignoring repeated reduce failure", "job", jt.id, "no", no)
			} else {
				jt.logger.Error("reduce task exhausted retries, failing job", "job", jt.id, "no", no)
				jt.errorMsg = errMsg
				retract, retractWith = true, core.JobFailed
				jt.state = core.JobFailed
			}
		}
	case core.TaskKilled:
		jt.reducePool.ReturnBack(no)
		jt.reduceKilled++
	case core.TaskCanceled:
		if !jt.reducePool.IsDone(no) {
			jt.reducePool.ReturnBack(no)
		}
	default:
		jt.jobMu.Unlock()
		jt.logger.Warn("unfamiliar reduce finish state", "job", jt.id, "state", state)
		return core.NoMore
	}
	jt.jobMu.Unlock()

	period := time.Since(entry.Item.AllocTime)
	jt.ledger.SetTerminal(entry.ID, state, period)
	if jt.desc.AllowDuplicates && (state == core.TaskKilled || state == core.TaskFailed) {
		jt.ledger.PushReduceSlug(no)
	}

	if retract {
		jt.host.Retract(jt.id, retractWith)
	}

	if state == core.TaskCompleted && jt.desc.AllowDuplicates {
		jt.cancelOtherAttempts(ctx, false, no, attempt)
	}
	return core.Ok
}

// writeSyntheticSortFile creates the empty sort output an ignored-failure
// map id is expected to have produced, per spec §4.3 step 3 and §6.
func (jt *JobTracker) writeSyntheticSortFile(ctx context.Context, no int) error {
	path := fmt.Sprintf("%s/_temporary/shuffle/map_%d/0.sort", jt.desc.OutputPath, no)
	w, err := jt.dfs.OpenWrite(ctx, path)
	if err != nil {
		return err
	}
	return w.Close()
}

// cancelOtherAttempts marks every losing attempt of no Canceled and fires
// a best-effort, fire-and-forget CancelTask to each losing worker, per
// spec §4.3 step 6 and §5's cancellation semantics.
func (jt *JobTracker) cancelOtherAttempts(ctx context.Context, isMap bool, no, winningAttempt int) {
	jt.jobMu.Lock()
	minion := jt.minion
	jt.jobMu.Unlock()
	if minion == nil {
		return
	}
	jobID := jt.id
	for _, e := range jt.ledger.EntriesForResource(isMap, no) {
		if e.Item.Attempt == winningAttempt {
			continue
		}
		period := time.Since(e.Item.AllocTime)
		jt.ledger.SetTerminal(e.ID, core.TaskCanceled, period)
		endpoint, attempt := e.Item.Endpoint, e.Item.Attempt
		go minion.CancelTask(ctx, endpoint, jobID, no, attempt)
	}
}

// Update forwards a priority/capacity change to the active Deployer(s),
// per spec §4.3 Update.
func (jt *JobTracker) Update(ctx context.Context, priority string, mapCapacity, reduceCapacity int) core.Status {
	jt.jobMu.Lock()
	mapDeployer, reduceDeployer := jt.mapDeployer, jt.reduceDeployer
	jt.jobMu.Unlock()

	if mapDeployer != nil {
		if st := mapDeployer.Update(ctx, priority, mapCapacity); st != core.Ok {
			return core.GalaxyError
		}
	}
	if reduceDeployer != nil {
		if st := reduceDeployer.Update(ctx, priority, reduceCapacity); st != core.Ok {
			return core.GalaxyError
		}
	}

	jt.jobMu.Lock()
	jt.desc.Priority = priority
	jt.desc.MapCapacity = mapCapacity
	jt.desc.ReduceCapacity = reduceCapacity
	jt.jobMu.Unlock()
	jt.logger.Info("job update accepted", "job", jt.id, "priority", priority,
		"map_capacity", mapCapacity, "reduce_capacity", reduceCapacity)
	return core.Ok
}

// Kill releases the Deployer(s), stops the monitor, marks every
// still-Running attempt Killed, and sets the terminal JobState, per spec
// §4.3 Kill. After Kill returns, future Assign calls fail with NoMore and
// Finish calls are ignored (§5's synchronous-with-respect-to-future-calls
// guarantee).
func (jt *JobTracker) Kill(ctx context.Context, endState core.JobState) {
	jt.jobMu.Lock()
	if jt.state.Terminal() {
		jt.jobMu.Unlock()
		return
	}
	mapDeployer, reduceDeployer := jt.mapDeployer, jt.reduceDeployer
	jt.state = endState
	jt.finishTime = time.Now()
	jt.minion = nil
	jt.jobMu.Unlock()

	jt.monitor.Stop()
	if mapDeployer != nil {
		mapDeployer.Stop(ctx)
	}
	if reduceDeployer != nil {
		reduceDeployer.Stop(ctx)
	}

	killed := jt.ledger.KillRunning(time.Now())
	jt.jobMu.Lock()
	for _, item := range killed {
		if item.IsMap {
			jt.mapKilled++
		} else {
			jt.reduceKilled++
		}
	}
	jt.jobMu.Unlock()
	for _, item := range killed {
		if item.IsMap {
			jt.mapPool.ReturnBack(item.ResourceNo)
		} else if jt.reducePool != nil {
			jt.reducePool.ReturnBack(item.ResourceNo)
		}
	}
	jt.logger.Info("job killed", "job", jt.id, "end_state", endState)
}

// RunPass implements monitor.Callbacks: one straggler-detection pass over
// the currently monitored phase, per spec §4.4.
func (jt *JobTracker) RunPass(ctx context.Context, isMap bool) (time.Duration, bool) {
	periods := jt.ledger.CompletedPeriods(isMap)

	var timeout time.Duration
	if len(periods) > 0 {
		timeout = medianDuration(periods)
		timeout += timeout / 5
	} else if !jt.biasedCoin(randomQueryProbability) {
		jt.jobMu.Lock()
		sleep := jt.desc.FirstSleepTime
		again := jt.isMonitoring(isMap)
		jt.jobMu.Unlock()
		return sleep, again
	}

	jt.jobMu.Lock()
	tolerance := jt.desc.TimeTolerance
	jt.jobMu.Unlock()
	sleepTime := timeout
	if tolerance < sleepTime {
		sleepTime = tolerance
	}

	// scanned only counts entries actually evaluated below; a popped entry
	// that is skipped outright (already terminal) grants a free extra slot
	// instead of consuming one, per spec §4.4 step 3 and the original's
	// ++counter; continue (job_tracker.cc:1107-1113).
	var setAside []ledger.Entry
	for scanned := 0; scanned < 10; {
		entry, ok := jt.ledger.PopOldest()
		if !ok {
			break
		}
		if entry.Item.State != core.TaskRunning {
			continue
		}
		if entry.Item.IsMap != isMap {
			setAside = append(setAside, entry)
			continue
		}
		jt.evaluateStraggler(ctx, entry, timeout, &setAside)
		scanned++
	}
	for _, e := range setAside {
		jt.ledger.Restore(e)
	}

	jt.jobMu.Lock()
	again := jt.isMonitoring(isMap)
	jt.jobMu.Unlock()
	return sleepTime, again
}

// evaluateStraggler decides the fate of one Running attempt during a
// monitor pass, per spec §4.4 step 3.
func (jt *JobTracker) evaluateStraggler(ctx context.Context, entry ledger.Entry, timeout time.Duration, setAside *[]ledger.Entry) {
	isMap := entry.Item.IsMap
	age := time.Since(entry.Item.AllocTime)

	jt.jobMu.Lock()
	allowDup := jt.desc.AllowDuplicates
	parallel := jt.desc.ParallelAttempts
	jt.jobMu.Unlock()

	doQuery := !allowDup || age < timeout || jt.biasedCoin(randomQueryProbability)

	if !doQuery {
		// Duplicates are allowed, this attempt is already past timeout, and
		// the random-query coin didn't fire: the attempt stays Running and a
		// genuine speculative duplicate is queued via the slug FIFO
		// instead, unless the attempt has reached ParallelAttempts-1 and the
		// slug FIFO is no longer than the phase's index (then it is only
		// restored). job_tracker.cc's KeepMonitoring never reaches the RPC
		// or the kill path on this branch, leaving top->state untouched.
		*setAside = append(*setAside, entry)
		if entry.Item.Attempt >= parallel-1 && jt.ledger.SlugSize(isMap) <= jt.ledger.IndexSize(isMap) {
			return
		}
		jt.ledger.PushSlug(isMap, entry.Item.ResourceNo)
		return
	}

	res, err := jt.minion.Query(ctx, entry.Item.Endpoint)
	alive := false
	switch {
	case err == nil && res.OK && res.JobID == jt.id && res.TaskNo == entry.Item.ResourceNo && res.Attempt == entry.Item.Attempt:
		alive = true
	case err == nil && res.OK && !jt.poolAllocated(isMap, entry.Item.ResourceNo):
		// orphaned: the pool moved on without this attempt.
		alive = false
	default:
		alive = false
	}

	if alive {
		*setAside = append(*setAside, entry)
		return
	}

	jt.markStragglerKilled(isMap, entry)
}

func (jt *JobTracker) markStragglerKilled(isMap bool, entry ledger.Entry) {
	period := time.Since(entry.Item.AllocTime)
	jt.ledger.SetTerminal(entry.ID, core.TaskKilled, period)

	jt.jobMu.Lock()
	if isMap {
		jt.mapKilled++
	} else {
		jt.reduceKilled++
	}
	jt.jobMu.Unlock()

	if isMap {
		jt.mapPool.ReturnBack(entry.Item.ResourceNo)
		jt.ledger.PushMapSlug(entry.Item.ResourceNo)
	} else {
		jt.reducePool.ReturnBack(entry.Item.ResourceNo)
		jt.ledger.PushReduceSlug(entry.Item.ResourceNo)
	}
	jt.logger.Warn("straggler killed", "job", jt.id, "no", entry.Item.ResourceNo,
		"attempt", entry.Item.Attempt, "endpoint", entry.Item.Endpoint)
}

func (jt *JobTracker) isMonitoring(isMap bool) bool {
	if isMap {
		return jt.mapMonitoring
	}
	return jt.reduceMonitoring
}

func (jt *JobTracker) biasedCoin(p float64) bool {
	return rand.Float64() < p
}

// Snapshot reports live progress and flattened counters for a job, the
// read API of SPEC_FULL.md's supplemented "show job" query.
type Snapshot struct {
	JobID        string
	State        core.JobState
	ErrorMsg     string
	MapDone      int
	MapTotal     int
	ReduceDone   int
	ReduceTotal  int
	Counters     map[string]int64
}

func (jt *JobTracker) Snapshot() Snapshot {
	jt.jobMu.Lock()
	s := Snapshot{
		JobID:    jt.id,
		State:    jt.state,
		ErrorMsg: jt.errorMsg,
		MapTotal: jt.desc.MapTotal,
		Counters: jt.counters.Snapshot(),
	}
	jt.jobMu.Unlock()

	if jt.mapPool != nil {
		s.MapDone = jt.mapPool.Done()
	}
	if jt.reducePool != nil {
		s.ReduceDone = jt.reducePool.Done()
		s.ReduceTotal = jt.reducePool.SumOfItems()
	}
	return s
}

// Dump snapshots everything spec §8 invariant 7 requires Load to restore.
func (jt *JobTracker) Dump() Checkpoint {
	jt.jobMu.Lock()
	cp := Checkpoint{
		Descriptor:            jt.desc,
		State:                 jt.state,
		ErrorMsg:              jt.errorMsg,
		StartTime:             jt.startTime,
		FinishTime:            jt.finishTime,
		Counters:              jt.counters.Snapshot(),
		IgnoredMapFailures:    jt.ignoredMapFailures,
		IgnoredReduceFailures: jt.ignoredReduceFailures,
		MapKilled:             jt.mapKilled,
		ReduceKilled:          jt.reduceKilled,
		MapFailed:             jt.mapFailed,
		ReduceFailed:          jt.reduceFailed,
		MapMonitoring:         jt.mapMonitoring,
		ReduceMonitoring:      jt.reduceMonitoring,
	}
	for no := range jt.ignoreFailureMappers {
		cp.IgnoreFailureMappers = append(cp.IgnoreFailureMappers, no)
	}
	for no := range jt.ignoreFailureReducers {
		cp.IgnoreFailureReducers = append(cp.IgnoreFailureReducers, no)
	}
	jt.jobMu.Unlock()

	cp.MapItems = jt.mapPool.Dump()
	if jt.reducePool != nil {
		cp.ReduceItems = jt.reducePool.Dump()
	}
	cp.History = jt.ledger.Snapshot()
	return cp
}

// Load restores a JobTracker from a checkpoint, cross-checking the pool
// snapshot against a replay of the allocation history (SPEC_FULL.md's
// supplemented Replay-on-Load, logging rather than failing on mismatch).
func (jt *JobTracker) Load(cp Checkpoint) {
	jt.jobMu.Lock()
	jt.desc = cp.Descriptor
	jt.state = cp.State
	jt.errorMsg = cp.ErrorMsg
	jt.startTime = cp.StartTime
	jt.finishTime = cp.FinishTime
	jt.ignoredMapFailures = cp.IgnoredMapFailures
	jt.ignoredReduceFailures = cp.IgnoredReduceFailures
	jt.mapKilled = cp.MapKilled
	jt.reduceKilled = cp.ReduceKilled
	jt.mapFailed = cp.MapFailed
	jt.reduceFailed = cp.ReduceFailed
	jt.mapMonitoring = cp.MapMonitoring
	jt.reduceMonitoring = cp.ReduceMonitoring
	jt.ignoreFailureMappers = toSet(cp.IgnoreFailureMappers)
	jt.ignoreFailureReducers = toSet(cp.IgnoreFailureReducers)
	jt.computeEndGameThresholds()
	jt.jobMu.Unlock()

	jt.mapPool = pool.NewMapPool(nil, cp.Descriptor.AllowDuplicates)
	jt.mapPool.Load(cp.MapItems)
	if cp.Descriptor.Type != core.JobTypeMapOnly {
		jt.reducePool = pool.NewReducePool(0, cp.Descriptor.AllowDuplicates)
		jt.reducePool.Load(cp.ReduceItems)
	}
	jt.counters.Load(cp.Counters)
	jt.ledger.LoadHistory(cp.History)
	jt.replayHistory(cp.History)

	if jt.mapMonitoring || jt.reduceMonitoring {
		jt.monitor.Start(jt.mapMonitoring)
	}
}

// replayHistory cross-checks the loaded pool snapshot against the
// allocation history, logging any disagreement it finds.
func (jt *JobTracker) replayHistory(history []core.AllocateItem) {
	for _, item := range history {
		if item.State != core.TaskCompleted {
			continue
		}
		done := jt.poolDone(item.IsMap, item.ResourceNo)
		if !done {
			jt.logger.Warn("replay mismatch: history shows a completed attempt the pool disagrees with",
				"job", jt.id, "no", item.ResourceNo, "is_map", item.IsMap)
		}
	}
}

func toSet(ids []int) map[int]struct{} {
	s := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func hostOf(endpoint string) string {
	if i := strings.IndexByte(endpoint, ':'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

func medianDuration(periods []time.Duration) time.Duration {
	sorted := append([]time.Duration(nil), periods...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
