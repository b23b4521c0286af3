// Package ledger implements the AllocationLedger of spec §4.2: the
// append-only table of every attempt ever created for a job, indexed by
// (isMap, no, attempt), a time-ordered heap for straggler scanning, and
// the per-phase slug FIFOs of ids pending re-handout.
//
// Ledger is the entire "alloc lock" domain of spec §5: table, indices,
// heap, slug FIFOs and the per-task failure bookkeeping share one mutex,
// grounded on the way the teacher's heapTaskPriorityQueue keeps its heap,
// sequence counter and index all behind a single sync.RWMutex.
package ledger

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/orbitmr/shuttle/internal/tracker/core"
)

// Entry is a ledger-owned handle to one AllocateItem. Callers never see the
// underlying pointer identity; they pass Entry by value copy for reads and
// use the ID for writes (SetTerminal, Restore).
type Entry struct {
	ID   int64
	Item core.AllocateItem
}

type heapEntry struct {
	id        int64
	allocTime time.Time
	index     int
}

type timeHeap []*heapEntry

func (h timeHeap) Len() int            { return len(h) }
func (h timeHeap) Less(i, j int) bool  { return h[i].allocTime.Before(h[j].allocTime) }
func (h timeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timeHeap) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Ledger is the whole alloc-lock domain for one job.
type Ledger struct {
	mu sync.Mutex

	nextID  int64
	records map[int64]*core.AllocateItem
	byPhase map[bool]map[int]map[int]int64 // isMap -> no -> attempt -> id
	heap    timeHeap

	mapSlug    []int
	reduceSlug []int

	failedCount map[int]int
	failedNodes map[int]map[string]struct{} // per-map failedNodes
	failedCountR map[int]int
	failedNodesR map[int]map[string]struct{} // per-reduce failedNodes
}

// New builds an empty ledger.
func New() *Ledger {
	return &Ledger{
		records:      make(map[int64]*core.AllocateItem),
		byPhase:      map[bool]map[int]map[int]int64{true: {}, false: {}},
		failedCount:  make(map[int]int),
		failedNodes:  make(map[int]map[string]struct{}),
		failedCountR: make(map[int]int),
		failedNodesR: make(map[int]map[string]struct{}),
	}
}

// Append inserts exactly one new AllocateItem, indexes it and pushes it
// into the time heap, satisfying spec §8 invariant 1 (at most one entry
// per (no, attempt)).
func (l *Ledger) Append(item core.AllocateItem) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	cp := item
	l.records[id] = &cp
	l.indexAttempt(item.IsMap, item.ResourceNo, item.Attempt, id)
	heap.Push(&l.heap, &heapEntry{id: id, allocTime: item.AllocTime})
	return Entry{ID: id, Item: cp}
}

func (l *Ledger) indexAttempt(isMap bool, no, attempt int, id int64) {
	byNo, ok := l.byPhase[isMap][no]
	if !ok {
		byNo = make(map[int]int64)
		l.byPhase[isMap][no] = byNo
	}
	byNo[attempt] = id
}

// Lookup finds the current record for (isMap, no, attempt).
func (l *Ledger) Lookup(isMap bool, no, attempt int) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byNo, ok := l.byPhase[isMap][no]
	if !ok {
		return Entry{}, false
	}
	id, ok := byNo[attempt]
	if !ok {
		return Entry{}, false
	}
	rec, ok := l.records[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{ID: id, Item: *rec}, true
}

// EntriesForResource returns every attempt ever created for no in the
// given phase, in attempt order, used by CancelOtherAttempts.
func (l *Ledger) EntriesForResource(isMap bool, no int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	byNo := l.byPhase[isMap][no]
	out := make([]Entry, 0, len(byNo))
	for _, id := range byNo {
		if rec, ok := l.records[id]; ok {
			out = append(out, Entry{ID: id, Item: *rec})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.Attempt < out[j].Item.Attempt })
	return out
}

// SetTerminal commits a terminal state and elapsed period for an entry.
// Per spec §3, a terminal AllocateItem may only move to Canceled
// afterwards; SetTerminal does not itself enforce that (callers decide the
// transition), it only persists whatever the caller computed.
func (l *Ledger) SetTerminal(id int64, state core.TaskState, period time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return
	}
	rec.State = state
	rec.Period = period
}

// Get returns the current record by id.
func (l *Ledger) Get(id int64) (core.AllocateItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return core.AllocateItem{}, false
	}
	return *rec, true
}

// CompletedPeriods returns the elapsed Period of every Completed attempt in
// the given phase, used by the straggler monitor's timeout estimate.
func (l *Ledger) CompletedPeriods(isMap bool) []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []time.Duration
	for _, rec := range l.records {
		if rec.IsMap == isMap && rec.State == core.TaskCompleted {
			out = append(out, rec.Period)
		}
	}
	return out
}

// PopOldest removes and returns the entry with the smallest AllocTime, if
// any remain. The caller is responsible for calling Restore if the entry
// should remain scannable on a future pass.
func (l *Ledger) PopOldest() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.heap.Len() == 0 {
		return Entry{}, false
	}
	he := heap.Pop(&l.heap).(*heapEntry)
	rec, ok := l.records[he.id]
	if !ok {
		return Entry{}, false
	}
	return Entry{ID: he.id, Item: *rec}, true
}

// Restore re-pushes an entry that PopOldest removed but the monitor
// decided not to act on.
func (l *Ledger) Restore(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[e.ID]; !ok {
		return
	}
	rec := l.records[e.ID]
	heap.Push(&l.heap, &heapEntry{id: e.ID, allocTime: rec.AllocTime})
}

// Len reports the number of entries currently sitting in the time heap.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.heap.Len()
}

// PurgeMapEntries drops every map-phase entry from the time heap, keeping
// only reduce entries. Used on map-phase completion per spec §4.3.
func (l *Ledger) PurgeMapEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := make(timeHeap, 0, len(l.heap))
	for _, he := range l.heap {
		rec, ok := l.records[he.id]
		if ok && !rec.IsMap {
			kept = append(kept, he)
		}
	}
	l.heap = kept
	heap.Init(&l.heap)
}

// PushMapSlug / PopMapSlug and their reduce counterparts implement the
// per-phase FIFOs of ids the coordinator has decided to re-hand-out.
func (l *Ledger) PushMapSlug(no int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mapSlug = append(l.mapSlug, no)
}

func (l *Ledger) PopMapSlug() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.mapSlug) == 0 {
		return 0, false
	}
	no := l.mapSlug[0]
	l.mapSlug = l.mapSlug[1:]
	return no, true
}

func (l *Ledger) MapSlugSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.mapSlug)
}

func (l *Ledger) PushReduceSlug(no int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reduceSlug = append(l.reduceSlug, no)
}

func (l *Ledger) PopReduceSlug() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.reduceSlug) == 0 {
		return 0, false
	}
	no := l.reduceSlug[0]
	l.reduceSlug = l.reduceSlug[1:]
	return no, true
}

func (l *Ledger) ReduceSlugSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reduceSlug)
}

func (l *Ledger) SlugSize(isMap bool) int {
	if isMap {
		return l.MapSlugSize()
	}
	return l.ReduceSlugSize()
}

func (l *Ledger) PushSlug(isMap bool, no int) {
	if isMap {
		l.PushMapSlug(no)
	} else {
		l.PushReduceSlug(no)
	}
}

func (l *Ledger) PopSlug(isMap bool) (int, bool) {
	if isMap {
		return l.PopMapSlug()
	}
	return l.PopReduceSlug()
}

// RecordFailure registers a failure on no from host. A failure from a host
// already recorded for this no does not increment failedCount, per spec
// §3. Returns the failure count after this call.
func (l *Ledger) RecordFailure(isMap bool, no int, host string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	nodes, counts := l.failedNodes, l.failedCount
	if !isMap {
		nodes, counts = l.failedNodesR, l.failedCountR
	}
	set, ok := nodes[no]
	if !ok {
		set = make(map[string]struct{})
		nodes[no] = set
	}
	if _, seen := set[host]; !seen {
		set[host] = struct{}{}
		counts[no]++
	}
	return counts[no]
}

// FailedCount returns the number of distinct failing hosts recorded so far
// for no.
func (l *Ledger) FailedCount(isMap bool, no int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if isMap {
		return l.failedCount[no]
	}
	return l.failedCountR[no]
}

// ResetReduceFailures clears reduce failure bookkeeping, used when the map
// phase completes and reduce failure tracking starts fresh.
func (l *Ledger) ResetReduceFailures() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failedCountR = make(map[int]int)
	l.failedNodesR = make(map[int]map[string]struct{})
}

// IndexSize returns the number of distinct ids ever indexed for the given
// phase (the outer map of byPhase), mirroring the original's
// map_index_.size()/reduce_index_.size() used by the straggler monitor's
// requeue-anyway guard in spec §4.4 step 3. Not to be confused with the
// number of attempts made for any one id.
func (l *Ledger) IndexSize(isMap bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byPhase[isMap])
}

// KillRunning marks every currently Running record as Killed with its
// period measured against now, returning copies of the changed records so
// the caller can update per-phase killed counters and return pool items.
// Used by JobTracker.Kill per spec §4.3.
func (l *Ledger) KillRunning(now time.Time) []core.AllocateItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.AllocateItem
	for _, rec := range l.records {
		if rec.State == core.TaskRunning {
			rec.State = core.TaskKilled
			rec.Period = now.Sub(rec.AllocTime)
			out = append(out, *rec)
		}
	}
	return out
}

// Snapshot returns a stable copy of every AllocateItem ever created, in
// insertion order, for checkpointing (Dump) and Load's replay.
func (l *Ledger) Snapshot() []core.AllocateItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.AllocateItem, 0, len(l.records))
	for id := int64(0); id < l.nextID; id++ {
		if rec, ok := l.records[id]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// LoadHistory rebuilds the ledger from a checkpointed history, restoring
// indices and re-seeding the time heap with every non-terminal attempt.
func (l *Ledger) LoadHistory(history []core.AllocateItem) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID = 0
	l.records = make(map[int64]*core.AllocateItem)
	l.byPhase = map[bool]map[int]map[int]int64{true: {}, false: {}}
	l.heap = nil

	for _, item := range history {
		id := l.nextID
		l.nextID++
		cp := item
		l.records[id] = &cp
		l.indexAttempt(item.IsMap, item.ResourceNo, item.Attempt, id)
		if item.State == core.TaskRunning {
			heap.Push(&l.heap, &heapEntry{id: id, allocTime: item.AllocTime})
		}
	}
}
