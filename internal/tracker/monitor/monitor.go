// Package monitor implements the single-slot, serial delayed-task
// executor of spec §4.4/§9: at any time at most one pass is scheduled for
// a job, and switching the monitored phase drains any pending pass before
// rescheduling for the new one, avoiding the source's race where a stale
// map-monitor pass observes a partially rebuilt heap.
//
// Grounded on the teacher's WorkerHealthChecker: a ticking background loop
// that calls back into injected services rather than reaching into
// coordinator internals directly.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/orbitmr/shuttle/internal/shared/logging"
)

// Callbacks is implemented by the JobTracker. RunPass executes one
// straggler-detection pass for the given phase and reports how long to
// wait before the next pass, and whether monitoring should continue.
type Callbacks interface {
	RunPass(ctx context.Context, isMap bool) (sleep time.Duration, again bool)
}

// Monitor is a per-job, single-slot periodic task.
type Monitor struct {
	mu      sync.Mutex
	timer   *time.Timer
	running bool
	gen     uint64 // incremented on every Start/Stop, invalidates in-flight fires
	isMap   bool

	cb     Callbacks
	logger logging.Logger
}

// New builds a Monitor bound to cb.
func New(cb Callbacks, logger logging.Logger) *Monitor {
	return &Monitor{cb: cb, logger: logger}
}

// Start begins monitoring the given phase. If a pass is already scheduled
// for another phase, it is drained (its timer stopped) before the new
// phase's first pass is scheduled immediately.
func (m *Monitor) Start(isMap bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running && m.isMap == isMap {
		return
	}
	m.drainLocked()
	m.isMap = isMap
	m.running = true
	m.scheduleLocked(0)
}

// Stop cancels monitoring; no further passes fire until Start is called
// again.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainLocked()
}

// Running reports whether a phase is currently being monitored.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) drainLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.running = false
	m.gen++
}

func (m *Monitor) scheduleLocked(d time.Duration) {
	gen := m.gen
	m.timer = time.AfterFunc(d, func() { m.fire(gen) })
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.gen {
		m.mu.Unlock()
		return
	}
	isMap := m.isMap
	m.mu.Unlock()

	sleep, again := m.cb.RunPass(context.Background(), isMap)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || gen != m.gen {
		// Start or Stop ran while RunPass was in flight; this fire is stale.
		return
	}
	if !again {
		m.running = false
		return
	}
	m.scheduleLocked(sleep)
}
