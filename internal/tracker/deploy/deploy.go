// Package deploy implements the Deployer collaborator of spec §6: the
// thing that launches and tears down a phase's workers under the external
// cluster resource provider. Out of scope for the coordination engine
// itself, but a local/dev "galaxy" emulation is worth having so the
// tracker can be exercised end to end without a real cluster, the way the
// teacher's worker.TaskExecutor has a NewNoopExecutor for tests alongside
// its real gRPC-driven implementation.
package deploy

import (
	"context"
	"strconv"
	"sync"

	"github.com/orbitmr/shuttle/internal/shared/logging"
	"github.com/orbitmr/shuttle/internal/tracker/core"
	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
)

// Minion is one in-process worker launched by PoolDeployer: something
// that can be told to run and to stop.
type Minion interface {
	Run(ctx context.Context)
	Stop()
}

// MinionFactory builds capacity Minions for one phase of one job.
type MinionFactory func(jobID string, phase jobtracker.Phase, endpoint string) Minion

// PoolDeployer launches in-process goroutine "minions" via a bounded
// worker pool, standing in for a cluster-SDK adapter that would otherwise
// launch containers under a real resource provider. The launch loop is
// grounded on the teacher's local.Pool (pkg/local/pool.go): a fixed set of
// goroutines started once via sync.WaitGroup.Go, torn down by cancelling
// a context and waiting. The Deployer interface itself is grounded on
// worker.TaskExecutor, the small seam the coordinator drives without
// knowing how a task actually runs.
type PoolDeployer struct {
	mu       sync.Mutex
	jobID    string
	factory  MinionFactory
	capacity int
	logger   logging.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	minions []Minion
}

// NewPoolDeployer builds a PoolDeployer for jobID, launching capacity
// minions built by factory whenever Start is called.
func NewPoolDeployer(jobID string, capacity int, factory MinionFactory, logger logging.Logger) *PoolDeployer {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &PoolDeployer{jobID: jobID, capacity: capacity, factory: factory, logger: logger}
}

func (d *PoolDeployer) Start(ctx context.Context, phase jobtracker.Phase) core.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.minions = make([]Minion, 0, d.capacity)

	for i := 0; i < d.capacity; i++ {
		endpoint := endpointFor(d.jobID, phase, i)
		m := d.factory(d.jobID, phase, endpoint)
		d.minions = append(d.minions, m)
		d.wg.Go(func() { m.Run(runCtx) })
	}
	d.logger.Info("deployer started phase", "job", d.jobID, "phase", phase, "capacity", d.capacity)
	return core.Ok
}

func (d *PoolDeployer) Update(ctx context.Context, priority string, capacity int) core.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capacity = capacity
	d.logger.Info("deployer capacity updated", "job", d.jobID, "capacity", capacity, "priority", priority)
	return core.Ok
}

func (d *PoolDeployer) Stop(ctx context.Context) {
	d.mu.Lock()
	cancel := d.cancel
	minions := d.minions
	d.minions = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	for _, m := range minions {
		m.Stop()
	}
	cancel()
	d.wg.Wait()
	d.logger.Info("deployer stopped", "job", d.jobID)
}

func endpointFor(jobID string, phase jobtracker.Phase, index int) string {
	return jobID + "-" + string(phase) + "-minion-" + strconv.Itoa(index) + ":0"
}

// NoopDeployer accepts Start/Update/Stop without launching anything, for
// unit tests of the tracker alone.
type NoopDeployer struct{}

func (NoopDeployer) Start(ctx context.Context, phase jobtracker.Phase) core.Status { return core.Ok }
func (NoopDeployer) Update(ctx context.Context, priority string, capacity int) core.Status {
	return core.Ok
}
func (NoopDeployer) Stop(ctx context.Context) {}
