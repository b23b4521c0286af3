package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/orbitmr/shuttle/internal/shared/config"
	"github.com/orbitmr/shuttle/internal/shared/logging"
	"github.com/orbitmr/shuttle/internal/tracker/core"
	"github.com/orbitmr/shuttle/internal/tracker/deploy"
	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
	"github.com/orbitmr/shuttle/internal/tracker/partition"
)

// Host owns every live JobTracker, implementing jobtracker.JobHost (a job
// retracts itself when it reaches a terminal state) and the rest package's
// Registry/Submitter interfaces the REST front door drives. Grounded on
// spec §9's design note substituting a plain callback for the original's
// shared-pointer-to-owner cycle.
type Host struct {
	mu   sync.RWMutex
	jobs map[string]*jobtracker.JobTracker

	cfg    *config.TrackerConfig
	store  jobtracker.Store
	dfsCli jobtracker.DFS
	minion jobtracker.MinionStub
	logger logging.Logger
}

func NewHost(cfg *config.TrackerConfig, store jobtracker.Store, dfsCli jobtracker.DFS, minion jobtracker.MinionStub, logger logging.Logger) *Host {
	return &Host{
		jobs:   make(map[string]*jobtracker.JobTracker),
		cfg:    cfg,
		store:  store,
		dfsCli: dfsCli,
		minion: minion,
		logger: logger,
	}
}

// Get implements rest.Registry.
func (h *Host) Get(jobID string) (*jobtracker.JobTracker, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	jt, ok := h.jobs[jobID]
	return jt, ok
}

// Retract implements jobtracker.JobHost: a job removes itself from the
// live set once it reaches a terminal JobState, after persisting a final
// checkpoint.
func (h *Host) Retract(jobID string, endState core.JobState) {
	h.mu.Lock()
	jt, ok := h.jobs[jobID]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := h.store.SaveJob(jobID, jt.Dump()); err != nil {
		h.logger.Error("final checkpoint failed", "job", jobID, "err", err)
	}
	h.logger.Info("job retracted", "job", jobID, "state", endState)

	h.mu.Lock()
	delete(h.jobs, jobID)
	h.mu.Unlock()
}

// Submit implements rest.Submitter: it fills in tunable defaults from
// config, builds a fresh JobTracker with a per-job Deployer pair, and
// starts it.
func (h *Host) Submit(ctx context.Context, desc core.JobDescriptor) (*jobtracker.JobTracker, error) {
	desc = applyDefaults(desc, h.cfg.Job)
	desc.ID = jobtracker.GenerateJobID()

	var partitioner partition.Partitioner
	if desc.NLine > 0 {
		partitioner = partition.NLine{N: desc.NLine}
	} else {
		partitioner = partition.ByteRange{SplitSize: desc.SplitSize}
	}

	mapDeployer := deploy.NewPoolDeployer(desc.ID, desc.MapCapacity, echoMinionFactory, h.logger)
	var reduceDeployer jobtracker.Deployer = deploy.NoopDeployer{}
	if desc.Type != core.JobTypeMapOnly {
		reduceDeployer = deploy.NewPoolDeployer(desc.ID, desc.ReduceCapacity, echoMinionFactory, h.logger)
	}

	jt := jobtracker.New(desc.ID, desc, jobtracker.Deps{
		Store:          h.store,
		DFS:            h.dfsCli,
		Minion:         h.minion,
		Host:           h,
		Logger:         h.logger,
		Partitioner:    partitioner,
		MapDeployer:    mapDeployer,
		ReduceDeployer: reduceDeployer,
	})

	h.mu.Lock()
	h.jobs[desc.ID] = jt
	h.mu.Unlock()

	if status := jt.Start(ctx); status != core.Ok {
		h.mu.Lock()
		delete(h.jobs, desc.ID)
		h.mu.Unlock()
		return nil, fmt.Errorf("start job %s: %s", desc.ID, status)
	}
	return jt, nil
}

func applyDefaults(desc core.JobDescriptor, t config.JobTunables) core.JobDescriptor {
	if desc.MapRetry == 0 {
		desc.MapRetry = t.MapRetry
	}
	if desc.ReduceRetry == 0 {
		desc.ReduceRetry = t.ReduceRetry
	}
	if desc.ParallelAttempts == 0 {
		desc.ParallelAttempts = t.ParallelAttempts
	}
	if desc.ReplicaBegin == 0 {
		desc.ReplicaBegin = t.ReplicaBegin
	}
	if desc.ReplicaBeginPercent == 0 {
		desc.ReplicaBeginPercent = t.ReplicaBeginPercent
	}
	if desc.ReplicaNum == 0 {
		desc.ReplicaNum = t.ReplicaNum
	}
	if desc.LeftPercent == 0 {
		desc.LeftPercent = t.LeftPercent
	}
	if desc.FirstSleepTime == 0 {
		desc.FirstSleepTime = t.FirstSleepTime
	}
	if desc.TimeTolerance == 0 {
		desc.TimeTolerance = t.TimeTolerance
	}
	if desc.MaxCountersPerJob == 0 {
		desc.MaxCountersPerJob = t.MaxCountersPerJob
	}
	if desc.SplitSize == 0 {
		desc.SplitSize = t.InputBlockSize
	}
	if desc.IgnoreMapFailures == 0 {
		desc.IgnoreMapFailures = t.IgnoreMapFailures
	}
	if desc.IgnoreReduceFailures == 0 {
		desc.IgnoreReduceFailures = t.IgnoreReduceFailures
	}
	if desc.MapCapacity == 0 {
		desc.MapCapacity = 4
	}
	if desc.ReduceCapacity == 0 {
		desc.ReduceCapacity = 4
	}
	return desc
}

// echoMinionFactory builds a placeholder Minion that just blocks until
// its phase is stopped, standing in for a real worker process launched
// under a cluster resource provider until one is wired in.
func echoMinionFactory(jobID string, phase jobtracker.Phase, endpoint string) deploy.Minion {
	return &echoMinion{}
}

type echoMinion struct{}

func (echoMinion) Run(ctx context.Context) { <-ctx.Done() }
func (echoMinion) Stop()                   {}
