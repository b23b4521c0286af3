// Package jobtracker implements the coordinator of spec §4.3: the
// per-job state machine that owns two TaskPools, an AllocationLedger, a
// StragglerMonitor and a CounterAggregator, and drives one job from
// submission to a terminal JobState.
package jobtracker

import (
	"context"
	"time"

	"github.com/orbitmr/shuttle/internal/tracker/core"
)

// Deployer launches and tears down the workers of one phase (map or
// reduce) under the external cluster resource provider. Out of scope per
// spec §1; the tracker only consumes this interface.
type Deployer interface {
	Start(ctx context.Context, phase Phase) core.Status
	Update(ctx context.Context, priority string, capacity int) core.Status
	Stop(ctx context.Context)
}

// Phase distinguishes which half of the job a Deployer is launching.
type Phase string

const (
	PhaseMap    Phase = "MAP"
	PhaseReduce Phase = "REDUCE"
)

// Checkpoint is the durable snapshot Store persists for one job, matching
// spec §6's Store.SaveJob signature and §8 invariant 7's Load(Dump(J))≡J.
type Checkpoint struct {
	Descriptor  core.JobDescriptor
	State       core.JobState
	ErrorMsg    string
	StartTime   time.Time
	FinishTime  time.Time

	MapItems    []core.ResourceItem
	ReduceItems []core.IdItem
	History     []core.AllocateItem

	Counters map[string]int64

	IgnoreFailureMappers []int
	IgnoreFailureReducers []int
	IgnoredMapFailures    int
	IgnoredReduceFailures int
	MapKilled             int
	ReduceKilled          int
	MapFailed             int
	ReduceFailed          int
	MapMonitoring         bool
	ReduceMonitoring      bool
}

// Store is the persistent metadata backend used for checkpoints. Out of
// scope per spec §1; specified only by the interface the core consumes.
type Store interface {
	SaveJob(jobID string, cp Checkpoint) error
	LoadJob(jobID string) (Checkpoint, error)
}

// DFS is the distributed filesystem client used for output pre-checks and
// synthetic sort files. Out of scope per spec §1.
type DFS interface {
	Exist(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
	OpenWrite(ctx context.Context, path string) (WriteCloser, error)
}

// WriteCloser is a DFS-backed sink for the synthetic empty sort file of
// spec §4.3 FinishMap step 3.
type WriteCloser interface {
	Write(p []byte) (int, error)
	Close() error
}

// QueryResult is a MinionStub.Query reply.
type QueryResult struct {
	OK        bool
	JobID     string
	TaskNo    int
	Attempt   int
	State     core.TaskState
	Log       string
}

// MinionStub is the worker-facing RPC surface the monitor and
// CancelOtherAttempts use to interrogate or cancel a specific attempt. Out
// of scope per spec §1; specified only by the interface the core consumes.
type MinionStub interface {
	Query(ctx context.Context, endpoint string) (QueryResult, error)
	CancelTask(ctx context.Context, endpoint string, jobID string, no, attempt int)
}

// JobHost is the narrow callback spec §9 substitutes for the source's
// back-pointer to the parent host: a JobTracker retracts itself through
// this interface instead of holding a shared pointer to its owner.
type JobHost interface {
	Retract(jobID string, endState core.JobState)
}
