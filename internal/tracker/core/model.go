// Package core holds the data model shared by every subsystem of a single
// job's coordination engine: task pools, the allocation ledger, the
// straggler monitor and the job tracker state machine.
package core

import "time"

// Status is a coordinator-emitted response code. Unlike a Go error, a
// Status is a normal return value understood by callers across the RPC
// boundary (workers polling for work, REST clients checking progress).
type Status string

const (
	Ok            Status = "OK"
	Suspend       Status = "SUSPEND"
	NoMore        Status = "NO_MORE"
	GalaxyError   Status = "GALAXY_ERROR"
	WriteFileFail Status = "WRITE_FILE_FAIL"
	OpenFileFail  Status = "OPEN_FILE_FAIL"
	NoSuchJob     Status = "NO_SUCH_JOB"
	NoSuchTask    Status = "NO_SUCH_TASK"
)

// JobState is the coordinator's top-level lifecycle for one job.
type JobState string

const (
	JobPending   JobState = "PENDING"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
	JobKilled    JobState = "KILLED"
)

// Terminal reports whether no further transitions are legal from s.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobKilled
}

// JobType selects whether a job runs a reduce phase at all.
type JobType string

const (
	JobTypeMapOnly    JobType = "MAP_ONLY"
	JobTypeMapReduce  JobType = "MAP_REDUCE"
)

// TaskState is the terminal or in-flight state of one AllocateItem.
type TaskState string

const (
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskKilled    TaskState = "KILLED"
	TaskCanceled  TaskState = "CANCELED"
)

// Terminal reports whether s ends an attempt's life (Canceled included:
// a canceled attempt never resumes, it is simply not the winner).
func (s TaskState) Terminal() bool {
	return s != TaskRunning
}

// kTaskMoveOutputFailed is the sentinel worker-reported error the
// coordinator re-maps per spec §4.3 FinishMap step 2: a task that failed
// while moving its output is treated as an ordinary Failed if the id is
// not yet Done, or as a harmless Canceled duplicate if it is.
const KTaskMoveOutputFailed = "MOVE_OUTPUT_FAILED"

// ResourceStatus is the per-id status tracked by a TaskPool.
type ResourceStatus string

const (
	ResPending   ResourceStatus = "PENDING"
	ResAllocated ResourceStatus = "ALLOCATED"
	ResDone      ResourceStatus = "DONE"
)

// IdItem is one reduce task id: a bare position in a dense 0..N-1 id space.
type IdItem struct {
	No             int
	Attempt        int
	Status         ResourceStatus
	AllocatedCount int
}

// Clone returns an independent copy, used by Dump/Load snapshotting.
func (it IdItem) Clone() IdItem { return it }

// ResourceItem is one map input split.
type ResourceItem struct {
	IdItem
	InputPath string
	Offset    int64
	Length    int64
}

// Clone returns an independent copy.
func (it ResourceItem) Clone() ResourceItem { return it }

// AllocateItem is a single handout of a task id to a worker. It is
// append-only once created: only its State and Period mutate, and only
// forward per §3's invariant (terminal states may only move to Canceled).
type AllocateItem struct {
	Endpoint   string
	ResourceNo int
	Attempt    int
	IsMap      bool
	State      TaskState
	AllocTime  time.Time
	Period     time.Duration

	// TraceID correlates every log line and RPC touching this attempt,
	// independent of the (no, attempt) key so a re-handout of the same
	// slot is still distinguishable in logs from its predecessor.
	TraceID string
}

// JobDescriptor is the immutable-after-Start configuration of one job,
// except for the fields Update or partitioning may still adjust.
type JobDescriptor struct {
	ID   string
	Type JobType

	InputPaths []string
	OutputPath string
	SplitSize  int64 // ByteRange split size in bytes; 0 selects the default block size
	NLine      int   // NLine split policy line count; 0 disables NLine splitting

	Priority        string
	MapCapacity     int
	ReduceCapacity  int
	MapTotal        int
	ReduceTotal     int

	MapRetry              int
	ReduceRetry           int
	IgnoreMapFailures     int
	IgnoreReduceFailures  int
	ParallelAttempts      int
	AllowDuplicates       bool

	ReplicaBegin        int
	ReplicaBeginPercent int
	ReplicaNum          int
	LeftPercent         int

	FirstSleepTime time.Duration
	TimeTolerance  time.Duration

	MaxCountersPerJob int
}
