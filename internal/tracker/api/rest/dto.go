// Package rest implements the progress/counter reporting HTTP front door
// of spec §6, grounded on the teacher's internal/coordinator/api/rest
// package: the same DTO/mapper/middleware/server split, adapted to
// job-tracker query/control semantics. Job submission (POST /jobs) is
// handed to a Submitter; the remaining routes act on an already-started
// job's state machine.
package rest

import "time"

// GetJobResponse mirrors the teacher's response of the same name, trimmed
// to the fields a JobTracker.Snapshot() can actually answer.
type GetJobResponse struct {
	JobID    string       `json:"job_id"`
	Status   string       `json:"status"`
	Error    string       `json:"error,omitempty"`
	Progress ProgressInfo `json:"progress"`
	Counters map[string]int64 `json:"counters,omitempty"`
}

type ProgressInfo struct {
	Map    TaskProgress `json:"map"`
	Reduce TaskProgress `json:"reduce"`
}

type TaskProgress struct {
	Total int `json:"total"`
	Done  int `json:"done"`
}

type TaskInfo struct {
	No        int       `json:"no"`
	Type      string    `json:"type"` // "MAP" or "REDUCE"
	Endpoint  string    `json:"endpoint"`
	Attempt   int       `json:"attempt"`
	State     string    `json:"state"`
	AllocTime time.Time `json:"alloc_time"`
	Period    string    `json:"period,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
}

type GetTasksResponse struct {
	Tasks []TaskInfo `json:"tasks"`
}

// SubmitJobRequest carries the JobDescriptor fields a caller may set;
// tunables left zero are filled from JobTunables defaults by the Host.
type SubmitJobRequest struct {
	Type           string   `json:"type"` // "MAP_ONLY" or "MAP_REDUCE"
	InputPaths     []string `json:"input_paths"`
	OutputPath     string   `json:"output_path"`
	SplitSize      int64    `json:"split_size,omitempty"`
	NLine          int      `json:"n_line,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	MapCapacity    int      `json:"map_capacity,omitempty"`
	ReduceCapacity int      `json:"reduce_capacity,omitempty"`
	ReduceTotal    int      `json:"reduce_total,omitempty"`
	AllowDuplicates bool    `json:"allow_duplicates,omitempty"`
}

type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type UpdateJobRequest struct {
	Priority       string `json:"priority"`
	MapCapacity    int    `json:"map_capacity"`
	ReduceCapacity int    `json:"reduce_capacity"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
