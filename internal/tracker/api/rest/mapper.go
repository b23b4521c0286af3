package rest

import (
	"github.com/orbitmr/shuttle/internal/tracker/core"
	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
)

func toGetJobResponse(snap jobtracker.Snapshot) GetJobResponse {
	return GetJobResponse{
		JobID:  snap.JobID,
		Status: string(snap.State),
		Error:  snap.ErrorMsg,
		Progress: ProgressInfo{
			Map:    TaskProgress{Total: snap.MapTotal, Done: snap.MapDone},
			Reduce: TaskProgress{Total: snap.ReduceTotal, Done: snap.ReduceDone},
		},
		Counters: snap.Counters,
	}
}

func toTasksResponse(history []core.AllocateItem) GetTasksResponse {
	tasks := make([]TaskInfo, 0, len(history))
	for _, h := range history {
		typ := "REDUCE"
		if h.IsMap {
			typ = "MAP"
		}
		info := TaskInfo{
			No:        h.ResourceNo,
			Type:      typ,
			Endpoint:  h.Endpoint,
			Attempt:   h.Attempt,
			State:     string(h.State),
			AllocTime: h.AllocTime,
			TraceID:   h.TraceID,
		}
		if h.Period > 0 {
			info.Period = h.Period.String()
		}
		tasks = append(tasks, info)
	}
	return GetTasksResponse{Tasks: tasks}
}
