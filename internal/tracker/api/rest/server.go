package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/orbitmr/shuttle/internal/shared/logging"
	"github.com/orbitmr/shuttle/internal/tracker/core"
	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
)

// Registry looks up the live JobTracker for an id, implemented by
// cmd/tracker's Host.
type Registry interface {
	Get(jobID string) (*jobtracker.JobTracker, bool)
}

// Submitter accepts a new job descriptor and starts it, implemented by
// cmd/tracker's Host.
type Submitter interface {
	Submit(ctx context.Context, desc core.JobDescriptor) (*jobtracker.JobTracker, error)
}

type API struct {
	registry  Registry
	submitter Submitter
}

func NewAPI(registry Registry, submitter Submitter) *API {
	return &API{registry: registry, submitter: submitter}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /jobs", a.submitJob)
	mux.HandleFunc("GET /jobs/{id}", a.getJob)
	mux.HandleFunc("GET /jobs/{id}/tasks", a.getJobTasks)
	mux.HandleFunc("POST /jobs/{id}/kill", a.killJob)
	mux.HandleFunc("PATCH /jobs/{id}", a.updateJob)
}

func (a *API) lookup(w http.ResponseWriter, r *http.Request) (*jobtracker.JobTracker, bool) {
	id := r.PathValue("id")
	jt, ok := a.registry.Get(id)
	if !ok {
		a.respondError(w, http.StatusNotFound, "job not found", id)
		return nil, false
	}
	return jt, true
}

func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	desc := core.JobDescriptor{
		Type:            core.JobType(req.Type),
		InputPaths:      req.InputPaths,
		OutputPath:      req.OutputPath,
		SplitSize:       req.SplitSize,
		NLine:           req.NLine,
		Priority:        req.Priority,
		MapCapacity:     req.MapCapacity,
		ReduceCapacity:  req.ReduceCapacity,
		ReduceTotal:     req.ReduceTotal,
		AllowDuplicates: req.AllowDuplicates,
	}
	jt, err := a.submitter.Submit(r.Context(), desc)
	if err != nil {
		a.respondError(w, http.StatusBadGateway, "submit failed", err.Error())
		return
	}
	snap := jt.Snapshot()
	a.respondJSON(w, http.StatusCreated, SubmitJobResponse{JobID: snap.JobID, Status: string(snap.State)})
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jt, ok := a.lookup(w, r)
	if !ok {
		return
	}
	a.respondJSON(w, http.StatusOK, toGetJobResponse(jt.Snapshot()))
}

func (a *API) getJobTasks(w http.ResponseWriter, r *http.Request) {
	jt, ok := a.lookup(w, r)
	if !ok {
		return
	}
	a.respondJSON(w, http.StatusOK, toTasksResponse(jt.Dump().History))
}

func (a *API) killJob(w http.ResponseWriter, r *http.Request) {
	jt, ok := a.lookup(w, r)
	if !ok {
		return
	}
	jt.Kill(r.Context(), core.JobKilled)
	a.respondJSON(w, http.StatusOK, StatusResponse{Status: string(core.JobKilled)})
}

func (a *API) updateJob(w http.ResponseWriter, r *http.Request) {
	jt, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var req UpdateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	status := jt.Update(r.Context(), req.Priority, req.MapCapacity, req.ReduceCapacity)
	if status != core.Ok {
		a.respondError(w, http.StatusBadGateway, "update failed", string(status))
		return
	}
	a.respondJSON(w, http.StatusOK, StatusResponse{Status: string(status)})
}

func (a *API) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (a *API) respondError(w http.ResponseWriter, statusCode int, errMsg, message string) {
	a.respondJSON(w, statusCode, ErrorResponse{Error: errMsg, Message: message, Code: statusCode})
}

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second
)

func NewServer(addr string, registry Registry, submitter Submitter, logger logging.Logger) *http.Server {
	api := NewAPI(registry, submitter)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := ChainMiddleware(mux,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}
