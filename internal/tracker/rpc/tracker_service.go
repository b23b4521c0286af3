package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/orbitmr/shuttle/internal/tracker/core"
	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
)

// Wire messages for the coordinator-facing front door: the surface a
// worker (minion) uses to pull work and report completion, mirroring
// the shape of spec §4.3's AssignMap/AssignReduce/FinishMap/FinishReduce.
type AssignRequest struct {
	JobID    string
	Endpoint string
}

type AssignMapResponse struct {
	Status core.Status
	No     int32
	Path   string
	Offset int64
	Length int64
}

type AssignReduceResponse struct {
	Status core.Status
	No     int32
}

type FinishRequest struct {
	JobID    string
	No       int32
	Attempt  int32
	State    string
	ErrorMsg string
	Counters map[string]int64
}

type FinishResponse struct {
	Status core.Status
}

// JobLookup resolves a job id to its live JobTracker, implemented by
// cmd/tracker's Host.
type JobLookup interface {
	Get(jobID string) (*jobtracker.JobTracker, bool)
}

// TrackerServiceServer is implemented by the coordinator front door
// wrapping a JobLookup.
type TrackerServiceServer interface {
	AssignMap(ctx context.Context, req *AssignRequest) (*AssignMapResponse, error)
	AssignReduce(ctx context.Context, req *AssignRequest) (*AssignReduceResponse, error)
	FinishMap(ctx context.Context, req *FinishRequest) (*FinishResponse, error)
	FinishReduce(ctx context.Context, req *FinishRequest) (*FinishResponse, error)
}

// TrackerService implements TrackerServiceServer by delegating each RPC
// straight to the named job's JobTracker methods.
type TrackerService struct {
	Jobs JobLookup
}

func (s *TrackerService) AssignMap(ctx context.Context, req *AssignRequest) (*AssignMapResponse, error) {
	jt, ok := s.Jobs.Get(req.JobID)
	if !ok {
		return &AssignMapResponse{Status: core.NoSuchJob}, nil
	}
	item, status := jt.AssignMap(ctx, req.Endpoint)
	return &AssignMapResponse{
		Status: status,
		No:     int32(item.No),
		Path:   item.InputPath,
		Offset: item.Offset,
		Length: item.Length,
	}, nil
}

func (s *TrackerService) AssignReduce(ctx context.Context, req *AssignRequest) (*AssignReduceResponse, error) {
	jt, ok := s.Jobs.Get(req.JobID)
	if !ok {
		return &AssignReduceResponse{Status: core.NoSuchJob}, nil
	}
	item, status := jt.AssignReduce(ctx, req.Endpoint)
	return &AssignReduceResponse{Status: status, No: int32(item.No)}, nil
}

func (s *TrackerService) FinishMap(ctx context.Context, req *FinishRequest) (*FinishResponse, error) {
	jt, ok := s.Jobs.Get(req.JobID)
	if !ok {
		return &FinishResponse{Status: core.NoSuchJob}, nil
	}
	status := jt.FinishMap(ctx, int(req.No), int(req.Attempt), core.TaskState(req.State), req.ErrorMsg, req.Counters)
	return &FinishResponse{Status: status}, nil
}

func (s *TrackerService) FinishReduce(ctx context.Context, req *FinishRequest) (*FinishResponse, error) {
	jt, ok := s.Jobs.Get(req.JobID)
	if !ok {
		return &FinishResponse{Status: core.NoSuchJob}, nil
	}
	status := jt.FinishReduce(ctx, int(req.No), int(req.Attempt), core.TaskState(req.State), req.ErrorMsg, req.Counters)
	return &FinishResponse{Status: status}, nil
}

var trackerServiceDesc = grpc.ServiceDesc{
	ServiceName: "shuttle.tracker.TrackerService",
	HandlerType: (*TrackerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AssignMap",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(AssignRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(TrackerServiceServer).AssignMap(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/shuttle.tracker.TrackerService/AssignMap"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(TrackerServiceServer).AssignMap(ctx, req.(*AssignRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "AssignReduce",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(AssignRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(TrackerServiceServer).AssignReduce(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/shuttle.tracker.TrackerService/AssignReduce"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(TrackerServiceServer).AssignReduce(ctx, req.(*AssignRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "FinishMap",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(FinishRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(TrackerServiceServer).FinishMap(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/shuttle.tracker.TrackerService/FinishMap"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(TrackerServiceServer).FinishMap(ctx, req.(*FinishRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "FinishReduce",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(FinishRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(TrackerServiceServer).FinishReduce(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/shuttle.tracker.TrackerService/FinishReduce"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(TrackerServiceServer).FinishReduce(ctx, req.(*FinishRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tracker/tracker.proto",
}

// RegisterTrackerServiceServer wires a TrackerServiceServer implementation
// onto a *grpc.Server, mirroring proto.RegisterCoordinatorServiceServer.
func RegisterTrackerServiceServer(s *grpc.Server, srv TrackerServiceServer) {
	s.RegisterService(&trackerServiceDesc, srv)
}
