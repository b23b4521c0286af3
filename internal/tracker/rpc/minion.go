package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/orbitmr/shuttle/internal/shared/logging"
	"github.com/orbitmr/shuttle/internal/tracker/core"
	"github.com/orbitmr/shuttle/internal/tracker/jobtracker"
)

// Wire messages for the minion-facing RPC surface of spec §6's
// MinionStub. Named and shaped the way the teacher's generated
// proto.RegisterWorkerRequest/Response pairs are, one request/response
// struct per RPC. Field-less messages reuse protobuf's well-known Empty
// type rather than a bespoke struct, the one place this package pulls in
// google.golang.org/protobuf directly instead of only through grpc-go's
// transitive use of it.
type QueryRequest = emptypb.Empty

type QueryResponse struct {
	OK      bool
	JobID   string
	TaskNo  int32
	Attempt int32
	State   string
	Log     string
}

type CancelTaskRequest struct {
	JobID   string
	TaskNo  int32
	Attempt int32
}

type CancelTaskResponse = emptypb.Empty

// MinionServiceServer is implemented by whatever runs on the minion side;
// out of scope per spec §1, declared here only so ServiceDesc has a
// concrete handler type to bind against.
type MinionServiceServer interface {
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)
	CancelTask(ctx context.Context, req *CancelTaskRequest) (*CancelTaskResponse, error)
}

var minionServiceDesc = grpc.ServiceDesc{
	ServiceName: "shuttle.tracker.MinionService",
	HandlerType: (*MinionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Query",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(QueryRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(MinionServiceServer).Query(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/shuttle.tracker.MinionService/Query"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(MinionServiceServer).Query(ctx, req.(*QueryRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "CancelTask",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(CancelTaskRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(MinionServiceServer).CancelTask(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/shuttle.tracker.MinionService/CancelTask"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(MinionServiceServer).CancelTask(ctx, req.(*CancelTaskRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tracker/minion.proto",
}

// RegisterMinionServiceServer mirrors the teacher's generated
// proto.RegisterCoordinatorServiceServer, wiring a MinionServiceServer
// implementation onto a *grpc.Server.
func RegisterMinionServiceServer(s *grpc.Server, srv MinionServiceServer) {
	s.RegisterService(&minionServiceDesc, srv)
}

// MinionClient implements jobtracker.MinionStub over gRPC. Every Query or
// CancelTask call dials a fresh connection to the endpoint and closes it
// when the call returns; connections are not pooled or reused.
type MinionClient struct {
	dialTimeout time.Duration
	logger      logging.Logger
}

func NewMinionClient(dialTimeout time.Duration, logger logging.Logger) *MinionClient {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &MinionClient{dialTimeout: dialTimeout, logger: logger}
}

func (c *MinionClient) dial(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, err
	}
	conn.Connect()
	return conn, nil
}

func (c *MinionClient) Query(ctx context.Context, endpoint string) (jobtracker.QueryResult, error) {
	conn, err := c.dial(ctx, endpoint)
	if err != nil {
		return jobtracker.QueryResult{}, fmt.Errorf("rpc: dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	resp := new(QueryResponse)
	if err := conn.Invoke(ctx, "/shuttle.tracker.MinionService/Query", new(QueryRequest), resp); err != nil {
		return jobtracker.QueryResult{}, fmt.Errorf("rpc: query %s: %w", endpoint, err)
	}
	return jobtracker.QueryResult{
		OK:      resp.OK,
		JobID:   resp.JobID,
		TaskNo:  int(resp.TaskNo),
		Attempt: int(resp.Attempt),
		State:   core.TaskState(resp.State),
		Log:     resp.Log,
	}, nil
}

// CancelTask is fire-and-forget per spec §5: the tracker never waits on
// its result, so failures are logged, not returned.
func (c *MinionClient) CancelTask(ctx context.Context, endpoint string, jobID string, no, attempt int) {
	conn, err := c.dial(ctx, endpoint)
	if err != nil {
		c.logger.Warn("cancel dial failed", "endpoint", endpoint, "error", err)
		return
	}
	defer conn.Close()

	req := &CancelTaskRequest{JobID: jobID, TaskNo: int32(no), Attempt: int32(attempt)}
	if err := conn.Invoke(ctx, "/shuttle.tracker.MinionService/CancelTask", req, new(CancelTaskResponse)); err != nil {
		c.logger.Warn("cancel rpc failed", "endpoint", endpoint, "job", jobID, "no", no, "attempt", attempt, "error", err)
	}
}
