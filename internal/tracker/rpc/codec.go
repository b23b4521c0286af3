// Package rpc wires the tracker's MinionStub collaborator onto gRPc
// transport, following the teacher's coordinator/worker gRPC client and
// server shape (internal/coordinator/api/grpc, internal/worker/api/grpc).
// The teacher generates its wire types from a .proto file; that generated
// package isn't part of this exercise's inputs, so instead of fabricating
// stub bindings this package hand-registers a grpc.ServiceDesc over a
// JSON codec, keeping the real google.golang.org/grpc transport and
// client keepalive while describing messages as plain Go structs. No
// server reflection service is registered.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc/encoding.Codec by marshaling messages as JSON
// instead of protobuf wire format.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}
