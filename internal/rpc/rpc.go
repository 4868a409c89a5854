// Package rpc describes the gRPC service of the AnyList Daemon.
//
// The service exchanges the well-known google.protobuf.Struct and
// google.protobuf.Empty messages, so it needs no generated code. The Go
// types in this package define the shape of those structs.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mwopitz/anylist-daemon/internal/todo"
)

// ServiceName is the fully-qualified name of the gRPC service.
const ServiceName = "anylist.v1.AnylistDaemon"

// Full method names of the gRPC service.
const (
	GetStatusFullMethodName    = "/" + ServiceName + "/GetStatus"
	CallServiceFullMethodName  = "/" + ServiceName + "/CallService"
	ListEntitiesFullMethodName = "/" + ServiceName + "/ListEntities"
)

// ProcessStatus is the status of a process.
type ProcessStatus struct {
	Running bool `json:"running"`
	PID     int  `json:"pid"`
}

// Status is the payload of GetStatus.
type Status struct {
	Process      ProcessStatus  `json:"process"`
	Version      string         `json:"version"`
	APIBaseURL   string         `json:"apiBaseUrl"`
	ServerAddr   string         `json:"serverAddr,omitempty"`
	ServerError  string         `json:"serverError,omitempty"`
	BinaryServer *ProcessStatus `json:"binaryServer,omitempty"`
}

// ServiceRequest is the payload of a CallService request.
type ServiceRequest struct {
	Service        string         `json:"service"`
	Data           map[string]any `json:"data,omitempty"`
	ReturnResponse bool           `json:"returnResponse"`
}

// ServiceResponse is the payload of a CallService response. Response is
// nil unless the request asked for it.
type ServiceResponse struct {
	CallID   string         `json:"callId"`
	Response map[string]any `json:"response,omitempty"`
}

// EntityList is the payload of ListEntities.
type EntityList struct {
	Entities []*todo.State `json:"entities"`
}

// ToStruct converts v to a Struct through its JSON encoding.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot encode %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("cannot convert %T to struct: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes s into v through its JSON encoding.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("cannot encode struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("cannot convert struct to %T: %w", v, err)
	}
	return nil
}

// AnylistDaemonServer is the server API of the gRPC service.
type AnylistDaemonServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CallService(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEntities(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedAnylistDaemonServer must be embedded to have forward
// compatible implementations.
type UnimplementedAnylistDaemonServer struct{}

func (UnimplementedAnylistDaemonServer) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatus not implemented")
}

func (UnimplementedAnylistDaemonServer) CallService(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CallService not implemented")
}

func (UnimplementedAnylistDaemonServer) ListEntities(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListEntities not implemented")
}

// RegisterAnylistDaemonServer registers srv on s.
func RegisterAnylistDaemonServer(s grpc.ServiceRegistrar, srv AnylistDaemonServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a [grpc.MethodHandler].
func unaryHandler[Req proto.Message](
	fullMethod string,
	newReq func() Req,
	call func(AnylistDaemonServer, context.Context, Req) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AnylistDaemonServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AnylistDaemonServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newEmpty() *emptypb.Empty { return &emptypb.Empty{} }

func newStruct() *structpb.Struct { return &structpb.Struct{} }

// ServiceDesc is the [grpc.ServiceDesc] of the gRPC service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnylistDaemonServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    unaryHandler(GetStatusFullMethodName, newEmpty, AnylistDaemonServer.GetStatus),
		},
		{
			MethodName: "CallService",
			Handler:    unaryHandler(CallServiceFullMethodName, newStruct, AnylistDaemonServer.CallService),
		},
		{
			MethodName: "ListEntities",
			Handler:    unaryHandler(ListEntitiesFullMethodName, newEmpty, AnylistDaemonServer.ListEntities),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "anylist/v1/daemon.proto",
}

// AnylistDaemonClient is the client API of the gRPC service.
type AnylistDaemonClient interface {
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	CallService(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListEntities(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type anylistDaemonClient struct {
	cc grpc.ClientConnInterface
}

// NewAnylistDaemonClient creates a client of the gRPC service on cc.
func NewAnylistDaemonClient(cc grpc.ClientConnInterface) AnylistDaemonClient {
	return &anylistDaemonClient{cc}
}

func (c *anylistDaemonClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, GetStatusFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *anylistDaemonClient) CallService(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, CallServiceFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *anylistDaemonClient) ListEntities(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, ListEntitiesFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
