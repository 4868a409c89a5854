package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
	"github.com/mwopitz/anylist-daemon/internal/rpc"
	"github.com/mwopitz/anylist-daemon/internal/services"
	"github.com/mwopitz/anylist-daemon/internal/todo"
)

// StatusProvider reports the status of the AnyList Daemon server.
type StatusProvider interface {
	Status(ctx context.Context) (*rpc.Status, error)
}

// StatusProviderFunc adapts a function to a [StatusProvider].
type StatusProviderFunc func(ctx context.Context) (*rpc.Status, error)

func (f StatusProviderFunc) Status(ctx context.Context) (*rpc.Status, error) {
	return f(ctx)
}

// grpcController handles gRPC calls.
type grpcController struct {
	rpc.UnimplementedAnylistDaemonServer
	logger   *slog.Logger
	server   StatusProvider
	services *services.Registry
	entities todo.EntityRegistry
}

func newGRPCController(
	server StatusProvider,
	registry *services.Registry,
	entities todo.EntityRegistry,
	logger *slog.Logger,
) *grpcController {
	return &grpcController{
		logger:   cmp.Or(logger, slog.Default()),
		server:   server,
		services: registry,
		entities: entities,
	}
}

func (c *grpcController) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if c.server == nil {
		return nil, status.Error(codes.Unavailable, "cannot determine server status")
	}
	st, err := c.server.Status(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "cannot determine server status: %v", err)
	}
	return rpc.ToStruct(st)
}

func (c *grpcController) CallService(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if c.services == nil {
		return nil, status.Error(codes.Unavailable, "services not available")
	}
	var req rpc.ServiceRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid service request: %v", err)
	}
	if req.Service == "" {
		return nil, status.Error(codes.InvalidArgument, "missing service name")
	}

	call := services.NewCall(req.Service, req.Data, req.ReturnResponse)
	resp, err := c.services.Call(ctx, call)
	if err != nil {
		return nil, toStatusError(err)
	}
	return rpc.ToStruct(rpc.ServiceResponse{
		CallID:   call.ID.String(),
		Response: resp,
	})
}

func (c *grpcController) ListEntities(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if c.entities == nil {
		return nil, status.Error(codes.Unavailable, "entities not available")
	}
	entities := c.entities.Entities()
	list := rpc.EntityList{Entities: make([]*todo.State, len(entities))}
	for i, e := range entities {
		list.Entities[i] = e.State()
	}
	return rpc.ToStruct(list)
}

// toStatusError maps a service error to a gRPC status error.
func toStatusError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, services.ErrUnknownService):
		code = codes.NotFound
	case errors.Is(err, services.ErrResponseRequired), errors.Is(err, services.ErrInvalidCall):
		code = codes.InvalidArgument
	case errors.Is(err, anylist.ErrServerNotRunning):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

// restController serves the gRPC controller's methods as REST endpoints.
// Errors are written by the gateway's error handler, which maps the gRPC
// status codes to HTTP status codes.
type restController struct {
	mux    *runtime.ServeMux
	grpc   *grpcController
	logger *slog.Logger
}

func newRESTController(mux *runtime.ServeMux, ctrl *grpcController, logger *slog.Logger) *restController {
	return &restController{
		mux:    mux,
		grpc:   ctrl,
		logger: cmp.Or(logger, slog.Default()),
	}
}

func (c *restController) respond(w http.ResponseWriter, r *http.Request, msg proto.Message, err error) {
	_, outbound := runtime.MarshalerForRequest(c.mux, r)
	if err != nil {
		c.logger.InfoContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "cause", err)
		runtime.HTTPError(r.Context(), c.mux, outbound, w, r, err)
		return
	}
	b, err := outbound.Marshal(msg)
	if err != nil {
		runtime.HTTPError(r.Context(), c.mux, outbound, w, r, err)
		return
	}
	w.Header().Set("Content-Type", outbound.ContentType(msg))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b); err != nil {
		c.logger.Warn("cannot write response", "cause", err)
	}
}

// GetStatus handles requests to retrieve the server status.
func (c *restController) GetStatus(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	c.logger.DebugContext(r.Context(), "handling request", "method", r.Method, "path", r.URL.Path)

	out, err := c.grpc.GetStatus(r.Context(), &emptypb.Empty{})
	c.respond(w, r, out, err)
}

// CallService handles requests to call a service. The request body is the
// call data; the return_response query parameter requests a response.
func (c *restController) CallService(w http.ResponseWriter, r *http.Request, params map[string]string) {
	c.logger.DebugContext(r.Context(), "handling request", "method", r.Method, "path", r.URL.Path)

	req, err := c.serviceRequest(r, params["service"])
	if err != nil {
		c.respond(w, r, nil, err)
		return
	}
	out, err := c.grpc.CallService(r.Context(), req)
	c.respond(w, r, out, err)
}

func (c *restController) serviceRequest(r *http.Request, service string) (*structpb.Struct, error) {
	inbound, _ := runtime.MarshalerForRequest(c.mux, r)
	data := &structpb.Struct{}
	if err := inbound.NewDecoder(r.Body).Decode(data); err != nil && !errors.Is(err, io.EOF) {
		return nil, status.Errorf(codes.InvalidArgument, "invalid service data: %v", err)
	}

	returnResponse := false
	if v := r.URL.Query().Get("return_response"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid return_response %q", v))
		}
		returnResponse = b
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"service":        structpb.NewStringValue(service),
		"data":           structpb.NewStructValue(data),
		"returnResponse": structpb.NewBoolValue(returnResponse),
	}}, nil
}
