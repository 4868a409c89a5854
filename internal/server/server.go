// Package server provides the server of the AnyList Daemon.
package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/mwopitz/anylist-daemon/internal/rpc"
	"github.com/mwopitz/anylist-daemon/internal/services"
	"github.com/mwopitz/anylist-daemon/internal/todo"
	"github.com/mwopitz/anylist-daemon/internal/version"
)

func newInterceptorLoggerFunc(l *slog.Logger) logging.LoggerFunc {
	return func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	}
}

// Backend reports where the AnyList server is reachable.
type Backend interface {
	ServerAddress() (string, error)
}

// BinaryServer is the supervised AnyList binary server.
type BinaryServer interface {
	Available() bool
	PID() int
}

// Options holds the components the server exposes.
type Options struct {
	Services *services.Registry
	Entities todo.EntityRegistry
	Backend  Backend
	// Binary is nil when no binary server is supervised.
	Binary BinaryServer
	Logger *slog.Logger
}

// Server implements the server of the AnyList Daemon. It runs both an HTTP
// server, which provides a REST API to external applications, as well as a
// gRPC server, which is used for communication between the AnyList Daemon
// processes.
type Server struct {
	logger     *slog.Logger
	opts       Options
	grpcServer *grpc.Server
	httpServer *http.Server
}

// New creates a new AnyList Daemon server. If no logger is provided, the
// server uses [slog.Default].
func New(opts Options) *Server {
	logger := cmp.Or(opts.Logger, slog.Default())
	loggingOpts := []logging.Option{
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
	}
	loggerFunc := newInterceptorLoggerFunc(logger)
	// Requests outlive Shutdown once hijacked; their context ends with it.
	baseCtx, cancel := context.WithCancel(context.Background())
	httpServer := &http.Server{
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	httpServer.RegisterOnShutdown(cancel)
	return &Server{
		logger: logger,
		opts:   opts,
		grpcServer: grpc.NewServer(
			grpc.ChainUnaryInterceptor(
				logging.UnaryServerInterceptor(loggerFunc, loggingOpts...),
			),
			grpc.ChainStreamInterceptor(
				logging.StreamServerInterceptor(loggerFunc, loggingOpts...),
			),
		),
		httpServer: httpServer,
	}
}

// Serve starts both the underlying HTTP server and gRPC server. The network
// and address arguments are used for the gRPC server; the HTTP server listens
// on httpAddr.
func (s *Server) Serve(network, address, httpAddr string) error {
	grpcListener, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("cannot start gRPC server: %w", err)
	}
	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		_ = grpcListener.Close()
		return fmt.Errorf("cannot start HTTP server: %w", err)
	}
	return s.ServeListeners(grpcListener, httpListener)
}

// ServeListeners is like [Server.Serve] but accepts connections on existing
// listeners. It blocks until both servers have stopped.
func (s *Server) ServeListeners(grpcListener, httpListener net.Listener) error {
	s.logger.Info("gRPC server started", "addr", grpcListener.Addr())
	httpAddr := httpListener.Addr()
	s.logger.Info("HTTP server started", "addr", httpAddr)

	apiBaseURL := url.URL{
		Scheme: "http",
		Host:   httpAddr.String(),
		Path:   "/api",
	}
	status := func(_ context.Context) (*rpc.Status, error) {
		st := &rpc.Status{
			Process:    rpc.ProcessStatus{Running: true, PID: os.Getpid()},
			Version:    version.Semantic(),
			APIBaseURL: apiBaseURL.String(),
		}
		if s.opts.Backend != nil {
			addr, err := s.opts.Backend.ServerAddress()
			if err != nil {
				st.ServerError = err.Error()
			}
			st.ServerAddr = addr
		}
		if s.opts.Binary != nil {
			st.BinaryServer = &rpc.ProcessStatus{
				Running: s.opts.Binary.Available(),
				PID:     s.opts.Binary.PID(),
			}
		}
		return st, nil
	}

	ctrl := newGRPCController(StatusProviderFunc(status), s.opts.Services, s.opts.Entities, s.logger)
	if err := s.initHTTPServer(ctrl); err != nil {
		return err
	}
	rpc.RegisterAnylistDaemonServer(s.grpcServer, ctrl)

	grpcDone := make(chan error, 1)
	go func() {
		grpcDone <- s.grpcServer.Serve(grpcListener)
		close(grpcDone)
	}()

	httpDone := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(httpListener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		httpDone <- err
		close(httpDone)
	}()

	return errors.Join(<-grpcDone, <-httpDone)
}

func (s *Server) initHTTPServer(ctrl *grpcController) error {
	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.JSONPb{
			MarshalOptions: protojson.MarshalOptions{
				EmitUnpopulated: true,
			},
			UnmarshalOptions: protojson.UnmarshalOptions{
				DiscardUnknown: true,
			},
		}),
	)
	api := newRESTController(mux, ctrl, s.logger)
	entities := todo.NewController(s.opts.Entities, s.logger)

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/api/v1/status", api.GetStatus},
		{http.MethodPost, "/api/v1/services/{service}", api.CallService},
		{http.MethodGet, "/api/v1/todo", entities.ListEntities},
		{http.MethodGet, "/api/v1/todo/{entity}", entities.GetEntity},
		{http.MethodPost, "/api/v1/todo/{entity}/items", entities.CreateItem},
		{http.MethodPatch, "/api/v1/todo/{entity}/items/{uid}", entities.UpdateItem},
		{http.MethodDelete, "/api/v1/todo/{entity}/items/{uid}", entities.DeleteItem},
		{http.MethodGet, "/api/v1/todo/{entity}/subscribe", entities.Subscribe},
	}
	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, route.handler); err != nil {
			return fmt.Errorf("cannot register route %s %s: %w", route.method, route.pattern, err)
		}
	}

	s.httpServer.Handler = mux
	return nil
}

// StopGracefully stops both the HTTP server and the gRPC server. It waits
// until all active RPCs and HTTP requests are finished or ctx is done.
func (s *Server) StopGracefully(ctx context.Context) error {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
