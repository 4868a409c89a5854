// Package run implements the 'run' command of the AnyList Daemon CLI.
//
// The 'run' command starts the binary server if one is configured, sets up
// one to-do list entity per AnyList list, and serves the gRPC and REST APIs
// until the command's context gets canceled.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
	"github.com/mwopitz/anylist-daemon/internal/config"
	"github.com/mwopitz/anylist-daemon/internal/coordinator"
	"github.com/mwopitz/anylist-daemon/internal/server"
	"github.com/mwopitz/anylist-daemon/internal/services"
	"github.com/mwopitz/anylist-daemon/internal/supervisor"
	"github.com/mwopitz/anylist-daemon/internal/todo"
)

// ErrAlreadyRunning is returned by [Executor.Execute] when the server is
// already running.
var ErrAlreadyRunning = errors.New("another instance is already running")

// ErrNoServer is returned by [Executor.Execute] when neither a server
// address nor a binary server is configured.
var ErrNoServer = errors.New("no AnyList server configured")

const (
	minRetryDelay = 2 * time.Second
	maxRetryDelay = time.Minute
	stopTimeout   = 10 * time.Second
)

// Executor is used for executing the 'run' command.
type Executor struct {
	// Lock is the file lock that the executor tries to acquire before starting
	// the server.
	Lock *flock.Flock
	// Config is the configuration of the daemon.
	Config *config.Config
	// Logger receives the log records of the daemon.
	Logger *slog.Logger
}

// NewExecutor creates an executor for the specified 'run' command. Flags set
// on the command override the values of conf.
func NewExecutor(cmd *cli.Command, conf *config.Config) (*Executor, error) {
	c := *conf
	if cmd.IsSet("lock") {
		c.LockFile = cmd.String("lock")
	}
	if cmd.IsSet("http-addr") {
		c.HTTPAddr = cmd.String("http-addr")
	}
	if cmd.IsSet("server-addr") {
		c.Entry.ServerAddr = cmd.String("server-addr")
	}
	if cmd.IsSet("server-binary") {
		c.Entry.ServerBinary = cmd.String("server-binary")
	}
	if cmd.IsSet("email") {
		c.Entry.Email = cmd.String("email")
	}
	if cmd.IsSet("password") {
		c.Entry.Password = cmd.String("password")
	}
	if cmd.IsSet("default-list") {
		c.Options.DefaultList = cmd.String("default-list")
	}
	if cmd.IsSet("refresh-interval") {
		c.Options.RefreshInterval = int(cmd.Int("refresh-interval"))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Executor{
		Lock:   flock.New(c.LockFile),
		Config: &c,
		Logger: slog.Default(),
	}, nil
}

// Execute executes the 'run' command.
func (e *Executor) Execute(ctx context.Context) error {
	unlock, err := e.lock()
	if err != nil {
		return fmt.Errorf("cannot start server: %w", err)
	}
	defer unlock()
	e.Logger.Info("acquired file lock", "path", e.Lock.Path())

	sockFile := e.Config.SockFile
	if err := os.MkdirAll(filepath.Dir(sockFile), 0o700); err != nil {
		return fmt.Errorf("cannot start server: %w", err)
	}
	if err := os.Remove(sockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot start server: %w", err)
	}

	binary, err := supervisor.Start(&supervisor.Config{
		Binary:          e.Config.Entry.ServerBinary,
		Email:           e.Config.Entry.Email,
		Password:        e.Config.Entry.Password,
		CredentialsFile: e.Config.CredentialsFile,
	}, e.Logger)
	if err != nil {
		return fmt.Errorf("cannot start binary server: %w", err)
	}
	defer e.stopBinary(binary)

	client := anylist.New(e.Config.Entry.ServerAddr, e.Config.Options.DefaultList, anylist.WithLogger(e.Logger))
	opts := server.Options{
		Services: services.NewRegistry(client, e.Logger),
		Backend:  client,
		Logger:   e.Logger,
	}
	if binary != nil {
		client.SetBinaryServer(binary)
		opts.Binary = binary
	} else if e.Config.Entry.ServerAddr == "" {
		return fmt.Errorf("cannot start server: %w", ErrNoServer)
	}

	platform, err := e.setup(ctx, client, binary)
	if err != nil {
		return err
	}
	opts.Entities = platform

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	polling := make(chan struct{})
	go func() {
		platform.Run(ctx)
		close(polling)
	}()

	// Create the AnyList Daemon server and run it in a separate goroutine, so
	// we can wait until either the server stops or the context gets canceled.
	srv := server.New(opts)
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve("unix", sockFile, e.Config.HTTPAddr)
		close(done)
	}()

	select {
	case <-ctx.Done():
		err := context.Cause(ctx)
		e.Logger.Info("stopping server...", "cause", err)
		cancel()
		<-polling
		e.stopBinary(binary)
		stopCtx, stop := context.WithTimeout(context.Background(), stopTimeout)
		defer stop()
		return srv.StopGracefully(stopCtx)
	case err := <-done:
		cancel()
		<-polling
		return err
	}
}

// setup creates the entities. While the AnyList server is not ready, it
// retries with an increasing delay until ctx is done or the binary server
// exits.
func (e *Executor) setup(ctx context.Context, client todo.Client, binary *supervisor.Server) (*todo.Platform, error) {
	var exited <-chan struct{}
	if binary != nil {
		exited = binary.Done()
	}
	delay := minRetryDelay
	for {
		platform, err := todo.Setup(ctx, client, e.Config.RefreshInterval(), e.Logger)
		if err == nil {
			return platform, nil
		}
		if !errors.Is(err, coordinator.ErrNotReady) {
			return nil, fmt.Errorf("cannot set up entities: %w", err)
		}
		e.Logger.Warn("AnyList server not ready, retrying", "cause", err, "delay", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("cannot set up entities: %w", context.Cause(ctx))
		case <-exited:
			t.Stop()
			return nil, errors.New("cannot set up entities: binary server exited")
		case <-t.C:
		}
		delay = min(2*delay, maxRetryDelay)
	}
}

func (e *Executor) stopBinary(binary *supervisor.Server) {
	if binary == nil {
		return
	}
	if err := binary.Stop(); err != nil {
		e.Logger.Warn("cannot stop binary server", "cause", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := binary.Wait(ctx); err != nil {
		e.Logger.Warn("binary server did not exit", "cause", err)
	}
}

func (e *Executor) lock() (func(), error) {
	err := os.MkdirAll(filepath.Dir(e.Lock.Path()), 0o700)
	if err != nil {
		return nil, err
	}
	locked, err := e.Lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return func() {
		if err := e.Lock.Unlock(); err != nil {
			e.Logger.Warn("cannot release file lock", "cause", err)
		}
	}, nil
}

// NewCommand creates a new 'run' command with the specified configuration.
func NewCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the AnyList Daemon server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "lock",
				Usage:     "path to the lock file",
				Value:     conf.LockFile,
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "TCP address of the REST API",
				Value:   conf.HTTPAddr,
				Sources: cli.EnvVars("ANYLIST_HTTP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "server-addr",
				Usage:   "base URL of an externally managed AnyList server",
				Sources: cli.EnvVars("ANYLIST_SERVER_ADDR"),
			},
			&cli.StringFlag{
				Name:      "server-binary",
				Usage:     "path to the AnyList binary server to supervise",
				TakesFile: true,
				Sources:   cli.EnvVars("ANYLIST_SERVER_BINARY"),
			},
			&cli.StringFlag{
				Name:    "email",
				Usage:   "AnyList account email for the binary server",
				Sources: cli.EnvVars("ANYLIST_EMAIL"),
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "AnyList account password for the binary server",
				Sources: cli.EnvVars("ANYLIST_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "default-list",
				Usage:   "list used when a request names none",
				Sources: cli.EnvVars("ANYLIST_DEFAULT_LIST"),
			},
			&cli.IntFlag{
				Name:    "refresh-interval",
				Usage:   "polling interval in seconds",
				Value:   config.DefaultRefreshInterval,
				Sources: cli.EnvVars("ANYLIST_REFRESH_INTERVAL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := NewExecutor(cmd, conf)
			if err != nil {
				return err
			}
			return e.Execute(ctx)
		},
	}
}
