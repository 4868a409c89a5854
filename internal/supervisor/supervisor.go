// Package supervisor runs the AnyList binary server as a child process.
//
// The supervisor starts the process with fixed arguments, streams its
// combined output to the log line by line and reports whether the process is
// still running. Stop sends a terminate signal; the process is never killed
// forcefully and never restarted.
package supervisor

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
)

var (
	// ErrBinaryNotFound is returned by [Start] when the configured binary is
	// not a regular file.
	ErrBinaryNotFound = errors.New("failed to locate server binary")
	// ErrNotExecutable is returned by [Start] when the configured binary is
	// still not executable after fixing its permissions.
	ErrNotExecutable = errors.New("failed to fix server binary permissions")
)

// Replaced in tests.
var (
	stat       = os.Stat
	chmod      = os.Chmod
	executable = isExecutable
)

// Config holds what [Start] needs to launch the binary server.
type Config struct {
	Binary          string
	Email           string
	Password        string
	CredentialsFile string
}

// Args returns the command line of the binary server.
func (c *Config) Args() []string {
	return []string{
		c.Binary,
		"--port", anylist.ServerPort,
		"--email", c.Email,
		"--password", c.Password,
		"--credentials-file", c.CredentialsFile,
		"--ip-filter", "127.0.0.1",
	}
}

// Start launches the binary server described by conf. It returns a nil
// server and a nil error when any of the binary, email or password is
// missing, since the daemon then talks to an external server.
func Start(conf *Config, logger *slog.Logger) (*Server, error) {
	if conf.Binary == "" || conf.Email == "" || conf.Password == "" {
		return nil, nil
	}
	logger = cmp.Or(logger, slog.Default())

	info, err := stat(conf.Binary)
	if err != nil || !info.Mode().IsRegular() {
		return nil, ErrBinaryNotFound
	}

	if !executable(conf.Binary) {
		logger.Debug("fixing server binary permissions", "path", conf.Binary)
		if err := chmod(conf.Binary, info.Mode()|0o100); err != nil {
			logger.Warn("cannot change server binary permissions", "cause", err)
		}
		if !executable(conf.Binary) {
			return nil, ErrNotExecutable
		}
	}

	s := New(conf.Args(), logger)
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Server supervises a single run of the binary server process.
type Server struct {
	logger *slog.Logger
	args   []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
	done    chan struct{}
}

// New creates a server that runs the command line args once started.
func New(args []string, logger *slog.Logger) *Server {
	return &Server{
		logger: cmp.Or(logger, slog.Default()),
		args:   args,
		done:   make(chan struct{}),
	}
}

// Args returns the command line of the server process.
func (s *Server) Args() []string {
	return s.args
}

// Start launches the process and a goroutine that drains its output. It
// fails if the server was already started.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return errors.New("server already started")
	}
	if len(s.args) == 0 {
		return errors.New("no server command")
	}

	cmd := exec.Command(s.args[0], s.args[1:]...) //nolint:gosec // the binary is configured by the user
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("cannot start server binary: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cannot start server binary: %w", err)
	}
	s.cmd = cmd
	s.running = true
	s.logger.Info("server binary started", "pid", cmd.Process.Pid)

	go func() {
		s.drain(stdout)
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			s.logger.Error("binary server exited with error code", "code", exitErr.ExitCode())
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.done)
	}()
	return nil
}

// drain logs r line by line until EOF. Lines have no length limit, so the
// process never blocks on a full pipe.
func (s *Server) drain(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			s.logger.Info(line, "source", "binary")
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
			s.logger.Warn("cannot read server binary output", "cause", err)
			// Keep the pipe empty until the process exits.
			_, _ = io.Copy(io.Discard, r)
		}
		return
	}
}

// Available reports whether the server process is running.
func (s *Server) Available() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PID returns the process ID of the running server, or 0.
func (s *Server) PID() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	return s.cmd.Process.Pid
}

// Stop asks the server process to terminate. It does not wait for the
// process to exit; use [Server.Done] or [Server.Wait] for that.
func (s *Server) Stop() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	if err := terminate(s.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("cannot stop server binary: %w", err)
	}
	return nil
}

// Done returns a channel that is closed once the started process has exited.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the process has exited or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
