// Package status implements the 'status' command of the AnyList Daemon CLI.
//
// The 'status' command prints the daemon process, the REST API address, the
// AnyList server the daemon talks to and, if the daemon supervises one, the
// binary server. With --check it also fails when the daemon cannot reach
// AnyList, which makes it usable as a health check.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/urfave/cli/v3"

	clifmt "github.com/mwopitz/anylist-daemon/internal/cli/fmt"
	"github.com/mwopitz/anylist-daemon/internal/client"
	"github.com/mwopitz/anylist-daemon/internal/config"
	"github.com/mwopitz/anylist-daemon/internal/rpc"
)

// ErrUnhealthy is returned by [Executor.Execute] in check mode when the daemon
// runs but cannot serve AnyList requests.
var ErrUnhealthy = errors.New("AnyList Daemon is unhealthy")

// Formats lists the supported output formats; the first one is the default.
var Formats = []string{"text", "json"}

// Executor is used for executing the 'status' command.
type Executor struct {
	// SockFile is the path to the Unix socket file of the daemon.
	SockFile string
	// Format is one of [Formats].
	Format string
	// Check makes Execute fail with [ErrUnhealthy] after printing if the
	// AnyList server is unreachable.
	Check bool
	Out   io.Writer
}

// NewExecutor creates an executor for the specified 'status' command.
func NewExecutor(cmd *cli.Command, conf *config.Config) (*Executor, error) {
	format := cmd.String("format")
	if !slices.Contains(Formats, format) {
		return nil, fmt.Errorf("invalid output format: %s", format)
	}
	return &Executor{
		SockFile: conf.SockFile,
		Format:   format,
		Check:    cmd.Bool("check"),
		Out:      os.Stdout,
	}, nil
}

// Execute executes the 'status' command.
func (e *Executor) Execute(ctx context.Context) error {
	c, err := client.New("unix", e.SockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			slog.Warn("cannot close client connection", "cause", err)
		}
	}()

	st, err := c.ServerStatus(ctx)
	if err != nil {
		return fmt.Errorf("cannot query daemon: %w", err)
	}
	if err := e.print(st); err != nil {
		return err
	}
	if e.Check {
		return Health(st)
	}
	return nil
}

func (e *Executor) print(st *rpc.Status) error {
	switch e.Format {
	case "json":
		if err := json.NewEncoder(e.Out).Encode(st); err != nil {
			return fmt.Errorf("cannot print status: %w", err)
		}
		return nil
	case "text", "":
		return clifmt.NewPrinter(e.Out).PrintStatus(st)
	default:
		return fmt.Errorf("invalid output format: %s", e.Format)
	}
}

// Health reports why the daemon described by st cannot reach AnyList, or nil
// if it can. The AnyList server is unreachable when its address cannot be
// resolved or when the supervised binary server has exited.
func Health(st *rpc.Status) error {
	if b := st.BinaryServer; b != nil && !b.Running {
		return fmt.Errorf("%w: binary server stopped", ErrUnhealthy)
	}
	if st.ServerError != "" {
		return fmt.Errorf("%w: %s", ErrUnhealthy, st.ServerError)
	}
	return nil
}

// NewCommand creates a new 'status' command with the specified configuration.
func NewCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print the status of the AnyList Daemon and its AnyList server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "the output format (text or json)",
				Value: Formats[0],
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "exit with an error if the AnyList server is unreachable",
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
