// Package lists implements the 'lists' command of the AnyList Daemon CLI.
//
// The 'lists' command prints the to-do list entities of the AnyList Daemon
// server, one line per AnyList list.
package lists

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	clifmt "github.com/mwopitz/anylist-daemon/internal/cli/fmt"
	"github.com/mwopitz/anylist-daemon/internal/client"
	"github.com/mwopitz/anylist-daemon/internal/config"
)

// Executor is used for executing the 'lists' command.
type Executor struct {
	// SockFile is the path to the Unix socket file used for connecting to the
	// AnyList Daemon server.
	SockFile string
	// Out receives the output.
	Out io.Writer
}

// NewExecutor creates an executor for the 'lists' command.
func NewExecutor(conf *config.Config) (*Executor, error) {
	return &Executor{
		SockFile: conf.SockFile,
		Out:      os.Stdout,
	}, nil
}

// Execute executes the 'lists' command.
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

	list, err := c.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("cannot retrieve lists: %w", err)
	}
	return clifmt.NewPrinter(e.Out).PrintEntities(list.Entities)
}

// NewCommand creates a new 'lists' command with the specified configuration.
func NewCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "lists",
		Usage: "Print the AnyList lists and their open item counts",
		Action: func(ctx context.Context, _ *cli.Command) error {
			e, err := NewExecutor(conf)
			if err != nil {
				return err
			}
			return e.Execute(ctx)
		},
	}
}
