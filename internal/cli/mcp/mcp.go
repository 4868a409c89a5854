// Package mcp implements the 'mcp' command of the AnyList Daemon CLI.
//
// The 'mcp' command serves the AnyList services as MCP tools over standard
// input and output. Tool calls are forwarded to the running AnyList Daemon
// server.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mwopitz/anylist-daemon/internal/client"
	"github.com/mwopitz/anylist-daemon/internal/config"
	"github.com/mwopitz/anylist-daemon/internal/mcpserver"
	"github.com/mwopitz/anylist-daemon/internal/version"
)

// Executor is used for executing the 'mcp' command.
type Executor struct {
	// SockFile is the path to the Unix socket file used for connecting to the
	// AnyList Daemon server.
	SockFile string
}

// NewExecutor creates an executor for the 'mcp' command.
func NewExecutor(conf *config.Config) (*Executor, error) {
	return &Executor{SockFile: conf.SockFile}, nil
}

// Execute executes the 'mcp' command. It blocks until standard input is
// closed or ctx is done.
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

	srv, err := mcpserver.New(c, config.AppName, version.Semantic(), slog.Default())
	if err != nil {
		return err
	}
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

// NewCommand creates a new 'mcp' command with the specified configuration.
func NewCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the AnyList services as MCP tools over standard I/O",
		Action: func(ctx context.Context, _ *cli.Command) error {
			e, err := NewExecutor(conf)
			if err != nil {
				return err
			}
			return e.Execute(ctx)
		},
	}
}
