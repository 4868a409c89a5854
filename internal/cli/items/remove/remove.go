// Package remove implements the 'remove' subcommand of the AnyList Daemon
// CLI's 'items' command.
//
// The 'remove' subcommand removes an item from an AnyList list by name.
package remove

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mwopitz/anylist-daemon/internal/cli/items/list"
	"github.com/mwopitz/anylist-daemon/internal/client"
	"github.com/mwopitz/anylist-daemon/internal/config"
	"github.com/mwopitz/anylist-daemon/internal/services"
)

// Executor is used for executing the 'remove' command.
type Executor struct {
	// SockFile is the path to the Unix socket file used for connecting to the
	// AnyList Daemon server.
	SockFile string
	// Name is the name of the item to be removed.
	Name string
	// List is the AnyList list to remove the item from.
	List string
	// Out receives the output.
	Out io.Writer
}

// NewExecutor creates an executor for the specified 'remove' command.
func NewExecutor(cmd *cli.Command, conf *config.Config) (*Executor, error) {
	name := cmd.StringArg("name")
	if name == "" {
		return nil, errors.New("no item name specified")
	}
	return &Executor{
		SockFile: conf.SockFile,
		Name:     name,
		List:     cmd.String("list"),
		Out:      os.Stdout,
	}, nil
}

// Execute executes the 'remove' command.
func (e *Executor) Execute(ctx context.Context) error {
	c, err := client.New("unix", e.SockFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeerr := c.Close(); closeerr != nil {
			slog.Warn("cannot close client connection", "cause", closeerr)
		}
	}()

	data := map[string]any{
		services.FieldName: e.Name,
		services.FieldList: e.List,
	}
	resp, err := c.CallService(ctx, services.RemoveItem, data, true)
	if err != nil {
		return fmt.Errorf("cannot remove item: %w", err)
	}
	if code := services.Response(resp.Response).Code(); code != 200 && code != 304 {
		return fmt.Errorf("cannot remove item: received error code %d", code)
	}

	return list.Print(ctx, c, e.Out, e.List, false)
}

// NewCommand creates a new 'remove' command with the specified configuration.
func NewCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Remove an item from an AnyList list",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
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
