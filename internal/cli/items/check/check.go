// Package check implements the 'check' and 'uncheck' subcommands of the
// AnyList Daemon CLI's 'items' command.
package check

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

// Executor is used for executing the 'check' and 'uncheck' commands.
type Executor struct {
	// SockFile is the path to the Unix socket file used for connecting to the
	// AnyList Daemon server.
	SockFile string
	// Name is the name of the item to be checked or unchecked.
	Name string
	// List is the AnyList list holding the item.
	List string
	// Checked is the new checked state of the item.
	Checked bool
	// Out receives the output.
	Out io.Writer
}

// NewExecutor creates an executor for the specified command.
func NewExecutor(cmd *cli.Command, conf *config.Config, checked bool) (*Executor, error) {
	name := cmd.StringArg("name")
	if name == "" {
		return nil, errors.New("no item name specified")
	}
	return &Executor{
		SockFile: conf.SockFile,
		Name:     name,
		List:     cmd.String("list"),
		Checked:  checked,
		Out:      os.Stdout,
	}, nil
}

// Execute executes the command.
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

	service := services.UncheckItem
	if e.Checked {
		service = services.CheckItem
	}
	data := map[string]any{
		services.FieldName: e.Name,
		services.FieldList: e.List,
	}
	resp, err := c.CallService(ctx, service, data, true)
	if err != nil {
		return fmt.Errorf("cannot update item: %w", err)
	}
	if code := services.Response(resp.Response).Code(); code != 200 && code != 304 {
		return fmt.Errorf("cannot update item: received error code %d", code)
	}

	return list.Print(ctx, c, e.Out, e.List, true)
}

// NewCommand creates a new 'check' command, or an 'uncheck' command if
// checked is false.
func NewCommand(conf *config.Config, checked bool) *cli.Command {
	name, usage := "check", "Check an item in an AnyList list"
	if !checked {
		name, usage = "uncheck", "Uncheck an item in an AnyList list"
	}
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := NewExecutor(cmd, conf, checked)
			if err != nil {
				return err
			}
			return e.Execute(ctx)
		},
	}
}
