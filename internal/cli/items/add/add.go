// Package add implements the 'add' subcommand of the AnyList Daemon CLI's
// 'items' command.
//
// The 'add' subcommand adds a new item to an AnyList list, with a
// user-specified name and optional notes.
package add

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mwopitz/anylist-daemon/internal/cli/items/list"
	"github.com/mwopitz/anylist-daemon/internal/client"
	"github.com/mwopitz/anylist-daemon/internal/config"
	"github.com/mwopitz/anylist-daemon/internal/services"
)

// Executor is used for executing the 'add' command.
type Executor struct {
	// SockFile is the path to the Unix socket file used for connecting to the
	// AnyList Daemon server.
	SockFile string
	// Name is the name of the item to be added.
	Name string
	// Notes are the notes of the item to be added.
	Notes string
	// List is the AnyList list to add the item to.
	List string
	// Out receives the output.
	Out io.Writer
}

// NewExecutor creates an executor for the specified 'add' command.
func NewExecutor(cmd *cli.Command, conf *config.Config) (*Executor, error) {
	name := cmd.StringArg("name")
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("no item name specified")
	}
	return &Executor{
		SockFile: conf.SockFile,
		Name:     name,
		Notes:    cmd.String("notes"),
		List:     cmd.String("list"),
		Out:      os.Stdout,
	}, nil
}

// Execute executes the 'add' command.
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

	data := map[string]any{
		services.FieldName: e.Name,
		services.FieldList: e.List,
	}
	if e.Notes != "" {
		data[services.FieldNotes] = e.Notes
	}
	resp, err := c.CallService(ctx, services.AddItem, data, true)
	if err != nil {
		return fmt.Errorf("cannot add item: %w", err)
	}
	if code := services.Response(resp.Response).Code(); code != 200 && code != 304 {
		return fmt.Errorf("cannot add item: received error code %d", code)
	}

	return list.Print(ctx, c, e.Out, e.List, false)
}

// NewCommand creates a new 'add' command with the specified configuration.
func NewCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add an item to an AnyList list",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "notes",
				Usage: "notes for the item",
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
