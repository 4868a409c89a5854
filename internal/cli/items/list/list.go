// Package list implements the 'list' subcommand of the AnyList Daemon CLI's
// 'items' command.
//
// The 'list' subcommand prints the items of an AnyList list to standard
// output.
package list

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
	"github.com/mwopitz/anylist-daemon/internal/services"
)

// Executor is used for executing the 'list' command.
type Executor struct {
	// SockFile is the path to the Unix socket file used for connecting to the
	// AnyList Daemon server.
	SockFile string
	// List is the AnyList list to print. The server's default list is used
	// if it is empty.
	List string
	// All includes the checked items.
	All bool
	// Out receives the output.
	Out io.Writer
}

// NewExecutor creates an executor for the specified 'list' command.
func NewExecutor(cmd *cli.Command, conf *config.Config) (*Executor, error) {
	return &Executor{
		SockFile: conf.SockFile,
		List:     cmd.String("list"),
		All:      cmd.Bool("all"),
		Out:      os.Stdout,
	}, nil
}

// Execute executes the 'list' command.
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
	return Print(ctx, c, e.Out, e.List, e.All)
}

// Print retrieves the items of list through c and prints them to w.
func Print(ctx context.Context, c *client.Client, w io.Writer, list string, all bool) error {
	service := services.GetItems
	if all {
		service = services.GetAllItems
	}
	resp, err := c.CallService(ctx, service, map[string]any{services.FieldList: list}, true)
	if err != nil {
		return fmt.Errorf("cannot retrieve items: %w", err)
	}
	r := services.Response(resp.Response)
	if code := r.Code(); code != 200 {
		return fmt.Errorf("cannot retrieve items: received error code %d", code)
	}

	p := clifmt.NewPrinter(w)
	if all {
		return p.PrintAllItems(clifmt.Strings(r["uncheckedItems"]), clifmt.Strings(r["checkedItems"]))
	}
	return p.PrintItems(clifmt.Strings(r["items"]), false)
}

// NewCommand creates a new 'list' command with the specified configuration.
func NewCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the items of an AnyList list",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "include checked items",
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
