// Package items implements the 'items' command of the AnyList Daemon CLI.
//
// The 'items' command provides several subcommands for managing the items in
// an AnyList list. Each subcommand calls the matching service of the AnyList
// Daemon server.
package items

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mwopitz/anylist-daemon/internal/cli/items/add"
	"github.com/mwopitz/anylist-daemon/internal/cli/items/check"
	"github.com/mwopitz/anylist-daemon/internal/cli/items/list"
	"github.com/mwopitz/anylist-daemon/internal/cli/items/remove"
	"github.com/mwopitz/anylist-daemon/internal/config"
)

// NewCommand creates a new 'items' command with the specified configuration.
func NewCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "items",
		Usage: "Manage items in an AnyList list",
		Commands: []*cli.Command{
			add.NewCommand(conf),
			list.NewCommand(conf),
			check.NewCommand(conf, true),
			check.NewCommand(conf, false),
			remove.NewCommand(conf),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "list",
				Usage: "the list to use instead of the default list",
			},
		},
		CommandNotFound: func(_ context.Context, _ *cli.Command, name string) {
			// revive:disable-next-line:unhandled-error
			fmt.Fprintf(os.Stderr, "anylist-daemon: invalid command: '%s'\n", name)
		},
	}
}
