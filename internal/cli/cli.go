// Package cli implements the command-line interface of the AnyList Daemon.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mwopitz/anylist-daemon/internal/cli/items"
	"github.com/mwopitz/anylist-daemon/internal/cli/lists"
	"github.com/mwopitz/anylist-daemon/internal/cli/mcp"
	"github.com/mwopitz/anylist-daemon/internal/cli/run"
	"github.com/mwopitz/anylist-daemon/internal/cli/status"
	"github.com/mwopitz/anylist-daemon/internal/config"
	"github.com/mwopitz/anylist-daemon/internal/version"
)

// NewAnylistDaemonCommand creates the root command of the AnyList Daemon CLI.
// Before any subcommand runs, conf is replaced by the configuration loaded
// from the configuration and env files, and the root flags set by the user
// are applied on top.
func NewAnylistDaemonCommand(conf *config.Config) *cli.Command {
	return &cli.Command{
		Name:    config.AppName,
		Version: version.Full(),
		Usage:   "A daemon bridging AnyList shopping lists",
		Commands: []*cli.Command{
			run.NewCommand(conf),
			status.NewCommand(conf),
			lists.NewCommand(conf),
			items.NewCommand(conf),
			mcp.NewCommand(conf),
		},
		CommandNotFound: func(_ context.Context, _ *cli.Command, name string) {
			// revive:disable-next-line:unhandled-error
			fmt.Fprintf(os.Stderr, "anylist-daemon: invalid command: '%s'\n", name)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "sock",
				Usage:     "path to the socket file",
				Value:     conf.SockFile,
				TakesFile: true,
				Sources:   cli.EnvVars("ANYLIST_DAEMON_SOCK"),
			},
			&cli.StringFlag{
				Name:      "config",
				Usage:     "path to the YAML configuration file",
				Value:     config.DefaultConfigFile(),
				TakesFile: true,
				Sources:   cli.EnvVars("ANYLIST_DAEMON_CONFIG"),
			},
			&cli.StringFlag{
				Name:      "env-file",
				Usage:     "path to the dotenv file holding the credentials",
				Value:     config.DefaultEnvFile(),
				TakesFile: true,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, loadConfig(cmd, conf)
		},
	}
}

// loadConfig loads the env file and the configuration file into conf. Files
// named explicitly must exist; the default files are optional.
func loadConfig(cmd *cli.Command, conf *config.Config) error {
	if err := config.LoadEnv(cmd.String("env-file"), !cmd.IsSet("env-file")); err != nil {
		return err
	}
	loaded, err := config.Load(cmd.String("config"), !cmd.IsSet("config"))
	if err != nil {
		return err
	}
	*conf = *loaded
	if cmd.IsSet("sock") {
		conf.SockFile = cmd.String("sock")
	}
	return nil
}
