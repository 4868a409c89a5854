package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwopitz/anylist-daemon/internal/cli"
	"github.com/mwopitz/anylist-daemon/internal/config"
)

func main() {
	// Standard output belongs to the commands; the mcp command speaks its
	// protocol there.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewAnylistDaemonCommand(config.New())
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "cause", err)
		stop()
		os.Exit(1)
	}
}
