// Package main is the entry point for the pgreindex CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satishbabariya/pgreindex/cmd/pgreindex/commands"
	"github.com/satishbabariya/pgreindex/internal/logging"
	"github.com/satishbabariya/pgreindex/internal/ui"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := initTracing(ctx)
	if err != nil {
		ui.PrintWarning("tracing disabled: %v", err)
		shutdown = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logging.Warn("failed to flush traces", "error", err)
		}
	}()

	err = commands.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		ui.PrintError("%v", err)
	}
	return commands.ExitCode(err)
}
