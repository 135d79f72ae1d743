// Package main is the entry point for the bzmigrate CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/bzmigrate/cmd"
	"github.com/danielolaszy/bzmigrate/internal/logging"
)

// main executes the root command and exits non-zero if it fails.
func main() {
	logging.Info("starting bzmigrate", "version", "1.0.0", "log_level", logging.LevelFromEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
