// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/cypherguard/cmd"
	"github.com/xkilldash9x/cypherguard/internal/observability"
)

// main is the entry point for the cypherguard CLI.
func main() {
	// Cancel on SIGINT/SIGTERM so running queries and the bridge shut down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(cmd.ExitOK)
		}
		os.Exit(cmd.ExitCode(err))
	}
}
