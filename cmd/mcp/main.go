// File: cmd/mcp/main.go
// This is the main entrypoint for the standalone tool bridge. It is
// equivalent to "cypherguard serve" and accepts the same flags.
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

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cmd.NewRootCommand()
	root.SetArgs(append([]string{"serve"}, os.Args[1:]...))

	err := root.ExecuteContext(ctx)
	observability.Sync()
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(cmd.ExitCode(err))
	}
}
