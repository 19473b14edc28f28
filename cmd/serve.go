// File: cmd/serve.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/config"
	"github.com/xkilldash9x/cypherguard/internal/mcp"
	"github.com/xkilldash9x/cypherguard/internal/observability"
)

// server is the part of *mcp.Server the serve command drives.
type server interface {
	Start(ctx context.Context) error
}

// newServer is swapped out in tests.
var newServer = func(cfg config.ServerConfig, tb *mcp.Toolbox, logger *zap.Logger) server {
	return mcp.NewServer(cfg, tb, logger)
}

func newServeCmd(provider toolboxProvider) *cobra.Command {
	var (
		listen     string
		warmSchema bool
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket tool bridge",
		Long: `Starts the tool bridge a language model calls into. Every statement it
receives is classified before it can reach the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.SetServerListenAddr(listen)
			}
			return runServe(ctx, logger, cfg, provider, warmSchema)
		},
	}

	serveCmd.Flags().StringVarP(&listen, "listen", "l", "", "Address to listen on (overrides server.listen_addr)")
	serveCmd.Flags().BoolVar(&warmSchema, "warm-schema", false, "Discover the schema before accepting calls")
	return serveCmd
}

func runServe(ctx context.Context, logger *zap.Logger, cfg config.Interface, provider toolboxProvider, warmSchema bool) error {
	rt, cleanup, err := provider.Create(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if warmSchema {
		resp := rt.Toolbox.GetSchema(ctx)
		if resp.Status != mcp.StatusSuccess {
			// The bridge still starts; get_schema retries on first use.
			logger.Warn("Schema warm-up failed", zap.String("error", resp.Error), zap.String("kind", resp.ErrorKind))
		} else {
			logger.Info("Schema cached before serving")
		}
	}

	srv := newServer(cfg.Server(), rt.Toolbox, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("tool bridge stopped with an error: %w", err)
	}
	return nil
}
