// File: cmd/schema.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/cypherguard/internal/mcp"
	"github.com/xkilldash9x/cypherguard/internal/observability"
)

func newSchemaCmd(provider toolboxProvider) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the graph schema",
	}

	run := func(tool func(tb *mcp.Toolbox, cmd *cobra.Command) mcp.CommandResponse) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			rt, cleanup, err := provider.Create(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			resp := tool(rt.Toolbox, cmd)
			if err := checkResponse(resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Data)
		}
	}

	schemaCmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Discover and print labels, relationship types and property keys",
			Args:  cobra.NoArgs,
			RunE: run(func(tb *mcp.Toolbox, cmd *cobra.Command) mcp.CommandResponse {
				return tb.GetSchema(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Re-run schema discovery, ignoring any cached copy",
			Args:  cobra.NoArgs,
			RunE: run(func(tb *mcp.Toolbox, cmd *cobra.Command) mcp.CommandResponse {
				return tb.RefreshSchema(cmd.Context())
			}),
		},
	)
	return schemaCmd
}
