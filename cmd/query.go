// File: cmd/query.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/config"
	"github.com/xkilldash9x/cypherguard/internal/graphdb"
	"github.com/xkilldash9x/cypherguard/internal/mcp"
	"github.com/xkilldash9x/cypherguard/internal/observability"
	"github.com/xkilldash9x/cypherguard/internal/reporting"
)

type queryOptions struct {
	params     []string
	prompt     string
	format     string
	outputPath string
	title      string
	rowCap     int
}

func newQueryCmd(provider toolboxProvider) *cobra.Command {
	opts := &queryOptions{}

	queryCmd := &cobra.Command{
		Use:   "query <cypher>",
		Short: "Classify a Cypher statement and run it if it only reads",
		Example: `  cypherguard query "MATCH (c:Customer) RETURN c.name AS name LIMIT 5"
  cypherguard query "MATCH (o:Order {status: \$s}) RETURN count(o) AS total" --param s=open
  cypherguard query "MATCH (p:Product) RETURN p.category AS category, count(*) AS count" -f chart`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return reporting.CheckFormat(opts.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if opts.rowCap > 0 {
				cfg.SetExecutorRowCap(opts.rowCap)
			}
			return runQuery(ctx, observability.GetLogger(), cfg, provider, args[0], opts, cmd.OutOrStdout())
		},
	}

	queryCmd.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "Query parameter as key=value (repeatable)")
	queryCmd.Flags().StringVar(&opts.prompt, "prompt", "", "The natural-language request the statement was written for")
	queryCmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: "+strings.Join(reporting.Formats, ", "))
	queryCmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the result to a file instead of stdout")
	queryCmd.Flags().StringVar(&opts.title, "title", "", "Chart title")
	queryCmd.Flags().IntVar(&opts.rowCap, "row-cap", 0, "Maximum rows to return (overrides executor.row_cap)")
	return queryCmd
}

func runQuery(ctx context.Context, logger *zap.Logger, cfg config.Interface, provider toolboxProvider, cypher string, opts *queryOptions, stdout io.Writer) error {
	params, err := parseParams(opts.params)
	if err != nil {
		return err
	}

	rt, cleanup, err := provider.Create(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	resp := rt.Toolbox.ExecuteQuery(ctx, mcp.QueryParams{Query: cypher, Params: params, Prompt: opts.prompt})
	if err := checkResponse(resp); err != nil {
		return err
	}

	result := &graphdb.QueryResult{Columns: []string{}, Rows: []map[string]any{}}
	if payload, ok := resp.Data.(mcp.QueryPayload); ok && payload.QueryResult != nil {
		result = payload.QueryResult
	}

	var reporter reporting.Reporter
	if opts.outputPath == "" {
		reporter = reporting.NewWriter(opts.format, nopCloser{stdout}, opts.title)
	} else {
		reporter, err = reporting.New(opts.format, opts.outputPath, opts.title)
		if err != nil {
			return fmt.Errorf("failed to initialize reporter: %w", err)
		}
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Warn("Failed to close reporter cleanly.", zap.Error(err))
		}
	}()

	if err := reporter.Write(result); err != nil {
		return err
	}
	if opts.outputPath != "" {
		logger.Info("Result written to file", zap.String("path", opts.outputPath), zap.Int("rows", result.RowCount))
	}
	return nil
}

func newToolCmd(provider toolboxProvider) *cobra.Command {
	var rawParams string

	toolCmd := &cobra.Command{
		Use:   "tool <name>",
		Short: "Invoke a bridge tool directly and print its JSON response",
		Long: `Runs one tool the way the bridge would, for example:

  cypherguard tool node_centrality --params '{"label":"Customer","limit":5}'
  cypherguard tool analyze_graph_paths --params '{"start_label":"Customer","start_property":"name","start_value":"Acme","end_label":"Product","end_property":"name","end_value":"Widget"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			var params map[string]any
			if rawParams != "" {
				if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
					return fmt.Errorf("--params must be a JSON object: %w", err)
				}
			}

			rt, cleanup, err := provider.Create(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			resp := mcp.NewHandlers(logger, rt.Toolbox).Dispatch(ctx, strings.ToLower(args[0]), params)
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			return checkResponse(resp)
		},
	}
	toolCmd.Flags().StringVar(&rawParams, "params", "", "Tool parameters as a JSON object")
	return toolCmd
}
