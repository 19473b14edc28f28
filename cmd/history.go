// File: cmd/history.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/mcp"
	"github.com/xkilldash9x/cypherguard/internal/observability"
	"github.com/xkilldash9x/cypherguard/internal/reporting"
	"github.com/xkilldash9x/cypherguard/internal/store"
)

var historyColumns = []string{"created_at", "tool", "state", "pass", "category", "matched_pattern", "row_count", "duration_ms", "query"}

func newHistoryCmd(provider toolboxProvider) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently audited tool calls",
		Long:  "Lists the most recent calls recorded in the audit store. Requires audit.enabled.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			resp := rt.Toolbox.History(ctx, mcp.HistoryParams{Limit: limit})
			if err := checkResponse(resp); err != nil {
				return err
			}
			entries, _ := resp.Data.([]store.Entry)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), reporting.Table(historyColumns, historyRows(entries)))
			return err
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of entries to show (default audit.recent_limit)")
	historyCmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	historyCmd.AddCommand(newHistoryPruneCmd(provider))
	return historyCmd
}

func newHistoryPruneCmd(provider toolboxProvider) *cobra.Command {
	var olderThan time.Duration

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audited calls older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
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

			if rt.History == nil {
				return fmt.Errorf("query history is not enabled; set audit.enabled and audit.database_url")
			}
			cutoff := time.Now().Add(-olderThan)
			n, err := rt.History.Prune(ctx, cutoff)
			if err != nil {
				return err
			}
			logger.Info("Pruned query history", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries older than %s.\n", n, cutoff.UTC().Format(time.RFC3339))
			return err
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete entries older than this")
	return pruneCmd
}

func historyRows(entries []store.Entry) []map[string]any {
	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]any{
			"created_at":      e.CreatedAt.UTC().Format(time.RFC3339),
			"tool":            e.Tool,
			"state":           e.State,
			"pass":            e.Pass,
			"category":        e.Category,
			"matched_pattern": e.MatchedPattern,
			"row_count":       e.RowCount,
			"duration_ms":     e.DurationMs,
			"query":           e.Query,
		})
	}
	return rows
}
