// File: cmd/classify.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/cypherguard/internal/mcp"
	"github.com/xkilldash9x/cypherguard/internal/observability"
)

// newClassifyCmd checks a statement or prompt without a database connection.
func newClassifyCmd() *cobra.Command {
	var params mcp.ClassifyParams

	classifyCmd := &cobra.Command{
		Use:   "classify",
		Short: "Report whether a statement or prompt would be allowed",
		Long: `Runs the intent pass on --prompt and the query pass on --query and prints
the verdicts as JSON. Nothing is executed and no database is contacted.
Exits with status 2 when the input would be refused.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if params.Query == "" && params.Prompt == "" {
				return fmt.Errorf("at least one of --query or --prompt is required")
			}

			// Classification needs neither an executor nor a schema.
			tb := mcp.NewToolbox(nil, nil, nil, observability.GetLogger())
			resp := tb.Classify(cmd.Context(), params)
			if err := checkResponse(resp); err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp.Data); err != nil {
				return err
			}
			if payload, ok := resp.Data.(mcp.ClassifyPayload); ok && !payload.Allowed {
				return &responseError{resp: mcp.CommandResponse{
					Status:         mcp.StatusBlocked,
					Error:          payload.Verdict.BlockedReason,
					Hint:           payload.Verdict.Hint,
					ErrorKind:      "blocked",
					MatchedPattern: payload.Verdict.MatchedPattern,
				}}
			}
			return nil
		},
	}

	classifyCmd.Flags().StringVarP(&params.Query, "query", "q", "", "Cypher statement to classify")
	classifyCmd.Flags().StringVarP(&params.Prompt, "prompt", "p", "", "Natural-language request to classify")
	return classifyCmd
}
