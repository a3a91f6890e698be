package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// NewHistoryCmd constructs the `ragq history` command, which lists the most
// recent answered questions.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently answered questions",
		Long: `List recently answered questions, newest first.

Answers are recorded by 'ragq query' and 'ragq serve' in the history
database (~/.ragq/store.db, or RAGQ_HISTORY_DB). Set RAGQ_HISTORY_DB=disabled
to turn recording off.

Examples:
  ragq history
  ragq history --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("history: --limit must be positive, got %d", limit)
			}
			ctx := cmd.Context()
			a := appFrom(ctx)

			hs := openHistory(a.cfg, a.log)
			if hs == nil {
				return errors.New("history: query history is disabled or unavailable")
			}
			defer func() { _ = hs.Close() }()

			recs, err := hs.RecentQueries(ctx, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			return writeHistory(cmd.OutOrStdout(), recs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}
