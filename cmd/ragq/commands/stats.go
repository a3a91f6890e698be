package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragq-go/internal/vectorstore"
)

// NewStatsCmd constructs the `ragq stats` command, which reports what the
// configured vector store holds.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the vector store backend, metric, dimensionality and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a := appFrom(ctx)

			sc, err := storeConfig(a.cfg)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			st, err := openStore(ctx, a.cfg, a.log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer func() { _ = st.Close() }()

			n, err := st.Len(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			location := sc.Path
			if sc.Backend == vectorstore.BackendQdrant {
				location = fmt.Sprintf("%s:%d/%s", sc.Qdrant.Host, sc.Qdrant.Port, sc.Collection)
			}
			dims := "unset"
			if d := st.Dimensions(); d > 0 {
				dims = fmt.Sprint(d)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "backend:\t%s\n", firstNonEmpty(sc.Backend, vectorstore.BackendSQLite))
			fmt.Fprintf(tw, "location:\t%s\n", firstNonEmpty(location, "(in memory)"))
			fmt.Fprintf(tw, "metric:\t%s\n", st.Metric())
			fmt.Fprintf(tw, "dimensions:\t%s\n", dims)
			fmt.Fprintf(tw, "documents:\t%d\n", n)
			if d, ok := st.(*vectorstore.DurableMemoryStore); ok {
				persisted, err := d.Persisted(ctx)
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}
				fmt.Fprintf(tw, "persisted:\t%d\n", persisted)
			}
			return tw.Flush()
		},
	}
}
