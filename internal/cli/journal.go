package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stategraph/pkg/stategraph/journal"
)

func newJournalCmd() *cobra.Command {
	var dbPath string

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect a step journal written with --journal",
	}
	journalCmd.PersistentFlags().StringVar(&dbPath, "db", "stategraph.db", "SQLite journal file")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List journalled run IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := journal.NewSQLiteStore(dbPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			runs, err := store.Runs()
			if err != nil {
				return err
			}
			for _, id := range runs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the steps of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.NewSQLiteStore(dbPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			records, err := store.List(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no steps journalled for run %q", args[0])
			}
			out := cmd.OutOrStdout()
			for _, r := range records {
				fmt.Fprintf(out, "%3d  %-10s  %-24s -> %-24s %8s",
					r.Step, r.Outcome,
					strings.Join(r.Frontier, ","), strings.Join(r.Next, ","),
					r.Duration.Round(time.Microsecond))
				if r.Error != "" {
					fmt.Fprintf(out, "  error: %s", r.Error)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	journalCmd.AddCommand(runsCmd, showCmd)
	return journalCmd
}
