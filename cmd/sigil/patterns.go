package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List known error patterns",
	Long:  "List deduplicated error patterns with occurrence counts and sync state, most frequent first.",
	RunE:  runPatterns,
}

func runPatterns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	patterns, err := db.ListPatterns(context.Background())
	if err != nil {
		return err
	}

	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), patterns)
	}

	if len(patterns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No patterns recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNATURE\tCATEGORY\tCOUNT\tSOLVED\tSYNCED")
	for _, p := range patterns {
		solved := "no"
		if p.Solution != nil && *p.Solution != "" {
			solved = "yes"
		}
		synced := "no"
		if p.Synced() {
			synced = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			truncate(p.Signature, 48), p.Category, p.OccurrenceCount, solved, synced)
	}
	return w.Flush()
}
