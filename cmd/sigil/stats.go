package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/sigil/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show derived statistics",
	Long:  "Show the quality ratio (errors per milestone), mean solution effectiveness, and daily event velocity. Recomputed on demand from the event log.",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := metrics.NewEngine(db).Compute(context.Background())
	if err != nil {
		return err
	}

	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Quality ratio:    %.2f errors/milestone (lower is better)\n", stats.QualityRatio)
	fmt.Fprintf(out, "Effectiveness:    %.2f/5.0\n", stats.AIEffectiveness)
	fmt.Fprintf(out, "Daily velocity:   %d events/24h\n", stats.DailyVelocity)
	return nil
}
