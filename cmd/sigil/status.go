package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/sigil/internal/metrics"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a one-line project status summary",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := metrics.NewEngine(db).ContextSummary(context.Background())
	if err != nil {
		return err
	}

	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"summary": summary})
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}
