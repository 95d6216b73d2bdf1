package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/sigil/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Bulk-insert pre-authored patterns from a YAML seed file",
	Long:  "Load framework-specific seed patterns into the local store. Signatures that already exist locally are left untouched.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := seed.Load(args[0])
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := seed.Apply(context.Background(), db, f)
	if err != nil {
		return err
	}

	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"framework": f.Framework,
			"inserted":  result.Inserted,
			"skipped":   result.Skipped,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d patterns (%d already present)\n", result.Inserted, result.Skipped)
	return nil
}
