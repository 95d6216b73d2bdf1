package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/sigil/internal/types"
)

var (
	solutionText          string
	solutionEffectiveness int
	solutionSnippet       string
	solutionPhase         string
)

var solutionCmd = &cobra.Command{
	Use:   "solution <signature>",
	Short: "Record a remediation for a known error pattern",
	Long:  "Append a solution event for the given signature. The pattern's canonical solution is overwritten only when the effectiveness score clears the proven threshold.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSolution,
}

func init() {
	solutionCmd.Flags().StringVar(&solutionText, "text", "",
		"Remediation text (required)")
	solutionCmd.Flags().IntVar(&solutionEffectiveness, "effectiveness", 3,
		"Effectiveness score 1-5")
	solutionCmd.Flags().StringVar(&solutionSnippet, "snippet", "",
		"Optional code snippet")
	solutionCmd.Flags().StringVar(&solutionPhase, "phase", "",
		"Lifecycle phase tag")
	solutionCmd.MarkFlagRequired("text")
}

func runSolution(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eventID, err := db.AddSolution(context.Background(), types.SolutionParams{
		Signature:     args[0],
		Text:          solutionText,
		Effectiveness: solutionEffectiveness,
		CodeSnippet:   solutionSnippet,
		Phase:         solutionPhase,
	})
	if err != nil {
		return err
	}

	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"event_id": eventID})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recorded solution event %s\n", eventID)
	return nil
}
