package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/sigil/internal/types"
)

var milestonePhase string

var milestoneCmd = &cobra.Command{
	Use:   "milestone <note>",
	Short: "Record a project milestone",
	Args:  cobra.ExactArgs(1),
	RunE:  runMilestone,
}

func init() {
	milestoneCmd.Flags().StringVar(&milestonePhase, "phase", "",
		"Lifecycle phase tag")
}

func runMilestone(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eventID, err := db.AppendEvent(context.Background(), types.EventMilestone, milestonePhase, args[0], nil)
	if err != nil {
		return err
	}

	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"event_id": eventID})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recorded milestone event %s\n", eventID)
	return nil
}
