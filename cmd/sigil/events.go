package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent events",
	Long:  "Show the most recent events from the append-only log, newest first. Display only; counts come from `sigil stats`.",
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 10,
		"Maximum number of events to show")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.RecentEvents(context.Background(), eventsLimit)
	if err != nil {
		return err
	}

	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), events)
	}

	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tPHASE\tCONTENT")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ev.CreatedAt.Format(time.RFC3339), ev.Type, ev.Phase, truncate(ev.Content, 60))
	}
	return w.Flush()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
