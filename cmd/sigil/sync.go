package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/sigil/internal/sync"
	"github.com/sigil-dev/sigil/internal/types"
	"github.com/sigil-dev/sigil/internal/worker"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local store with the central authority",
	Long:  "Push unsynced patterns and solutions to the central authority and record the returned identifiers. Safe to re-run after partial failure; with --watch, reconciles periodically until interrupted.",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false,
		"Keep reconciling on the configured interval until interrupted")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client := sync.NewHTTPClient(cfg.Remote.URL, cfg.Remote.APIKey, time.Duration(cfg.Remote.Timeout))
	reconciler := sync.NewReconciler(db, client, sync.Options{
		InstanceID:   cfg.ResolveInstanceID(),
		Language:     cfg.Capture.Language,
		Technologies: cfg.Capture.Technologies,
	})

	if syncWatch {
		ctx, cancel := signal.NotifyContext(context.Background(),
			syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		worker.NewSyncCoordinator(reconciler, time.Duration(cfg.Sync.Interval)).Run(ctx)
		return nil
	}

	summary := reconciler.Run(context.Background())
	return printSummary(cmd, summary)
}

func printSummary(cmd *cobra.Command, summary *types.SyncSummary) error {
	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), summary)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Patterns synced:   %d (failed: %d)\n", summary.PatternsSynced, summary.PatternsFailed)
	fmt.Fprintf(out, "Solutions synced:  %d (failed: %d)\n", summary.SolutionsSynced, summary.SolutionsFailed)
	if summary.BatchAccepted > 0 || summary.BatchFailed > 0 {
		fmt.Fprintf(out, "Remote batch:      accepted %d, rejected %d\n", summary.BatchAccepted, summary.BatchFailed)
	}
	for _, msg := range summary.Errors {
		fmt.Fprintf(out, "Error: %s\n", msg)
	}
	return nil
}
