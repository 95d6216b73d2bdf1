package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/sigil/internal/types"
)

var (
	captureSignature   string
	captureCategory    string
	captureDescription string
	captureSeverity    string
	capturePhase       string
	captureContext     string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture an error occurrence",
	Long:  "Append an error event to the log and create or update the matching pattern. When --signature is omitted it is derived deterministically from the description.",
	RunE:  runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&captureSignature, "signature", "",
		"Normalized error signature (derived from description when empty)")
	captureCmd.Flags().StringVar(&captureCategory, "category", "",
		"Error category, e.g. TypeError")
	captureCmd.Flags().StringVar(&captureDescription, "description", "",
		"Human-readable error description")
	captureCmd.Flags().StringVar(&captureSeverity, "severity", types.SeverityMedium,
		"Severity: low, medium, high, critical")
	captureCmd.Flags().StringVar(&capturePhase, "phase", "",
		"Lifecycle phase tag")
	captureCmd.Flags().StringVar(&captureContext, "context", "",
		"Structured context as a JSON object")
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var contextJSON json.RawMessage
	if captureContext != "" {
		contextJSON = json.RawMessage(captureContext)
	}

	eventID, err := db.CaptureError(context.Background(), types.CaptureParams{
		Signature:   captureSignature,
		Category:    captureCategory,
		Description: captureDescription,
		Severity:    captureSeverity,
		Phase:       capturePhase,
		Context:     contextJSON,
	})
	if err != nil {
		return err
	}

	if flagJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"event_id": eventID})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Captured error event %s\n", eventID)
	return nil
}
