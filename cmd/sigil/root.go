package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/sigil/internal/config"
	"github.com/sigil-dev/sigil/internal/store"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	flagConfigPath string
	flagDBPath     string
	flagRemoteURL  string
	flagAPIKey     string
	flagInstanceID string
	flagJSONOutput bool
)

var rootCmd = &cobra.Command{
	Use:     "sigil",
	Short:   "Sigil - local-first error pattern store",
	Long:    "Sigil captures software-error occurrences and remediations, deduplicates them into reusable patterns, and reconciles the local store against a central knowledge authority.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "",
		"Config file path (overrides SIGIL_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "",
		"Local database path (overrides config and SIGIL_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagRemoteURL, "remote", "",
		"Central authority URL (overrides config and SIGIL_REMOTE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "",
		"API key for the central authority (overrides config and SIGIL_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagInstanceID, "instance-id", "",
		"Instance identifier (overrides config and SIGIL_INSTANCE_ID)")
	rootCmd.PersistentFlags().BoolVar(&flagJSONOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(solutionCmd)
	rootCmd.AddCommand(milestoneCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig resolves configuration with the field-wise precedence
// flag > env > file > default.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if flagConfigPath != "" {
		cfg, err = config.LoadFromFile(flagConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	cfg.Apply(config.Overrides{
		DBPath:     flagDBPath,
		RemoteURL:  flagRemoteURL,
		APIKey:     flagAPIKey,
		InstanceID: flagInstanceID,
	})

	return cfg, nil
}

// openStore opens the local database described by cfg.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Database.Path, cfg.Capture.ProvenThreshold)
}

// initLogging installs the default slog handler. CLI commands log to stderr
// so stdout stays clean for command output.
func initLogging() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
