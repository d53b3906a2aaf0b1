package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/casedir"
	"github.com/casetrace/casetrace/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "casetrace",
		Short:         "Cold-case investigation workbench",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(),
		caseCmd(),
		sourceCmd(),
		evidenceCmd(),
		hypothesisCmd(),
		achCmd(),
		timelineCmd(),
		suspectCmd(),
	)
	return root
}

// loadConfig reads .env when present and builds configuration from the
// environment.
func loadConfig() (config.Config, error) {
	_ = godotenv.Load()
	return config.Load()
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// openCase resolves the --case flag against the workspace.
func openCase(ctx context.Context, slug string) (*casedir.Case, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	mgr, err := casedir.NewManager(cfg.WorkspaceDir, newLogger(cfg))
	if err != nil {
		return nil, err
	}
	return mgr.Open(ctx, slug)
}

// printJSON writes indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
