package cmd

import (
	"fmt"
	"os"

	"ap-tools/core/config"
	"ap-tools/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "ap-tools",
	Short: "Archipelago host toolbelt",
	Long: `ap-tools keeps a self-hosted Archipelago instance running: it manages
the source checkout and its venv, keeps custom .apworld packages current
from their GitHub releases, generates seeds, archives them, edits host.yaml
and exposes the running server over TLS.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Use the application's standard logger for error reporting
		// We default to console format to match user expectations (CLI tool)
		// We use "debug" level configuration to get ISO8601 timestamps (DevConfig) instead of Epoch (ProdConfig)
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			// Log the error with structured logger (Console encoding will make it pretty)
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the logger every command
// starts from.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logg)
	return cfg, logg, nil
}

// requireRepo guards the commands that cannot work without a checkout.
func requireRepo(cfg *config.Config) error {
	if cfg.Archipelago.Repo == "" {
		return fmt.Errorf("archipelago.repo is not configured, set ARCHIPELAGO_REPO or add it to .env")
	}
	return nil
}

// confirm asks the user to type 'yes' before something destructive happens.
func confirm(prompt string) bool {
	fmt.Printf("%s type 'yes' to confirm: ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == "yes"
}
