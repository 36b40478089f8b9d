package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"doctag/internal/app"
	"doctag/internal/config"
	"doctag/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var verbose bool

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:     "doctagctl",
	Short:   "Administrative document classifier toolkit",
	Version: version,
	Long: `Generate training data, train and evaluate the document classifier, classify
files and drive the feedback retraining loop from the command line.

Settings come from doctag.yaml (or DOCTAG_CONFIG) and DOCTAG_* variables.`,
	Example: `  # Build a synthetic corpus and train the first model
  $ doctagctl generate --docs-per-category 200
  $ doctagctl train --promote

  # Classify a file
  $ doctagctl classify factura.pdf

  # See whether feedback calls for retraining, then run it
  $ doctagctl check
  $ doctagctl retrain`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		_ = godotenv.Load(".env")
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logging.Init(false, level)
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(retrainCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(classifyFolderCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, slog.Default())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdout(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
