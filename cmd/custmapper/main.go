package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"yashubustudio/custmapper/categorizer"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger = zap.NewNop()

	newLogger = func(verbose bool) (*zap.Logger, error) {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		return config.Build()
	}
)

var rootCmd = &cobra.Command{
	Use:   "custmapper",
	Short: "Map customer names to parent groups and industry categories",
	Long: `custmapper keeps a ledger of customer names with their parent group, category and
the source of each decision. New names are resolved by keyword rules first, then by a
remote model in batches; whatever remains is left for manual review.

Records marked Manual are never changed by a run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./"+categorizer.DefaultConfigFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd, enrichCmd, overrideCmd, reopenCmd, showCmd, initConfigCmd)
}

func loadConfig() (categorizer.Config, error) {
	cfg, err := categorizer.LoadConfig(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// runRoot executes the command tree and flushes the logger whether or not the
// command succeeded.
func runRoot(ctx context.Context) error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	if err := runRoot(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "custmapper: %v\n", err)
		os.Exit(1)
	}
}
