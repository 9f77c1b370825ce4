package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yashubustudio/custmapper/categorizer"
	"yashubustudio/custmapper/internal/app"
)

var (
	inputPath    string
	inputColumn  string
	rulesPath    string
	metricsPath  string
	noCheckpoint bool
	outputPath   string
)

// runCmd resolves every unknown name of an input file into the ledger
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve new names from an input file into the ledger",
	Long: `Reads the input file (CSV, TSV or one name per line), finds the names that are not in
the ledger yet and resolves them:
  1. Keyword rules (Hard-Rule)
  2. Remote model in batches (Remote-AI), skipped for the rest of the run once the quota is exhausted
  3. Everything else is recorded as Uncategorized (Check-Manually)

The ledger is rewritten only when new records were added.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

// enrichCmd joins an input file with the ledger
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Append parent group and category from the ledger to an input file",
	Args:  cobra.NoArgs,
	RunE:  runEnrich,
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, enrichCmd} {
		cmd.Flags().StringVarP(&inputPath, "input", "i", "", "CSV/TSV/text file with customer names")
		cmd.Flags().StringVar(&inputColumn, "column", "", "Column name or #index holding the names (default: auto-detect)")
		_ = cmd.MarkFlagRequired("input")
	}
	runCmd.Flags().StringVar(&rulesPath, "rules", "", "JSON keyword table replacing the configured rules")
	runCmd.Flags().StringVar(&metricsPath, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	runCmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "Do not journal remote batches for resume")
	enrichCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output CSV (default: stdout)")
}

func readInput(cfg categorizer.Config) (categorizer.InputTable, error) {
	column := inputColumn
	if column == "" {
		column = cfg.InputColumn
	}
	table, err := categorizer.ParseInput(inputPath, categorizer.InputParseOptions{NameColumn: column})
	if err != nil {
		return table, fmt.Errorf("read input: %w", err)
	}
	return table, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if rulesPath != "" {
		rules, err := categorizer.LoadRuleFile(rulesPath)
		if err != nil {
			return err
		}
		cfg.Rules = rules
	}
	table, err := readInput(cfg)
	if err != nil {
		return err
	}
	names := table.Names()
	if len(names) == 0 {
		return errors.New("input file does not contain any names")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *categorizer.Metrics
	if metricsPath != "" {
		metrics = categorizer.NewMetrics()
	}
	pipeline, err := app.OpenPipeline(ctx, cfg, app.PipelineOptions{
		Logger:       logger,
		Metrics:      metrics,
		NoCheckpoint: noCheckpoint,
	})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	_, summary, runErr := pipeline.Run(ctx, names)
	if metrics != nil {
		if err := metrics.WriteTextfile(metricsPath); err != nil {
			logger.Warn("Metrics export failed", zap.String("path", metricsPath), zap.Error(err))
		}
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("interrupted, ledger left unchanged; completed remote batches resume on the next run")
		}
		return runErr
	}
	printSummary(cmd, cfg, summary)
	return nil
}

func printSummary(cmd *cobra.Command, cfg categorizer.Config, s categorizer.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "inputs: %d, new: %d, added: %d\n", s.Inputs, s.Unresolved, s.Added)
	sources := make([]categorizer.Provenance, 0, len(s.ByProvenance))
	for src := range s.ByProvenance {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Rank() < sources[j].Rank() })
	for _, src := range sources {
		fmt.Fprintf(out, "  %-15s %d\n", src, s.ByProvenance[src])
	}
	if s.Resumed > 0 {
		fmt.Fprintf(out, "resumed from checkpoint: %d\n", s.Resumed)
	}
	if s.BreakerOpen {
		fmt.Fprintln(out, "remote quota exhausted: remaining names need manual review")
	}
	if s.Written {
		fmt.Fprintf(out, "ledger written to %s\n", cfg.LedgerPath)
	} else {
		fmt.Fprintln(out, "ledger unchanged")
	}
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := readInput(cfg)
	if err != nil {
		return err
	}
	ledger, err := categorizer.LoadLedger(cfg.LedgerPath)
	if err != nil {
		return err
	}
	if outputPath == "" {
		return categorizer.WriteEnriched(cmd.OutOrStdout(), table, ledger)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := categorizer.WriteEnriched(f, table, ledger); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	logger.Info("Enriched file written", zap.String("path", outputPath), zap.Int("rows", len(table.Entities)))
	return nil
}
