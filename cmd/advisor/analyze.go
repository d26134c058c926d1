package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"equity-advisor/internal/export"
	"equity-advisor/internal/export/exportobs"
	"equity-advisor/internal/logger"
	"equity-advisor/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol...]",
	Short: "Score one or more securities",
	Long: `Acquires statements, revenue, flows and prices for each symbol, computes the
metric bundle and prints the scored recommendation with its reasons.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeJSON      bool
	analyzeExportDir string
)

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON")
	analyzeCmd.Flags().StringVar(&analyzeExportDir, "export", "", "Write CSV tables and scores under this directory")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := initializeSystem(); err != nil {
		return err
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := initializeApp(ctx, configPath)
	if err != nil {
		return err
	}

	failed := 0
	for _, symbol := range args {
		if err := analyzeOne(ctx, a, symbol); err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed++
			logger.ErrorWithErr(ctx, "Analysis failed", err, "symbol", symbol)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d symbols failed", failed, len(args))
	}
	return nil
}

func analyzeOne(ctx context.Context, a *app, symbol string) error {
	r, err := a.advisor.Analyze(ctx, symbol)
	if err != nil {
		return err
	}
	if err := printReport(r); err != nil {
		return err
	}

	if analyzeExportDir != "" {
		paths, err := exportobs.Wrap(export.New(analyzeExportDir)).Export(ctx, r)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		for _, p := range paths {
			fmt.Fprintln(os.Stderr, "wrote", p)
		}
	}

	if a.journal != nil {
		if _, err := a.journal.Append(r); err != nil {
			logger.Warn(ctx, "Failed to append to journal", "symbol", r.Symbol, "error", err)
		}
	}
	return nil
}

func printReport(r *report.Report) error {
	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return r.WriteText(os.Stdout)
}
