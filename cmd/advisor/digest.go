package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"equity-advisor/internal/export"
	"equity-advisor/internal/journal"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Summarize a day of journaled runs into a CSV",
	Args:  cobra.NoArgs,
	RunE:  runDigest,
}

var (
	digestDate string
	digestDir  string
)

func init() {
	digestCmd.Flags().StringVar(&digestDate, "date", "", "Day to summarize, YYYY-MM-DD (default today)")
	digestCmd.Flags().StringVar(&digestDir, "out", "exports", "Directory the digest is written under")
}

func runDigest(cmd *cobra.Command, args []string) error {
	if err := initializeSystem(); err != nil {
		return err
	}
	defer shutdown()

	ctx := context.Background()
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return errors.New("journal is disabled; set journal.enabled in the config")
	}

	day := time.Now()
	if digestDate != "" {
		day, err = time.ParseInLocation("2006-01-02", digestDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	entries, err := journal.New(cfg.Journal.Dir).ReadDay(day)
	if err != nil {
		return err
	}
	p, err := export.New(digestDir).WriteDigest(day, entries)
	if err != nil {
		return err
	}
	if p == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs journaled on", day.Format("2006-01-02"))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "digest written:", p)
	return nil
}
