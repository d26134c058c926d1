package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Fundamental equity advisor",
	Long: `Scores a listed company from its financial statements, monthly revenue,
institutional flows and market data, and prints an explained recommendation.
Data is delayed and the output is advice only; no orders are ever placed.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the config file (empty for defaults)")
	rootCmd.AddCommand(analyzeCmd, fieldsCmd, digestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
