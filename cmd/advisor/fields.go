package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Print the effective field synonym map",
	Long:  `Shows, for every canonical concept, the provider field names tried in order after the optional fields file overlay.`,
	Args:  cobra.NoArgs,
	RunE:  runFields,
}

func runFields(cmd *cobra.Command, args []string) error {
	if err := initializeSystem(); err != nil {
		return err
	}
	defer shutdown()

	ctx := context.Background()
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	fields, err := loadFields(ctx, cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range fields.Concepts() {
		fmt.Fprintf(out, "%-28s %s\n", c, strings.Join(fields.Synonyms(c), ", "))
	}
	return nil
}
