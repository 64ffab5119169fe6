// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/geo-enrich/internal/registry"
	"github.com/pdiddy/geo-enrich/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <geo-id>",
	Short: "Render a Markdown summary of a dataset's complete snapshot",
	Long: `Report reads a GEO dataset's snapshot from the registry and renders a
human-readable Markdown summary: title, completeness ladder position,
per-publication download history, and a references list.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("output", "", "write the report to this file instead of stdout")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	geoID := args[0]
	output, _ := cmd.Flags().GetString("output")

	cfg := loadPipelineConfig()
	reg, err := registry.Open(cfg.Registry.RootDir)
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	data, err := reg.GetComplete(cmd.Context(), geoID)
	if err != nil {
		return fmt.Errorf("loading %s: %w", geoID, err)
	}

	md := report.RenderMarkdown(report.Build(data))

	if output == "" {
		fmt.Print(md)
		return nil
	}
	if err := os.WriteFile(output, []byte(md), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote report to %s\n", output)
	return nil
}
