// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/geo-enrich/internal/bootstrap"
	"github.com/pdiddy/geo-enrich/internal/coordinator"
	"github.com/pdiddy/geo-enrich/internal/enrichment"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [geo-ids...]",
	Short: "Drive one or more GEO datasets through the completeness ladder",
	Long: `Enrich runs Citation Discovery, the Full-Text Manager, the Download
Manager, and the PDF Parser for each GEO accession given, up to the desired
completeness level, persisting progress to the registry before every stage
transition.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().String("desired-level", string(types.StateFullyEnriched), "target completeness level (METADATA, WITH_CITATIONS, WITH_URLS, WITH_PDFS, FULLY_ENRICHED)")
	enrichCmd.Flags().StringSlice("pubmed-ids", nil, "PubMed IDs to seed discovery with, applied to every geo-id given")
	enrichCmd.Flags().Bool("json", false, "print the EnrichResponse as JSON instead of a one-line summary per dataset")

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	desiredLevel, _ := cmd.Flags().GetString("desired-level")
	pubmedIDs, _ := cmd.Flags().GetStringSlice("pubmed-ids")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg := loadPipelineConfig()
	pipeline, err := bootstrap.Build(cfg, loadedSecrets)
	if err != nil {
		return fmt.Errorf("wiring pipeline: %w", err)
	}
	defer pipeline.Close()

	requests := make([]enrichment.Request, len(args))
	for i, geoID := range args {
		requests[i] = enrichment.Request{
			Seed:         coordinator.DatasetSeed{GEOID: geoID, PubmedIDs: pubmedIDs},
			DesiredLevel: types.CompletenessLevel(desiredLevel),
		}
	}

	resp := pipeline.Service.Enrich(cmd.Context(), requests, nil, os.Stderr)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	failed := 0
	for _, snap := range resp.Datasets {
		if snap.Err != "" {
			failed++
			fmt.Printf("%s: reached %s, error: %s\n", snap.GEOID, snap.Reached, snap.Err)
			continue
		}
		fmt.Printf("%s: reached %s (%d originating, %d citing, %d/%d downloads succeeded)\n",
			snap.GEOID, snap.Reached, snap.Statistics.Original, snap.Statistics.Citing,
			snap.Statistics.SuccessfulDownloads, snap.Statistics.SuccessfulDownloads+snap.Statistics.FailedDownloads)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d dataset(s) hit an error", failed, len(resp.Datasets))
	}
	return nil
}
