// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pdiddy/geo-enrich/internal/api"
	"github.com/pdiddy/geo-enrich/internal/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the Enrichment Service boundary over HTTP",
	Long: `Serve starts an HTTP server exposing POST /enrich, GET
/geo/{geo_id}/complete, and GET /geo/{geo_id}/report, the HTTP contract an
API layer drives this pipeline through.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "address to listen on")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	cfg := loadPipelineConfig()
	pipeline, err := bootstrap.Build(cfg, loadedSecrets)
	if err != nil {
		return fmt.Errorf("wiring pipeline: %w", err)
	}
	defer pipeline.Close()

	router := api.NewRouter(pipeline.Service, pipeline.Registry)
	fmt.Printf("Listening on %s\n", addr)
	return http.ListenAndServe(addr, router)
}
