// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api implements the HTTP contract exposed to callers of the
// Enrichment Service boundary: POST /enrich and GET /geo/{geo_id}/complete,
// per SPEC_FULL.md § 6.
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/geo-enrich/internal/coordinator"
	"github.com/pdiddy/geo-enrich/internal/enrichment"
	"github.com/pdiddy/geo-enrich/internal/registry"
	"github.com/pdiddy/geo-enrich/internal/report"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

// NewRouter builds the chi router backing the Enrichment Service's HTTP
// surface. svc drives /enrich; reg answers read-only snapshot queries.
func NewRouter(svc *enrichment.Service, reg *registry.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))

	r.Post("/enrich", handleEnrich(svc))
	r.Get("/geo/{geo_id}/complete", handleComplete(reg))
	r.Get("/geo/{geo_id}/report", handleReport(reg))
	r.Get("/health", handleHealth)

	return r
}

// enrichRequestBody mirrors spec.md §6's EnrichRequest.
type enrichRequestBody struct {
	Datasets []struct {
		GEOID          string   `json:"geo_id"`
		Title          string   `json:"title"`
		Organism       string   `json:"organism"`
		PubmedIDs      []string `json:"pubmed_ids"`
		Platform       string   `json:"platform"`
	} `json:"datasets"`
	DesiredLevel string `json:"desired_level"`
}

func handleEnrich(svc *enrichment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body enrichRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if len(body.Datasets) == 0 {
			writeError(w, http.StatusBadRequest, "datasets must not be empty")
			return
		}

		desired := types.CompletenessLevel(body.DesiredLevel)
		if desired == "" {
			desired = types.StateFullyEnriched
		}

		requests := make([]enrichment.Request, len(body.Datasets))
		for i, d := range body.Datasets {
			requests[i] = enrichment.Request{
				Seed: coordinator.DatasetSeed{
					GEOID:     d.GEOID,
					Title:     d.Title,
					Organism:  d.Organism,
					PubmedIDs: d.PubmedIDs,
					Platform:  d.Platform,
				},
				DesiredLevel: desired,
			}
		}

		resp := svc.Enrich(r.Context(), requests, nil, os.Stderr)
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleComplete(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		geoID := chi.URLParam(r, "geo_id")
		data, err := reg.GetComplete(r.Context(), geoID)
		if err != nil {
			writeError(w, http.StatusNotFound, "dataset not found: "+geoID)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func handleReport(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		geoID := chi.URLParam(r, "geo_id")
		data, err := reg.GetComplete(r.Context(), geoID)
		if err != nil {
			writeError(w, http.StatusNotFound, "dataset not found: "+geoID)
			return
		}
		md := report.RenderMarkdown(report.Build(data))
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(md))
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
