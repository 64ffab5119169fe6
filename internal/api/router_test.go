// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/geo-enrich/internal/enrichment"
	"github.com/pdiddy/geo-enrich/internal/registry"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Open(t.TempDir())
	if err != nil {
		t.Fatalf("registry.Open() error = %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestHandleCompleteNotFound(t *testing.T) {
	reg := testRegistry(t)
	r := NewRouter(&enrichment.Service{}, reg)

	req := httptest.NewRequest(http.MethodGet, "/geo/GSE404/complete", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleCompleteFound(t *testing.T) {
	reg := testRegistry(t)
	if err := reg.UpsertDataset(t.Context(), types.GEODataset{GEOID: "GSE1", Title: "Test", Completeness: types.StateMetadata}); err != nil {
		t.Fatalf("UpsertDataset() error = %v", err)
	}

	r := NewRouter(&enrichment.Service{}, reg)
	req := httptest.NewRequest(http.MethodGet, "/geo/GSE1/complete", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var data types.CompleteGEOData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if data.Dataset.GEOID != "GSE1" {
		t.Errorf("Dataset.GEOID = %q, want GSE1", data.Dataset.GEOID)
	}
}

func TestHandleReportRendersMarkdown(t *testing.T) {
	reg := testRegistry(t)
	if err := reg.UpsertDataset(t.Context(), types.GEODataset{GEOID: "GSE2", Title: "Report test", Completeness: types.StateMetadata}); err != nil {
		t.Fatalf("UpsertDataset() error = %v", err)
	}

	r := NewRouter(&enrichment.Service{}, reg)
	req := httptest.NewRequest(http.MethodGet, "/geo/GSE2/report", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "# GSE2") {
		t.Errorf("report body missing title heading:\n%s", rec.Body.String())
	}
}

func TestHandleEnrichRejectsEmptyDatasets(t *testing.T) {
	reg := testRegistry(t)
	r := NewRouter(&enrichment.Service{}, reg)

	req := httptest.NewRequest(http.MethodPost, "/enrich", strings.NewReader(`{"datasets":[]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleHealth(t *testing.T) {
	reg := testRegistry(t)
	r := NewRouter(&enrichment.Service{}, reg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
