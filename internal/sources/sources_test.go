// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pdiddy/geo-enrich/internal/httputil"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

func init() {
	httputil.TransientRetryMinDelay = time.Millisecond
	httputil.TransientRetryJitter = 0
}

func jsonTestServer(statusCode int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprint(w, body)
	}))
}

func TestOpenAlexFetchCitations(t *testing.T) {
	ts := jsonTestServer(http.StatusOK, `{"results":[
		{"title":"A citing paper","doi":"https://doi.org/10.1/citing","publication_year":2023,"cited_by_count":4,
		 "authorships":[{"author":{"display_name":"A. Author"}}]}
	]}`)
	defer ts.Close()

	old := openAlexWorksBase
	openAlexWorksBase = ts.URL
	defer func() { openAlexWorksBase = old }()

	o := NewOpenAlex(ts.Client(), "test@example.org")
	result, err := o.FetchCitations(context.Background(), types.Publication{DOI: "10.1/seed"})
	if err != nil {
		t.Fatalf("FetchCitations() error = %v", err)
	}
	if result.Status != StatusOk {
		t.Fatalf("Status = %v, want StatusOk", result.Status)
	}
	if len(result.Publications) != 1 {
		t.Fatalf("len(Publications) = %d, want 1", len(result.Publications))
	}
	pub := result.Publications[0]
	if pub.DOI != "10.1/citing" || pub.Relationship != types.RelationCiting {
		t.Errorf("unexpected publication: %+v", pub)
	}
}

func TestOpenAlexFetchCitationsNoDOI(t *testing.T) {
	o := NewOpenAlex(http.DefaultClient, "")
	result, err := o.FetchCitations(context.Background(), types.Publication{})
	if err != nil {
		t.Fatalf("FetchCitations() error = %v", err)
	}
	if result.Status != StatusEmpty {
		t.Errorf("Status = %v, want StatusEmpty", result.Status)
	}
}

func TestUnpaywallFetchURLs(t *testing.T) {
	ts := jsonTestServer(http.StatusOK, `{"is_oa":true,"best_oa_location":{"url_for_pdf":"https://example.org/paper.pdf"}}`)
	defer ts.Close()

	old := unpaywallBase
	unpaywallBase = ts.URL + "/"
	defer func() { unpaywallBase = old }()

	u := NewUnpaywall(ts.Client(), "contact@example.org")
	result, err := u.FetchURLs(context.Background(), types.Publication{DOI: "10.1/paper"})
	if err != nil {
		t.Fatalf("FetchURLs() error = %v", err)
	}
	if result.Status != StatusOk || len(result.Candidates) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Candidates[0].URL != "https://example.org/paper.pdf" {
		t.Errorf("URL = %q", result.Candidates[0].URL)
	}
}

func TestUnpaywallRequiresEmail(t *testing.T) {
	u := NewUnpaywall(http.DefaultClient, "")
	result, err := u.FetchURLs(context.Background(), types.Publication{DOI: "10.1/paper"})
	if err != nil {
		t.Fatalf("FetchURLs() error = %v", err)
	}
	if result.Status != StatusDisabled {
		t.Errorf("Status = %v, want StatusDisabled", result.Status)
	}
}

func TestArxivFetchPDFURL(t *testing.T) {
	a := NewArxiv()
	result, err := a.FetchPDFURL(context.Background(), types.Publication{ArxivID: "2301.07041"})
	if err != nil {
		t.Fatalf("FetchPDFURL() error = %v", err)
	}
	if result.Status != StatusOk || result.Candidates[0].URL != arxivPDFBase+"2301.07041" {
		t.Fatalf("result = %+v", result)
	}
	if result.Candidates[0].Type != types.URLDirectPDF || result.Candidates[0].Priority != -2 {
		t.Errorf("unexpected candidate shape: %+v", result.Candidates[0])
	}
}

func TestPMCFetchURLs(t *testing.T) {
	p := NewPMC()
	result, err := p.FetchURLs(context.Background(), types.Publication{PMCID: "PMC1234567"})
	if err != nil {
		t.Fatalf("FetchURLs() error = %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(result.Candidates))
	}
}

func TestGetJSONStatusClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       SourceStatus
	}{
		{"ok", http.StatusOK, StatusOk},
		{"rate limited", http.StatusTooManyRequests, StatusRateLimited},
		{"forbidden", http.StatusForbidden, StatusDenied},
		{"not found", http.StatusNotFound, StatusEmpty},
		{"server error", http.StatusInternalServerError, StatusTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := jsonTestServer(tt.statusCode, `{}`)
			defer ts.Close()

			_, status, _ := getJSON(context.Background(), ts.Client(), ts.URL, "test")
			if status != tt.want {
				t.Errorf("status = %v, want %v", status, tt.want)
			}
		})
	}
}
