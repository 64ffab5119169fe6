// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	return &Manager{
		Client: http.DefaultClient,
		Config: types.DownloadConfig{
			HTTPConfig: types.HTTPConfig{UserAgent: "geo-enrich-test"},
			RootDir:    dir,
			MinBytes:   4,
			MaxBytes:   1 << 20,
		},
		Sem: semaphore.NewWeighted(4),
	}
}

func TestRunAcceptsValidPDF(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake pdf body"))
	}))
	defer ts.Close()

	m := testManager(t)
	pub := types.Publication{Key: "pmid:1"}
	candidates := []types.URLCandidate{{URL: ts.URL, Type: types.URLDirectPDF}}

	result, err := m.Run(context.Background(), "GSE1", pub, candidates)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success, attempts = %+v", result.Attempts)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
	if result.Attempts[0].Outcome != types.AttemptSucceeded {
		t.Errorf("Outcome = %v, want AttemptSucceeded", result.Attempts[0].Outcome)
	}
}

func TestRunRejectsNonPDFMagic(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not a pdf</html>"))
	}))
	defer ts.Close()

	m := testManager(t)
	candidates := []types.URLCandidate{{URL: ts.URL, Type: types.URLDirectPDF}}

	result, err := m.Run(context.Background(), "GSE1", types.Publication{Key: "pmid:1"}, candidates)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Succeeded() {
		t.Fatal("expected failure for non-PDF content")
	}
	if result.Attempts[0].Outcome != types.AttemptInvalidContent {
		t.Errorf("Outcome = %v, want AttemptInvalidContent", result.Attempts[0].Outcome)
	}
}

func TestRunFollowsCitationPDFMeta(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta name="citation_pdf_url" content="PDFPLACEHOLDER"></head></html>`))
	})
	mux.HandleFunc("/real.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 real pdf"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	// landing page references the PDF by absolute URL, resolved after the
	// server is up so it can include ts.URL.
	mux.HandleFunc("/landing2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta name="citation_pdf_url" content="` + ts.URL + `/real.pdf"></head></html>`))
	})

	m := testManager(t)
	candidates := []types.URLCandidate{{URL: ts.URL + "/landing2", Type: types.URLLandingPage}}

	result, err := m.Run(context.Background(), "GSE1", types.Publication{Key: "pmid:1"}, candidates)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success via citation_pdf_url follow, attempts = %+v", result.Attempts)
	}
	if len(result.Attempts) != 2 {
		t.Errorf("len(Attempts) = %d, want 2 (landing page + followed pdf)", len(result.Attempts))
	}
}

func TestRunFollowsCitationPDFMetaForHTMLFullText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/real.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 real pdf"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta name="citation_pdf_url" content="` + ts.URL + `/real.pdf"></head></html>`))
	})

	m := testManager(t)
	candidates := []types.URLCandidate{{URL: ts.URL + "/article", Type: types.URLHTMLFullText}}

	result, err := m.Run(context.Background(), "GSE1", types.Publication{Key: "pmid:1"}, candidates)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success via citation_pdf_url follow from html-fulltext, attempts = %+v", result.Attempts)
	}
}

func TestRunFollowsCitationPDFMetaForDOIResolver(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/real.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 real pdf"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/doi-landing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta name="citation_pdf_url" content="` + ts.URL + `/real.pdf"></head></html>`))
	})

	m := testManager(t)
	candidates := []types.URLCandidate{{URL: ts.URL + "/doi-landing", Type: types.URLDOIResolver}}

	result, err := m.Run(context.Background(), "GSE1", types.Publication{Key: "pmid:1"}, candidates)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success via citation_pdf_url follow from doi-resolver, attempts = %+v", result.Attempts)
	}
}

func TestRunSkipsAuthRequiredCandidateWhenInstitutionalModeOff(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("%PDF-1.4 fake pdf body"))
	}))
	defer ts.Close()

	m := testManager(t)
	m.Config.InstitutionalMode = false
	candidates := []types.URLCandidate{{URL: ts.URL, Type: types.URLDOIResolver, RequiresAuth: true}}

	result, err := m.Run(context.Background(), "GSE1", types.Publication{Key: "pmid:1"}, candidates)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Succeeded() {
		t.Fatal("expected auth-required candidate to be skipped, not downloaded")
	}
	if len(result.Attempts) != 0 {
		t.Errorf("len(Attempts) = %d, want 0 (skipped, not attempted)", len(result.Attempts))
	}
	if called {
		t.Error("expected no HTTP request for a skipped auth-required candidate")
	}
}

func TestRunAttemptsAuthRequiredCandidateWhenInstitutionalModeOn(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake pdf body"))
	}))
	defer ts.Close()

	m := testManager(t)
	m.Config.InstitutionalMode = true
	candidates := []types.URLCandidate{{URL: ts.URL, Type: types.URLDOIResolver, RequiresAuth: true}}

	result, err := m.Run(context.Background(), "GSE1", types.Publication{Key: "pmid:1"}, candidates)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success once institutional mode is on, attempts = %+v", result.Attempts)
	}
}

func TestRunRejectsTooSmall(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PD"))
	}))
	defer ts.Close()

	m := testManager(t)
	candidates := []types.URLCandidate{{URL: ts.URL, Type: types.URLDirectPDF}}

	result, err := m.Run(context.Background(), "GSE1", types.Publication{Key: "pmid:1"}, candidates)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Succeeded() {
		t.Fatal("expected failure for too-small content")
	}
}
