// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/geo-enrich/internal/download"
	"github.com/pdiddy/geo-enrich/internal/parse"
	"github.com/pdiddy/geo-enrich/internal/registry"
	"github.com/pdiddy/geo-enrich/internal/sources"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

type fakeCitations struct {
	name string
	pubs []types.Publication
}

func (f *fakeCitations) Name() string { return f.name }

func (f *fakeCitations) FetchCitations(ctx context.Context, seed types.Publication) (sources.SourceResult, error) {
	return sources.SourceResult{Status: sources.StatusOk, Publications: f.pubs}, nil
}

type fakeURLs struct {
	name string
	url  string
}

func (f *fakeURLs) Name() string { return f.name }

func (f *fakeURLs) FetchURLs(ctx context.Context, pub types.Publication) (sources.SourceResult, error) {
	return sources.SourceResult{
		Status:     sources.StatusOk,
		Candidates: []types.URLCandidate{{URL: f.url, Type: types.URLDirectPDF, Source: f.name, Priority: -2}},
	}, nil
}

type fakeBackend struct{ text string }

func (f *fakeBackend) Extract(pdfPath string) (string, error) { return f.text, nil }

func newTestCoordinator(t *testing.T, pdfURL string) *Coordinator {
	t.Helper()
	reg, err := registry.Open(t.TempDir())
	if err != nil {
		t.Fatalf("registry.Open() error = %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	dl := download.NewManager(http.DefaultClient, types.DownloadConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "test"},
		RootDir:    t.TempDir(),
		MinBytes:   4,
		MaxBytes:   1 << 20,
	})

	c := NewCoordinator(types.CoordinatorConfig{
		BackoffSchedule:       []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond},
		MaxRetries:            3,
		MaxConcurrentDatasets: 4,
	})
	c.Registry = reg
	c.Download = dl
	c.Parser = &parse.Parser{Backend: &fakeBackend{text: "Abstract\nSome text.\n"}}
	c.CitationClients = []sources.FetchesCitations{&fakeCitations{
		name: "fake",
		pubs: []types.Publication{
			{Key: "pmid:1", PMID: "1", Title: "Originating", Relationship: types.RelationOriginating},
			{Key: "pmid:2", PMID: "2", Title: "Citing paper", Relationship: types.RelationCiting, CitationCount: 10},
		},
	}}
	c.URLClients = []sources.FetchesURLs{&fakeURLs{name: "fake", url: pdfURL}}
	c.PublicationSem = semaphore.NewWeighted(4)
	return c
}

func TestRunCitationDiscoveryBackfillsOrganismFromPublication(t *testing.T) {
	c := newTestCoordinator(t, "http://unused.invalid/pdf")
	c.CitationClients = []sources.FetchesCitations{&fakeCitations{
		name: "fake",
		pubs: []types.Publication{
			{Key: "pmid:1", PMID: "1", Title: "RNA-seq of mouse liver tissue", Relationship: types.RelationOriginating},
		},
	}}
	seed := DatasetSeed{GEOID: "GSE506", Title: "Test dataset", PubmedIDs: []string{"1"}}

	if _, err := c.Advance(context.Background(), seed, types.StateWithCitations, io.Discard); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	snapshot, err := c.Registry.GetComplete(context.Background(), seed.GEOID)
	if err != nil {
		t.Fatalf("GetComplete() error = %v", err)
	}
	if snapshot.Dataset.Organism != "Mus musculus" {
		t.Errorf("Dataset.Organism = %q, want %q (backfilled from publication)", snapshot.Dataset.Organism, "Mus musculus")
	}
	if snapshot.Dataset.OrganismSource != "publication" {
		t.Errorf("Dataset.OrganismSource = %q, want %q", snapshot.Dataset.OrganismSource, "publication")
	}
}

func TestRunCitationDiscoveryFiltersRejectedCitingPublications(t *testing.T) {
	c := newTestCoordinator(t, "http://unused.invalid/pdf")
	c.CitationClients = []sources.FetchesCitations{&fakeCitations{
		name: "fake",
		pubs: []types.Publication{
			{Key: "pmid:1", PMID: "1", Title: "Originating", Relationship: types.RelationOriginating},
			{Key: "pmid:2", PMID: "2", Title: "Thin citing paper", Relationship: types.RelationCiting},
		},
	}}
	seed := DatasetSeed{GEOID: "GSE507", Title: "Test dataset", PubmedIDs: []string{"1"}}

	if _, err := c.Advance(context.Background(), seed, types.StateWithCitations, io.Discard); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	snapshot, err := c.Registry.GetComplete(context.Background(), seed.GEOID)
	if err != nil {
		t.Fatalf("GetComplete() error = %v", err)
	}
	if len(snapshot.Publications) != 1 {
		t.Fatalf("len(Publications) = %d, want 1 (rejected-quality citing paper dropped)", len(snapshot.Publications))
	}
}

func TestAdvanceFullPipeline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake pdf body"))
	}))
	defer ts.Close()

	c := newTestCoordinator(t, ts.URL)
	seed := DatasetSeed{GEOID: "GSE500", Title: "Test dataset", PubmedIDs: []string{"1"}}

	reached, err := c.Advance(context.Background(), seed, types.StateFullyEnriched, io.Discard)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if reached != types.StateFullyEnriched {
		t.Fatalf("reached = %v, want %v", reached, types.StateFullyEnriched)
	}

	snapshot, err := c.Registry.GetComplete(context.Background(), seed.GEOID)
	if err != nil {
		t.Fatalf("GetComplete() error = %v", err)
	}
	if len(snapshot.Publications) != 2 {
		t.Errorf("len(Publications) = %d, want 2", len(snapshot.Publications))
	}
	if len(snapshot.Attempts) == 0 {
		t.Error("expected at least one download attempt")
	}
	if len(snapshot.Parsed) == 0 {
		t.Error("expected at least one parsed content record")
	}
}

func TestAdvancePartialDesiredLevel(t *testing.T) {
	c := newTestCoordinator(t, "http://unused.invalid/pdf")
	seed := DatasetSeed{GEOID: "GSE501", Title: "Test dataset", PubmedIDs: []string{"1"}}

	reached, err := c.Advance(context.Background(), seed, types.StateWithCitations, io.Discard)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if reached != types.StateWithCitations {
		t.Fatalf("reached = %v, want %v", reached, types.StateWithCitations)
	}
}

type emptyURLs struct{ name string }

func (f *emptyURLs) Name() string { return f.name }
func (f *emptyURLs) FetchURLs(ctx context.Context, pub types.Publication) (sources.SourceResult, error) {
	return sources.SourceResult{Status: sources.StatusEmpty, Reason: "nothing found"}, nil
}

func TestAdvanceHaltsAtWithCitationsWhenNoCandidatesFound(t *testing.T) {
	c := newTestCoordinator(t, "http://unused.invalid/pdf")
	c.URLClients = []sources.FetchesURLs{&emptyURLs{name: "fake"}}
	seed := DatasetSeed{GEOID: "GSE503", Title: "Test dataset", PubmedIDs: []string{"1"}}

	reached, err := c.Advance(context.Background(), seed, types.StateFullyEnriched, io.Discard)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if reached != types.StateWithCitations {
		t.Fatalf("reached = %v, want %v (halted on zero candidates)", reached, types.StateWithCitations)
	}
}

func TestAdvanceHaltsAtWithURLsWhenAllDownloadsFail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := newTestCoordinator(t, ts.URL)
	seed := DatasetSeed{GEOID: "GSE504", Title: "Test dataset", PubmedIDs: []string{"1"}}

	reached, err := c.Advance(context.Background(), seed, types.StateFullyEnriched, io.Discard)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if reached != types.StateWithURLs {
		t.Fatalf("reached = %v, want %v (halted after every download attempt failed)", reached, types.StateWithURLs)
	}
}

func TestRunDownloadsSkipsAlreadySucceededPublication(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("%PDF-1.4 fake pdf body"))
	}))
	defer ts.Close()

	c := newTestCoordinator(t, ts.URL)
	seed := DatasetSeed{GEOID: "GSE505", Title: "Test dataset", PubmedIDs: []string{"1"}}

	if _, err := c.Advance(context.Background(), seed, types.StateWithPDFs, io.Discard); err != nil {
		t.Fatalf("first Advance() error = %v", err)
	}
	firstCalls := calls

	dataset, err := c.Registry.GetComplete(context.Background(), seed.GEOID)
	if err != nil {
		t.Fatalf("GetComplete() error = %v", err)
	}
	d := dataset.Dataset
	d.Completeness = types.StateWithURLs
	if err := c.Registry.UpsertDataset(context.Background(), d); err != nil {
		t.Fatalf("UpsertDataset() error = %v", err)
	}

	if _, err := c.Advance(context.Background(), seed, types.StateWithPDFs, io.Discard); err != nil {
		t.Fatalf("second Advance() error = %v", err)
	}
	if calls != firstCalls {
		t.Errorf("download server hit %d more times on rerun, want 0 (already-succeeded publication should be skipped)", calls-firstCalls)
	}
}

func TestAdvanceIsIdempotent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake pdf body"))
	}))
	defer ts.Close()

	c := newTestCoordinator(t, ts.URL)
	seed := DatasetSeed{GEOID: "GSE502", Title: "Test dataset", PubmedIDs: []string{"1"}}

	if _, err := c.Advance(context.Background(), seed, types.StateFullyEnriched, io.Discard); err != nil {
		t.Fatalf("first Advance() error = %v", err)
	}
	reached, err := c.Advance(context.Background(), seed, types.StateFullyEnriched, io.Discard)
	if err != nil {
		t.Fatalf("second Advance() error = %v", err)
	}
	if reached != types.StateFullyEnriched {
		t.Fatalf("reached = %v, want %v (idempotent rerun)", reached, types.StateFullyEnriched)
	}
}
