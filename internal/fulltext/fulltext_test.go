// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"context"
	"io"
	"testing"

	"github.com/pdiddy/geo-enrich/internal/sources"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

type fakeURLSource struct {
	name       string
	result     sources.SourceResult
	err        error
	calledWith types.Publication
}

func (f *fakeURLSource) Name() string { return f.name }

func (f *fakeURLSource) FetchURLs(ctx context.Context, pub types.Publication) (sources.SourceResult, error) {
	f.calledWith = pub
	return f.result, f.err
}

func TestManagerCollectRanksByPriority(t *testing.T) {
	m := &Manager{
		URLClients: []sources.FetchesURLs{
			&fakeURLSource{name: "a", result: sources.SourceResult{
				Status: sources.StatusOk,
				Candidates: []types.URLCandidate{
					{URL: "https://example.org/paper/landing", Source: "a", Priority: 0},
				},
			}},
			&fakeURLSource{name: "b", result: sources.SourceResult{
				Status: sources.StatusOk,
				Candidates: []types.URLCandidate{
					{URL: "https://example.org/paper.pdf", Source: "b", Priority: 0},
				},
			}},
		},
	}

	out := m.Collect(context.Background(), types.Publication{DOI: "10.1/x"}, io.Discard)
	if len(out.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(out.Candidates))
	}
	if out.Candidates[0].Type != types.URLDirectPDF {
		t.Errorf("Candidates[0].Type = %v, want URLDirectPDF (should rank first)", out.Candidates[0].Type)
	}
}

func TestManagerCollectRecordsErrors(t *testing.T) {
	m := &Manager{
		URLClients: []sources.FetchesURLs{
			&fakeURLSource{name: "broken", result: sources.SourceResult{Status: sources.StatusTransient, Reason: "timeout"}},
		},
	}

	out := m.Collect(context.Background(), types.Publication{DOI: "10.1/x"}, io.Discard)
	if len(out.Candidates) != 0 {
		t.Fatalf("len(Candidates) = %d, want 0", len(out.Candidates))
	}
	if out.Errors["broken"] != "timeout" {
		t.Errorf("Errors[broken] = %q, want %q", out.Errors["broken"], "timeout")
	}
}

func TestManagerCollectPMCFallback(t *testing.T) {
	pmcOnly := &fakeURLSource{name: "pmc", result: sources.SourceResult{
		Status: sources.StatusOk,
		Candidates: []types.URLCandidate{
			{URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC123/", Source: "pmc", Priority: 0},
		},
	}}
	fallback := &fakeURLSource{name: "openalex", result: sources.SourceResult{
		Status: sources.StatusOk,
		Candidates: []types.URLCandidate{
			{URL: "https://example.org/oa.pdf", Source: "openalex", Priority: 0},
		},
	}}

	m := &Manager{
		URLClients: []sources.FetchesURLs{pmcOnly},
		PMCBlocked: true,
		OpenAlex:   fallback,
	}

	out := m.Collect(context.Background(), types.Publication{DOI: "10.1/x"}, io.Discard)
	if len(out.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2 (pmc + fallback)", len(out.Candidates))
	}

	found := false
	for _, c := range out.Candidates {
		if c.Source == "openalex" {
			found = true
		}
	}
	if !found {
		t.Error("expected openalex fallback candidate to be present")
	}
}

func TestManagerCollectNoFallbackWhenNotPMCBlocked(t *testing.T) {
	pmcOnly := &fakeURLSource{name: "pmc", result: sources.SourceResult{
		Status: sources.StatusOk,
		Candidates: []types.URLCandidate{
			{URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC123/", Source: "pmc", Priority: 0},
		},
	}}
	fallback := &fakeURLSource{name: "openalex", result: sources.SourceResult{Status: sources.StatusOk}}

	m := &Manager{
		URLClients: []sources.FetchesURLs{pmcOnly},
		PMCBlocked: false,
		OpenAlex:   fallback,
	}

	out := m.Collect(context.Background(), types.Publication{DOI: "10.1/x"}, io.Discard)
	if len(out.Candidates) != 1 {
		t.Fatalf("len(Candidates) = %d, want 1 (no fallback triggered)", len(out.Candidates))
	}
}
