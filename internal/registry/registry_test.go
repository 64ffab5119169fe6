// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegistryGetCompleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	dataset := types.GEODataset{
		GEOID:        "GSE1000",
		Title:        "A test dataset",
		Organism:     "Homo sapiens",
		PubmedIDs:    []string{"111"},
		Completeness: types.StateWithURLs,
	}
	if err := r.UpsertDataset(ctx, dataset); err != nil {
		t.Fatalf("UpsertDataset() error = %v", err)
	}

	pub := types.Publication{
		Key:          "pmid:111",
		PMID:         "111",
		Title:        "Originating paper",
		Relationship: types.RelationOriginating,
		QualityBand:  types.QualityGood,
	}
	if err := r.UpsertPublication(ctx, dataset.GEOID, pub); err != nil {
		t.Fatalf("UpsertPublication() error = %v", err)
	}

	candidates := []types.URLCandidate{
		{URL: "https://example.org/paper.pdf", Type: types.URLDirectPDF, Source: "test", Priority: -2},
	}
	if err := r.AppendURLCandidates(ctx, dataset.GEOID, pub.Key, candidates); err != nil {
		t.Fatalf("AppendURLCandidates() error = %v", err)
	}

	attempt := types.DownloadAttempt{
		PublicationKey: pub.Key,
		URL:            candidates[0].URL,
		Outcome:        types.AttemptSucceeded,
		HTTPStatus:     200,
		Bytes:          2048,
		ContentSHA256:  "abc123",
		AttemptedAt:    time.Now(),
	}
	if err := r.AppendDownloadAttempt(ctx, dataset.GEOID, attempt); err != nil {
		t.Fatalf("AppendDownloadAttempt() error = %v", err)
	}

	parsed := types.ParsedContent{
		ContentSHA256:  "abc123",
		PublicationKey: pub.Key,
		Sections:       []types.ParsedSection{{Name: "abstract", Text: "..."}},
		QualityScore:   0.8,
		ParsedAt:       time.Now(),
	}
	if err := r.StoreParsedContent(ctx, dataset.GEOID, parsed); err != nil {
		t.Fatalf("StoreParsedContent() error = %v", err)
	}

	snapshot, err := r.GetComplete(ctx, dataset.GEOID)
	if err != nil {
		t.Fatalf("GetComplete() error = %v", err)
	}

	if snapshot.Dataset.GEOID != dataset.GEOID {
		t.Errorf("Dataset.GEOID = %q, want %q", snapshot.Dataset.GEOID, dataset.GEOID)
	}
	if len(snapshot.Publications) != 1 {
		t.Fatalf("len(Publications) = %d, want 1", len(snapshot.Publications))
	}
	if snapshot.Publications[0].Key != pub.Key {
		t.Errorf("Publications[0].Key = %q, want %q", snapshot.Publications[0].Key, pub.Key)
	}
	if len(snapshot.Candidates) != 1 {
		t.Fatalf("len(Candidates) = %d, want 1", len(snapshot.Candidates))
	}
	if len(snapshot.Attempts) != 1 {
		t.Fatalf("len(Attempts) = %d, want 1", len(snapshot.Attempts))
	}
	if len(snapshot.Parsed) != 1 {
		t.Fatalf("len(Parsed) = %d, want 1", len(snapshot.Parsed))
	}
}

func TestAppendURLCandidatesRetainsAcrossRuns(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	dataset := types.GEODataset{GEOID: "GSE3000", Completeness: types.StateWithCitations}
	if err := r.UpsertDataset(ctx, dataset); err != nil {
		t.Fatalf("UpsertDataset() error = %v", err)
	}
	pub := types.Publication{Key: "pmid:1", Relationship: types.RelationOriginating}
	if err := r.UpsertPublication(ctx, dataset.GEOID, pub); err != nil {
		t.Fatalf("UpsertPublication() error = %v", err)
	}

	first := []types.URLCandidate{
		{URL: "https://pmc.example.org/paper", Type: types.URLHTMLFullText, Source: "pmc", Priority: 1},
	}
	if err := r.AppendURLCandidates(ctx, dataset.GEOID, pub.Key, first); err != nil {
		t.Fatalf("AppendURLCandidates() error = %v", err)
	}

	second := []types.URLCandidate{
		{URL: "https://unpaywall.example.org/paper.pdf", Type: types.URLDirectPDF, Source: "unpaywall", Priority: -1},
	}
	if err := r.AppendURLCandidates(ctx, dataset.GEOID, pub.Key, second); err != nil {
		t.Fatalf("second AppendURLCandidates() error = %v", err)
	}

	got, err := r.GetURLCandidates(ctx, pub.Key)
	if err != nil {
		t.Fatalf("GetURLCandidates() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(candidates) = %d, want 2 (retained across runs, not replaced)", len(got))
	}
}

func TestAppendURLCandidatesDedupesByURLAndMutatesBlacklist(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	dataset := types.GEODataset{GEOID: "GSE3001", Completeness: types.StateWithCitations}
	if err := r.UpsertDataset(ctx, dataset); err != nil {
		t.Fatalf("UpsertDataset() error = %v", err)
	}
	pub := types.Publication{Key: "pmid:1", Relationship: types.RelationOriginating}
	if err := r.UpsertPublication(ctx, dataset.GEOID, pub); err != nil {
		t.Fatalf("UpsertPublication() error = %v", err)
	}

	c := types.URLCandidate{URL: "https://pmc.example.org/paper", Type: types.URLHTMLFullText, Source: "pmc", Priority: 1}
	if err := r.AppendURLCandidates(ctx, dataset.GEOID, pub.Key, []types.URLCandidate{c}); err != nil {
		t.Fatalf("AppendURLCandidates() error = %v", err)
	}

	if err := r.SetURLCandidateBlacklisted(ctx, dataset.GEOID, pub.Key, c.URL, true); err != nil {
		t.Fatalf("SetURLCandidateBlacklisted() error = %v", err)
	}

	got, err := r.GetURLCandidates(ctx, pub.Key)
	if err != nil {
		t.Fatalf("GetURLCandidates() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(candidates) = %d, want 1 (same URL, not duplicated)", len(got))
	}
	if !got[0].CurrentlyBlacklisted {
		t.Error("expected CurrentlyBlacklisted to be true after SetURLCandidateBlacklisted")
	}

	// a later P2 run re-observing the same URL must not clear the flag.
	if err := r.AppendURLCandidates(ctx, dataset.GEOID, pub.Key, []types.URLCandidate{c}); err != nil {
		t.Fatalf("re-append AppendURLCandidates() error = %v", err)
	}
	got, err = r.GetURLCandidates(ctx, pub.Key)
	if err != nil {
		t.Fatalf("GetURLCandidates() error = %v", err)
	}
	if len(got) != 1 || got[0].CurrentlyBlacklisted {
		t.Errorf("re-appending an unflagged candidate should not clear an existing blacklist flag; got %+v", got)
	}
}

func TestRegistryUpsertDatasetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := openTestRegistry(t)

	dataset := types.GEODataset{GEOID: "GSE2000", Completeness: types.StateNew}
	if err := r.UpsertDataset(ctx, dataset); err != nil {
		t.Fatalf("UpsertDataset() error = %v", err)
	}

	dataset.Completeness = types.StateMetadata
	dataset.RetryCount = 1
	if err := r.UpsertDataset(ctx, dataset); err != nil {
		t.Fatalf("second UpsertDataset() error = %v", err)
	}

	got, err := r.getDataset(ctx, dataset.GEOID)
	if err != nil {
		t.Fatalf("getDataset() error = %v", err)
	}
	if got.Completeness != types.StateMetadata {
		t.Errorf("Completeness = %v, want %v", got.Completeness, types.StateMetadata)
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
}
