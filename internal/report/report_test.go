// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

func sampleData() types.CompleteGEOData {
	return types.CompleteGEOData{
		Dataset: types.GEODataset{
			GEOID:        "GSE189158",
			Title:        "Single-cell atlas of something",
			Organism:     "Homo sapiens",
			Completeness: types.StateWithPDFs,
		},
		Publications: []types.Publication{
			{
				Key: "pmid:1", Title: "Originating paper", Authors: []string{"A. Author"},
				Relationship: types.RelationOriginating, Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			{
				Key: "pmid:2", Title: "A citing paper", Authors: []string{"B. Author"},
				Relationship: types.RelationCiting, QualityBand: types.QualityGood,
				Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		Attempts: []types.DownloadAttempt{
			{PublicationKey: "pmid:1", Outcome: types.AttemptSucceeded, Bytes: 1024, ContentSHA256: "abcdef0123456789"},
			{PublicationKey: "pmid:2", Outcome: types.AttemptHTTPError, Error: "404"},
		},
	}
}

func TestBuildIncludesAllSections(t *testing.T) {
	r := Build(sampleData())

	if r.GEOID != "GSE189158" {
		t.Errorf("GEOID = %q, want GSE189158", r.GEOID)
	}
	if len(r.Sections) != 3 {
		t.Fatalf("len(Sections) = %d, want 3 (overview, publications, download history)", len(r.Sections))
	}
	if len(r.References) != 2 {
		t.Fatalf("len(References) = %d, want 2", len(r.References))
	}
}

func TestBuildOmitsDownloadHistoryWhenNoAttempts(t *testing.T) {
	data := sampleData()
	data.Attempts = nil

	r := Build(data)
	for _, s := range r.Sections {
		if s.Title == "Download History" {
			t.Error("Download History section present with no attempts")
		}
	}
}

func TestRenderMarkdownContainsKeyFacts(t *testing.T) {
	r := Build(sampleData())
	md := RenderMarkdown(r)

	for _, want := range []string{
		"# GSE189158",
		"Originating paper",
		"A citing paper",
		"404",
		"abcdef012345",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("rendered Markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderMarkdownFrozenNotice(t *testing.T) {
	data := sampleData()
	data.Dataset.Frozen = true
	data.Dataset.RetryCount = 3

	md := RenderMarkdown(Build(data))
	if !strings.Contains(md, "frozen after 3 failed attempts") {
		t.Errorf("expected frozen notice in:\n%s", md)
	}
}
