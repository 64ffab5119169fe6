// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"testing"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantType  types.URLType
		wantBoost int
	}{
		{"direct pdf extension", "https://example.com/paper.pdf", types.URLDirectPDF, BoostDirectPDF},
		{"direct pdf with query", "https://example.com/paper.pdf?download=1", types.URLDirectPDF, BoostDirectPDF},
		{"pdf path segment", "https://example.com/content/pdf/10.1/full", types.URLDirectPDF, BoostDirectPDF},
		{"doi resolver", "https://doi.org/10.1038/s41586-020-1234-5", types.URLDOIResolver, BoostDOIResolver},
		{"dx doi resolver", "https://dx.doi.org/10.1038/s41586-020-1234-5", types.URLDOIResolver, BoostDOIResolver},
		{"pmc html fulltext", "https://pmc.ncbi.nlm.nih.gov/articles/PMC1234567/", types.URLHTMLFullText, BoostHTMLFull},
		{"legacy pmc html fulltext", "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1234567/", types.URLHTMLFullText, BoostHTMLFull},
		{"generic landing page", "https://journals.example.org/article/1234", types.URLLandingPage, BoostLandingPage},
		{"unparseable", "not a url at all", types.URLUnknown, BoostUnknown},
		{"empty", "", types.URLUnknown, BoostUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotBoost := Classify(tt.url)
			if gotType != tt.wantType {
				t.Errorf("Classify(%q) type = %v, want %v", tt.url, gotType, tt.wantType)
			}
			if gotBoost != tt.wantBoost {
				t.Errorf("Classify(%q) boost = %d, want %d", tt.url, gotBoost, tt.wantBoost)
			}
		})
	}
}

func TestIsPMCHost(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"modern host", "https://pmc.ncbi.nlm.nih.gov/articles/PMC1234567/", true},
		{"legacy host", "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1234567/", true},
		{"legacy host no www", "https://ncbi.nlm.nih.gov/pmc/articles/PMC1234567/", true},
		{"unrelated host", "https://example.com/pmc/fake", false},
		{"malformed", "://not-a-url", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPMCHost(tt.url); got != tt.want {
				t.Errorf("IsPMCHost(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
