// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"strings"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// biorxivPDFBase is the bioRxiv/medRxiv DOI-based PDF endpoint.
var biorxivPDFBase = "https://www.biorxiv.org/content/"

// BioRxiv constructs a direct PDF URL from a publication's bioRxiv DOI
// (10.1101/...) without any network call.
type BioRxiv struct{}

func NewBioRxiv() *BioRxiv { return &BioRxiv{} }

func (b *BioRxiv) Name() string { return "biorxiv" }

func (b *BioRxiv) FetchPDFURL(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if !strings.HasPrefix(pub.DOI, "10.1101/") {
		return SourceResult{Status: StatusEmpty, Reason: "not a bioRxiv/medRxiv DOI"}, nil
	}
	return SourceResult{
		Status:     StatusOk,
		Candidates: []types.URLCandidate{candidate(b.Name(), biorxivPDFBase+pub.DOI+"v1.full.pdf", types.URLDirectPDF, -2, 0.7)},
	}, nil
}
