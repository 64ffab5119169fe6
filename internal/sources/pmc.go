// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// pmcPDFBase is PMC's direct PDF endpoint. A var so tests can substitute it.
var pmcPDFBase = "https://pmc.ncbi.nlm.nih.gov/articles/"

// PMC returns a direct PDF URL and an HTML full-text URL for a publication
// that already carries a PMCID, built from the PMCID without a network call.
type PMC struct{}

func NewPMC() *PMC { return &PMC{} }

func (p *PMC) Name() string { return "pmc" }

func (p *PMC) FetchURLs(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if pub.PMCID == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no PMCID"}, nil
	}
	base := pmcPDFBase + pub.PMCID + "/"
	return SourceResult{
		Status: StatusOk,
		Candidates: []types.URLCandidate{
			candidate(p.Name(), base+"pdf/", types.URLDirectPDF, -2, 0.9),
			candidate(p.Name(), base, types.URLHTMLFullText, 0, 0.9),
		},
	}, nil
}

func (p *PMC) FetchPDFURL(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if pub.PMCID == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no PMCID"}, nil
	}
	return SourceResult{
		Status:     StatusOk,
		Candidates: []types.URLCandidate{candidate(p.Name(), pmcPDFBase+pub.PMCID+"/pdf/", types.URLDirectPDF, -2, 0.9)},
	}, nil
}
