// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// arxivPDFBase is the arXiv PDF endpoint. A var so tests can substitute it.
var arxivPDFBase = "https://arxiv.org/pdf/"

// Arxiv constructs a direct PDF URL from a publication's arXiv ID without
// any network call.
type Arxiv struct{}

func NewArxiv() *Arxiv { return &Arxiv{} }

func (a *Arxiv) Name() string { return "arxiv" }

func (a *Arxiv) FetchPDFURL(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if pub.ArxivID == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no arXiv ID"}, nil
	}
	return SourceResult{
		Status:     StatusOk,
		Candidates: []types.URLCandidate{candidate(a.Name(), arxivPDFBase+pub.ArxivID, types.URLDirectPDF, -2, 0.95)},
	}, nil
}
