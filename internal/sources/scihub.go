// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// SciHub constructs a direct PDF URL from a DOI against a configured
// mirror. It is the last resort in the waterfall and is only ever invoked
// when an operator explicitly sets SourcesConfig.EnableSciHub — this
// repository's own defaults never turn it on.
type SciHub struct {
	MirrorBase string
}

func NewSciHub(mirrorBase string) *SciHub { return &SciHub{MirrorBase: mirrorBase} }

func (s *SciHub) Name() string { return "scihub" }

func (s *SciHub) FetchPDFURL(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if s.MirrorBase == "" || pub.DOI == "" {
		return SourceResult{Status: StatusDisabled, Reason: "no mirror configured or no DOI"}, nil
	}
	return SourceResult{
		Status:     StatusOk,
		Candidates: []types.URLCandidate{candidate(s.Name(), s.MirrorBase+"/"+pub.DOI, types.URLDirectPDF, 10, 0.2)},
	}, nil
}
