// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// Institutional rewrites a DOI resolver link through an institutional EZproxy
// front door. It never makes a network call itself — the rewritten landing
// page is validated, like every other candidate, by the Download Manager's
// waterfall. Disabled by default; an operator must configure ProxyBase and a
// token to use it.
type Institutional struct {
	ProxyBase string
	Token     string
}

func NewInstitutional(proxyBase, token string) *Institutional {
	return &Institutional{ProxyBase: proxyBase, Token: token}
}

func (i *Institutional) Name() string { return "institutional" }

func (i *Institutional) FetchURLs(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if i.ProxyBase == "" || i.Token == "" {
		return SourceResult{Status: StatusDisabled, Reason: "no institutional proxy configured"}, nil
	}
	if pub.DOI == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no DOI"}, nil
	}

	proxied := i.ProxyBase + "/login?url=https://doi.org/" + pub.DOI + "&token=" + i.Token
	return SourceResult{
		Status: StatusOk,
		Candidates: []types.URLCandidate{
			{URL: proxied, Type: types.URLDOIResolver, Source: i.Name(), Priority: 3, Confidence: 0.6, RequiresAuth: true},
		},
	}, nil
}
