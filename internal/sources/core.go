// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// coreSearchBase is the CORE API works-search endpoint.
var coreSearchBase = "https://api.core.ac.uk/v3/search/works"

// Core queries the CORE aggregator for an open-access PDF mirror of a DOI.
// Disabled by default; an operator must configure an API key to use it.
type Core struct {
	Client *http.Client
	APIKey string
}

func NewCore(client *http.Client, apiKey string) *Core { return &Core{Client: client, APIKey: apiKey} }

func (c *Core) Name() string { return "core" }

func (c *Core) FetchURLs(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if c.APIKey == "" {
		return SourceResult{Status: StatusDisabled, Reason: "no CORE API key configured"}, nil
	}
	if pub.DOI == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no DOI"}, nil
	}

	params := url.Values{"q": {"doi:\"" + pub.DOI + "\""}, "limit": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coreSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return SourceResult{Status: StatusTransient, Reason: err.Error()}, nil
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	body, status, err := doClassified(ctx, c.Client, req, c.Name())
	if status != StatusOk {
		return SourceResult{Status: status, Reason: errString(err)}, nil
	}

	var resp coreSearchResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		return SourceResult{Status: StatusTransient, Reason: fmt.Sprintf("parsing core response: %v", jsonErr)}, nil
	}
	if len(resp.Results) == 0 || resp.Results[0].DownloadURL == "" {
		return SourceResult{Status: StatusEmpty}, nil
	}

	return SourceResult{
		Status:     StatusOk,
		Candidates: []types.URLCandidate{candidate(c.Name(), resp.Results[0].DownloadURL, types.URLDirectPDF, -2, 0.6)},
	}, nil
}

type coreSearchResponse struct {
	Results []struct {
		DownloadURL string `json:"downloadUrl"`
	} `json:"results"`
}
