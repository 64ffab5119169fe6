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

// unpaywallBase is the Unpaywall API endpoint. A var so tests can
// substitute an httptest server.
var unpaywallBase = "https://api.unpaywall.org/v2/"

// Unpaywall resolves a DOI to its best open-access location.
type Unpaywall struct {
	Client *http.Client
	Email  string
}

func NewUnpaywall(client *http.Client, email string) *Unpaywall {
	return &Unpaywall{Client: client, Email: email}
}

func (u *Unpaywall) Name() string { return "unpaywall" }

func (u *Unpaywall) FetchURLs(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if pub.DOI == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no DOI"}, nil
	}
	if u.Email == "" {
		return SourceResult{Status: StatusDisabled, Reason: "unpaywall requires a contact email"}, nil
	}

	reqURL := unpaywallBase + url.PathEscape(pub.DOI) + "?" + url.Values{"email": {u.Email}}.Encode()
	body, status, err := getJSON(ctx, u.Client, reqURL, u.Name())
	if status != StatusOk {
		return SourceResult{Status: status, Reason: errString(err)}, nil
	}

	var resp unpaywallResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		return SourceResult{Status: StatusTransient, Reason: fmt.Sprintf("parsing unpaywall response: %v", jsonErr)}, nil
	}

	if !resp.IsOA || resp.BestOALocation.URLForPDF == "" {
		return SourceResult{Status: StatusEmpty, Reason: "not open access"}, nil
	}

	return SourceResult{
		Status:     StatusOk,
		Candidates: []types.URLCandidate{candidate(u.Name(), resp.BestOALocation.URLForPDF, types.URLDirectPDF, -2, 0.85)},
	}, nil
}

type unpaywallResponse struct {
	IsOA           bool `json:"is_oa"`
	BestOALocation struct {
		URLForPDF string `json:"url_for_pdf"`
	} `json:"best_oa_location"`
}
