// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// openAlexWorksBase is the OpenAlex Works endpoint. A var so tests can
// substitute an httptest server.
var openAlexWorksBase = "https://api.openalex.org/works"

// OpenAlex discovers citing works (FetchesCitations) and best open-access
// PDF locations (FetchesURLs) for a publication.
type OpenAlex struct {
	Client *http.Client
	Email  string
}

func NewOpenAlex(client *http.Client, email string) *OpenAlex {
	return &OpenAlex{Client: client, Email: email}
}

func (o *OpenAlex) Name() string { return "openalex" }

func (o *OpenAlex) FetchCitations(ctx context.Context, seed types.Publication) (SourceResult, error) {
	if seed.DOI == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no DOI on seed"}, nil
	}

	params := url.Values{"filter": {"cites:https://openalex.org/works/doi:" + seed.DOI}, "per_page": {"50"}}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	body, status, err := getJSON(ctx, o.Client, openAlexWorksBase+"?"+params.Encode(), o.Name())
	if status != StatusOk {
		return SourceResult{Status: status, Reason: errString(err)}, nil
	}

	var resp openAlexWorksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SourceResult{Status: StatusTransient, Reason: fmt.Sprintf("parsing openalex response: %v", err)}, nil
	}

	var pubs []types.Publication
	for _, w := range resp.Results {
		pubs = append(pubs, openAlexToPublication(w, types.RelationCiting, o.Name()))
	}
	if len(pubs) == 0 {
		return SourceResult{Status: StatusEmpty}, nil
	}
	return SourceResult{Status: StatusOk, Publications: pubs}, nil
}

func (o *OpenAlex) FetchURLs(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if pub.DOI == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no DOI"}, nil
	}

	params := url.Values{"filter": {"doi:" + pub.DOI}, "per_page": {"1"}}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	body, status, err := getJSON(ctx, o.Client, openAlexWorksBase+"?"+params.Encode(), o.Name())
	if status != StatusOk {
		return SourceResult{Status: status, Reason: errString(err)}, nil
	}

	var resp openAlexWorksResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Results) == 0 {
		return SourceResult{Status: StatusEmpty}, nil
	}

	loc := resp.Results[0].BestOALocation
	if loc.PDFURL == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no open-access location"}, nil
	}
	return SourceResult{
		Status:     StatusOk,
		Candidates: []types.URLCandidate{candidate(o.Name(), loc.PDFURL, types.URLDirectPDF, -2, 0.8)},
	}, nil
}

func openAlexToPublication(w openAlexWork, rel types.PublicationRelationship, source string) types.Publication {
	doi := strings.TrimPrefix(w.DOI, "https://doi.org/")
	pub := types.Publication{
		Key:           "doi:" + doi,
		DOI:           doi,
		Title:         w.Title,
		Relationship:  rel,
		CitationCount: w.CitedByCount,
		DiscoveredBy:  []string{source},
	}
	if doi == "" {
		pub.Key = "title:" + strings.ToLower(w.Title)
	}
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			pub.Authors = append(pub.Authors, a.Author.DisplayName)
		}
	}
	if w.PublicationYear > 0 {
		pub.Date = yearDate(w.PublicationYear)
	}
	return pub
}

type openAlexWorksResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	Title           string               `json:"title"`
	DOI             string               `json:"doi"`
	PublicationYear int                  `json:"publication_year"`
	CitedByCount    int                  `json:"cited_by_count"`
	Authorships     []openAlexAuthorship `json:"authorships"`
	BestOALocation  openAlexLocation     `json:"best_oa_location"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexLocation struct {
	PDFURL string `json:"pdf_url"`
}
