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

// semanticScholarBase is the Semantic Scholar Graph API endpoint.
var semanticScholarBase = "https://api.semanticscholar.org/graph/v1/paper/"

// SemanticScholar discovers citing works for a publication via its citations
// endpoint.
type SemanticScholar struct {
	Client *http.Client
	APIKey string
}

func NewSemanticScholar(client *http.Client, apiKey string) *SemanticScholar {
	return &SemanticScholar{Client: client, APIKey: apiKey}
}

func (s *SemanticScholar) Name() string { return "semantic_scholar" }

func (s *SemanticScholar) FetchCitations(ctx context.Context, seed types.Publication) (SourceResult, error) {
	if seed.DOI == "" && seed.PMID == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no DOI or PMID on seed"}, nil
	}
	id := "PMID:" + seed.PMID
	if seed.DOI != "" {
		id = "DOI:" + seed.DOI
	}

	params := url.Values{"fields": {"title,authors,year,externalIds,citationCount"}, "limit": {"100"}}
	reqURL := semanticScholarBase + url.PathEscape(id) + "/citations?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return SourceResult{Status: StatusTransient, Reason: err.Error()}, nil
	}
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	body, status, err := doClassified(ctx, s.Client, req, s.Name())
	if status != StatusOk {
		return SourceResult{Status: status, Reason: errString(err)}, nil
	}

	var resp semanticScholarCitationsResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		return SourceResult{Status: StatusTransient, Reason: fmt.Sprintf("parsing semantic scholar response: %v", jsonErr)}, nil
	}

	var pubs []types.Publication
	for _, c := range resp.Data {
		p := c.CitingPaper
		pub := types.Publication{
			Title:         p.Title,
			DOI:           p.ExternalIDs.DOI,
			PMID:          p.ExternalIDs.PubMed,
			Relationship:  types.RelationCiting,
			CitationCount: p.CitationCount,
			DiscoveredBy:  []string{s.Name()},
		}
		pub.Key = keyFor(pub)
		for _, a := range p.Authors {
			if a.Name != "" {
				pub.Authors = append(pub.Authors, a.Name)
			}
		}
		if p.Year > 0 {
			pub.Date = yearDate(p.Year)
		}
		pubs = append(pubs, pub)
	}
	if len(pubs) == 0 {
		return SourceResult{Status: StatusEmpty}, nil
	}
	return SourceResult{Status: StatusOk, Publications: pubs}, nil
}

func keyFor(p types.Publication) string {
	switch {
	case p.PMID != "":
		return "pmid:" + p.PMID
	case p.DOI != "":
		return "doi:" + p.DOI
	default:
		return "title:" + p.Title
	}
}

type semanticScholarCitationsResponse struct {
	Data []struct {
		CitingPaper struct {
			Title         string `json:"title"`
			Year          int    `json:"year"`
			CitationCount int    `json:"citationCount"`
			ExternalIDs   struct {
				DOI    string `json:"DOI"`
				PubMed string `json:"PubMed"`
			} `json:"externalIds"`
			Authors []struct {
				Name string `json:"name"`
			} `json:"authors"`
		} `json:"citingPaper"`
	} `json:"data"`
}
