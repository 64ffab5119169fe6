// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// crossrefWorksBase is the CrossRef Works API endpoint.
var crossrefWorksBase = "https://api.crossref.org/works/"

// CrossRef resolves a DOI's link metadata. It surfaces every declared link
// whose content type is application/pdf or whose intended application is
// text-mining, and returns StatusEmpty when the record declares none.
type CrossRef struct {
	Client *http.Client
}

func NewCrossRef(client *http.Client) *CrossRef { return &CrossRef{Client: client} }

func (c *CrossRef) Name() string { return "crossref" }

func (c *CrossRef) FetchURLs(ctx context.Context, pub types.Publication) (SourceResult, error) {
	if pub.DOI == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no DOI"}, nil
	}

	body, status, err := getJSON(ctx, c.Client, crossrefWorksBase+pub.DOI, c.Name())
	if status != StatusOk {
		return SourceResult{Status: status, Reason: errString(err)}, nil
	}

	var resp crossrefWorkResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		return SourceResult{Status: StatusTransient, Reason: fmt.Sprintf("parsing crossref response: %v", jsonErr)}, nil
	}

	var candidates []types.URLCandidate
	for _, l := range resp.Message.Link {
		if l.ContentType == "application/pdf" || l.IntendedApplication == "text-mining" {
			candidates = append(candidates, candidate(c.Name(), l.URL, types.URLDirectPDF, -2, 0.5))
		}
	}
	if len(candidates) == 0 {
		return SourceResult{Status: StatusEmpty, Reason: "no full-text link declared"}, nil
	}
	return SourceResult{Status: StatusOk, Candidates: candidates}, nil
}

type crossrefWorkResponse struct {
	Message struct {
		Link []struct {
			URL                 string `json:"URL"`
			ContentType         string `json:"content-type"`
			IntendedApplication string `json:"intended-application"`
		} `json:"link"`
	} `json:"message"`
}
