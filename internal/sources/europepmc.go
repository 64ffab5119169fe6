// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// europePMCCitationsBase is the Europe PMC citations endpoint.
var europePMCCitationsBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/MED/"

// EuropePMC discovers citing works for a publication via Europe PMC's
// citations endpoint, keyed by PMID.
type EuropePMC struct {
	Client *http.Client
}

func NewEuropePMC(client *http.Client) *EuropePMC { return &EuropePMC{Client: client} }

func (e *EuropePMC) Name() string { return "europepmc" }

func (e *EuropePMC) FetchCitations(ctx context.Context, seed types.Publication) (SourceResult, error) {
	if seed.PMID == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no PMID on seed"}, nil
	}

	params := url.Values{"format": {"json"}, "pageSize": {"100"}}
	reqURL := europePMCCitationsBase + seed.PMID + "/citations?" + params.Encode()

	body, status, err := getJSON(ctx, e.Client, reqURL, e.Name())
	if status != StatusOk {
		return SourceResult{Status: status, Reason: errString(err)}, nil
	}

	var resp europePMCCitationsResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		return SourceResult{Status: StatusTransient, Reason: fmt.Sprintf("parsing europepmc response: %v", jsonErr)}, nil
	}

	var pubs []types.Publication
	for _, c := range resp.CitationList.Citation {
		pub := types.Publication{
			PMID:         c.ID,
			Title:        c.Title,
			Journal:      c.JournalAbbreviation,
			Relationship: types.RelationCiting,
			DiscoveredBy: []string{e.Name()},
		}
		pub.Key = keyFor(pub)
		if year, convErr := strconv.Atoi(c.PubYear); convErr == nil && year > 0 {
			pub.Date = yearDate(year)
		}
		pubs = append(pubs, pub)
	}
	if len(pubs) == 0 {
		return SourceResult{Status: StatusEmpty}, nil
	}
	return SourceResult{Status: StatusOk, Publications: pubs}, nil
}

type europePMCCitationsResponse struct {
	CitationList struct {
		Citation []struct {
			ID                  string `json:"id"`
			Title               string `json:"title"`
			JournalAbbreviation string `json:"journalAbbreviation"`
			PubYear             string `json:"pubYear"`
		} `json:"citation"`
	} `json:"citationList"`
}
