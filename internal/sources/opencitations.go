// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// openCitationsIndexBase is the OpenCitations COCI "citations" endpoint,
// which returns the DOIs of works citing a given DOI.
var openCitationsIndexBase = "https://opencitations.net/index/coci/api/v1/citations/"

// OpenCitations discovers citing DOIs for a publication. Unlike the richer
// sources it returns bare identifiers, so its publications carry only a
// DOI and rely on later merge/dedup to pick up full metadata from a
// richer source.
type OpenCitations struct {
	Client *http.Client
}

func NewOpenCitations(client *http.Client) *OpenCitations { return &OpenCitations{Client: client} }

func (o *OpenCitations) Name() string { return "opencitations" }

func (o *OpenCitations) FetchCitations(ctx context.Context, seed types.Publication) (SourceResult, error) {
	if seed.DOI == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no DOI on seed"}, nil
	}

	body, status, err := getJSON(ctx, o.Client, openCitationsIndexBase+seed.DOI, o.Name())
	if status != StatusOk {
		return SourceResult{Status: status, Reason: errString(err)}, nil
	}

	var entries []openCitationsEntry
	if jsonErr := json.Unmarshal(body, &entries); jsonErr != nil {
		return SourceResult{Status: StatusTransient, Reason: fmt.Sprintf("parsing opencitations response: %v", jsonErr)}, nil
	}

	var pubs []types.Publication
	for _, e := range entries {
		doi := strings.TrimPrefix(e.Citing, "doi:")
		if doi == "" {
			continue
		}
		pubs = append(pubs, types.Publication{
			Key:          "doi:" + doi,
			DOI:          doi,
			Relationship: types.RelationCiting,
			DiscoveredBy: []string{o.Name()},
		})
	}
	if len(pubs) == 0 {
		return SourceResult{Status: StatusEmpty}, nil
	}
	return SourceResult{Status: StatusOk, Publications: pubs}, nil
}

type openCitationsEntry struct {
	Citing string `json:"citing"`
}
