// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"strings"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// pubmedCitedInLink is the ELink linkname for "this PMID is cited by".
const pubmedCitedInLink = "pubmed_pubmed_citedin"

// PubMed discovers citing publications and backfills metadata for a
// dataset's originating PMIDs via NCBI E-utilities (ESummary, ELink).
type PubMed struct {
	eutils eutilsClient
}

// NewPubMed constructs a PubMed client. apiKey and contactEmail are
// optional but recommended by NCBI's usage policy.
func NewPubMed(client *http.Client, apiKey, contactEmail string) *PubMed {
	return &PubMed{eutils: eutilsClient{HTTP: client, APIKey: apiKey, Email: contactEmail, Tool: "geo-enrich"}}
}

func (p *PubMed) Name() string { return "pubmed" }

// FetchCitations resolves seed.PMID's own metadata (used to backfill an
// originating publication record) and the PMIDs that cite it.
func (p *PubMed) FetchCitations(ctx context.Context, seed types.Publication) (SourceResult, error) {
	if seed.PMID == "" {
		return SourceResult{Status: StatusEmpty, Reason: "no PMID on seed"}, nil
	}

	summary, err := p.eutils.summary(ctx, "pubmed", seed.PMID)
	if err != nil {
		return SourceResult{Status: StatusTransient, Reason: err.Error()}, nil
	}

	self := publicationFromSummary(seed.PMID, summary)
	self.Relationship = types.RelationOriginating
	self.DiscoveredBy = []string{p.Name()}

	citingIDs, err := p.eutils.linkedUIDs(ctx, "pubmed", "pubmed", pubmedCitedInLink, seed.PMID)
	if err != nil {
		// Metadata succeeded even if the citation link failed; report what we have.
		return SourceResult{Status: StatusOk, Publications: []types.Publication{self}, Reason: "citedin lookup failed: " + err.Error()}, nil
	}

	pubs := []types.Publication{self}
	for _, pmid := range citingIDs {
		citingSummary, err := p.eutils.summary(ctx, "pubmed", pmid)
		if err != nil {
			continue
		}
		pub := publicationFromSummary(pmid, citingSummary)
		pub.Relationship = types.RelationCiting
		pub.DiscoveredBy = []string{p.Name()}
		pubs = append(pubs, pub)
	}

	return SourceResult{Status: StatusOk, Publications: pubs}, nil
}

func publicationFromSummary(pmid string, s docSum) types.Publication {
	title := itemContent(s.Items, "Title")
	journal := itemContent(s.Items, "FullJournalName")
	pdat := itemContent(s.Items, "PubDate")

	var authors []string
	for _, a := range strings.Split(itemContent(s.Items, "AuthorList"), ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			authors = append(authors, a)
		}
	}

	return types.Publication{
		Key:     "pmid:" + pmid,
		PMID:    pmid,
		Title:   title,
		Authors: authors,
		Journal: journal,
		Date:    parseEUtilsDate(pdat),
	}
}
