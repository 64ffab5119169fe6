// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pdiddy/geo-enrich/internal/httputil"
)

// eutilsBase is the NCBI E-utilities endpoint root. A var so tests can
// substitute an httptest server.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"

// eutilsClient wraps the E-utilities ESearch/ESummary/ELink calls used by
// the PubMed client.
type eutilsClient struct {
	HTTP    *http.Client
	APIKey  string
	Email   string
	Tool    string
}

type eSearchResponse struct {
	XMLName xml.Name `xml:"eSearchResult"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

type eSummaryResponse struct {
	XMLName xml.Name `xml:"eSummaryResult"`
	DocSum  []docSum `xml:"DocSum"`
}

type docSum struct {
	ID    string `xml:"Id"`
	Items []item `xml:"Item"`
}

type item struct {
	Name    string `xml:"Name,attr"`
	Content string `xml:",chardata"`
}

type eLinkResponse struct {
	XMLName  xml.Name `xml:"eLinkResult"`
	LinkSets []struct {
		LinkSetDbs []struct {
			LinkName string `xml:"LinkName"`
			Links    []struct {
				ID string `xml:"Id"`
			} `xml:"Link"`
		} `xml:"LinkSetDb"`
	} `xml:"LinkSet"`
}

func (c *eutilsClient) params(extra url.Values) url.Values {
	v := url.Values{}
	for k, vals := range extra {
		v[k] = vals
	}
	v.Set("tool", firstNonEmpty(c.Tool, "geo-enrich"))
	if c.Email != "" {
		v.Set("email", c.Email)
	}
	if c.APIKey != "" {
		v.Set("api_key", c.APIKey)
	}
	return v
}

func (c *eutilsClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := eutilsBase + endpoint + "?" + c.params(params).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building eutils request: %w", err)
	}

	resp, err := httputil.DoWithSingleRetry(ctx, c.HTTP, req)
	if err != nil {
		return nil, fmt.Errorf("eutils request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eutils %s returned HTTP %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading eutils response: %w", err)
	}
	return body, nil
}

// searchUID resolves a PMID to PubMed's internal UID via ESearch, which in
// practice is the PMID itself for the pubmed database, but this keeps the
// lookup symmetric with ESummary/ELink's UID-based calls.
func (c *eutilsClient) searchUID(ctx context.Context, db, term string) (string, error) {
	body, err := c.get(ctx, "esearch.fcgi", url.Values{"db": {db}, "term": {term}, "retmax": {"1"}})
	if err != nil {
		return "", err
	}
	var resp eSearchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing esearch response: %w", err)
	}
	if len(resp.IDList.IDs) == 0 {
		return "", fmt.Errorf("no UID found for %s", term)
	}
	return resp.IDList.IDs[0], nil
}

func (c *eutilsClient) summary(ctx context.Context, db, uid string) (docSum, error) {
	body, err := c.get(ctx, "esummary.fcgi", url.Values{"db": {db}, "id": {uid}})
	if err != nil {
		return docSum{}, err
	}
	var resp eSummaryResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return docSum{}, fmt.Errorf("parsing esummary response: %w", err)
	}
	if len(resp.DocSum) == 0 {
		return docSum{}, fmt.Errorf("no summary found for UID %s", uid)
	}
	return resp.DocSum[0], nil
}

// linkedUIDs follows an ELink relationship (e.g. "pubmed_pubmed_citedin")
// from uid in srcDB to destDB.
func (c *eutilsClient) linkedUIDs(ctx context.Context, srcDB, destDB, linkname, uid string) ([]string, error) {
	body, err := c.get(ctx, "elink.fcgi", url.Values{
		"dbfrom": {srcDB}, "db": {destDB}, "linkname": {linkname}, "id": {uid},
	})
	if err != nil {
		return nil, err
	}
	var resp eLinkResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing elink response: %w", err)
	}

	var ids []string
	for _, ls := range resp.LinkSets {
		for _, db := range ls.LinkSetDbs {
			if db.LinkName != linkname {
				continue
			}
			for _, l := range db.Links {
				ids = append(ids, l.ID)
			}
		}
	}
	return ids, nil
}

func itemContent(items []item, name string) string {
	for _, it := range items {
		if it.Name == name {
			return it.Content
		}
	}
	return ""
}

func parseEUtilsDate(s string) time.Time {
	for _, layout := range []string{"2006/01/02", "2006 Jan 02", "2006 Jan", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
