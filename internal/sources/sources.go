// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the capability-typed clients Citation Discovery
// (P1) and the Full-Text Manager (P2) fan out across. Each client advertises
// only the capabilities it actually has by implementing one or more of
// FetchesCitations, FetchesURLs, and FetchesDirectPDF, rather than every
// client satisfying one monolithic interface.
//
// See SPEC_FULL.md § 4.1.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/geo-enrich/internal/httputil"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

// SourceStatus is the outcome of one client call, used instead of plain
// errors so a caller fanning out across many sources can distinguish "found
// nothing" from "this source actively refused" from "try again later".
type SourceStatus string

const (
	StatusOk          SourceStatus = "ok"
	StatusEmpty       SourceStatus = "empty"
	StatusDenied      SourceStatus = "denied"
	StatusTransient   SourceStatus = "transient"
	StatusRateLimited SourceStatus = "rate_limited"
	StatusDisabled    SourceStatus = "disabled"
)

// SourceResult is the uniform return value for every capability method.
type SourceResult struct {
	Status       SourceStatus
	Candidates   []types.URLCandidate
	Publications []types.Publication
	Reason       string
}

// FetchesCitations is implemented by clients that can discover publications
// related to a dataset's PubMed IDs: either the originating metadata record
// itself or papers that cite it.
type FetchesCitations interface {
	Name() string
	FetchCitations(ctx context.Context, seed types.Publication) (SourceResult, error)
}

// FetchesURLs is implemented by clients that can return zero or more
// candidate full-text URLs for a publication (landing pages, HTML full
// text, or direct PDF links mixed together).
type FetchesURLs interface {
	Name() string
	FetchURLs(ctx context.Context, pub types.Publication) (SourceResult, error)
}

// FetchesDirectPDF is implemented by clients whose identifier scheme lets
// them construct a direct PDF URL without an intermediate lookup (arXiv,
// bioRxiv, PMC).
type FetchesDirectPDF interface {
	Name() string
	FetchPDFURL(ctx context.Context, pub types.Publication) (SourceResult, error)
}

// candidate is a convenience constructor used by every client below.
func candidate(source, url string, urlType types.URLType, boost int, confidence float64) types.URLCandidate {
	return types.URLCandidate{
		URL:        url,
		Type:       urlType,
		Source:     source,
		Priority:   boost,
		Confidence: confidence,
	}
}

// getJSON issues a GET against reqURL, applying the single-retry-on-5xx
// policy, and classifies the response into a SourceStatus so every client
// below shares one mapping from HTTP status to discovery outcome.
func getJSON(ctx context.Context, client *http.Client, reqURL, name string) ([]byte, SourceStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, StatusTransient, err
	}
	return doClassified(ctx, client, req, name)
}

// doClassified is getJSON for a caller-built *http.Request (e.g. one that
// needs extra headers such as an API key).
func doClassified(ctx context.Context, client *http.Client, req *http.Request, name string) ([]byte, SourceStatus, error) {
	resp, err := httputil.DoWithSingleRetry(ctx, client, req)
	if err != nil {
		return nil, StatusTransient, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, StatusRateLimited, fmt.Errorf("%s rate limited", name)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, StatusDenied, fmt.Errorf("%s denied", name)
	case resp.StatusCode == http.StatusNotFound:
		return nil, StatusEmpty, nil
	case resp.StatusCode >= 500:
		return nil, StatusTransient, fmt.Errorf("%s returned HTTP %d", name, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, StatusEmpty, fmt.Errorf("%s returned HTTP %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, StatusTransient, err
	}
	return body, StatusOk, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func yearDate(year int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}
