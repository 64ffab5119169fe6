// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download implements the Download Manager (P3): a priority-ordered
// waterfall over a publication's candidate URLs that validates, content-
// addresses, and persists the first acceptable PDF.
//
// Implements: SPEC_FULL.md § 4.4.
package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// pdfMagic is the signature every valid PDF file starts with.
var pdfMagic = []byte("%PDF-")

// citationPDFMeta extracts a citation_pdf_url meta tag from a landing page,
// the de facto standard publishers use to point crawlers at the PDF twin of
// an HTML article.
var citationPDFMeta = regexp.MustCompile(`(?i)<meta\s+name=["']citation_pdf_url["']\s+content=["']([^"']+)["']`)

// Manager runs the waterfall for one or more publications, bounded by a
// shared semaphore so no more than Config.MaxConcurrency downloads run at
// once process-wide.
type Manager struct {
	Client *http.Client
	Config types.DownloadConfig
	Sem    *semaphore.Weighted
}

// NewManager builds a Manager with its own bounding semaphore sized from
// cfg.MaxConcurrency.
func NewManager(client *http.Client, cfg types.DownloadConfig) *Manager {
	weight := cfg.MaxConcurrency
	if weight <= 0 {
		weight = 1
	}
	return &Manager{Client: client, Config: cfg, Sem: semaphore.NewWeighted(weight)}
}

// Result is the outcome of running the waterfall for one publication.
type Result struct {
	Attempts []types.DownloadAttempt
	// Path is the on-disk location of the accepted PDF, empty on failure.
	Path string
	// ContentSHA256 is set only when a PDF was accepted.
	ContentSHA256 string
}

// Succeeded reports whether the waterfall produced an accepted PDF.
func (r Result) Succeeded() bool { return r.Path != "" }

// Run walks candidates in priority order (caller is expected to have sorted
// them, e.g. via internal/fulltext), stopping at the first one that yields a
// valid PDF. Landing pages, HTML full-text pages, and DOI resolvers (which
// redirect to one or the other) are followed once via their citation_pdf_url
// meta tag before being recorded as a failed attempt. Candidates requiring
// institutional access are skipped entirely unless InstitutionalMode is on.
func (m *Manager) Run(ctx context.Context, geoID string, pub types.Publication, candidates []types.URLCandidate) (Result, error) {
	if err := m.Sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("acquiring download slot: %w", err)
	}
	defer m.Sem.Release(1)

	var result Result
	for _, c := range candidates {
		if c.RequiresAuth && !m.Config.InstitutionalMode {
			continue
		}

		attempt, path, err := m.attempt(ctx, geoID, pub, c)
		result.Attempts = append(result.Attempts, attempt)
		if err != nil {
			return result, err
		}
		if attempt.Outcome == types.AttemptSucceeded {
			result.Path = path
			result.ContentSHA256 = attempt.ContentSHA256
			return result, nil
		}
		if attempt.Outcome == types.AttemptInvalidContent && isLandingPageLike(c.Type) {
			if pdfURL, ok := m.followLandingPage(ctx, c.URL); ok {
				sub := types.URLCandidate{URL: pdfURL, Type: types.URLDirectPDF, Source: c.Source + "+citation_pdf_url", Priority: c.Priority}
				subAttempt, subPath, err := m.attempt(ctx, geoID, pub, sub)
				result.Attempts = append(result.Attempts, subAttempt)
				if err != nil {
					return result, err
				}
				if subAttempt.Outcome == types.AttemptSucceeded {
					result.Path = subPath
					result.ContentSHA256 = subAttempt.ContentSHA256
					return result, nil
				}
			}
		}
	}
	return result, nil
}

// isLandingPageLike reports whether t is a candidate type whose body, if not
// itself a PDF, may still contain a citation_pdf_url meta tag pointing at
// one: plain landing pages, HTML full-text articles, and DOI resolvers
// (which the HTTP client has already followed to one of the other two).
func isLandingPageLike(t types.URLType) bool {
	switch t {
	case types.URLLandingPage, types.URLHTMLFullText, types.URLDOIResolver:
		return true
	default:
		return false
	}
}

func (m *Manager) attempt(ctx context.Context, geoID string, pub types.Publication, c types.URLCandidate) (types.DownloadAttempt, string, error) {
	attempt := types.DownloadAttempt{PublicationKey: pub.Key, URL: c.URL, AttemptedAt: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		attempt.Outcome = types.AttemptHTTPError
		attempt.Error = err.Error()
		return attempt, "", nil
	}
	req.Header.Set("User-Agent", m.Config.UserAgent)
	req.Header.Set("Accept", "application/pdf,text/html;q=0.8")

	resp, err := m.Client.Do(req)
	if err != nil {
		attempt.Outcome = types.AttemptTimeout
		attempt.Error = err.Error()
		return attempt, "", nil
	}
	defer resp.Body.Close()
	attempt.HTTPStatus = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		attempt.Outcome = types.AttemptDenied
		return attempt, "", nil
	case resp.StatusCode != http.StatusOK:
		attempt.Outcome = types.AttemptHTTPError
		return attempt, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, m.Config.MaxBytes+1))
	if err != nil {
		attempt.Outcome = types.AttemptHTTPError
		attempt.Error = err.Error()
		return attempt, "", nil
	}
	attempt.Bytes = int64(len(body))

	if int64(len(body)) > m.Config.MaxBytes {
		attempt.Outcome = types.AttemptTooLarge
		return attempt, "", nil
	}
	if int64(len(body)) < m.Config.MinBytes {
		attempt.Outcome = types.AttemptTooSmall
		return attempt, "", nil
	}
	if !bytes.HasPrefix(body, pdfMagic) {
		attempt.Outcome = types.AttemptInvalidContent
		return attempt, "", nil
	}

	sum := sha256.Sum256(body)
	contentHash := hex.EncodeToString(sum[:])
	path, err := m.store(geoID, pub.Key, contentHash, body)
	if err != nil {
		return attempt, "", fmt.Errorf("storing pdf: %w", err)
	}

	attempt.Outcome = types.AttemptSucceeded
	attempt.ContentSHA256 = contentHash
	return attempt, path, nil
}

// store writes body to a content-addressed path under
// RootDir/<geoID>/<contentHash>.pdf via temp-file-then-rename.
func (m *Manager) store(geoID, pubKey, contentHash string, body []byte) (string, error) {
	dir := filepath.Join(m.Config.RootDir, geoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	destPath := filepath.Join(dir, contentHash+".pdf")

	if _, err := os.Stat(destPath); err == nil {
		return destPath, nil
	}

	tmpFile, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := tmpFile.Write(body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}

// followLandingPage fetches url and looks for a citation_pdf_url meta tag,
// returning the PDF URL it points to if one is found.
func (m *Manager) followLandingPage(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", m.Config.UserAgent)

	resp, err := m.Client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false
	}

	match := citationPDFMeta.FindSubmatch(body)
	if match == nil {
		return "", false
	}
	return string(match[1]), true
}
