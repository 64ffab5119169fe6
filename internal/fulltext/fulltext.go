// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext implements the Full-Text Manager (P2): fanning out
// across every configured FetchesURLs / FetchesDirectPDF client to collect
// candidate full-text URLs for a publication, classifying and ranking them
// for the Download Manager's waterfall.
//
// Implements: SPEC_FULL.md § 4.3.
package fulltext

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/geo-enrich/internal/classify"
	"github.com/pdiddy/geo-enrich/internal/logging"
	"github.com/pdiddy/geo-enrich/internal/sources"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

// Output holds the ranked candidates and per-source failure notes.
type Output struct {
	Candidates []types.URLCandidate
	Errors     map[string]string
}

// Manager fans out across URL- and direct-PDF-capable source clients.
type Manager struct {
	URLClients []sources.FetchesURLs
	PDFClients []sources.FetchesDirectPDF

	// PMCBlocked triggers the OpenAlex fallback rule: when the only
	// candidate found is PMC-hosted and PMC is currently refusing automated
	// downloads, an OpenAlex lookup is injected before returning.
	PMCBlocked  bool
	OpenAlex    sources.FetchesURLs
	FanOutBudget time.Duration
}

// Collect fans out across all configured clients for pub and returns a
// priority-ranked, boost-adjusted candidate list.
func (m *Manager) Collect(ctx context.Context, pub types.Publication, w io.Writer) Output {
	fanCtx := ctx
	var cancel context.CancelFunc
	if m.FanOutBudget > 0 {
		fanCtx, cancel = context.WithTimeout(ctx, m.FanOutBudget)
		defer cancel()
	}

	type result struct {
		name string
		res  sources.SourceResult
		err  error
	}

	total := len(m.URLClients) + len(m.PDFClients)
	ch := make(chan result, total)
	var wg sync.WaitGroup

	for _, c := range m.URLClients {
		wg.Add(1)
		go func(c sources.FetchesURLs) {
			defer wg.Done()
			res, err := c.FetchURLs(fanCtx, pub)
			ch <- result{name: c.Name(), res: res, err: err}
		}(c)
	}
	for _, c := range m.PDFClients {
		wg.Add(1)
		go func(c sources.FetchesDirectPDF) {
			defer wg.Done()
			res, err := c.FetchPDFURL(fanCtx, pub)
			ch <- result{name: c.Name(), res: res, err: err}
		}(c)
	}
	go func() { wg.Wait(); close(ch) }()

	var candidates []types.URLCandidate
	errs := map[string]string{}
	for r := range ch {
		if r.err != nil {
			errs[r.name] = r.err.Error()
			logging.Logf(w, r.name, "error", r.err.Error())
			continue
		}
		if r.res.Status != sources.StatusOk {
			if r.res.Reason != "" {
				errs[r.name] = r.res.Reason
			}
			logging.Logf(w, r.name, string(r.res.Status), r.res.Reason)
			continue
		}
		logging.Logf(w, r.name, "ok", fmt.Sprintf("found %d candidates", len(r.res.Candidates)))
		candidates = append(candidates, r.res.Candidates...)
	}

	candidates = classifyAndBoost(candidates)

	if m.PMCBlocked && onlyPMC(candidates) && m.OpenAlex != nil {
		res, err := m.OpenAlex.FetchURLs(fanCtx, pub)
		if err == nil && res.Status == sources.StatusOk {
			candidates = append(candidates, classifyAndBoost(res.Candidates)...)
			logging.Logf(w, m.OpenAlex.Name(), "ok", "pmc fallback injected", "count", len(res.Candidates))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	return Output{Candidates: candidates, Errors: errs}
}

// classifyAndBoost re-derives each candidate's Type and Priority from its
// URL via the deterministic classifier, so the final priority reflects
// both the source-assigned priority and the URL's own shape.
func classifyAndBoost(candidates []types.URLCandidate) []types.URLCandidate {
	for i, c := range candidates {
		urlType, boost := classify.Classify(c.URL)
		candidates[i].Type = urlType
		candidates[i].Priority = c.Priority + boost
	}
	return candidates
}

func onlyPMC(candidates []types.URLCandidate) bool {
	if len(candidates) == 0 {
		return false
	}
	for _, c := range candidates {
		if !classify.IsPMCHost(c.URL) {
			return false
		}
	}
	return true
}
