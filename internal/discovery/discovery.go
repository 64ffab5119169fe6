// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discovery implements Citation Discovery (P1): resolving a
// dataset's originating publications and fanning out across citation
// sources to find the papers that cite it.
//
// Implements: SPEC_FULL.md § 4.6.
package discovery

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pdiddy/geo-enrich/internal/logging"
	"github.com/pdiddy/geo-enrich/internal/sources"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

// Output holds the discovered publications and per-source failure notes.
type Output struct {
	Publications []types.Publication
	DupsRemoved  int
	Errors       map[string]string
}

// DiscoverOriginating resolves metadata for each of dataset.PubmedIDs by
// fanning out to every configured FetchesCitations client and merging the
// results, exactly like DiscoverCiting below but seeded from known PMIDs
// rather than from a single seed publication.
func DiscoverOriginating(ctx context.Context, pmids []string, clients []sources.FetchesCitations, budget time.Duration, w io.Writer) Output {
	var all []types.Publication
	errs := map[string]string{}

	for _, pmid := range pmids {
		seed := types.Publication{PMID: pmid}
		out := fanOut(ctx, seed, clients, budget, w)
		for _, p := range out.Publications {
			if p.Relationship == types.RelationOriginating {
				all = append(all, p)
			}
		}
		for k, v := range out.Errors {
			errs[k] = v
		}
	}

	deduped, removed := deduplicate(all)
	for i := range deduped {
		if deduped[i].Organism == "" {
			deduped[i].Organism = inferOrganism(deduped[i].Title, deduped[i].Abstract)
		}
	}
	return Output{Publications: deduped, DupsRemoved: removed, Errors: errs}
}

// DiscoverCiting fans out across every configured FetchesCitations client to
// find papers that cite seed, merges and deduplicates the results, and
// assigns each a quality score and band.
func DiscoverCiting(ctx context.Context, seed types.Publication, clients []sources.FetchesCitations, budget time.Duration, w io.Writer) Output {
	out := fanOut(ctx, seed, clients, budget, w)

	var citing []types.Publication
	for _, p := range out.Publications {
		if p.Relationship == types.RelationCiting {
			citing = append(citing, p)
		}
	}

	deduped, removed := deduplicate(citing)
	for i := range deduped {
		deduped[i].QualityScore, deduped[i].QualityBand = scoreQuality(deduped[i])
	}

	return Output{Publications: deduped, DupsRemoved: out.DupsRemoved + removed, Errors: out.Errors}
}

func fanOut(ctx context.Context, seed types.Publication, clients []sources.FetchesCitations, budget time.Duration, w io.Writer) Output {
	if len(clients) == 0 {
		return Output{Errors: map[string]string{}}
	}

	fanCtx := ctx
	var cancel context.CancelFunc
	if budget > 0 {
		fanCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	type clientResult struct {
		name string
		res  sources.SourceResult
		err  error
	}

	ch := make(chan clientResult, len(clients))
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c sources.FetchesCitations) {
			defer wg.Done()
			res, err := c.FetchCitations(fanCtx, seed)
			ch <- clientResult{name: c.Name(), res: res, err: err}
		}(c)
	}
	go func() { wg.Wait(); close(ch) }()

	var all []types.Publication
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
		logging.Logf(w, r.name, "ok", fmt.Sprintf("found %d publications", len(r.res.Publications)))
		all = append(all, r.res.Publications...)
	}

	return Output{Publications: all, Errors: errs}
}

// deduplicate merges publications that share a Key or a normalized title,
// the same merge strategy the corpus's search fan-out uses for results
// discovered by more than one backend.
func deduplicate(pubs []types.Publication) ([]types.Publication, int) {
	seen := make(map[string]int)
	var deduped []types.Publication
	removed := 0

	for _, p := range pubs {
		key := p.Key
		if idx, ok := seen[key]; ok && key != "" {
			mergeInto(&deduped[idx], p)
			removed++
			continue
		}

		titleKey := "title:" + normalizeTitle(p.Title)
		if titleKey != "title:" {
			if idx, ok := seen[titleKey]; ok {
				mergeInto(&deduped[idx], p)
				removed++
				continue
			}
		}

		idx := len(deduped)
		deduped = append(deduped, p)
		if key != "" {
			seen[key] = idx
		}
		if titleKey != "title:" {
			seen[titleKey] = idx
		}
	}
	return deduped, removed
}

func mergeInto(dst *types.Publication, src types.Publication) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = src.Authors
	}
	if dst.Abstract == "" && src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
	if dst.Journal == "" && src.Journal != "" {
		dst.Journal = src.Journal
	}
	if dst.Date.IsZero() && !src.Date.IsZero() {
		dst.Date = src.Date
	}
	if dst.PMID == "" && src.PMID != "" {
		dst.PMID = src.PMID
	}
	if dst.PMCID == "" && src.PMCID != "" {
		dst.PMCID = src.PMCID
	}
	if dst.DOI == "" && src.DOI != "" {
		dst.DOI = src.DOI
	}
	if dst.Organism == "" && src.Organism != "" {
		dst.Organism = src.Organism
	}
	if src.CitationCount > dst.CitationCount {
		dst.CitationCount = src.CitationCount
	}
	for _, d := range src.DiscoveredBy {
		if !contains(dst.DiscoveredBy, d) {
			dst.DiscoveredBy = append(dst.DiscoveredBy, d)
		}
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// organismKeywords maps common-name substrings found in titles/abstracts to
// the binomial GEO itself records, ordered so the most specific match (e.g.
// "house mouse") is tried before a shorter substring it also contains.
var organismKeywords = []struct {
	keyword  string
	organism string
}{
	{"homo sapiens", "Homo sapiens"},
	{"human", "Homo sapiens"},
	{"house mouse", "Mus musculus"},
	{"mus musculus", "Mus musculus"},
	{"mouse", "Mus musculus"},
	{"murine", "Mus musculus"},
	{"rattus norvegicus", "Rattus norvegicus"},
	{"rat ", "Rattus norvegicus"},
	{"zebrafish", "Danio rerio"},
	{"danio rerio", "Danio rerio"},
	{"drosophila melanogaster", "Drosophila melanogaster"},
	{"drosophila", "Drosophila melanogaster"},
	{"fruit fly", "Drosophila melanogaster"},
	{"caenorhabditis elegans", "Caenorhabditis elegans"},
	{"c. elegans", "Caenorhabditis elegans"},
	{"arabidopsis thaliana", "Arabidopsis thaliana"},
	{"arabidopsis", "Arabidopsis thaliana"},
	{"saccharomyces cerevisiae", "Saccharomyces cerevisiae"},
	{"budding yeast", "Saccharomyces cerevisiae"},
	{"escherichia coli", "Escherichia coli"},
	{"e. coli", "Escherichia coli"},
}

// inferOrganism guesses the study organism from an originating publication's
// title and abstract when GEO's own record for the dataset omits one. This
// is a best-effort fallback, not a replacement for GEO's curated field.
func inferOrganism(title, abstract string) string {
	text := strings.ToLower(title + " " + abstract)
	for _, kw := range organismKeywords {
		if strings.Contains(text, kw.keyword) {
			return kw.organism
		}
	}
	return ""
}

// scoreQuality derives a 0.0-1.0 estimate and a coarse band from abstract
// length, citation count, and recency.
func scoreQuality(p types.Publication) (float64, types.QualityBand) {
	score := 0.0

	switch {
	case len(p.Abstract) > 400:
		score += 0.35
	case len(p.Abstract) > 0:
		score += 0.15
	}

	switch {
	case p.CitationCount >= 20:
		score += 0.35
	case p.CitationCount >= 5:
		score += 0.2
	case p.CitationCount > 0:
		score += 0.1
	}

	if !p.Date.IsZero() && time.Since(p.Date) < 5*365*24*time.Hour {
		score += 0.15
	}

	if len(p.DiscoveredBy) > 1 {
		score += 0.15
	}

	if score > 1.0 {
		score = 1.0
	}

	band := types.QualityRejected
	switch {
	case score >= 0.8:
		band = types.QualityExcellent
	case score >= 0.6:
		band = types.QualityGood
	case score >= 0.35:
		band = types.QualityAcceptable
	case score > 0:
		band = types.QualityPoor
	}
	return score, band
}
