// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coordinator implements the Pipeline Coordinator: the state
// machine that sequences Citation Discovery (P1), the Full-Text Manager
// (P2), the Download Manager (P3), and the PDF Parser (P4) per dataset,
// persisting progress before every transition so the pipeline is
// crash-safe and resumable.
//
// Implements: SPEC_FULL.md § 4.9.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/geo-enrich/internal/classify"
	"github.com/pdiddy/geo-enrich/internal/discovery"
	"github.com/pdiddy/geo-enrich/internal/download"
	"github.com/pdiddy/geo-enrich/internal/fulltext"
	"github.com/pdiddy/geo-enrich/internal/logging"
	"github.com/pdiddy/geo-enrich/internal/parse"
	"github.com/pdiddy/geo-enrich/internal/registry"
	"github.com/pdiddy/geo-enrich/internal/sources"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

// DatasetSeed is the externally supplied metadata that starts a dataset's
// journey through the ladder; the Coordinator never fetches this itself
// (the pipeline's GEO id -> seed metadata step is the caller's
// responsibility, per spec.md's data-flow diagram).
type DatasetSeed struct {
	GEOID          string
	Title          string
	Organism       string
	PubmedIDs      []string
	Platform       string
	SubmissionDate time.Time
}

// Coordinator drives datasets through the completeness ladder.
type Coordinator struct {
	Registry *registry.Registry

	CitationClients []sources.FetchesCitations
	URLClients      []sources.FetchesURLs
	PDFClients      []sources.FetchesDirectPDF
	OpenAlex        sources.FetchesURLs
	PMCBlocked      bool

	Download *download.Manager
	Parser   *parse.Parser

	Config types.CoordinatorConfig

	// PublicationSem bounds concurrent per-publication Full-Text Manager
	// calls (P2) across every dataset sharing this Coordinator. Downloads
	// are bounded separately by the Download Manager's own semaphore.
	PublicationSem *semaphore.Weighted

	FanOutBudget time.Duration
}

// ErrNoCandidates means the Full-Text Manager ran for every publication on
// a dataset and found zero URL candidates, halting the ladder at
// with_citations rather than silently advancing it.
var ErrNoCandidates = errors.New("no url candidates found")

// ErrAllCandidatesFailed means the Download Manager ran for at least one
// publication with candidates but none produced an accepted PDF, halting
// the ladder at with_urls rather than silently advancing it.
var ErrAllCandidatesFailed = errors.New("all download candidates failed")

// NewCoordinator wires a Coordinator with its own publication semaphore
// sized from cfg.MaxConcurrentDatasets.
func NewCoordinator(cfg types.CoordinatorConfig) *Coordinator {
	weight := cfg.MaxConcurrentDatasets
	if weight <= 0 {
		weight = 1
	}
	return &Coordinator{Config: cfg, PublicationSem: semaphore.NewWeighted(weight)}
}

// Advance runs every stage still required to reach desired on the dataset
// identified by seed.GEOID, persisting each transition before the next
// stage executes. It returns the best completeness level actually reached.
func (c *Coordinator) Advance(ctx context.Context, seed DatasetSeed, desired types.CompletenessLevel, w io.Writer) (types.CompletenessLevel, error) {
	dataset, err := c.loadOrSeed(ctx, seed)
	if err != nil {
		return types.StateNew, err
	}

	for !dataset.Completeness.AtLeast(desired) {
		if dataset.Frozen {
			logging.Logf(w, dataset.GEOID, "frozen", "completeness frozen, not retrying", "level", string(dataset.Completeness))
			break
		}
		if !eligible(dataset) {
			logging.Logf(w, dataset.GEOID, "backoff", "deferred", "next_eligible", dataset.NextEligible.Format(time.RFC3339))
			break
		}

		next := nextStage(dataset.Completeness)
		if next == "" {
			break
		}

		err := c.runStage(ctx, &dataset, next, w)
		dataset.LastAttempt = time.Now()
		if err != nil {
			c.recordFailure(&dataset, err)
			logging.Logf(w, dataset.GEOID, "stage_failed", err.Error(), "stage", string(next), "retry_count", dataset.RetryCount)
		} else {
			dataset.Completeness = next
			dataset.RetryCount = 0
			dataset.NextEligible = time.Time{}
			logging.Logf(w, dataset.GEOID, "advanced", "stage succeeded", "level", string(next))
		}

		if persistErr := c.Registry.UpsertDataset(ctx, dataset); persistErr != nil {
			return dataset.Completeness, fmt.Errorf("persisting dataset %s: %w", dataset.GEOID, persistErr)
		}

		if err != nil {
			break
		}
	}

	return dataset.Completeness, nil
}

func (c *Coordinator) loadOrSeed(ctx context.Context, seed DatasetSeed) (types.GEODataset, error) {
	snapshot, err := c.Registry.GetComplete(ctx, seed.GEOID)
	if err == nil {
		return snapshot.Dataset, nil
	}

	dataset := types.GEODataset{
		GEOID:          seed.GEOID,
		Title:          seed.Title,
		Organism:       seed.Organism,
		PubmedIDs:      seed.PubmedIDs,
		Platform:       seed.Platform,
		SubmissionDate: seed.SubmissionDate,
		Completeness:   types.StateNew,
	}
	if dataset.Organism != "" {
		dataset.OrganismSource = "geo"
	}
	if err := c.Registry.UpsertDataset(ctx, dataset); err != nil {
		return types.GEODataset{}, fmt.Errorf("seeding dataset %s: %w", seed.GEOID, err)
	}
	return dataset, nil
}

// nextStage returns the stage that follows current on the ladder, or ""
// if current is already terminal.
func nextStage(current types.CompletenessLevel) types.CompletenessLevel {
	switch current {
	case types.StateNew:
		return types.StateMetadata
	case types.StateMetadata:
		return types.StateWithCitations
	case types.StateWithCitations:
		return types.StateWithURLs
	case types.StateWithURLs:
		return types.StateWithPDFs
	case types.StateWithPDFs:
		return types.StateFullyEnriched
	default:
		return ""
	}
}

// eligible applies the smart-reenrichment rule: run if never attempted, or
// if the backoff window for the current retry count has elapsed.
func eligible(d types.GEODataset) bool {
	if d.LastAttempt.IsZero() {
		return true
	}
	return !time.Now().Before(d.NextEligible)
}

func (c *Coordinator) recordFailure(d *types.GEODataset, err error) {
	d.RetryCount++
	if d.RetryCount >= maxRetries(c.Config) {
		d.Frozen = true
		return
	}
	d.NextEligible = time.Now().Add(backoffFor(c.Config, d.RetryCount))
}

func maxRetries(cfg types.CoordinatorConfig) int {
	if cfg.MaxRetries <= 0 {
		return 3
	}
	return cfg.MaxRetries
}

func backoffFor(cfg types.CoordinatorConfig, retryCount int) time.Duration {
	schedule := cfg.BackoffSchedule
	if len(schedule) == 0 {
		schedule = []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour}
	}
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}

func (c *Coordinator) runStage(ctx context.Context, d *types.GEODataset, stage types.CompletenessLevel, w io.Writer) error {
	switch stage {
	case types.StateMetadata:
		return nil // seed metadata already persisted by loadOrSeed
	case types.StateWithCitations:
		return c.runCitationDiscovery(ctx, d, w)
	case types.StateWithURLs:
		return c.runFullTextCollection(ctx, d, w)
	case types.StateWithPDFs:
		return c.runDownloads(ctx, d, w)
	case types.StateFullyEnriched:
		return c.runParsing(ctx, d, w)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

func (c *Coordinator) runCitationDiscovery(ctx context.Context, d *types.GEODataset, w io.Writer) error {
	originating := discovery.DiscoverOriginating(ctx, d.PubmedIDs, c.CitationClients, c.FanOutBudget, w)
	for _, pub := range originating.Publications {
		if err := c.Registry.UpsertPublication(ctx, d.GEOID, pub); err != nil {
			return fmt.Errorf("persisting originating publication %s: %w", pub.Key, err)
		}
		if d.Organism == "" && pub.Organism != "" {
			d.Organism = pub.Organism
			d.OrganismSource = "publication"
		}
	}

	rejected := 0
	for _, seed := range originating.Publications {
		citing := discovery.DiscoverCiting(ctx, seed, c.CitationClients, c.FanOutBudget, w)
		for _, pub := range citing.Publications {
			if pub.QualityBand == types.QualityRejected {
				rejected++
				continue
			}
			if err := c.Registry.UpsertPublication(ctx, d.GEOID, pub); err != nil {
				return fmt.Errorf("persisting citing publication %s: %w", pub.Key, err)
			}
		}
	}
	if rejected > 0 {
		logging.Logf(w, d.GEOID, "quality_filtered", "dropped low-quality citing publications", "count", rejected)
	}
	return nil
}

func (c *Coordinator) runFullTextCollection(ctx context.Context, d *types.GEODataset, w io.Writer) error {
	snapshot, err := c.Registry.GetComplete(ctx, d.GEOID)
	if err != nil {
		return fmt.Errorf("loading publications for %s: %w", d.GEOID, err)
	}

	mgr := &fulltext.Manager{
		URLClients:   c.URLClients,
		PDFClients:   c.PDFClients,
		PMCBlocked:   c.PMCBlocked,
		OpenAlex:     c.OpenAlex,
		FanOutBudget: c.FanOutBudget,
	}

	total := 0
	for _, pub := range snapshot.Publications {
		if err := c.PublicationSem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("acquiring publication slot: %w", err)
		}
		out := mgr.Collect(ctx, pub, w)
		c.PublicationSem.Release(1)

		if err := c.Registry.AppendURLCandidates(ctx, d.GEOID, pub.Key, out.Candidates); err != nil {
			return fmt.Errorf("persisting candidates for %s: %w", pub.Key, err)
		}
		total += len(out.Candidates)
	}
	if total == 0 {
		return fmt.Errorf("%w: %s", ErrNoCandidates, d.GEOID)
	}
	return nil
}

func (c *Coordinator) runDownloads(ctx context.Context, d *types.GEODataset, w io.Writer) error {
	snapshot, err := c.Registry.GetComplete(ctx, d.GEOID)
	if err != nil {
		return fmt.Errorf("loading publications for %s: %w", d.GEOID, err)
	}

	hadCandidates, succeeded := false, 0
	for _, pub := range snapshot.Publications {
		if hasSucceededAttempt(snapshot.Attempts, pub.Key) {
			hadCandidates = true
			succeeded++
			continue
		}

		candidates, err := c.Registry.GetURLCandidates(ctx, pub.Key)
		if err != nil {
			return fmt.Errorf("loading candidates for %s: %w", pub.Key, err)
		}
		if len(candidates) == 0 {
			continue
		}
		hadCandidates = true

		candidates = withoutBlacklisted(candidates)
		if len(candidates) == 0 {
			continue
		}

		result, err := c.Download.Run(ctx, d.GEOID, pub, candidates)
		if err != nil {
			return fmt.Errorf("download waterfall for %s: %w", pub.Key, err)
		}
		for _, attempt := range result.Attempts {
			if err := c.Registry.AppendDownloadAttempt(ctx, d.GEOID, attempt); err != nil {
				return fmt.Errorf("persisting attempt for %s: %w", pub.Key, err)
			}
		}

		if !result.Succeeded() {
			if retried, retryErr := c.handlePMCDenial(ctx, d.GEOID, pub, result, w); retryErr != nil {
				return retryErr
			} else if retried.Succeeded() {
				result = retried
			}
		}

		if result.Succeeded() {
			succeeded++
			logging.Logf(w, d.GEOID, "downloaded", "pdf accepted", "publication", pub.Key, "path", result.Path)
		}
	}
	if hadCandidates && succeeded == 0 {
		return fmt.Errorf("%w: %s", ErrAllCandidatesFailed, d.GEOID)
	}
	return nil
}

// handlePMCDenial reacts to a live PMC 403/401 observed in result: it marks
// the denied candidate currently-blacklisted so future waterfalls skip it,
// then (if an OpenAlex client is wired) fetches a fallback candidate and
// retries the waterfall once more. It returns a zero Result when no PMC
// denial was found, in which case the caller keeps its original result.
func (c *Coordinator) handlePMCDenial(ctx context.Context, geoID string, pub types.Publication, result download.Result, w io.Writer) (download.Result, error) {
	var denied *types.DownloadAttempt
	for i := range result.Attempts {
		a := &result.Attempts[i]
		if a.Outcome == types.AttemptDenied && classify.IsPMCHost(a.URL) {
			denied = a
			break
		}
	}
	if denied == nil {
		return download.Result{}, nil
	}

	if err := c.Registry.SetURLCandidateBlacklisted(ctx, geoID, pub.Key, denied.URL, true); err != nil {
		return download.Result{}, fmt.Errorf("blacklisting %s: %w", denied.URL, err)
	}
	logging.Logf(w, geoID, "pmc_denied", "blacklisting pmc candidate", "publication", pub.Key, "url", denied.URL)

	if c.OpenAlex == nil {
		return download.Result{}, nil
	}
	fallback, err := c.OpenAlex.FetchURLs(ctx, pub)
	if err != nil || fallback.Status != sources.StatusOk || len(fallback.Candidates) == 0 {
		return download.Result{}, nil
	}
	if err := c.Registry.AppendURLCandidates(ctx, geoID, pub.Key, fallback.Candidates); err != nil {
		return download.Result{}, fmt.Errorf("persisting fallback candidates for %s: %w", pub.Key, err)
	}
	logging.Logf(w, geoID, "pmc_fallback", "openalex fallback invoked", "publication", pub.Key, "count", len(fallback.Candidates))

	retryResult, err := c.Download.Run(ctx, geoID, pub, fallback.Candidates)
	if err != nil {
		return download.Result{}, fmt.Errorf("retrying download waterfall for %s: %w", pub.Key, err)
	}
	for _, attempt := range retryResult.Attempts {
		if err := c.Registry.AppendDownloadAttempt(ctx, geoID, attempt); err != nil {
			return download.Result{}, fmt.Errorf("persisting retry attempt for %s: %w", pub.Key, err)
		}
	}
	return retryResult, nil
}

// hasSucceededAttempt reports whether pubKey already has a recorded
// successful download attempt, so runDownloads can skip re-running the
// waterfall for a publication that has already reached the at-most-one-
// success invariant.
func hasSucceededAttempt(attempts []types.DownloadAttempt, pubKey string) bool {
	for _, a := range attempts {
		if a.PublicationKey == pubKey && a.Outcome == types.AttemptSucceeded {
			return true
		}
	}
	return false
}

// withoutBlacklisted drops candidates flagged as currently failing (set by
// handlePMCDenial when a PMC download is denied), so the
// waterfall doesn't keep retrying a host known to be blocking it.
func withoutBlacklisted(candidates []types.URLCandidate) []types.URLCandidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if !c.CurrentlyBlacklisted {
			out = append(out, c)
		}
	}
	return out
}

func (c *Coordinator) runParsing(ctx context.Context, d *types.GEODataset, w io.Writer) error {
	snapshot, err := c.Registry.GetComplete(ctx, d.GEOID)
	if err != nil {
		return fmt.Errorf("loading attempts for %s: %w", d.GEOID, err)
	}

	for _, attempt := range snapshot.Attempts {
		if attempt.Outcome != types.AttemptSucceeded {
			continue
		}
		content, reason := c.Parser.Parse(c.pdfPathFor(d.GEOID, attempt), attempt.PublicationKey)
		if reason != "" {
			logging.Logf(w, d.GEOID, "parse_failed", reason, "publication", attempt.PublicationKey)
			continue
		}
		if err := c.Registry.StoreParsedContent(ctx, d.GEOID, *content); err != nil {
			return fmt.Errorf("persisting parsed content for %s: %w", attempt.PublicationKey, err)
		}
	}
	return nil
}

// pdfPathFor resolves a download attempt's stored PDF path, mirroring
// download.Manager's content-addressed RootDir/geoID/contentHash.pdf layout.
func (c *Coordinator) pdfPathFor(geoID string, a types.DownloadAttempt) string {
	return filepath.Join(c.Download.Config.RootDir, geoID, a.ContentSHA256+".pdf")
}
