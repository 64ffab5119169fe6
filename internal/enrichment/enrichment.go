// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrichment is the Enrichment Service boundary: the one entry
// point an HTTP API layer calls to drive a batch of datasets through the
// Pipeline Coordinator and get back a snapshot of each, regardless of how
// far enrichment actually got.
//
// Implements: SPEC_FULL.md § 4.10.
package enrichment

import (
	"context"
	"io"
	"sync"

	"github.com/pdiddy/geo-enrich/internal/coordinator"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

// Event reports one dataset's outcome to an optional subscriber while a
// batch runs. One Event is sent per dataset, after the Coordinator's run for
// it returns, carrying the level reached and any error; intermediate stage
// transitions are not reported.
type Event struct {
	GEOID   string
	Stage   types.CompletenessLevel
	Err     string
}

// Request is one dataset to enrich, paired with the caller's desired
// completeness level. DesiredLevel defaults to types.StateFullyEnriched
// when left empty, matching spec.md §6's EnrichRequest default.
type Request struct {
	Seed         coordinator.DatasetSeed
	DesiredLevel types.CompletenessLevel
}

// Statistics summarizes one dataset's publication and download counts, per
// spec.md §6's DatasetSnapshot.statistics.
type Statistics struct {
	Original           int
	Citing             int
	SuccessfulDownloads int
	FailedDownloads    int
	SuccessRate        float64
}

// DatasetSnapshot is one dataset's result, always returned even when
// enrichment stopped early on a frozen or backed-off stage.
type DatasetSnapshot struct {
	GEOID      string
	Reached    types.CompletenessLevel
	Err        string
	Data       types.CompleteGEOData
	Statistics Statistics
}

// Response is the result of one Enrich call.
type Response struct {
	Datasets []DatasetSnapshot
}

// Service runs Coordinators over batches of datasets with bounded
// concurrency, sharing one Coordinator's semaphore and dependencies across
// the whole batch.
type Service struct {
	Coordinator *coordinator.Coordinator

	// MaxConcurrentDatasets bounds how many datasets are advanced at once;
	// it defaults to 10 when zero or negative.
	MaxConcurrentDatasets int
}

// Enrich drives every request's dataset through the Coordinator up to its
// desired level, optionally streaming Events to events (events may be nil).
// It returns a Response listing the best-available snapshot for every
// dataset, in the same order as requests, regardless of individual
// failures: a dataset error never prevents the others from being reported.
func (s *Service) Enrich(ctx context.Context, requests []Request, events chan<- Event, w io.Writer) Response {
	results := make([]DatasetSnapshot, len(requests))

	limit := s.MaxConcurrentDatasets
	if limit <= 0 {
		limit = 10
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, req Request) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.enrichOne(ctx, req, events, w)
		}(i, req)
	}
	wg.Wait()

	return Response{Datasets: results}
}

func (s *Service) enrichOne(ctx context.Context, req Request, events chan<- Event, w io.Writer) DatasetSnapshot {
	desired := req.DesiredLevel
	if desired == "" {
		desired = types.StateFullyEnriched
	}

	reached, err := s.Coordinator.Advance(ctx, req.Seed, desired, w)
	snapshot := DatasetSnapshot{GEOID: req.Seed.GEOID, Reached: reached}
	if err != nil {
		snapshot.Err = err.Error()
	}
	if events != nil {
		evt := Event{GEOID: req.Seed.GEOID, Stage: reached}
		if err != nil {
			evt.Err = err.Error()
		}
		select {
		case events <- evt:
		case <-ctx.Done():
		}
	}

	data, dataErr := s.Coordinator.Registry.GetComplete(ctx, req.Seed.GEOID)
	if dataErr != nil {
		if snapshot.Err == "" {
			snapshot.Err = dataErr.Error()
		}
		return snapshot
	}
	snapshot.Data = data
	snapshot.Statistics = computeStatistics(data)
	return snapshot
}

func computeStatistics(data types.CompleteGEOData) Statistics {
	var stats Statistics
	for _, pub := range data.Publications {
		if pub.Relationship == types.RelationOriginating {
			stats.Original++
		} else {
			stats.Citing++
		}
	}
	for _, attempt := range data.Attempts {
		if attempt.Outcome == types.AttemptSucceeded {
			stats.SuccessfulDownloads++
		} else {
			stats.FailedDownloads++
		}
	}
	total := stats.SuccessfulDownloads + stats.FailedDownloads
	if total > 0 {
		stats.SuccessRate = float64(stats.SuccessfulDownloads) / float64(total)
	}
	return stats
}
