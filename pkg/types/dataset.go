// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the geo-enrich pipeline.
// Implements: GEO Registry data model (GEODataset, Publication, URLCandidate,
// DownloadAttempt, ParsedContent, CacheEntry, EnrichmentJob).
//
// See SPEC_FULL.md § 6 (Data Model) and § 4.8 (GEO Registry).
package types

import "time"

// CompletenessLevel is a dataset's position on the enrichment ladder.
type CompletenessLevel string

const (
	StateNew               CompletenessLevel = "NEW"
	StateMetadata          CompletenessLevel = "METADATA"
	StateWithCitations     CompletenessLevel = "WITH_CITATIONS"
	StateWithURLs          CompletenessLevel = "WITH_URLS"
	StateWithPDFs          CompletenessLevel = "WITH_PDFS"
	StateFullyEnriched     CompletenessLevel = "FULLY_ENRICHED"
)

// ladderOrder gives the total order used by AtLeast.
var ladderOrder = map[CompletenessLevel]int{
	StateNew:           0,
	StateMetadata:      1,
	StateWithCitations: 2,
	StateWithURLs:      3,
	StateWithPDFs:      4,
	StateFullyEnriched: 5,
}

// AtLeast reports whether c has reached or passed target on the ladder.
func (c CompletenessLevel) AtLeast(target CompletenessLevel) bool {
	return ladderOrder[c] >= ladderOrder[target]
}

// GEODataset is a single GEO accession (Series, typically GSExxxx) and its
// enrichment state.
type GEODataset struct {
	// GEOID is the accession, e.g. "GSE189158".
	GEOID string `json:"geo_id" yaml:"geo_id"`

	// Title is the dataset title as recorded by GEO.
	Title string `json:"title" yaml:"title"`

	// Organism is the study organism, backfilled from the originating
	// publication when GEO's own record omits it.
	Organism string `json:"organism,omitempty" yaml:"organism,omitempty"`

	// OrganismSource records where Organism came from: "geo" or "publication".
	OrganismSource string `json:"organism_source,omitempty" yaml:"organism_source,omitempty"`

	// PubmedIDs are the PMIDs GEO itself links to this series.
	PubmedIDs []string `json:"pubmed_ids" yaml:"pubmed_ids"`

	// Platform is the GEO platform accession (e.g. "GPL24247").
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`

	// SubmissionDate is when the series was submitted to GEO.
	SubmissionDate time.Time `json:"submission_date" yaml:"submission_date"`

	// Completeness is the dataset's current position on the enrichment ladder.
	Completeness CompletenessLevel `json:"completeness" yaml:"completeness"`

	// RetryCount is the number of enrichment attempts since the last
	// successful stage transition.
	RetryCount int `json:"retry_count" yaml:"retry_count"`

	// LastAttempt is when enrichment was last attempted on this dataset.
	LastAttempt time.Time `json:"last_attempt,omitempty" yaml:"last_attempt,omitempty"`

	// NextEligible is the earliest time a further enrichment attempt may
	// run, per the backoff schedule.
	NextEligible time.Time `json:"next_eligible,omitempty" yaml:"next_eligible,omitempty"`

	// Frozen marks a dataset that exhausted its retries in a non-terminal
	// state and will not be retried automatically.
	Frozen bool `json:"frozen" yaml:"frozen"`
}

// PublicationRelationship describes how a Publication relates to a dataset:
// it either originated the dataset or cites it.
type PublicationRelationship string

const (
	RelationOriginating PublicationRelationship = "originating"
	RelationCiting       PublicationRelationship = "citing"
)

// QualityBand is the coarse quality score bucket assigned to a discovered
// citing publication.
type QualityBand string

const (
	QualityExcellent  QualityBand = "excellent"
	QualityGood       QualityBand = "good"
	QualityAcceptable QualityBand = "acceptable"
	QualityPoor       QualityBand = "poor"
	QualityRejected   QualityBand = "rejected"
)

// Publication is a paper discovered for a GEO dataset, either its
// originating publication or one that cites it.
type Publication struct {
	// Key is a stable identifier: PMID if known, else DOI, else a
	// normalized-title hash. Publications are merged across sources on Key.
	Key string `json:"key" yaml:"key"`

	PMID    string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PMCID   string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`
	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	Title    string    `json:"title" yaml:"title"`
	Authors  []string  `json:"authors" yaml:"authors"`
	Abstract string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Journal  string    `json:"journal,omitempty" yaml:"journal,omitempty"`
	Date     time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Organism is the study organism inferred from this publication's title
	// and abstract, used to backfill GEODataset.Organism when GEO's own
	// record omits it.
	Organism string `json:"organism,omitempty" yaml:"organism,omitempty"`

	// CitationCount is the citing-paper count reported by the source that
	// discovered this publication, if any.
	CitationCount int `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`

	// Relationship records whether this publication originated the dataset
	// or cites it.
	Relationship PublicationRelationship `json:"relationship" yaml:"relationship"`

	// QualityScore is a 0.0-1.0 estimate of the publication's relevance and
	// reliability, used only for citing publications.
	QualityScore float64     `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`
	QualityBand  QualityBand `json:"quality_band,omitempty" yaml:"quality_band,omitempty"`

	// DiscoveredBy lists the source client names that returned this
	// publication, for provenance.
	DiscoveredBy []string `json:"discovered_by" yaml:"discovered_by"`

	// Provisional marks a publication whose metadata came from a fallback
	// summary lookup rather than the authoritative source record.
	Provisional bool `json:"provisional,omitempty" yaml:"provisional,omitempty"`
}

// URLType classifies a candidate full-text URL.
type URLType string

const (
	URLDirectPDF    URLType = "direct-pdf"
	URLHTMLFullText URLType = "html-fulltext"
	URLLandingPage  URLType = "landing-page"
	URLDOIResolver  URLType = "doi-resolver"
	URLUnknown      URLType = "unknown"
)

// URLCandidate is one full-text location discovered for a publication.
type URLCandidate struct {
	URL  string  `json:"url" yaml:"url"`
	Type URLType `json:"type" yaml:"type"`

	// Source is the client name that discovered this candidate.
	Source string `json:"source" yaml:"source"`

	// Priority is the base priority (lower sorts first) with the type's
	// boost already applied.
	Priority int `json:"priority" yaml:"priority"`

	// Confidence is the source's own confidence in this candidate, 0.0-1.0.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// RequiresAuth marks a candidate known to need institutional access.
	RequiresAuth bool `json:"requires_auth,omitempty" yaml:"requires_auth,omitempty"`

	// CurrentlyBlacklisted marks a candidate the Coordinator saw fail (a PMC
	// download denied during P3) and flagged through the registry.
	// It is the only field of an already-stored candidate the registry ever
	// mutates; the candidate row itself is retained for the retry set.
	CurrentlyBlacklisted bool `json:"currently_blacklisted,omitempty" yaml:"currently_blacklisted,omitempty"`
}

// AttemptOutcome is the result of one download attempt against a URLCandidate.
type AttemptOutcome string

const (
	AttemptSucceeded      AttemptOutcome = "succeeded"
	AttemptHTTPError      AttemptOutcome = "http_error"
	AttemptInvalidContent AttemptOutcome = "invalid_content"
	AttemptTooLarge       AttemptOutcome = "too_large"
	AttemptTooSmall       AttemptOutcome = "too_small"
	AttemptTimeout        AttemptOutcome = "timeout"
	AttemptDenied         AttemptOutcome = "denied"
)

// DownloadAttempt is an append-only record of one waterfall step.
type DownloadAttempt struct {
	PublicationKey string         `json:"publication_key" yaml:"publication_key"`
	URL            string         `json:"url" yaml:"url"`
	Outcome        AttemptOutcome `json:"outcome" yaml:"outcome"`
	HTTPStatus     int            `json:"http_status,omitempty" yaml:"http_status,omitempty"`
	Bytes          int64          `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	ContentSHA256  string         `json:"content_sha256,omitempty" yaml:"content_sha256,omitempty"`
	AttemptedAt    time.Time      `json:"attempted_at" yaml:"attempted_at"`
	Error          string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// ParsedSection is one canonical section of a parsed PDF.
type ParsedSection struct {
	Name string `json:"name" yaml:"name"`
	Text string `json:"text" yaml:"text"`
}

// Figure is an extracted figure or table caption.
type Figure struct {
	Label   string `json:"label" yaml:"label"`
	Caption string `json:"caption" yaml:"caption"`
	Page    int    `json:"page,omitempty" yaml:"page,omitempty"`
}

// ParsedContent is the structured output of P4 for one downloaded PDF.
type ParsedContent struct {
	// ContentSHA256 is computed over the normalized section map and is the
	// content-addressed key under which this record is stored.
	ContentSHA256 string `json:"content_sha256" yaml:"content_sha256"`

	PublicationKey string          `json:"publication_key" yaml:"publication_key"`
	Sections       []ParsedSection `json:"sections" yaml:"sections"`
	Figures        []Figure        `json:"figures,omitempty" yaml:"figures,omitempty"`

	// QualityScore is 0.0-1.0, derived from section coverage and heading
	// match confidence.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`

	// Degraded marks content that parsed without clean section boundaries.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`

	ParsedAt time.Time `json:"parsed_at" yaml:"parsed_at"`
}

// CacheEntry is a generic envelope for cache-tier values, carrying the
// metadata needed to decide TTL and eviction regardless of which tier
// currently holds it.
type CacheEntry struct {
	Key       string    `json:"key" yaml:"key"`
	Value     []byte    `json:"value" yaml:"value"`
	StoredAt  time.Time `json:"stored_at" yaml:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// EnrichmentJob tracks one dataset's progress through the Coordinator for a
// single Enrich call, independent of the persisted GEODataset state.
type EnrichmentJob struct {
	GEOID        string            `json:"geo_id" yaml:"geo_id"`
	DesiredLevel CompletenessLevel `json:"desired_level" yaml:"desired_level"`
	Reached      CompletenessLevel `json:"reached" yaml:"reached"`
	Err          string            `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time         `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// CompleteGEOData is the full snapshot returned by Registry.GetComplete and
// by the Enrichment Service boundary.
type CompleteGEOData struct {
	Dataset      GEODataset        `json:"dataset" yaml:"dataset"`
	Publications []Publication     `json:"publications" yaml:"publications"`
	Candidates   []URLCandidate    `json:"url_candidates" yaml:"url_candidates"`
	Attempts     []DownloadAttempt `json:"download_attempts" yaml:"download_attempts"`
	Parsed       []ParsedContent   `json:"parsed_content" yaml:"parsed_content"`
}
