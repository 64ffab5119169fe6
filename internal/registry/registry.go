// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry persists GEO datasets, publications, URL candidates,
// download attempts, and parsed content in a SQLite database, and serves
// the Coordinator's single joined CompleteGEOData snapshot.
//
// Implements: SPEC_FULL.md § 4.8.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

const dbFile = "registry.db"

// Registry manages the GEO enrichment SQLite database. Writes for a given
// GEO id are serialized through a per-id mutex (spec.md §5); reads are
// lock-free snapshot queries.
type Registry struct {
	db *sql.DB

	mu      sync.Mutex
	writers map[string]*sync.Mutex
}

// Open opens or creates the registry database at rootDir/registry.db,
// creating the schema if it does not already exist.
func Open(rootDir string) (*Registry, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	dbPath := filepath.Join(rootDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	r := &Registry{db: db, writers: make(map[string]*sync.Mutex)}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return r, nil
}

// Close releases the database connection.
func (r *Registry) Close() error { return r.db.Close() }

func (r *Registry) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			geo_id TEXT PRIMARY KEY,
			title TEXT,
			organism TEXT,
			organism_source TEXT,
			pubmed_ids TEXT,
			platform TEXT,
			submission_date TEXT,
			completeness TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_attempt TEXT,
			next_eligible TEXT,
			frozen INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS publications (
			pub_key TEXT PRIMARY KEY,
			pmid TEXT,
			pmcid TEXT,
			doi TEXT,
			arxiv_id TEXT,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			journal TEXT,
			date TEXT,
			organism TEXT,
			citation_count INTEGER,
			quality_score REAL,
			quality_band TEXT,
			discovered_by TEXT,
			provisional INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS dataset_publications (
			geo_id TEXT NOT NULL REFERENCES datasets(geo_id),
			pub_key TEXT NOT NULL REFERENCES publications(pub_key),
			relationship TEXT NOT NULL,
			PRIMARY KEY (geo_id, pub_key, relationship)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dataset_publications_geo ON dataset_publications(geo_id)`,
		`CREATE TABLE IF NOT EXISTS url_candidates (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			pub_key TEXT NOT NULL REFERENCES publications(pub_key),
			url TEXT NOT NULL,
			type TEXT NOT NULL,
			source TEXT,
			priority INTEGER,
			confidence REAL,
			requires_auth INTEGER NOT NULL DEFAULT 0,
			currently_blacklisted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_url_candidates_pub ON url_candidates(pub_key)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_url_candidates_pub_url ON url_candidates(pub_key, url)`,
		`CREATE TABLE IF NOT EXISTS download_attempts (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			pub_key TEXT NOT NULL,
			url TEXT NOT NULL,
			outcome TEXT NOT NULL,
			http_status INTEGER,
			bytes INTEGER,
			content_sha256 TEXT,
			attempted_at TEXT NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_download_attempts_pub ON download_attempts(pub_key)`,
		`CREATE TABLE IF NOT EXISTS parsed_content (
			content_sha256 TEXT PRIMARY KEY,
			pub_key TEXT NOT NULL,
			sections TEXT NOT NULL,
			figures TEXT,
			quality_score REAL,
			degraded INTEGER NOT NULL DEFAULT 0,
			parsed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parsed_content_pub ON parsed_content(pub_key)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// writerFor returns the mutex serializing writes for geoID, creating one on
// first use.
func (r *Registry) writerFor(geoID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.writers[geoID]
	if !ok {
		m = &sync.Mutex{}
		r.writers[geoID] = m
	}
	return m
}

// UpsertDataset inserts or updates a dataset's row, serialized per geo_id.
func (r *Registry) UpsertDataset(ctx context.Context, d types.GEODataset) error {
	w := r.writerFor(d.GEOID)
	w.Lock()
	defer w.Unlock()

	pmidsJSON, _ := json.Marshal(d.PubmedIDs)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO datasets (geo_id, title, organism, organism_source, pubmed_ids, platform,
			submission_date, completeness, retry_count, last_attempt, next_eligible, frozen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(geo_id) DO UPDATE SET
			title=excluded.title, organism=excluded.organism, organism_source=excluded.organism_source,
			pubmed_ids=excluded.pubmed_ids, platform=excluded.platform,
			submission_date=excluded.submission_date, completeness=excluded.completeness,
			retry_count=excluded.retry_count, last_attempt=excluded.last_attempt,
			next_eligible=excluded.next_eligible, frozen=excluded.frozen`,
		d.GEOID, d.Title, d.Organism, d.OrganismSource, string(pmidsJSON), d.Platform,
		formatTime(d.SubmissionDate), string(d.Completeness), d.RetryCount,
		formatTime(d.LastAttempt), formatTime(d.NextEligible), boolToInt(d.Frozen),
	)
	if err != nil {
		return fmt.Errorf("upserting dataset %s: %w", d.GEOID, err)
	}
	return nil
}

// UpsertPublication inserts or updates a publication and links it to geoID
// with the given relationship, serialized per geo_id.
func (r *Registry) UpsertPublication(ctx context.Context, geoID string, p types.Publication) error {
	w := r.writerFor(geoID)
	w.Lock()
	defer w.Unlock()
	return r.upsertPublicationLocked(ctx, geoID, p)
}

func (r *Registry) upsertPublicationLocked(ctx context.Context, geoID string, p types.Publication) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	authorsJSON, _ := json.Marshal(p.Authors)
	discoveredByJSON, _ := json.Marshal(p.DiscoveredBy)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO publications (pub_key, pmid, pmcid, doi, arxiv_id, title, authors, abstract,
			journal, date, organism, citation_count, quality_score, quality_band, discovered_by, provisional)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pub_key) DO UPDATE SET
			pmid=excluded.pmid, pmcid=excluded.pmcid, doi=excluded.doi, arxiv_id=excluded.arxiv_id,
			title=excluded.title, authors=excluded.authors, abstract=excluded.abstract,
			journal=excluded.journal, date=excluded.date, organism=excluded.organism,
			citation_count=excluded.citation_count,
			quality_score=excluded.quality_score, quality_band=excluded.quality_band,
			discovered_by=excluded.discovered_by, provisional=excluded.provisional`,
		p.Key, p.PMID, p.PMCID, p.DOI, p.ArxivID, p.Title, string(authorsJSON), p.Abstract,
		p.Journal, formatTime(p.Date), p.Organism, p.CitationCount, p.QualityScore, string(p.QualityBand),
		string(discoveredByJSON), boolToInt(p.Provisional),
	)
	if err != nil {
		return fmt.Errorf("upserting publication %s: %w", p.Key, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO dataset_publications (geo_id, pub_key, relationship) VALUES (?, ?, ?)`,
		geoID, p.Key, string(p.Relationship),
	)
	if err != nil {
		return fmt.Errorf("linking publication %s to dataset %s: %w", p.Key, geoID, err)
	}

	return tx.Commit()
}

// AppendURLCandidates merges newly observed candidates into a publication's
// stored set, keyed on (pub_key, url). Every candidate ever observed for a
// publication is retained across P2 runs; only CurrentlyBlacklisted on an
// already-stored row may change.
func (r *Registry) AppendURLCandidates(ctx context.Context, geoID, pubKey string, candidates []types.URLCandidate) error {
	w := r.writerFor(geoID)
	w.Lock()
	defer w.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// ON CONFLICT DO NOTHING: a candidate already on file for this URL keeps
	// its stored currently_blacklisted flag untouched by a later discovery
	// run that simply re-surfaces the same URL.
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO url_candidates (pub_key, url, type, source, priority, confidence, requires_auth, currently_blacklisted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pub_key, url) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		if _, err := stmt.ExecContext(ctx, pubKey, c.URL, string(c.Type), c.Source, c.Priority, c.Confidence, boolToInt(c.RequiresAuth), boolToInt(c.CurrentlyBlacklisted)); err != nil {
			return fmt.Errorf("inserting candidate %s: %w", c.URL, err)
		}
	}
	return tx.Commit()
}

// SetURLCandidateBlacklisted mutates the currently_blacklisted flag on an
// already-stored candidate row, the only field an existing candidate may
// change after it is first recorded.
func (r *Registry) SetURLCandidateBlacklisted(ctx context.Context, geoID, pubKey, url string, blacklisted bool) error {
	w := r.writerFor(geoID)
	w.Lock()
	defer w.Unlock()

	_, err := r.db.ExecContext(ctx,
		`UPDATE url_candidates SET currently_blacklisted = ? WHERE pub_key = ? AND url = ?`,
		boolToInt(blacklisted), pubKey, url)
	if err != nil {
		return fmt.Errorf("updating blacklist flag for %s: %w", url, err)
	}
	return nil
}

// AppendDownloadAttempt records one append-only waterfall step.
func (r *Registry) AppendDownloadAttempt(ctx context.Context, geoID string, a types.DownloadAttempt) error {
	w := r.writerFor(geoID)
	w.Lock()
	defer w.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO download_attempts (pub_key, url, outcome, http_status, bytes, content_sha256, attempted_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PublicationKey, a.URL, string(a.Outcome), a.HTTPStatus, a.Bytes, a.ContentSHA256, formatTime(a.AttemptedAt), a.Error,
	)
	if err != nil {
		return fmt.Errorf("recording download attempt for %s: %w", a.PublicationKey, err)
	}
	return nil
}

// StoreParsedContent persists a P4 result, keyed by its content hash.
func (r *Registry) StoreParsedContent(ctx context.Context, geoID string, p types.ParsedContent) error {
	w := r.writerFor(geoID)
	w.Lock()
	defer w.Unlock()

	sectionsJSON, err := json.Marshal(p.Sections)
	if err != nil {
		return fmt.Errorf("marshaling sections: %w", err)
	}
	figuresJSON, _ := json.Marshal(p.Figures)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO parsed_content (content_sha256, pub_key, sections, figures, quality_score, degraded, parsed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_sha256) DO UPDATE SET
			pub_key=excluded.pub_key, sections=excluded.sections, figures=excluded.figures,
			quality_score=excluded.quality_score, degraded=excluded.degraded, parsed_at=excluded.parsed_at`,
		p.ContentSHA256, p.PublicationKey, string(sectionsJSON), string(figuresJSON), p.QualityScore, boolToInt(p.Degraded), formatTime(p.ParsedAt),
	)
	if err != nil {
		return fmt.Errorf("storing parsed content %s: %w", p.ContentSHA256, err)
	}
	return nil
}

// GetComplete returns the full CompleteGEOData snapshot for geoID via a
// handful of joined queries (SQLite's driver doesn't support multi-result-
// set batching the way some others do, so this is one query per entity
// rather than one query with joins duplicated across rows).
func (r *Registry) GetComplete(ctx context.Context, geoID string) (types.CompleteGEOData, error) {
	dataset, err := r.getDataset(ctx, geoID)
	if err != nil {
		return types.CompleteGEOData{}, err
	}

	pubs, err := r.getPublications(ctx, geoID)
	if err != nil {
		return types.CompleteGEOData{}, err
	}

	var candidates []types.URLCandidate
	var attempts []types.DownloadAttempt
	var parsed []types.ParsedContent
	for _, p := range pubs {
		c, err := r.getURLCandidates(ctx, p.Key)
		if err != nil {
			return types.CompleteGEOData{}, err
		}
		candidates = append(candidates, c...)

		a, err := r.getDownloadAttempts(ctx, p.Key)
		if err != nil {
			return types.CompleteGEOData{}, err
		}
		attempts = append(attempts, a...)

		pc, err := r.getParsedContent(ctx, p.Key)
		if err != nil {
			return types.CompleteGEOData{}, err
		}
		parsed = append(parsed, pc...)
	}

	return types.CompleteGEOData{
		Dataset:      dataset,
		Publications: pubs,
		Candidates:   candidates,
		Attempts:     attempts,
		Parsed:       parsed,
	}, nil
}

func (r *Registry) getDataset(ctx context.Context, geoID string) (types.GEODataset, error) {
	var d types.GEODataset
	var pmidsJSON string
	var submission, lastAttempt, nextEligible sql.NullString
	var frozen int

	err := r.db.QueryRowContext(ctx,
		`SELECT geo_id, title, organism, organism_source, pubmed_ids, platform, submission_date,
			completeness, retry_count, last_attempt, next_eligible, frozen
		 FROM datasets WHERE geo_id = ?`, geoID,
	).Scan(&d.GEOID, &d.Title, &d.Organism, &d.OrganismSource, &pmidsJSON, &d.Platform, &submission,
		&d.Completeness, &d.RetryCount, &lastAttempt, &nextEligible, &frozen)
	if err != nil {
		return types.GEODataset{}, fmt.Errorf("loading dataset %s: %w", geoID, err)
	}

	json.Unmarshal([]byte(pmidsJSON), &d.PubmedIDs)
	d.SubmissionDate = parseTime(submission.String)
	d.LastAttempt = parseTime(lastAttempt.String)
	d.NextEligible = parseTime(nextEligible.String)
	d.Frozen = frozen != 0
	return d, nil
}

func (r *Registry) getPublications(ctx context.Context, geoID string) ([]types.Publication, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.pub_key, p.pmid, p.pmcid, p.doi, p.arxiv_id, p.title, p.authors, p.abstract,
			p.journal, p.date, p.organism, p.citation_count, p.quality_score, p.quality_band, p.discovered_by,
			p.provisional, dp.relationship
		 FROM publications p
		 JOIN dataset_publications dp ON dp.pub_key = p.pub_key
		 WHERE dp.geo_id = ?`, geoID)
	if err != nil {
		return nil, fmt.Errorf("querying publications for %s: %w", geoID, err)
	}
	defer rows.Close()

	var out []types.Publication
	for rows.Next() {
		var p types.Publication
		var authorsJSON, discoveredByJSON string
		var date, organism sql.NullString
		var provisional int
		if err := rows.Scan(&p.Key, &p.PMID, &p.PMCID, &p.DOI, &p.ArxivID, &p.Title, &authorsJSON,
			&p.Abstract, &p.Journal, &date, &organism, &p.CitationCount, &p.QualityScore, &p.QualityBand,
			&discoveredByJSON, &provisional, &p.Relationship); err != nil {
			return nil, fmt.Errorf("scanning publication row: %w", err)
		}
		p.Organism = organism.String
		json.Unmarshal([]byte(authorsJSON), &p.Authors)
		json.Unmarshal([]byte(discoveredByJSON), &p.DiscoveredBy)
		p.Date = parseTime(date.String)
		p.Provisional = provisional != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetURLCandidates returns the stored, priority-ordered candidates for a
// single publication. Exposed publicly (unlike the dataset/publication
// getters) because URLCandidate carries no publication-key field of its
// own, so callers needing per-publication candidates must query by key
// rather than filter CompleteGEOData's flattened Candidates slice.
func (r *Registry) GetURLCandidates(ctx context.Context, pubKey string) ([]types.URLCandidate, error) {
	return r.getURLCandidates(ctx, pubKey)
}

func (r *Registry) getURLCandidates(ctx context.Context, pubKey string) ([]types.URLCandidate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT url, type, source, priority, confidence, requires_auth, currently_blacklisted
		 FROM url_candidates WHERE pub_key = ? ORDER BY priority ASC`, pubKey)
	if err != nil {
		return nil, fmt.Errorf("querying candidates for %s: %w", pubKey, err)
	}
	defer rows.Close()

	var out []types.URLCandidate
	for rows.Next() {
		var c types.URLCandidate
		var requiresAuth, blacklisted int
		if err := rows.Scan(&c.URL, &c.Type, &c.Source, &c.Priority, &c.Confidence, &requiresAuth, &blacklisted); err != nil {
			return nil, fmt.Errorf("scanning candidate row: %w", err)
		}
		c.RequiresAuth = requiresAuth != 0
		c.CurrentlyBlacklisted = blacklisted != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Registry) getDownloadAttempts(ctx context.Context, pubKey string) ([]types.DownloadAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pub_key, url, outcome, http_status, bytes, content_sha256, attempted_at, error
		 FROM download_attempts WHERE pub_key = ? ORDER BY attempted_at ASC`, pubKey)
	if err != nil {
		return nil, fmt.Errorf("querying attempts for %s: %w", pubKey, err)
	}
	defer rows.Close()

	var out []types.DownloadAttempt
	for rows.Next() {
		var a types.DownloadAttempt
		var attemptedAt string
		if err := rows.Scan(&a.PublicationKey, &a.URL, &a.Outcome, &a.HTTPStatus, &a.Bytes, &a.ContentSHA256, &attemptedAt, &a.Error); err != nil {
			return nil, fmt.Errorf("scanning attempt row: %w", err)
		}
		a.AttemptedAt = parseTime(attemptedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Registry) getParsedContent(ctx context.Context, pubKey string) ([]types.ParsedContent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT content_sha256, pub_key, sections, figures, quality_score, degraded, parsed_at
		 FROM parsed_content WHERE pub_key = ?`, pubKey)
	if err != nil {
		return nil, fmt.Errorf("querying parsed content for %s: %w", pubKey, err)
	}
	defer rows.Close()

	var out []types.ParsedContent
	for rows.Next() {
		var p types.ParsedContent
		var sectionsJSON string
		var figuresJSON sql.NullString
		var degraded int
		var parsedAt string
		if err := rows.Scan(&p.ContentSHA256, &p.PublicationKey, &sectionsJSON, &figuresJSON, &p.QualityScore, &degraded, &parsedAt); err != nil {
			return nil, fmt.Errorf("scanning parsed content row: %w", err)
		}
		json.Unmarshal([]byte(sectionsJSON), &p.Sections)
		if figuresJSON.Valid {
			json.Unmarshal([]byte(figuresJSON.String), &p.Figures)
		}
		p.Degraded = degraded != 0
		p.ParsedAt = parseTime(parsedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
