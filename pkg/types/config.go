package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourcesConfig enables/disables and credentials individual source clients
// for Citation Discovery and the Full-Text Manager.
type SourcesConfig struct {
	HTTPConfig `yaml:",inline"`

	NCBIAPIKey        string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`
	NCBIContactEmail  string `json:"ncbi_contact_email,omitempty" yaml:"ncbi_contact_email,omitempty"`
	UnpaywallEmail    string `json:"unpaywall_email,omitempty" yaml:"unpaywall_email,omitempty"`
	SemanticScholarKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`
	CoreAPIKey        string `json:"core_api_key,omitempty" yaml:"core_api_key,omitempty"`
	InstitutionalProxyToken string `json:"institutional_proxy_token,omitempty" yaml:"institutional_proxy_token,omitempty"`

	EnablePubMed        bool `json:"enable_pubmed" yaml:"enable_pubmed"`
	EnablePMC           bool `json:"enable_pmc" yaml:"enable_pmc"`
	EnableUnpaywall     bool `json:"enable_unpaywall" yaml:"enable_unpaywall"`
	EnableOpenAlex      bool `json:"enable_openalex" yaml:"enable_openalex"`
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`
	EnableEuropePMC     bool `json:"enable_europepmc" yaml:"enable_europepmc"`
	EnableOpenCitations bool `json:"enable_opencitations" yaml:"enable_opencitations"`
	EnableCrossRef      bool `json:"enable_crossref" yaml:"enable_crossref"`
	EnableArxiv         bool `json:"enable_arxiv" yaml:"enable_arxiv"`
	EnableBioRxiv       bool `json:"enable_biorxiv" yaml:"enable_biorxiv"`
	EnableCore          bool `json:"enable_core" yaml:"enable_core"`
	EnableInstitutional bool `json:"enable_institutional" yaml:"enable_institutional"`

	// EnableSciHub must be explicitly set true by an operator; it defaults
	// to false and is never enabled by this repo's own defaults.
	EnableSciHub bool `json:"enable_scihub" yaml:"enable_scihub"`

	// PMCBlocked marks PMC as currently refusing automated downloads, which
	// triggers the Full-Text Manager's OpenAlex fallback rule.
	PMCBlocked bool `json:"pmc_blocked" yaml:"pmc_blocked"`

	// FanOutBudget bounds how long a fan-out across sources may run.
	FanOutBudget time.Duration `json:"fan_out_budget" yaml:"fan_out_budget"`
}

// DownloadConfig holds settings for the Download Manager (P3).
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// RootDir is the base directory for downloaded PDFs; each is stored as
	// <geo_id>/<sha256>.pdf directly under it.
	RootDir string `json:"root_dir" yaml:"root_dir"`

	// MaxConcurrency bounds simultaneous downloads process-wide via a
	// shared semaphore.
	MaxConcurrency int64 `json:"max_concurrency" yaml:"max_concurrency"`

	MinBytes int64 `json:"min_bytes" yaml:"min_bytes"`
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// InstitutionalMode gates candidates with RequiresAuth set: when false,
	// the waterfall skips them rather than attempting an institutional-proxy
	// fetch the operator hasn't opted into.
	InstitutionalMode bool `json:"institutional_mode" yaml:"institutional_mode"`
}

// ParseBackend identifies the PDF text-extraction tool.
type ParseBackend string

const (
	ParseBackendGROBID     ParseBackend = "grobid"
	ParseBackendPdftotext  ParseBackend = "pdftotext"
	ParseBackendMarkitdown ParseBackend = "markitdown"
)

// ParseConfig holds settings for the PDF Parser & Normalizer (P4).
type ParseConfig struct {
	Backend ParseBackend `json:"backend" yaml:"backend"`

	// RootDir is the base directory for parsed output.
	RootDir string `json:"root_dir" yaml:"root_dir"`

	MaxConcurrency int64 `json:"max_concurrency" yaml:"max_concurrency"`
}

// CacheConfig holds settings for the layered Cache Tier.
type CacheConfig struct {
	// RedisAddr is the hot-tier Redis address, e.g. "localhost:6379".
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`
	RedisPoolSize int  `json:"redis_pool_size" yaml:"redis_pool_size"`

	// WarmDir is the on-disk warm-tier root; the cold-tier wrapper keeps its
	// raw bundles directly in it as <key>.xml.
	WarmDir string `json:"warm_dir" yaml:"warm_dir"`

	DatasetTTL     time.Duration `json:"dataset_ttl" yaml:"dataset_ttl"`
	PublicationTTL time.Duration `json:"publication_ttl" yaml:"publication_ttl"`
	ParsedTTL      time.Duration `json:"parsed_ttl" yaml:"parsed_ttl"`
	SearchTTL      time.Duration `json:"search_ttl" yaml:"search_ttl"`
	DiscoveryTTL   time.Duration `json:"discovery_ttl" yaml:"discovery_ttl"`

	// ColdMaxAge is the age past which the cache CLI's --clear-soft deletes
	// a raw SOFT/XML bundle, unless --max-age-days is given.
	ColdMaxAge time.Duration `json:"cold_max_age" yaml:"cold_max_age"`
}

// RegistryConfig holds settings for the GEO Registry.
type RegistryConfig struct {
	// RootDir is the base directory containing the registry SQLite file.
	RootDir string `json:"root_dir" yaml:"root_dir"`
}

// CoordinatorConfig holds settings for the Pipeline Coordinator.
type CoordinatorConfig struct {
	// BackoffSchedule is the wait applied after each failed attempt, indexed
	// by RetryCount-1.
	BackoffSchedule []time.Duration `json:"backoff_schedule" yaml:"backoff_schedule"`

	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxConcurrentDatasets bounds simultaneous dataset enrichments.
	MaxConcurrentDatasets int64 `json:"max_concurrent_datasets" yaml:"max_concurrent_datasets"`
}

// PipelineConfig groups all stage configurations for the enrichment pipeline.
type PipelineConfig struct {
	Sources     SourcesConfig     `json:"sources" yaml:"sources"`
	Download    DownloadConfig    `json:"download" yaml:"download"`
	Parse       ParseConfig       `json:"parse" yaml:"parse"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Registry    RegistryConfig    `json:"registry" yaml:"registry"`
	Coordinator CoordinatorConfig `json:"coordinator" yaml:"coordinator"`
}

// DefaultPipelineConfig returns the documented defaults from SPEC_FULL.md § 6.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Sources: SourcesConfig{
			HTTPConfig:          HTTPConfig{Timeout: 20 * time.Second, UserAgent: "geo-enrich/0.1"},
			EnablePubMed:        true,
			EnablePMC:           true,
			EnableUnpaywall:     true,
			EnableOpenAlex:      true,
			EnableSemanticScholar: true,
			EnableEuropePMC:     true,
			EnableOpenCitations: true,
			EnableCrossRef:      true,
			EnableArxiv:         true,
			EnableBioRxiv:       true,
			FanOutBudget:        10 * time.Second,
		},
		Download: DownloadConfig{
			HTTPConfig:        HTTPConfig{Timeout: 30 * time.Second, UserAgent: "geo-enrich/0.1"},
			RootDir:           "geo-data/pdfs",
			MaxConcurrency:    10,
			MinBytes:          1024,
			MaxBytes:          50 * 1024 * 1024,
			InstitutionalMode: false,
		},
		Parse: ParseConfig{
			Backend:        ParseBackendMarkitdown,
			RootDir:        "geo-data/parsed",
			MaxConcurrency: 4,
		},
		Cache: CacheConfig{
			RedisAddr:      "localhost:6379",
			RedisPoolSize:  10,
			WarmDir:        "geo-data/cache",
			DatasetTTL:     24 * time.Hour,
			PublicationTTL: 24 * time.Hour,
			ParsedTTL:      7 * 24 * time.Hour,
			SearchTTL:      1 * time.Hour,
			DiscoveryTTL:   6 * time.Hour,
			ColdMaxAge:     90 * 24 * time.Hour,
		},
		Registry: RegistryConfig{RootDir: "geo-data"},
		Coordinator: CoordinatorConfig{
			BackoffSchedule:       []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour},
			MaxRetries:            3,
			MaxConcurrentDatasets: 10,
		},
	}
}
