// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bootstrap is the composition root: it wires concrete source
// clients, the Cache Tier, the Registry, and the Pipeline Coordinator from
// a types.PipelineConfig and a loaded secrets map, for use by every
// cmd/geo-enrich subcommand and the HTTP API server.
package bootstrap

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/geo-enrich/internal/cache"
	"github.com/pdiddy/geo-enrich/internal/container"
	"github.com/pdiddy/geo-enrich/internal/coordinator"
	"github.com/pdiddy/geo-enrich/internal/download"
	"github.com/pdiddy/geo-enrich/internal/enrichment"
	"github.com/pdiddy/geo-enrich/internal/parse"
	"github.com/pdiddy/geo-enrich/internal/registry"
	"github.com/pdiddy/geo-enrich/internal/sources"
	"github.com/pdiddy/geo-enrich/pkg/types"
)

// Pipeline bundles every wired component a subcommand needs.
type Pipeline struct {
	Registry    *registry.Registry
	Cache       *cache.Tier
	Coordinator *coordinator.Coordinator
	Service     *enrichment.Service
}

// Close releases resources held by the pipeline (the registry's SQLite
// handle and the cache's Redis pool).
func (p *Pipeline) Close() error {
	if p.Cache != nil && p.Cache.Hot != nil {
		if err := p.Cache.Hot.Close(); err != nil {
			return err
		}
	}
	if p.Registry != nil {
		return p.Registry.Close()
	}
	return nil
}

// Build wires a Pipeline from cfg and secrets loaded from .secrets/.
func Build(cfg types.PipelineConfig, secrets map[string]string) (*Pipeline, error) {
	reg, err := registry.Open(cfg.Registry.RootDir)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}

	hot := cache.NewHot(cfg.Cache.RedisAddr, cfg.Cache.RedisPoolSize)
	tier := &cache.Tier{
		Hot:  hot,
		Warm: cache.NewWarm(cfg.Cache.WarmDir),
		Cold: cache.NewCold(cfg.Cache.WarmDir, cfg.Cache.ColdMaxAge),
	}

	httpClient := &http.Client{
		Timeout: cfg.Sources.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	citationClients, urlClients, pdfClients, openAlex := buildSourceClients(cfg.Sources, secrets, httpClient)

	downloadCfg := cfg.Download
	downloadCfg.InstitutionalMode = cfg.Sources.EnableInstitutional
	downloadMgr := download.NewManager(httpClient, downloadCfg)

	backend := parse.NewUnavailableBackend("no container runtime detected")
	if rt, rtErr := container.DetectRuntime(); rtErr == nil {
		b, err := parse.NewBackend(cfg.Parse.Backend, rt)
		if err != nil {
			return nil, fmt.Errorf("building parse backend: %w", err)
		}
		backend = b
	}
	parser := &parse.Parser{Backend: backend}

	coord := coordinator.NewCoordinator(cfg.Coordinator)
	coord.Registry = reg
	coord.CitationClients = citationClients
	coord.URLClients = urlClients
	coord.PDFClients = pdfClients
	coord.OpenAlex = openAlex
	coord.PMCBlocked = cfg.Sources.PMCBlocked
	coord.Download = downloadMgr
	coord.Parser = parser
	coord.FanOutBudget = cfg.Sources.FanOutBudget
	coord.PublicationSem = semaphore.NewWeighted(maxInt64(cfg.Coordinator.MaxConcurrentDatasets, 1))

	svc := &enrichment.Service{
		Coordinator:           coord,
		MaxConcurrentDatasets: int(cfg.Coordinator.MaxConcurrentDatasets),
	}

	return &Pipeline{Registry: reg, Cache: tier, Coordinator: coord, Service: svc}, nil
}

func buildSourceClients(cfg types.SourcesConfig, secrets map[string]string, client *http.Client) (
	citations []sources.FetchesCitations,
	urls []sources.FetchesURLs,
	pdfs []sources.FetchesDirectPDF,
	openAlex sources.FetchesURLs,
) {
	if cfg.EnablePubMed {
		citations = append(citations, sources.NewPubMed(client, secretOr(secrets, "ncbi-api-key", cfg.NCBIAPIKey), secretOr(secrets, "ncbi-contact-email", cfg.NCBIContactEmail)))
	}
	if cfg.EnableEuropePMC {
		citations = append(citations, sources.NewEuropePMC(client))
	}
	if cfg.EnableOpenCitations {
		citations = append(citations, sources.NewOpenCitations(client))
	}
	if cfg.EnableOpenAlex {
		oa := sources.NewOpenAlex(client, secretOr(secrets, "unpaywall-email", cfg.UnpaywallEmail))
		citations = append(citations, oa)
		openAlex = oa
	}
	if cfg.EnableSemanticScholar {
		citations = append(citations, sources.NewSemanticScholar(client, secretOr(secrets, "semantic-scholar-api-key", cfg.SemanticScholarKey)))
	}

	if cfg.EnablePMC {
		pmc := sources.NewPMC()
		urls = append(urls, pmc)
		pdfs = append(pdfs, pmc)
	}
	if cfg.EnableUnpaywall {
		urls = append(urls, sources.NewUnpaywall(client, secretOr(secrets, "unpaywall-email", cfg.UnpaywallEmail)))
	}
	if cfg.EnableCrossRef {
		urls = append(urls, sources.NewCrossRef(client))
	}
	if cfg.EnableCore {
		urls = append(urls, sources.NewCore(client, secretOr(secrets, "core-api-key", cfg.CoreAPIKey)))
	}
	if cfg.EnableInstitutional && cfg.InstitutionalProxyToken != "" {
		urls = append(urls, sources.NewInstitutional("", secretOr(secrets, "institutional-proxy-token", cfg.InstitutionalProxyToken)))
	}
	if cfg.EnableArxiv {
		pdfs = append(pdfs, sources.NewArxiv())
	}
	if cfg.EnableBioRxiv {
		pdfs = append(pdfs, sources.NewBioRxiv())
	}
	if cfg.EnableSciHub {
		pdfs = append(pdfs, sources.NewSciHub(""))
	}

	return citations, urls, pdfs, openAlex
}

func secretOr(secrets map[string]string, key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return secrets[key]
}

func maxInt64(n, min int64) int64 {
	if n <= 0 {
		return min
	}
	return n
}
