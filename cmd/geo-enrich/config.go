// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// loadPipelineConfig builds a PipelineConfig from documented defaults,
// overridden by whatever geo-enrich.yaml / GEO_ENRICH_* env vars set.
func loadPipelineConfig() types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()

	if v := viper.GetString("registry.root_dir"); v != "" {
		cfg.Registry.RootDir = v
	}
	if v := viper.GetString("download.root_dir"); v != "" {
		cfg.Download.RootDir = v
	}
	if v := viper.GetString("parse.root_dir"); v != "" {
		cfg.Parse.RootDir = v
	}
	if v := viper.GetString("parse.backend"); v != "" {
		cfg.Parse.Backend = types.ParseBackend(v)
	}
	if v := viper.GetString("cache.redis_addr"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := viper.GetString("cache.warm_dir"); v != "" {
		cfg.Cache.WarmDir = v
	}
	if viper.IsSet("cache.cold_max_age") {
		cfg.Cache.ColdMaxAge = viper.GetDuration("cache.cold_max_age")
	}
	if viper.IsSet("sources.pmc_blocked") {
		cfg.Sources.PMCBlocked = viper.GetBool("sources.pmc_blocked")
	}
	if viper.IsSet("sources.enable_scihub") {
		cfg.Sources.EnableSciHub = viper.GetBool("sources.enable_scihub")
	}
	if viper.IsSet("coordinator.max_concurrent_datasets") {
		cfg.Coordinator.MaxConcurrentDatasets = viper.GetInt64("coordinator.max_concurrent_datasets")
	}

	cfg.Sources.NCBIAPIKey = secretDefault("ncbi-api-key", cfg.Sources.NCBIAPIKey)
	cfg.Sources.NCBIContactEmail = secretDefault("ncbi-contact-email", cfg.Sources.NCBIContactEmail)
	cfg.Sources.UnpaywallEmail = secretDefault("unpaywall-email", cfg.Sources.UnpaywallEmail)
	cfg.Sources.SemanticScholarKey = secretDefault("semantic-scholar-api-key", cfg.Sources.SemanticScholarKey)
	cfg.Sources.CoreAPIKey = secretDefault("core-api-key", cfg.Sources.CoreAPIKey)
	cfg.Sources.InstitutionalProxyToken = secretDefault("institutional-proxy-token", cfg.Sources.InstitutionalProxyToken)

	return cfg
}
