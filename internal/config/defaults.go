package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Embedding.ArtifactPath == "" {
		cfg.Embedding.ArtifactPath = "/usr/local/var/ruiji/data/models/anime_embeddings.bin"
	}
	if cfg.Recommend.DefaultK == 0 {
		cfg.Recommend.DefaultK = 9
	}
	if cfg.Recommend.MaxK == 0 {
		cfg.Recommend.MaxK = 100
	}
	if cfg.Recommend.EnrichConcurrency == 0 {
		cfg.Recommend.EnrichConcurrency = 4
	}
	if cfg.Catalog.BaseURL == "" {
		cfg.Catalog.BaseURL = "https://api.myanimelist.net/v2"
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 10 * time.Second
	}
	if cfg.Catalog.CacheSize == 0 {
		cfg.Catalog.CacheSize = 10000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/ruiji/data/db/catalog.db"
	}
	if cfg.Storage.TitleIndexPath == "" {
		cfg.Storage.TitleIndexPath = "/usr/local/var/ruiji/data/indices/titles"
	}
	if cfg.Import.Extensions == nil {
		cfg.Import.Extensions = []string{".json"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Import.Directories) > 0 && cfg.Import.Recursive == nil {
		t := true
		cfg.Import.Recursive = &t
	}
}
