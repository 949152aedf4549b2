// Package config provides configuration loading and structs for the ruiji server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientIDEnv overrides catalog.client_id when set.
const ClientIDEnv = "RUIJI_CATALOG_CLIENT_ID"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Recommend RecommendConfig `yaml:"recommend"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Storage   StorageConfig   `yaml:"storage"`
	Import    ImportConfig    `yaml:"import"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// EmbeddingConfig points at the precomputed embedding artifact.
type EmbeddingConfig struct {
	ArtifactPath string `yaml:"artifact_path"`
	// Dimensions, when non-zero, must match the artifact.
	Dimensions int `yaml:"dimensions"`
}

// RecommendConfig holds ranking and enrichment settings.
type RecommendConfig struct {
	DefaultK          int `yaml:"default_k"`
	MaxK              int `yaml:"max_k"`
	EnrichConcurrency int `yaml:"enrich_concurrency"`
}

// CatalogConfig holds settings for the remote anime catalog API.
type CatalogConfig struct {
	BaseURL   string        `yaml:"base_url"`
	ClientID  string        `yaml:"client_id"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
	// Offline disables remote calls; lookups use the local catalog only.
	Offline bool `yaml:"offline"`
}

// RemoteEnabled reports whether the remote API can be called.
func (c *CatalogConfig) RemoteEnabled() bool {
	return !c.Offline && c.ClientID != ""
}

// StorageConfig holds paths for the local catalog database and title index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	TitleIndexPath string `yaml:"title_index_path"`
}

// ImportConfig holds catalog import directory settings.
type ImportConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	// Watch re-imports changed files while the server runs.
	Watch bool `yaml:"watch"`
}

// RecursiveOrDefault returns whether to scan recursively; defaults to true when unset.
func (w *ImportConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if id := os.Getenv(ClientIDEnv); id != "" {
		cfg.Catalog.ClientID = id
	}

	configDir := filepath.Dir(path)
	cfg.Embedding.ArtifactPath = expandPath(cfg.Embedding.ArtifactPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.TitleIndexPath = expandPath(cfg.Storage.TitleIndexPath, configDir)
	for i := range cfg.Import.Directories {
		cfg.Import.Directories[i] = expandPath(cfg.Import.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
