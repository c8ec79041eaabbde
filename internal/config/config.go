// Package config loads lectern configuration from defaults, an optional
// TOML file, and environment variable overrides.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Database  DatabaseConfig  `toml:"database"`
	Ingest    IngestConfig    `toml:"ingest"`
	Search    SearchConfig    `toml:"search"`
	Session   SessionConfig   `toml:"session"`
	Observer  ObserverConfig  `toml:"observer"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	// URL is the postgres connection string; ignored for sqlite.
	URL string `toml:"url"`
}

type IngestConfig struct {
	DocsDir      string `toml:"docs_dir"`
	ChunkSize    int    `toml:"chunk_size"`
	ChunkOverlap int    `toml:"chunk_overlap"`
}

type SearchConfig struct {
	MaxResults       int     `toml:"max_results"`
	ResolveThreshold float64 `toml:"resolve_threshold"`
}

type SessionConfig struct {
	MaxHistory int `toml:"max_history"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			BaseURL:    "https://api.openai.com/v1",
			Dimensions: 1536,
		},
		Database: DatabaseConfig{Driver: "sqlite", Path: "lectern.db"},
		Ingest:   IngestConfig{DocsDir: "docs", ChunkSize: 800, ChunkOverlap: 100},
		Search:   SearchConfig{MaxResults: 5, ResolveThreshold: 0.60},
		Session:  SessionConfig{MaxHistory: 2},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "lectern.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("LECTERN_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LECTERN_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LECTERN_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("LECTERN_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("LECTERN_DOCS_DIR"); v != "" {
		cfg.Ingest.DocsDir = v
	}
	if os.Getenv("LECTERN_OBSERVER_ENABLED") == "true" || os.Getenv("LECTERN_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}

	return cfg
}
