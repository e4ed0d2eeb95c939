// Package config loads fathom CLI configuration from TOML and env vars.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Enrich    EnrichConfig    `toml:"enrich"`
	Database  DatabaseConfig  `toml:"database"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Ingest    IngestConfig    `toml:"ingest"`
	Observer  ObserverConfig  `toml:"observer"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	RPM        int    `toml:"rpm"`
}

// EnrichConfig selects the model used for table captioning and transcript
// enrichment. Falls back to [llm] when unset; a cheaper model is usually
// enough here.
type EnrichConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type DatabaseConfig struct {
	// Driver selects the vector store: "sqlite" (default), "postgres",
	// or "memory".
	Driver      string `toml:"driver"`
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
}

type RetrievalConfig struct {
	KPerModality int `toml:"k_per_modality"`
	TotalLimit   int `toml:"total_limit"`
}

type IngestConfig struct {
	TableRowThreshold int     `toml:"table_row_threshold"`
	TableRowOverlap   int     `toml:"table_row_overlap"`
	AudioWindowMinS   float64 `toml:"audio_window_min_s"`
	AudioWindowMaxS   float64 `toml:"audio_window_max_s"`
	EmbedConcurrency  int     `toml:"embed_concurrency"`
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
		LLM:       LLMConfig{Provider: "gemini", Model: "gemini-2.5-flash"},
		Embedding: EmbeddingConfig{Provider: "gemini", Model: "gemini-embedding-001", Dimensions: 1536},
		Database:  DatabaseConfig{Driver: "sqlite", Path: "fathom.db"},
		Retrieval: RetrievalConfig{KPerModality: 5, TotalLimit: 10},
		Ingest:    IngestConfig{TableRowThreshold: 50, TableRowOverlap: 5, AudioWindowMinS: 30, AudioWindowMaxS: 60, EmbedConcurrency: 4},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "fathom.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("FATHOM_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("FATHOM_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("FATHOM_ENRICH_API_KEY"); v != "" {
		cfg.Enrich.APIKey = v
	}
	if v := os.Getenv("FATHOM_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FATHOM_POSTGRES_URL"); v != "" {
		cfg.Database.PostgresURL = v
		if cfg.Database.Driver == "" || cfg.Database.Driver == "sqlite" {
			cfg.Database.Driver = "postgres"
		}
	}
	if os.Getenv("FATHOM_OBSERVER_ENABLED") == "true" || os.Getenv("FATHOM_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Enrich.Provider == "" {
		cfg.Enrich.Provider = cfg.LLM.Provider
		cfg.Enrich.Model = cfg.LLM.Model
	}
	if cfg.Enrich.APIKey == "" {
		cfg.Enrich.APIKey = cfg.LLM.APIKey
	}

	return cfg
}
