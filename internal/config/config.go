// Package config provides configuration loading for tutord.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. See Load for the precedence rules.
package config

import (
	"time"
)

// Config holds the complete tutord configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	Index     IndexConfig     `koanf:"index"`
	LLM       LLMConfig       `koanf:"llm"`
	Conflicts ConflictConfig  `koanf:"conflicts"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
}

// ServerConfig holds the HTTP infrastructure server configuration
// (health, readiness, metrics - the business API is not served here).
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StoreConfig holds the structured store configuration.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means in-memory.
	Path string `koanf:"path"`
}

// IndexConfig holds the semantic index configuration.
type IndexConfig struct {
	// Path is the directory for persistent vector storage.
	// Empty means in-memory only.
	Path string `koanf:"path"`

	// Dimension is the embedding vector size. Must match the embedding
	// model's output dimension.
	Dimension int `koanf:"dimension"`
}

// LLMConfig holds the external completion and embedding boundary
// configuration. Both endpoints are OpenAI-compatible.
type LLMConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Model          string        `koanf:"model"`
	EmbeddingModel string        `koanf:"embedding_model"`
	APIKey         string        `koanf:"api_key"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxTokens      int           `koanf:"max_tokens"`
	Temperature    float64       `koanf:"temperature"`

	// Pricing maps model names to per-1000-token prices for cost
	// attribution. Models without an entry record zero cost.
	Pricing map[string]ModelPrice `koanf:"pricing"`
}

// ModelPrice is a model's price in USD per 1000 tokens.
type ModelPrice struct {
	InputPer1K  float64 `koanf:"input_per_1k"`
	OutputPer1K float64 `koanf:"output_per_1k"`
}

// ConflictConfig holds conflict framework configuration.
type ConflictConfig struct {
	// RulesPath is the YAML rule file. Rule content is configuration,
	// not code; see configs/conflict_rules.yaml for the shipped defaults.
	RulesPath string `koanf:"rules_path"`
}

// KnowledgeConfig holds knowledge store configuration.
type KnowledgeConfig struct {
	ChunkSize        int `koanf:"chunk_size"`
	ChunkOverlap     int `koanf:"chunk_overlap"`
	DefaultTopK      int `koanf:"default_top_k"`
	SweepMaxAttempts int `koanf:"sweep_max_attempts"`
}

// Default returns the hardcoded defaults applied before file and
// environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9180,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path: "~/.local/share/tutord/tutord.db",
		},
		Index: IndexConfig{
			Path:      "~/.local/share/tutord/index",
			Dimension: 384,
		},
		LLM: LLMConfig{
			BaseURL:        "http://localhost:8080/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "BAAI/bge-small-en-v1.5",
			Timeout:        30 * time.Second,
			MaxTokens:      1024,
			Temperature:    0.2,
		},
		Conflicts: ConflictConfig{
			RulesPath: "configs/conflict_rules.yaml",
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:        1200,
			ChunkOverlap:     150,
			DefaultTopK:      5,
			SweepMaxAttempts: 3,
		},
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Reason: "outside [0,65535]"}
	}
	if c.Index.Dimension <= 0 {
		return &ValidationError{Field: "index.dimension", Reason: "must be positive"}
	}
	if c.LLM.Timeout <= 0 {
		return &ValidationError{Field: "llm.timeout", Reason: "must be positive"}
	}
	if c.Knowledge.ChunkSize <= 0 {
		return &ValidationError{Field: "knowledge.chunk_size", Reason: "must be positive"}
	}
	if c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return &ValidationError{Field: "knowledge.chunk_overlap", Reason: "must be in [0, chunk_size)"}
	}
	if c.Knowledge.DefaultTopK <= 0 {
		return &ValidationError{Field: "knowledge.default_top_k", Reason: "must be positive"}
	}
	return nil
}

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + ": " + e.Reason
}
