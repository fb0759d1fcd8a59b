package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment variables before mapping them
// onto config keys.
const envPrefix = "TUTORD_"

// compoundKeys maps flattened environment suffixes that contain an
// underscore onto their dotted config path. Anything not listed here is
// mapped section_field -> section.field.
var compoundKeys = map[string]string{
	"SERVER_SHUTDOWN_TIMEOUT":      "server.shutdown_timeout",
	"LLM_BASE_URL":                 "llm.base_url",
	"LLM_EMBEDDING_MODEL":          "llm.embedding_model",
	"LLM_API_KEY":                  "llm.api_key",
	"LLM_MAX_TOKENS":               "llm.max_tokens",
	"CONFLICTS_RULES_PATH":         "conflicts.rules_path",
	"KNOWLEDGE_CHUNK_SIZE":         "knowledge.chunk_size",
	"KNOWLEDGE_CHUNK_OVERLAP":      "knowledge.chunk_overlap",
	"KNOWLEDGE_DEFAULT_TOP_K":      "knowledge.default_top_k",
	"KNOWLEDGE_SWEEP_MAX_ATTEMPTS": "knowledge.sweep_max_attempts",
}

// Load builds the configuration with precedence (highest first):
//
//  1. Environment variables (TUTORD_SERVER_PORT, TUTORD_LLM_MODEL, ...)
//  2. YAML config file (configPath; skipped when empty or missing)
//  3. Defaults from Default()
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
		if err == nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// transformEnvKey maps TUTORD_SECTION_FIELD onto section.field,
// consulting compoundKeys for fields whose names contain underscores.
func transformEnvKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	if mapped, ok := compoundKeys[s]; ok {
		return mapped
	}
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 {
		return strings.ToLower(s)
	}
	return parts[0] + "." + parts[1]
}
