package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 9180, cfg.Server.Port)
	assert.Equal(t, 384, cfg.Index.Dimension)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.Server.Port = -1 }},
		{"zero dimension", func(c *Config) { c.Index.Dimension = 0 }},
		{"zero timeout", func(c *Config) { c.LLM.Timeout = 0 }},
		{"overlap >= chunk size", func(c *Config) { c.Knowledge.ChunkOverlap = c.Knowledge.ChunkSize }},
		{"zero top_k", func(c *Config) { c.Knowledge.DefaultTopK = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7001\nllm:\n  model: test-model\n  timeout: 5s\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	// Untouched fields keep defaults.
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7001\n"), 0o600))

	t.Setenv("TUTORD_SERVER_PORT", "7002")
	t.Setenv("TUTORD_LLM_EMBEDDING_MODEL", "custom-embed")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7002, cfg.Server.Port)
	assert.Equal(t, "custom-embed", cfg.LLM.EmbeddingModel)
}

func TestTransformEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", transformEnvKey("TUTORD_SERVER_PORT"))
	assert.Equal(t, "llm.base_url", transformEnvKey("TUTORD_LLM_BASE_URL"))
	assert.Equal(t, "knowledge.sweep_max_attempts", transformEnvKey("TUTORD_KNOWLEDGE_SWEEP_MAX_ATTEMPTS"))
}
