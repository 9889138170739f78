// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/internal/secrets"
	"github.com/pdiddy/citation-engine/pkg/types"
)

func testSetup(t *testing.T) *viper.Viper {
	t.Helper()
	for _, env := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "API_TOKEN", "PORT", "SEMANTIC_SCHOLAR_API_KEY", "OPENALEX_EMAIL"} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	v := viper.New()
	Setup(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(testSetup(t), nil)
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "arxiv", cfg.Search.Backend)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "citation-engine/0.1", cfg.Search.UserAgent)
	assert.Equal(t, 3*time.Second, cfg.Search.ArxivInterval)
	assert.Equal(t, 0.8, cfg.Validate.TitleThreshold)
	assert.Equal(t, 5, cfg.Rank.TopK)
	assert.Equal(t, 4, cfg.Expand.Workers)
	assert.Equal(t, "end", cfg.Cite.Placement)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 3000, cfg.Server.MaxTextLength)
	assert.Equal(t, "results", cfg.Pipeline.ResultsDir)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoadFromFile(t *testing.T) {
	v := testSetup(t)
	path := filepath.Join(t.TempDir(), "citation-engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
search:
  backend: openalex
  timeout: 5s
rank:
  top_k: 3
cite:
  placement: sentence
`), 0o644))
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v, secrets.Secrets{secrets.OpenAIAPIKey: "sk-file"})
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	assert.Equal(t, "openalex", cfg.Search.Backend)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 3, cfg.Rank.TopK)
	assert.Equal(t, "sentence", cfg.Cite.Placement)
}

func TestLoadEnvironmentPrecedence(t *testing.T) {
	v := testSetup(t)
	t.Setenv("CITATION_ENGINE_RANK_TOP_K", "7")
	t.Setenv("CITATION_ENGINE_EXPAND_WORKERS", "2")
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	t.Setenv("PORT", "9090")
	t.Setenv("API_TOKEN", "tok-env")

	s := secrets.Secrets{
		secrets.AnthropicAPIKey:       "sk-file",
		secrets.APIToken:              "tok-file",
		secrets.SemanticScholarAPIKey: "s2-file",
	}
	cfg, err := Load(v, s)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Rank.TopK)
	assert.Equal(t, 2, cfg.Expand.Workers)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "tok-env", cfg.Server.APIToken)
	assert.Equal(t, "s2-file", cfg.Search.SemanticScholarAPIKey)

	t.Setenv("CITATION_ENGINE_SERVER_PORT", "7070")
	cfg, err = Load(v, s)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base, err := Load(testSetup(t), nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *types.Config)
		errMsg string
	}{
		{"valid", func(*types.Config) {}, ""},
		{"provider", func(c *types.Config) { c.LLM.Provider = "bard" }, "llm.provider"},
		{"backend", func(c *types.Config) { c.Search.Backend = "scholar" }, "search.backend"},
		{"threshold", func(c *types.Config) { c.Validate.TitleThreshold = 1.5 }, "validate.title_threshold"},
		{"top k", func(c *types.Config) { c.Rank.TopK = 0 }, "rank.top_k"},
		{"workers", func(c *types.Config) { c.Expand.Workers = 0 }, "expand.workers"},
		{"placement", func(c *types.Config) { c.Cite.Placement = "footnote" }, "cite.placement"},
		{"port", func(c *types.Config) { c.Server.Port = 70000 }, "server.port"},
		{"log level", func(c *types.Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CITATION_ENGINE_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("CITATION_ENGINE_TEST_DOTENV", "")
	os.Unsetenv("CITATION_ENGINE_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("CITATION_ENGINE_TEST_DOTENV"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(types.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"k":"v"`)

	_, err = NewLogger(types.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}
