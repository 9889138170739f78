// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config registers defaults, binds environment variables and
// resolves the effective types.Config from viper, secret files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/internal/secrets"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// EnvPrefix prefixes every environment variable mapped to a config key,
// e.g. CITATION_ENGINE_RANK_TOP_K.
const EnvPrefix = "CITATION_ENGINE"

// Name is the config file base name (citation-engine.yaml).
const Name = "citation-engine"

var defaults = map[string]any{
	"llm.provider":   "claude",
	"llm.model":      "",
	"llm.api_key":    "",
	"llm.base_url":   "",
	"llm.max_tokens": 2048,
	"llm.timeout":    60 * time.Second,

	"search.backend":                  "arxiv",
	"search.max_results":              20,
	"search.timeout":                  30 * time.Second,
	"search.user_agent":               "citation-engine/0.1",
	"search.arxiv_interval":           3 * time.Second,
	"search.semantic_scholar_api_key": "",
	"search.openalex_email":           "",

	"cache.redis_url": "",
	"cache.ttl":       24 * time.Hour,
	"cache.prefix":    "citation-engine:search:",

	"validate.title_threshold":     0.8,
	"validate.candidates_per_idea": 5,

	"expand.workers":           4,
	"expand.max_authors":       12,
	"expand.papers_per_author": 5,
	"expand.key_authors_only":  false,

	"rank.top_k":     5,
	"rank.min_score": 0.0,

	"cite.placement": "end",

	"pipeline.max_ideas":   8,
	"pipeline.results_dir": "results",
	"pipeline.parallel":    1,

	"server.host":            "0.0.0.0",
	"server.port":            8000,
	"server.api_token":       "",
	"server.max_text_length": 3000,
	"server.read_timeout":    30 * time.Second,
	"server.write_timeout":   10 * time.Minute,

	"log.level":  "info",
	"log.format": "text",
}

// wellKnownEnv maps keys to conventional variables checked after the
// prefixed one.
var wellKnownEnv = map[string]string{
	"server.port":                     "PORT",
	"server.api_token":                "API_TOKEN",
	"search.semantic_scholar_api_key": "SEMANTIC_SCHOLAR_API_KEY",
	"search.openalex_email":           "OPENALEX_EMAIL",
}

// Setup registers defaults, the environment prefix and env bindings on v.
func Setup(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range wellKnownEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		// First variable found wins.
		_ = v.BindEnv(key, prefixed, env)
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load resolves the effective configuration. Values from config files,
// flags and CITATION_ENGINE_* variables win; provider API keys then fall
// back to ANTHROPIC_API_KEY / OPENAI_API_KEY and finally to secret files.
func Load(v *viper.Viper, s secrets.Secrets) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = s.Or(os.Getenv("OPENAI_API_KEY"), secrets.OpenAIAPIKey)
		default:
			cfg.LLM.APIKey = s.Or(os.Getenv("ANTHROPIC_API_KEY"), secrets.AnthropicAPIKey)
		}
	}
	cfg.Search.SemanticScholarAPIKey = s.Or(cfg.Search.SemanticScholarAPIKey, secrets.SemanticScholarAPIKey)
	cfg.Search.OpenAlexEmail = s.Or(cfg.Search.OpenAlexEmail, secrets.OpenAlexEmail)
	cfg.Server.APIToken = s.Or(cfg.Server.APIToken, secrets.APIToken)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations. Credentials are checked
// by the components that need them.
func Validate(cfg types.Config) error {
	var errs []error
	switch cfg.LLM.Provider {
	case "", "claude", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q (want claude or openai)", cfg.LLM.Provider))
	}
	switch cfg.Search.Backend {
	case "", "arxiv", "semantic_scholar", "openalex":
	default:
		errs = append(errs, fmt.Errorf("search.backend: unknown backend %q (want arxiv, semantic_scholar or openalex)", cfg.Search.Backend))
	}
	if t := cfg.Validate.TitleThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("validate.title_threshold: %v is outside (0, 1]", t))
	}
	if cfg.Rank.TopK < 1 {
		errs = append(errs, fmt.Errorf("rank.top_k: must be at least 1, got %d", cfg.Rank.TopK))
	}
	if cfg.Expand.Workers < 1 {
		errs = append(errs, fmt.Errorf("expand.workers: must be at least 1, got %d", cfg.Expand.Workers))
	}
	if cfg.Pipeline.Parallel < 1 {
		errs = append(errs, fmt.Errorf("pipeline.parallel: must be at least 1, got %d", cfg.Pipeline.Parallel))
	}
	if _, err := cite.ParsePlacement(cfg.Cite.Placement); err != nil {
		errs = append(errs, fmt.Errorf("cite.placement: %w", err))
	}
	if p := cfg.Server.Port; p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d is not a valid port", p))
	}
	if cfg.Server.MaxTextLength < 1 {
		errs = append(errs, fmt.Errorf("server.max_text_length: must be positive, got %d", cfg.Server.MaxTextLength))
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q (want text or json)", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

// NewLogger builds the slog logger described by cfg, writing to w.
func NewLogger(cfg types.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
