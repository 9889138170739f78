// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the per-call timeout applied to every external request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citation-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LLMConfig selects and configures the language-model provider.
type LLMConfig struct {
	// Provider is "claude" or "openai".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5", "gpt-4o").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTokens bounds the completion length (default 2048).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds a single completion call (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// SearchConfig holds settings for the academic search index.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the index: arxiv, semantic_scholar, or openalex.
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// MaxResults is the default result cap per query (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// ArxivInterval is the minimum spacing between arXiv requests (default 3s).
	ArxivInterval time.Duration `json:"arxiv_interval" yaml:"arxiv_interval" mapstructure:"arxiv_interval"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// OpenAlexEmail is sent as mailto for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`
}

// CacheConfig configures the optional Redis search-response cache.
type CacheConfig struct {
	// RedisURL enables the cache when set (e.g. "redis://localhost:6379/0").
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" mapstructure:"redis_url"`

	// TTL is how long cached index responses stay valid (default 24h).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// Prefix namespaces cache keys (default "citation-engine:search:").
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
}

// ValidateConfig holds settings for matching ideas to indexed papers.
type ValidateConfig struct {
	// TitleThreshold is the minimum title similarity in [0,1] (default 0.8).
	TitleThreshold float64 `json:"title_threshold" yaml:"title_threshold" mapstructure:"title_threshold"`

	// CandidatesPerIdea is how many index results are compared per idea (default 5).
	CandidatesPerIdea int `json:"candidates_per_idea" yaml:"candidates_per_idea" mapstructure:"candidates_per_idea"`
}

// ExpandConfig holds settings for author expansion.
type ExpandConfig struct {
	// Workers bounds concurrent author lookups (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// MaxAuthors caps the number of authors queried per run (default 12).
	MaxAuthors int `json:"max_authors" yaml:"max_authors" mapstructure:"max_authors"`

	// PapersPerAuthor caps the papers taken from one author query (default 5).
	PapersPerAuthor int `json:"papers_per_author" yaml:"papers_per_author" mapstructure:"papers_per_author"`

	// KeyAuthorsOnly asks the language model to pick the authors worth expanding.
	KeyAuthorsOnly bool `json:"key_authors_only" yaml:"key_authors_only" mapstructure:"key_authors_only"`
}

// RankConfig holds settings for relevance ranking.
type RankConfig struct {
	// TopK is the number of papers cited (default 5).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// MinScore drops papers scoring below it from the cited set (default 0).
	MinScore float64 `json:"min_score" yaml:"min_score" mapstructure:"min_score"`
}

// CiteConfig holds settings for citation formatting.
type CiteConfig struct {
	// Placement is "end" or "sentence".
	Placement string `json:"placement" yaml:"placement" mapstructure:"placement"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	// MaxIdeas caps the ideas kept from one extraction (default 8).
	MaxIdeas int `json:"max_ideas" yaml:"max_ideas" mapstructure:"max_ideas"`

	// ResultsDir holds run directories and the cumulative bibliography.
	ResultsDir string `json:"results_dir" yaml:"results_dir" mapstructure:"results_dir"`

	// Parallel bounds concurrent runs in batch mode (default 1).
	Parallel int `json:"parallel" yaml:"parallel" mapstructure:"parallel"`
}

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" mapstructure:"host"`
	Port int    `json:"port" yaml:"port" mapstructure:"port"`

	// APIToken is the shared bearer token clients must present.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty" mapstructure:"api_token"`

	// MaxTextLength bounds the paragraph length in characters (default 3000).
	MaxTextLength int `json:"max_text_length" yaml:"max_text_length" mapstructure:"max_text_length"`

	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LogConfig holds settings for structured logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all settings.
type Config struct {
	LLM      LLMConfig      `json:"llm" yaml:"llm" mapstructure:"llm"`
	Search   SearchConfig   `json:"search" yaml:"search" mapstructure:"search"`
	Cache    CacheConfig    `json:"cache" yaml:"cache" mapstructure:"cache"`
	Validate ValidateConfig `json:"validate" yaml:"validate" mapstructure:"validate"`
	Expand   ExpandConfig   `json:"expand" yaml:"expand" mapstructure:"expand"`
	Rank     RankConfig     `json:"rank" yaml:"rank" mapstructure:"rank"`
	Cite     CiteConfig     `json:"cite" yaml:"cite" mapstructure:"cite"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}
