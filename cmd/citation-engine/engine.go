// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/internal/expand"
	"github.com/pdiddy/citation-engine/internal/llm"
	"github.com/pdiddy/citation-engine/internal/pipeline"
	"github.com/pdiddy/citation-engine/internal/rank"
	"github.com/pdiddy/citation-engine/internal/registry"
	"github.com/pdiddy/citation-engine/internal/search"
	"github.com/pdiddy/citation-engine/internal/searchcache"
	"github.com/pdiddy/citation-engine/internal/suggest"
	"github.com/pdiddy/citation-engine/internal/validate"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// newIndex builds the configured search index, wrapped in the Redis cache
// when cache.redis_url is set. An unreachable Redis disables the cache
// with a warning. The returned func releases the Redis client.
func newIndex(ctx context.Context, c types.Config) (search.Index, func(), error) {
	idx, err := search.New(c.Search, &http.Client{Timeout: c.Search.Timeout})
	if err != nil {
		return nil, nil, err
	}
	if c.Cache.RedisURL == "" {
		return idx, func() {}, nil
	}
	client, err := searchcache.Connect(ctx, c.Cache.RedisURL)
	if err != nil {
		logger.Warn("search cache disabled", "error", err)
		return idx, func() {}, nil
	}
	logger.Debug("search cache enabled", "ttl", c.Cache.TTL)
	return searchcache.New(idx, client, c.Cache.TTL, c.Cache.Prefix, logger), func() { client.Close() }, nil
}

// newOrchestrator wires the pipeline components from c. Progress lines go
// to progress. The returned func releases the registry and cache.
func newOrchestrator(ctx context.Context, c types.Config, progress io.Writer) (*pipeline.Orchestrator, func(), error) {
	provider, err := llm.New(c.LLM, nil)
	if err != nil {
		return nil, nil, err
	}
	placement, err := cite.ParsePlacement(c.Cite.Placement)
	if err != nil {
		return nil, nil, err
	}
	idx, closeIndex, err := newIndex(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.Open(c.Pipeline.ResultsDir)
	if err != nil {
		closeIndex()
		return nil, nil, fmt.Errorf("opening registry: %w", err)
	}

	var selector expand.Selector
	if c.Expand.KeyAuthorsOnly {
		selector = &suggest.KeyAuthors{Provider: provider, Timeout: c.LLM.Timeout}
	}

	o := &pipeline.Orchestrator{
		Extractor: &suggest.Extractor{
			Provider: provider,
			MaxIdeas: c.Pipeline.MaxIdeas,
			Timeout:  c.LLM.Timeout,
		},
		Validator: &validate.Validator{
			Index:             idx,
			Threshold:         c.Validate.TitleThreshold,
			CandidatesPerIdea: c.Validate.CandidatesPerIdea,
			CallTimeout:       c.Search.Timeout,
			Progress:          progress,
		},
		Expander: &expand.Expander{
			Index:           idx,
			Selector:        selector,
			Workers:         c.Expand.Workers,
			MaxAuthors:      c.Expand.MaxAuthors,
			PapersPerAuthor: c.Expand.PapersPerAuthor,
			CallTimeout:     c.Search.Timeout,
			Progress:        progress,
		},
		Ranker:     rank.Ranker{TopK: c.Rank.TopK, MinScore: c.Rank.MinScore},
		Formatter:  cite.Formatter{Placement: placement},
		Registry:   reg,
		ResultsDir: c.Pipeline.ResultsDir,
		Progress:   progress,
		Logger:     logger,
	}
	cleanup := func() {
		reg.Close()
		closeIndex()
	}
	return o, cleanup, nil
}
