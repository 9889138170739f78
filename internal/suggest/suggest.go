// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package suggest asks the language model for candidate references
// (ideas) supporting a paragraph, and for the authors worth expanding.
// Model output is parsed defensively: malformed output yields no ideas,
// while provider failures are returned as external service errors.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/citation-engine/internal/httputil"
	"github.com/pdiddy/citation-engine/internal/llm"
	"github.com/pdiddy/citation-engine/internal/textsim"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// DefaultMaxIdeas caps the ideas kept from one response.
const DefaultMaxIdeas = 8

// Extractor proposes ideas for a paragraph.
type Extractor struct {
	Provider llm.Provider
	// MaxIdeas caps the ideas kept (DefaultMaxIdeas when zero).
	MaxIdeas int
	// Timeout bounds the provider call.
	Timeout time.Duration
}

// Extract asks the provider for ideas supporting paragraph. An empty or
// malformed response is not an error.
func (e *Extractor) Extract(ctx context.Context, paragraph string) (Parsed, error) {
	maxIdeas := e.MaxIdeas
	if maxIdeas <= 0 {
		maxIdeas = DefaultMaxIdeas
	}
	user, err := render(ideasUserTmpl, struct {
		Paragraph string
		MaxIdeas  int
	}{paragraph, maxIdeas})
	if err != nil {
		return Parsed{}, fmt.Errorf("rendering prompt: %w", err)
	}

	ctx, cancel := httputil.CallContext(ctx, e.Timeout)
	defer cancel()

	raw, err := e.Provider.Complete(ctx, llm.Request{System: ideasSystemPrompt, User: user})
	if err != nil {
		return Parsed{}, fmt.Errorf("requesting ideas: %w", err)
	}

	parsed := Parse(raw)
	parsed.Ideas = dedupeIdeas(parsed.Ideas)
	if len(parsed.Ideas) > maxIdeas {
		parsed.Ideas = parsed.Ideas[:maxIdeas]
	}
	return parsed, nil
}

// dedupeIdeas drops ideas whose normalised title was already proposed.
func dedupeIdeas(ideas []types.Idea) []types.Idea {
	seen := make(map[string]bool, len(ideas))
	out := ideas[:0]
	for _, idea := range ideas {
		key := textsim.Normalize(idea.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, idea)
	}
	return out
}

// KeyAuthors asks the provider which of the given authors are most likely
// to have written other relevant work.
type KeyAuthors struct {
	Provider llm.Provider
	Timeout  time.Duration
}

// SelectAuthors returns the subset of authors the model named, in the
// order of the input list. Names the model invents are ignored. When the
// answer names none of the input authors, all authors are returned.
func (k *KeyAuthors) SelectAuthors(ctx context.Context, paragraph string, authors []string) ([]string, error) {
	if len(authors) == 0 {
		return nil, nil
	}
	user, err := render(keyAuthorsUserTmpl, struct {
		Paragraph string
		Authors   []string
	}{paragraph, authors})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	ctx, cancel := httputil.CallContext(ctx, k.Timeout)
	defer cancel()

	raw, err := k.Provider.Complete(ctx, llm.Request{System: keyAuthorsSystemPrompt, User: user, MaxTokens: 512})
	if err != nil {
		return nil, fmt.Errorf("selecting key authors: %w", err)
	}

	named := make(map[string]bool)
	for _, line := range strings.Split(raw, "\n") {
		name := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789.) "))
		if name != "" {
			named[AuthorKey(name)] = true
		}
	}

	var selected []string
	for _, a := range authors {
		if named[AuthorKey(a)] {
			selected = append(selected, a)
		}
	}
	if len(selected) == 0 {
		return authors, nil
	}
	return selected, nil
}

// AuthorKey is the case- and whitespace-insensitive identity of an author name.
func AuthorKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
