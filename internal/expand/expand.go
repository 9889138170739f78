// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package expand grows the candidate pool with other works by the authors
// of validated papers. Author lookups run on a bounded worker pool; their
// results are merged into the pool by the calling goroutine in author
// order, so the merge has a single writer and a deterministic outcome.
package expand

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citation-engine/internal/apierr"
	"github.com/pdiddy/citation-engine/internal/candidates"
	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/internal/httputil"
	"github.com/pdiddy/citation-engine/internal/search"
	"github.com/pdiddy/citation-engine/internal/suggest"
	"github.com/pdiddy/citation-engine/pkg/types"
)

const (
	DefaultWorkers         = 4
	DefaultMaxAuthors      = 12
	DefaultPapersPerAuthor = 5
)

// AuthorSet records the authors already queried in one run. It is safe
// for concurrent use.
type AuthorSet struct {
	mu   sync.Mutex
	seen map[string]string
}

// NewAuthorSet returns a set pre-marked with names.
func NewAuthorSet(names ...string) *AuthorSet {
	s := &AuthorSet{seen: make(map[string]string)}
	for _, n := range names {
		s.Claim(n)
	}
	return s
}

// Claim marks name as queried. It reports false when the name was already
// claimed, in which case the caller must not query it again.
func (s *AuthorSet) Claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]string)
	}
	k := suggest.AuthorKey(name)
	if k == "" {
		return false
	}
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = name
	return true
}

// Has reports whether name was claimed.
func (s *AuthorSet) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[suggest.AuthorKey(name)]
	return ok
}

// Names returns the claimed names sorted by identity.
func (s *AuthorSet) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.seen))
	for k := range s.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.seen[k]
	}
	return out
}

// Selector narrows the author list before expansion.
type Selector interface {
	SelectAuthors(ctx context.Context, paragraph string, authors []string) ([]string, error)
}

// Expander queries the index for other works of validated papers' authors.
type Expander struct {
	Index search.Index
	// Selector, when set, picks the key authors to expand.
	Selector        Selector
	Workers         int
	MaxAuthors      int
	PapersPerAuthor int
	CallTimeout     time.Duration
	// Progress receives one line per author. Optional.
	Progress io.Writer
}

// Failure records an author whose lookup failed.
type Failure struct {
	Author string `json:"author"`
	Error  string `json:"error"`
}

// Output is the result of one expansion.
type Output struct {
	Pool *candidates.Pool `json:"pool"`
	// Queried lists the authors looked up in this expansion, in order.
	Queried  []string  `json:"queried"`
	Failures []Failure `json:"failures,omitempty"`
	// Added counts papers new to the pool.
	Added int `json:"added"`
}

// Expand seeds a pool with validated papers and adds works by their
// authors. Authors already claimed in seen are skipped. A credential
// rejection or a failing key-author selection aborts with an external
// service error; other lookup failures are recorded and skipped.
func (e *Expander) Expand(ctx context.Context, paragraph string, validated []types.Paper, seen *AuthorSet) (Output, error) {
	pool := candidates.NewPool()
	for _, p := range validated {
		p.Provenance = types.ProvenanceDirect
		pool.Add(p)
	}
	out := Output{Pool: pool, Queried: []string{}}
	if seen == nil {
		seen = NewAuthorSet()
	}
	w := e.Progress
	if w == nil {
		w = io.Discard
	}

	authors := DistinctAuthors(validated)
	if e.Selector != nil && len(authors) > 0 {
		selected, err := e.Selector.SelectAuthors(ctx, paragraph, authors)
		if err != nil {
			return out, fmt.Errorf("selecting key authors: %w", err)
		}
		authors = selected
	}

	maxAuthors := orDefault(e.MaxAuthors, DefaultMaxAuthors)
	var queue []string
	for _, a := range authors {
		if len(queue) >= maxAuthors {
			break
		}
		if seen.Claim(a) {
			queue = append(queue, a)
		}
	}
	if len(queue) == 0 {
		return out, nil
	}

	results := make([][]types.Paper, len(queue))
	errs := make([]error, len(queue))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(orDefault(e.Workers, DefaultWorkers))
	for i, author := range queue {
		g.Go(func() error {
			papers, err := e.lookup(gctx, author)
			if err != nil {
				errs[i] = err
				if apierr.IsAuth(err) {
					return err
				}
				return nil
			}
			results[i] = papers
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("expanding authors: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	for i, author := range queue {
		out.Queried = append(out.Queried, author)
		if errs[i] != nil {
			if errors.Is(errs[i], context.Canceled) {
				return out, errs[i]
			}
			out.Failures = append(out.Failures, Failure{Author: author, Error: errs[i].Error()})
			fmt.Fprintf(w, "  failed author %q: %v\n", author, errs[i])
			continue
		}
		added := 0
		for _, p := range results[i] {
			p.Provenance = types.ProvenanceAuthorSearch
			p.FromAuthor = author
			if pool.Add(p) {
				added++
			}
		}
		out.Added += added
		fmt.Fprintf(w, "  author %q: %d papers, %d new\n", author, len(results[i]), added)
	}
	return out, nil
}

// lookup returns up to PapersPerAuthor papers written by author. Indexes
// treat an author query as a best-effort search, so results that do not
// list the author are dropped.
func (e *Expander) lookup(ctx context.Context, author string) ([]types.Paper, error) {
	limit := orDefault(e.PapersPerAuthor, DefaultPapersPerAuthor)
	ctx, cancel := httputil.CallContext(ctx, e.CallTimeout)
	defer cancel()
	papers, err := e.Index.Search(ctx, search.Query{Author: author, MaxResults: limit})
	if err != nil {
		return nil, err
	}
	papers, _ = search.Deduplicate(papers)

	var own []types.Paper
	for _, p := range papers {
		if len(own) == limit {
			break
		}
		if hasAuthor(p, author) {
			own = append(own, p)
		}
	}
	return own, nil
}

// hasAuthor reports whether p lists author. Names match on identity, or
// on surname and first initial so "A. Vaswani" matches "Ashish Vaswani".
func hasAuthor(p types.Paper, author string) bool {
	key := suggest.AuthorKey(author)
	surname, initial := nameParts(author)
	for _, a := range p.Authors {
		if suggest.AuthorKey(a) == key {
			return true
		}
		s, i := nameParts(a)
		if surname != "" && s == surname && (i == 0 || initial == 0 || i == initial) {
			return true
		}
	}
	return false
}

// nameParts returns the lowercased surname and the first given-name
// initial (0 when unknown) of name.
func nameParts(name string) (string, rune) {
	surname := strings.ToLower(cite.Surname(name))
	given := name
	if family, rest, ok := strings.Cut(name, ","); ok {
		given = rest
		surname = strings.ToLower(strings.TrimSpace(family))
	}
	for _, f := range strings.Fields(given) {
		if strings.EqualFold(f, surname) {
			break
		}
		for _, r := range f {
			if unicode.IsLetter(r) {
				return surname, unicode.ToLower(r)
			}
		}
	}
	return surname, 0
}

// DistinctAuthors lists the authors of papers in paper order then author
// order, keeping the first spelling of each identity.
func DistinctAuthors(papers []types.Paper) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range papers {
		for _, a := range p.Authors {
			k := suggest.AuthorKey(a)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, a)
		}
	}
	return out
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
