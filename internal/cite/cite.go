// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cite turns ranked papers into BibTeX entries and inline
// \cite{} markers. Keys are first-author surname plus year with
// a/b/... suffixes on collision.
package cite

import (
	"fmt"
	"strings"

	"github.com/pdiddy/citation-engine/internal/rank"
	"github.com/pdiddy/citation-engine/internal/textsim"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Placement controls where markers are inserted.
type Placement string

const (
	// PlaceEnd appends every marker as one group at the end of the paragraph.
	PlaceEnd Placement = "end"
	// PlaceSentence attaches each marker to its most relevant sentence.
	PlaceSentence Placement = "sentence"
)

// ParsePlacement maps a config value to a Placement. Empty means PlaceEnd.
func ParsePlacement(s string) (Placement, error) {
	switch Placement(strings.ToLower(strings.TrimSpace(s))) {
	case "", PlaceEnd:
		return PlaceEnd, nil
	case PlaceSentence:
		return PlaceSentence, nil
	}
	return "", fmt.Errorf("unknown citation placement %q (want end or sentence)", s)
}

// Formatter produces a CitationResult for one paragraph.
type Formatter struct {
	Placement Placement
}

// Format assigns keys to top in rank order, renders one BibTeX entry per
// paper and inserts one marker per entry. An empty top returns the
// paragraph unchanged.
func (f Formatter) Format(paragraph string, top []types.RankedEntry) types.CitationResult {
	res := types.CitationResult{
		Paragraph: paragraph,
		CitedText: paragraph,
		Groups:    []types.MarkerGroup{},
		Entries:   []types.BibEntry{},
	}
	if len(top) == 0 {
		return res
	}

	papers := make([]types.Paper, len(top))
	for i, e := range top {
		papers[i] = e.Paper
	}
	keys := AssignKeys(papers)
	for i, p := range papers {
		res.Entries = append(res.Entries, types.BibEntry{Key: keys[i], Paper: p, BibTeX: RenderBibTeX(keys[i], p)})
	}

	if f.Placement == PlaceSentence {
		res.Groups = groupBySentence(paragraph, res.Entries)
	} else {
		res.Groups = []types.MarkerGroup{{Sentence: types.EndOfParagraph, Keys: keys}}
	}
	res.CitedText = Render(paragraph, res.Groups)
	return res
}

// groupBySentence assigns each entry to the sentence its paper document is
// most similar to. Ties go to the earlier sentence; papers with no overlap
// go to the last sentence. Groups are ordered by sentence, keys by entry
// order.
func groupBySentence(paragraph string, entries []types.BibEntry) []types.MarkerGroup {
	sentences := sentenceTexts(paragraph, splitSentences(paragraph))
	if len(sentences) == 0 {
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		return []types.MarkerGroup{{Sentence: types.EndOfParagraph, Keys: keys}}
	}

	docs := make([]string, 0, len(sentences)+len(entries))
	docs = append(docs, sentences...)
	for _, e := range entries {
		docs = append(docs, rank.Document(e.Paper))
	}
	corpus := textsim.NewCorpus(docs)
	svecs := make([]textsim.Vector, len(sentences))
	for i, s := range sentences {
		svecs[i] = corpus.Vector(s)
	}

	bySentence := make([][]string, len(sentences))
	for _, e := range entries {
		pv := corpus.Vector(rank.Document(e.Paper))
		best, bestScore := len(sentences)-1, 0.0
		for i, sv := range svecs {
			if s := textsim.Cosine(sv, pv); s > bestScore {
				best, bestScore = i, s
			}
		}
		bySentence[best] = append(bySentence[best], e.Key)
	}

	var groups []types.MarkerGroup
	for i, keys := range bySentence {
		if len(keys) > 0 {
			groups = append(groups, types.MarkerGroup{Sentence: i, Keys: keys})
		}
	}
	return groups
}

// Render inserts the marker groups into paragraph. Sentence groups go
// before the sentence's terminal punctuation; end groups are appended
// after the paragraph. Groups referring to sentences that do not exist
// are treated as end groups.
func Render(paragraph string, groups []types.MarkerGroup) string {
	if len(groups) == 0 {
		return paragraph
	}
	spans := splitSentences(paragraph)

	inserts := make(map[int][]string)
	var tail []string
	for _, g := range groups {
		if len(g.Keys) == 0 {
			continue
		}
		if g.Sentence >= 0 && g.Sentence < len(spans) {
			at := spans[g.Sentence].insert
			inserts[at] = append(inserts[at], g.Keys...)
		} else {
			tail = append(tail, g.Keys...)
		}
	}

	var b strings.Builder
	last := 0
	for _, s := range spans {
		keys, ok := inserts[s.insert]
		if !ok {
			continue
		}
		b.WriteString(paragraph[last:s.insert])
		b.WriteString(" ")
		b.WriteString(Marker(keys))
		last = s.insert
		delete(inserts, s.insert)
	}
	rest := paragraph[last:]
	if len(tail) > 0 {
		rest = strings.TrimRight(rest, " \t\r\n")
		b.WriteString(rest)
		b.WriteString(" ")
		b.WriteString(Marker(tail))
	} else {
		b.WriteString(rest)
	}
	return b.String()
}

// Marker formats one \cite{} group.
func Marker(keys []string) string {
	return `\cite{` + strings.Join(keys, ",") + `}`
}

// Rekey renames keys in res according to mapping and re-renders the
// entries and cited text. Keys missing from mapping are kept.
func Rekey(res types.CitationResult, mapping map[string]string) types.CitationResult {
	rename := func(k string) string {
		if nk, ok := mapping[k]; ok && nk != "" {
			return nk
		}
		return k
	}
	out := res
	out.Entries = make([]types.BibEntry, len(res.Entries))
	for i, e := range res.Entries {
		k := rename(e.Key)
		out.Entries[i] = types.BibEntry{Key: k, Paper: e.Paper, BibTeX: RenderBibTeX(k, e.Paper)}
	}
	out.Groups = make([]types.MarkerGroup, len(res.Groups))
	for i, g := range res.Groups {
		keys := make([]string, len(g.Keys))
		for j, k := range g.Keys {
			keys[j] = rename(k)
		}
		out.Groups[i] = types.MarkerGroup{Sentence: g.Sentence, Keys: keys}
	}
	out.CitedText = Render(res.Paragraph, out.Groups)
	return out
}
