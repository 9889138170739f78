// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textsim provides the text-similarity measures used to match
// proposed titles against indexed papers and to score papers against a
// paragraph: normalised-title token Jaccard and TF-IDF cosine.
package textsim

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// stopWords are dropped before comparing or weighting tokens.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "do": true, "for": true, "from": true,
	"has": true, "have": true, "how": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true, "our": true,
	"that": true, "the": true, "their": true, "these": true, "this": true,
	"to": true, "via": true, "was": true, "we": true, "were": true, "what": true,
	"which": true, "with": true,
}

// Normalize returns a lowercased, punctuation-stripped version of s with
// whitespace collapsed. Hyphens and slashes become spaces so that
// "pre-training" and "pre training" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case r == '-' || r == '/' || r == '_':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the normalised non-stopword tokens of s in order.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := fields[:0]
	for _, f := range fields {
		if !stopWords[f] {
			out = append(out, f)
		}
	}
	return out
}

// Jaccard returns |A∩B| / |A∪B| over the token sets of a and b. Two empty
// inputs score 0.
func Jaccard(a, b string) float64 {
	setA := toSet(Tokens(a))
	setB := toSet(Tokens(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// TitleSimilarity scores how likely two titles name the same work. Equal
// normalised titles score 1; otherwise the token Jaccard is used.
func TitleSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return Jaccard(a, b)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// Vector is a sparse term-weight vector.
type Vector map[string]float64

// Corpus holds document frequencies for TF-IDF weighting.
type Corpus struct {
	docs int
	df   map[string]int
}

// NewCorpus builds document frequencies over docs.
func NewCorpus(docs []string) *Corpus {
	c := &Corpus{df: make(map[string]int)}
	for _, d := range docs {
		c.docs++
		for t := range toSet(Tokens(d)) {
			c.df[t]++
		}
	}
	return c
}

// IDF returns the smoothed inverse document frequency of term.
func (c *Corpus) IDF(term string) float64 {
	return math.Log(float64(1+c.docs)/float64(1+c.df[term])) + 1
}

// Vector returns the TF-IDF vector of doc.
func (c *Corpus) Vector(doc string) Vector {
	v := make(Vector)
	for _, t := range Tokens(doc) {
		v[t]++
	}
	for t, tf := range v {
		v[t] = tf * c.IDF(t)
	}
	return v
}

// Similarity returns the TF-IDF cosine similarity of a and b.
func (c *Corpus) Similarity(a, b string) float64 {
	return Cosine(c.Vector(a), c.Vector(b))
}

// Cosine returns the cosine similarity of two vectors, 0 when either is empty.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for _, t := range a.terms() {
		dot += a[t] * b[t]
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (na * nb)
	if sim > 1 {
		sim = 1
	}
	return sim
}

func norm(v Vector) float64 {
	var s float64
	for _, t := range v.terms() {
		s += v[t] * v[t]
	}
	return math.Sqrt(s)
}

// terms returns the vector's terms sorted, so sums over it are
// reproducible bit for bit.
func (v Vector) terms() []string {
	terms := make([]string, 0, len(v))
	for t := range v {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}
