// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"strings"
	"unicode"
)

// span is one sentence of a paragraph. text[start:end] is the sentence
// including its terminal punctuation; insert is where a marker goes
// (before the terminal punctuation, or end when there is none).
type span struct {
	start, end, insert int
}

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"e.g.": true, "i.e.": true, "et al.": true, "al.": true, "fig.": true,
	"eq.": true, "sec.": true, "cf.": true, "vs.": true, "etc.": true,
	"dr.": true, "prof.": true, "no.": true, "ref.": true, "refs.": true,
}

// splitSentences splits text on '.', '!' or '?' followed by whitespace or
// end of text. Closing quotes and brackets stay with the sentence.
func splitSentences(text string) []span {
	var spans []span
	start := 0
	n := len(text)
	for i := 0; i < n; i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		// Collapse runs like "?!" or "...".
		j := i
		for j+1 < n && strings.IndexByte(".!?", text[j+1]) >= 0 {
			j++
		}
		k := j + 1
		for k < n && strings.IndexByte(`)]"'`, text[k]) >= 0 {
			k++
		}
		if k < n && !unicode.IsSpace(rune(text[k])) {
			i = j
			continue
		}
		if c == '.' && j == i && isAbbreviation(text[start:i+1], text[k:]) {
			continue
		}
		if strings.TrimSpace(text[start:k]) != "" {
			spans = append(spans, trimSpan(text, span{start: start, end: k, insert: i}))
		}
		start = k
		i = k - 1
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		s := trimSpan(text, span{start: start, end: n, insert: n})
		s.insert = s.end
		spans = append(spans, s)
	}
	return spans
}

func trimSpan(text string, s span) span {
	for s.start < s.end && unicode.IsSpace(rune(text[s.start])) {
		s.start++
	}
	for s.end > s.start && unicode.IsSpace(rune(text[s.end-1])) {
		s.end--
	}
	if s.insert > s.end {
		s.insert = s.end
	}
	// No space before the marker: "word \cite{k}." not "word  \cite{k}.".
	for s.insert > s.start && unicode.IsSpace(rune(text[s.insert-1])) {
		s.insert--
	}
	return s
}

// isAbbreviation reports whether the '.' ending upto belongs to an
// abbreviation or an initial rather than ending the sentence. next is the
// text after it.
func isAbbreviation(upto, next string) bool {
	lower := strings.ToLower(upto)
	for abbr := range abbreviations {
		if strings.HasSuffix(lower, abbr) {
			// Must be a whole word: "Fig." but not "config.".
			pre := len(lower) - len(abbr)
			if pre == 0 || !unicode.IsLetter(rune(lower[pre-1])) {
				return true
			}
		}
	}
	fields := strings.Fields(upto)
	if len(fields) == 0 {
		return false
	}
	return isInitial(fields[len(fields)-1], next)
}

// isInitial reports whether word is a single capital letter and a dot,
// as "J." in "J. Smith", followed by a capitalised word. Acronyms such
// as "AI." or "US." end sentences.
func isInitial(word, next string) bool {
	word = strings.TrimLeft(word, `("'[`)
	if len(word) != 2 || word[1] != '.' || word[0] < 'A' || word[0] > 'Z' {
		return false
	}
	next = strings.TrimLeft(next, " \t\n\r")
	return next != "" && next[0] >= 'A' && next[0] <= 'Z'
}

// sentenceTexts returns the text of each span.
func sentenceTexts(text string, spans []span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = text[s.start:s.end]
	}
	return out
}
