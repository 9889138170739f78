// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package texnorm turns LaTeX sources into plain prose paragraphs and reads
// and writes the paragraph files consumed by the batch commands.
package texnorm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultMinWords is the word count a paragraph must exceed to be kept.
const DefaultMinWords = 20

var (
	commentRe = regexp.MustCompile(`(?m)(^|[^\\])%.*$`)
	// Non-prose environments are dropped with their content.
	envRe = regexp.MustCompile(`(?s)\\begin\{(equation|align|gather|multline|eqnarray|figure|table|tabular|verbatim|lstlisting|minted|tikzpicture|algorithm|thebibliography)(\*?)\}.*?\\end\{(equation|align|gather|multline|eqnarray|figure|table|tabular|verbatim|lstlisting|minted|tikzpicture|algorithm|thebibliography)\*?\}`)
	displayMathRe = regexp.MustCompile(`(?s)\\\[.*?\\\]|\$\$.*?\$\$`)
	inlineMathRe  = regexp.MustCompile(`\$[^$]*\$`)
	// Formatting commands whose argument is prose.
	keepArgRe = regexp.MustCompile(`\\(emph|textbf|textit|texttt|textsc|underline|mbox|textrm|textsf)\{([^{}]*)\}`)
	// Any other command, with optional [..] and one {..} argument.
	commandRe = regexp.MustCompile(`\\[a-zA-Z]+\*?(\[[^\]]*\])?(\{[^{}]*\})?`)
	symbolRe  = regexp.MustCompile(`\\[^a-zA-Z\s]`)
	blankRe   = regexp.MustCompile(`\n[ \t]*\n`)
)

// Clean strips comments, math, non-prose environments and commands from a
// LaTeX source. Paragraph breaks (blank lines) are preserved.
func Clean(src string) string {
	s := strings.ReplaceAll(src, "\r\n", "\n")
	s = commentRe.ReplaceAllString(s, "$1")
	s = envRe.ReplaceAllString(s, "")
	s = displayMathRe.ReplaceAllString(s, "")
	s = inlineMathRe.ReplaceAllString(s, "")
	// Nested formatting unwraps from the inside out.
	for keepArgRe.MatchString(s) {
		s = keepArgRe.ReplaceAllString(s, "$2")
	}
	s = commandRe.ReplaceAllString(s, "")
	s = symbolRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("{", "", "}", "", "~", " ").Replace(s)
	return s
}

// Paragraphs extracts the prose paragraphs of a LaTeX source that have
// more than minWords words, with whitespace collapsed. A minWords of zero
// or less uses DefaultMinWords.
func Paragraphs(src string, minWords int) []string {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	var out []string
	for _, p := range blankRe.Split(Clean(src), -1) {
		words := strings.Fields(p)
		if len(words) > minWords {
			out = append(out, strings.Join(words, " "))
		}
	}
	return out
}

// Split splits a paragraphs file on blank lines, trimming each paragraph
// and dropping empty ones.
func Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WriteParagraphs writes paragraphs separated by blank lines.
func WriteParagraphs(w io.Writer, paragraphs []string) error {
	for _, p := range paragraphs {
		if _, err := fmt.Fprintf(w, "%s\n\n", p); err != nil {
			return err
		}
	}
	return nil
}

// NumberedJSON encodes paragraphs as a JSON object keyed "1", "2", ... in
// paragraph order.
func NumberedJSON(paragraphs []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, p := range paragraphs {
		if i > 0 {
			buf.WriteString(",")
		}
		val, err := marshalNoEscape(p)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "\n  %q: %s", strconv.Itoa(i+1), val)
	}
	if len(paragraphs) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// ParseNumberedJSON decodes a numbered paragraph map, ordered by number.
func ParseNumberedJSON(data []byte) ([]string, error) {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing paragraph map: %w", err)
	}
	type numbered struct {
		n int
		p string
	}
	items := make([]numbered, 0, len(m))
	for k, v := range m {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("paragraph key %q is not a number", k)
		}
		items = append(items, numbered{n, v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].n < items[j].n })
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.p
	}
	return out, nil
}

// Select returns paragraph number n (1-based) of a paragraphs file or a
// numbered JSON map.
func Select(data []byte, n int) (string, error) {
	var paragraphs []string
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var err error
		if paragraphs, err = ParseNumberedJSON(trimmed); err != nil {
			return "", err
		}
	} else {
		paragraphs = Split(string(data))
	}
	if n < 1 || n > len(paragraphs) {
		return "", fmt.Errorf("paragraph %d out of range (1-%d)", n, len(paragraphs))
	}
	return paragraphs[n-1], nil
}

func marshalNoEscape(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
