// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package suggest

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// ParseStatus tags how a model response was interpreted.
type ParseStatus string

const (
	// ParseOK means the response was understood (it may still hold zero ideas).
	ParseOK ParseStatus = "ok"
	// ParseMalformed means no idea could be recovered from the response.
	ParseMalformed ParseStatus = "malformed"
)

// Parsed is the result of interpreting a model response.
type Parsed struct {
	Status ParseStatus  `json:"status"`
	Ideas  []types.Idea `json:"ideas"`
	// Raw is the unmodified model output, kept for the checkpoint.
	Raw string `json:"raw,omitempty"`
}

// rawIdea accepts the loose shapes models produce: authors as a string or
// an array, year as a number or a string.
type rawIdea struct {
	Title      string          `json:"title"`
	Authors    json.RawMessage `json:"authors"`
	Year       json.RawMessage `json:"year"`
	URL        string          `json:"url"`
	ArxivURL   string          `json:"arxiv_url"`
	Topic      string          `json:"topic"`
	Relevance  string          `json:"relevance"`
	Confidence json.RawMessage `json:"confidence"`
}

// Parse interprets a model response. JSON is tried first (code fences and
// surrounding prose are tolerated), then the "Title:/Year:/Authors:" line
// format. Ideas without a title are dropped. Output that yields nothing
// recognisable is ParseMalformed with no ideas; it is never an error.
func Parse(raw string) Parsed {
	if ideas, ok := parseJSON(raw); ok {
		return Parsed{Status: ParseOK, Ideas: ideas, Raw: raw}
	}
	if ideas, ok := parseLines(raw); ok {
		return Parsed{Status: ParseOK, Ideas: ideas, Raw: raw}
	}
	return Parsed{Status: ParseMalformed, Raw: raw}
}

func parseJSON(raw string) ([]types.Idea, bool) {
	body := stripFences(raw)

	items, ok := decodeIdeaList(body)
	if !ok {
		return nil, false
	}

	ideas := []types.Idea{}
	for _, it := range items {
		idea := types.Idea{
			Title:      strings.TrimSpace(it.Title),
			Authors:    looseAuthors(it.Authors),
			Year:       looseInt(it.Year),
			URL:        strings.TrimSpace(it.URL),
			Topic:      strings.TrimSpace(it.Topic),
			Relevance:  strings.TrimSpace(it.Relevance),
			Confidence: looseFloat(it.Confidence),
		}
		if idea.URL == "" {
			idea.URL = strings.TrimSpace(it.ArxivURL)
		}
		if idea.Title != "" {
			ideas = append(ideas, idea)
		}
	}
	return ideas, true
}

// envelopeKeys are the object keys models use for the idea list.
var envelopeKeys = []string{"ideas", "papers", "suggestions"}

// decodeIdeaList finds the outermost JSON value in body and reads it as
// an envelope object, a single idea object, or a bare array of ideas.
func decodeIdeaList(body string) ([]rawIdea, bool) {
	objStart, arrStart := strings.Index(body, "{"), strings.Index(body, "[")
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndex(body, "]"); end > arrStart {
			if items, ok := decodeItems([]byte(body[arrStart : end+1])); ok {
				return items, true
			}
		}
	}
	if objStart < 0 {
		return nil, false
	}
	end := strings.LastIndex(body, "}")
	if end <= objStart {
		return nil, false
	}
	obj := []byte(body[objStart : end+1])

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(obj, &envelope); err != nil {
		return nil, false
	}
	for _, k := range envelopeKeys {
		v, ok := envelope[k]
		if !ok {
			continue
		}
		if string(v) == "null" {
			return nil, true
		}
		return decodeItems(v)
	}
	if _, ok := envelope["title"]; ok {
		var one rawIdea
		if err := json.Unmarshal(obj, &one); err == nil {
			return []rawIdea{one}, true
		}
	}
	return nil, false
}

// decodeItems reads a JSON array of ideas one element at a time, so an
// element of the wrong shape is dropped without losing the others.
func decodeItems(data []byte) ([]rawIdea, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, false
	}
	items := make([]rawIdea, 0, len(elems))
	for _, e := range elems {
		var it rawIdea
		if err := json.Unmarshal(e, &it); err != nil {
			continue
		}
		items = append(items, it)
	}
	return items, true
}

// stripFences removes a surrounding ``` or ```json block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// parseLines reads blocks of "Key: value" lines. A new "Title:" or a blank
// line closes the current block.
func parseLines(raw string) ([]types.Idea, bool) {
	var ideas []types.Idea
	var cur *types.Idea
	flush := func() {
		if cur != nil && cur.Title != "" {
			ideas = append(ideas, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789.) "))
		if line == "" {
			flush()
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "*\"")
		switch strings.ToLower(strings.Trim(key, "* ")) {
		case "title":
			flush()
			cur = &types.Idea{Title: value}
		case "year":
			if cur != nil {
				cur.Year, _ = strconv.Atoi(firstField(value))
			}
		case "authors", "author":
			if cur != nil {
				cur.Authors = splitAuthors(value)
			}
		case "arxiv url", "url", "arxiv":
			if cur != nil {
				cur.URL = value
			}
		case "relevance":
			if cur != nil {
				cur.Relevance = value
			}
		case "topic", "claim":
			if cur != nil {
				cur.Topic = value
			}
		}
	}
	flush()
	return ideas, len(ideas) > 0
}

func looseAuthors(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []string
		for _, a := range list {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
		return out
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return splitAuthors(s)
	}
	return nil
}

// splitAuthors splits "A, B and C" style author lists.
func splitAuthors(s string) []string {
	s = strings.ReplaceAll(s, " and ", ",")
	s = strings.ReplaceAll(s, ";", ",")
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" && !strings.EqualFold(a, "et al.") && !strings.EqualFold(a, "et al") {
			out = append(out, a)
		}
	}
	return out
}

func looseInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.Atoi(firstField(s))
		return v
	}
	return 0
}

func looseFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return v
	}
	return 0
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return strings.Trim(f[0], "(),.")
}
