// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package suggest

import (
	"bytes"
	"text/template"
)

// ideasSystemPrompt instructs the model to propose supporting papers for a
// paragraph and answer with a single JSON object.
const ideasSystemPrompt = `You are a research assistant that suggests academic papers supporting a paragraph of scientific text.

Identify the claims in the paragraph that need citations and suggest specific, real papers that support them. Prefer:
1. Papers directly relevant to a specific claim
2. Foundational works for established concepts
3. Recent developments for claims about the current state of the field

For each paper give:
- title: the exact paper title
- authors: the main authors, as an array of full names
- year: the publication year as a number (0 if unknown)
- url: the arXiv URL if the paper is on arXiv, otherwise ""
- topic: a few words naming the claim it supports
- relevance: one sentence on why it supports the claim
- confidence: a float between 0.0 and 1.0 that the paper exists as described

Respond with a JSON object containing an "ideas" array and nothing else.

Example response:
{"ideas": [{"title": "Attention Is All You Need", "authors": ["Ashish Vaswani", "Noam Shazeer"], "year": 2017, "url": "https://arxiv.org/abs/1706.03762", "topic": "transformer architecture", "relevance": "Introduces the self-attention architecture the paragraph describes.", "confidence": 0.95}]}`

// ideasUserTmpl carries the paragraph and the suggestion cap.
var ideasUserTmpl = template.Must(template.New("ideas").Parse(`Suggest at most {{.MaxIdeas}} papers for this paragraph.

Paragraph:
{{.Paragraph}}
`))

// keyAuthorsSystemPrompt asks the model which authors are worth expanding.
const keyAuthorsSystemPrompt = `From the list of authors, identify who are most likely to have written other papers relevant to the paragraph.
Consider:
1. First authors (primary contributors)
2. Last authors (senior researchers)
3. Authors appearing multiple times
4. Authors known for work in this area

Return just the names exactly as given, one per line.`

var keyAuthorsUserTmpl = template.Must(template.New("authors").Parse(`Paragraph:
{{.Paragraph}}

Authors from validated papers:
{{range .Authors}}{{.}}
{{end}}`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
