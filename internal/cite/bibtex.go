// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"fmt"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// RenderBibTeX serialises one entry. The layout is fixed:
//
//	@article{KEY,
//	  title={...},
//	  author={A and B},
//	  year={YEAR},
//	  eprint={ID},
//	  archivePrefix={arXiv},
//	  primaryClass={CLASS},
//	  url={URL}
//	}
//
// DOI identifiers are written as doi={...} instead of eprint; papers from
// other indexes carry their index name as archivePrefix. Fields with no
// value are left out.
func RenderBibTeX(key string, p types.Paper) string {
	var fields [][2]string
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, [2]string{name, value})
		}
	}

	add("title", escapeLatex(p.Title))
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, escapeLatex(a))
	}
	add("author", strings.Join(authors, " and "))
	add("year", p.YearString())

	switch {
	case p.Source == "arxiv" || (p.ID != "" && isArxivLike(p)):
		add("eprint", p.ID)
		add("archivePrefix", "arXiv")
		add("primaryClass", p.PrimaryClass)
	case strings.HasPrefix(p.ID, "10."):
		add("doi", p.ID)
	default:
		add("eprint", p.ID)
		add("archivePrefix", p.Source)
	}
	add("url", p.URL)

	var b strings.Builder
	fmt.Fprintf(&b, "@article{%s,\n", key)
	for i, f := range fields {
		fmt.Fprintf(&b, "  %s={%s}", f[0], f[1])
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// isArxivLike reports whether a non-arXiv index returned an arXiv paper
// (Semantic Scholar prefers arXiv IDs).
func isArxivLike(p types.Paper) bool {
	return strings.HasPrefix(p.URL, "https://arxiv.org/abs/")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Backslash first so the escapes added below are not doubled.
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
