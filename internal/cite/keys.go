// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// unknownSurname stands in for papers without authors.
const unknownSurname = "Unknown"

// BaseKey returns the undisambiguated key of a paper: the ASCII-folded
// surname of the first author followed by the year (omitted when unknown),
// e.g. "Vaswani2017".
func BaseKey(p types.Paper) string {
	surname := unknownSurname
	if len(p.Authors) > 0 {
		if s := keySafe(Surname(p.Authors[0])); s != "" {
			surname = s
		}
	}
	return surname + p.YearString()
}

// Surname extracts the family name from "Given Family" or "Family, Given".
func Surname(name string) string {
	name = strings.TrimSpace(name)
	if family, _, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(family)
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	// "Jr." and similar suffixes are not surnames.
	switch strings.ToLower(strings.TrimRight(last, ".")) {
	case "jr", "sr", "ii", "iii", "iv":
		if len(fields) > 1 {
			return fields[len(fields)-2]
		}
	}
	return last
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// keySafe folds diacritics and keeps ASCII letters and digits only.
func keySafe(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Suffix returns the n-th disambiguation suffix: "" for 0, then "a".."z",
// "aa", "ab", and so on.
func Suffix(n int) string {
	if n <= 0 {
		return ""
	}
	var buf []byte
	for n > 0 {
		n--
		buf = append([]byte{byte('a' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}

// Disambiguate returns the first of base, base+"a", base+"b", ... that
// taken does not report as used.
func Disambiguate(base string, taken func(string) bool) string {
	for i := 0; ; i++ {
		k := base + Suffix(i)
		if !taken(k) {
			return k
		}
	}
}

// AssignKeys returns one unique key per paper, in order. Colliding base
// keys get "", "a", "b", ... suffixes in paper order.
func AssignKeys(papers []types.Paper) []string {
	used := make(map[string]bool, len(papers))
	keys := make([]string, len(papers))
	for i, p := range papers {
		k := Disambiguate(BaseKey(p), func(k string) bool { return used[k] })
		used[k] = true
		keys[i] = k
	}
	return keys
}
