// Package draft provides presentation helpers for skill-driven text work:
// headline rewriting, markdown outline extraction and rendering of bundled
// document templates. Everything here is a pure function over strings.
package draft

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Casing selects how Headline rewrites word casing.
type Casing int

const (
	// CasingKeep leaves words as written
	CasingKeep Casing = iota
	// CasingTitle applies headline-style title case: every word capitalized
	// except small connector words, which stay lowercase unless first or last
	CasingTitle
	// CasingSentence capitalizes the first word and lowercases the rest
	CasingSentence
)

// HeadlineOptions configures Headline.
type HeadlineOptions struct {
	Casing Casing
	// MaxWidth clamps the headline to at most this many runes, cutting at a
	// word boundary and appending an ellipsis. Zero means no clamp.
	MaxWidth int
	// StripPrefixes are removed from the front of the headline,
	// case-insensitively, before any other rewriting. Useful for markers
	// like "Draft:" or "WIP:".
	StripPrefixes []string
}

// smallWords stay lowercase in title case unless they are the first or
// last word.
var smallWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true,
	"but": true, "by": true, "for": true, "in": true, "nor": true,
	"of": true, "on": true, "or": true, "per": true, "so": true,
	"the": true, "to": true, "via": true, "with": true, "yet": true,
}

// Headline rewrites a raw heading into presentation form: markdown heading
// markers and configured prefixes are stripped, whitespace is collapsed,
// casing is applied and the result is clamped to the configured width.
func Headline(raw string, opts HeadlineOptions) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "#")
	s = strings.TrimSpace(s)

	s = stripPrefixes(s, opts.StripPrefixes)

	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}

	switch opts.Casing {
	case CasingTitle:
		for i, word := range words {
			words[i] = titleWord(word, i == 0 || i == len(words)-1)
		}
	case CasingSentence:
		for i, word := range words {
			words[i] = sentenceWord(word, i == 0)
		}
	}

	return clampWidth(strings.Join(words, " "), opts.MaxWidth)
}

func stripPrefixes(s string, prefixes []string) string {
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range prefixes {
			if prefix == "" {
				continue
			}
			if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
				s = strings.TrimSpace(s[len(prefix):])
				stripped = true
			}
		}
	}
	return s
}

// titleWord capitalizes a word for title case. Acronyms are preserved and
// small connector words stay lowercase unless the position forces
// capitalization.
func titleWord(word string, forceCapital bool) string {
	if isAcronym(word) {
		return word
	}
	lower := strings.ToLower(word)
	if !forceCapital && smallWords[lower] {
		return lower
	}
	return capitalize(lower)
}

// sentenceWord lowercases a word for sentence case, capitalizing only the
// first word. Acronyms are preserved.
func sentenceWord(word string, first bool) string {
	if isAcronym(word) {
		return word
	}
	lower := strings.ToLower(word)
	if first {
		return capitalize(lower)
	}
	return lower
}

// isAcronym reports whether the word is all uppercase letters, e.g. "MCP"
// or "API". Single letters do not count.
func isAcronym(word string) bool {
	letters := 0
	for _, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters > 1
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}

// clampWidth cuts the string to at most width runes, preferring a word
// boundary, and appends an ellipsis to mark the cut.
func clampWidth(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}

	const ellipsis = "..."
	budget := width - len(ellipsis)
	if budget <= 0 {
		return string([]rune(s)[:width])
	}

	runes := []rune(s)
	cut := budget
	for i := budget; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}

	return strings.TrimSpace(string(runes[:cut])) + ellipsis
}
