// Package text provides term extraction shared by the offline embedder.
// It knows just enough about source code to split identifiers into words.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenRe matches identifier-like runs: letters, digits and underscores.
var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Stopwords are common words filtered during term extraction.
// They appear in nearly every chunk and carry no topic.
var Stopwords = map[string]struct{}{
	// Articles and prepositions
	"the": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {},
	"in": {}, "for": {}, "with": {}, "on": {}, "at": {}, "by": {},
	"from": {}, "as": {}, "into": {},
	// Common verbs
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"has": {}, "have": {}, "do": {}, "does": {}, "will": {}, "can": {},
	// Pronouns
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"which": {}, "what": {},
	// Keywords shared by most languages we index
	"if": {}, "else": {}, "return": {}, "def": {}, "func": {}, "self": {},
	"import": {}, "var": {}, "let": {}, "const": {}, "not": {}, "none": {},
	"null": {}, "nil": {}, "true": {}, "false": {},
}

// IsStopword reports whether a lowercased term is filtered.
func IsStopword(term string) bool {
	_, ok := Stopwords[term]
	return ok
}

// NormalizeTerms converts text into a list of searchable terms.
// Identifiers are split on underscores and case changes, lowercased,
// and stopwords and single-character tokens are dropped.
//
// Example: "parseHTTPRequest(raw_body)" → ["parse", "http", "request", "raw", "body"]
func NormalizeTerms(s string) []string {
	raw := tokenRe.FindAllString(s, -1)

	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		for _, part := range strings.Split(tok, "_") {
			for _, word := range splitCamel(part) {
				word = strings.ToLower(word)
				if len([]rune(word)) <= 1 || IsStopword(word) {
					continue
				}
				out = append(out, word)
			}
		}
	}
	return out
}

// splitCamel breaks "parseHTTPRequest" into ["parse", "HTTP", "Request"].
// Digits stay attached to the word they follow.
func splitCamel(s string) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}

	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := false
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			// fooBar
			boundary = true
		case unicode.IsDigit(prev) && unicode.IsUpper(cur):
			// V2Client
			boundary = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			// HTTPRequest: split before the R
			boundary = true
		}
		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}
