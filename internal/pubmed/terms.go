package pubmed

import (
	"strings"
	"unicode"
)

// Connectors used when composing search-term expressions.
const (
	And = "+AND+"
	Or  = "+OR+"
)

// Convert turns a free-text query into a search-term expression: punctuation
// is stripped, tokens of two characters or fewer are dropped and the rest are
// AND-joined in their original order.
func Convert(query string) string {
	var b strings.Builder
	for _, r := range query {
		if isWordChar(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	var terms []string
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) > 2 {
			terms = append(terms, tok)
		}
	}
	return strings.Join(terms, And)
}

func isWordChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
