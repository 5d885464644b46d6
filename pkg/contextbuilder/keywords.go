// Package contextbuilder deterministically projects a repository onto
// a size-bounded string suitable for an LLM prompt, per the algorithm
// in spec §4.3.
package contextbuilder

import "strings"

var stopwords = map[string]bool{
	"the": true, "this": true, "that": true, "with": true,
	"from": true, "for": true, "and": true, "or": true,
}

const maxKeywords = 5
const minKeywordLen = 4

// extractKeywords returns up to maxKeywords lowercase tokens of length
// >= minKeywordLen from prompt, in order of first appearance, excluding
// stopwords and duplicates.
func extractKeywords(prompt string) []string {
	fields := strings.FieldsFunc(prompt, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})

	seen := make(map[string]bool, maxKeywords)
	var keywords []string
	for _, f := range fields {
		word := strings.ToLower(f)
		if len(word) < minKeywordLen || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
