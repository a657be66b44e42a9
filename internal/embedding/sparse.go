package embedding

import (
	"strings"
	"unicode"
)

// stopWords is the fixed stop-word list applied before term weighting.
// Kept small and stable: changing it invalidates every stored sparse
// vector, so additions require a re-embedding pass.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "been": {}, "but": {}, "by": {}, "can": {}, "could": {},
	"did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "had": {},
	"has": {}, "have": {}, "he": {}, "her": {}, "his": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "may": {}, "might": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "she": {}, "should": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}

// Tokenize lowercases the text and splits it on non-alphanumeric rune
// boundaries. Pure and locale independent: the same input always yields
// the same token sequence on every platform.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SparseVector computes a normalized term-frequency mapping for the text:
// tokenize, drop stop words, then weight each surviving term by its count
// divided by the total surviving count. Returns an empty (non-nil) map
// when nothing survives.
func SparseVector(text string) map[string]float64 {
	tokens := Tokenize(text)

	counts := make(map[string]int)
	total := 0
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		counts[tok]++
		total++
	}

	weights := make(map[string]float64, len(counts))
	if total == 0 {
		return weights
	}
	for term, count := range counts {
		weights[term] = float64(count) / float64(total)
	}
	return weights
}

// IsStopWord reports whether the term is on the fixed stop-word list.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}
