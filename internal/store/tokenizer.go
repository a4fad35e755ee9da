package store

import (
	"regexp"
	"strings"
)

// tokenRegex matches alphanumeric runs, the unit both adapters tokenize on.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Tokenize splits prose text into lowercased terms of at least two
// characters. Unlike a code-aware tokenizer this does not split
// camelCase/snake_case identifiers: document prose doesn't carry that
// convention, and splitting it would just fragment ordinary words.
func Tokenize(text string) []string {
	words := tokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= 2 {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a set for lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// DefaultStopWords is a small general-English stop list, replacing the
// teacher's programming-keyword list since docindex tokenizes document
// prose rather than source code.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "but", "if", "of", "to", "in", "on",
	"for", "with", "as", "by", "at", "is", "are", "was", "were", "be",
	"been", "being", "it", "this", "that", "these", "those", "from",
	"into", "than", "then", "so", "such", "not", "no", "do", "does",
	"did", "has", "have", "had", "can", "will", "would", "should",
}
