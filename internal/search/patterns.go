package search

import (
	"context"
	"regexp"
	"strings"
)

// Compiled regex patterns for query classification.
// Compiled at package init for performance.
var (
	// Model/part numbers: LM317, STM32F407, E0042, ERR_1234
	modelNumberPattern = regexp.MustCompile(`(?i)^(ERR_\w+|E\d{4,5}|[A-Z]{2,}\d{2,}[A-Z0-9]*)$`)

	// Quoted exact phrases: "..." or '...'
	quotedPattern = regexp.MustCompile(`^["'].*["']$`)

	// Natural language starters (questions, commands)
	naturalLanguagePattern = regexp.MustCompile(`(?i)^(how|what|where|why|when|which|can|does|is|are|should|explain|describe|show|find|list)\s`)
)

// PatternClassifier classifies queries using regex pattern matching.
// This is the fallback classifier when the LLM is unavailable.
type PatternClassifier struct{}

// NewPatternClassifier creates a new pattern-based classifier.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

// Classify determines the query type using pattern matching.
// Returns (QueryType, Weights, nil) - never returns an error.
func (p *PatternClassifier) Classify(_ context.Context, query string) (QueryType, Weights, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryTypeMixed, WeightsForQueryType(QueryTypeMixed), nil
	}

	qt := p.classifyQuery(query)
	return qt, WeightsForQueryType(qt), nil
}

// classifyQuery determines the query type based on patterns.
func (p *PatternClassifier) classifyQuery(query string) QueryType {
	if p.isModelNumberQuery(query) {
		return QueryTypeModelNumber
	}

	if p.isDictionaryQuery(query) {
		return QueryTypeDictionary
	}

	// Multi-word queries (3+) with only alphabetic tokens read as prose → DICTIONARY
	fields := strings.Fields(query)
	if len(fields) >= 3 && allAlpha(fields) {
		return QueryTypeDictionary
	}

	return QueryTypeMixed
}

// isModelNumberQuery checks if the query looks like a part/model number or
// an exact-phrase lookup.
func (p *PatternClassifier) isModelNumberQuery(query string) bool {
	if modelNumberPattern.MatchString(query) {
		return true
	}
	if quotedPattern.MatchString(query) {
		return true
	}
	if !strings.Contains(query, " ") {
		for _, tok := range strings.FieldsFunc(query, func(r rune) bool { return r == '-' || r == '_' }) {
			if modelNumberPattern.MatchString(tok) {
				return true
			}
		}
	}
	return false
}

// isDictionaryQuery checks if the query matches natural-language patterns.
func (p *PatternClassifier) isDictionaryQuery(query string) bool {
	return naturalLanguagePattern.MatchString(query)
}

func allAlpha(fields []string) bool {
	for _, f := range fields {
		for _, r := range f {
			if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
				return false
			}
		}
	}
	return true
}

// Ensure PatternClassifier implements Classifier.
var _ Classifier = (*PatternClassifier)(nil)
