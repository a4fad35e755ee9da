package search

import (
	"context"
	"testing"
)

func TestPatternClassifierModelNumberQueries(t *testing.T) {
	p := NewPatternClassifier()
	cases := []string{"LM317", "STM32F407", "ERR_4042", `"exact phrase"`}
	for _, q := range cases {
		qt, weights, err := p.Classify(context.Background(), q)
		if err != nil {
			t.Fatalf("Classify(%q): %v", q, err)
		}
		if qt != QueryTypeModelNumber {
			t.Errorf("Classify(%q) = %s, want %s", q, qt, QueryTypeModelNumber)
		}
		if weights != WeightsForQueryType(QueryTypeModelNumber) {
			t.Errorf("Classify(%q) weights = %+v, want %+v", q, weights, WeightsForQueryType(QueryTypeModelNumber))
		}
	}
}

func TestPatternClassifierDictionaryQueries(t *testing.T) {
	p := NewPatternClassifier()
	cases := []string{
		"how does thermal throttling work",
		"explain the power sequencing requirements",
		"find documents about battery safety",
	}
	for _, q := range cases {
		qt, _, err := p.Classify(context.Background(), q)
		if err != nil {
			t.Fatalf("Classify(%q): %v", q, err)
		}
		if qt != QueryTypeDictionary {
			t.Errorf("Classify(%q) = %s, want %s", q, qt, QueryTypeDictionary)
		}
	}
}

func TestPatternClassifierMixedForAmbiguousShortQuery(t *testing.T) {
	p := NewPatternClassifier()
	qt, _, err := p.Classify(context.Background(), "voltage regulator")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if qt != QueryTypeMixed {
		t.Errorf("Classify() = %s, want %s", qt, QueryTypeMixed)
	}
}

func TestPatternClassifierEmptyQueryReturnsMixed(t *testing.T) {
	p := NewPatternClassifier()
	qt, _, err := p.Classify(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if qt != QueryTypeMixed {
		t.Errorf("Classify() = %s, want %s", qt, QueryTypeMixed)
	}
}

func TestWeightsForQueryTypeMapping(t *testing.T) {
	if w := WeightsForQueryType(QueryTypeModelNumber); w != (Weights{Vector: 0.3, Keyword: 0.7}) {
		t.Errorf("model_number weights = %+v", w)
	}
	if w := WeightsForQueryType(QueryTypeDictionary); w != (Weights{Vector: 0.8, Keyword: 0.2}) {
		t.Errorf("dictionary weights = %+v", w)
	}
	if w := WeightsForQueryType(QueryTypeMixed); w != (Weights{Vector: 0.5, Keyword: 0.5}) {
		t.Errorf("mixed weights = %+v", w)
	}
}
