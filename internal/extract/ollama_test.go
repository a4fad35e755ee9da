package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaKeywordGeneratorParsesCommaSeparatedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(keywordGenerateResponse{Response: "LDO, low dropout, linear regulator"})
	}))
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	cfg.RequestsPerSecond = 1000
	g := NewOllamaKeywordGenerator(cfg)

	keywords, err := g.Generate(context.Background(), "LDO regulator")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(keywords) != 3 {
		t.Fatalf("expected 3 keywords, got %d (%v)", len(keywords), keywords)
	}
	if keywords[0] != "LDO" {
		t.Errorf("expected first keyword LDO, got %s", keywords[0])
	}
}

func TestOllamaKeywordGeneratorEmptyTextShortCircuits(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(keywordGenerateResponse{Response: "x"})
	}))
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	g := NewOllamaKeywordGenerator(cfg)

	keywords, err := g.Generate(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if keywords != nil {
		t.Errorf("expected nil keywords for blank input, got %v", keywords)
	}
	if called {
		t.Error("expected no HTTP call for blank input")
	}
}

func TestOllamaKeywordGeneratorReturnsErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	cfg.RequestsPerSecond = 1000
	g := NewOllamaKeywordGenerator(cfg)

	if _, err := g.Generate(context.Background(), "some text"); err == nil {
		t.Fatal("expected error from failing server")
	}
}

func TestParseKeywordsHandlesWhitespaceAndEmptySegments(t *testing.T) {
	kw := parseKeywords(" alpha ,, beta ,   ")
	if len(kw) != 2 || kw[0] != "alpha" || kw[1] != "beta" {
		t.Errorf("unexpected parse result: %v", kw)
	}
}

func TestParseKeywordsEmptyResponse(t *testing.T) {
	if kw := parseKeywords("   "); kw != nil {
		t.Errorf("expected nil for blank response, got %v", kw)
	}
}
