package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	docerrors "github.com/kestrel-docs/docindex/internal/errors"
)

// Default Ollama keyword-generation configuration.
const (
	DefaultKeywordModel = "llama3.2:1b"
	DefaultKeywordHost  = "http://localhost:11434"
	DefaultKeywordRPS   = 2.0
)

// OllamaConfig configures OllamaKeywordGenerator.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration

	// RequestsPerSecond caps outbound calls to the local Ollama instance so
	// a wide worker pool doesn't overwhelm a single server.
	RequestsPerSecond float64
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:              DefaultKeywordHost,
		Model:             DefaultKeywordModel,
		Timeout:           5 * time.Second,
		RequestsPerSecond: DefaultKeywordRPS,
	}
}

// OllamaKeywordGenerator asks a local Ollama model to surface additional
// keywords for a chunk's text, using the same client-pooling and
// per-request context deadline discipline as the rest of the Ollama
// clients in this module. A circuit breaker guards against cascading
// failure when Ollama is unreachable; keyword augmentation failing is
// non-fatal to indexing, so callers should treat a Generate error as
// "skip augmentation," not as a hard failure.
type OllamaKeywordGenerator struct {
	client  *http.Client
	config  OllamaConfig
	limiter *rate.Limiter
	breaker *docerrors.CircuitBreaker
}

// NewOllamaKeywordGenerator builds a generator against the given config.
func NewOllamaKeywordGenerator(cfg OllamaConfig) *OllamaKeywordGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultKeywordHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultKeywordModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultKeywordRPS
	}
	return &OllamaKeywordGenerator{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: docerrors.NewCircuitBreaker("ollama-keywords"),
	}
}

type keywordGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type keywordGenerateResponse struct {
	Response string `json:"response"`
}

const keywordPrompt = `List up to 8 additional search keywords for the following technical document excerpt — synonyms, abbreviations, or related terms a reader might search for instead of the exact words used. Respond with a comma-separated list only, no other text.

Excerpt:
%s

Keywords:`

// Generate asks Ollama for supplementary keywords. Returns a non-nil error
// only for caller logging; callers proceed with unaugmented text on error.
func (g *OllamaKeywordGenerator) Generate(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var keywords []string
	err := g.breaker.Call(func() error {
		resp, callErr := g.call(ctx, text)
		if callErr != nil {
			return callErr
		}
		keywords = parseKeywords(resp)
		return nil
	})
	if err != nil {
		return nil, docerrors.UpstreamError("keyword generation failed", err)
	}
	return keywords, nil
}

func (g *OllamaKeywordGenerator) call(ctx context.Context, text string) (string, error) {
	reqBody := keywordGenerateRequest{
		Model:  g.config.Model,
		Prompt: fmt.Sprintf(keywordPrompt, text),
		Stream: false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := g.config.Host + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result keywordGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Response, nil
}

func parseKeywords(response string) []string {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil
	}
	parts := strings.Split(response, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		k := strings.TrimSpace(p)
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

var _ KeywordGenerator = (*OllamaKeywordGenerator)(nil)
