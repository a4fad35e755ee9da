package pairs

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
	"github.com/kestrel-docs/docindex/internal/store"
)

// Config configures an OllamaExtractor.
type Config struct {
	Host              string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// DefaultConfig returns sensible defaults. Host, model and request rate
// match the extract package's Ollama defaults since both talk to the same
// local model server; the timeout here is 8s against extract's 5s.
func DefaultConfig() Config {
	return Config{
		Host:              "http://localhost:11434",
		Model:             "llama3.2:1b",
		Timeout:           8 * time.Second,
		RequestsPerSecond: 2.0,
	}
}

// OllamaExtractor asks a local Ollama model to surface (model_name,
// part_number) references from a chunk of text, then parses the reply with
// Parse's tolerant grammar. Implements internal/extract's PairExtractor.
type OllamaExtractor struct {
	client  *http.Client
	config  Config
	limiter *rate.Limiter
	breaker *docerrors.CircuitBreaker
}

// NewOllamaExtractor builds an extractor against the given config.
func NewOllamaExtractor(cfg Config) *OllamaExtractor {
	if cfg.Host == "" {
		cfg.Host = DefaultConfig().Host
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	return &OllamaExtractor{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: docerrors.NewCircuitBreaker("ollama-pairs"),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

const extractionPrompt = `Find every (model name, part number) reference in the following technical document excerpt. A model name is a product or device name; a part number is its associated component or ordering code. Respond with a JSON array of objects, each with "model_name" and "part_number" string fields. If none are found, respond with an empty array.

Excerpt:
%s

JSON:`

// ExtractPairs asks Ollama for pairs and parses the reply. Returns an
// empty, nil-error result when the model found nothing.
func (e *OllamaExtractor) ExtractPairs(ctx context.Context, text string) ([]store.Pair, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var reply string
	err := e.breaker.Call(func() error {
		r, callErr := e.call(ctx, text)
		if callErr != nil {
			return callErr
		}
		reply = r
		return nil
	})
	if err != nil {
		return nil, docerrors.UpstreamError("pair extraction call failed", err)
	}

	pairs, err := Parse(reply)
	if err != nil {
		return nil, docerrors.ExtractionError("pair extraction reply did not parse", err)
	}
	return pairs, nil
}

func (e *OllamaExtractor) call(ctx context.Context, text string) (string, error) {
	reqBody := generateRequest{
		Model:  e.config.Model,
		Prompt: fmt.Sprintf(extractionPrompt, text),
		Stream: false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := e.config.Host + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Response, nil
}
