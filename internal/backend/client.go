// Package backend is the HTTP client for the external generation engine.
//
// The engine performs the actual AI generation, GraphRAG storage, and RAG
// indexing; this package only forwards requests and reshapes responses.
// The caller's bearer token is threaded through unchanged. When the engine
// is unreachable, callers may receive a stub response instead of an error:
// the editor degrades to manual writing rather than failing the request.
// When no engine origin is configured at all, text generation can fall back
// to a direct Anthropic call.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/mod/semver"
)

// MinBackendVersion is the oldest engine release this server understands.
const MinBackendVersion = "v0.4.0"

// Client talks to the generation engine.
type Client struct {
	origin    string
	httpc     *http.Client
	anthropic *anthropicProvider
	logger    *log.Logger
}

// Config holds client configuration.
type Config struct {
	// Origin is the engine base URL (BACKEND_ORIGIN). Empty disables
	// proxying; generation then uses the Anthropic fallback if configured.
	Origin string

	// AnthropicAPIKey enables the direct generation fallback.
	AnthropicAPIKey string

	// Timeout for engine calls (default: 30s).
	Timeout time.Duration

	// Logger for client activity (default: stderr logger).
	Logger *log.Logger
}

// New creates a backend client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	var provider *anthropicProvider
	if cfg.AnthropicAPIKey != "" {
		provider = newAnthropicProvider(cfg.AnthropicAPIKey)
	}

	return &Client{
		origin:    cfg.Origin,
		httpc:     &http.Client{Timeout: cfg.Timeout},
		anthropic: provider,
		logger:    cfg.Logger,
	}
}

// GenerateRequest asks the engine to produce text.
type GenerateRequest struct {
	ProjectID    string  `json:"project_id,omitempty"`
	Role         string  `json:"role,omitempty"`
	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Prompt       string  `json:"prompt"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// GenerateResponse is the engine's (or the fallback's) generation result.
type GenerateResponse struct {
	Text       string `json:"text"`
	Model      string `json:"model,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`

	// Stubbed is true when the engine was unreachable and a placeholder
	// was substituted.
	Stubbed bool `json:"stubbed,omitempty"`
}

// SearchRequest is a RAG similarity search over the project's indexed text.
type SearchRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
}

// SearchResult is one RAG hit.
type SearchResult struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SearchResponse holds ranked RAG hits.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Stubbed bool           `json:"stubbed,omitempty"`
}

// ConsistencyRequest asks the engine to score text against a stored
// character profile.
type ConsistencyRequest struct {
	ProjectID   string `json:"project_id"`
	CharacterID string `json:"character_id"`
	Text        string `json:"text"`
}

// ConsistencyResponse is the engine's character-consistency verdict.
type ConsistencyResponse struct {
	Consistent bool     `json:"consistent"`
	Score      float64  `json:"score"`
	Notes      []string `json:"notes,omitempty"`
	Stubbed    bool     `json:"stubbed,omitempty"`
}

// HealthStatus describes the engine's reported health.
type HealthStatus struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Compatible bool   `json:"compatible"`
}

// Generate produces text for the request. Resolution order:
//  1. the configured engine, with the caller's token
//  2. the direct Anthropic provider, when no origin is configured
//  3. a stub response, when the engine call failed
func (c *Client) Generate(ctx context.Context, token string, req *GenerateRequest) (*GenerateResponse, error) {
	if c.origin == "" {
		if c.anthropic != nil {
			return c.anthropic.generate(ctx, req)
		}
		return stubGenerate(req), nil
	}

	var resp GenerateResponse
	if err := c.post(ctx, token, "/generate", req, &resp); err != nil {
		c.logger.Printf("Generate failed, substituting stub: %v", err)
		return stubGenerate(req), nil
	}
	return &resp, nil
}

// Search runs a RAG similarity search. Engine failures yield an empty
// stubbed result set.
func (c *Client) Search(ctx context.Context, token string, req *SearchRequest) (*SearchResponse, error) {
	if c.origin == "" {
		return &SearchResponse{Results: []SearchResult{}, Stubbed: true}, nil
	}

	var resp SearchResponse
	if err := c.post(ctx, token, "/search", req, &resp); err != nil {
		c.logger.Printf("Search failed, substituting stub: %v", err)
		return &SearchResponse{Results: []SearchResult{}, Stubbed: true}, nil
	}
	if resp.Results == nil {
		resp.Results = []SearchResult{}
	}
	return &resp, nil
}

// CheckConsistency scores text against a character profile. Engine
// failures yield a neutral stubbed verdict.
func (c *Client) CheckConsistency(ctx context.Context, token string, req *ConsistencyRequest) (*ConsistencyResponse, error) {
	if c.origin == "" {
		return &ConsistencyResponse{Consistent: true, Score: 0, Stubbed: true}, nil
	}

	var resp ConsistencyResponse
	if err := c.post(ctx, token, "/character/consistency", req, &resp); err != nil {
		c.logger.Printf("Consistency check failed, substituting stub: %v", err)
		return &ConsistencyResponse{Consistent: true, Score: 0, Stubbed: true}, nil
	}
	return &resp, nil
}

// Health queries the engine's health endpoint and checks its version
// against MinBackendVersion.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	if c.origin == "" {
		return &HealthStatus{Status: "disabled", Compatible: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine unreachable: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return &HealthStatus{Status: fmt.Sprintf("unhealthy (%d)", res.StatusCode)}, nil
	}

	var status HealthStatus
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	status.Compatible = compatibleVersion(status.Version)
	return &status, nil
}

// compatibleVersion reports whether the engine version satisfies
// MinBackendVersion. An unreported version is accepted.
func compatibleVersion(version string) bool {
	if version == "" {
		return true
	}
	v := version
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return false
	}
	return semver.Compare(v, MinBackendVersion) >= 0
}

// post sends a JSON request to an engine endpoint and decodes the reply.
func (c *Client) post(ctx context.Context, token, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("engine returned %d: %s", res.StatusCode, msg)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode engine response: %w", err)
	}
	return nil
}

// stubGenerate builds the placeholder used when no generation path exists.
func stubGenerate(req *GenerateRequest) *GenerateResponse {
	return &GenerateResponse{
		Text:    fmt.Sprintf("[generation unavailable: %s]", firstLine(req.Prompt, 80)),
		Stubbed: true,
	}
}

func firstLine(s string, max int) string {
	for i, r := range s {
		if r == '\n' || i >= max {
			return s[:i]
		}
	}
	return s
}

// Reachable reports whether url answers an HTTP GET at all. Used for the
// optional Neo4j reachability check; the body is ignored.
func Reachable(ctx context.Context, httpc *http.Client, url string) bool {
	if url == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	res, err := httpc.Do(req)
	if err != nil {
		return false
	}
	_ = res.Body.Close()
	return true
}
