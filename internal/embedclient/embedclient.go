// Package embedclient implements the core module's client side of the
// external embedding-service interface (spec §6): `embed(text) -> vector`,
// `is_available()`, `dim()`. The service lives out-of-process; this client
// talks to it over HTTP the same way the teacher's OllamaEmbedder talks to
// its local model server, minus the in-process model hosting the teacher
// also supports.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codenav/codenavd/internal/errors"
)

// DefaultTimeout bounds a single embed request.
const DefaultTimeout = 30 * time.Second

// DefaultAvailabilityTTL caches a reachability probe for this long before
// re-checking, so a degraded service doesn't add latency to every file.
const DefaultAvailabilityTTL = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the embedding service's HTTP base, e.g. "http://127.0.0.1:8123".
	BaseURL string
	// Dimensions is the service's advertised embedding dimension.
	Dimensions int
	// Timeout bounds a single embed request.
	Timeout time.Duration
	// AvailabilityTTL caches IsAvailable results.
	AvailabilityTTL time.Duration
}

// DefaultConfig returns sane defaults given a base URL and dimension.
func DefaultConfig(baseURL string, dimensions int) Config {
	return Config{
		BaseURL:         baseURL,
		Dimensions:      dimensions,
		Timeout:         DefaultTimeout,
		AvailabilityTTL: DefaultAvailabilityTTL,
	}
}

// Client talks to an external embedding service over HTTP.
type Client struct {
	cfg    Config
	client *http.Client

	mu            sync.Mutex
	lastCheck     time.Time
	lastAvailable bool
}

// New creates an embedding-service client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = DefaultAvailabilityTTL
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Dim returns the service's configured embedding dimension.
func (c *Client) Dim() int {
	return c.cfg.Dimensions
}

// IsAvailable probes the service's health endpoint, caching the result for
// cfg.AvailabilityTTL so callers can check cheaply per file.
func (c *Client) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastCheck) < c.cfg.AvailabilityTTL {
		return c.lastAvailable
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		c.lastAvailable = false
		c.lastCheck = time.Now()
		return false
	}

	resp, err := c.client.Do(req)
	c.lastCheck = time.Now()
	if err != nil {
		c.lastAvailable = false
		return false
	}
	defer resp.Body.Close()

	c.lastAvailable = resp.StatusCode == http.StatusOK
	return c.lastAvailable
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests a single text's embedding vector. An empty/whitespace-only
// text short-circuits to a zero vector of the configured dimension, matching
// the teacher's empty-input handling in its embedder implementations.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.cfg.Dimensions), nil
	}

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, errors.NewEmbeddingFailure(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewEmbeddingFailure(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewEmbeddingFailure(fmt.Errorf("call embedding service: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.NewEmbeddingFailure(fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(payload)))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.NewEmbeddingFailure(fmt.Errorf("decode response: %w", err))
	}
	if c.cfg.Dimensions > 0 && len(decoded.Embedding) != c.cfg.Dimensions {
		return nil, errors.NewEmbeddingFailure(fmt.Errorf("expected %d dimensions, got %d", c.cfg.Dimensions, len(decoded.Embedding)))
	}

	return decoded.Embedding, nil
}
