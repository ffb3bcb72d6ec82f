package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client is an OpenAI-compatible embeddings client. It also accepts the
// single-vector response shape served by Ollama.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error

	mu        sync.RWMutex
	dimension int
}

type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Timeout           time.Duration
	BatchSize         int
	RequestsPerSecond float64
	// Dimension is the expected vector size; zero learns it from the first response.
	Dimension  int
	HTTPClient *http.Client
}

// NewClient creates an embeddings client for an OpenAI-compatible endpoint.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     key,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		client:     hc,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: 5,
		sleep:      sleepCtx,
		dimension:  cfg.Dimension,
	}, nil
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Embed embeds texts in batches and returns vectors in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

type embedRequest struct {
	Input  any    `json:"input"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Embedding []float32 `json:"embedding"`
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	body := embedRequest{Input: batch, Model: c.model}
	if len(batch) == 1 {
		body.Input = batch[0]
		body.Prompt = batch[0]
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode embeddings request: %w", err)
	}
	url := c.baseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt-1, lastErr)); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		payload, err := c.post(ctx, url, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var se *statusError
			if errors.As(err, &se) && !se.retryable() {
				return nil, err
			}
			lastErr = err
			continue
		}
		return c.decode(payload, len(batch))
	}
	return nil, fmt.Errorf("openai embeddings failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// statusError is a non-2xx response. 429 and 5xx are retried.
type statusError struct {
	code       int
	status     string
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	if e.body == "" {
		return "openai embeddings failed: " + e.status
	}
	return fmt.Sprintf("openai embeddings failed: %s: %s", e.status, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (c *Client) post(ctx context.Context, url string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		se := &statusError{code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(payload))}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			se.retryAfter = time.Duration(secs) * time.Second
		}
		return nil, se
	}
	return payload, nil
}

func (c *Client) decode(payload []byte, want int) ([][]float32, error) {
	var out embedResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	var vecs [][]float32
	switch {
	case len(out.Data) > 0:
		sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
		for _, d := range out.Data {
			vecs = append(vecs, d.Embedding)
		}
	case len(out.Embedding) > 0:
		vecs = [][]float32{out.Embedding}
	}
	if len(vecs) != want {
		return nil, fmt.Errorf("embeddings response has %d vectors, want %d", len(vecs), want)
	}
	for _, v := range vecs {
		if err := c.checkDimension(len(v)); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (c *Client) checkDimension(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == 0 {
		return errors.New("empty embedding returned")
	}
	if c.dimension == 0 {
		c.dimension = n
		return nil
	}
	if n != c.dimension {
		return fmt.Errorf("embedding dimension %d, want %d", n, c.dimension)
	}
	return nil
}

func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	var se *statusError
	if errors.As(lastErr, &se) && se.retryAfter > 0 {
		return se.retryAfter
	}
	return retryDelay(attempt)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
