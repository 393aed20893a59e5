// Package llm is the HTTP client for a running llama-server: a cheap health
// probe plus blocking and streaming generation over the /completion endpoint.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHealthTimeout  = 5 * time.Second
	defaultRequestTimeout = 120 * time.Second // tolerate cold model loads
	dataPrefix            = "data: "
)

// completionRequest is the llama-server /completion payload. The field names
// are the server's wire protocol and must not change.
type completionRequest struct {
	Prompt      string  `json:"prompt"`
	NPredict    int     `json:"n_predict"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

// completionResponse carries the only field consumed from a non-streaming
// response; the server sends more, all ignored.
type completionResponse struct {
	Content string `json:"content"`
}

// Client issues requests against a llama-server at a fixed base URL.
// It is safe for concurrent use.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	healthTimeout  time.Duration
	requestTimeout time.Duration
}

// Option tweaks Client construction.
type Option func(*Client)

// WithHealthTimeout overrides the health probe timeout.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthTimeout = d
		}
	}
}

// WithRequestTimeout overrides the generation request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client. The client's Timeout
// should stay zero; deadlines come from per-request contexts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New constructs a Client for the given base URL, e.g. "http://127.0.0.1:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Timeout intentionally 0: all calls carry context deadlines.
		httpClient:     &http.Client{Timeout: 0},
		healthTimeout:  defaultHealthTimeout,
		requestTimeout: defaultRequestTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the server base URL the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// HealthCheck probes GET /health with a short timeout. Every failure mode
// (refused connection, timeout, non-2xx, bad URL) collapses to false; this
// call never returns an error and has no side effects.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Generate performs a blocking completion round-trip and returns the full
// generated text. Failures map to the package error taxonomy: refused
// connections become server-unreachable, deadline hits become
// request-timeout, anything else a generation failure carrying the cause.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.postCompletion(ctx, completionRequest{
		Prompt:      prompt,
		NPredict:    maxTokens,
		Temperature: temperature,
		Stream:      false,
	})
	if err != nil {
		return "", c.mapTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", generationError{cause: fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(b)))}
	}
	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", generationError{cause: fmt.Errorf("decode response: %w", err)}
	}
	return out.Content, nil
}

// GenerateStream performs a streaming completion. Each well-formed "data: "
// frame with a non-empty content field produces exactly one onToken call, in
// arrival order. Malformed frames are skipped silently; leniency here is
// deliberate so a noisy server never aborts a stream mid-way. The stream ends
// when the server closes the connection. A non-nil error from onToken aborts
// the stream and is returned as-is.
func (c *Client) GenerateStream(ctx context.Context, prompt string, maxTokens int, temperature float64, onToken func(string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.postCompletion(ctx, completionRequest{
		Prompt:      prompt,
		NPredict:    maxTokens,
		Temperature: temperature,
		Stream:      true,
	})
	if err != nil {
		return c.mapTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return generationError{cause: fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(b)))}
	}

	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			if frag, ok := parseFrame(line); ok && frag != "" {
				if cbErr := onToken(frag); cbErr != nil {
					return cbErr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return c.mapTransportError(ctx.Err())
			}
			return generationError{cause: err}
		}
	}
}

// parseFrame extracts the content field from one SSE-style line. The second
// return is false for anything that is not a well-formed data frame.
func parseFrame(line string) (string, bool) {
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, "data:") {
		return "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(l, "data:"))
	if payload == "" {
		return "", false
	}
	var frame completionResponse
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return "", false
	}
	return frame.Content, true
}

func (c *Client) postCompletion(ctx context.Context, payload completionRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// mapTransportError classifies low-level failures. Connection refusal means
// the server is down; deadline expiry means it is up but slow. Everything
// else is a generic generation failure.
func (c *Client) mapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return requestTimeoutError{}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return requestTimeoutError{}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return serverUnreachableError{baseURL: c.baseURL}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return serverUnreachableError{baseURL: c.baseURL}
	}
	return generationError{cause: err}
}
