// Package gemini is a minimal REST client for the Gemini generative API.
// It exposes the raw response body and raw stream frames so the HTTP relay
// can forward provider output without re-encoding it.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client calls the Gemini API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a new Gemini API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateRaw sends a generateContent request and returns the provider's
// response body unmodified.
func (c *Client) GenerateRaw(ctx context.Context, model string, req *Request) ([]byte, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Generate sends a generateContent request and decodes the response.
func (c *Client) Generate(ctx context.Context, model string, req *Request) (*Response, error) {
	raw, err := c.GenerateRaw(ctx, model, req)
	if err != nil {
		return nil, err
	}

	var geminiResp Response
	if err := json.Unmarshal(raw, &geminiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &geminiResp, nil
}

// GenerateText sends a single-prompt request and returns the response text.
func (c *Client) GenerateText(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	resp, err := c.Generate(ctx, model, NewRequest(prompt, opts))
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", model)
	}
	return text, nil
}

// Stream sends a streamGenerateContent request and returns a reader over the
// provider's server-sent-event frames. The caller must Close the reader.
func (c *Client) Stream(ctx context.Context, model string, req *Request) (*StreamReader, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return &StreamReader{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// StreamReader yields the payload of each `data: ` frame in a server-sent
// event stream. The stream has no terminal sentinel; it simply ends when the
// provider closes the connection.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Next returns the next frame payload, or io.EOF when the stream ends.
func (r *StreamReader) Next() ([]byte, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			return []byte(payload), nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, io.EOF
}

// Close releases the underlying response body.
func (r *StreamReader) Close() error {
	return r.body.Close()
}
