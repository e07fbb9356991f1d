// Package github is a small client for the GitHub REST API, covering the
// repository lookup and release endpoints the tracker needs.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// Sentinel errors for 404 responses.
var (
	ErrNotFound  = errors.New("repository not found")
	ErrNoRelease = errors.New("no releases")
)

// Repository holds the repository metadata the dashboard displays.
type Repository struct {
	ID          int64  `json:"id"`
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
	Owner       Owner  `json:"owner"`
}

// Owner is the repository owner's public profile subset.
type Owner struct {
	AvatarURL string `json:"avatar_url"`
}

// Release is one published release.
type Release struct {
	Name        string    `json:"name"`
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// Client provides access to the GitHub REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
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

// WithToken sets a bearer token for authenticated rate limits.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new GitHub API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRepository retrieves repository metadata by owner and name.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, name)

	var repo Repository
	if err := c.get(ctx, url, &repo, ErrNotFound); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetLatestRelease retrieves the newest published release for a repository.
// Returns ErrNoRelease when the repository has no releases.
func (c *Client) GetLatestRelease(ctx context.Context, owner, name string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, name)

	var release Release
	if err := c.get(ctx, url, &release, ErrNoRelease); err != nil {
		return nil, err
	}
	return &release, nil
}

func (c *Client) get(ctx context.Context, url string, v any, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
