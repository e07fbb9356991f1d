// Package videos maintains video search tags and runs AI-curated YouTube
// searches. Unlike news curation, search extraction is strict: the caller
// must be able to tell unusable AI output apart from zero matches.
package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"devpulse/extract"
	"devpulse/gemini"
	"devpulse/storage"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrInvalidTag   = errors.New("invalid tag name")
	ErrDuplicateTag = errors.New("tag already tracked")
	ErrTagNotFound  = errors.New("tag not tracked")
)

// Tag is one tracked search tag.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Video is one curated search result.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
	URL          string    `json:"url"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
}

// Generator produces text from a prompt.
type Generator interface {
	GenerateText(ctx context.Context, model, prompt string, opts gemini.GenerateOptions) (string, error)
}

// Store persists the tag collection.
type Store interface {
	Load(ctx context.Context, key string, v any) error
	Save(ctx context.Context, key string, v any) error
}

// Curator owns the tag set and performs searches.
type Curator struct {
	ai    Generator
	store Store
	model string

	mu   sync.Mutex
	tags []Tag
}

// Option configures a Curator.
type Option func(*Curator)

// WithModel sets the model used for search prompts.
func WithModel(model string) Option {
	return func(c *Curator) {
		c.model = model
	}
}

// New creates a Curator, loading the persisted tag collection.
func New(ctx context.Context, ai Generator, store Store, opts ...Option) (*Curator, error) {
	c := &Curator{
		ai:    ai,
		store: store,
		model: "gemini-2.0-flash",
	}
	for _, opt := range opts {
		opt(c)
	}

	err := store.Load(ctx, storage.KeyVideoTags, &c.tags)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load video tags: %w", err)
	}
	return c, nil
}

// ListTags returns a copy of the tracked tags.
func (c *Curator) ListTags() []Tag {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Tag, len(c.tags))
	copy(out, c.tags)
	return out
}

// AddTag tracks a new search tag. Names are normalized and uniqueness is
// case-insensitive.
func (c *Curator) AddTag(ctx context.Context, name string) (*Tag, error) {
	normalized := extract.NormalizeTag(name)
	if normalized == "" {
		return nil, ErrInvalidTag
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.tags {
		if strings.EqualFold(t.Name, normalized) {
			return nil, ErrDuplicateTag
		}
	}

	tag := Tag{ID: uuid.NewString(), Name: normalized}
	c.tags = append(c.tags, tag)
	c.persistLocked(ctx)
	return &tag, nil
}

// RemoveTag stops tracking a tag.
func (c *Curator) RemoveTag(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.tags {
		if t.ID == id {
			c.tags = append(c.tags[:i], c.tags[i+1:]...)
			c.persistLocked(ctx)
			return nil
		}
	}
	return ErrTagNotFound
}

// Search asks the model for recent YouTube videos matching a tag. Unusable
// AI output is a distinct error, never an empty result. The thumbnail URL is
// always derived from the video id, never taken from the response.
func (c *Curator) Search(ctx context.Context, tagName string) ([]Video, error) {
	prompt := buildSearchPrompt(tagName)

	text, err := c.ai.GenerateText(ctx, c.model, prompt, gemini.GenerateOptions{WebSearch: true})
	if err != nil {
		return nil, fmt.Errorf("video search for %q: %w", tagName, err)
	}

	videos, err := extract.Array(text, mapVideo)
	if err != nil {
		return nil, fmt.Errorf("video search for %q returned unusable output: %w", tagName, err)
	}
	return videos, nil
}

func mapVideo(raw json.RawMessage) (Video, error) {
	var el struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
		PublishedAt  string `json:"publishedAt"`
		URL          string `json:"url"`
		Description  string `json:"description"`
	}
	if err := json.Unmarshal(raw, &el); err != nil {
		return Video{}, err
	}
	if el.ID == "" || el.Title == "" {
		return Video{}, fmt.Errorf("video missing id or title")
	}

	publishedAt, err := time.Parse(time.RFC3339, el.PublishedAt)
	if err != nil {
		slog.Warn("unparseable video publish time", "id", el.ID, "value", el.PublishedAt)
	}

	url := el.URL
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + el.ID
	}

	return Video{
		ID:           el.ID,
		Title:        el.Title,
		ChannelTitle: el.ChannelTitle,
		PublishedAt:  publishedAt,
		URL:          url,
		Description:  el.Description,
		ThumbnailURL: ThumbnailURL(el.ID),
	}, nil
}

// ThumbnailURL derives the deterministic thumbnail location for a video id.
func ThumbnailURL(id string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", id)
}

func buildSearchPrompt(tagName string) string {
	return fmt.Sprintf(`Search YouTube for recent, high-quality videos about "%s".

Respond with only a JSON array, newest first, in this exact format:
[{"id": "video id", "title": "Video title", "channelTitle": "Channel name", "publishedAt": "2024-01-01T00:00:00Z", "url": "https://www.youtube.com/watch?v=...", "description": "Short description"}]`, tagName)
}

func (c *Curator) persistLocked(ctx context.Context) {
	if err := c.store.Save(ctx, storage.KeyVideoTags, c.tags); err != nil {
		slog.Warn("failed to persist video tags", "error", err)
	}
}
