// Package news maintains tracked news sources and accumulates AI-curated
// articles per source. Articles are ephemeral; only the sources persist.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"devpulse/extract"
	"devpulse/gemini"
	"devpulse/storage"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrInvalidSource   = errors.New("invalid source URL")
	ErrDuplicateSource = errors.New("news source already tracked")
	ErrSourceNotFound  = errors.New("news source not tracked")
)

// Source is one tracked news origin.
type Source struct {
	ID     string   `json:"id"`
	Origin string   `json:"origin"`
	Tags   []string `json:"tags,omitempty"`
}

// Article is one curated news item. Never persisted.
type Article struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Link    string `json:"link"`
}

// Generator produces text from a prompt.
type Generator interface {
	GenerateText(ctx context.Context, model, prompt string, opts gemini.GenerateOptions) (string, error)
}

// Scraper extracts readable content from a URL, used to ground prompts.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// Store persists the source collection.
type Store interface {
	Load(ctx context.Context, key string, v any) error
	Save(ctx context.Context, key string, v any) error
}

// Aggregator owns the source set and the per-source article accumulation.
type Aggregator struct {
	ai      Generator
	store   Store
	scraper Scraper
	model   string

	mu       sync.Mutex
	sources  []Source
	articles map[string][]Article
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithModel sets the model used for curation prompts.
func WithModel(model string) Option {
	return func(a *Aggregator) {
		a.model = model
	}
}

// WithScraper enables scraping the source page as prompt grounding.
func WithScraper(s Scraper) Option {
	return func(a *Aggregator) {
		a.scraper = s
	}
}

// New creates an Aggregator, loading the persisted source collection.
func New(ctx context.Context, ai Generator, store Store, opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		ai:       ai,
		store:    store,
		model:    "gemini-2.0-flash",
		articles: make(map[string][]Article),
	}
	for _, opt := range opts {
		opt(a)
	}

	err := store.Load(ctx, storage.KeyNewsSources, &a.sources)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load news sources: %w", err)
	}
	return a, nil
}

// CanonicalOrigin reduces a URL to its scheme and host, the identity under
// which sources are deduplicated. A missing scheme defaults to https.
func CanonicalOrigin(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidSource
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", ErrInvalidSource
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidSource
	}
	return u.Scheme + "://" + strings.ToLower(u.Host), nil
}

// ListSources returns a copy of the tracked sources.
func (a *Aggregator) ListSources() []Source {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Source, len(a.sources))
	copy(out, a.sources)
	return out
}

// AddSource validates and tracks a new source. Duplicate canonical origins
// are rejected before any network call. Topic tags are suggested by the
// model on a best-effort basis.
func (a *Aggregator) AddSource(ctx context.Context, rawURL string) (*Source, error) {
	origin, err := CanonicalOrigin(rawURL)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	for _, s := range a.sources {
		if s.Origin == origin {
			a.mu.Unlock()
			return nil, ErrDuplicateSource
		}
	}
	a.mu.Unlock()

	source := Source{
		ID:     uuid.NewString(),
		Origin: origin,
		Tags:   a.suggestTags(ctx, origin),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.sources {
		if s.Origin == origin {
			return nil, ErrDuplicateSource
		}
	}
	a.sources = append(a.sources, source)
	a.persistLocked(ctx)
	return &source, nil
}

// RemoveSource stops tracking a source and drops its accumulated articles.
func (a *Aggregator) RemoveSource(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, s := range a.sources {
		if s.ID == id {
			a.sources = append(a.sources[:i], a.sources[i+1:]...)
			delete(a.articles, id)
			a.persistLocked(ctx)
			return nil
		}
	}
	return ErrSourceNotFound
}

// Articles returns the accumulated articles for a source, newest first.
func (a *Aggregator) Articles(id string) []Article {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Article, len(a.articles[id]))
	copy(out, a.articles[id])
	return out
}

// Fetch asks the model for recent articles from a source and merges them
// into the accumulated list, deduplicated by link. A failed fetch
// contributes zero new articles and never clears what was accumulated; it
// does initialize an empty list the first time a source is fetched.
func (a *Aggregator) Fetch(ctx context.Context, id string) ([]Article, error) {
	a.mu.Lock()
	var source *Source
	for i := range a.sources {
		if a.sources[i].ID == id {
			source = &a.sources[i]
			break
		}
	}
	a.mu.Unlock()

	if source == nil {
		return nil, ErrSourceNotFound
	}

	batch := a.fetchArticles(ctx, *source)

	a.mu.Lock()
	defer a.mu.Unlock()

	known := make(map[string]bool, len(a.articles[id]))
	for _, art := range a.articles[id] {
		known[art.Link] = true
	}

	var fresh []Article
	for _, art := range batch {
		if !known[art.Link] {
			known[art.Link] = true
			fresh = append(fresh, art)
		}
	}

	a.articles[id] = append(fresh, a.articles[id]...)

	out := make([]Article, len(a.articles[id]))
	copy(out, a.articles[id])
	return out, nil
}

func (a *Aggregator) fetchArticles(ctx context.Context, source Source) []Article {
	prompt := buildArticlePrompt(source)

	if a.scraper != nil {
		content, err := a.scraper.Scrape(ctx, source.Origin)
		if err != nil {
			slog.Warn("source page scrape failed", "origin", source.Origin, "error", err)
		} else if content != "" {
			prompt += "\n\nCurrent front page content of the site, for reference:\n" + content
		}
	}

	text, err := a.ai.GenerateText(ctx, a.model, prompt, gemini.GenerateOptions{WebSearch: true})
	if err != nil {
		slog.Warn("news fetch failed", "origin", source.Origin, "error", err)
		return nil
	}

	return extract.ArrayLenient(text, func(raw json.RawMessage) (Article, error) {
		var art Article
		if err := json.Unmarshal(raw, &art); err != nil {
			return Article{}, err
		}
		if art.Title == "" || art.Link == "" {
			return Article{}, fmt.Errorf("article missing title or link")
		}
		return art, nil
	})
}

func buildArticlePrompt(source Source) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Find the most recent notable articles published on %s", source.Origin)
	if len(source.Tags) > 0 {
		fmt.Fprintf(&sb, " covering these topics: %s", strings.Join(source.Tags, ", "))
	}
	sb.WriteString(". Summarize each in one or two sentences.\n\n")
	sb.WriteString(`Respond with only a JSON array, newest first, in this exact format:
[{"title": "Article title", "summary": "Short summary", "link": "https://..."}]`)
	return sb.String()
}

func (a *Aggregator) suggestTags(ctx context.Context, origin string) []string {
	prompt := fmt.Sprintf(`What topics does the site %s cover? Respond with only a JSON array of 3-5 short topic tags, like ["Tag1", "Tag2"].`, origin)

	text, err := a.ai.GenerateText(ctx, a.model, prompt, gemini.GenerateOptions{})
	if err != nil {
		slog.Warn("tag suggestion failed", "origin", origin, "error", err)
		return nil
	}

	return extract.ArrayLenient(text, func(raw json.RawMessage) (string, error) {
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil {
			return "", err
		}
		if strings.TrimSpace(tag) == "" {
			return "", fmt.Errorf("empty tag")
		}
		return extract.NormalizeTag(tag), nil
	})
}

func (a *Aggregator) persistLocked(ctx context.Context) {
	if err := a.store.Save(ctx, storage.KeyNewsSources, a.sources); err != nil {
		slog.Warn("failed to persist news sources", "error", err)
	}
}
