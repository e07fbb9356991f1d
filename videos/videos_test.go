package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"devpulse/gemini"
	"devpulse/storage"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Load(_ context.Context, key string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return storage.ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

func (m *memStore) Save(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) GenerateText(context.Context, string, string, gemini.GenerateOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestCurator(t *testing.T, ai Generator) *Curator {
	t.Helper()
	c, err := New(context.Background(), ai, newMemStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestAddTagNormalizes(t *testing.T) {
	c := newTestCurator(t, &fakeGenerator{})

	tag, err := c.AddTag(context.Background(), "RUST")
	if err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}
	if tag.Name != "Rust" {
		t.Errorf("Name = %q, want Rust", tag.Name)
	}
	if tag.ID == "" {
		t.Error("ID is empty")
	}
}

func TestAddTagCaseInsensitiveDuplicate(t *testing.T) {
	c := newTestCurator(t, &fakeGenerator{})
	ctx := context.Background()

	// "Rust", then "rust", then "Systems": the second insertion is a
	// duplicate, the final set is exactly {Rust, Systems}.
	if _, err := c.AddTag(ctx, "Rust"); err != nil {
		t.Fatalf("AddTag(Rust) failed: %v", err)
	}
	if _, err := c.AddTag(ctx, "rust"); !errors.Is(err, ErrDuplicateTag) {
		t.Errorf("AddTag(rust) = %v, want ErrDuplicateTag", err)
	}
	if _, err := c.AddTag(ctx, "Systems"); err != nil {
		t.Fatalf("AddTag(Systems) failed: %v", err)
	}

	tags := c.ListTags()
	if len(tags) != 2 || tags[0].Name != "Rust" || tags[1].Name != "Systems" {
		t.Errorf("ListTags = %+v, want [Rust Systems]", tags)
	}
}

func TestAddTagEmpty(t *testing.T) {
	c := newTestCurator(t, &fakeGenerator{})
	if _, err := c.AddTag(context.Background(), "   "); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("AddTag err = %v, want ErrInvalidTag", err)
	}
}

func TestRemoveTag(t *testing.T) {
	c := newTestCurator(t, &fakeGenerator{})
	ctx := context.Background()

	tag, err := c.AddTag(ctx, "Go")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveTag(ctx, tag.ID); err != nil {
		t.Fatalf("RemoveTag failed: %v", err)
	}
	if len(c.ListTags()) != 0 {
		t.Error("tag still listed after removal")
	}
	if err := c.RemoveTag(ctx, tag.ID); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("RemoveTag again = %v, want ErrTagNotFound", err)
	}
}

func TestSearchDerivesThumbnail(t *testing.T) {
	response := "```json\n" + `[{"id":"x1","title":"T","channelTitle":"C","publishedAt":"2024-01-01T00:00:00Z","url":"u","description":"d","thumbnailUrl":"https://attacker.example/fake.jpg"}]` + "\n```"
	c := newTestCurator(t, &fakeGenerator{response: response})

	videos, err := c.Search(context.Background(), "Rust")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("got %d videos, want 1", len(videos))
	}

	v := videos[0]
	if v.ThumbnailURL != "https://i.ytimg.com/vi/x1/hqdefault.jpg" {
		t.Errorf("ThumbnailURL = %q, want derived i.ytimg.com URL", v.ThumbnailURL)
	}
	if v.Title != "T" || v.ChannelTitle != "C" || v.URL != "u" || v.Description != "d" {
		t.Errorf("video = %+v", v)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !v.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", v.PublishedAt, want)
	}
}

func TestSearchUnusableOutputIsError(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no array", "I'm sorry, I couldn't find any videos."},
		{"broken json", "[{broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCurator(t, &fakeGenerator{response: tt.response})
			if _, err := c.Search(context.Background(), "Rust"); err == nil {
				t.Fatal("expected error for unusable AI output")
			}
		})
	}
}

func TestSearchEmptyArrayIsNotAnError(t *testing.T) {
	c := newTestCurator(t, &fakeGenerator{response: "[]"})

	videos, err := c.Search(context.Background(), "Rust")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(videos) != 0 {
		t.Errorf("videos = %+v, want zero matches", videos)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	c := newTestCurator(t, &fakeGenerator{err: fmt.Errorf("provider down")})
	if _, err := c.Search(context.Background(), "Rust"); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}

func TestSearchMissingVideoURLDerived(t *testing.T) {
	c := newTestCurator(t, &fakeGenerator{response: `[{"id":"abc","title":"T"}]`})

	videos, err := c.Search(context.Background(), "Go")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if videos[0].URL != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("URL = %q, want derived watch URL", videos[0].URL)
	}
}

func TestTagsPersist(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	c, err := New(ctx, &fakeGenerator{}, store)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddTag(ctx, "Go"); err != nil {
		t.Fatal(err)
	}

	c2, err := New(ctx, &fakeGenerator{}, store)
	if err != nil {
		t.Fatal(err)
	}
	tags := c2.ListTags()
	if len(tags) != 1 || tags[0].Name != "Go" {
		t.Errorf("reloaded tags = %+v", tags)
	}
}
