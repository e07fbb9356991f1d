// Package tracker maintains the set of tracked GitHub repositories and
// polls each one's latest release to decide whether it has a fresh update.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"devpulse/github"
	"devpulse/storage"
)

// freshnessWindow is the lookback used to decide if a release counts as new.
const freshnessWindow = 3 * 24 * time.Hour

// Sentinel errors surfaced to the API layer.
var (
	ErrInvalidRepo   = errors.New("invalid repository identifier")
	ErrDuplicateRepo = errors.New("repository already tracked")
	ErrRepoNotFound  = errors.New("repository not tracked")
)

// Release is the snapshot of a repository's latest release.
type Release struct {
	Name        string    `json:"name"`
	Tag         string    `json:"tag"`
	PublishedAt time.Time `json:"publishedAt"`
	URL         string    `json:"url"`
}

// Repo is one tracked repository.
type Repo struct {
	ID            int64    `json:"id"`
	FullName      string   `json:"fullName"`
	URL           string   `json:"url"`
	Description   string   `json:"description,omitempty"`
	AvatarURL     string   `json:"avatarUrl,omitempty"`
	HasUpdate     bool     `json:"hasUpdate"`
	LatestRelease *Release `json:"latestRelease,omitempty"`
}

// GitHubClient fetches repository metadata and releases.
type GitHubClient interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	GetLatestRelease(ctx context.Context, owner, name string) (*github.Release, error)
}

// Store persists the tracked collection.
type Store interface {
	Load(ctx context.Context, key string, v any) error
	Save(ctx context.Context, key string, v any) error
}

// Tracker owns the tracked repository set. All mutations persist the whole
// collection, and update checks merge atomically with respect to readers.
type Tracker struct {
	gh    GitHubClient
	store Store
	now   func() time.Time

	mu          sync.Mutex
	repos       []Repo
	lastApplied uint64

	inflight   *semaphore.Weighted
	busy       atomic.Bool
	pending    atomic.Bool
	generation atomic.Uint64

	updateHook func([]Repo)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNow sets the clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithUpdateHook registers a callback invoked after a check with the
// repositories that newly gained an update.
func WithUpdateHook(fn func([]Repo)) Option {
	return func(t *Tracker) {
		t.updateHook = fn
	}
}

// New creates a Tracker, loading the persisted collection.
func New(ctx context.Context, gh GitHubClient, store Store, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		gh:       gh,
		store:    store,
		now:      time.Now,
		inflight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(t)
	}

	err := store.Load(ctx, storage.KeyTrackedRepos, &t.repos)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load tracked repositories: %w", err)
	}
	return t, nil
}

// ParseRepoInput extracts owner and name from "owner/repo" or a github.com
// URL. Returns ErrInvalidRepo for anything else.
func ParseRepoInput(input string) (owner, name string, err error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", "", ErrInvalidRepo
	}

	if strings.Contains(s, "://") || strings.HasPrefix(s, "github.com/") {
		u, parseErr := url.Parse(s)
		if parseErr == nil && u.Host == "" && strings.HasPrefix(s, "github.com/") {
			u, parseErr = url.Parse("https://" + s)
		}
		if parseErr != nil {
			return "", "", ErrInvalidRepo
		}
		if u.Host != "github.com" && u.Host != "www.github.com" {
			return "", "", ErrInvalidRepo
		}
		s = strings.Trim(u.Path, "/")
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidRepo
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// List returns a copy of the tracked repositories.
func (t *Tracker) List() []Repo {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Repo, len(t.repos))
	copy(out, t.repos)
	return out
}

// Add validates and tracks a new repository. Duplicates are rejected before
// any network call. The new entry's release state is checked immediately.
func (t *Tracker) Add(ctx context.Context, input string) (*Repo, error) {
	owner, name, err := ParseRepoInput(input)
	if err != nil {
		return nil, err
	}
	fullName := owner + "/" + name

	t.mu.Lock()
	for _, r := range t.repos {
		if strings.EqualFold(r.FullName, fullName) {
			t.mu.Unlock()
			return nil, ErrDuplicateRepo
		}
	}
	t.mu.Unlock()

	meta, err := t.gh.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", fullName, err)
	}

	repo := Repo{
		ID:          meta.ID,
		FullName:    meta.FullName,
		URL:         meta.HTMLURL,
		Description: meta.Description,
		AvatarURL:   meta.Owner.AvatarURL,
	}
	res := t.checkOne(ctx, repo)
	repo.HasUpdate = res.hasUpdate
	repo.LatestRelease = res.release

	t.mu.Lock()
	defer t.mu.Unlock()

	// The set may have changed while the lookup was in flight.
	for _, r := range t.repos {
		if strings.EqualFold(r.FullName, repo.FullName) {
			return nil, ErrDuplicateRepo
		}
	}
	t.repos = append(t.repos, repo)
	t.persistLocked(ctx)
	return &repo, nil
}

// Remove stops tracking a repository.
func (t *Tracker) Remove(ctx context.Context, id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, r := range t.repos {
		if r.ID == id {
			t.repos = append(t.repos[:i], t.repos[i+1:]...)
			t.persistLocked(ctx)
			return nil
		}
	}
	return ErrRepoNotFound
}

// Acknowledge clears a repository's update flag without touching the
// release snapshot.
func (t *Tracker) Acknowledge(ctx context.Context, id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.repos {
		if t.repos[i].ID == id {
			t.repos[i].HasUpdate = false
			t.persistLocked(ctx)
			return nil
		}
	}
	return ErrRepoNotFound
}

// InFlight reports whether a check is currently running.
func (t *Tracker) InFlight() bool {
	return t.busy.Load()
}

// TriggerCheck starts an asynchronous check of all tracked repositories.
// A single slot is enforced: when a check is already running the trigger is
// coalesced into one follow-up run and TriggerCheck returns false without
// blocking.
func (t *Tracker) TriggerCheck(ctx context.Context) bool {
	if !t.inflight.TryAcquire(1) {
		t.pending.Store(true)
		return false
	}

	t.busy.Store(true)
	go func() {
		defer func() {
			t.busy.Store(false)
			t.inflight.Release(1)
		}()
		t.CheckAll(ctx)
		for t.pending.CompareAndSwap(true, false) {
			t.CheckAll(ctx)
		}
	}()
	return true
}

type checkResult struct {
	hasUpdate bool
	release   *Release
}

// CheckAll queries every tracked repository's latest release concurrently,
// waits for all per-item checks, and applies a single merge. Per-item
// failures degrade to "no update" and never fail the batch. A merge applies
// only if no later-started check has already merged.
func (t *Tracker) CheckAll(ctx context.Context) {
	gen := t.generation.Add(1)

	t.mu.Lock()
	snapshot := make([]Repo, len(t.repos))
	copy(snapshot, t.repos)
	t.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}
	slog.Info("checking tracked repositories", "count", len(snapshot))

	results := make(map[int64]checkResult, len(snapshot))
	var (
		wg    sync.WaitGroup
		resMu sync.Mutex
	)
	for _, repo := range snapshot {
		wg.Add(1)
		go func(repo Repo) {
			defer wg.Done()
			res := t.checkOne(ctx, repo)
			resMu.Lock()
			results[repo.ID] = res
			resMu.Unlock()
		}(repo)
	}
	wg.Wait()

	t.applyResults(ctx, gen, results)
}

func (t *Tracker) checkOne(ctx context.Context, repo Repo) checkResult {
	owner, name, err := ParseRepoInput(repo.FullName)
	if err != nil {
		slog.Warn("tracked repository has malformed full name", "full_name", repo.FullName)
		return checkResult{}
	}

	release, err := t.gh.GetLatestRelease(ctx, owner, name)
	if errors.Is(err, github.ErrNoRelease) {
		return checkResult{}
	}
	if err != nil {
		slog.Warn("release check failed", "repo", repo.FullName, "error", err)
		return checkResult{}
	}

	snapshot := &Release{
		Name:        release.Name,
		Tag:         release.TagName,
		PublishedAt: release.PublishedAt,
		URL:         release.HTMLURL,
	}
	return checkResult{
		hasUpdate: t.fresh(release.PublishedAt),
		release:   snapshot,
	}
}

// fresh reports whether a publish time falls inside the rolling freshness
// window, exclusive at the boundary.
func (t *Tracker) fresh(publishedAt time.Time) bool {
	return publishedAt.After(t.now().Add(-freshnessWindow))
}

func (t *Tracker) applyResults(ctx context.Context, gen uint64, results map[int64]checkResult) {
	var fresh []Repo

	t.mu.Lock()
	if gen <= t.lastApplied {
		t.mu.Unlock()
		slog.Info("discarding stale check results", "generation", gen, "last_applied", t.lastApplied)
		return
	}
	t.lastApplied = gen

	for i := range t.repos {
		res, ok := results[t.repos[i].ID]
		if !ok {
			continue
		}
		gained := res.hasUpdate && !t.repos[i].HasUpdate
		t.repos[i].HasUpdate = res.hasUpdate
		t.repos[i].LatestRelease = res.release
		if gained {
			fresh = append(fresh, t.repos[i])
		}
	}
	t.persistLocked(ctx)
	t.mu.Unlock()

	if t.updateHook != nil && len(fresh) > 0 {
		t.updateHook(fresh)
	}
}

func (t *Tracker) persistLocked(ctx context.Context) {
	if err := t.store.Save(ctx, storage.KeyTrackedRepos, t.repos); err != nil {
		slog.Warn("failed to persist tracked repositories", "error", err)
	}
}
