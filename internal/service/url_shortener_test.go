package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"Shortly-Backend/internal/config"
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/repository"
	"Shortly-Backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var shortURLPattern = regexp.MustCompile(`^http://sho\.rt/[A-Za-z0-9]{6}$`)

func newTestShortener(storage repository.Storage, cache LinkCache) *URLShortenerService {
	return NewURLShortener(storage, cache, &config.URLShortener{
		AliasLength: 6,
		BaseURL:     "http://sho.rt/",
		MaxRetries:  5,
	}, zap.NewNop())
}

func codeOf(shortURL string) string {
	return shortURL[strings.LastIndex(shortURL, "/")+1:]
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestShorten_ThenResolve(t *testing.T) {
	ctx := context.Background()
	s := newTestShortener(memory.New(), nil)

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com/a?b=c"}, nil)
	require.NoError(t, err)
	assert.Regexp(t, shortURLPattern, shortURL)

	link, err := s.Resolve(ctx, codeOf(shortURL))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a?b=c", link.OriginalURL)
	assert.Equal(t, int64(1), link.ClickCount)
	assert.Nil(t, link.UserID)
}

func TestShorten_InvalidURL(t *testing.T) {
	s := newTestShortener(memory.New(), nil)

	for _, raw := range []string{"", "   ", "not a url", "example.com", "/relative/path", "https://"} {
		_, err := s.Shorten(context.Background(), ShortenInput{OriginalURL: raw}, nil)
		assert.ErrorIs(t, err, domain.ErrValidation, raw)
	}
}

func TestShorten_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateLink(ctx, &domain.Link{OriginalURL: "https://taken.example", ShortCode: "AAAAAA"}))

	s := newTestShortener(store, nil)
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	calls := 0
	s.generate = func(int) (string, error) {
		code := codes[calls]
		calls++
		return code, nil
	}

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://sho.rt/BBBBBB", shortURL)
	assert.Equal(t, 3, calls)

	taken, err := s.Resolve(ctx, "AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "https://taken.example", taken.OriginalURL)
}

func TestShorten_CollisionOnDeletedCode(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	owner := int64(1)
	old := &domain.Link{OriginalURL: "https://old.example", ShortCode: "DELETE", UserID: &owner}
	require.NoError(t, store.CreateLink(ctx, old))
	_, err := store.DeleteLink(ctx, owner, old.ID)
	require.NoError(t, err)

	s := newTestShortener(store, nil)
	codes := []string{"DELETE", "FRESH1"}
	calls := 0
	s.generate = func(int) (string, error) {
		code := codes[calls]
		calls++
		return code, nil
	}

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://new.example"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://sho.rt/FRESH1", shortURL)
}

func TestShorten_SkipsReservedCodes(t *testing.T) {
	ctx := context.Background()
	s := newTestShortener(memory.New(), nil)
	codes := []string{"health", "metrics", "OK1234"}
	calls := 0
	s.generate = func(int) (string, error) {
		code := codes[calls]
		calls++
		return code, nil
	}

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://sho.rt/OK1234", shortURL)
	assert.Equal(t, 3, calls)

	_, err = s.Resolve(ctx, "health")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShorten_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateLink(ctx, &domain.Link{OriginalURL: "https://taken.example", ShortCode: "AAAAAA"}))

	s := newTestShortener(store, nil)
	calls := 0
	s.generate = func(int) (string, error) {
		calls++
		return "AAAAAA", nil
	}

	_, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, nil)
	require.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, repository.ErrShortCodeExists)
	assert.Equal(t, 5, calls)
}

func TestShorten_UniqueCodes(t *testing.T) {
	ctx := context.Background()
	s := newTestShortener(memory.New(), nil)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, nil)
		require.NoError(t, err)
		code := codeOf(shortURL)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestListUpdateDelete_Ownership(t *testing.T) {
	ctx := context.Background()
	s := newTestShortener(memory.New(), nil)
	alice, bob := int64Ptr(1), int64Ptr(2)

	_, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://first.example"}, alice)
	require.NoError(t, err)
	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://second.example"}, alice)
	require.NoError(t, err)
	_, err = s.Shorten(ctx, ShortenInput{OriginalURL: "https://anon.example"}, nil)
	require.NoError(t, err)

	links, err := s.List(ctx, *alice)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "https://second.example", links[0].OriginalURL)
	assert.Equal(t, codeOf(shortURL), links[0].ShortCode)

	target := links[0].ID

	err = s.Update(ctx, *bob, target, UpdateInput{OriginalURL: "https://evil.example"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = s.Delete(ctx, *bob, target)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.Update(ctx, *alice, target, UpdateInput{OriginalURL: "not-a-url"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, s.Update(ctx, *alice, target, UpdateInput{OriginalURL: "https://updated.example"}))
	link, err := s.Resolve(ctx, codeOf(shortURL))
	require.NoError(t, err)
	assert.Equal(t, "https://updated.example", link.OriginalURL)

	require.NoError(t, s.Delete(ctx, *alice, target))

	_, err = s.Resolve(ctx, codeOf(shortURL))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = s.Delete(ctx, *alice, target)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = s.Update(ctx, *alice, target, UpdateInput{OriginalURL: "https://again.example"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	links, err = s.List(ctx, *alice)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	bobLinks, err := s.List(ctx, *bob)
	require.NoError(t, err)
	assert.Empty(t, bobLinks)
}

func TestResolve_UnknownCode(t *testing.T) {
	s := newTestShortener(memory.New(), nil)

	_, err := s.Resolve(context.Background(), "nope00")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve_ConcurrentClicks(t *testing.T) {
	ctx := context.Background()
	owner := int64Ptr(1)
	s := newTestShortener(memory.New(), nil)

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, owner)
	require.NoError(t, err)
	code := codeOf(shortURL)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Resolve(ctx, code)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	links, err := s.List(ctx, *owner)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, int64(n), links[0].ClickCount)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	owner := int64Ptr(1)
	s := newTestShortener(store, nil)

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, owner)
	require.NoError(t, err)
	link, err := s.Resolve(ctx, codeOf(shortURL))
	require.NoError(t, err)

	require.NoError(t, store.RecordClick(ctx, &domain.Click{LinkID: link.ID, DeviceType: "mobile"}))
	require.NoError(t, store.RecordClick(ctx, &domain.Click{LinkID: link.ID, DeviceType: "mobile"}))
	require.NoError(t, store.RecordClick(ctx, &domain.Click{LinkID: link.ID, DeviceType: "desktop"}))

	stats, err := s.Stats(ctx, *owner, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ClickCount)
	assert.Equal(t, map[string]int64{"mobile": 2, "desktop": 1}, stats.ClicksByDevice)

	_, err = s.Stats(ctx, 2, link.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// fakeCache is an in-process LinkCache that records calls. Like RedisCache it
// keeps an entry whose UpdatedAt is later than the one being set.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.Link
	getErr  error
	setErr  error
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.Link)}
}

func (c *fakeCache) Get(_ context.Context, shortCode string) (*domain.Link, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	link, ok := c.entries[shortCode]
	if !ok {
		return nil, false, nil
	}
	return &link, true, nil
}

func (c *fakeCache) Set(_ context.Context, link *domain.Link) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	if current, ok := c.entries[link.ShortCode]; ok && current.UpdatedAt.After(link.UpdatedAt) {
		return nil
	}
	c.entries[link.ShortCode] = domain.Link{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		UpdatedAt:   link.UpdatedAt,
	}
	return nil
}

func (c *fakeCache) entry(shortCode string) (domain.Link, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	link, ok := c.entries[shortCode]
	return link, ok
}

// gatedCache parks the first Set until release is closed.
type gatedCache struct {
	*fakeCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedCache() *gatedCache {
	return &gatedCache{
		fakeCache: newFakeCache(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (c *gatedCache) Set(ctx context.Context, link *domain.Link) error {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.entered)
		<-c.release
	}
	return c.fakeCache.Set(ctx, link)
}

func (c *fakeCache) Delete(_ context.Context, shortCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, shortCode)
	c.deleted = append(c.deleted, shortCode)
	return nil
}

func TestResolve_CacheHitStillCountsClicks(t *testing.T) {
	ctx := context.Background()
	owner := int64Ptr(1)
	cache := newFakeCache()
	s := newTestShortener(memory.New(), cache)

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, owner)
	require.NoError(t, err)
	code := codeOf(shortURL)

	for i := 0; i < 3; i++ {
		link, err := s.Resolve(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", link.OriginalURL)
	}
	assert.Contains(t, cache.entries, code)

	links, err := s.List(ctx, *owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), links[0].ClickCount)
}

func TestResolve_UpdateRefreshesAndDeleteEvictsCache(t *testing.T) {
	ctx := context.Background()
	owner := int64Ptr(1)
	cache := newFakeCache()
	s := newTestShortener(memory.New(), cache)

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, owner)
	require.NoError(t, err)
	code := codeOf(shortURL)

	link, err := s.Resolve(ctx, code)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, *owner, link.ID, UpdateInput{OriginalURL: "https://updated.example"}))
	cached, ok := cache.entry(code)
	require.True(t, ok)
	assert.Equal(t, "https://updated.example", cached.OriginalURL)

	link, err = s.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "https://updated.example", link.OriginalURL)

	require.NoError(t, s.Delete(ctx, *owner, link.ID))
	_, ok = cache.entry(code)
	assert.False(t, ok)

	_, err = s.Resolve(ctx, code)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve_InFlightMissDoesNotUndoUpdate(t *testing.T) {
	ctx := context.Background()
	owner := int64Ptr(1)
	cache := newGatedCache()
	s := newTestShortener(memory.New(), cache)

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://old.example"}, owner)
	require.NoError(t, err)
	code := codeOf(shortURL)
	links, err := s.List(ctx, *owner)
	require.NoError(t, err)
	require.Len(t, links, 1)

	resolved := make(chan *domain.Link, 1)
	go func() {
		link, err := s.Resolve(ctx, code)
		assert.NoError(t, err)
		resolved <- link
	}()

	// the resolve has read the old row and is about to cache it
	<-cache.entered
	require.NoError(t, s.Update(ctx, *owner, links[0].ID, UpdateInput{OriginalURL: "https://new.example"}))
	close(cache.release)

	inFlight := <-resolved
	require.NotNil(t, inFlight)
	assert.Equal(t, "https://old.example", inFlight.OriginalURL)

	cached, ok := cache.entry(code)
	require.True(t, ok)
	assert.Equal(t, "https://new.example", cached.OriginalURL)

	link, err := s.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "https://new.example", link.OriginalURL)
}

func TestUpdate_EvictsWhenCacheWriteFails(t *testing.T) {
	ctx := context.Background()
	owner := int64Ptr(1)
	cache := newFakeCache()
	s := newTestShortener(memory.New(), cache)

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, owner)
	require.NoError(t, err)
	code := codeOf(shortURL)
	link, err := s.Resolve(ctx, code)
	require.NoError(t, err)

	cache.mu.Lock()
	cache.setErr = errors.New("redis unavailable")
	cache.mu.Unlock()

	require.NoError(t, s.Update(ctx, *owner, link.ID, UpdateInput{OriginalURL: "https://updated.example"}))
	_, ok := cache.entry(code)
	assert.False(t, ok)
	assert.Contains(t, cache.deleted, code)
}

func TestResolve_StaleCacheEntryForDeletedLink(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	owner := int64(1)
	cache := newFakeCache()
	s := newTestShortener(store, cache)

	link := &domain.Link{OriginalURL: "https://example.com", ShortCode: "STALE1", UserID: &owner}
	require.NoError(t, store.CreateLink(ctx, link))
	require.NoError(t, cache.Set(ctx, link))
	_, err := store.DeleteLink(ctx, owner, link.ID)
	require.NoError(t, err)

	_, err = s.Resolve(ctx, "STALE1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, cache.deleted, "STALE1")
}

func TestResolve_CacheErrorFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	cache.getErr = errors.New("redis unavailable")
	s := newTestShortener(memory.New(), cache)

	shortURL, err := s.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com"}, nil)
	require.NoError(t, err)

	link, err := s.Resolve(ctx, codeOf(shortURL))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.OriginalURL)
}

// failingLinks fails every CreateLink with a store error.
type failingLinks struct {
	*memory.MemStorage
}

func (failingLinks) CreateLink(context.Context, *domain.Link) error {
	return errors.New("connection reset")
}

func TestShorten_StoreFailure(t *testing.T) {
	s := newTestShortener(failingLinks{memory.New()}, nil)

	_, err := s.Shorten(context.Background(), ShortenInput{OriginalURL: "https://example.com"}, nil)
	assert.ErrorIs(t, err, domain.ErrStore)
}
