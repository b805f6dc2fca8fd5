// Package storetest holds the behaviour every repository.Storage implementation must satisfy.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty storage for each subtest.
type Factory func(t *testing.T) repository.Storage

// Run executes the storage contract against the implementation built by newStorage.
func Run(t *testing.T, newStorage Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStorage(t)) })
	t.Run("create and list links", func(t *testing.T) { testCreateAndList(t, newStorage(t)) })
	t.Run("short code uniqueness", func(t *testing.T) { testShortCodeUniqueness(t, newStorage(t)) })
	t.Run("ownership scoped update", func(t *testing.T) { testUpdate(t, newStorage(t)) })
	t.Run("soft delete", func(t *testing.T) { testSoftDelete(t, newStorage(t)) })
	t.Run("resolve increments clicks", func(t *testing.T) { testResolve(t, newStorage(t)) })
	t.Run("concurrent resolves", func(t *testing.T) { testConcurrentResolve(t, newStorage(t)) })
	t.Run("clicks by device", func(t *testing.T) { testClicks(t, newStorage(t)) })
}

func createUser(t *testing.T, s repository.Storage, email string) *domain.User {
	t.Helper()
	user := &domain.User{Username: "user", Email: email, PasswordHash: "$2a$04$hash"}
	require.NoError(t, s.CreateUser(context.Background(), user))
	require.NotZero(t, user.ID)
	return user
}

func createLink(t *testing.T, s repository.Storage, code string, ownerID *int64) *domain.Link {
	t.Helper()
	link := &domain.Link{OriginalURL: "https://example.com/" + code, ShortCode: code, UserID: ownerID}
	require.NoError(t, s.CreateLink(context.Background(), link))
	require.NotZero(t, link.ID)
	return link
}

func testUsers(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := createUser(t, s, "a@x.com")

	got, err := s.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, "$2a$04$hash", got.PasswordHash)

	got, err = s.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	err = s.CreateUser(ctx, &domain.User{Username: "other", Email: "a@x.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	_, err = s.GetUserByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = s.GetUserByID(ctx, alice.ID+100)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func testCreateAndList(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := createUser(t, s, "a@x.com")
	bob := createUser(t, s, "b@x.com")

	first := createLink(t, s, "aaaaa1", &alice.ID)
	second := createLink(t, s, "aaaaa2", &alice.ID)
	createLink(t, s, "bbbbb1", &bob.ID)
	createLink(t, s, "anon01", nil)

	assert.Equal(t, int64(0), first.ClickCount)

	links, err := s.ListUserLinks(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)

	codes := []string{links[0].ShortCode, links[1].ShortCode}
	assert.ElementsMatch(t, []string{first.ShortCode, second.ShortCode}, codes)
	for _, l := range links {
		require.NotNil(t, l.UserID)
		assert.Equal(t, alice.ID, *l.UserID)
		assert.False(t, l.CreatedAt.IsZero())
	}

	empty, err := s.ListUserLinks(ctx, alice.ID+bob.ID+100)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testShortCodeUniqueness(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := createUser(t, s, "a@x.com")
	link := createLink(t, s, "dup123", &alice.ID)

	err := s.CreateLink(ctx, &domain.Link{OriginalURL: "https://other.org", ShortCode: "dup123"})
	assert.ErrorIs(t, err, repository.ErrShortCodeExists)

	// deleted links keep their code reserved
	_, err = s.DeleteLink(ctx, alice.ID, link.ID)
	require.NoError(t, err)

	err = s.CreateLink(ctx, &domain.Link{OriginalURL: "https://other.org", ShortCode: "dup123"})
	assert.ErrorIs(t, err, repository.ErrShortCodeExists)
}

func testUpdate(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := createUser(t, s, "a@x.com")
	bob := createUser(t, s, "b@x.com")
	link := createLink(t, s, "upd123", &alice.ID)

	time.Sleep(10 * time.Millisecond)

	updated, err := s.UpdateLinkURL(ctx, alice.ID, link.ID, "https://changed.example")
	require.NoError(t, err)
	assert.Equal(t, "https://changed.example", updated.OriginalURL)
	assert.Equal(t, "upd123", updated.ShortCode)
	assert.True(t, updated.UpdatedAt.After(link.UpdatedAt), "updated_at must be refreshed")

	_, err = s.UpdateLinkURL(ctx, bob.ID, link.ID, "https://evil.example")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	_, err = s.UpdateLinkURL(ctx, alice.ID, link.ID+100, "https://changed.example")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	got, err := s.GetUserLink(ctx, alice.ID, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://changed.example", got.OriginalURL)

	_, err = s.GetUserLink(ctx, bob.ID, link.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func testSoftDelete(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	alice := createUser(t, s, "a@x.com")
	bob := createUser(t, s, "b@x.com")
	link := createLink(t, s, "del123", &alice.ID)

	_, err := s.DeleteLink(ctx, bob.ID, link.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	deleted, err := s.DeleteLink(ctx, alice.ID, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "del123", deleted.ShortCode)

	_, err = s.DeleteLink(ctx, alice.ID, link.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	links, err := s.ListUserLinks(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = s.ResolveLink(ctx, "del123")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	err = s.IncrementClickCount(ctx, "del123")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	_, err = s.UpdateLinkURL(ctx, alice.ID, link.ID, "https://again.example")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	_, err = s.GetUserLink(ctx, alice.ID, link.ID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func testResolve(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	link := createLink(t, s, "res123", nil)

	got, err := s.ResolveLink(ctx, "res123")
	require.NoError(t, err)
	assert.Equal(t, link.OriginalURL, got.OriginalURL)
	assert.Equal(t, link.ID, got.ID)
	assert.Equal(t, int64(1), got.ClickCount)

	require.NoError(t, s.IncrementClickCount(ctx, "res123"))

	got, err = s.ResolveLink(ctx, "res123")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ClickCount)

	_, err = s.ResolveLink(ctx, "nope00")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	err = s.IncrementClickCount(ctx, "nope00")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func testConcurrentResolve(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	createLink(t, s, "hot123", nil)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ResolveLink(ctx, "hot123")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.ResolveLink(ctx, "hot123")
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), got.ClickCount)
}

func testClicks(t *testing.T, s repository.Storage) {
	ctx := context.Background()
	link := createLink(t, s, "clk123", nil)
	other := createLink(t, s, "clk456", nil)

	for _, device := range []string{"desktop", "mobile", "mobile", "bot"} {
		require.NoError(t, s.RecordClick(ctx, &domain.Click{
			LinkID:     link.ID,
			DeviceType: device,
			ClickedAt:  time.Now(),
		}))
	}
	require.NoError(t, s.RecordClick(ctx, &domain.Click{LinkID: other.ID, DeviceType: "tablet", ClickedAt: time.Now()}))

	byDevice, err := s.GetClicksByDevice(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"desktop": 1, "mobile": 2, "bot": 1}, byDevice)
}
