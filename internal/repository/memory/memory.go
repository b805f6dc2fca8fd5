package memory

import (
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/repository"
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// MemStorage is an in-process Storage used by tests and local runs without a database.
// Returned links and users are copies; mutating them does not touch the store.
type MemStorage struct {
	mu           sync.RWMutex
	users        map[int64]*domain.User
	usersByEmail map[string]int64
	links        map[int64]*domain.Link
	linksByCode  map[string]int64 // includes soft-deleted links: codes are never reused
	clicks       []*domain.Click
	userCounter  int64
	linkCounter  int64
	clickCounter int64
}

func New() *MemStorage {
	return &MemStorage{
		users:        make(map[int64]*domain.User),
		usersByEmail: make(map[string]int64),
		links:        make(map[int64]*domain.Link),
		linksByCode:  make(map[string]int64),
	}
}

// --- User Methods ---

func (s *MemStorage) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return repository.ErrEmailExists
	}

	s.userCounter++
	user.ID = s.userCounter
	user.CreatedAt = time.Now()

	stored := *user
	s.users[user.ID] = &stored
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func (s *MemStorage) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	user := *s.users[id]
	return &user, nil
}

func (s *MemStorage) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// --- Link Methods ---

func (s *MemStorage) CreateLink(_ context.Context, link *domain.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.linksByCode[link.ShortCode]; exists {
		return repository.ErrShortCodeExists
	}

	now := time.Now()
	s.linkCounter++
	link.ID = s.linkCounter
	link.CreatedAt = now
	link.UpdatedAt = now

	stored := *link
	s.links[link.ID] = &stored
	s.linksByCode[link.ShortCode] = link.ID
	return nil
}

func (s *MemStorage) ListUserLinks(_ context.Context, userID int64) ([]*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userLinks := make([]*domain.Link, 0)
	for _, link := range s.links {
		if link.IsActive() && link.IsOwnedBy(userID) {
			l := *link
			userLinks = append(userLinks, &l)
		}
	}

	sort.Slice(userLinks, func(i, j int) bool {
		return userLinks[i].ID > userLinks[j].ID
	})
	return userLinks, nil
}

func (s *MemStorage) GetUserLink(_ context.Context, userID, linkID int64) (*domain.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, err := s.activeUserLink(userID, linkID)
	if err != nil {
		return nil, err
	}
	l := *link
	return &l, nil
}

func (s *MemStorage) UpdateLinkURL(_ context.Context, userID, linkID int64, originalURL string) (*domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, err := s.activeUserLink(userID, linkID)
	if err != nil {
		return nil, err
	}
	link.OriginalURL = originalURL
	// updated_at версионирует записи кеша и должен строго расти
	now := time.Now()
	if !now.After(link.UpdatedAt) {
		now = link.UpdatedAt.Add(time.Microsecond)
	}
	link.UpdatedAt = now

	l := *link
	return &l, nil
}

func (s *MemStorage) DeleteLink(_ context.Context, userID, linkID int64) (*domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, err := s.activeUserLink(userID, linkID)
	if err != nil {
		return nil, err
	}
	link.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}

	l := *link
	return &l, nil
}

func (s *MemStorage) ResolveLink(_ context.Context, shortCode string) (*domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, err := s.activeLinkByCode(shortCode)
	if err != nil {
		return nil, err
	}
	link.ClickCount++

	l := *link
	return &l, nil
}

func (s *MemStorage) IncrementClickCount(_ context.Context, shortCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, err := s.activeLinkByCode(shortCode)
	if err != nil {
		return err
	}
	link.ClickCount++
	return nil
}

// --- Click Methods ---

func (s *MemStorage) RecordClick(_ context.Context, click *domain.Click) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[click.LinkID]; !ok {
		return repository.ErrLinkNotFound
	}

	s.clickCounter++
	click.ID = s.clickCounter
	c := *click
	s.clicks = append(s.clicks, &c)
	return nil
}

func (s *MemStorage) GetClicksByDevice(_ context.Context, linkID int64) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clicksByDevice := make(map[string]int64)
	for _, click := range s.clicks {
		if click.LinkID == linkID {
			clicksByDevice[click.DeviceType]++
		}
	}
	return clicksByDevice, nil
}

func (s *MemStorage) Ping(_ context.Context) error {
	return nil
}

// --- Helpers (callers hold s.mu) ---

func (s *MemStorage) activeUserLink(userID, linkID int64) (*domain.Link, error) {
	link, ok := s.links[linkID]
	if !ok || !link.IsActive() || !link.IsOwnedBy(userID) {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (s *MemStorage) activeLinkByCode(shortCode string) (*domain.Link, error) {
	id, ok := s.linksByCode[shortCode]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	link := s.links[id]
	if !link.IsActive() {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}
