package service

import (
	"Shortly-Backend/internal/config"
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/repository"
	"Shortly-Backend/internal/validation"
	"Shortly-Backend/pkg/random"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const defaultMaxRetries = 5

// reservedCodes совпадают с первыми сегментами маршрутов HTTP-сервера;
// ссылка с таким кодом была бы недоступна для редиректа.
var reservedCodes = map[string]struct{}{
	"auth":    {},
	"health":  {},
	"metrics": {},
	"ready":   {},
	"short":   {},
	"urls":    {},
}

// IsReservedCode сообщает, занят ли код маршрутом сервера
func IsReservedCode(code string) bool {
	_, ok := reservedCodes[code]
	return ok
}

// LinkCache кеш short_code -> ссылка для быстрых редиректов.
// Get возвращает ok=false при промахе. Set не перезаписывает запись с более
// поздним UpdatedAt: Resolve, прочитавший ссылку до Update, не вернет в кеш
// старый URL.
type LinkCache interface {
	Get(ctx context.Context, shortCode string) (link *domain.Link, ok bool, err error)
	Set(ctx context.Context, link *domain.Link) error
	Delete(ctx context.Context, shortCode string) error
}

// ShortenInput данные для создания короткой ссылки
type ShortenInput struct {
	OriginalURL string `json:"original_url" validate:"required,absurl"`
}

// UpdateInput данные для изменения ссылки
type UpdateInput struct {
	OriginalURL string `json:"original_url" validate:"required,absurl"`
}

// URLShortenerService создает, разрешает и управляет короткими ссылками
type URLShortenerService struct {
	storage  repository.Storage
	cache    LinkCache
	config   *config.URLShortener
	log      *zap.Logger
	generate func(length int) (string, error)
}

// NewURLShortener создает сервис ссылок. cache может быть nil.
func NewURLShortener(storage repository.Storage, cache LinkCache, cfg *config.URLShortener, log *zap.Logger) *URLShortenerService {
	return &URLShortenerService{
		storage:  storage,
		cache:    cache,
		config:   cfg,
		log:      log,
		generate: random.NewRandomString,
	}
}

// Shorten сохраняет ссылку со случайным кодом и возвращает полный короткий URL.
// ownerID равен nil для анонимных ссылок.
func (s *URLShortenerService) Shorten(ctx context.Context, in ShortenInput, ownerID *int64) (string, error) {
	in.OriginalURL = strings.TrimSpace(in.OriginalURL)
	if err := validation.Struct(in); err != nil {
		return "", err
	}

	maxRetries := s.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	// Уникальность кода проверяет ограничение хранилища; при коллизии генерируем заново
	for attempt := 1; attempt <= maxRetries; attempt++ {
		code, err := s.generate(s.config.AliasLength)
		if err != nil {
			return "", domain.StoreError("failed to generate short code", err)
		}
		if IsReservedCode(code) {
			s.log.Warn("generated reserved short code, retrying", zap.String("short_code", code), zap.Int("attempt", attempt))
			continue
		}

		link := &domain.Link{
			OriginalURL: in.OriginalURL,
			ShortCode:   code,
			UserID:      ownerID,
		}

		err = s.storage.CreateLink(ctx, link)
		if errors.Is(err, repository.ErrShortCodeExists) {
			s.log.Warn("short code collision, retrying", zap.String("short_code", code), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return "", domain.StoreError("failed to save link", err)
		}

		return s.ShortURL(code), nil
	}

	return "", domain.StoreError("failed to generate unique short code",
		fmt.Errorf("%w after %d attempts", repository.ErrShortCodeExists, maxRetries))
}

// ShortURL собирает публичный адрес короткой ссылки
func (s *URLShortenerService) ShortURL(shortCode string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/" + shortCode
}

// List возвращает активные ссылки владельца, новые первыми
func (s *URLShortenerService) List(ctx context.Context, ownerID int64) ([]*domain.Link, error) {
	links, err := s.storage.ListUserLinks(ctx, ownerID)
	if err != nil {
		return nil, domain.StoreError("failed to list links", err)
	}
	return links, nil
}

// Update меняет original_url ссылки владельца
func (s *URLShortenerService) Update(ctx context.Context, ownerID, linkID int64, in UpdateInput) error {
	in.OriginalURL = strings.TrimSpace(in.OriginalURL)
	if err := validation.Struct(in); err != nil {
		return err
	}

	link, err := s.storage.UpdateLinkURL(ctx, ownerID, linkID, in.OriginalURL)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return domain.NotFoundError("URL not found")
	}
	if err != nil {
		return domain.StoreError("failed to update link", err)
	}

	s.refresh(ctx, link)
	return nil
}

// Delete мягко удаляет ссылку владельца
func (s *URLShortenerService) Delete(ctx context.Context, ownerID, linkID int64) error {
	link, err := s.storage.DeleteLink(ctx, ownerID, linkID)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return domain.NotFoundError("URL not found")
	}
	if err != nil {
		return domain.StoreError("failed to delete link", err)
	}

	s.evict(ctx, link.ShortCode)
	return nil
}

// Resolve находит активную ссылку по коду и атомарно засчитывает переход.
// При попадании в кеш счетчик все равно увеличивается в хранилище; если ссылка
// за это время удалена, запись кеша вытесняется.
func (s *URLShortenerService) Resolve(ctx context.Context, shortCode string) (*domain.Link, error) {
	if shortCode == "" {
		return nil, domain.NotFoundError("URL not found")
	}

	if link, ok := s.cached(ctx, shortCode); ok {
		err := s.storage.IncrementClickCount(ctx, shortCode)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, repository.ErrLinkNotFound) {
			s.evict(ctx, shortCode)
			return nil, domain.NotFoundError("URL not found")
		}
		return nil, domain.StoreError("failed to count click", err)
	}

	link, err := s.storage.ResolveLink(ctx, shortCode)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, domain.NotFoundError("URL not found")
	}
	if err != nil {
		return nil, domain.StoreError("failed to resolve link", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, link); err != nil {
			s.log.Warn("failed to cache link", zap.String("short_code", shortCode), zap.Error(err))
		}
	}

	return link, nil
}

// Stats возвращает статистику переходов по ссылке владельца
func (s *URLShortenerService) Stats(ctx context.Context, ownerID, linkID int64) (*domain.LinkStats, error) {
	link, err := s.storage.GetUserLink(ctx, ownerID, linkID)
	if errors.Is(err, repository.ErrLinkNotFound) {
		return nil, domain.NotFoundError("URL not found")
	}
	if err != nil {
		return nil, domain.StoreError("failed to get link", err)
	}

	clicksByDevice, err := s.storage.GetClicksByDevice(ctx, link.ID)
	if err != nil {
		return nil, domain.StoreError("failed to get click stats", err)
	}

	return &domain.LinkStats{
		LinkID:         link.ID,
		ShortCode:      link.ShortCode,
		OriginalURL:    link.OriginalURL,
		ClickCount:     link.ClickCount,
		ClicksByDevice: clicksByDevice,
	}, nil
}

func (s *URLShortenerService) cached(ctx context.Context, shortCode string) (*domain.Link, bool) {
	if s.cache == nil {
		return nil, false
	}

	link, ok, err := s.cache.Get(ctx, shortCode)
	if err != nil {
		s.log.Warn("link cache lookup failed", zap.String("short_code", shortCode), zap.Error(err))
		return nil, false
	}
	return link, ok
}

// refresh записывает в кеш актуальную версию ссылки; если запись не удалась,
// старая запись вытесняется.
func (s *URLShortenerService) refresh(ctx context.Context, link *domain.Link) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, link); err != nil {
		s.log.Warn("failed to refresh cached link", zap.String("short_code", link.ShortCode), zap.Error(err))
		s.evict(ctx, link.ShortCode)
	}
}

func (s *URLShortenerService) evict(ctx context.Context, shortCode string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, shortCode); err != nil {
		s.log.Warn("failed to evict cached link", zap.String("short_code", shortCode), zap.Error(err))
	}
}
