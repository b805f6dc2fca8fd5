package repository

import (
	"Shortly-Backend/internal/domain"
	"context"
	"errors"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrLinkNotFound    = errors.New("link not found")
	ErrShortCodeExists = errors.New("short code already exists")
)

// UserStorage хранилище учетных записей.
type UserStorage interface {
	// CreateUser сохраняет пользователя; ErrEmailExists при нарушении уникальности email.
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// LinkStorage хранилище ссылок. Все методы, кроме CreateLink, видят только
// неудаленные ссылки.
type LinkStorage interface {
	// CreateLink сохраняет ссылку; ErrShortCodeExists при коллизии short_code.
	CreateLink(ctx context.Context, link *domain.Link) error
	ListUserLinks(ctx context.Context, userID int64) ([]*domain.Link, error)
	GetUserLink(ctx context.Context, userID, linkID int64) (*domain.Link, error)
	// UpdateLinkURL меняет original_url ссылки, принадлежащей userID.
	UpdateLinkURL(ctx context.Context, userID, linkID int64, originalURL string) (*domain.Link, error)
	// DeleteLink выполняет мягкое удаление ссылки, принадлежащей userID.
	DeleteLink(ctx context.Context, userID, linkID int64) (*domain.Link, error)
	// ResolveLink атомарно увеличивает click_count и возвращает ссылку.
	ResolveLink(ctx context.Context, shortCode string) (*domain.Link, error)
	// IncrementClickCount атомарно увеличивает click_count без чтения строки.
	IncrementClickCount(ctx context.Context, shortCode string) error
}

// ClickStorage хранилище детальной аналитики переходов.
type ClickStorage interface {
	RecordClick(ctx context.Context, click *domain.Click) error
	GetClicksByDevice(ctx context.Context, linkID int64) (map[string]int64, error)
}

type Storage interface {
	UserStorage
	LinkStorage
	ClickStorage

	Ping(ctx context.Context) error
}
