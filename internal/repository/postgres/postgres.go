package postgres

import (
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgresStorage реализует интерфейс Storage поверх GORM.
//
// Ожидается, что *gorm.DB открыт с TranslateError: true, чтобы нарушения
// уникальности приходили как gorm.ErrDuplicatedKey. Фильтр мягкого удаления
// обеспечивает gorm.DeletedAt в domain.Link, поэтому в запросах он не повторяется.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New создает новый экземпляр PostgreSQL storage
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- User Methods ---

// CreateUser создает пользователя
func (s *PostgresStorage) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrEmailExists
	}
	if err != nil {
		s.log.Error("failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("created new user", zap.Int64("user_id", user.ID))
	return nil
}

// GetUserByEmail получает пользователя по email
func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User

	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user by email", zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByID получает пользователя по ID
func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User

	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user by id", zap.Int64("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// --- Link Methods ---

// CreateLink сохраняет новую ссылку. Уникальность short_code проверяет
// ограничение БД, а не предварительный SELECT.
func (s *PostgresStorage) CreateLink(ctx context.Context, link *domain.Link) error {
	err := s.db.WithContext(ctx).Create(link).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrShortCodeExists
	}
	if err != nil {
		s.log.Error("failed to save link", zap.String("short_code", link.ShortCode), zap.Error(err))
		return fmt.Errorf("failed to save link: %w", err)
	}

	s.log.Info("saved new link", zap.Int64("link_id", link.ID), zap.String("short_code", link.ShortCode))
	return nil
}

// ListUserLinks возвращает список активных ссылок пользователя
func (s *PostgresStorage) ListUserLinks(ctx context.Context, userID int64) ([]*domain.Link, error) {
	var links []*domain.Link

	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Find(&links).Error
	if err != nil {
		s.log.Error("failed to list user links", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list user links: %w", err)
	}

	return links, nil
}

// GetUserLink получает активную ссылку по ID с учетом владельца
func (s *PostgresStorage) GetUserLink(ctx context.Context, userID, linkID int64) (*domain.Link, error) {
	return s.findUserLink(s.db.WithContext(ctx), userID, linkID)
}

// UpdateLinkURL обновляет original_url ссылки владельца
func (s *PostgresStorage) UpdateLinkURL(ctx context.Context, userID, linkID int64, originalURL string) (*domain.Link, error) {
	var link *domain.Link

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.findUserLink(tx, userID, linkID)
		if err != nil {
			return err
		}

		// Update, а не Save: Save перезаписал бы click_count и потерял конкурентные клики
		if err := tx.Model(found).Update("original_url", originalURL).Error; err != nil {
			return fmt.Errorf("failed to update link: %w", err)
		}

		link = &domain.Link{}
		return tx.First(link, found.ID).Error
	})
	if err != nil {
		if !errors.Is(err, repository.ErrLinkNotFound) {
			s.log.Error("failed to update link", zap.Int64("link_id", linkID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("updated link", zap.Int64("link_id", linkID), zap.Int64("user_id", userID))
	return link, nil
}

// DeleteLink удаляет ссылку владельца (мягкое удаление)
func (s *PostgresStorage) DeleteLink(ctx context.Context, userID, linkID int64) (*domain.Link, error) {
	var link *domain.Link

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.findUserLink(tx, userID, linkID)
		if err != nil {
			return err
		}

		result := tx.Delete(found)
		if result.Error != nil {
			return fmt.Errorf("failed to delete link: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrLinkNotFound
		}

		link = found
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrLinkNotFound) {
			s.log.Error("failed to delete link", zap.Int64("link_id", linkID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("deleted link", zap.Int64("link_id", linkID), zap.Int64("user_id", userID))
	return link, nil
}

// ResolveLink атомарно увеличивает счетчик кликов и возвращает ссылку
func (s *PostgresStorage) ResolveLink(ctx context.Context, shortCode string) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.incrementClicks(tx, shortCode); err != nil {
			return err
		}
		return tx.Where("short_code = ?", shortCode).First(&link).Error
	})
	if errors.Is(err, repository.ErrLinkNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrLinkNotFound
	}
	if err != nil {
		s.log.Error("failed to resolve link", zap.String("short_code", shortCode), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve link: %w", err)
	}

	return &link, nil
}

// IncrementClickCount увеличивает счетчик кликов без чтения строки
func (s *PostgresStorage) IncrementClickCount(ctx context.Context, shortCode string) error {
	err := s.incrementClicks(s.db.WithContext(ctx), shortCode)
	if err != nil && !errors.Is(err, repository.ErrLinkNotFound) {
		s.log.Error("failed to increment click count", zap.String("short_code", shortCode), zap.Error(err))
	}
	return err
}

// --- Click Methods ---

// RecordClick сохраняет детальную запись о переходе
func (s *PostgresStorage) RecordClick(ctx context.Context, click *domain.Click) error {
	if err := s.db.WithContext(ctx).Create(click).Error; err != nil {
		s.log.Error("failed to create click record", zap.Int64("link_id", click.LinkID), zap.Error(err))
		return fmt.Errorf("failed to create click: %w", err)
	}
	return nil
}

// GetClicksByDevice возвращает статистику кликов по типам устройств для ссылки
func (s *PostgresStorage) GetClicksByDevice(ctx context.Context, linkID int64) (map[string]int64, error) {
	var results []struct {
		DeviceType string `gorm:"column:device_type"`
		Count      int64  `gorm:"column:count"`
	}

	err := s.db.WithContext(ctx).
		Model(&domain.Click{}).
		Select("device_type, count(*) as count").
		Where("link_id = ?", linkID).
		Group("device_type").
		Find(&results).Error
	if err != nil {
		s.log.Error("failed to get clicks by device", zap.Int64("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("failed to get clicks by device: %w", err)
	}

	clicksByDevice := make(map[string]int64, len(results))
	for _, result := range results {
		clicksByDevice[result.DeviceType] = result.Count
	}

	return clicksByDevice, nil
}

// Ping проверяет соединение с базой данных
func (s *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// --- Helper Methods ---

// findUserLink ищет активную ссылку одним запросом по id и владельцу, чтобы
// чужая и несуществующая ссылки были неразличимы.
func (s *PostgresStorage) findUserLink(db *gorm.DB, userID, linkID int64) (*domain.Link, error) {
	var link domain.Link

	err := db.Where("id = ? AND user_id = ?", linkID, userID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

// incrementClicks выполняет UPDATE ... SET click_count = click_count + 1.
// UpdateColumn не трогает updated_at.
func (s *PostgresStorage) incrementClicks(db *gorm.DB, shortCode string) error {
	result := db.Model(&domain.Link{}).
		Where("short_code = ?", shortCode).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to update click count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrLinkNotFound
	}
	return nil
}
