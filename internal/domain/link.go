package domain

import (
	"time"

	"gorm.io/gorm"
)

// Link представляет сокращенную ссылку.
//
// DeletedAt включает мягкое удаление GORM: все запросы через gorm
// автоматически исключают строки с заполненным deleted_at.
type Link struct {
	ID          int64          `gorm:"primaryKey;column:id" json:"id"`
	OriginalURL string         `gorm:"column:original_url;type:text;not null" json:"original_url"`
	ShortCode   string         `gorm:"column:short_code;size:16;uniqueIndex;not null" json:"short_code"`
	ClickCount  int64          `gorm:"column:click_count;not null;default:0" json:"click_count"`
	UserID      *int64         `gorm:"column:user_id;index" json:"user_id,omitempty"` // nil для анонимных ссылок
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName возвращает название таблицы для GORM
func (Link) TableName() string {
	return "links"
}

// IsActive сообщает, что ссылка не удалена.
func (l *Link) IsActive() bool {
	return !l.DeletedAt.Valid
}

// IsOwnedBy проверяет принадлежность ссылки пользователю.
func (l *Link) IsOwnedBy(userID int64) bool {
	return l.UserID != nil && *l.UserID == userID
}

// LinkStats агрегированная статистика переходов по ссылке.
type LinkStats struct {
	LinkID         int64            `json:"id"`
	ShortCode      string           `json:"short_code"`
	OriginalURL    string           `json:"original_url"`
	ClickCount     int64            `json:"click_count"`
	ClicksByDevice map[string]int64 `json:"clicks_by_device"`
}
