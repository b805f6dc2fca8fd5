package domain

import "time"

// Ограничения длины столбцов clicks; значения из запроса обрезаются до записи
const (
	MaxIPAddressLength = 45
	MaxRefererLength   = 500
	MaxBrowserLength   = 50
	MaxOSLength        = 50
)

// Click представляет переход по сокращенной ссылке
type Click struct {
	ID         int64     `gorm:"primaryKey;column:id" json:"id"`
	LinkID     int64     `gorm:"column:link_id;not null;index" json:"link_id"`
	IPAddress  *string   `gorm:"column:ip_address;size:45" json:"ip_address,omitempty"`
	UserAgent  *string   `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	Referer    *string   `gorm:"column:referer;size:500" json:"referer,omitempty"`
	DeviceType string    `gorm:"column:device_type;size:10;not null;default:unknown" json:"device_type"` // 'desktop', 'mobile', 'tablet', 'bot', 'unknown'
	Browser    *string   `gorm:"column:browser;size:50" json:"browser,omitempty"`
	OS         *string   `gorm:"column:os;size:50" json:"os,omitempty"`
	ClickedAt  time.Time `gorm:"column:clicked_at;index" json:"clicked_at"`

	// Relationships
	Link *Link `gorm:"foreignKey:LinkID" json:"-"`
}

// TableName возвращает название таблицы для GORM
func (Click) TableName() string {
	return "clicks"
}
