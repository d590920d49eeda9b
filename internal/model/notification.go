package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification is a fire-and-forget message to a user. Delivery is
// best-effort: core transitions never fail because a notification could not
// be written.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	Type      string         `gorm:"type:varchar(40);not null" json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Read      bool           `gorm:"default:false" json:"read"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
