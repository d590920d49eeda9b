package model

import (
	"time"

	"gorm.io/gorm"
)

// Property is a landlord-owned building or compound containing rentable units
type Property struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	LandlordID uint           `gorm:"index;not null" json:"landlord_id"`
	Name       string         `json:"name"`
	Address    string         `json:"address"`
	City       string         `json:"city"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
