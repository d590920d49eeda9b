package model

import (
	"time"

	"gorm.io/gorm"
)

// ListingStatus represents where a unit sits in the tenancy lifecycle
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingApplied   ListingStatus = "applied"
	ListingRented    ListingStatus = "rented"
	ListingUnlisted  ListingStatus = "unlisted"
)

// Unit is a single rentable space within a Property. Monetary amounts are
// stored in minor units (e.g. kobo/cents) to avoid floating-point rounding.
type Unit struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	PropertyID    uint           `gorm:"index;not null" json:"property_id"`
	Property      Property       `gorm:"foreignKey:PropertyID" json:"-"`
	UnitNumber    string         `json:"unit_number"`
	Bedrooms      int            `json:"bedrooms"`
	RentAmount    int64          `gorm:"not null" json:"rent_amount"`
	DepositAmount int64          `gorm:"not null" json:"deposit_amount"`
	ListingStatus ListingStatus  `gorm:"type:varchar(20);not null;default:'available'" json:"listing_status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
