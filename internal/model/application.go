package model

import (
	"time"

	"gorm.io/gorm"
)

// ApplicationStatus represents the review state of a rental application
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationApproved  ApplicationStatus = "approved"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// IsTerminal reports whether the application can no longer change state
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationRejected || s == ApplicationWithdrawn
}

// Application is a tenant's request to rent a specific unit
type Application struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	TenantID   uint              `gorm:"index;not null" json:"tenant_id"`
	UnitID     uint              `gorm:"index;not null" json:"unit_id"`
	Unit       Unit              `gorm:"foreignKey:UnitID" json:"-"`
	Status     ApplicationStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	MoveInDate time.Time         `json:"move_in_date"`
	Message    string            `json:"message"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	DeletedAt  gorm.DeletedAt    `gorm:"index" json:"-"`
}
