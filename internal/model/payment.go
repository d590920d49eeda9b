package model

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus represents the state of one external gateway transaction
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment records one transaction at the payment gateway. Reference is the
// gateway's transaction reference and doubles as the idempotency key: the
// unique index is the backstop that makes duplicate webhook deliveries safe
// regardless of what the check-then-act guard saw.
type Payment struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Reference     string         `gorm:"uniqueIndex;not null" json:"reference"`
	TenantID      uint           `gorm:"index;not null" json:"tenant_id"`
	InvoiceID     *uint          `gorm:"index" json:"invoice_id,omitempty"`
	ApplicationID *uint          `gorm:"index" json:"application_id,omitempty"`
	Amount        int64          `gorm:"not null" json:"amount"`
	Status        PaymentStatus  `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Channel       string         `json:"channel"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
	Notes         string         `json:"notes"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a reference when the caller did not supply one
func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.Reference == "" {
		p.Reference = generatePaymentReference()
	}
	return nil
}
