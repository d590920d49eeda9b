package model

import (
	"time"

	"gorm.io/gorm"
)

// InvoiceType classifies what an invoice bills for
type InvoiceType string

const (
	InvoiceInitialPayment InvoiceType = "initial_payment"
	InvoiceMonthlyRent    InvoiceType = "monthly_rent"
	InvoiceLateFee        InvoiceType = "late_fee"
	InvoiceMaintenance    InvoiceType = "maintenance"
	InvoiceOther          InvoiceType = "other"
)

// InvoiceStatus represents payment progress on an invoice
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice is a billing record. An initial_payment invoice links to the
// Application it settles; a monthly_rent invoice links to its Agreement.
// All amounts are minor units. balance_due is always derived, never stored,
// so total_amount - paid_amount cannot drift.
type Invoice struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	TenantID      uint           `gorm:"index;not null" json:"tenant_id"`
	ApplicationID *uint          `gorm:"index" json:"application_id,omitempty"`
	AgreementID   *uint          `gorm:"index" json:"agreement_id,omitempty"`
	InvoiceType   InvoiceType    `gorm:"type:varchar(20);not null" json:"invoice_type"`
	Status        InvoiceStatus  `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	RentAmount    int64          `json:"rent_amount"`
	DepositAmount int64          `json:"deposit_amount"`
	LateFeeAmount int64          `json:"late_fee_amount"`
	OtherAmount   int64          `json:"other_amount"`
	TotalAmount   int64          `gorm:"not null" json:"total_amount"`
	PaidAmount    int64          `gorm:"not null;default:0" json:"paid_amount"`
	DueDate       time.Time      `json:"due_date"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// BalanceDue returns the outstanding amount on the invoice
func (i *Invoice) BalanceDue() int64 {
	return i.TotalAmount - i.PaidAmount
}

// StatusForPaidAmount returns the status an invoice should carry for a given
// paid amount, leaving cancelled invoices alone.
func (i *Invoice) StatusForPaidAmount(paid int64) InvoiceStatus {
	if i.Status == InvoiceCancelled {
		return InvoiceCancelled
	}
	switch {
	case paid >= i.TotalAmount:
		return InvoicePaid
	case paid > 0:
		return InvoicePartial
	default:
		return InvoicePending
	}
}
