package model

import (
	"time"

	"gorm.io/gorm"
)

// AgreementStatus represents the lifecycle state of a tenancy agreement
type AgreementStatus string

const (
	AgreementDraft      AgreementStatus = "draft"
	AgreementSent       AgreementStatus = "sent"
	AgreementSigned     AgreementStatus = "signed"
	AgreementActive     AgreementStatus = "active"
	AgreementExpired    AgreementStatus = "expired"
	AgreementTerminated AgreementStatus = "terminated"
)

// IsEnded reports whether the agreement no longer holds the unit
func (s AgreementStatus) IsEnded() bool {
	return s == AgreementTerminated || s == AgreementExpired
}

// TenancyAgreement is the lease contract between tenant and landlord for one
// unit. AgreementHash is the canonical digest of the economic terms; it is
// set when the first party signs and must never change afterwards. A
// mismatch on a later signing attempt means the document was tampered with.
type TenancyAgreement struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ApplicationID    *uint           `gorm:"index" json:"application_id,omitempty"`
	UnitID           uint            `gorm:"index;not null" json:"unit_id"`
	PropertyID       uint            `gorm:"index;not null" json:"property_id"`
	TenantID         uint            `gorm:"index;not null" json:"tenant_id"`
	LandlordID       uint            `gorm:"index;not null" json:"landlord_id"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	RentAmount       int64           `gorm:"not null" json:"rent_amount"`
	DepositAmount    int64           `gorm:"not null" json:"deposit_amount"`
	Terms            string          `json:"terms"`
	Status           AgreementStatus `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`
	AgreementHash    string          `gorm:"type:varchar(64)" json:"agreement_hash"`
	AgreementVersion int             `gorm:"not null;default:1" json:"agreement_version"`
	SignedAt         *time.Time      `json:"signed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}
