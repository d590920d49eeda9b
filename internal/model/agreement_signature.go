package model

import "time"

// SignerRole identifies which party to the agreement is signing
type SignerRole string

const (
	SignerTenant   SignerRole = "tenant"
	SignerLandlord SignerRole = "landlord"
)

// AgreementSignature is one party's acknowledgment of an agreement's content
// hash, with audit metadata. Rows are append-only legal records: there is no
// update path and no soft delete. The composite unique index enforces at
// most one signature per signer per agreement at the storage layer.
type AgreementSignature struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	AgreementID       uint       `gorm:"not null;uniqueIndex:idx_agreement_signer" json:"agreement_id"`
	SignerID          uint       `gorm:"not null;uniqueIndex:idx_agreement_signer" json:"signer_id"`
	SignerRole        SignerRole `gorm:"type:varchar(10);not null" json:"signer_role"`
	SignedHash        string     `gorm:"type:varchar(64);not null" json:"signed_hash"`
	IPAddress         string     `json:"ip_address"`
	UserAgent         string     `json:"user_agent"`
	DeviceFingerprint string     `json:"device_fingerprint"`
	CreatedAt         time.Time  `json:"created_at"`
}
