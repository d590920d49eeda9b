package model

import "time"

// AuditLog is an append-only trail of who did what to which entity. Changes
// holds a JSON snapshot of the mutation. Rows are never updated or deleted.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorID    uint      `gorm:"index" json:"actor_id"`
	Action     string    `gorm:"index;not null" json:"action"`
	EntityType string    `gorm:"index;not null" json:"entity_type"`
	EntityID   uint      `gorm:"index" json:"entity_id"`
	Changes    string    `gorm:"type:text" json:"changes"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
}
