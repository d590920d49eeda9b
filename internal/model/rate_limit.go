package model

import "time"

// RateLimitCounter is one actor's hit count inside one fixed time window.
// Counts live in the shared database rather than a process-local map so a
// multi-instance deployment sees one consistent limit per actor.
type RateLimitCounter struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ActorKey    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_actor_window" json:"actor_key"`
	WindowStart time.Time `gorm:"not null;uniqueIndex:idx_actor_window" json:"window_start"`
	Count       int       `gorm:"not null;default:0" json:"count"`
}
