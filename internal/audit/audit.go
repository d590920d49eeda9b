// Package audit writes the append-only audit trail. Entries are written on
// every core transition, success or failure, so state can be reconstructed
// without replaying raw requests.
package audit

import (
	"encoding/json"
	"tenancy-service/internal/model"
	"tenancy-service/pkg/database"
	"tenancy-service/pkg/logger"

	"go.uber.org/zap"
)

// Entry describes one auditable action
type Entry struct {
	ActorID    uint
	Action     string
	EntityType string
	EntityID   uint
	Changes    interface{}
	IPAddress  string
	UserAgent  string
}

// Record persists an audit entry. A failed write is logged but never
// propagated: audit failures must not abort the transition they describe.
func Record(e Entry) {
	log := logger.GetLogger()

	changes := ""
	if e.Changes != nil {
		if raw, err := json.Marshal(e.Changes); err == nil {
			changes = string(raw)
		} else {
			log.Warn("Failed to serialize audit changes",
				zap.String("action", e.Action), zap.Error(err))
		}
	}

	row := model.AuditLog{
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Changes:    changes,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
	}

	if err := database.GetDB().Create(&row).Error; err != nil {
		log.Error("Failed to write audit log",
			zap.String("action", e.Action),
			zap.String("entity_type", e.EntityType),
			zap.Uint("entity_id", e.EntityID),
			zap.Error(err))
	}
}
