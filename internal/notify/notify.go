// Package notify is the fire-and-forget notification sink. Callers treat a
// failed send as a logged event, never as a reason to fail the transition
// that triggered it.
package notify

import (
	"tenancy-service/internal/model"
	"tenancy-service/pkg/database"
	"tenancy-service/pkg/logger"

	"go.uber.org/zap"
)

// Notification types emitted by the core flows
const (
	TypeInvoiceCreated  = "invoice_created"
	TypePaymentReceived = "payment_received"
	TypePaymentFailed   = "payment_failed"
	TypeAgreementReady  = "agreement_ready"
	TypeAgreementSigned = "agreement_signed"
	TypeTenancyStarted  = "tenancy_started"
	TypeTenancyEnded    = "tenancy_ended"
)

// Send writes a notification for the given user. Best-effort: errors are
// logged and swallowed.
func Send(userID uint, notifType, title, message string) {
	n := model.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
	}

	if err := database.GetDB().Create(&n).Error; err != nil {
		logger.GetLogger().Warn("Failed to send notification",
			zap.Uint("user_id", userID),
			zap.String("type", notifType),
			zap.Error(err))
	}
}
