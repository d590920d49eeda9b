package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"tenancy-service/internal/audit"
	"tenancy-service/internal/model"
	"tenancy-service/internal/notify"
	"tenancy-service/pkg/database"
	"tenancy-service/pkg/gateway"
	"tenancy-service/pkg/logger"
	"tenancy-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// webhookEvent is the gateway's webhook payload
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string                 `json:"reference"`
		Amount    int64                  `json:"amount"`
		Channel   string                 `json:"channel"`
		PaidAt    string                 `json:"paid_at"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"data"`
}

// PaymentWebhook processes gateway payment events. The contract with the
// gateway: once the delivery is authenticated and maps to a known payment,
// the response is 200, duplicates included, even when downstream
// cascades (notifications, agreement drafting) fail. A non-200 tells the
// gateway to retry, which is only correct for signature, parse, and
// unknown-reference failures.
func PaymentWebhook(c echo.Context) error {
	log := logger.FromContext(c)

	// The signature covers the raw bytes; read them before any parsing.
	// Hashing a re-serialized body would not match what the gateway signed.
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.Error("Failed to read webhook body", zap.Error(err))
		return errJSON(c, http.StatusBadRequest, "validation_error", "Could not read request body")
	}

	if cfg == nil || cfg.Gateway.WebhookSecret == "" {
		// Deployment error, not an authentication failure
		log.Error("Webhook secret not configured")
		prometheus.WebhookRejectedCounter.With(map[string]string{"reason": "config"}).Inc()
		return errJSON(c, http.StatusInternalServerError, "config_error", "Webhook secret not configured")
	}

	signature := c.Request().Header.Get("X-Signature")
	if !gateway.VerifySignature(cfg.Gateway.WebhookSecret, raw, signature) {
		log.Warn("Webhook signature verification failed", zap.String("ip", c.RealIP()))
		prometheus.WebhookRejectedCounter.With(map[string]string{"reason": "signature"}).Inc()
		return errJSON(c, http.StatusUnauthorized, "invalid_signature", "Webhook signature verification failed")
	}

	var event webhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Error("Failed to parse webhook payload", zap.Error(err))
		prometheus.WebhookRejectedCounter.With(map[string]string{"reason": "parse"}).Inc()
		return errJSON(c, http.StatusBadRequest, "validation_error", "Could not parse webhook payload")
	}

	log = log.With(zap.String("event", event.Event), zap.String("reference", event.Data.Reference))

	switch event.Event {
	case "charge.success":
		return handleChargeSuccess(c, log, &event)
	case "charge.failed":
		return handleChargeFailed(c, log, &event)
	default:
		log.Info("Ignoring unhandled webhook event")
		prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "ignored"}).Inc()
		return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Event ignored"})
	}
}

func handleChargeSuccess(c echo.Context, log *zap.Logger, event *webhookEvent) error {
	db := database.GetDB()

	var payment model.Payment
	if err := db.Where("reference = ?", event.Data.Reference).First(&payment).Error; err != nil {
		// A success event for a reference we never issued is a data
		// integrity problem, not an authentication one.
		log.Error("Webhook for unknown payment reference")
		prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "unknown_reference"}).Inc()
		return errJSON(c, http.StatusNotFound, "not_found", "Unknown payment reference")
	}

	if payment.Status != model.PaymentPending {
		// Duplicate delivery: acknowledge without re-applying any effect
		log.Info("Duplicate webhook delivery, already finalized",
			zap.String("status", string(payment.Status)))
		prometheus.DuplicateWebhookCounter.Inc()
		prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "duplicate"}).Inc()
		return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Already processed"})
	}

	amount := event.Data.Amount
	if amount <= 0 {
		amount = payment.Amount
	}
	now := time.Now()

	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		// Guarded terminal transition: only one delivery can move the row
		// out of pending, whatever the earlier read saw.
		res := tx.Model(&model.Payment{}).
			Where("id = ? AND status = ?", payment.ID, model.PaymentPending).
			Updates(map[string]interface{}{
				"status":  model.PaymentPaid,
				"paid_at": now,
				"channel": event.Data.Channel,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent duplicate delivery
			return nil
		}
		applied = true

		if payment.InvoiceID != nil {
			var invoice model.Invoice
			if err := tx.First(&invoice, *payment.InvoiceID).Error; err != nil {
				return err
			}
			paid := invoice.PaidAmount + amount
			return tx.Model(&invoice).Updates(map[string]interface{}{
				"paid_amount": paid,
				"status":      invoice.StatusForPaidAmount(paid),
			}).Error
		}
		return nil
	})
	if err != nil {
		// The payment row is unchanged; let the gateway retry
		log.Error("Failed to apply payment", zap.Uint("payment_id", payment.ID), zap.Error(err))
		prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "error"}).Inc()
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to apply payment")
	}

	if !applied {
		log.Info("Concurrent duplicate delivery absorbed by guarded update")
		prometheus.DuplicateWebhookCounter.Inc()
		prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "duplicate"}).Inc()
		return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Already processed"})
	}

	prometheus.PaymentProcessedCounter.With(map[string]string{"status": string(model.PaymentPaid)}).Inc()
	prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "processed"}).Inc()

	audit.Record(audit.Entry{
		ActorID:    payment.TenantID,
		Action:     "payment.confirmed",
		EntityType: "payment",
		EntityID:   payment.ID,
		Changes: echo.Map{
			"reference":    payment.Reference,
			"amount":       amount,
			"channel":      event.Data.Channel,
			"verification": "webhook_hmac",
		},
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})

	// Everything past this point is best-effort cascade: the money has
	// moved, so the gateway gets a 200 no matter what fails below.
	notify.Send(payment.TenantID, notify.TypePaymentReceived,
		"Payment received", "Your payment was confirmed.")
	if landlordID, ok := landlordForPayment(db, &payment); ok {
		notify.Send(landlordID, notify.TypePaymentReceived,
			"Payment received", "A tenant payment was confirmed.")
	}

	if payment.ApplicationID != nil {
		if err := ensureDraftAgreement(db, log, &payment); err != nil {
			log.Error("Agreement drafting failed after payment",
				zap.Uint("application_id", *payment.ApplicationID), zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Payment processed"})
}

func handleChargeFailed(c echo.Context, log *zap.Logger, event *webhookEvent) error {
	db := database.GetDB()

	var payment model.Payment
	if err := db.Where("reference = ?", event.Data.Reference).First(&payment).Error; err != nil {
		log.Error("Webhook for unknown payment reference")
		prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "unknown_reference"}).Inc()
		return errJSON(c, http.StatusNotFound, "not_found", "Unknown payment reference")
	}

	if payment.Status != model.PaymentPending {
		log.Info("Duplicate webhook delivery, already finalized",
			zap.String("status", string(payment.Status)))
		prometheus.DuplicateWebhookCounter.Inc()
		prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "duplicate"}).Inc()
		return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Already processed"})
	}

	reason := "charge failed at gateway"
	if msg, ok := event.Data.Metadata["failure_reason"].(string); ok && msg != "" {
		reason = msg
	}

	res := db.Model(&model.Payment{}).
		Where("id = ? AND status = ?", payment.ID, model.PaymentPending).
		Updates(map[string]interface{}{
			"status": model.PaymentFailed,
			"notes":  reason,
		})
	if res.Error != nil {
		log.Error("Failed to record payment failure", zap.Uint("payment_id", payment.ID), zap.Error(res.Error))
		prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "error"}).Inc()
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to record payment failure")
	}

	if res.RowsAffected > 0 {
		prometheus.PaymentProcessedCounter.With(map[string]string{"status": string(model.PaymentFailed)}).Inc()
		audit.Record(audit.Entry{
			ActorID:    payment.TenantID,
			Action:     "payment.failed",
			EntityType: "payment",
			EntityID:   payment.ID,
			Changes:    echo.Map{"reference": payment.Reference, "reason": reason},
			IPAddress:  c.RealIP(),
			UserAgent:  c.Request().UserAgent(),
		})
		notify.Send(payment.TenantID, notify.TypePaymentFailed,
			"Payment failed", "Your payment could not be completed: "+reason)
	} else {
		prometheus.DuplicateWebhookCounter.Inc()
	}

	// No cascade on failure: invoice and unit are untouched
	prometheus.WebhookEventCounter.With(map[string]string{"event": event.Event, "result": "processed"}).Inc()
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Payment failure recorded"})
}

// ensureDraftAgreement drafts the tenancy agreement once the initial payment
// for an application has cleared. No-op when one already exists for the
// application.
func ensureDraftAgreement(db *gorm.DB, log *zap.Logger, payment *model.Payment) error {
	var existing int64
	db.Model(&model.TenancyAgreement{}).
		Where("application_id = ?", *payment.ApplicationID).
		Count(&existing)
	if existing > 0 {
		return nil
	}

	var application model.Application
	if err := db.Preload("Unit.Property").First(&application, *payment.ApplicationID).Error; err != nil {
		return err
	}

	start := application.MoveInDate
	if start.IsZero() {
		start = time.Now()
	}
	end := start.Add(cfg.Billing.DefaultLeaseTerm)

	appID := application.ID
	agreement := model.TenancyAgreement{
		ApplicationID: &appID,
		UnitID:        application.UnitID,
		PropertyID:    application.Unit.PropertyID,
		TenantID:      application.TenantID,
		LandlordID:    application.Unit.Property.LandlordID,
		StartDate:     start,
		EndDate:       end,
		RentAmount:    application.Unit.RentAmount,
		DepositAmount: application.Unit.DepositAmount,
		Status:        model.AgreementDraft,
	}
	if err := db.Create(&agreement).Error; err != nil {
		return err
	}
	prometheus.AgreementCreatedCounter.Inc()

	log.Info("Draft agreement created",
		zap.Uint("agreement_id", agreement.ID),
		zap.Uint("application_id", application.ID))

	notify.Send(agreement.TenantID, notify.TypeAgreementReady,
		"Agreement ready", "Your tenancy agreement is ready for signature.")
	notify.Send(agreement.LandlordID, notify.TypeAgreementReady,
		"Agreement ready", "A tenancy agreement is ready for your signature.")

	return nil
}

// landlordForPayment resolves the landlord behind a payment, via the
// application's unit or the invoice's agreement.
func landlordForPayment(db *gorm.DB, payment *model.Payment) (uint, bool) {
	if payment.ApplicationID != nil {
		var application model.Application
		if err := db.Preload("Unit.Property").First(&application, *payment.ApplicationID).Error; err == nil {
			return application.Unit.Property.LandlordID, true
		}
	}
	if payment.InvoiceID != nil {
		var invoice model.Invoice
		if err := db.First(&invoice, *payment.InvoiceID).Error; err == nil && invoice.AgreementID != nil {
			var agreement model.TenancyAgreement
			if err := db.First(&agreement, *invoice.AgreementID).Error; err == nil {
				return agreement.LandlordID, true
			}
		}
	}
	return 0, false
}

// VerifyPayment re-queries the gateway for a reference and returns the
// gateway's view next to the local record. Read-only reconciliation: no
// state is mutated here.
func VerifyPayment(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req struct {
		Reference string `json:"reference"`
	}
	if err := c.Bind(&req); err != nil || req.Reference == "" {
		return errJSON(c, http.StatusBadRequest, "validation_error", "Reference is required")
	}

	var payment model.Payment
	if err := database.GetDB().Where("reference = ?", req.Reference).First(&payment).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Unknown payment reference")
	}
	if payment.TenantID != claims.UserID {
		return errJSON(c, http.StatusForbidden, "forbidden", "Not your payment")
	}

	remote, err := gatewayClient.VerifyTransaction(req.Reference)
	if err != nil {
		log.Error("Gateway verification failed", zap.String("reference", req.Reference), zap.Error(err))
		return errJSON(c, http.StatusBadGateway, "upstream_failure", "Payment gateway is unreachable")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"reference":      payment.Reference,
			"local_status":   payment.Status,
			"gateway_status": remote.Status,
			"local_amount":   payment.Amount,
			"gateway_amount": remote.Amount,
			"channel":        remote.Channel,
			"consistent":     string(payment.Status) == remote.Status && payment.Amount == remote.Amount,
		},
	})
}
