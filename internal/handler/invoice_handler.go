package handler

import (
	"errors"
	"fmt"
	"net/http"
	"tenancy-service/internal/audit"
	"tenancy-service/internal/model"
	"tenancy-service/internal/notify"
	"tenancy-service/pkg/database"
	"tenancy-service/pkg/logger"
	"tenancy-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetInvoice retrieves one invoice visible to the caller
func GetInvoice(c echo.Context) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var invoice model.Invoice
	if err := database.GetDB().First(&invoice, "id = ?", c.Param("id")).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Invoice not found")
	}
	if invoice.TenantID != claims.UserID {
		return errJSON(c, http.StatusForbidden, "forbidden", "Not your invoice")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"invoice":     invoice,
		"balance_due": invoice.BalanceDue(),
	})
}

// ListInvoices returns the caller's invoices, newest first
func ListInvoices(c echo.Context) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var invoices []model.Invoice
	if err := database.GetDB().
		Where("tenant_id = ?", claims.UserID).
		Order("created_at DESC").
		Find(&invoices).Error; err != nil {
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to list invoices")
	}

	return c.JSON(http.StatusOK, invoices)
}

// InitiatePayment starts a gateway charge for an invoice: it records the
// pending Payment row whose unique reference the webhook will later resolve.
// Re-initiating while a pending payment exists returns that payment instead
// of minting another reference.
func InitiatePayment(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	db := database.GetDB()
	var invoice model.Invoice
	if err := db.First(&invoice, "id = ?", c.Param("id")).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Invoice not found")
	}
	if invoice.TenantID != claims.UserID {
		return errJSON(c, http.StatusForbidden, "forbidden", "Not your invoice")
	}
	if invoice.Status == model.InvoicePaid || invoice.Status == model.InvoiceCancelled {
		return errJSON(c, http.StatusConflict, "invalid_state", "Invoice is not payable")
	}

	var existing model.Payment
	err := db.Where("invoice_id = ? AND status = ?", invoice.ID, model.PaymentPending).
		First(&existing).Error
	if err == nil {
		return c.JSON(http.StatusOK, existing)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("Failed to look up pending payment", zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to initiate payment")
	}

	invoiceID := invoice.ID
	payment := model.Payment{
		TenantID:      invoice.TenantID,
		InvoiceID:     &invoiceID,
		ApplicationID: invoice.ApplicationID,
		Amount:        invoice.BalanceDue(),
		Status:        model.PaymentPending,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&payment).Error; err != nil {
		log.Error("Failed to create payment", zap.Uint("invoice_id", invoice.ID), zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to initiate payment")
	}

	audit.Record(audit.Entry{
		ActorID:    claims.UserID,
		Action:     "payment.initiated",
		EntityType: "payment",
		EntityID:   payment.ID,
		Changes:    echo.Map{"reference": payment.Reference, "amount": payment.Amount},
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})

	return c.JSON(http.StatusCreated, payment)
}

// GenerateRentInvoices is the recurring billing job entry point. For every
// fully-signed agreement whose lease has started it cuts at most one
// monthly_rent invoice per calendar month, so re-running the job is safe.
// Signed agreements whose start date has arrived are promoted to active on
// the way through.
func GenerateRentInvoices(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	db := database.GetDB()
	now := time.Now()

	var agreements []model.TenancyAgreement
	if err := db.
		Where("status IN ? AND start_date <= ? AND end_date > ?",
			[]model.AgreementStatus{model.AgreementSigned, model.AgreementActive}, now, now).
		Find(&agreements).Error; err != nil {
		log.Error("Failed to load agreements for billing", zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to generate invoices")
	}

	generated := 0
	skipped := 0
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for i := range agreements {
		agreement := &agreements[i]

		if agreement.Status == model.AgreementSigned {
			if err := db.Model(agreement).Update("status", model.AgreementActive).Error; err != nil {
				log.Error("Failed to activate agreement",
					zap.Uint("agreement_id", agreement.ID), zap.Error(err))
				continue
			}
			agreement.Status = model.AgreementActive
		}

		// One monthly_rent invoice per agreement per calendar month
		var existing int64
		db.Model(&model.Invoice{}).
			Where("agreement_id = ? AND invoice_type = ? AND created_at >= ?",
				agreement.ID, model.InvoiceMonthlyRent, monthStart).
			Count(&existing)
		if existing > 0 {
			skipped++
			continue
		}

		agreementID := agreement.ID
		invoice := model.Invoice{
			TenantID:    agreement.TenantID,
			AgreementID: &agreementID,
			InvoiceType: model.InvoiceMonthlyRent,
			Status:      model.InvoicePending,
			RentAmount:  agreement.RentAmount,
			TotalAmount: agreement.RentAmount,
			DueDate:     now.AddDate(0, 0, cfg.Billing.InvoiceDueDays),
		}
		if err := db.Create(&invoice).Error; err != nil {
			log.Error("Failed to create rent invoice",
				zap.Uint("agreement_id", agreement.ID), zap.Error(err))
			continue
		}
		prometheus.InvoiceCreatedCounter.With(map[string]string{"type": string(model.InvoiceMonthlyRent)}).Inc()
		generated++

		notify.Send(agreement.TenantID, notify.TypeInvoiceCreated,
			"Rent due",
			fmt.Sprintf("Rent of %d is due by %s.",
				invoice.TotalAmount, invoice.DueDate.Format("2006-01-02")))
	}

	log.Info("Rent invoice generation completed",
		zap.Int("generated", generated), zap.Int("skipped", skipped))

	audit.Record(audit.Entry{
		ActorID:    claims.UserID,
		Action:     "invoice.rent_generation",
		EntityType: "invoice",
		Changes:    echo.Map{"generated": generated, "skipped": skipped},
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"generated": generated,
		"skipped":   skipped,
	})
}
