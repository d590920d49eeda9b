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

// SubmitApplication files a tenant's request to rent an available unit
func SubmitApplication(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req struct {
		UnitID     uint   `json:"unit_id"`
		MoveInDate string `json:"move_in_date"`
		Message    string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse application request", zap.Error(err))
		return errJSON(c, http.StatusBadRequest, "validation_error", "Could not parse request body")
	}
	if req.UnitID == 0 {
		return errJSON(c, http.StatusBadRequest, "validation_error", "Unit ID is required")
	}

	db := database.GetDB()
	var unit model.Unit
	if err := db.First(&unit, req.UnitID).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Unit not found")
	}
	if unit.ListingStatus != model.ListingAvailable {
		return errJSON(c, http.StatusConflict, "unit_unavailable", "Unit is not available for applications")
	}

	moveIn := time.Now()
	if req.MoveInDate != "" {
		parsed, err := time.Parse("2006-01-02", req.MoveInDate)
		if err != nil {
			return errJSON(c, http.StatusBadRequest, "validation_error", "move_in_date must be YYYY-MM-DD")
		}
		moveIn = parsed
	}

	application := model.Application{
		TenantID:   claims.UserID,
		UnitID:     unit.ID,
		Status:     model.ApplicationPending,
		MoveInDate: moveIn,
		Message:    req.Message,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&application).Error; err != nil {
		log.Error("Failed to create application", zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to submit application")
	}

	audit.Record(audit.Entry{
		ActorID:    claims.UserID,
		Action:     "application.submitted",
		EntityType: "application",
		EntityID:   application.ID,
		Changes:    echo.Map{"unit_id": unit.ID},
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})

	return c.JSON(http.StatusCreated, application)
}

// ApproveApplication is the landlord's acceptance of an application. The
// application moves to approved, the unit is locked to applied, and the
// initial-payment invoice (rent + deposit) is created. Invoice creation is
// idempotent, so a retried approval never bills twice.
func ApproveApplication(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	db := database.GetDB()
	var application model.Application
	if err := db.Preload("Unit.Property").First(&application, "id = ?", c.Param("id")).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Application not found")
	}
	if application.Unit.Property.LandlordID != claims.UserID {
		log.Warn("Approval denied: caller is not the landlord",
			zap.Uint("application_id", application.ID), zap.Uint("caller_id", claims.UserID))
		return errJSON(c, http.StatusForbidden, "forbidden", "Only the landlord can approve this application")
	}
	if application.Status != model.ApplicationPending {
		return errJSON(c, http.StatusConflict, "invalid_state", "Application is not pending")
	}
	if application.Unit.ListingStatus != model.ListingAvailable {
		return errJSON(c, http.StatusConflict, "unit_unavailable", "Unit is no longer available")
	}

	// Approval and the unit lock succeed or fail together
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&application).Update("status", model.ApplicationApproved).Error; err != nil {
			return err
		}
		return tx.Model(&model.Unit{}).Where("id = ?", application.UnitID).
			Update("listing_status", model.ListingApplied).Error
	})
	if err != nil {
		log.Error("Failed to approve application",
			zap.Uint("application_id", application.ID), zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to approve application")
	}
	application.Status = model.ApplicationApproved

	invoice, created, err := ensureApplicationInvoice(&application, &application.Unit, nil)
	if err != nil {
		// The approval itself stands; invoice creation can be retried by
		// re-hitting this endpoint, which is a no-op for the status change.
		log.Error("Failed to create initial-payment invoice",
			zap.Uint("application_id", application.ID), zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Approved, but invoice creation failed")
	}

	audit.Record(audit.Entry{
		ActorID:    claims.UserID,
		Action:     "application.approved",
		EntityType: "application",
		EntityID:   application.ID,
		Changes:    echo.Map{"invoice_id": invoice.ID, "invoice_created": created},
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"application": application,
		"invoice":     invoice,
	})
}

// RejectApplication is the landlord's refusal. Terminal for the application;
// releases the unit if this application was holding it.
func RejectApplication(c echo.Context) error {
	return closeApplication(c, model.ApplicationRejected, false)
}

// WithdrawApplication lets the tenant pull their own application. Terminal;
// releases the unit if it was held.
func WithdrawApplication(c echo.Context) error {
	return closeApplication(c, model.ApplicationWithdrawn, true)
}

func closeApplication(c echo.Context, to model.ApplicationStatus, byTenant bool) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	db := database.GetDB()
	var application model.Application
	if err := db.Preload("Unit.Property").First(&application, "id = ?", c.Param("id")).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Application not found")
	}

	if byTenant {
		if application.TenantID != claims.UserID {
			return errJSON(c, http.StatusForbidden, "forbidden", "Only the applicant can withdraw")
		}
	} else if application.Unit.Property.LandlordID != claims.UserID {
		return errJSON(c, http.StatusForbidden, "forbidden", "Only the landlord can reject")
	}

	if application.Status.IsTerminal() {
		return errJSON(c, http.StatusConflict, "invalid_state", "Application is already closed")
	}

	wasApproved := application.Status == model.ApplicationApproved

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&application).Update("status", to).Error; err != nil {
			return err
		}

		// Release the unit only when this application held it and no
		// agreement has taken over the hold.
		if wasApproved && application.Unit.ListingStatus == model.ListingApplied {
			var holding int64
			tx.Model(&model.TenancyAgreement{}).
				Where("application_id = ? AND status NOT IN ?", application.ID,
					[]model.AgreementStatus{model.AgreementTerminated, model.AgreementExpired}).
				Count(&holding)
			if holding == 0 {
				if err := tx.Model(&model.Unit{}).Where("id = ?", application.UnitID).
					Update("listing_status", model.ListingAvailable).Error; err != nil {
					return err
				}
			}
		}

		// An unpaid initial-payment invoice for a dead application is
		// cancelled so it cannot be settled later.
		return tx.Model(&model.Invoice{}).
			Where("application_id = ? AND invoice_type = ? AND status IN ?",
				application.ID, model.InvoiceInitialPayment,
				[]model.InvoiceStatus{model.InvoicePending, model.InvoiceOverdue}).
			Update("status", model.InvoiceCancelled).Error
	})
	if err != nil {
		log.Error("Failed to close application",
			zap.Uint("application_id", application.ID), zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to update application")
	}
	application.Status = to

	audit.Record(audit.Entry{
		ActorID:    claims.UserID,
		Action:     fmt.Sprintf("application.%s", to),
		EntityType: "application",
		EntityID:   application.ID,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})

	return c.JSON(http.StatusOK, application)
}

// ensureApplicationInvoice creates the initial-payment invoice for an
// approved application or returns the one that already exists. Idempotent
// per application. The notification to the tenant is best-effort.
func ensureApplicationInvoice(application *model.Application, unit *model.Unit, dueDate *time.Time) (*model.Invoice, bool, error) {
	db := database.GetDB()

	var existing model.Invoice
	err := db.Where("application_id = ? AND invoice_type = ?", application.ID, model.InvoiceInitialPayment).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	due := time.Now().AddDate(0, 0, cfg.Billing.InvoiceDueDays)
	if dueDate != nil {
		due = *dueDate
	}

	appID := application.ID
	invoice := model.Invoice{
		TenantID:      application.TenantID,
		ApplicationID: &appID,
		InvoiceType:   model.InvoiceInitialPayment,
		Status:        model.InvoicePending,
		RentAmount:    unit.RentAmount,
		DepositAmount: unit.DepositAmount,
		TotalAmount:   unit.RentAmount + unit.DepositAmount,
		DueDate:       due,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&invoice).Error; err != nil {
		return nil, false, err
	}
	prometheus.InvoiceCreatedCounter.With(map[string]string{"type": string(model.InvoiceInitialPayment)}).Inc()

	notify.Send(application.TenantID, notify.TypeInvoiceCreated,
		"Initial payment due",
		fmt.Sprintf("Your application was approved. Amount due: %d (rent %d + deposit %d) by %s.",
			invoice.TotalAmount, invoice.RentAmount, invoice.DepositAmount,
			invoice.DueDate.Format("2006-01-02")))

	return &invoice, true, nil
}
