package handler

import (
	"errors"
	"net/http"
	"tenancy-service/internal/audit"
	"tenancy-service/internal/model"
	"tenancy-service/internal/notify"
	"tenancy-service/pkg/database"
	"tenancy-service/pkg/hashutil"
	"tenancy-service/pkg/logger"
	"tenancy-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetAgreement retrieves one agreement, visible only to its parties
func GetAgreement(c echo.Context) error {
	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var agreement model.TenancyAgreement
	if err := database.GetDB().First(&agreement, "id = ?", c.Param("id")).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Agreement not found")
	}
	if claims.UserID != agreement.TenantID && claims.UserID != agreement.LandlordID {
		return errJSON(c, http.StatusForbidden, "forbidden", "You are not a party to this agreement")
	}

	var signatures []model.AgreementSignature
	database.GetDB().Where("agreement_id = ?", agreement.ID).Find(&signatures)

	return c.JSON(http.StatusOK, echo.Map{
		"agreement":  agreement,
		"signatures": signatures,
	})
}

// SignAgreement records the caller's signature on an agreement. The
// "signature" is an authenticated acknowledgment of the agreement's content
// hash plus audit metadata, recorded immutably. It is not a cryptographic
// digital signature; non-repudiation comes from authentication and the audit
// trail, not from PKI.
//
// The hash is recomputed from the agreement's current terms on every signing
// attempt. Once a stored hash exists (set by the first signature), any
// divergence means the document changed under an existing signature and the
// attempt is blocked as tampering.
func SignAgreement(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req struct {
		AgreementID       uint   `json:"agreementId"`
		DeviceFingerprint string `json:"deviceFingerprint"`
	}
	if err := c.Bind(&req); err != nil || req.AgreementID == 0 {
		return errJSON(c, http.StatusBadRequest, "validation_error", "agreementId is required")
	}

	db := database.GetDB()
	var agreement model.TenancyAgreement
	if err := db.First(&agreement, req.AgreementID).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Agreement not found")
	}

	log = log.With(zap.Uint("agreement_id", agreement.ID), zap.Uint("signer_id", claims.UserID))

	// The caller must be one of the two parties
	var role model.SignerRole
	switch claims.UserID {
	case agreement.TenantID:
		role = model.SignerTenant
	case agreement.LandlordID:
		role = model.SignerLandlord
	default:
		log.Warn("Signing denied: caller is not a party")
		audit.Record(audit.Entry{
			ActorID: claims.UserID, Action: "agreement.sign_denied",
			EntityType: "agreement", EntityID: agreement.ID,
			IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent(),
		})
		return errJSON(c, http.StatusForbidden, "forbidden", "You are not a party to this agreement")
	}

	if agreement.Status.IsEnded() {
		return errJSON(c, http.StatusConflict, "invalid_state", "Agreement is no longer signable")
	}

	var existing int64
	db.Model(&model.AgreementSignature{}).
		Where("agreement_id = ? AND signer_id = ?", agreement.ID, claims.UserID).
		Count(&existing)
	if existing > 0 {
		return errJSON(c, http.StatusConflict, "already_signed", "You have already signed this agreement")
	}

	computed := hashForAgreement(&agreement)
	if agreement.AgreementHash != "" && agreement.AgreementHash != computed {
		log.Error("Agreement hash mismatch, blocking signature",
			zap.String("stored", agreement.AgreementHash),
			zap.String("computed", computed))
		prometheus.TamperDetectedCounter.Inc()
		audit.Record(audit.Entry{
			ActorID: claims.UserID, Action: "agreement.tamper_detected",
			EntityType: "agreement", EntityID: agreement.ID,
			Changes:   echo.Map{"stored_hash": agreement.AgreementHash, "computed_hash": computed},
			IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent(),
		})
		return errJSON(c, http.StatusBadRequest, "tamper_detected",
			"Agreement content changed after it was signed; signing is blocked")
	}

	signature := model.AgreementSignature{
		AgreementID:       agreement.ID,
		SignerID:          claims.UserID,
		SignerRole:        role,
		SignedHash:        computed,
		IPAddress:         c.RealIP(),
		UserAgent:         c.Request().UserAgent(),
		DeviceFingerprint: req.DeviceFingerprint,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&signature).Error; err != nil {
		// The unique (agreement_id, signer_id) index is the real guard; a
		// concurrent duplicate that slipped past the count lands here.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errJSON(c, http.StatusConflict, "already_signed", "You have already signed this agreement")
		}
		log.Error("Failed to record signature", zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to record signature")
	}
	prometheus.SignatureCounter.With(map[string]string{"role": string(role)}).Inc()

	// First signature pins the hash and moves draft to sent
	updates := map[string]interface{}{}
	if agreement.AgreementHash == "" {
		updates["agreement_hash"] = computed
		agreement.AgreementHash = computed
	}
	if agreement.Status == model.AgreementDraft {
		updates["status"] = model.AgreementSent
		agreement.Status = model.AgreementSent
	}
	if len(updates) > 0 {
		if err := db.Model(&agreement).Updates(updates).Error; err != nil {
			log.Error("Failed to update agreement after signature", zap.Error(err))
		}
	}

	// Re-query the ledger: promotion requires both roles present
	var signatures []model.AgreementSignature
	if err := db.Where("agreement_id = ?", agreement.ID).Find(&signatures).Error; err != nil {
		log.Error("Failed to load signatures", zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to load signatures")
	}
	hasTenant, hasLandlord := false, false
	for _, s := range signatures {
		switch s.SignerRole {
		case model.SignerTenant:
			hasTenant = true
		case model.SignerLandlord:
			hasLandlord = true
		}
	}
	bothSigned := hasTenant && hasLandlord

	if bothSigned {
		now := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&agreement).Updates(map[string]interface{}{
				"status":    model.AgreementSigned,
				"signed_at": now,
			}).Error; err != nil {
				return err
			}
			return tx.Model(&model.Unit{}).Where("id = ?", agreement.UnitID).
				Update("listing_status", model.ListingRented).Error
		})
		if err != nil {
			log.Error("Failed to promote agreement", zap.Error(err))
			return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to finalize agreement")
		}
		agreement.Status = model.AgreementSigned
		agreement.SignedAt = &now
		prometheus.TenancyStartedCounter.Inc()

		notify.Send(agreement.TenantID, notify.TypeTenancyStarted,
			"Tenancy confirmed", "Both parties have signed; your tenancy is confirmed.")
		notify.Send(agreement.LandlordID, notify.TypeTenancyStarted,
			"Tenancy confirmed", "Both parties have signed; the unit is now rented.")
	} else {
		counterparty := agreement.LandlordID
		if role == model.SignerLandlord {
			counterparty = agreement.TenantID
		}
		notify.Send(counterparty, notify.TypeAgreementSigned,
			"Signature recorded", "The other party has signed; your signature is still required.")
	}

	audit.Record(audit.Entry{
		ActorID: claims.UserID, Action: "agreement.signed",
		EntityType: "agreement", EntityID: agreement.ID,
		Changes: echo.Map{
			"role":                string(role),
			"hash":                computed,
			"both_parties_signed": bothSigned,
		},
		IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent(),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"agreementHash":      computed,
			"signatureTimestamp": signature.CreatedAt,
			"signerRole":         role,
			"bothPartiesSigned":  bothSigned,
			"agreementStatus":    agreement.Status,
		},
	})
}

// TerminateAgreement ends a tenancy: the agreement becomes terminated and
// the unit returns to the market.
func TerminateAgreement(c echo.Context) error {
	log := logger.FromContext(c)

	claims, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	db := database.GetDB()
	var agreement model.TenancyAgreement
	if err := db.First(&agreement, "id = ?", c.Param("id")).Error; err != nil {
		return errJSON(c, http.StatusNotFound, "not_found", "Agreement not found")
	}
	if claims.UserID != agreement.LandlordID {
		return errJSON(c, http.StatusForbidden, "forbidden", "Only the landlord can terminate the agreement")
	}
	if agreement.Status.IsEnded() {
		return errJSON(c, http.StatusConflict, "invalid_state", "Agreement is already ended")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&agreement).Update("status", model.AgreementTerminated).Error; err != nil {
			return err
		}
		return tx.Model(&model.Unit{}).Where("id = ?", agreement.UnitID).
			Update("listing_status", model.ListingAvailable).Error
	})
	if err != nil {
		log.Error("Failed to terminate agreement",
			zap.Uint("agreement_id", agreement.ID), zap.Error(err))
		return errJSON(c, http.StatusInternalServerError, "server_error", "Failed to terminate agreement")
	}
	agreement.Status = model.AgreementTerminated

	audit.Record(audit.Entry{
		ActorID: claims.UserID, Action: "agreement.terminated",
		EntityType: "agreement", EntityID: agreement.ID,
		IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent(),
	})

	notify.Send(agreement.TenantID, notify.TypeTenancyEnded,
		"Tenancy ended", "Your tenancy agreement has been terminated.")

	return c.JSON(http.StatusOK, agreement)
}

// hashForAgreement maps an agreement's economic terms onto the canonical
// hash input
func hashForAgreement(a *model.TenancyAgreement) string {
	return hashutil.ComputeAgreementHash(hashutil.AgreementFields{
		TenantID:      a.TenantID,
		LandlordID:    a.LandlordID,
		PropertyID:    a.PropertyID,
		UnitID:        a.UnitID,
		StartDate:     a.StartDate,
		EndDate:       a.EndDate,
		RentAmount:    a.RentAmount,
		DepositAmount: a.DepositAmount,
		Terms:         a.Terms,
		Version:       a.AgreementVersion,
	})
}
