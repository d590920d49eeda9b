package handler_test

import (
	"net/http"
	"testing"

	"tenancy-service/internal/handler"
	"tenancy-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFullTenancyLifecycle walks a unit from available to rented through the
// real handlers: application approval, invoicing, webhook-confirmed payment,
// agreement drafting, and both signatures.
func TestFullTenancyLifecycle(t *testing.T) {
	db := newTestDB(t)

	// Landlord approves the tenant's application
	application, invoice, unit := seedApprovedApplication(t, db)
	require.Equal(t, model.ListingApplied, unit.ListingStatus)
	require.Equal(t, rentAmount+depositAmount, invoice.TotalAmount)
	require.Equal(t, model.InvoicePending, invoice.Status)

	// Tenant initiates the charge; the gateway later confirms it
	payment := seedPendingPayment(t, db, invoice)
	body := successEvent(payment.Reference, invoice.TotalAmount)
	c, rec := rawCtx(body, signedHeaders(body))
	require.NoError(t, handler.PaymentWebhook(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var freshPayment model.Payment
	require.NoError(t, db.First(&freshPayment, payment.ID).Error)
	assert.Equal(t, model.PaymentPaid, freshPayment.Status)

	var freshInvoice model.Invoice
	require.NoError(t, db.First(&freshInvoice, invoice.ID).Error)
	assert.Equal(t, invoice.TotalAmount, freshInvoice.PaidAmount)
	assert.Equal(t, model.InvoicePaid, freshInvoice.Status)

	var agreement model.TenancyAgreement
	require.NoError(t, db.Where("application_id = ?", application.ID).First(&agreement).Error)
	require.Equal(t, model.AgreementDraft, agreement.Status)

	// Tenant signs: agreement goes out for countersignature, unit stays held
	code, signBody := signAs(t, agreement.ID, tenantID)
	require.Equal(t, http.StatusOK, code)
	data := signBody["data"].(map[string]interface{})
	assert.Equal(t, false, data["bothPartiesSigned"])
	assert.Equal(t, "sent", data["agreementStatus"])
	hash := data["agreementHash"].(string)

	var midUnit model.Unit
	require.NoError(t, db.First(&midUnit, unit.ID).Error)
	assert.Equal(t, model.ListingApplied, midUnit.ListingStatus)

	// Landlord countersigns the identical hash: tenancy starts
	code, signBody = signAs(t, agreement.ID, landlordID)
	require.Equal(t, http.StatusOK, code)
	data = signBody["data"].(map[string]interface{})
	assert.Equal(t, true, data["bothPartiesSigned"])
	assert.Equal(t, "signed", data["agreementStatus"])
	assert.Equal(t, hash, data["agreementHash"])

	var finalUnit model.Unit
	require.NoError(t, db.First(&finalUnit, unit.ID).Error)
	assert.Equal(t, model.ListingRented, finalUnit.ListingStatus)

	var finalAgreement model.TenancyAgreement
	require.NoError(t, db.First(&finalAgreement, agreement.ID).Error)
	assert.Equal(t, model.AgreementSigned, finalAgreement.Status)
	assert.Equal(t, hash, finalAgreement.AgreementHash)
	assert.NotNil(t, finalAgreement.SignedAt)
}
