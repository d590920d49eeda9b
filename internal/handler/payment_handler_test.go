package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tenancy-service/internal/handler"
	"tenancy-service/internal/model"
	"tenancy-service/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func successEvent(reference string, amount int64) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data": map[string]interface{}{
			"reference": reference,
			"amount":    amount,
			"channel":   "card",
			"paid_at":   "2026-08-30T10:00:00Z",
			"customer":  map[string]string{"email": "tenant@example.com"},
		},
	})
	return body
}

func signedHeaders(body []byte) map[string]string {
	return map[string]string{"X-Signature": gateway.ComputeSignature(testSecret, body)}
}

func TestPaymentWebhookRejections(t *testing.T) {
	db := newTestDB(t)
	_, invoice, _ := seedApprovedApplication(t, db)
	payment := seedPendingPayment(t, db, invoice)
	body := successEvent(payment.Reference, invoice.TotalAmount)

	t.Run("Missing Signature", func(t *testing.T) {
		c, rec := rawCtx(body, nil)
		require.NoError(t, handler.PaymentWebhook(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_signature", decodeBody(t, rec)["error"])
	})

	t.Run("Bad Signature", func(t *testing.T) {
		c, rec := rawCtx(body, map[string]string{"X-Signature": "deadbeef"})
		require.NoError(t, handler.PaymentWebhook(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Tampered Body", func(t *testing.T) {
		headers := signedHeaders(body)
		other := successEvent(payment.Reference, invoice.TotalAmount*2)
		c, rec := rawCtx(other, headers)
		require.NoError(t, handler.PaymentWebhook(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Secret Unconfigured", func(t *testing.T) {
		// Configuration error, distinct from an auth failure
		saved := testCfg.Gateway.WebhookSecret
		testCfg.Gateway.WebhookSecret = ""
		defer func() { testCfg.Gateway.WebhookSecret = saved }()

		c, rec := rawCtx(body, signedHeaders(body))
		require.NoError(t, handler.PaymentWebhook(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "config_error", decodeBody(t, rec)["error"])
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		garbage := []byte(`{"event":`)
		c, rec := rawCtx(garbage, signedHeaders(garbage))
		require.NoError(t, handler.PaymentWebhook(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unknown Reference", func(t *testing.T) {
		unknown := successEvent("pay_never_issued", 1000)
		c, rec := rawCtx(unknown, signedHeaders(unknown))
		require.NoError(t, handler.PaymentWebhook(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	// None of the rejected deliveries may have touched the payment
	var fresh model.Payment
	require.NoError(t, db.First(&fresh, payment.ID).Error)
	assert.Equal(t, model.PaymentPending, fresh.Status)
}

func TestChargeSuccess(t *testing.T) {
	db := newTestDB(t)
	application, invoice, _ := seedApprovedApplication(t, db)
	payment := seedPendingPayment(t, db, invoice)

	body := successEvent(payment.Reference, invoice.TotalAmount)
	c, rec := rawCtx(body, signedHeaders(body))
	require.NoError(t, handler.PaymentWebhook(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var fresh model.Payment
	require.NoError(t, db.First(&fresh, payment.ID).Error)
	assert.Equal(t, model.PaymentPaid, fresh.Status)
	assert.Equal(t, "card", fresh.Channel)
	assert.NotNil(t, fresh.PaidAt)

	var freshInvoice model.Invoice
	require.NoError(t, db.First(&freshInvoice, invoice.ID).Error)
	assert.Equal(t, model.InvoicePaid, freshInvoice.Status)
	assert.Equal(t, invoice.TotalAmount, freshInvoice.PaidAmount)
	assert.Equal(t, int64(0), freshInvoice.BalanceDue())

	// Payment against an application drafts the agreement automatically
	var agreement model.TenancyAgreement
	require.NoError(t, db.Where("application_id = ?", application.ID).First(&agreement).Error)
	assert.Equal(t, model.AgreementDraft, agreement.Status)
	assert.Equal(t, tenantID, agreement.TenantID)
	assert.Equal(t, landlordID, agreement.LandlordID)
	assert.Equal(t, rentAmount, agreement.RentAmount)
	assert.Equal(t, depositAmount, agreement.DepositAmount)
	assert.Equal(t, application.MoveInDate.Format("2006-01-02"), agreement.StartDate.Format("2006-01-02"))

	// Audit trail records the confirmation
	var audits int64
	db.Model(&model.AuditLog{}).Where("action = ? AND entity_id = ?", "payment.confirmed", payment.ID).Count(&audits)
	assert.Equal(t, int64(1), audits)

	// Both parties were notified
	var tenantNotes, landlordNotes int64
	db.Model(&model.Notification{}).Where("user_id = ? AND type = ?", tenantID, "payment_received").Count(&tenantNotes)
	db.Model(&model.Notification{}).Where("user_id = ? AND type = ?", landlordID, "payment_received").Count(&landlordNotes)
	assert.Equal(t, int64(1), tenantNotes)
	assert.Equal(t, int64(1), landlordNotes)
}

func TestChargeSuccessIdempotent(t *testing.T) {
	db := newTestDB(t)
	application, invoice, _ := seedApprovedApplication(t, db)
	payment := seedPendingPayment(t, db, invoice)

	body := successEvent(payment.Reference, invoice.TotalAmount)

	// Gateway retries deliver the identical event three times
	for i := 0; i < 3; i++ {
		c, rec := rawCtx(body, signedHeaders(body))
		require.NoError(t, handler.PaymentWebhook(c))
		assert.Equal(t, http.StatusOK, rec.Code, "delivery %d must be acknowledged", i+1)
	}

	// Monetary effect applied exactly once
	var freshInvoice model.Invoice
	require.NoError(t, db.First(&freshInvoice, invoice.ID).Error)
	assert.Equal(t, invoice.TotalAmount, freshInvoice.PaidAmount, "paid_amount must not accumulate across re-deliveries")

	// One agreement, one audit entry, one notification per party
	var agreements, audits, notes int64
	db.Model(&model.TenancyAgreement{}).Where("application_id = ?", application.ID).Count(&agreements)
	db.Model(&model.AuditLog{}).Where("action = ?", "payment.confirmed").Count(&audits)
	db.Model(&model.Notification{}).Where("user_id = ? AND type = ?", tenantID, "payment_received").Count(&notes)
	assert.Equal(t, int64(1), agreements)
	assert.Equal(t, int64(1), audits)
	assert.Equal(t, int64(1), notes)
}

func TestChargeFailed(t *testing.T) {
	db := newTestDB(t)
	_, invoice, unit := seedApprovedApplication(t, db)
	payment := seedPendingPayment(t, db, invoice)

	body, _ := json.Marshal(map[string]interface{}{
		"event": "charge.failed",
		"data": map[string]interface{}{
			"reference": payment.Reference,
			"metadata":  map[string]string{"failure_reason": "insufficient funds"},
		},
	})
	c, rec := rawCtx(body, signedHeaders(body))
	require.NoError(t, handler.PaymentWebhook(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var fresh model.Payment
	require.NoError(t, db.First(&fresh, payment.ID).Error)
	assert.Equal(t, model.PaymentFailed, fresh.Status)
	assert.Equal(t, "insufficient funds", fresh.Notes)

	// No cascade: invoice and unit are untouched
	var freshInvoice model.Invoice
	require.NoError(t, db.First(&freshInvoice, invoice.ID).Error)
	assert.Equal(t, model.InvoicePending, freshInvoice.Status)
	assert.Equal(t, int64(0), freshInvoice.PaidAmount)

	var freshUnit model.Unit
	require.NoError(t, db.First(&freshUnit, unit.ID).Error)
	assert.Equal(t, model.ListingApplied, freshUnit.ListingStatus)

	// A success event after the failure is a no-op: the terminal
	// transition already happened
	success := successEvent(payment.Reference, invoice.TotalAmount)
	c, rec = rawCtx(success, signedHeaders(success))
	require.NoError(t, handler.PaymentWebhook(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, db.First(&fresh, payment.ID).Error)
	assert.Equal(t, model.PaymentFailed, fresh.Status)
}

func TestUnhandledEventAcknowledged(t *testing.T) {
	newTestDB(t)
	body := []byte(`{"event":"transfer.success","data":{"reference":"tr_1"}}`)
	c, rec := rawCtx(body, signedHeaders(body))
	require.NoError(t, handler.PaymentWebhook(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyPayment(t *testing.T) {
	db := newTestDB(t)
	_, invoice, _ := seedApprovedApplication(t, db)
	payment := seedPendingPayment(t, db, invoice)

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"status":true,"message":"ok","data":{"reference":%q,"status":"paid","amount":%d,"channel":"card"}}`,
				payment.Reference, payment.Amount)
		}))
		defer srv.Close()
		handler.SetGatewayClient(gateway.NewClient(srv.URL, "sk_test"))

		c, rec := jsonCtx(t, http.MethodPost, "/api/payments/verify", verifyBody(payment.Reference))
		asUser(c, tenantID)
		require.NoError(t, handler.VerifyPayment(c))
		require.Equal(t, http.StatusOK, rec.Code)

		data := decodeBody(t, rec)["data"].(map[string]interface{})
		assert.Equal(t, "pending", data["local_status"])
		assert.Equal(t, "paid", data["gateway_status"])
		assert.Equal(t, false, data["consistent"])
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		handler.SetGatewayClient(gateway.NewClient("http://127.0.0.1:1", "sk_test"))
		c, rec := jsonCtx(t, http.MethodPost, "/api/payments/verify", verifyBody(payment.Reference))
		asUser(c, tenantID)
		require.NoError(t, handler.VerifyPayment(c))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "upstream_failure", decodeBody(t, rec)["error"])
	})

	t.Run("Not Your Payment", func(t *testing.T) {
		c, rec := jsonCtx(t, http.MethodPost, "/api/payments/verify", verifyBody(payment.Reference))
		asUser(c, strangerID)
		require.NoError(t, handler.VerifyPayment(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Unknown Reference", func(t *testing.T) {
		c, rec := jsonCtx(t, http.MethodPost, "/api/payments/verify", verifyBody("pay_nope"))
		asUser(c, tenantID)
		require.NoError(t, handler.VerifyPayment(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func verifyBody(ref string) map[string]string {
	return map[string]string{"reference": ref}
}
