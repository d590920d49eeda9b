package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyTransaction(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transaction/verify/pay_abc", r.URL.Path)
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
			w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"pay_abc","status":"paid","amount":180000,"channel":"card"}}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "sk_test")
		data, err := c.VerifyTransaction("pay_abc")
		assert.NoError(t, err)
		assert.Equal(t, "paid", data.Status)
		assert.Equal(t, int64(180000), data.Amount)
	})

	t.Run("Gateway Error Status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "sk_test")
		_, err := c.VerifyTransaction("pay_abc")
		assert.Error(t, err)
	})

	t.Run("Gateway Rejects Reference", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":false,"message":"transaction not found"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "sk_test")
		_, err := c.VerifyTransaction("pay_missing")
		assert.ErrorContains(t, err, "transaction not found")
	})

	t.Run("Unreachable", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", "sk_test")
		_, err := c.VerifyTransaction("pay_abc")
		assert.ErrorContains(t, err, "gateway unreachable")
	})
}
