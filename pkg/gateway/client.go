package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the payment gateway's REST API
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// VerificationData is the gateway's view of one transaction
type VerificationData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
	Currency  string `json:"currency"`
}

// verifyResponse is the gateway's envelope for the verify endpoint
type verifyResponse struct {
	Status  bool             `json:"status"`
	Message string           `json:"message"`
	Data    VerificationData `json:"data"`
}

// NewClient creates a new gateway client instance
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// VerifyTransaction re-queries the gateway for the authoritative state of a
// transaction reference. Read-only: reconciliation never mutates local state.
func (c *Client) VerifyTransaction(reference string) (*VerificationData, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("%s/transaction/verify/%s", c.BaseURL, reference), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway verify failed: %d %s", resp.StatusCode, string(body))
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("invalid gateway response: %w", err)
	}
	if !parsed.Status {
		return nil, fmt.Errorf("gateway verify rejected: %s", parsed.Message)
	}

	return &parsed.Data, nil
}
