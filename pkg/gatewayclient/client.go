/**
 * @description
 * Client for the external payment gateway: creates payment orders for
 * invoices and verifies the HMAC signature the gateway attaches to
 * completed payments.
 */
package gatewayclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the payment gateway's order API.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient creates a new gateway client. The timeout bounds how long a
// settlement call may block before the caller reports failure.
func NewClient(baseURL, keyID, keySecret string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		keyID:      strings.TrimSpace(keyID),
		keySecret:  strings.TrimSpace(keySecret),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateOrder registers a payment order with the gateway for an invoice and
// returns the gateway's order id. The amount is sent in minor units.
func (c *Client) CreateOrder(ctx context.Context, invoiceID string, amount decimal.Decimal) (string, error) {
	if invoiceID == "" {
		return "", fmt.Errorf("invoice ID is required")
	}
	if c.keyID == "" || c.keySecret == "" {
		return "", fmt.Errorf("gateway credentials are not configured")
	}

	payload := map[string]interface{}{
		"amount":          amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"currency":        "INR",
		"receipt":         invoiceID,
		"payment_capture": 1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to parse order response: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("gateway returned empty order id")
	}

	return response.ID, nil
}

// VerifySignature checks the HMAC-SHA256 signature the gateway computes
// over "<order_id>|<payment_id>" with the key secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
