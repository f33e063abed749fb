package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("payment: amount must be greater than zero")

// GatewayError carries the gateway's own error description when it gave one.
type GatewayError struct {
	Description string
	cause       error
}

func (e *GatewayError) Error() string {
	if e.Description != "" {
		return "payment gateway: " + e.Description
	}
	return "payment gateway: " + e.cause.Error()
}

func (e *GatewayError) Unwrap() error { return e.cause }

// Intent is the gateway-side payment request created before the customer
// pays. Amount is in the gateway's minor units.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (Intent, error)
}

// Client talks to the gateway's order API over HTTP basic auth. The key
// secret never leaves the server.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateIntent converts the decimal amount to minor units (x100) and asks
// the gateway for an intent with a time-based receipt id. A timeout or
// transport failure surfaces as *GatewayError, never as a payment outcome.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (Intent, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Intent{}, ErrInvalidAmount
	}

	body := map[string]any{
		"amount":   amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		"currency": currency,
		"receipt":  fmt.Sprintf("order_rcptid_%d", time.Now().UnixMilli()),
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return Intent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(buf))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return Intent{}, &GatewayError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr struct {
			Error struct {
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&gwErr)
		return Intent{}, &GatewayError{
			Description: gwErr.Error.Description,
			cause:       fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return Intent{}, &GatewayError{cause: err}
	}
	return intent, nil
}
