// Package razorpay is a minimal client for the Razorpay Orders API.
package razorpay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrAuthFailed is returned when the gateway rejects the key pair.
var ErrAuthFailed = errors.New("razorpay: authentication failed")

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("razorpay: %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("razorpay: unexpected status %d", e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrAuthFailed) match 401 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrAuthFailed
	}
	return nil
}

// OrderRequest is the body of POST /v1/orders. Amount is in paise.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the gateway's order entity.
type Order struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type errorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. The default is 15s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithRetries retries on transport errors and 5xx responses.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.http.SetRetryCount(n).
			SetRetryWaitTime(200 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			})
	}
}

// Client calls the Razorpay REST API.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *zap.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	cfg = cfg.Sanitized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetBasicAuth(cfg.KeyID, cfg.KeySecret).
			SetHeader("Accept", "application/json").
			SetTimeout(15 * time.Second),
		logger: logger,
	}
	for _, o := range opts {
		o(c)
	}

	logger.Info("razorpay client configured",
		zap.String("mode", cfg.Mode),
		zap.String("key", cfg.KeyHint()),
	)
	return c, nil
}

// Mode returns "test" or "live".
func (c *Client) Mode() string {
	return c.cfg.Mode
}

// CreateOrder creates a payment order.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var (
		out     Order
		errResp errorBody
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&errResp).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{
			StatusCode:  resp.StatusCode(),
			Code:        errResp.Error.Code,
			Description: errResp.Error.Description,
		}
	}
	return &out, nil
}
