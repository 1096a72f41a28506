package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// maxPDFSize bounds receipt downloads.
const maxPDFSize = 8 << 20

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("donationcore %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("donationcore %d: %s", e.StatusCode, e.Message)
}

// OTPSent is returned by SendOTP.
type OTPSent struct {
	PhoneNumber              string    `json:"phone_number"`
	ExpiryTime               time.Time `json:"expiry_time"`
	ResendAvailableInSeconds int       `json:"resend_available_in_seconds"`
}

// User is the account attached to a session.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	UserType    string `json:"user_type"`
}

// Session is returned by VerifyOTP and Login.
type Session struct {
	Token       string    `json:"token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	PhoneNumber string    `json:"phone_number"`
	User        *User     `json:"user,omitempty"`
}

// RegisterRequest is the payload for Register. PhoneNumber is optional.
type RegisterRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	UserType    string `json:"userType,omitempty"`
}

// CreateOrderRequest is the payload for CreateOrder. Amount is in whole rupees.
type CreateOrderRequest struct {
	CampaignID string `json:"campaignId"`
	UserID     string `json:"userId"`
	Amount     int64  `json:"amount"`
}

// Order is a gateway order. Amount is in paise.
type Order struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	Mode     string `json:"mode"`
	Message  string `json:"message"`
}

// VerifyPaymentRequest carries the donor details and the gateway callback.
// Amount is a decimal string in rupees, e.g. "500" or "500.50".
type VerifyPaymentRequest struct {
	CampaignID        string      `json:"campaignId"`
	UserID            string      `json:"userId"`
	DonorName         string      `json:"donorName"`
	DonorEmail        string      `json:"donorEmail"`
	DonorPhone        string      `json:"donorPhone"`
	Amount            json.Number `json:"amount"`
	RazorpayOrderID   string      `json:"razorpayOrderId"`
	RazorpayPaymentID string      `json:"razorpayPaymentId"`
	RazorpaySignature string      `json:"razorpaySignature"`
}

// VerifyPaymentResult describes the receipt issued for a payment.
type VerifyPaymentResult struct {
	Message           string `json:"message"`
	ReceiptID         string `json:"receiptId"`
	PaymentID         string `json:"paymentId"`
	OrderID           string `json:"orderId"`
	DownloadReference string `json:"downloadReference"`
	EmailSent         bool   `json:"emailSent"`
	AlreadyProcessed  bool   `json:"alreadyProcessed"`
}

// Receipt is a stored receipt record.
type Receipt struct {
	ID         string    `json:"id"`
	PaymentID  string    `json:"payment_id"`
	OrderID    string    `json:"order_id"`
	CampaignID string    `json:"campaign_id"`
	UserID     string    `json:"user_id"`
	DonorName  string    `json:"donor_name"`
	DonorEmail string    `json:"donor_email"`
	DonorPhone string    `json:"donor_phone"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Client talks to a donationcore server.
type Client struct {
	base       string
	httpClient *http.Client

	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a session token obtained earlier.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the server at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bearerToken
}

// SendOTP asks the server to text a login code to phoneNumber.
func (c *Client) SendOTP(ctx context.Context, phoneNumber string) (*OTPSent, error) {
	var env struct {
		Data OTPSent `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/auth/send-otp", map[string]string{"phoneNumber": phoneNumber}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// VerifyOTP exchanges a code for a session and keeps the token for later calls.
func (c *Client) VerifyOTP(ctx context.Context, phoneNumber, code string) (*Session, error) {
	var env struct {
		Data Session `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/auth/verify-otp", map[string]string{"phoneNumber": phoneNumber, "otp": code}, &env); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.bearerToken = env.Data.Token
	c.mu.Unlock()
	return &env.Data, nil
}

// Register creates an email/password account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var env struct {
		Data User `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/users/register", req, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Login exchanges email/password credentials for a session and keeps the
// token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var env struct {
		Data Session `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/users/login", map[string]string{"email": email, "password": password}, &env); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.bearerToken = env.Data.Token
	c.mu.Unlock()
	return &env.Data, nil
}

// CreateOrder opens a gateway order for a donation.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var out Order
	if err := c.postJSON(ctx, "/api/payments/create-order", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment submits a completed checkout and returns its receipt.
func (c *Client) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*VerifyPaymentResult, error) {
	var out VerifyPaymentResult
	if err := c.postJSON(ctx, "/api/payments/verify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReceipt returns the stored receipt for paymentID.
func (c *Client) GetReceipt(ctx context.Context, paymentID string) (*Receipt, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/receipts/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req, 1<<16)
	if err != nil {
		return nil, err
	}
	var env struct {
		Data Receipt `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &env.Data, nil
}

// DownloadReceipt returns the PDF receipt for paymentID.
func (c *Client) DownloadReceipt(ctx context.Context, paymentID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/receipt/download/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")
	return c.do(req, maxPDFSize)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, 1<<16)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes req, attaching the session token if present, and turns
// non-2xx responses into *APIError.
func (c *Client) do(req *http.Request, limit int64) ([]byte, error) {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Error      string `json:"error"`
		Code       string `json:"code"`
		RetryAfter int    `json:"retry_after_seconds"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Error
		apiErr.RetryAfter = time.Duration(payload.RetryAfter) * time.Second
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
