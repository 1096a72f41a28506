package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jmerrifield20/donationcore/internal/phone"
	"go.uber.org/zap"
)

// TwilioConfig holds the Twilio account credentials and sender number.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string // default https://api.twilio.com
}

// Validate reports the first missing or malformed setting.
func (c TwilioConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.AccountSID) == "":
		return errors.New("twilio account SID is missing or empty")
	case strings.TrimSpace(c.AuthToken) == "":
		return errors.New("twilio auth token is missing or empty")
	case strings.TrimSpace(c.From) == "":
		return errors.New("twilio sender number is missing or empty")
	case !phone.Valid(strings.TrimSpace(c.From)):
		return errors.New("twilio sender number must be in E.164 format without spaces, e.g. +18287601540")
	}
	return nil
}

// TwilioError is an error response from the Twilio REST API.
type TwilioError struct {
	Status   int    `json:"status"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

func (e *TwilioError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twilio: status %d", e.Status)
	}
	return fmt.Sprintf("twilio: %d (code %d): %s", e.Status, e.Code, e.Message)
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	cfg    TwilioConfig
	http   *resty.Client
	logger *zap.Logger
}

// NewTwilioSender validates cfg and returns a TwilioSender.
func NewTwilioSender(cfg TwilioConfig, logger *zap.Logger) (*TwilioSender, error) {
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	cfg.From = strings.TrimSpace(cfg.From)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.twilio.com"
	}

	return &TwilioSender{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
			SetTimeout(30 * time.Second),
		logger: logger,
	}, nil
}

// Send posts body to the recipient. The context deadline bounds the request.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if !phone.Valid(to) {
		return errors.New("recipient phone number must be in E.164 format without spaces")
	}

	var apiErr TwilioError
	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.cfg.From,
			"Body": body,
		}).
		SetError(&apiErr).
		SetPathParam("sid", s.cfg.AccountSID).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		s.logger.Error("twilio request failed", zap.String("to", phone.Mask(to)), zap.Error(err))
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp.IsError() {
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode()
		}
		s.logger.Error("twilio rejected message",
			zap.String("to", phone.Mask(to)),
			zap.Int("status", apiErr.Status),
			zap.Int("code", apiErr.Code),
			zap.String("message", apiErr.Message),
		)
		return &apiErr
	}

	s.logger.Info("otp sms sent",
		zap.String("to", phone.Mask(to)),
		zap.String("from", phone.Mask(s.cfg.From)),
	)
	return nil
}
