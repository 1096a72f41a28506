package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/donation/service"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/jmerrifield20/donationcore/internal/identity"
	"github.com/jmerrifield20/donationcore/internal/users"
	"go.uber.org/zap"
)

// AuthHandler serves the phone OTP login endpoints.
type AuthHandler struct {
	otp      *service.OTPManager
	sessions *identity.SessionIssuer
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(otp *service.OTPManager, sessions *identity.SessionIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{otp: otp, sessions: sessions, logger: logger}
}

// Register mounts the auth routes onto rg, behind any middleware in mw.
func (h *AuthHandler) Register(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	auth := rg.Group("/auth", mw...)
	auth.POST("/send-otp", h.SendOTP)
	auth.POST("/verify-otp", h.VerifyOTP)
}

type sendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type sessionResponse struct {
	Token       string      `json:"token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	PhoneNumber string      `json:"phone_number"`
	User        *users.User `json:"user,omitempty"`
}

// SendOTP handles POST /api/auth/send-otp.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	sent, err := h.otp.Send(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		recordOTPSend(string(fault.CodeOf(err)))
		writeError(c, h.logger, err)
		return
	}
	recordOTPSend("sent")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP sent successfully",
		"data":    sent,
	})
}

// VerifyOTP handles POST /api/auth/verify-otp. A correct code yields a
// session token.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	verified, err := h.otp.Verify(c.Request.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		recordOTPVerification(string(fault.CodeOf(err)))
		writeError(c, h.logger, err)
		return
	}
	recordOTPVerification("verified")

	subject := verified.PhoneNumber
	if verified.User != nil {
		subject = verified.User.ID.String()
	}
	token, exp, err := h.sessions.Issue(subject, verified.PhoneNumber)
	if err != nil {
		writeError(c, h.logger, fault.Wrap(fault.CodeInternal, "failed to issue session", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP verified successfully",
		"data": sessionResponse{
			Token:       token,
			TokenType:   "Bearer",
			ExpiresAt:   exp,
			PhoneNumber: verified.PhoneNumber,
			User:        verified.User,
		},
	})
}
