package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/donation/render"
	"github.com/jmerrifield20/donationcore/internal/donation/service"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/jmerrifield20/donationcore/internal/identity"
	"github.com/jmerrifield20/donationcore/internal/phone"
	"go.uber.org/zap"
)

// ReceiptHandler serves issued receipts as PDF downloads and, to their
// owners, as JSON records.
type ReceiptHandler struct {
	issuer   *service.ReceiptIssuer
	sessions *identity.SessionIssuer
	logger   *zap.Logger
}

// NewReceiptHandler creates a new ReceiptHandler.
func NewReceiptHandler(issuer *service.ReceiptIssuer, sessions *identity.SessionIssuer, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{issuer: issuer, sessions: sessions, logger: logger}
}

// Register mounts the receipt routes onto rg. The download link is public,
// the record lookup requires a session.
func (h *ReceiptHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/receipt/download/:paymentId", h.Download)
	rg.GET("/receipts/:paymentId", RequireSession(h.sessions), h.Get)
}

// Download handles GET /api/receipt/download/:paymentId.
func (h *ReceiptHandler) Download(c *gin.Context) {
	paymentID := c.Param("paymentId")
	pdf, err := h.issuer.RenderReceipt(c.Request.Context(), paymentID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(render.ReceiptFilename(paymentID)))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Get handles GET /api/receipts/:paymentId and returns the receipt record.
// Receipts of other donors are reported as missing.
func (h *ReceiptHandler) Get(c *gin.Context) {
	paymentID := c.Param("paymentId")
	rec, err := h.issuer.GetReceipt(c.Request.Context(), paymentID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !ownsReceipt(SessionFrom(c), rec) {
		writeError(c, h.logger, fault.New(fault.CodeNotFound, "Receipt not found for paymentId: "+paymentID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

// ownsReceipt matches the session against the receipt's user ID or donor phone.
func ownsReceipt(claims *identity.SessionClaims, rec *model.Receipt) bool {
	if claims == nil {
		return false
	}
	if claims.Subject != "" && claims.Subject == rec.UserID {
		return true
	}
	if claims.PhoneNumber == "" {
		return false
	}
	donor, err := phone.Normalize(rec.DonorPhone)
	return err == nil && donor == claims.PhoneNumber
}
