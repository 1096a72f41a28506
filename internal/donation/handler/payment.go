package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/donation/service"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentHandler serves order creation and payment verification.
type PaymentHandler struct {
	orders *service.OrderService
	issuer *service.ReceiptIssuer
	logger *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(orders *service.OrderService, issuer *service.ReceiptIssuer, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{orders: orders, issuer: issuer, logger: logger}
}

// Register mounts the payment routes onto rg.
func (h *PaymentHandler) Register(rg *gin.RouterGroup) {
	p := rg.Group("/payments")
	p.POST("/create-order", h.CreateOrder)
	p.POST("/verify", h.Verify)
}

type createOrderRequest struct {
	CampaignID string `json:"campaignId"`
	UserID     string `json:"userId"`
	Amount     int64  `json:"amount"`
}

type verifyPaymentRequest struct {
	CampaignID        string          `json:"campaignId"`
	UserID            string          `json:"userId"`
	DonorName         string          `json:"donorName"`
	DonorEmail        string          `json:"donorEmail" binding:"omitempty,email"`
	DonorPhone        string          `json:"donorPhone"`
	Amount            decimal.Decimal `json:"amount"`
	RazorpayOrderID   string          `json:"razorpayOrderId"`
	RazorpayPaymentID string          `json:"razorpayPaymentId"`
	RazorpaySignature string          `json:"razorpaySignature"`
}

type createOrderResponse struct {
	model.Order
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// CreateOrder handles POST /api/payments/create-order.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	order, err := h.orders.Create(c.Request.Context(), model.CreateOrderRequest{
		CampaignID: req.CampaignID,
		UserID:     req.UserID,
		Amount:     req.Amount,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, createOrderResponse{
		Order:   *order,
		OrderID: order.ID,
		Message: "Razorpay order created successfully",
	})
}

// Verify handles POST /api/payments/verify.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: donorEmail must be a valid email address and amount a number")
		return
	}

	res, err := h.issuer.Verify(c.Request.Context(), model.VerifyPaymentRequest{
		OrderID:   req.RazorpayOrderID,
		PaymentID: req.RazorpayPaymentID,
		Signature: req.RazorpaySignature,
		Amount:    req.Amount,
		Donor: model.DonorDetails{
			CampaignID: req.CampaignID,
			UserID:     req.UserID,
			Name:       req.DonorName,
			Email:      req.DonorEmail,
			Phone:      req.DonorPhone,
		},
	})
	if err != nil {
		recordReceipt("rejected")
		if fault.CodeOf(err) == fault.CodeSignatureMismatch {
			h.logger.Warn("payment signature rejected",
				zap.String("order_id", req.RazorpayOrderID),
				zap.String("payment_id", req.RazorpayPaymentID),
			)
		}
		writeError(c, h.logger, err)
		return
	}

	if res.AlreadyProcessed {
		recordReceipt("replayed")
	} else {
		recordReceipt("issued")
		recordReceiptEmail(res.EmailSent)
	}

	c.JSON(http.StatusOK, res)
}
