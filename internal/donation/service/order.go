package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/jmerrifield20/donationcore/internal/razorpay"
	"go.uber.org/zap"
)

// maxReceiptLen is the gateway's limit on the receipt field.
const maxReceiptLen = 40

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// orderGateway is satisfied by *razorpay.Client.
type orderGateway interface {
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
	Mode() string
}

// OrderService opens payment orders with the gateway before checkout.
type OrderService struct {
	gw       orderGateway
	cfgErr   error
	currency string
	now      func() time.Time
	logger   *zap.Logger
}

// NewOrderService creates an OrderService backed by gw.
func NewOrderService(gw orderGateway, currency string, logger *zap.Logger) *OrderService {
	if currency == "" {
		currency = "INR"
	}
	return &OrderService{gw: gw, currency: currency, now: time.Now, logger: logger}
}

// NewUnconfiguredOrderService returns an OrderService that fails every call
// with reason. Used when gateway credentials are missing or invalid so the
// rest of the server can still start.
func NewUnconfiguredOrderService(reason error, logger *zap.Logger) *OrderService {
	return &OrderService{cfgErr: reason, currency: "INR", now: time.Now, logger: logger}
}

// SetClock replaces the time source. Intended for tests.
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

// Create opens an order for req.Amount rupees.
func (s *OrderService) Create(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	if s.cfgErr != nil {
		return nil, fault.Wrap(fault.CodeNotConfigured, s.cfgErr.Error(), s.cfgErr)
	}
	if req.Amount < 1 {
		return nil, fault.New(fault.CodeInvalidInput, "amount must be at least 1 INR")
	}
	if isBlank(req.CampaignID) {
		return nil, fault.New(fault.CodeInvalidInput, "campaignId is required")
	}
	if isBlank(req.UserID) {
		return nil, fault.New(fault.CodeInvalidInput, "userId is required")
	}
	if req.Amount > (1<<63-1)/100 {
		return nil, fault.New(fault.CodeInvalidInput, "amount is too large")
	}

	paise := req.Amount * 100
	order, err := s.gw.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   paise,
		Currency: s.currency,
		Receipt:  s.receiptRef(req.CampaignID),
		Notes: map[string]string{
			"campaignId": req.CampaignID,
			"userId":     req.UserID,
		},
	})
	if err != nil {
		s.logger.Error("create order failed",
			zap.String("campaign_id", req.CampaignID),
			zap.Int64("amount_paise", paise),
			zap.Error(err),
		)
		if errors.Is(err, razorpay.ErrAuthFailed) {
			return nil, fault.Wrap(fault.CodeGatewayAuth,
				"Invalid Razorpay credentials. Verify the key id and secret are a valid pair", err)
		}
		return nil, fault.Wrap(fault.CodeGateway, "Error creating Razorpay order", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("campaign_id", req.CampaignID),
		zap.String("user_id", req.UserID),
		zap.Int64("amount_paise", paise),
		zap.String("mode", s.gw.Mode()),
	)

	return &model.Order{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		Status:   order.Status,
		Mode:     s.gw.Mode(),
	}, nil
}

// receiptRef builds "rcpt_<campaign>_<unix millis>", capped at the gateway limit.
func (s *OrderService) receiptRef(campaignID string) string {
	c := nonAlnum.ReplaceAllString(campaignID, "")
	if c == "" {
		c = "cmp"
	}
	ref := fmt.Sprintf("rcpt_%s_%s", c, strconv.FormatInt(s.now().UnixMilli(), 10))
	if len(ref) > maxReceiptLen {
		ref = ref[:maxReceiptLen]
	}
	return ref
}
