package model

// CreateOrderRequest asks the payment gateway for a new order.
// Amount is in whole rupees.
type CreateOrderRequest struct {
	CampaignID string
	UserID     string
	Amount     int64
}

// Order is the gateway's view of a created order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // paise
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	Mode     string `json:"mode"`
}
