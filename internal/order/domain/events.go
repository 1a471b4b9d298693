package domain

const (
	EventOrderPlaced     = "OrderPlaced"
	EventPaymentApproved = "PaymentApproved"
	EventPaymentFailed   = "PaymentFailed"
	EventOrderRefunded   = "OrderRefunded"
)

type OrderPlaced struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	PaymentMethod string `json:"payment_method"`
	Total         int64  `json:"total"`
	Currency      string `json:"currency"`
}

type PaymentApproved struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

type PaymentFailedEvent struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	TransactionID string `json:"transaction_id"`
}

type OrderRefunded struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	PaymentStatus string `json:"payment_status"`
}
