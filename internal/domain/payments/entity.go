package payments

import (
	"errors"
	"time"
)

var (
	// ErrInvalidAmount marks a non-positive order amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrMissingDetails marks an incomplete verification request.
	ErrMissingDetails = errors.New("missing payment details")
	// ErrInvalidSignature marks a verification request whose signature does not match.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrGateway marks a failed call to the payment gateway.
	ErrGateway = errors.New("payment gateway unavailable")
)

// Order is a gateway order the browser checkout completes.
type Order struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"` // minor units
	Currency  string    `json:"currency"`
	Receipt   string    `json:"receipt"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Confirmation is what the checkout returns after payment.
type Confirmation struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// Complete reports whether every field is present.
func (c Confirmation) Complete() bool {
	return c.OrderID != "" && c.PaymentID != "" && c.Signature != ""
}
