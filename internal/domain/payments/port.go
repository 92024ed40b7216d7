package payments

import "context"

// Gateway port for the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (Order, error)
	Verify(orderID, paymentID, signature string) bool
	KeyID() string
}
