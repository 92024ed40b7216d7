package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/bryanwahyu/profixion/internal/domain/payments"
)

// orderAPI is the slice of the SDK order resource the gateway uses.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Gateway struct {
	keyID     string
	keySecret string
	orders    orderAPI
}

func NewGateway(keyID, keySecret string) *Gateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &Gateway{keyID: keyID, keySecret: keySecret, orders: client.Order}
}

func (g *Gateway) KeyID() string { return g.keyID }

func (g *Gateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (payments.Order, error) {
	if err := ctx.Err(); err != nil {
		return payments.Order{}, err
	}
	order, err := g.orders.Create(map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return payments.Order{}, fmt.Errorf("razorpay order creation failed: %w", err)
	}

	out := payments.Order{
		ID:        getStringValue(order, "id"),
		Amount:    getInt64Value(order, "amount"),
		Currency:  getStringValue(order, "currency"),
		Receipt:   getStringValue(order, "receipt"),
		Status:    getStringValue(order, "status"),
		CreatedAt: time.Now().UTC(),
	}
	if ts := getInt64Value(order, "created_at"); ts > 0 {
		out.CreatedAt = time.Unix(ts, 0).UTC()
	}
	if out.ID == "" {
		return payments.Order{}, fmt.Errorf("razorpay order response has no id")
	}
	return out, nil
}

// Verify checks the checkout signature: HMAC-SHA256 of "order_id|payment_id"
// keyed with the account secret, hex encoded.
func (g *Gateway) Verify(orderID, paymentID, signature string) bool {
	expected := Sign(g.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the checkout signature for an order and payment.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func getStringValue(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func getInt64Value(m map[string]interface{}, key string) int64 {
	switch val := m[key].(type) {
	case float64:
		return int64(val)
	case int:
		return int64(val)
	case int64:
		return val
	}
	return 0
}
