package razorpay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	got  map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (f *fakeOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.got = data
	return f.resp, f.err
}

func TestGateway_Verify(t *testing.T) {
	g := NewGateway("rzp_test_key", "s3cret")
	sig := Sign("s3cret", "order_1", "pay_1")

	assert.True(t, g.Verify("order_1", "pay_1", sig))
	assert.False(t, g.Verify("order_1", "pay_2", sig))
	assert.False(t, g.Verify("order_1", "pay_1", "deadbeef"))
	assert.Len(t, sig, 64)
}

func TestGateway_CreateOrder(t *testing.T) {
	orders := &fakeOrders{resp: map[string]interface{}{
		"id": "order_X", "amount": float64(49900), "currency": "INR",
		"receipt": "receipt_1", "status": "created", "created_at": float64(1767225600),
	}}
	g := &Gateway{keyID: "k", keySecret: "s", orders: orders}

	o, err := g.CreateOrder(context.Background(), 49900, "INR", "receipt_1")
	require.NoError(t, err)
	assert.Equal(t, "order_X", o.ID)
	assert.EqualValues(t, 49900, o.Amount)
	assert.Equal(t, "created", o.Status)
	assert.EqualValues(t, 49900, orders.got["amount"])
	assert.Equal(t, "receipt_1", orders.got["receipt"])
}

func TestGateway_CreateOrderError(t *testing.T) {
	g := &Gateway{orders: &fakeOrders{err: errors.New("bad request")}}
	_, err := g.CreateOrder(context.Background(), 100, "INR", "r")
	assert.Error(t, err)

	g = &Gateway{orders: &fakeOrders{resp: map[string]interface{}{}}}
	_, err = g.CreateOrder(context.Background(), 100, "INR", "r")
	assert.Error(t, err)
}
