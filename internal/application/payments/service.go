package payments

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/profixion/internal/application"
	domain "github.com/bryanwahyu/profixion/internal/domain/payments"
)

const DefaultCurrency = "INR"

type Service struct {
	Gateway  domain.Gateway
	Currency string
	Clock    application.Clock
	Logger   *zap.Logger
}

type CreateOrderResult struct {
	Order domain.Order `json:"order"`
	KeyID string       `json:"keyId"`
}

// CreateOrder opens a checkout order for amount in major currency units.
func (s *Service) CreateOrder(ctx context.Context, amount float64) (CreateOrderResult, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return CreateOrderResult{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(s.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	receipt := fmt.Sprintf("receipt_%d", s.now().Unix())
	minor := int64(math.Round(amount * 100))

	order, err := s.Gateway.CreateOrder(ctx, minor, currency, receipt)
	if err != nil {
		s.log().Error("create payment order", zap.Int64("amount", minor), zap.Error(err))
		return CreateOrderResult{}, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	s.log().Info("payment order created", zap.String("order_id", order.ID), zap.Int64("amount", minor))
	return CreateOrderResult{Order: order, KeyID: s.Gateway.KeyID()}, nil
}

type VerifyResult struct {
	Verified  bool   `json:"verified"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
}

// Verify checks a checkout confirmation.
func (s *Service) Verify(ctx context.Context, c domain.Confirmation) (VerifyResult, error) {
	if !c.Complete() {
		return VerifyResult{}, domain.ErrMissingDetails
	}
	if !s.Gateway.Verify(c.OrderID, c.PaymentID, c.Signature) {
		s.log().Warn("payment signature mismatch", zap.String("order_id", c.OrderID))
		return VerifyResult{}, domain.ErrInvalidSignature
	}
	return VerifyResult{Verified: true, OrderID: c.OrderID, PaymentID: c.PaymentID}, nil
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
