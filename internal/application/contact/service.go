package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bryanwahyu/profixion/internal/application"
	domain "github.com/bryanwahyu/profixion/internal/domain/contact"
)

var validate = validator.New()

type Service struct {
	Notifier domain.Notifier
	Clock    application.Clock
	Logger   *zap.Logger
}

// Submit validates a contact message and forwards it to operators.
func (s *Service) Submit(ctx context.Context, m domain.Message) error {
	m.Name = clean(m.Name)
	m.Email = clean(m.Email)
	m.Subject = clean(m.Subject)
	m.Body = clean(m.Body)
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidMessage, describe(err))
	}
	if s.Clock != nil {
		m.ReceivedAt = s.Clock.Now()
	} else {
		m.ReceivedAt = application.SystemClock{}.Now()
	}

	if err := s.Notifier.Notify(ctx, m); err != nil {
		s.log().Error("deliver contact message", zap.String("email", m.Email), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	s.log().Info("contact message received", zap.String("email", m.Email), zap.String("subject", m.Subject))
	return nil
}

// clean strips control characters and surrounding whitespace.
func clean(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	var b strings.Builder
	for _, r := range s {
		if r >= 32 || r == '\t' || r == '\n' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func describe(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(f.Field()), f.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
