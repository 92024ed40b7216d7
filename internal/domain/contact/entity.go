package contact

import (
	"errors"
	"time"
)

var (
	// ErrInvalidMessage marks a submission with missing or malformed fields.
	ErrInvalidMessage = errors.New("invalid contact message")
	// ErrDelivery marks a failed hand-off to the notifier.
	ErrDelivery = errors.New("contact message could not be delivered")
)

// Message is a contact form submission.
type Message struct {
	Name       string    `json:"name" validate:"required,max=200"`
	Email      string    `json:"email" validate:"required,email,max=320"`
	Subject    string    `json:"subject" validate:"required,max=300"`
	Body       string    `json:"message" validate:"required,max=5000"`
	ReceivedAt time.Time `json:"received_at"`
}
