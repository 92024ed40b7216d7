package contact

import "context"

// Notifier forwards contact messages to operators.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}
