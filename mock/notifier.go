package mock

import (
	"context"

	"github.com/fwojciec/flatfinder"
)

var _ flatfinder.Notifier = (*Notifier)(nil)

// Notifier is a mock implementation of flatfinder.Notifier.
type Notifier struct {
	SendFn func(ctx context.Context, message string) error
}

func (n *Notifier) Send(ctx context.Context, message string) error {
	return n.SendFn(ctx, message)
}
