package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DeliveryReceipt acknowledges a successful delivery by a Sender.
type DeliveryReceipt struct {
	ID          uuid.UUID
	DeliveredAt time.Time
}

// Sender is the external delivery collaborator consumed by the dispatcher.
//
// Deliver is only ever called from the dispatcher's single consumer
// goroutine, one item at a time. Failures must be classifiable as
// retryable or terminal by wrapping ErrTransientDelivery or
// ErrTerminalDelivery; an unclassified error is treated as transient.
type Sender interface {
	Deliver(ctx context.Context, descriptor EventDescriptor) (DeliveryReceipt, error)
}

// IsTerminalDelivery reports whether err permanently rejects the item,
// so the dispatcher must not retry it.
func IsTerminalDelivery(err error) bool {
	return errors.Is(err, ErrTerminalDelivery)
}
