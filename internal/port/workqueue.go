package port

import (
	"context"

	"github.com/librasign/signcheck/internal/domain"
)

// Delivery is one claimed message. Attempt counts deliveries of the same
// message, starting at 1.
type Delivery struct {
	ID      int64
	Body    []byte
	Attempt int
}

// WorkQueue is a durable at-least-once delivery channel. Claimed messages
// are invisible to other consumers for the duration of a lease; a message
// that is neither acked nor buried before its lease expires is redelivered
// with an incremented attempt counter.
type WorkQueue interface {
	Publish(ctx context.Context, item domain.WorkItem) error
	// Claim leases the oldest ready message, or returns nil when the queue
	// is empty.
	Claim(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, deliveryID int64) error
	// Nack releases a claimed message for redelivery after a backoff.
	Nack(ctx context.Context, deliveryID int64) error
	// Bury dead-letters a message so it is never delivered again.
	Bury(ctx context.Context, deliveryID int64) error
	// ResetStalled releases messages whose lease expired, typically after a
	// consumer died mid-processing.
	ResetStalled(ctx context.Context) error
}
