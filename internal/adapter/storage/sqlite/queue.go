package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/port"
)

const (
	msgStatusReady  = "ready"
	msgStatusLeased = "leased"
	msgStatusDone   = "done"
	msgStatusDead   = "dead"
)

// WorkQueue is a durable queue on top of the shared SQLite database. A claim
// leases the oldest ready message; messages whose lease expired become
// claimable again, which gives at-least-once delivery across worker crashes.
type WorkQueue struct {
	db    *sql.DB
	lease time.Duration
}

func NewWorkQueue(store *Store, lease time.Duration) *WorkQueue {
	return &WorkQueue{
		db:    store.db,
		lease: lease,
	}
}

func (q *WorkQueue) Publish(ctx context.Context, item domain.WorkItem) error {
	body, err := item.Encode()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO queue_messages (body, status, not_before, created_at)
		VALUES (?, ?, ?, ?)`,
		string(body), msgStatusReady, now, now,
	)
	if err != nil {
		return fmt.Errorf("publish work item: %w", err)
	}
	return nil
}

func (q *WorkQueue) Claim(ctx context.Context) (*port.Delivery, error) {
	now := time.Now().UTC()
	row := q.db.QueryRowContext(ctx, `
		UPDATE queue_messages
		SET status = ?, attempts = attempts + 1, leased_until = ?
		WHERE id = (
			SELECT id FROM queue_messages
			WHERE (status = ? AND not_before <= ?)
			   OR (status = ? AND leased_until <= ?)
			ORDER BY id
			LIMIT 1
		)
		RETURNING id, body, attempts`,
		msgStatusLeased, now.Add(q.lease),
		msgStatusReady, now,
		msgStatusLeased, now,
	)

	var (
		d    port.Delivery
		body string
	)
	if err := row.Scan(&d.ID, &body, &d.Attempt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim message: %w", err)
	}
	d.Body = []byte(body)
	return &d, nil
}

func (q *WorkQueue) Ack(ctx context.Context, deliveryID int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE queue_messages SET status = ?, leased_until = NULL WHERE id = ?`,
		msgStatusDone, deliveryID,
	)
	if err != nil {
		return fmt.Errorf("ack message: %w", err)
	}
	return nil
}

func (q *WorkQueue) Nack(ctx context.Context, deliveryID int64) error {
	var attempts int
	row := q.db.QueryRowContext(ctx, `SELECT attempts FROM queue_messages WHERE id = ?`, deliveryID)
	if err := row.Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("nack message %d: %w", deliveryID, domain.ErrNotFound)
		}
		return fmt.Errorf("nack message: %w", err)
	}

	_, err := q.db.ExecContext(ctx, `
		UPDATE queue_messages SET status = ?, leased_until = NULL, not_before = ? WHERE id = ?`,
		msgStatusReady, time.Now().UTC().Add(retryDelay(attempts)), deliveryID,
	)
	if err != nil {
		return fmt.Errorf("nack message: %w", err)
	}
	return nil
}

func (q *WorkQueue) Bury(ctx context.Context, deliveryID int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE queue_messages SET status = ?, leased_until = NULL WHERE id = ?`,
		msgStatusDead, deliveryID,
	)
	if err != nil {
		return fmt.Errorf("bury message: %w", err)
	}
	return nil
}

func (q *WorkQueue) ResetStalled(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE queue_messages SET status = ?, leased_until = NULL
		WHERE status = ? AND leased_until <= ?`,
		msgStatusReady, msgStatusLeased, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("reset stalled messages: %w", err)
	}
	return nil
}

// retryDelay is the backoff applied to a released message before it becomes
// claimable again: 2^attempts seconds, capped at 30s.
func retryDelay(attempts int) time.Duration {
	seconds := math.Pow(2, float64(attempts))
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

var _ port.WorkQueue = (*WorkQueue)(nil)
