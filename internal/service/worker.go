package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/infrastructure/logger"
	"github.com/librasign/signcheck/internal/port"
)

// WorkerPool consumes work items and finalizes jobs. Delivery is
// at-least-once, so processing is idempotent: a job already terminal is
// acked and skipped, and terminal writes in the store are conditional.
type WorkerPool struct {
	queue       port.WorkQueue
	store       port.JobStore
	recognizer  port.Recognizer
	workers     int
	maxAttempts int
}

func NewWorkerPool(queue port.WorkQueue, store port.JobStore, recognizer port.Recognizer, workers, maxAttempts int) *WorkerPool {
	return &WorkerPool{
		queue:       queue,
		store:       store,
		recognizer:  recognizer,
		workers:     workers,
		maxAttempts: maxAttempts,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	// Release leases held by consumers that died mid-processing
	if err := wp.queue.ResetStalled(ctx); err != nil {
		logger.Error.Printf("failed to reset stalled messages: %v", err)
	}

	for i := range wp.workers {
		go wp.runWorker(ctx, i)
	}
	logger.Info.Printf("started %d workers", wp.workers)
}

func (wp *WorkerPool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			logger.Info.Printf("worker %d shutting down", id)
			return
		default:
		}

		delivery, err := wp.queue.Claim(ctx)
		if err != nil {
			logger.Error.Printf("worker %d: failed to claim message: %v", id, err)
			time.Sleep(2 * time.Second)
			continue
		}

		if delivery == nil {
			time.Sleep(500 * time.Millisecond)
			continue
		}

		wp.processDelivery(ctx, id, delivery)
	}
}

func (wp *WorkerPool) processDelivery(ctx context.Context, workerID int, d *port.Delivery) {
	item, err := domain.DecodeWorkItem(d.Body)
	if err != nil {
		// No job id to finalize; all we can do is keep the message out of
		// the delivery loop.
		logger.Error.Printf("worker %d: dead-lettering message %d: %v", workerID, d.ID, err)
		wp.bury(ctx, d.ID)
		return
	}

	logger.Info.Printf("worker %d: processing job %s (attempt %d, action=%s)",
		workerID, item.JobID, d.Attempt, logger.SanitizeForLog(item.ExpectedAction))

	if d.Attempt > wp.maxAttempts {
		if _, err := wp.store.Fail(ctx, item.JobID, "delivery attempts exhausted"); err != nil {
			logger.Error.Printf("worker %d: failed to finalize exhausted job %s: %v", workerID, item.JobID, err)
			wp.nack(ctx, d.ID)
			return
		}
		logger.Warn.Printf("worker %d: dead-lettering job %s after %d attempts", workerID, item.JobID, d.Attempt)
		wp.bury(ctx, d.ID)
		return
	}

	job, err := wp.store.Get(ctx, item.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Error.Printf("worker %d: message %d references unknown job %s", workerID, d.ID, item.JobID)
			wp.bury(ctx, d.ID)
			return
		}
		logger.Error.Printf("worker %d: store unavailable for job %s: %v", workerID, item.JobID, err)
		wp.nack(ctx, d.ID)
		return
	}
	if job.Terminal() {
		// Redelivery of work that already finished; acknowledge and move on.
		wp.ack(ctx, d.ID)
		return
	}

	if err := wp.store.MarkProcessing(ctx, item.JobID); err != nil {
		logger.Warn.Printf("worker %d: mark processing for job %s: %v", workerID, item.JobID, err)
	}

	video, err := item.Video()
	if err != nil {
		// A payload that cannot be decoded will never decode; retrying is
		// pointless, so the failure is terminal.
		wp.finalize(ctx, d, item.JobID, nil, fmt.Sprintf("decode error: %v", err))
		return
	}

	prediction, err := wp.recognizer.Infer(ctx, video)
	if err != nil {
		wp.finalize(ctx, d, item.JobID, nil, fmt.Sprintf("inference failed: %v", err))
		return
	}

	result := domain.Match(prediction, item.ExpectedAction)
	wp.finalize(ctx, d, item.JobID, &result, "")
}

// finalize writes the terminal state and acknowledges the message only once
// that write succeeded; a store failure leaves the message unacked so the
// queue redelivers it.
func (wp *WorkerPool) finalize(ctx context.Context, d *port.Delivery, jobID string, result *domain.Result, reason string) {
	var (
		applied bool
		err     error
	)
	if result != nil {
		applied, err = wp.store.Complete(ctx, jobID, *result)
	} else {
		applied, err = wp.store.Fail(ctx, jobID, reason)
	}
	if err != nil {
		logger.Error.Printf("failed to finalize job %s: %v", jobID, err)
		wp.nack(ctx, d.ID)
		return
	}

	switch {
	case !applied:
		logger.Info.Printf("job %s already terminal, skipping", jobID)
	case result != nil:
		logger.Info.Printf("job %s completed: predicted=%s confidence=%.3f match=%v",
			jobID, logger.SanitizeForLog(result.PredictedAction), result.Confidence, result.IsMatch)
	default:
		logger.Info.Printf("job %s failed: %s", jobID, logger.SanitizeForLog(reason))
	}
	wp.ack(ctx, d.ID)
}

func (wp *WorkerPool) ack(ctx context.Context, deliveryID int64) {
	if err := wp.queue.Ack(ctx, deliveryID); err != nil {
		logger.Error.Printf("failed to ack message %d: %v", deliveryID, err)
	}
}

func (wp *WorkerPool) nack(ctx context.Context, deliveryID int64) {
	if err := wp.queue.Nack(ctx, deliveryID); err != nil {
		logger.Error.Printf("failed to nack message %d: %v", deliveryID, err)
	}
}

func (wp *WorkerPool) bury(ctx context.Context, deliveryID int64) {
	if err := wp.queue.Bury(ctx, deliveryID); err != nil {
		logger.Error.Printf("failed to bury message %d: %v", deliveryID, err)
	}
}
