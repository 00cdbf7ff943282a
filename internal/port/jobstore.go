package port

import (
	"context"

	"github.com/librasign/signcheck/internal/domain"
)

// JobStore is the durable source of truth for job state, shared by the API
// and worker processes. Terminal writes are conditional so that redelivered
// work items can never overwrite an existing outcome: Complete and Fail
// report false when the job was already terminal.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	// MarkProcessing transitions pending → processing. Any other current
	// status leaves the record untouched.
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result domain.Result) (bool, error)
	Fail(ctx context.Context, id string, reason string) (bool, error)
}
