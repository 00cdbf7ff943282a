package service

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/port"
)

var errStillRunning = errors.New("job not yet terminal")

// PollConfig shapes the long-poll read loop: reads start Initial apart, the
// gap doubles after every non-terminal read up to Cap, and the whole wait is
// bounded by MaxWait.
type PollConfig struct {
	Initial time.Duration
	Cap     time.Duration
	MaxWait time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		Initial: 100 * time.Millisecond,
		Cap:     2 * time.Second,
		MaxWait: 30 * time.Second,
	}
}

type ResultService struct {
	store port.JobStore
	poll  PollConfig
}

func NewResultService(store port.JobStore, poll PollConfig) *ResultService {
	return &ResultService{
		store: store,
		poll:  poll,
	}
}

// Get returns the job's current projection. Jobs owned by another caller are
// reported as forbidden.
func (s *ResultService) Get(ctx context.Context, id string, callerID int64) (*domain.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != callerID {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

// Wait blocks until the job reaches a terminal state or MaxWait elapses,
// then returns whatever state is current. A timeout is not an error: the
// caller simply sees a non-terminal status and may poll again. The wait is
// a read loop against the store; no lock is held on the record.
func (s *ResultService) Wait(ctx context.Context, id string, callerID int64) (*domain.Job, error) {
	job, err := s.Get(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return job, nil
	}

	backoff := retry.WithMaxDuration(s.poll.MaxWait,
		retry.WithCappedDuration(s.poll.Cap,
			retry.NewExponential(s.poll.Initial)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		j, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		job = j
		if !job.Terminal() {
			return retry.RetryableError(errStillRunning)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errStillRunning) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return job, nil
		}
		return nil, err
	}
	return job, nil
}
