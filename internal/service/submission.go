package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/infrastructure/logger"
	"github.com/librasign/signcheck/internal/port"
)

// ErrPublish marks a submission whose job record was written but whose work
// item could not be published. The record stays pending and nothing will pick
// it up; the caller has to resubmit. See the README.
var ErrPublish = errors.New("publish work item")

type SubmissionService struct {
	store         port.JobStore
	queue         port.WorkQueue
	maxVideoBytes int64
}

func NewSubmissionService(store port.JobStore, queue port.WorkQueue, maxVideoBytes int64) *SubmissionService {
	return &SubmissionService{
		store:         store,
		queue:         queue,
		maxVideoBytes: maxVideoBytes,
	}
}

// Submit validates the request, records the job as pending and publishes a
// work item, in that order. The record write happening first guarantees a
// submitted job is always readable, at the cost that a publish failure
// leaves an orphaned pending record; in that case the job is returned
// together with ErrPublish.
func (s *SubmissionService) Submit(ctx context.Context, ownerID int64, expectedAction string, video []byte) (*domain.Job, error) {
	expectedAction = strings.TrimSpace(expectedAction)
	if expectedAction == "" {
		return nil, fmt.Errorf("%w: expected action must not be empty", domain.ErrValidation)
	}
	if len(video) == 0 {
		return nil, fmt.Errorf("%w: video must not be empty", domain.ErrValidation)
	}
	if int64(len(video)) > s.maxVideoBytes {
		return nil, fmt.Errorf("%w: video exceeds %d bytes", domain.ErrValidation, s.maxVideoBytes)
	}

	job := domain.NewJob(ownerID, expectedAction)
	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}

	if err := s.queue.Publish(ctx, domain.NewWorkItem(job.ID, job.ExpectedAction, video)); err != nil {
		logger.Error.Printf("job %s recorded but not published: %v", job.ID, err)
		return job, fmt.Errorf("%w: %v", ErrPublish, err)
	}

	logger.Info.Printf("job %s submitted: action=%s, video=%d bytes",
		job.ID, logger.SanitizeForLog(expectedAction), len(video))
	return job, nil
}
