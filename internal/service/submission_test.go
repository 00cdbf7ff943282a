package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librasign/signcheck/internal/domain"
)

const maxVideoBytes = 1024

func TestSubmissionService_Submit(t *testing.T) {
	store := newMemJobStore()
	queue := newMemQueue()
	svc := NewSubmissionService(store, queue, maxVideoBytes)

	video := []byte{0x01, 0x02, 0x03}
	job, err := svc.Submit(context.Background(), 7, "thanks", video)

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, int64(7), job.OwnerID)

	// Record is readable immediately after submit
	stored := store.get(job.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.JobStatusPending, stored.Status)

	published := queue.publishedItems()
	require.Len(t, published, 1)
	assert.Equal(t, job.ID, published[0].JobID)
	assert.Equal(t, "thanks", published[0].ExpectedAction)

	decoded, err := published[0].Video()
	require.NoError(t, err)
	assert.Equal(t, video, decoded)
}

func TestSubmissionService_Submit_EmptyAction(t *testing.T) {
	store := newMemJobStore()
	queue := newMemQueue()
	svc := NewSubmissionService(store, queue, maxVideoBytes)

	_, err := svc.Submit(context.Background(), 1, "   ", []byte{0x01})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, queue.publishedItems())
}

func TestSubmissionService_Submit_EmptyVideo(t *testing.T) {
	store := newMemJobStore()
	queue := newMemQueue()
	svc := NewSubmissionService(store, queue, maxVideoBytes)

	_, err := svc.Submit(context.Background(), 1, "thanks", nil)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, queue.publishedItems())
}

func TestSubmissionService_Submit_OversizedVideo(t *testing.T) {
	store := newMemJobStore()
	queue := newMemQueue()
	svc := NewSubmissionService(store, queue, maxVideoBytes)

	_, err := svc.Submit(context.Background(), 1, "thanks", make([]byte, maxVideoBytes+1))

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, queue.publishedItems(), "no message may be published for a rejected submission")
	assert.Zero(t, len(store.jobs), "no record may be created for a rejected submission")
}

func TestSubmissionService_Submit_StoreError(t *testing.T) {
	store := newMemJobStore()
	store.createErr = errors.New("store down")
	queue := newMemQueue()
	svc := NewSubmissionService(store, queue, maxVideoBytes)

	job, err := svc.Submit(context.Background(), 1, "thanks", []byte{0x01})

	assert.Error(t, err)
	assert.Nil(t, job)
	assert.Empty(t, queue.publishedItems(), "nothing may be published when the record write fails")
}

func TestSubmissionService_Submit_PublishError(t *testing.T) {
	store := newMemJobStore()
	queue := newMemQueue()
	queue.publishErr = errors.New("broker down")
	svc := NewSubmissionService(store, queue, maxVideoBytes)

	job, err := svc.Submit(context.Background(), 1, "thanks", []byte{0x01})

	assert.ErrorIs(t, err, ErrPublish)
	require.NotNil(t, job, "the recorded job must be returned so the caller can observe it")

	stored := store.get(job.ID)
	require.NotNil(t, stored, "the pending record survives a publish failure")
	assert.Equal(t, domain.JobStatusPending, stored.Status)
}
