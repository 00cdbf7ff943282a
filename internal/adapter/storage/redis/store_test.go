package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librasign/signcheck/internal/domain"
)

// These tests need a running Redis; set TEST_REDIS_ADDR to enable them.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 9})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return NewStore(client, time.Hour)
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := domain.NewJob(7, "obrigado")
	require.NoError(t, store.Create(ctx, job))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, int64(7), got.OwnerID)
	assert.Equal(t, domain.JobStatusPending, got.Status)
}

func TestStore_Create_Duplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := domain.NewJob(1, "thanks")
	require.NoError(t, store.Create(ctx, job))
	assert.Error(t, store.Create(ctx, job))
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CompleteIsConditional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := domain.NewJob(1, "thanks")
	require.NoError(t, store.Create(ctx, job))
	require.NoError(t, store.MarkProcessing(ctx, job.ID))

	applied, err := store.Complete(ctx, job.ID, domain.Result{
		PredictedAction: "thanks", Confidence: 0.9, IsMatch: true, ExpectedAction: "thanks",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.Fail(ctx, job.ID, "late failure")
	require.NoError(t, err)
	assert.False(t, applied, "a terminal record must not be overwritten")

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.IsMatch)
}

func TestStore_Fail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := domain.NewJob(1, "thanks")
	require.NoError(t, store.Create(ctx, job))

	applied, err := store.Fail(ctx, job.ID, "inference failed")
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "inference failed", got.ErrorMessage)
}
