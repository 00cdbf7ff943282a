package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librasign/signcheck/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
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
	assert.Equal(t, "obrigado", got.ExpectedAction)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Nil(t, got.Result, "a pending job carries no result")
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_MarkProcessing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := domain.NewJob(1, "thanks")
	require.NoError(t, store.Create(ctx, job))

	require.NoError(t, store.MarkProcessing(ctx, job.ID))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
}

func TestStore_Complete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := domain.NewJob(1, "thanks")
	require.NoError(t, store.Create(ctx, job))

	applied, err := store.Complete(ctx, job.ID, domain.Result{
		PredictedAction: "thanks",
		Confidence:      0.93,
		IsMatch:         true,
		ExpectedAction:  "thanks",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "thanks", got.Result.PredictedAction)
	assert.InDelta(t, 0.93, got.Result.Confidence, 1e-9)
	assert.True(t, got.Result.IsMatch)
	assert.Equal(t, "thanks", got.Result.ExpectedAction)
}

func TestStore_Fail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := domain.NewJob(1, "thanks")
	require.NoError(t, store.Create(ctx, job))
	require.NoError(t, store.MarkProcessing(ctx, job.ID))

	applied, err := store.Fail(ctx, job.ID, "inference failed: model unreachable")
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "inference failed: model unreachable", got.ErrorMessage)
	assert.Nil(t, got.Result)
}

func TestStore_TerminalWritesAreConditional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := domain.NewJob(1, "thanks")
	require.NoError(t, store.Create(ctx, job))

	applied, err := store.Complete(ctx, job.ID, domain.Result{
		PredictedAction: "thanks", Confidence: 0.9, IsMatch: true, ExpectedAction: "thanks",
	})
	require.NoError(t, err)
	require.True(t, applied)

	// A second terminal write must lose the race and leave the record intact
	applied, err = store.Fail(ctx, job.ID, "late failure")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestStore_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hasUser, err := store.HasUser(ctx)
	require.NoError(t, err)
	assert.False(t, hasUser)

	id, err := store.CreateUser(ctx, "admin", "$2a$10$hash")
	require.NoError(t, err)
	assert.Positive(t, id)

	hasUser, err = store.HasUser(ctx)
	require.NoError(t, err)
	assert.True(t, hasUser)

	byName, err := store.GetUser(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)
	assert.Equal(t, "$2a$10$hash", byName.PasswordHash)

	byID, err := store.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "admin", byID.Username)

	_, err = store.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Users_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "admin", "hash-a")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, "admin", "hash-b")
	assert.Error(t, err)
}
