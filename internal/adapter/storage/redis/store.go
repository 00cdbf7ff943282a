// Package redis provides a Redis-backed job record store. Only the job
// records move to Redis; the work queue stays in the shared SQLite database,
// so the API and worker still need a common data directory.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/port"
)

type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a Redis-backed job store. ttl bounds how long finished
// job records are retained; zero means no expiry.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{
		client: client,
		prefix: "job:",
		ttl:    ttl,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) Create(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	_, err := s.update(ctx, id, func(job *domain.Job) bool {
		if job.Status != domain.JobStatusPending {
			return false
		}
		job.Status = domain.JobStatusProcessing
		return true
	})
	return err
}

func (s *Store) Complete(ctx context.Context, id string, result domain.Result) (bool, error) {
	return s.update(ctx, id, func(job *domain.Job) bool {
		if job.Terminal() {
			return false
		}
		job.Status = domain.JobStatusCompleted
		job.Result = &result
		return true
	})
}

func (s *Store) Fail(ctx context.Context, id string, reason string) (bool, error) {
	return s.update(ctx, id, func(job *domain.Job) bool {
		if job.Terminal() {
			return false
		}
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = reason
		return true
	})
}

// update applies mutate under an optimistic WATCH transaction so concurrent
// deliveries of the same job cannot interleave a terminal overwrite. mutate
// returns false to leave the record untouched.
func (s *Store) update(ctx context.Context, id string, mutate func(*domain.Job) bool) (bool, error) {
	key := s.key(id)
	var applied bool

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			return err
		}

		var job domain.Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return fmt.Errorf("unmarshal job: %w", err)
		}

		if !mutate(&job) {
			applied = false
			return nil
		}
		job.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}

	for range 5 {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return applied, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			return false, domain.ErrNotFound
		}
		return false, fmt.Errorf("redis watch: %w", err)
	}
	return false, fmt.Errorf("job %s: too many concurrent updates", id)
}

var _ port.JobStore = (*Store)(nil)
