package service

import (
	"context"
	"sync"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/port"
)

// memJobStore is an in-memory port.JobStore with the same conditional
// terminal-write semantics as the real adapters.
type memJobStore struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	createErr   error
	getErr      error
	finalizeErr error
	getCount    int
	onGet       func(count int)
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*domain.Job)}
}

func (s *memJobStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memJobStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCount++
	if s.onGet != nil {
		s.onGet(s.getCount)
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *memJobStore) MarkProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && job.Status == domain.JobStatusPending {
		job.Status = domain.JobStatusProcessing
	}
	return nil
}

func (s *memJobStore) Complete(_ context.Context, id string, result domain.Result) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalizeErr != nil {
		return false, s.finalizeErr
	}
	job, ok := s.jobs[id]
	if !ok || job.Terminal() {
		return false, nil
	}
	job.Status = domain.JobStatusCompleted
	job.Result = &result
	return true, nil
}

func (s *memJobStore) Fail(_ context.Context, id string, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalizeErr != nil {
		return false, s.finalizeErr
	}
	job, ok := s.jobs[id]
	if !ok || job.Terminal() {
		return false, nil
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = reason
	return true, nil
}

// put seeds a job bypassing Create's error injection.
func (s *memJobStore) put(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
}

func (s *memJobStore) get(id string) *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job == nil {
		return nil
	}
	cp := *job
	return &cp
}

var _ port.JobStore = (*memJobStore)(nil)

// memQueue records queue interactions.
type memQueue struct {
	mu         sync.Mutex
	published  []domain.WorkItem
	acked      []int64
	nacked     []int64
	buried     []int64
	publishErr error
}

func newMemQueue() *memQueue {
	return &memQueue{}
}

func (q *memQueue) Publish(_ context.Context, item domain.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, item)
	return nil
}

func (q *memQueue) Claim(context.Context) (*port.Delivery, error) {
	return nil, nil
}

func (q *memQueue) Ack(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, id)
	return nil
}

func (q *memQueue) Nack(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacked = append(q.nacked, id)
	return nil
}

func (q *memQueue) Bury(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buried = append(q.buried, id)
	return nil
}

func (q *memQueue) ResetStalled(context.Context) error {
	return nil
}

func (q *memQueue) publishedItems() []domain.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.WorkItem(nil), q.published...)
}

var _ port.WorkQueue = (*memQueue)(nil)

// fakeRecognizer returns a canned prediction or error.
type fakeRecognizer struct {
	prediction domain.Prediction
	err        error
	calls      int
}

func (f *fakeRecognizer) Infer(context.Context, []byte) (domain.Prediction, error) {
	f.calls++
	if f.err != nil {
		return domain.Prediction{}, f.err
	}
	return f.prediction, nil
}

var _ port.Recognizer = (*fakeRecognizer)(nil)
