package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/BaSui01/assetflow/types"
)

// ErrExists is returned by Create for a duplicate id.
var ErrExists = errors.New("job already exists")

func notFound(what, id string) error {
	return types.Errorf(types.ErrNotFound, "%s %s not found", what, id)
}

// IsNotFound reports whether err means the job or archive does not exist.
func IsNotFound(err error) bool {
	return types.IsErrorCode(err, types.ErrNotFound)
}

// Store persists job records.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, job *Job) error
	// List returns the most recently created jobs first.
	List(ctx context.Context, limit int) ([]*Job, error)
	// Recoverable returns jobs left queued or running.
	Recoverable(ctx context.Context) ([]*Job, error)
}

// MemoryStore keeps jobs in a map. Data is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return ErrExists
	}
	s.jobs[job.ID] = job.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	return j.clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return notFound("job", job.ID)
	}
	s.jobs[job.ID] = job.clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*Job, error) {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID > out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Recoverable(_ context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for _, j := range s.jobs {
		if j.Status.IsRecoverable() {
			out = append(out, j.clone())
		}
	}
	return out, nil
}
