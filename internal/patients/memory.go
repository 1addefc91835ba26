package patients

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. The server uses it for
// STORE_DRIVER=memory.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Patient
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Patient), now: time.Now}
}

func (s *MemoryStore) GetAll(ctx context.Context) ([]Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Patient, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	SortByDate(out)
	return out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (string, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.byID[id] = in.Patient(id, s.now().UTC())
	s.order = append(s.order, id)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, u UpdateInput) (*Patient, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Apply(&p)
	s.byID[id] = p
	return &p, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, query string) ([]Patient, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, query), nil
}
