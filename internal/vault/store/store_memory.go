package store

import (
	"context"
	"sort"
	"sync"

	"caravel/internal/vault/models"
	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded vault store for tests and single-node runs.
// ForUpdate reads are plain clones here; exclusion comes from the service's
// vault mutex and the memory tx runner.
type InMemory struct {
	mu       sync.RWMutex
	state    *models.State
	requests map[uint64]*models.WithdrawalRequest
	nextID   uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[uint64]*models.WithdrawalRequest),
		nextID:   1,
	}
}

func (s *InMemory) EnsureState(_ context.Context, initial *models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		s.state = initial.Clone()
	}
	return nil
}

func (s *InMemory) State(_ context.Context) (*models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, sentinel.ErrNotFound
	}
	return s.state.Clone(), nil
}

func (s *InMemory) StateForUpdate(ctx context.Context) (*models.State, error) {
	return s.State(ctx)
}

func (s *InMemory) SaveState(_ context.Context, state *models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state.Clone()
	return nil
}

func (s *InMemory) CreateRequest(_ context.Context, request *models.WithdrawalRequest) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := request.Clone()
	stored.ID = s.nextID
	s.nextID++
	s.requests[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *InMemory) Request(_ context.Context, id uint64) (*models.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return request.Clone(), nil
}

func (s *InMemory) RequestForUpdate(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	return s.Request(ctx, id)
}

func (s *InMemory) SaveRequest(_ context.Context, request *models.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[request.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *InMemory) RequestsByOwner(_ context.Context, owner domain.Address) ([]*models.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var requests []*models.WithdrawalRequest
	for _, request := range s.requests {
		if request.Owner == owner {
			requests = append(requests, request.Clone())
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID > requests[j].ID })
	return requests, nil
}
