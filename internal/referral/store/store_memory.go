package store

import (
	"context"
	"sync"

	"caravel/internal/referral/models"
	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded binding store for tests and single-node runs.
type InMemory struct {
	mu       sync.RWMutex
	bindings map[domain.Address]*models.Binding
}

func NewInMemory() *InMemory {
	return &InMemory{bindings: make(map[domain.Address]*models.Binding)}
}

func (s *InMemory) Create(_ context.Context, binding *models.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bindings[binding.Receiver]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.bindings[binding.Receiver] = binding.Clone()
	return nil
}

func (s *InMemory) Find(_ context.Context, receiver domain.Address) (*models.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	binding, ok := s.bindings[receiver]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return binding.Clone(), nil
}
