package store

import (
	"context"
	"sort"
	"sync"

	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded capability registry for tests and single-node
// runs.
type InMemory struct {
	mu    sync.RWMutex
	grant map[domain.Address]map[domain.Capability]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{grant: make(map[domain.Address]map[domain.Capability]struct{})}
}

func (s *InMemory) Grant(_ context.Context, principal domain.Address, capability domain.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.grant[principal]
	if !ok {
		held = make(map[domain.Capability]struct{})
		s.grant[principal] = held
	}
	if _, ok := held[capability]; ok {
		return sentinel.ErrAlreadyUsed
	}
	held[capability] = struct{}{}
	return nil
}

func (s *InMemory) Revoke(_ context.Context, principal domain.Address, capability domain.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.grant[principal]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := held[capability]; !ok {
		return sentinel.ErrNotFound
	}
	delete(held, capability)
	return nil
}

func (s *InMemory) Has(_ context.Context, principal domain.Address, capability domain.Capability) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.grant[principal][capability]
	return ok, nil
}

func (s *InMemory) List(_ context.Context, principal domain.Address) ([]domain.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	capabilities := make([]domain.Capability, 0, len(s.grant[principal]))
	for capability := range s.grant[principal] {
		capabilities = append(capabilities, capability)
	}
	sort.Slice(capabilities, func(i, j int) bool { return capabilities[i] < capabilities[j] })
	return capabilities, nil
}
