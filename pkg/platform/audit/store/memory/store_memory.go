package memory

import (
	"context"
	"sync"

	"caravel/pkg/domain"
	audit "caravel/pkg/platform/audit"
)

// InMemoryStore keeps events in an ordered slice with a per-actor index. It
// backs development mode and tests; durability comes from the postgres outbox.
type InMemoryStore struct {
	mu      sync.RWMutex
	events  []audit.Event
	byActor map[domain.Address][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byActor: make(map[domain.Address][]int)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.byActor = make(map[domain.Address][]int)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.byActor[event.Actor] = append(s.byActor[event.Actor], len(s.events)-1)
	return nil
}

// ListByActor returns all events performed by the given principal, oldest first.
func (s *InMemoryStore) ListByActor(_ context.Context, actor domain.Address) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	indexes := s.byActor[actor]
	events := make([]audit.Event, 0, len(indexes))
	for _, i := range indexes {
		events = append(events, s.events[i])
	}
	return events, nil
}

// ListAll returns every recorded event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}

// ListRecent returns the most recent N events, newest last. Events are stored
// in append order, which matches timestamp order for a single process.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.events) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Event{}, s.events[start:]...), nil
}
