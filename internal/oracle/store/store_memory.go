package store

import (
	"context"
	"sort"
	"sync"

	"caravel/internal/oracle/models"
	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
)

// InMemory keeps feeds in a mutex-guarded map.
type InMemory struct {
	mu    sync.RWMutex
	feeds map[domain.FeedID]*models.Feed
}

func NewInMemory() *InMemory {
	return &InMemory{feeds: make(map[domain.FeedID]*models.Feed)}
}

func (s *InMemory) Create(_ context.Context, feed *models.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.feeds[feed.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.feeds[feed.ID] = feed.Clone()
	return nil
}

func (s *InMemory) Find(_ context.Context, feedID domain.FeedID) (*models.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[feedID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return feed.Clone(), nil
}

// Execute validates and mutates the feed under the write lock. The stored
// feed is only touched when validate passes; callers always get back a
// copy.
func (s *InMemory) Execute(_ context.Context, feedID domain.FeedID, validate func(*models.Feed) error, mutate func(*models.Feed)) (*models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[feedID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(feed); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(feed)
	}
	return feed.Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feeds := make([]*models.Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		feeds = append(feeds, feed.Clone())
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].ID < feeds[j].ID })
	return feeds, nil
}
