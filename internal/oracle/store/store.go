// Package store persists NAV feeds. Implementations return sentinel errors;
// the service layer translates them into coded domain errors.
package store

import (
	"context"

	"caravel/internal/oracle/models"
	"caravel/pkg/domain"
)

// Store persists feeds keyed by id.
//
// Execute runs validate and mutate while holding the feed's lock (mutex in
// memory, SELECT FOR UPDATE in postgres) so concurrent reporters cannot
// both pass the guards against the same previous snapshot.
type Store interface {
	Create(ctx context.Context, feed *models.Feed) error
	Find(ctx context.Context, feedID domain.FeedID) (*models.Feed, error)
	Execute(ctx context.Context, feedID domain.FeedID, validate func(*models.Feed) error, mutate func(*models.Feed)) (*models.Feed, error)
	List(ctx context.Context) ([]*models.Feed, error)
}
