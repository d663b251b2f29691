package handler

import (
	"time"

	"caravel/internal/oracle/models"
)

// FeedResponse is the JSON view of a feed returned by GET /nav and
// POST /nav/feeds.
type FeedResponse struct {
	Feed                string     `json:"feed"`
	Price               string     `json:"price"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
	Valid               bool       `json:"valid"`
	Paused              bool       `json:"paused"`
	MaxStalenessSeconds int64      `json:"max_staleness_seconds"`
	MaxMoveBps          uint32     `json:"max_move_bps"`
}

// FromFeed converts the domain feed into its response shape. An unprimed
// feed reports price "0" with no timestamp.
func FromFeed(feed *models.Feed) FeedResponse {
	resp := FeedResponse{
		Feed:                feed.ID.String(),
		Price:               "0",
		Valid:               !feed.Paused,
		Paused:              feed.Paused,
		MaxStalenessSeconds: int64(feed.Config.MaxStaleness / time.Second),
		MaxMoveBps:          feed.Config.MaxMoveBps,
	}
	if !feed.Snapshot.IsZero() {
		resp.Price = feed.Snapshot.Price.String()
		updatedAt := feed.Snapshot.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
