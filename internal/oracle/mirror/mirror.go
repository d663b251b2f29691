// Package mirror pushes accepted NAV snapshots into Redis so read-heavy
// consumers can poll a key or subscribe to a channel instead of hitting the
// service. The mirror is best-effort: the store is the source of truth and
// a mirror failure never fails the report that produced it.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"caravel/internal/oracle/models"
	"caravel/pkg/domain"
)

const (
	keyPrefix     = "nav:"
	channelPrefix = "nav."
)

// Mirror writes snapshots to Redis. A nil Mirror is a no-op, so callers
// never need to branch on whether mirroring is configured.
type Mirror struct {
	client redis.Cmdable
}

func New(client *redis.Client) *Mirror {
	if client == nil {
		return nil
	}
	return &Mirror{client: client}
}

// Publish sets nav:<feed> to the JSON snapshot and publishes the same
// payload on nav.<feed>. Errors are returned for the caller to log.
func (m *Mirror) Publish(ctx context.Context, feedID domain.FeedID, snap models.Snapshot) error {
	if m == nil {
		return nil
	}
	payload, err := json.Marshal(snapshotPayload{
		Feed:      feedID.String(),
		Price:     snap.Price.String(),
		UpdatedAt: snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := keyPrefix + feedID.String()
	if err := m.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	channel := channelPrefix + feedID.String()
	if err := m.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

type snapshotPayload struct {
	Feed      string `json:"feed"`
	Price     string `json:"price"`
	UpdatedAt string `json:"updated_at"`
}
