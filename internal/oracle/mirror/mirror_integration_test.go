//go:build integration

package mirror_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"caravel/internal/oracle/mirror"
	"caravel/internal/oracle/models"
	"caravel/pkg/domain"
	"caravel/pkg/testutil/containers"
)

func TestMirrorPublishesKeyAndChannel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rc := containers.NewRedisContainer(t)
	m := mirror.New(rc.Client)

	feedID := domain.FeedID("nav-usd")
	sub := rc.Client.Subscribe(ctx, "nav.nav-usd")
	defer sub.Close()
	// Wait for the subscription to be live before publishing, otherwise the
	// message can be lost.
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	updatedAt := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	snap := models.Snapshot{
		Price:     sdkmath.NewInt(1_050_000_000_000_000_000),
		UpdatedAt: updatedAt,
	}
	require.NoError(t, m.Publish(ctx, feedID, snap))

	type payload struct {
		Feed      string `json:"feed"`
		Price     string `json:"price"`
		UpdatedAt string `json:"updated_at"`
	}

	// The key holds the latest snapshot for pollers.
	raw, err := rc.Client.Get(ctx, "nav:nav-usd").Result()
	require.NoError(t, err)
	var got payload
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	require.Equal(t, "nav-usd", got.Feed)
	require.Equal(t, "1050000000000000000", got.Price)
	require.Equal(t, updatedAt.Format(time.RFC3339Nano), got.UpdatedAt)

	// Subscribers get the same payload pushed.
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	require.JSONEq(t, raw, msg.Payload)
}

func TestMirrorOverwritesOnRepublish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rc := containers.NewRedisContainer(t)
	m := mirror.New(rc.Client)
	feedID := domain.FeedID("nav-usd")

	first := models.Snapshot{Price: sdkmath.NewInt(100), UpdatedAt: time.Now().UTC()}
	require.NoError(t, m.Publish(ctx, feedID, first))
	second := models.Snapshot{Price: sdkmath.NewInt(101), UpdatedAt: time.Now().UTC()}
	require.NoError(t, m.Publish(ctx, feedID, second))

	raw, err := rc.Client.Get(ctx, "nav:nav-usd").Result()
	require.NoError(t, err)

	var got struct {
		Price string `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	require.Equal(t, "101", got.Price)
}
