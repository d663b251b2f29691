package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caravel/pkg/domain"
	audit "caravel/pkg/platform/audit"
	auditmemory "caravel/pkg/platform/audit/store/memory"
	"caravel/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func TestRecorder(t *testing.T) {
	actor := domain.MustAddress("0x1111111111111111111111111111111111111111")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("fills category, timestamp and correlation from context", func(t *testing.T) {
		store := auditmemory.NewInMemoryStore()
		recorder := audit.NewRecorder(store, audit.WithLogger(logger))

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), now)
		ctx = requestcontext.WithRequestID(ctx, "req-42")
		ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.9", "test-agent")

		err := recorder.Record(ctx, audit.Event{
			Actor:  actor,
			Action: string(audit.EventVaultDeposit),
			Amount: "100000000",
		})
		require.NoError(t, err)

		events, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.Equal(t, now, events[0].Timestamp)
		assert.Equal(t, "req-42", events[0].RequestID)
		assert.Equal(t, "10.0.0.9", events[0].ClientIP)
	})

	t.Run("fails closed on store error", func(t *testing.T) {
		recorder := audit.NewRecorder(failingStore{}, audit.WithLogger(logger))
		err := recorder.Record(context.Background(), audit.Event{
			Actor:  actor,
			Action: string(audit.EventWithdrawalClaimed),
		})
		require.Error(t, err)
	})

	t.Run("rejects events without action", func(t *testing.T) {
		recorder := audit.NewRecorder(auditmemory.NewInMemoryStore())
		err := recorder.Record(context.Background(), audit.Event{Actor: actor})
		require.Error(t, err)
	})

	t.Run("category always derives from action", func(t *testing.T) {
		store := auditmemory.NewInMemoryStore()
		recorder := audit.NewRecorder(store)

		// Emitter-supplied category is overwritten.
		err := recorder.Record(context.Background(), audit.Event{
			Actor:    actor,
			Action:   string(audit.EventCapabilityGranted),
			Category: audit.CategoryOperations,
		})
		require.NoError(t, err)

		events, _ := store.ListAll(context.Background())
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategorySecurity, events[0].Category)
	})
}

func TestEventCategories(t *testing.T) {
	assert.Equal(t, audit.CategoryCompliance, audit.EventWithdrawalQueued.Category())
	assert.Equal(t, audit.CategoryCompliance, audit.EventTokensRescued.Category())
	assert.Equal(t, audit.CategorySecurity, audit.EventFeedChangeQueued.Category())
	assert.Equal(t, audit.CategoryOperations, audit.EventPriceReported.Category())
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("unknown_event").Category())
}
