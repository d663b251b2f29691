package models

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

var (
	testNow       = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	testFeedID    = domain.FeedID("nav-primary")
	recipientAddr = domain.MustAddress("0x00000000000000000000000000000000000000f1")
)

func validConfig() Config {
	return Config{
		MaxPriceAge:        30 * time.Minute,
		EpochLength:        24 * time.Hour,
		ExitFeeBps:         10,
		LiquidityRecipient: recipientAddr,
	}
}

func newTestState(t *testing.T) *State {
	t.Helper()
	state, err := NewState(validConfig(), testFeedID, testNow)
	require.NoError(t, err)
	return state
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero price age", func(c *Config) { c.MaxPriceAge = 0 }},
		{"negative epoch", func(c *Config) { c.EpochLength = -time.Hour }},
		{"fee above cap", func(c *Config) { c.ExitFeeBps = MaxExitFeeBps + 1 }},
		{"zero recipient", func(c *Config) { c.LiquidityRecipient = domain.ZeroAddress }},
		{"empty recipient", func(c *Config) { c.LiquidityRecipient = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.True(t, dErrors.HasCode(cfg.Validate(), dErrors.CodeInvalidConfig))
		})
	}

	t.Run("fee at cap passes", func(t *testing.T) {
		cfg := validConfig()
		cfg.ExitFeeBps = MaxExitFeeBps
		assert.NoError(t, cfg.Validate())
	})
}

func TestNewState(t *testing.T) {
	state := newTestState(t)
	assert.Equal(t, testFeedID, state.ActiveFeed)
	assert.True(t, state.AccruedFees.IsZero())
	assert.True(t, state.Flows.GrossDeposits.IsZero())
	assert.True(t, state.Pending.IsZero())
	assert.False(t, state.Paused)

	_, err := NewState(validConfig(), domain.FeedID("NOT VALID"), testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestPauseTransitions(t *testing.T) {
	state := newTestState(t)

	require.NoError(t, state.CanFlow())
	require.NoError(t, state.CanPause())
	state.ApplyPause(testNow)

	assert.True(t, dErrors.HasCode(state.CanFlow(), dErrors.CodePaused))
	assert.True(t, dErrors.HasCode(state.CanPause(), dErrors.CodeInvariantViolation))

	require.NoError(t, state.CanUnpause())
	state.ApplyUnpause(testNow)
	assert.NoError(t, state.CanFlow())
	assert.True(t, dErrors.HasCode(state.CanUnpause(), dErrors.CodeInvariantViolation))
}

func TestFlowAccounting(t *testing.T) {
	state := newTestState(t)

	state.ApplyDeposit(sdkmath.NewInt(1000), testNow)
	state.ApplyDeposit(sdkmath.NewInt(500), testNow)
	assert.Equal(t, sdkmath.NewInt(1500), state.Flows.GrossDeposits)

	state.ApplyWithdrawal(sdkmath.NewInt(400), sdkmath.NewInt(4), testNow)
	assert.Equal(t, sdkmath.NewInt(400), state.Flows.GrossWithdrawals)
	assert.Equal(t, sdkmath.NewInt(4), state.AccruedFees)

	state.ApplyFeeSweep(sdkmath.NewInt(3), testNow)
	assert.Equal(t, sdkmath.NewInt(1), state.AccruedFees, "under-funded sweep leaves the remainder owed")
}

func TestFeedChangeTimelock(t *testing.T) {
	state := newTestState(t)
	next := domain.FeedID("nav-secondary")

	err := state.CanExecuteFeedChange(testNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNothingQueued))

	state.ApplyQueueFeedChange(next, testNow)

	err = state.CanExecuteFeedChange(testNow.Add(FeedChangeDelay - time.Second))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimelockActive))

	require.NoError(t, state.CanExecuteFeedChange(testNow.Add(FeedChangeDelay)))

	t.Run("requeue restarts the clock", func(t *testing.T) {
		requeuedAt := testNow.Add(time.Hour)
		state.ApplyQueueFeedChange(domain.FeedID("nav-tertiary"), requeuedAt)

		err := state.CanExecuteFeedChange(testNow.Add(FeedChangeDelay))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimelockActive))
		require.NoError(t, state.CanExecuteFeedChange(requeuedAt.Add(FeedChangeDelay)))

		state.ApplyExecuteFeedChange(requeuedAt.Add(FeedChangeDelay))
		assert.Equal(t, domain.FeedID("nav-tertiary"), state.ActiveFeed)
		assert.True(t, state.Pending.IsZero())
	})
}

func TestNextEpochBoundary(t *testing.T) {
	day := 24 * time.Hour

	midday := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), NextEpochBoundary(midday, day))

	t.Run("on a boundary waits a full epoch", func(t *testing.T) {
		midnight := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), NextEpochBoundary(midnight, day))
	})

	t.Run("one nanosecond before a boundary", func(t *testing.T) {
		almost := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), NextEpochBoundary(almost, day))
	})

	t.Run("sub-day epochs batch within the day", func(t *testing.T) {
		at := time.Date(2026, 3, 14, 13, 30, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC), NextEpochBoundary(at, 8*time.Hour))
	})
}
