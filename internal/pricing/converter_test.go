package pricing

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/requestcontext"
)

const (
	testFeed       = domain.FeedID("nav-primary")
	testShareDenom = domain.Denom("cvlsh")
	testMaxAge     = time.Hour
)

// fakeNAV is a scriptable NAVSource.
type fakeNAV struct {
	price     sdkmath.Int
	updatedAt time.Time
	valid     bool
}

func (f *fakeNAV) GetPrice(context.Context, domain.FeedID) (sdkmath.Int, time.Time, error) {
	return f.price, f.updatedAt, nil
}

func (f *fakeNAV) IsValid(context.Context, domain.FeedID) (bool, error) {
	return f.valid, nil
}

// fakeSupply is a fixed-supply SupplyReader.
type fakeSupply struct {
	supply sdkmath.Int
}

func (f *fakeSupply) TotalSupply(context.Context, domain.Denom) (sdkmath.Int, error) {
	return f.supply, nil
}

func testContext(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

func TestQuoteRevalidation(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	oneE18 := intFromString(t, "1000000000000000000")

	t.Run("paused feed poisons the quote", func(t *testing.T) {
		nav := &fakeNAV{price: oneE18, updatedAt: now, valid: false}
		c := NewConverter(nav, &fakeSupply{supply: sdkmath.ZeroInt()}, testShareDenom, 6)

		_, err := c.Quote(testContext(now), testFeed, testMaxAge)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOracleInvalid))
	})

	t.Run("unprimed feed poisons the quote", func(t *testing.T) {
		nav := &fakeNAV{price: sdkmath.ZeroInt(), valid: true}
		c := NewConverter(nav, &fakeSupply{supply: sdkmath.ZeroInt()}, testShareDenom, 6)

		_, err := c.Quote(testContext(now), testFeed, testMaxAge)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOracleInvalid))
	})

	t.Run("snapshot older than max age is stale", func(t *testing.T) {
		nav := &fakeNAV{price: oneE18, updatedAt: now.Add(-testMaxAge - time.Nanosecond), valid: true}
		c := NewConverter(nav, &fakeSupply{supply: sdkmath.ZeroInt()}, testShareDenom, 6)

		_, err := c.Quote(testContext(now), testFeed, testMaxAge)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOracleStale))
	})

	t.Run("snapshot exactly at max age still quotes", func(t *testing.T) {
		nav := &fakeNAV{price: oneE18, updatedAt: now.Add(-testMaxAge), valid: true}
		c := NewConverter(nav, &fakeSupply{supply: sdkmath.ZeroInt()}, testShareDenom, 6)

		quote, err := c.Quote(testContext(now), testFeed, testMaxAge)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(1_000_000), quote.ScaledPrice)
	})

	t.Run("price that vanishes at asset precision is invalid", func(t *testing.T) {
		nav := &fakeNAV{price: sdkmath.NewInt(999_999_999_999), updatedAt: now, valid: true}
		c := NewConverter(nav, &fakeSupply{supply: sdkmath.ZeroInt()}, testShareDenom, 6)

		_, err := c.Quote(testContext(now), testFeed, testMaxAge)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOracleInvalid))
	})
}

// The canonical 6-decimal walkthrough: deposit 100 units at 1.0, reprice to
// 1.5, and confirm holdings revalue without changing share count.
func TestSixDecimalScenario(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ctx := testContext(now)
	nav := &fakeNAV{price: intFromString(t, "1000000000000000000"), updatedAt: now, valid: true}
	supply := &fakeSupply{supply: sdkmath.ZeroInt()}
	c := NewConverter(nav, supply, testShareDenom, 6)

	deposit := sdkmath.NewInt(100_000_000) // 100.000000

	shares, err := c.AssetsToShares(ctx, testFeed, testMaxAge, deposit)
	require.NoError(t, err)
	assert.Equal(t, deposit, shares, "1:1 at price 1.0")

	supply.supply = shares
	nav.price = intFromString(t, "1500000000000000000")

	total, err := c.TotalAssets(ctx, testFeed, testMaxAge)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(150_000_000), total)

	backToShares, err := c.AssetsToShares(ctx, testFeed, testMaxAge, total)
	require.NoError(t, err)
	assert.Equal(t, shares, backToShares)
}

func TestTotalAssets(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("zero supply is zero even while the feed is paused", func(t *testing.T) {
		nav := &fakeNAV{price: sdkmath.ZeroInt(), valid: false}
		c := NewConverter(nav, &fakeSupply{supply: sdkmath.ZeroInt()}, testShareDenom, 6)

		total, err := c.TotalAssets(testContext(now), testFeed, testMaxAge)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("nonzero supply requires a live quote", func(t *testing.T) {
		nav := &fakeNAV{price: sdkmath.ZeroInt(), valid: false}
		c := NewConverter(nav, &fakeSupply{supply: sdkmath.NewInt(1)}, testShareDenom, 6)

		_, err := c.TotalAssets(testContext(now), testFeed, testMaxAge)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOracleInvalid))
	})
}
