package pricing

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/requestcontext"
)

// NAVSource is the read surface of the price feed service.
type NAVSource interface {
	GetPrice(ctx context.Context, feedID domain.FeedID) (sdkmath.Int, time.Time, error)
	IsValid(ctx context.Context, feedID domain.FeedID) (bool, error)
}

// SupplyReader reports the outstanding supply of a denom.
type SupplyReader interface {
	TotalSupply(ctx context.Context, denom domain.Denom) (sdkmath.Int, error)
}

// Quote is a validated price observation, usable for conversions until the
// caller's next operation. Holders must not cache quotes across operations;
// every entry point re-quotes so a pause or stale snapshot poisons reads
// immediately.
type Quote struct {
	Price       sdkmath.Int
	ScaledPrice sdkmath.Int
	AssetScale  sdkmath.Int
	UpdatedAt   time.Time
}

// SharesForAssets converts assets to shares at this quote, rounding down.
func (q Quote) SharesForAssets(assets sdkmath.Int) sdkmath.Int {
	return SharesForAssets(assets, q.ScaledPrice, q.AssetScale)
}

// AssetsForShares converts shares to assets at this quote, rounding down.
func (q Quote) AssetsForShares(shares sdkmath.Int) sdkmath.Int {
	return AssetsForShares(shares, q.ScaledPrice, q.AssetScale)
}

// Converter prices conversions off a NAV feed, revalidating the feed on
// every call.
type Converter struct {
	nav           NAVSource
	supply        SupplyReader
	shareDenom    domain.Denom
	assetDecimals uint8
	assetScale    sdkmath.Int
}

func NewConverter(nav NAVSource, supply SupplyReader, shareDenom domain.Denom, assetDecimals uint8) *Converter {
	return &Converter{
		nav:           nav,
		supply:        supply,
		shareDenom:    shareDenom,
		assetDecimals: assetDecimals,
		assetScale:    AssetScale(assetDecimals),
	}
}

// Quote revalidates the feed and returns a conversion-ready price.
// Fails with CodeOracleInvalid when the feed is paused, unprimed, or too
// fine-grained for the asset's precision, and CodeOracleStale when the
// snapshot is older than maxAge. Age is measured against the request time,
// and equality at the boundary still passes.
func (c *Converter) Quote(ctx context.Context, feedID domain.FeedID, maxAge time.Duration) (Quote, error) {
	valid, err := c.nav.IsValid(ctx, feedID)
	if err != nil {
		return Quote{}, err
	}
	if !valid {
		return Quote{}, dErrors.New(dErrors.CodeOracleInvalid, "price feed is paused")
	}

	price, updatedAt, err := c.nav.GetPrice(ctx, feedID)
	if err != nil {
		return Quote{}, err
	}
	if price.IsNil() || price.IsZero() {
		return Quote{}, dErrors.New(dErrors.CodeOracleInvalid, "price feed has no price")
	}
	if requestcontext.Now(ctx).After(updatedAt.Add(maxAge)) {
		return Quote{}, dErrors.New(dErrors.CodeOracleStale, "price snapshot is older than the allowed age")
	}

	scaled := ScalePriceToAsset(price, c.assetDecimals)
	if scaled.IsZero() {
		return Quote{}, dErrors.New(dErrors.CodeOracleInvalid, "price rounds to zero at asset precision")
	}
	return Quote{
		Price:       price,
		ScaledPrice: scaled,
		AssetScale:  c.assetScale,
		UpdatedAt:   updatedAt,
	}, nil
}

// AssetsToShares quotes and converts, so even this pure read fails rather
// than price off a paused or stale snapshot.
func (c *Converter) AssetsToShares(ctx context.Context, feedID domain.FeedID, maxAge time.Duration, assets sdkmath.Int) (sdkmath.Int, error) {
	quote, err := c.Quote(ctx, feedID, maxAge)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return quote.SharesForAssets(assets), nil
}

// SharesToAssets quotes and converts.
func (c *Converter) SharesToAssets(ctx context.Context, feedID domain.FeedID, maxAge time.Duration, shares sdkmath.Int) (sdkmath.Int, error) {
	quote, err := c.Quote(ctx, feedID, maxAge)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return quote.AssetsForShares(shares), nil
}

// TotalAssets values the outstanding share supply at the current quote.
// Zero supply is zero assets without consulting the feed at all, so an
// empty vault reports a sane total even while its feed is paused.
func (c *Converter) TotalAssets(ctx context.Context, feedID domain.FeedID, maxAge time.Duration) (sdkmath.Int, error) {
	supply, err := c.supply.TotalSupply(ctx, c.shareDenom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if supply.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	quote, err := c.Quote(ctx, feedID, maxAge)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return quote.AssetsForShares(supply), nil
}
