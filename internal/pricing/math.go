// Package pricing converts between asset amounts and vault shares at the
// NAV reported by a price feed.
//
// All conversions are integer arithmetic. Share and asset conversions round
// down, so a round trip can lose up to one unit but can never mint value.
// Fees round up, so fee-exclusive amounts can never underpay the vault.
package pricing

import (
	sdkmath "cosmossdk.io/math"
)

// priceDecimals is the fixed precision of reported NAV prices.
const priceDecimals = 18

// AssetScale returns 10^decimals, the unit scale of the underlying asset.
func AssetScale(decimals uint8) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, int(decimals))
}

// ScalePriceToAsset rescales a 1e18-scaled price to the asset's own
// precision, truncating when the asset is coarser than the price.
func ScalePriceToAsset(price sdkmath.Int, assetDecimals uint8) sdkmath.Int {
	switch {
	case assetDecimals == priceDecimals:
		return price
	case assetDecimals < priceDecimals:
		return price.Quo(sdkmath.NewIntWithDecimal(1, priceDecimals-int(assetDecimals)))
	default:
		return price.Mul(sdkmath.NewIntWithDecimal(1, int(assetDecimals)-priceDecimals))
	}
}

// SharesForAssets converts an asset amount to shares at the scaled price,
// rounding down: floor(assets * assetScale / scaledPrice).
func SharesForAssets(assets, scaledPrice, assetScale sdkmath.Int) sdkmath.Int {
	return assets.Mul(assetScale).Quo(scaledPrice)
}

// AssetsForShares converts a share amount to assets at the scaled price,
// rounding down: floor(shares * scaledPrice / assetScale).
func AssetsForShares(shares, scaledPrice, assetScale sdkmath.Int) sdkmath.Int {
	return shares.Mul(scaledPrice).Quo(assetScale)
}

// FeeOnGross computes the exit fee carved out of a gross amount:
// ceil(gross * bps / 10000). The receiver gets gross minus the fee.
func FeeOnGross(gross sdkmath.Int, bps uint32) sdkmath.Int {
	if bps == 0 {
		return sdkmath.ZeroInt()
	}
	return ceilDiv(gross.MulRaw(int64(bps)), sdkmath.NewInt(10000))
}

// FeeOnNet computes the exit fee added on top of a net amount so the
// receiver gets exactly net: ceil(net * bps / (10000 - bps)). Gross is
// net plus this fee.
func FeeOnNet(net sdkmath.Int, bps uint32) sdkmath.Int {
	if bps == 0 {
		return sdkmath.ZeroInt()
	}
	return ceilDiv(net.MulRaw(int64(bps)), sdkmath.NewInt(10000-int64(bps)))
}

// ceilDiv divides non-negative n by positive d, rounding up.
func ceilDiv(n, d sdkmath.Int) sdkmath.Int {
	return n.Add(d).Sub(sdkmath.OneInt()).Quo(d)
}
