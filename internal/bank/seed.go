package bank

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
)

// SeedBalances credits a set of addresses with a starting balance of the
// given denom. Used by the memory-backed dev server so deposits have
// something to draw on.
func SeedBalances(store *InMemory, denom domain.Denom, amount sdkmath.Int, addrs ...domain.Address) {
	ctx := context.Background()
	for _, addr := range addrs {
		_ = store.AddSupply(ctx, denom, addr, amount)
	}
}
