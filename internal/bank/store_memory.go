package bank

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
)

type balanceKey struct {
	denom domain.Denom
	addr  domain.Address
}

type allowanceKey struct {
	denom   domain.Denom
	owner   domain.Address
	spender domain.Address
}

// InMemory keeps balances in mutex-guarded maps. It intentionally favors
// clarity over performance.
type InMemory struct {
	mu         sync.RWMutex
	balances   map[balanceKey]sdkmath.Int
	supplies   map[domain.Denom]sdkmath.Int
	allowances map[allowanceKey]sdkmath.Int
}

func NewInMemory() *InMemory {
	return &InMemory{
		balances:   make(map[balanceKey]sdkmath.Int),
		supplies:   make(map[domain.Denom]sdkmath.Int),
		allowances: make(map[allowanceKey]sdkmath.Int),
	}
}

func (s *InMemory) Balance(_ context.Context, denom domain.Denom, addr domain.Address) (sdkmath.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bal, ok := s.balances[balanceKey{denom, addr}]; ok {
		return bal, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (s *InMemory) TotalSupply(_ context.Context, denom domain.Denom) (sdkmath.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if supply, ok := s.supplies[denom]; ok {
		return supply, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (s *InMemory) Allowance(_ context.Context, denom domain.Denom, owner, spender domain.Address) (sdkmath.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if allowance, ok := s.allowances[allowanceKey{denom, owner, spender}]; ok {
		return allowance, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (s *InMemory) Move(_ context.Context, denom domain.Denom, from, to domain.Address, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromKey := balanceKey{denom, from}
	bal, ok := s.balances[fromKey]
	if !ok || bal.LT(amount) {
		return sentinel.ErrInvalidState
	}
	s.balances[fromKey] = bal.Sub(amount)
	toKey := balanceKey{denom, to}
	s.balances[toKey] = s.get(toKey).Add(amount)
	return nil
}

func (s *InMemory) AddSupply(_ context.Context, denom domain.Denom, addr domain.Address, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{denom, addr}
	s.balances[key] = s.get(key).Add(amount)
	if supply, ok := s.supplies[denom]; ok {
		s.supplies[denom] = supply.Add(amount)
	} else {
		s.supplies[denom] = amount
	}
	return nil
}

func (s *InMemory) SubSupply(_ context.Context, denom domain.Denom, addr domain.Address, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{denom, addr}
	bal, ok := s.balances[key]
	if !ok || bal.LT(amount) {
		return sentinel.ErrInvalidState
	}
	s.balances[key] = bal.Sub(amount)
	s.supplies[denom] = s.supplies[denom].Sub(amount)
	return nil
}

func (s *InMemory) SetAllowance(_ context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := allowanceKey{denom, owner, spender}
	if amount.IsZero() {
		delete(s.allowances, key)
		return nil
	}
	s.allowances[key] = amount
	return nil
}

func (s *InMemory) SpendAllowance(_ context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := allowanceKey{denom, owner, spender}
	allowance, ok := s.allowances[key]
	if !ok || allowance.LT(amount) {
		return sentinel.ErrInvalidState
	}
	s.allowances[key] = allowance.Sub(amount)
	return nil
}

// get reads a balance under the write lock already held by the caller.
func (s *InMemory) get(key balanceKey) sdkmath.Int {
	if bal, ok := s.balances[key]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}
