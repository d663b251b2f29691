package bank

import (
	"context"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/suite"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

const (
	testDenom      = domain.Denom("usdc")
	testShareDenom = domain.Denom("cvlsh")
)

var (
	authorityAddr = domain.MustAddress("0x00000000000000000000000000000000000000aa")
	aliceAddr     = domain.MustAddress("0x00000000000000000000000000000000000000a1")
	bobAddr       = domain.MustAddress("0x00000000000000000000000000000000000000b1")
	carolAddr     = domain.MustAddress("0x00000000000000000000000000000000000000c1")
)

type LedgerSuite struct {
	suite.Suite
	store  *InMemory
	ledger *Ledger
	ctx    context.Context
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.store = NewInMemory()
	s.ledger = NewLedger(s.store,
		WithAuthority(testDenom, authorityAddr),
		WithAuthority(testShareDenom, authorityAddr),
	)
	s.ctx = context.Background()
}

func (s *LedgerSuite) fund(addr domain.Address, amount int64) {
	s.Require().NoError(s.ledger.Mint(s.ctx, testDenom, authorityAddr, addr, sdkmath.NewInt(amount)))
}

func (s *LedgerSuite) balance(denom domain.Denom, addr domain.Address) sdkmath.Int {
	bal, err := s.ledger.BalanceOf(s.ctx, denom, addr)
	s.Require().NoError(err)
	return bal
}

func (s *LedgerSuite) TestMint() {
	s.Run("authority mints and supply grows", func() {
		err := s.ledger.Mint(s.ctx, testDenom, authorityAddr, aliceAddr, sdkmath.NewInt(1_000))
		s.Require().NoError(err)

		s.Equal(sdkmath.NewInt(1_000), s.balance(testDenom, aliceAddr))
		supply, err := s.ledger.TotalSupply(s.ctx, testDenom)
		s.Require().NoError(err)
		s.Equal(sdkmath.NewInt(1_000), supply)
	})

	s.Run("non-authority rejected", func() {
		err := s.ledger.Mint(s.ctx, testDenom, aliceAddr, aliceAddr, sdkmath.NewInt(1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unregistered denom rejected", func() {
		err := s.ledger.Mint(s.ctx, domain.Denom("ghost"), authorityAddr, aliceAddr, sdkmath.NewInt(1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero amount rejected", func() {
		err := s.ledger.Mint(s.ctx, testDenom, authorityAddr, aliceAddr, sdkmath.ZeroInt())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAmount))
	})

	s.Run("zero address rejected", func() {
		err := s.ledger.Mint(s.ctx, testDenom, authorityAddr, domain.ZeroAddress, sdkmath.NewInt(1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAddress))
	})
}

func (s *LedgerSuite) TestBurn() {
	s.fund(aliceAddr, 500)

	s.Run("authority burns and supply shrinks", func() {
		err := s.ledger.Burn(s.ctx, testDenom, authorityAddr, aliceAddr, sdkmath.NewInt(200))
		s.Require().NoError(err)

		s.Equal(sdkmath.NewInt(300), s.balance(testDenom, aliceAddr))
		supply, err := s.ledger.TotalSupply(s.ctx, testDenom)
		s.Require().NoError(err)
		s.Equal(sdkmath.NewInt(300), supply)
	})

	s.Run("burn beyond balance rejected", func() {
		err := s.ledger.Burn(s.ctx, testDenom, authorityAddr, aliceAddr, sdkmath.NewInt(10_000))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	s.Run("non-authority rejected", func() {
		err := s.ledger.Burn(s.ctx, testDenom, bobAddr, aliceAddr, sdkmath.NewInt(1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *LedgerSuite) TestTransfer() {
	s.fund(aliceAddr, 1_000)

	s.Run("moves funds and conserves the per-denom sum", func() {
		err := s.ledger.Transfer(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.NewInt(400))
		s.Require().NoError(err)

		s.Equal(sdkmath.NewInt(600), s.balance(testDenom, aliceAddr))
		s.Equal(sdkmath.NewInt(400), s.balance(testDenom, bobAddr))
		supply, err := s.ledger.TotalSupply(s.ctx, testDenom)
		s.Require().NoError(err)
		s.Equal(sdkmath.NewInt(1_000), supply)
	})

	s.Run("insufficient balance rejected without partial debit", func() {
		before := s.balance(testDenom, aliceAddr)
		err := s.ledger.Transfer(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.NewInt(1_000_000))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
		s.Equal(before, s.balance(testDenom, aliceAddr))
	})

	s.Run("zero amount rejected", func() {
		err := s.ledger.Transfer(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.ZeroInt())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAmount))
	})

	s.Run("negative amount rejected", func() {
		err := s.ledger.Transfer(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.NewInt(-5))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAmount))
	})

	s.Run("zero address endpoint rejected", func() {
		err := s.ledger.Transfer(s.ctx, testDenom, aliceAddr, domain.ZeroAddress, sdkmath.NewInt(1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAddress))
	})
}

func (s *LedgerSuite) TestAllowances() {
	s.fund(aliceAddr, 1_000)

	s.Run("approve then read back", func() {
		err := s.ledger.Approve(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.NewInt(250))
		s.Require().NoError(err)

		allowance, err := s.ledger.Allowance(s.ctx, testDenom, aliceAddr, bobAddr)
		s.Require().NoError(err)
		s.Equal(sdkmath.NewInt(250), allowance)
	})

	s.Run("spend debits the allowance", func() {
		err := s.ledger.SpendAllowance(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.NewInt(100))
		s.Require().NoError(err)

		allowance, err := s.ledger.Allowance(s.ctx, testDenom, aliceAddr, bobAddr)
		s.Require().NoError(err)
		s.Equal(sdkmath.NewInt(150), allowance)
	})

	s.Run("spend beyond allowance rejected", func() {
		err := s.ledger.SpendAllowance(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.NewInt(500))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	s.Run("spend with no allowance set rejected", func() {
		err := s.ledger.SpendAllowance(s.ctx, testDenom, aliceAddr, carolAddr, sdkmath.NewInt(1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	s.Run("zero approval clears the entry", func() {
		err := s.ledger.Approve(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.ZeroInt())
		s.Require().NoError(err)

		allowance, err := s.ledger.Allowance(s.ctx, testDenom, aliceAddr, bobAddr)
		s.Require().NoError(err)
		s.True(allowance.IsZero())
	})

	s.Run("negative approval rejected", func() {
		err := s.ledger.Approve(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.NewInt(-1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAmount))
	})
}

func (s *LedgerSuite) TestDenomsAreIndependent() {
	s.fund(aliceAddr, 700)
	s.Require().NoError(s.ledger.Mint(s.ctx, testShareDenom, authorityAddr, aliceAddr, sdkmath.NewInt(33)))

	s.Equal(sdkmath.NewInt(700), s.balance(testDenom, aliceAddr))
	s.Equal(sdkmath.NewInt(33), s.balance(testShareDenom, aliceAddr))

	s.Require().NoError(s.ledger.Transfer(s.ctx, testShareDenom, aliceAddr, bobAddr, sdkmath.NewInt(33)))
	s.Equal(sdkmath.NewInt(700), s.balance(testDenom, aliceAddr))
	s.True(s.balance(testShareDenom, aliceAddr).IsZero())
}

func (s *LedgerSuite) TestConcurrentTransfers() {
	s.fund(aliceAddr, 100)

	var wg sync.WaitGroup
	succeeded := 0
	var mu sync.Mutex
	for range 200 {
		wg.Go(func() {
			if err := s.ledger.Transfer(s.ctx, testDenom, aliceAddr, bobAddr, sdkmath.OneInt()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	// Exactly the funded amount moves; no overdraft under contention.
	s.Equal(100, succeeded)
	s.True(s.balance(testDenom, aliceAddr).IsZero())
	s.Equal(sdkmath.NewInt(100), s.balance(testDenom, bobAddr))
}
