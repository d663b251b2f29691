//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/suite"

	"caravel/internal/vault/models"
	"caravel/internal/vault/store"
	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
	"caravel/pkg/testutil/containers"
)

var (
	testOwner     = domain.MustAddress("0x00000000000000000000000000000000000000aa")
	testReceiver  = domain.MustAddress("0x00000000000000000000000000000000000000bb")
	testRecipient = domain.MustAddress("0x00000000000000000000000000000000000000cc")
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	runner   txcontext.Runner
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.runner = txcontext.NewSQLRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "withdrawal_requests", "vault_state")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newState() *models.State {
	state, err := models.NewState(models.Config{
		MaxPriceAge:        time.Hour,
		EpochLength:        24 * time.Hour,
		ExitFeeBps:         50,
		LiquidityRecipient: testRecipient,
	}, domain.FeedID("nav-usd"), time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return state
}

func (s *PostgresStoreSuite) TestEnsureStateIsIdempotent() {
	ctx := context.Background()

	first := s.newState()
	s.Require().NoError(s.store.EnsureState(ctx, first))

	// A second Ensure with different values must not clobber the first.
	second := s.newState()
	second.Config.ExitFeeBps = 100
	s.Require().NoError(s.store.EnsureState(ctx, second))

	found, err := s.store.State(ctx)
	s.Require().NoError(err)
	s.Equal(uint32(50), found.Config.ExitFeeBps)
}

func (s *PostgresStoreSuite) TestStateRoundTrip() {
	ctx := context.Background()

	state := s.newState()
	s.Require().NoError(s.store.EnsureState(ctx, state))

	// Amounts must survive well past int64.
	fees, ok := sdkmath.NewIntFromString("987654321098765432109876543210")
	s.Require().True(ok)
	state.AccruedFees = fees
	state.Flows.GrossDeposits = sdkmath.NewInt(42)
	state.Paused = true
	state.Pending = models.PendingFeedChange{
		Feed:     domain.FeedID("nav-eur"),
		QueuedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.SaveState(ctx, state))

	found, err := s.store.State(ctx)
	s.Require().NoError(err)
	s.True(found.AccruedFees.Equal(fees))
	s.True(found.Flows.GrossDeposits.Equal(sdkmath.NewInt(42)))
	s.True(found.Paused)
	s.Equal(state.Pending.Feed, found.Pending.Feed)
	s.True(found.Pending.QueuedAt.Equal(state.Pending.QueuedAt))
}

func (s *PostgresStoreSuite) TestEmptyPendingChangeRoundTrips() {
	ctx := context.Background()

	state := s.newState()
	s.Require().NoError(s.store.EnsureState(ctx, state))

	found, err := s.store.State(ctx)
	s.Require().NoError(err)
	s.True(found.Pending.IsZero())

	// Queue and clear again: the zero value must come back as zero.
	found.Pending = models.PendingFeedChange{Feed: domain.FeedID("nav-eur"), QueuedAt: time.Now()}
	s.Require().NoError(s.store.SaveState(ctx, found))
	found.Pending = models.PendingFeedChange{}
	s.Require().NoError(s.store.SaveState(ctx, found))

	found, err = s.store.State(ctx)
	s.Require().NoError(err)
	s.True(found.Pending.IsZero())
}

func (s *PostgresStoreSuite) TestStateMissingReturnsNotFound() {
	ctx := context.Background()

	_, err := s.store.State(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.SaveState(ctx, s.newState())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) newRequest(shares int64) *models.WithdrawalRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	request, err := models.NewWithdrawalRequest(testOwner, testReceiver,
		sdkmath.NewInt(shares), now, now.Add(24*time.Hour))
	s.Require().NoError(err)
	return request
}

func (s *PostgresStoreSuite) TestRequestIDsAreMonotonic() {
	ctx := context.Background()

	first, err := s.store.CreateRequest(ctx, s.newRequest(10))
	s.Require().NoError(err)
	second, err := s.store.CreateRequest(ctx, s.newRequest(20))
	s.Require().NoError(err)

	s.Greater(second.ID, first.ID)
}

// TestRolledBackCreateBurnsTheID verifies IDs are never reused: a create
// inside an aborted transaction leaves a gap instead of recycling.
func (s *PostgresStoreSuite) TestRolledBackCreateBurnsTheID() {
	ctx := context.Background()

	first, err := s.store.CreateRequest(ctx, s.newRequest(10))
	s.Require().NoError(err)

	abort := sentinel.ErrAlreadyUsed
	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.store.CreateRequest(txCtx, s.newRequest(20)); err != nil {
			return err
		}
		return abort
	})
	s.ErrorIs(err, abort)

	third, err := s.store.CreateRequest(ctx, s.newRequest(30))
	s.Require().NoError(err)
	s.Greater(third.ID, first.ID+1, "the rolled-back ID must not be reused")
}

func (s *PostgresStoreSuite) TestRequestRoundTrip() {
	ctx := context.Background()

	created, err := s.store.CreateRequest(ctx, s.newRequest(123))
	s.Require().NoError(err)

	found, err := s.store.Request(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(testOwner, found.Owner)
	s.Equal(testReceiver, found.Receiver)
	s.True(found.Shares.Equal(sdkmath.NewInt(123)))
	s.False(found.Closed)
	s.Empty(found.ClosedReason)
}

func (s *PostgresStoreSuite) TestSaveRequestClosesIt() {
	ctx := context.Background()

	created, err := s.store.CreateRequest(ctx, s.newRequest(10))
	s.Require().NoError(err)

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.store.RequestForUpdate(txCtx, created.ID)
		if err != nil {
			return err
		}
		request.ApplyClaim()
		return s.store.SaveRequest(txCtx, request)
	})
	s.Require().NoError(err)

	found, err := s.store.Request(ctx, created.ID)
	s.Require().NoError(err)
	s.True(found.Closed)
	s.Equal(models.ClosedReasonClaimed, found.ClosedReason)
}

func (s *PostgresStoreSuite) TestRequestMissingReturnsNotFound() {
	ctx := context.Background()

	_, err := s.store.Request(ctx, 99999)
	s.ErrorIs(err, sentinel.ErrNotFound)

	ghost := s.newRequest(10)
	ghost.ID = 99999
	s.ErrorIs(s.store.SaveRequest(ctx, ghost), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRequestsByOwnerNewestFirst() {
	ctx := context.Background()

	var created []*models.WithdrawalRequest
	for i := int64(1); i <= 3; i++ {
		request, err := s.store.CreateRequest(ctx, s.newRequest(i*10))
		s.Require().NoError(err)
		created = append(created, request)
	}

	requests, err := s.store.RequestsByOwner(ctx, testOwner)
	s.Require().NoError(err)
	s.Require().Len(requests, 3)
	s.Equal(created[2].ID, requests[0].ID)
	s.Equal(created[0].ID, requests[2].ID)

	other, err := s.store.RequestsByOwner(ctx, testReceiver)
	s.Require().NoError(err)
	s.Empty(other)
}

// TestConcurrentStateMutationsSerialize verifies the singleton row lock:
// every transaction's increment lands.
func (s *PostgresStoreSuite) TestConcurrentStateMutationsSerialize() {
	ctx := context.Background()
	s.Require().NoError(s.store.EnsureState(ctx, s.newState()))

	const goroutines = 20
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.runner.RunInTx(ctx, func(txCtx context.Context) error {
				state, err := s.store.StateForUpdate(txCtx)
				if err != nil {
					return err
				}
				state.Flows.GrossDeposits = state.Flows.GrossDeposits.AddRaw(1)
				state.UpdatedAt = time.Now()
				return s.store.SaveState(txCtx, state)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	found, err := s.store.State(ctx)
	s.Require().NoError(err)
	s.True(found.Flows.GrossDeposits.Equal(sdkmath.NewInt(goroutines)))
}
