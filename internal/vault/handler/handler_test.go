package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"caravel/internal/bank"
	oraclemodels "caravel/internal/oracle/models"
	oracleservice "caravel/internal/oracle/service"
	oraclestore "caravel/internal/oracle/store"
	"caravel/internal/pricing"
	"caravel/internal/referral"
	referralstore "caravel/internal/referral/store"
	"caravel/internal/vault/models"
	"caravel/internal/vault/service"
	"caravel/internal/vault/store"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	auditmemory "caravel/pkg/platform/audit/store/memory"
	txcontext "caravel/pkg/platform/tx"
	"caravel/pkg/requestcontext"
	"caravel/pkg/testutil"
)

const (
	testAsset = domain.Denom("usdc")
	testShare = domain.Denom("cvlsh")

	assetDecimals = 6

	primaryFeed = domain.FeedID("nav-primary")
)

var (
	adminAddr    = domain.MustAddress("0x00000000000000000000000000000000000000a1")
	guardianAddr = domain.MustAddress("0x00000000000000000000000000000000000000c1")
	reporterAddr = domain.MustAddress("0x00000000000000000000000000000000000000d1")
	aliceAddr    = domain.MustAddress("0x0000000000000000000000000000000000000101")
	bobAddr      = domain.MustAddress("0x0000000000000000000000000000000000000102")
	treasuryAddr = domain.MustAddress("0x00000000000000000000000000000000000000f1")
	faucetAddr   = domain.MustAddress("0x00000000000000000000000000000000000000fa")

	parNAV = sdkmath.NewIntFromUint64(1_000_000_000_000_000_000)
)

func usdc(units int64) sdkmath.Int {
	return sdkmath.NewInt(units).MulRaw(1_000_000)
}

// capabilityMap is a test double for the capability checker.
type capabilityMap map[domain.Address][]domain.Capability

func (m capabilityMap) Require(_ context.Context, principal domain.Address, capability domain.Capability) error {
	for _, held := range m[principal] {
		if held == capability {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "missing capability")
}

// HandlerSuite exercises the vault endpoints end to end over HTTP against a
// real service with in-memory stores.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	oracle *oracleservice.Service
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), s.now)

	runner := txcontext.NewMemoryRunner()
	recorder := audit.NewRecorder(auditmemory.NewInMemoryStore())
	authz := capabilityMap{
		adminAddr:    {domain.CapabilityAdmin, domain.CapabilityOperator},
		guardianAddr: {domain.CapabilityGuardian},
		reporterAddr: {domain.CapabilityReporter},
	}

	s.oracle = oracleservice.New(oraclestore.NewInMemory(), authz, runner, recorder)
	_, err := s.oracle.CreateFeed(ctx, adminAddr, primaryFeed, oraclemodels.Config{MaxStaleness: time.Hour})
	s.Require().NoError(err)
	s.Require().NoError(s.oracle.Report(ctx, primaryFeed, reporterAddr, parNAV, s.now))

	ledger := bank.NewLedger(bank.NewInMemory(),
		bank.WithAuthority(testShare, models.ModuleAddress),
		bank.WithAuthority(testAsset, faucetAddr),
	)
	s.Require().NoError(ledger.Mint(ctx, testAsset, faucetAddr, aliceAddr, usdc(1_000)))
	s.Require().NoError(ledger.Mint(ctx, testAsset, faucetAddr, bobAddr, usdc(1_000)))

	vaultSvc := service.New(service.Deps{
		Store:      store.NewInMemory(),
		Ledger:     ledger,
		Pricer:     pricing.NewConverter(s.oracle, ledger, testShare, assetDecimals),
		NAV:        s.oracle,
		Referrals:  referral.NewService(referralstore.NewInMemory(), recorder),
		Authz:      authz,
		Tx:         runner,
		Audit:      recorder,
		AssetDenom: testAsset,
		ShareDenom: testShare,
	})
	s.Require().NoError(vaultSvc.Init(ctx, models.Config{
		MaxPriceAge:        30 * time.Minute,
		EpochLength:        24 * time.Hour,
		ExitFeeBps:         50,
		LiquidityRecipient: treasuryAddr,
	}, primaryFeed, s.now))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(vaultSvc, logger)
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

// advance moves the request clock and refreshes the NAV report so flows do
// not trip the staleness guard.
func (s *HandlerSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
	ctx := requestcontext.WithTime(context.Background(), s.now)
	s.Require().NoError(s.oracle.Report(ctx, primaryFeed, reporterAddr, parNAV, s.now))
}

func (s *HandlerSuite) do(method, target string, body any, principal string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithRequestTime(req, s.now)
	if principal != "" {
		req = testutil.WithPrincipal(req, principal)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var envelope struct {
		Error string `json:"error"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Error
}

func (s *HandlerSuite) deposit(caller domain.Address, units int64) FlowResponse {
	rec := s.do(http.MethodPost, "/vault/deposit", map[string]string{
		"receiver": caller.String(),
		"assets":   usdc(units).String(),
	}, caller.String())
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var resp FlowResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func (s *HandlerSuite) TestOverviewIsPublic() {
	rec := s.do(http.MethodGet, "/vault", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp VaultResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("nav-primary", resp.ActiveFeed)
	s.False(resp.Paused)
	s.Equal("0", resp.TotalShares)
	s.Equal("0", resp.TotalAssets)
	s.Equal("0", resp.Buffer)
	s.Equal(uint32(50), resp.Config.ExitFeeBps)
	s.Nil(resp.PendingFeedChange)
}

func (s *HandlerSuite) TestOverviewServesLedgerFactsWhileFeedPaused() {
	s.deposit(aliceAddr, 100)

	ctx := requestcontext.WithTime(context.Background(), s.now)
	s.Require().NoError(s.oracle.Pause(ctx, primaryFeed, guardianAddr))

	rec := s.do(http.MethodGet, "/vault", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp VaultResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Empty(resp.TotalAssets, "unpriceable supply must drop out of the response")
	s.Equal(usdc(100).String(), resp.TotalShares)
	s.Equal(usdc(100).String(), resp.Buffer)
}

func (s *HandlerSuite) TestDepositRequiresAuthentication() {
	rec := s.do(http.MethodPost, "/vault/deposit", map[string]string{
		"receiver": aliceAddr.String(),
		"assets":   usdc(100).String(),
	}, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("unauthorized", s.errorCode(rec))
}

func (s *HandlerSuite) TestDepositAtParMintsOneToOne() {
	resp := s.deposit(aliceAddr, 100)
	s.Equal(usdc(100).String(), resp.Assets)
	s.Equal(usdc(100).String(), resp.Shares)
	s.Equal("0", resp.Fee)
	s.Equal(parNAV.String(), resp.Price)
}

func (s *HandlerSuite) TestDepositSlippageGuard() {
	rec := s.do(http.MethodPost, "/vault/deposit", map[string]string{
		"receiver":   aliceAddr.String(),
		"assets":     usdc(100).String(),
		"min_shares": usdc(101).String(),
	}, aliceAddr.String())
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("slippage_exceeded", s.errorCode(rec))
}

func (s *HandlerSuite) TestDepositValidation() {
	rec := s.do(http.MethodPost, "/vault/deposit", map[string]string{
		"receiver": "not-an-address",
		"assets":   usdc(100).String(),
	}, aliceAddr.String())
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation_failed", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/vault/deposit", map[string]string{
		"receiver": aliceAddr.String(),
	}, aliceAddr.String())
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestConvertSelectsExactlyOneDirection() {
	rec := s.do(http.MethodGet, "/vault/convert?assets="+usdc(100).String(), nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp ConvertResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(usdc(100).String(), resp.Shares)

	rec = s.do(http.MethodGet, "/vault/convert", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/vault/convert?assets=1&shares=1", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestQueueClaimLifecycle() {
	s.deposit(aliceAddr, 100)

	rec := s.do(http.MethodPost, "/vault/withdrawals", map[string]string{
		"shares": usdc(50).String(),
	}, aliceAddr.String())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var queued WithdrawalResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&queued))
	s.NotZero(queued.ID)
	s.Equal(aliceAddr.String(), queued.Owner)
	s.Equal(usdc(50).String(), queued.Shares)
	s.True(queued.ClaimableAt.After(queued.RequestedAt))

	claimPath := "/vault/withdrawals/" + strconv.FormatUint(queued.ID, 10) + "/claim"

	// Too early.
	rec = s.do(http.MethodPost, claimPath, nil, aliceAddr.String())
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("timelock_active", s.errorCode(rec))

	// Only the owner may claim.
	s.advance(queued.ClaimableAt.Sub(s.now))
	rec = s.do(http.MethodPost, claimPath, nil, bobAddr.String())
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("not_owner", s.errorCode(rec))

	rec = s.do(http.MethodPost, claimPath, nil, aliceAddr.String())
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var claimed FlowResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&claimed))
	// 50 bps exit fee on the gross amount.
	s.Equal("49750000", claimed.Assets)
	s.Equal("250000", claimed.Fee)

	// A claimed request is terminal.
	rec = s.do(http.MethodPost, claimPath, nil, aliceAddr.String())
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("request_closed", s.errorCode(rec))
}

func (s *HandlerSuite) TestCancelReturnsShares() {
	s.deposit(aliceAddr, 100)

	rec := s.do(http.MethodPost, "/vault/withdrawals", map[string]string{
		"shares": usdc(50).String(),
	}, aliceAddr.String())
	s.Require().Equal(http.StatusCreated, rec.Code)
	var queued WithdrawalResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&queued))

	rec = s.do(http.MethodPost, "/vault/withdrawals/"+strconv.FormatUint(queued.ID, 10)+"/cancel", nil, aliceAddr.String())
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var cancelled WithdrawalResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&cancelled))
	s.True(cancelled.Closed)
	s.Equal(models.ClosedReasonCancelled, cancelled.ClosedReason)
}

func (s *HandlerSuite) TestListWithdrawalsDefaultsToCaller() {
	s.deposit(aliceAddr, 100)
	rec := s.do(http.MethodPost, "/vault/withdrawals", map[string]string{
		"shares": usdc(10).String(),
	}, aliceAddr.String())
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/vault/withdrawals", nil, aliceAddr.String())
	s.Require().Equal(http.StatusOK, rec.Code)
	var list WithdrawalListResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
	s.Equal(aliceAddr.String(), list.Owner)
	s.Len(list.Requests, 1)

	// Anonymous callers must name an owner.
	rec = s.do(http.MethodGet, "/vault/withdrawals", nil, "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/vault/withdrawals?owner="+bobAddr.String(), nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
	s.Empty(list.Requests)
}

func (s *HandlerSuite) TestWithdrawalIDValidation() {
	rec := s.do(http.MethodPost, "/vault/withdrawals/abc/claim", nil, aliceAddr.String())
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/vault/withdrawals/0/cancel", nil, aliceAddr.String())
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestExitFeeConfigRequiresAdmin() {
	rec := s.do(http.MethodPut, "/vault/config/exit-fee", map[string]any{
		"exit_fee_bps": 25,
	}, aliceAddr.String())
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPut, "/vault/config/exit-fee", map[string]any{
		"exit_fee_bps": 25,
	}, adminAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/vault", nil, "")
	var resp VaultResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(uint32(25), resp.Config.ExitFeeBps)
}

func (s *HandlerSuite) TestPausedVaultRejectsFlows() {
	rec := s.do(http.MethodPost, "/vault/pause", nil, guardianAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/vault/deposit", map[string]string{
		"receiver": aliceAddr.String(),
		"assets":   usdc(100).String(),
	}, aliceAddr.String())
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("paused", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/vault/unpause", nil, guardianAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code)
	s.deposit(aliceAddr, 100)
}

func (s *HandlerSuite) TestQueueFeedChangeShowsInOverview() {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	_, err := s.oracle.CreateFeed(ctx, adminAddr, domain.FeedID("nav-backup"), oraclemodels.Config{MaxStaleness: time.Hour})
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, "/vault/feed-change", map[string]string{
		"feed": "nav-backup",
	}, adminAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code, rec.Body.String())

	// Still timelocked.
	rec = s.do(http.MethodPost, "/vault/feed-change/execute", nil, adminAddr.String())
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("timelock_active", s.errorCode(rec))

	rec = s.do(http.MethodGet, "/vault", nil, "")
	var resp VaultResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Require().NotNil(resp.PendingFeedChange)
	s.Equal("nav-backup", resp.PendingFeedChange.Feed)

	s.advance(models.FeedChangeDelay)
	rec = s.do(http.MethodPost, "/vault/feed-change/execute", nil, adminAddr.String())
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var changed FeedChangeResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&changed))
	s.Equal("nav-backup", changed.ActiveFeed)
}
