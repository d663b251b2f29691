package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"caravel/internal/oracle/models"
	oracleservice "caravel/internal/oracle/service"
	oraclestore "caravel/internal/oracle/store"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	auditmemory "caravel/pkg/platform/audit/store/memory"
	txcontext "caravel/pkg/platform/tx"
	"caravel/pkg/requestcontext"
	"caravel/pkg/testutil"
)

const defaultFeed = domain.FeedID("nav-primary")

var (
	adminAddr    = domain.MustAddress("0x00000000000000000000000000000000000000a1")
	guardianAddr = domain.MustAddress("0x00000000000000000000000000000000000000c1")
	reporterAddr = domain.MustAddress("0x00000000000000000000000000000000000000d1")
	outsiderAddr = domain.MustAddress("0x0000000000000000000000000000000000000104")

	parNAV = sdkmath.NewIntFromUint64(1_000_000_000_000_000_000)
)

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

// HandlerSuite exercises the NAV endpoints against a real service wired with
// in-memory stores, validating the HTTP concerns: auth, parsing, and status
// mapping.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	authz := capabilityMap{
		adminAddr:    {domain.CapabilityAdmin},
		guardianAddr: {domain.CapabilityGuardian},
		reporterAddr: {domain.CapabilityReporter},
	}
	recorder := audit.NewRecorder(auditmemory.NewInMemoryStore())
	svc := oracleservice.New(oraclestore.NewInMemory(), authz, txcontext.NewMemoryRunner(), recorder)

	ctx := requestcontext.WithTime(context.Background(), s.now)
	_, err := svc.CreateFeed(ctx, adminAddr, defaultFeed, models.Config{
		MaxStaleness: time.Hour,
		MaxMoveBps:   500,
	})
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, defaultFeed, logger)
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

// do sends a request with the request clock pinned and, when principal is
// non-empty, an authenticated caller.
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

func (s *HandlerSuite) report(price string) {
	rec := s.do(http.MethodPost, "/nav/report", map[string]string{
		"price":       price,
		"reported_at": s.now.Format(time.RFC3339),
	}, reporterAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestGetNavIsPublicAndUnprimedFeedReportsZero() {
	rec := s.do(http.MethodGet, "/nav", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp FeedResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("nav-primary", resp.Feed)
	s.Equal("0", resp.Price)
	s.Nil(resp.UpdatedAt)
	s.True(resp.Valid)
	s.False(resp.Paused)
	s.Equal(int64(3600), resp.MaxStalenessSeconds)
}

func (s *HandlerSuite) TestReportRequiresAuthentication() {
	rec := s.do(http.MethodPost, "/nav/report", map[string]string{
		"price":       parNAV.String(),
		"reported_at": s.now.Format(time.RFC3339),
	}, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("unauthorized", s.errorCode(rec))
}

func (s *HandlerSuite) TestReportRequiresReporterCapability() {
	rec := s.do(http.MethodPost, "/nav/report", map[string]string{
		"price":       parNAV.String(),
		"reported_at": s.now.Format(time.RFC3339),
	}, outsiderAddr.String())
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestReportThenGetNav() {
	s.report(parNAV.String())

	rec := s.do(http.MethodGet, "/nav", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp FeedResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(parNAV.String(), resp.Price)
	s.Require().NotNil(resp.UpdatedAt)
	s.True(resp.UpdatedAt.Equal(s.now))
}

func (s *HandlerSuite) TestReportRejectsMalformedPrice() {
	rec := s.do(http.MethodPost, "/nav/report", map[string]string{
		"price":       "1.05",
		"reported_at": s.now.Format(time.RFC3339),
	}, reporterAddr.String())
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation_failed", s.errorCode(rec))
}

func (s *HandlerSuite) TestReportRejectsExcessiveMove() {
	s.report(parNAV.String())

	// 500 bps guard, a doubling is far beyond it.
	rec := s.do(http.MethodPost, "/nav/report", map[string]string{
		"price":       parNAV.MulRaw(2).String(),
		"reported_at": s.now.Format(time.RFC3339),
	}, reporterAddr.String())
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("too_large_move", s.errorCode(rec))
}

func (s *HandlerSuite) TestPausedFeedRejectsReportsAndReadsInvalid() {
	s.report(parNAV.String())

	rec := s.do(http.MethodPost, "/nav/pause", nil, guardianAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/nav/report", map[string]string{
		"price":       parNAV.String(),
		"reported_at": s.now.Format(time.RFC3339),
	}, reporterAddr.String())
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("paused", s.errorCode(rec))

	rec = s.do(http.MethodGet, "/nav", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp FeedResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.True(resp.Paused)
	s.False(resp.Valid)

	rec = s.do(http.MethodPost, "/nav/unpause", nil, guardianAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code)
	s.report(parNAV.String())
}

func (s *HandlerSuite) TestPauseRequiresGuardian() {
	rec := s.do(http.MethodPost, "/nav/pause", nil, reporterAddr.String())
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestCreateFeedAndReportByName() {
	rec := s.do(http.MethodPost, "/nav/feeds", map[string]any{
		"feed":                  "nav-backup",
		"max_staleness_seconds": 1800,
	}, adminAddr.String())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var created FeedResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&created))
	s.Equal("nav-backup", created.Feed)
	s.Equal("0", created.Price)

	rec = s.do(http.MethodPost, "/nav/report", map[string]string{
		"feed":        "nav-backup",
		"price":       parNAV.String(),
		"reported_at": s.now.Format(time.RFC3339),
	}, reporterAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code)

	// The default feed is untouched.
	rec = s.do(http.MethodGet, "/nav", nil, "")
	var resp FeedResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("0", resp.Price)

	rec = s.do(http.MethodGet, "/nav?feed=nav-backup", nil, "")
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(parNAV.String(), resp.Price)
}

func (s *HandlerSuite) TestGetNavUnknownFeed() {
	rec := s.do(http.MethodGet, "/nav?feed=nav-ghost", nil, "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", s.errorCode(rec))
}

func (s *HandlerSuite) TestSetConfigRequiresAdmin() {
	rec := s.do(http.MethodPut, "/nav/config", map[string]any{
		"max_staleness_seconds": 600,
	}, reporterAddr.String())
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPut, "/nav/config", map[string]any{
		"max_staleness_seconds": 600,
		"max_move_bps":          100,
	}, adminAddr.String())
	s.Require().Equal(http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/nav", nil, "")
	var resp FeedResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(int64(600), resp.MaxStalenessSeconds)
	s.Equal(uint32(100), resp.MaxMoveBps)
}

func (s *HandlerSuite) TestInvalidJSONBody() {
	req := httptest.NewRequest(http.MethodPost, "/nav/report", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithPrincipal(req, reporterAddr.String())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("bad_request", s.errorCode(rec))
}
