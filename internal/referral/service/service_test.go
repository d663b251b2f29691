package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caravel/internal/referral/store"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	auditmemory "caravel/pkg/platform/audit/store/memory"
	"caravel/pkg/requestcontext"
)

var (
	aliceAddr = domain.MustAddress("0x00000000000000000000000000000000000000a1")
	bobAddr   = domain.MustAddress("0x00000000000000000000000000000000000000b1")
	carolAddr = domain.MustAddress("0x00000000000000000000000000000000000000c1")
)

type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("append failed")
}

type ServiceSuite struct {
	suite.Suite
	bindings   *store.InMemory
	auditStore *auditmemory.InMemoryStore
	service    *Service
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.bindings = store.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.service = New(s.bindings, audit.NewRecorder(s.auditStore))
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) TestSelfReferralRejected() {
	_, err := s.service.Bind(s.ctx, aliceAddr, aliceAddr, aliceAddr)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidReferrer))

	s.Run("rejected even when already bound", func() {
		_, err := s.service.Bind(s.ctx, aliceAddr, aliceAddr, bobAddr)
		s.Require().NoError(err)

		_, err = s.service.Bind(s.ctx, aliceAddr, aliceAddr, aliceAddr)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidReferrer))
	})
}

func (s *ServiceSuite) TestThirdPartyCannotBind() {
	_, err := s.service.Bind(s.ctx, carolAddr, aliceAddr, bobAddr)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidReferrer))

	// Even with a zero referrer: an unbound receiver only flows through the
	// checked path on their own deposits.
	_, err = s.service.Bind(s.ctx, carolAddr, aliceAddr, domain.ZeroAddress)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidReferrer))

	referrer, err := s.service.ReferrerOf(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.True(referrer.IsZero())
}

func (s *ServiceSuite) TestZeroReferrerIsNoOp() {
	attribution, err := s.service.Bind(s.ctx, aliceAddr, aliceAddr, domain.ZeroAddress)
	s.Require().NoError(err)
	s.False(attribution.NewlyBound)
	s.False(attribution.HasReferrer())

	referrer, err := s.service.ReferrerOf(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.True(referrer.IsZero())
	s.Empty(s.auditStore.ListAll())
}

func (s *ServiceSuite) TestBindIsWriteOnce() {
	attribution, err := s.service.Bind(s.ctx, aliceAddr, aliceAddr, bobAddr)
	s.Require().NoError(err)
	s.True(attribution.NewlyBound)
	s.Equal(bobAddr, attribution.Referrer)

	events := s.auditStore.ListAll()
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventReferralBound), events[0].Action)
	s.Equal(aliceAddr, events[0].Actor)
	s.Equal(aliceAddr.String(), events[0].Subject)
	s.Equal(bobAddr, events[0].Referrer)

	s.Run("later referrers are silently ignored", func() {
		attribution, err := s.service.Bind(s.ctx, aliceAddr, aliceAddr, carolAddr)
		s.Require().NoError(err)
		s.False(attribution.NewlyBound)
		s.Equal(bobAddr, attribution.Referrer)

		referrer, err := s.service.ReferrerOf(s.ctx, aliceAddr)
		s.Require().NoError(err)
		s.Equal(bobAddr, referrer)
		s.Len(s.auditStore.ListAll(), 1, "no second bound event")
	})

	s.Run("third-party flows attribute once bound", func() {
		attribution, err := s.service.Bind(s.ctx, carolAddr, aliceAddr, domain.ZeroAddress)
		s.Require().NoError(err)
		s.False(attribution.NewlyBound)
		s.Equal(bobAddr, attribution.Referrer)
	})
}

func (s *ServiceSuite) TestAuditFailureFailsBind() {
	svc := New(s.bindings, audit.NewRecorder(failingAuditStore{}))

	_, err := svc.Bind(s.ctx, aliceAddr, aliceAddr, bobAddr)
	s.Error(err)
}

func (s *ServiceSuite) TestReferrerOfUnbound() {
	referrer, err := s.service.ReferrerOf(s.ctx, bobAddr)
	s.Require().NoError(err)
	s.Equal(domain.ZeroAddress, referrer)
}
