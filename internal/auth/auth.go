// Package auth issues access tokens to config-seeded principals that present
// their API secret. Only bcrypt hashes are held in the process; verification
// failures are indistinguishable between unknown principals and bad secrets.
package auth

import (
	"context"
	"io"
	"log/slog"
	"time"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/secrets"
)

// TokenIssuer mints a signed access token whose subject is a ledger address.
type TokenIssuer interface {
	GenerateAccessToken(address string, expiresIn time.Duration) (string, error)
}

// Credentials maps a principal to the bcrypt hash of its API secret.
type Credentials map[domain.Address]string

// Token is an issued access token with its validity window.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Service exchanges API secrets for bearer tokens.
type Service struct {
	credentials Credentials
	issuer      TokenIssuer
	tokenTTL    time.Duration
	logger      *slog.Logger
}

// NewService constructs the token service over a fixed credential set.
func NewService(credentials Credentials, issuer TokenIssuer, tokenTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		credentials: credentials,
		issuer:      issuer,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

// IssueToken verifies the secret against the principal's stored hash and
// returns a bearer token with the principal as subject.
func (s *Service) IssueToken(ctx context.Context, principal domain.Address, secret string) (Token, error) {
	hash, ok := s.credentials[principal]
	if !ok {
		s.logger.WarnContext(ctx, "token requested for unknown principal", "principal", principal)
		return Token{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := secrets.Verify(secret, hash); err != nil {
		s.logger.WarnContext(ctx, "secret verification failed", "principal", principal)
		return Token{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	accessToken, err := s.issuer.GenerateAccessToken(principal.String(), s.tokenTTL)
	if err != nil {
		return Token{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue token")
	}
	return Token{AccessToken: accessToken, ExpiresIn: s.tokenTTL}, nil
}
