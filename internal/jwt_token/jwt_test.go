package jwttoken

import (
	"testing"
	"time"

	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)
var callerAddress = domain.MustAddress("0x00000000000000000000000000000000000000aa")
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(callerAddress.String(), expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, callerAddress.String(), claims.Subject)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	expiresIn := -time.Hour // Expired token

	token, err := jwtService.GenerateAccessToken(callerAddress.String(), expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_Adapter_ResolvesPrincipal(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)

	token, err := jwtService.GenerateAccessToken(callerAddress.String(), expiresIn)
	require.NoError(t, err)

	claims, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, callerAddress, claims.Address)
}

func Test_Adapter_RejectsNonAddressSubject(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)

	token, err := jwtService.GenerateAccessToken("not-an-address", expiresIn)
	require.NoError(t, err)

	_, err = adapter.ValidateToken(token)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Adapter_RejectsZeroAddressSubject(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)

	token, err := jwtService.GenerateAccessToken(domain.ZeroAddress.String(), expiresIn)
	require.NoError(t, err)

	_, err = adapter.ValidateToken(token)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
