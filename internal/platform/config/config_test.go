package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("CARAVEL_API_CREDENTIALS",
		"0x00000000000000000000000000000000000000d1:$2a$10$abcdefghijklmnopqrstuv,"+
			"0x00000000000000000000000000000000000000b1:$2a$10$vutsrqponmlkjihgfedcba")

	cfg := FromEnv()
	require.Len(t, cfg.Auth.Credentials, 2)
	assert.Equal(t, "0x00000000000000000000000000000000000000d1", cfg.Auth.Credentials[0].Address)
	assert.Equal(t, "$2a$10$abcdefghijklmnopqrstuv", cfg.Auth.Credentials[0].SecretHash)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestCredentialsSkipMalformedPairs(t *testing.T) {
	t.Setenv("CARAVEL_API_CREDENTIALS", "no-separator,:missing-address,0x00000000000000000000000000000000000000d1:")

	cfg := FromEnv()
	assert.Empty(t, cfg.Auth.Credentials)
}

func TestCredentialsDefaultEmpty(t *testing.T) {
	t.Setenv("CARAVEL_API_CREDENTIALS", "")

	cfg := FromEnv()
	assert.Empty(t, cfg.Auth.Credentials)
}
