// Package config builds the process configuration from environment variables
// so main stays lean. Every value has a development default; production
// deployments override via CARAVEL_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	ShutdownTimeout time.Duration
}

// Postgres captures database configuration. An empty URL selects the
// in-memory stores.
type Postgres struct {
	URL string
}

// RedisConfig captures the NAV mirror connection. An empty URL disables
// mirroring.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures audit transport configuration. Empty brokers disable the
// outbox relay.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Asset describes the single underlying asset this vault instance custodies.
type Asset struct {
	Denom    string
	Decimals uint8
}

// Oracle seeds the default NAV feed.
type Oracle struct {
	FeedID       string
	MaxStaleness time.Duration
	MaxMoveBps   uint32
}

// Vault seeds the share ledger parameters.
type Vault struct {
	ShareDenom         string
	MaxPriceAge        time.Duration
	EpochLength        time.Duration
	ExitFeeBps         uint32
	LiquidityRecipient string
}

// Roles seeds the capability registry with one principal per capability.
type Roles struct {
	Admin    string
	Operator string
	Guardian string
	Reporter string
}

// Credential pairs a principal address with the bcrypt hash of its API
// secret. Plaintext secrets are never configured.
type Credential struct {
	Address    string
	SecretHash string
}

// Auth configures the secret-for-token exchange. No credentials disables
// the endpoint for all callers.
type Auth struct {
	TokenTTL    time.Duration
	Credentials []Credential
}

// Config is the full process configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    RedisConfig
	Kafka    Kafka
	Asset    Asset
	Oracle   Oracle
	Vault    Vault
	Roles    Roles
	Auth     Auth
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getEnv("CARAVEL_ADDR", ":8080"),
			JWTSigningKey:   getEnv("CARAVEL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			ShutdownTimeout: getDuration("CARAVEL_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			URL: os.Getenv("CARAVEL_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("CARAVEL_REDIS_URL"),
			PoolSize:     getInt("CARAVEL_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("CARAVEL_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("CARAVEL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("CARAVEL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("CARAVEL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: getList("CARAVEL_KAFKA_BROKERS"),
			Topic:   getEnv("CARAVEL_AUDIT_TOPIC", "caravel.audit"),
		},
		Asset: Asset{
			Denom:    getEnv("CARAVEL_ASSET_DENOM", "usdc"),
			Decimals: uint8(getInt("CARAVEL_ASSET_DECIMALS", 6)),
		},
		Oracle: Oracle{
			FeedID:       getEnv("CARAVEL_FEED_ID", "nav-primary"),
			MaxStaleness: getDuration("CARAVEL_NAV_MAX_STALENESS", time.Hour),
			MaxMoveBps:   uint32(getInt("CARAVEL_NAV_MAX_MOVE_BPS", 500)),
		},
		Vault: Vault{
			ShareDenom:         getEnv("CARAVEL_SHARE_DENOM", "cvlsh"),
			MaxPriceAge:        getDuration("CARAVEL_MAX_PRICE_AGE", time.Hour),
			EpochLength:        getDuration("CARAVEL_EPOCH_LENGTH", 24*time.Hour),
			ExitFeeBps:         uint32(getInt("CARAVEL_EXIT_FEE_BPS", 10)),
			LiquidityRecipient: getEnv("CARAVEL_LIQUIDITY_RECIPIENT", "0x00000000000000000000000000000000000000fe"),
		},
		Roles: Roles{
			Admin:    getEnv("CARAVEL_ADMIN_ADDR", "0x00000000000000000000000000000000000000a1"),
			Operator: getEnv("CARAVEL_OPERATOR_ADDR", "0x00000000000000000000000000000000000000b1"),
			Guardian: getEnv("CARAVEL_GUARDIAN_ADDR", "0x00000000000000000000000000000000000000c1"),
			Reporter: getEnv("CARAVEL_REPORTER_ADDR", "0x00000000000000000000000000000000000000d1"),
		},
		Auth: Auth{
			TokenTTL:    getDuration("CARAVEL_TOKEN_TTL", time.Hour),
			Credentials: getCredentials("CARAVEL_API_CREDENTIALS"),
		},
	}
}

// getCredentials parses "address:bcrypt-hash" pairs, comma-separated. bcrypt
// hashes never contain ':' or ',' so the split is unambiguous.
func getCredentials(key string) []Credential {
	out := make([]Credential, 0)
	for _, pair := range getList(key) {
		address, hash, ok := strings.Cut(pair, ":")
		if !ok || address == "" || hash == "" {
			continue
		}
		out = append(out, Credential{Address: address, SecretHash: hash})
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
