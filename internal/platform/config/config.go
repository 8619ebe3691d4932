// Package config builds the process configuration from environment
// variables so main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	// OwnerIdentity is seeded as the ledger owner with both roles.
	OwnerIdentity string
	// OracleIdentity is the service identity the oracle anchors under.
	OracleIdentity string
	// RateLimit is the per-client request budget per minute.
	RateLimit int64
	// DemoMode swaps in the permission-free ledger variant.
	DemoMode bool
}

// Ledger selects and configures the persistence backend.
type Ledger struct {
	// Backend is one of "memory", "leveldb", "postgres".
	Backend     string
	LevelDBPath string
	PostgresURL string
}

// RedisConfig configures the optional Redis connection, used as a proof
// sink backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the optional event stream.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Sink selects the proof object sink.
type Sink struct {
	// Backend is one of "memory", "s3", "redis", or empty for none.
	Backend     string
	Timeout     time.Duration
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

// Config is the full process configuration.
type Config struct {
	Server Server
	Ledger Ledger
	Redis  RedisConfig
	Kafka  Kafka
	Sink   Sink
}

// FromEnv builds the configuration from MEDCHAIN_* environment variables,
// with development defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:           getenv("MEDCHAIN_ADDR", ":8080"),
			JWTSigningKey:  getenv("MEDCHAIN_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:      getenv("MEDCHAIN_JWT_ISSUER", "medchain"),
			OwnerIdentity:  getenv("MEDCHAIN_OWNER_IDENTITY", "0xowner"),
			OracleIdentity: getenv("MEDCHAIN_ORACLE_IDENTITY", "0xoracle-service"),
			RateLimit:      int64(getenvInt("MEDCHAIN_RATE_LIMIT", 120)),
			DemoMode:       os.Getenv("MEDCHAIN_DEMO_MODE") == "true",
		},
		Ledger: Ledger{
			Backend:     getenv("MEDCHAIN_LEDGER_BACKEND", "memory"),
			LevelDBPath: getenv("MEDCHAIN_LEVELDB_PATH", "data/ledger"),
			PostgresURL: os.Getenv("MEDCHAIN_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("MEDCHAIN_REDIS_URL"),
			PoolSize:     getenvInt("MEDCHAIN_REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("MEDCHAIN_REDIS_MIN_IDLE", 2),
			DialTimeout:  getenvDuration("MEDCHAIN_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("MEDCHAIN_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("MEDCHAIN_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("MEDCHAIN_KAFKA_BROKERS")),
			Topic:   getenv("MEDCHAIN_KAFKA_TOPIC", "medchain.ledger.events"),
		},
		Sink: Sink{
			Backend:     os.Getenv("MEDCHAIN_SINK_BACKEND"),
			Timeout:     getenvDuration("MEDCHAIN_SINK_TIMEOUT", 2*time.Second),
			S3Endpoint:  os.Getenv("MEDCHAIN_S3_ENDPOINT"),
			S3AccessKey: os.Getenv("MEDCHAIN_S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("MEDCHAIN_S3_SECRET_KEY"),
			S3Bucket:    getenv("MEDCHAIN_S3_BUCKET", "medchain-proofs"),
			S3UseSSL:    os.Getenv("MEDCHAIN_S3_USE_SSL") == "true",
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
