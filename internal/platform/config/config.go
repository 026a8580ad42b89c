package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server   Server
	Auth     Auth
	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Evidence Evidence
	LogLevel string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	// ServiceToken guards the conversion callback route. Empty disables it.
	ServiceToken string
}

type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Database configures Postgres. An empty URL runs with in-memory stores.
type Database struct {
	URL             string
	MaxConns        int32
	MigrateOnStart  bool
	OutboxBatchSize int
	OutboxPoll      time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the job queue and audit stream. No brokers means jobs
// stay in memory and the outbox relay does not run.
type Kafka struct {
	Brokers     []string
	ClientID    string
	AuditTopic  string
	CreateTopic bool
}

type Evidence struct {
	MaxUploadBytes int64
	RequireReady   bool
	SeedDemoTenant string
}

// LoadDotEnv seeds the environment from a dotenv file for local runs.
// Variables already set win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getEnv("VOUCH_ADDR", ":8080"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			ServiceToken:    os.Getenv("SERVICE_TOKEN"),
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getEnv("JWT_ISSUER", "vouch-dev"),
			JWTAudience:   getEnv("JWT_AUDIENCE", "vouch"),
		},
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			MaxConns:        int32(getInt("DATABASE_MAX_CONNS", 10)),
			MigrateOnStart:  getBool("DATABASE_MIGRATE", true),
			OutboxBatchSize: getInt("AUDIT_OUTBOX_BATCH_SIZE", 100),
			OutboxPoll:      getDuration("AUDIT_OUTBOX_POLL_INTERVAL", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			ClientID:    getEnv("KAFKA_CLIENT_ID", "vouch"),
			AuditTopic:  getEnv("KAFKA_AUDIT_TOPIC", "audit.events"),
			CreateTopic: getBool("KAFKA_CREATE_TOPICS", true),
		},
		Evidence: Evidence{
			MaxUploadBytes: int64(getInt("EVIDENCE_MAX_UPLOAD_BYTES", 25<<20)),
			RequireReady:   getBool("EVIDENCE_REQUIRE_READY", false),
			SeedDemoTenant: os.Getenv("SEED_DEMO_TENANT"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
