package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values loaded from environment variables.
// Every backend is optional; an empty address selects the in-memory implementation.
type Config struct {
	Env         string
	HTTPAddr    string
	GRPCAddr    string
	CORSOrigins []string

	DatabaseURL string
	MongoURI    string
	MongoDB     string

	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string

	ScyllaHosts             []string
	ScyllaKeyspace          string
	ScyllaUsername          string
	ScyllaPassword          string
	ScyllaConsistency       string
	ScyllaTimeout           time.Duration
	ScyllaReplicationFactor int
	FeedTTL                 time.Duration

	RedisAddr      string
	SendRateLimit  int
	SendRateWindow time.Duration

	JWTSecret string
	JWTIssuer string

	S3Endpoint       string
	S3PublicEndpoint string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool
	AvatarURLTTL     time.Duration

	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	OutboxMaxAttempts  int
	RetryBackoff       []time.Duration

	JanitorSchedule string
	OrphanGrace     time.Duration
	SearchLimit     int
	ShutdownTimeout time.Duration
}

// Load reads .env files (when present) and then the process environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:          getEnv("GRPC_ADDR", ""),
		CORSOrigins:       splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", "messaging"),
		KafkaBrokers:      splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicPrefix:  getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "messaging-realtime"),
		ScyllaHosts:       splitAndTrim(os.Getenv("SCYLLA_HOSTS")),
		ScyllaKeyspace:    getEnv("SCYLLA_KEYSPACE", "messaging"),
		ScyllaUsername:    os.Getenv("SCYLLA_USERNAME"),
		ScyllaPassword:    os.Getenv("SCYLLA_PASSWORD"),
		ScyllaConsistency: getEnv("SCYLLA_CONSISTENCY", "quorum"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		JWTSecret:         os.Getenv("AUTH_JWT_SECRET"),
		JWTIssuer:         os.Getenv("AUTH_JWT_ISSUER"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3PublicEndpoint:  os.Getenv("S3_PUBLIC_ENDPOINT"),
		S3AccessKey:       getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:       getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:          getEnv("S3_BUCKET", "avatars"),
		JanitorSchedule:   getEnv("JANITOR_SCHEDULE", "@every 1h"),
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"SCYLLA_TIMEOUT", 5 * time.Second, &cfg.ScyllaTimeout},
		{"FEED_TTL", 72 * time.Hour, &cfg.FeedTTL},
		{"SEND_RATE_WINDOW", time.Minute, &cfg.SendRateWindow},
		{"AVATAR_URL_TTL", time.Hour, &cfg.AvatarURLTTL},
		{"IDEMP_TTL", 24 * time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", 500 * time.Millisecond, &cfg.OutboxPollInterval},
		{"ORPHAN_GRACE", 10 * time.Minute, &cfg.OrphanGrace},
		{"SHUTDOWN_TIMEOUT", 5 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDurationEnv(d.key, d.def); err != nil {
			return Config{}, err
		}
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"SCYLLA_REPLICATION_FACTOR", 1, &cfg.ScyllaReplicationFactor},
		{"SEND_RATE_LIMIT", 30, &cfg.SendRateLimit},
		{"OUTBOX_MAX_ATTEMPTS", 10, &cfg.OutboxMaxAttempts},
		{"SEARCH_LIMIT", 20, &cfg.SearchLimit},
	}
	for _, i := range ints {
		if *i.dst, err = parseIntEnv(i.key, i.def); err != nil {
			return Config{}, err
		}
	}

	for _, raw := range splitAndTrim(getEnv("RETRY_BACKOFF", "1s,5s,30s")) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}
	if cfg.JWTSecret == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("AUTH_JWT_SECRET is required outside dev")
	}
	if cfg.SendRateLimit < 0 {
		return Config{}, fmt.Errorf("SEND_RATE_LIMIT must not be negative")
	}
	return cfg, nil
}

// IsDev reports whether the service runs in a local development mode.
func (c Config) IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "dev", "local", "test", "debug":
		return true
	}
	return false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
