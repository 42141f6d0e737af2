package credentialapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls credential API limits.
type Config struct {
	MaxBodyBytes int64

	// HashMaxConcurrent bounds in-flight Argon2id computations across requests.
	HashMaxConcurrent int64
	// HashWaitTimeout caps how long a request queues for a hashing slot.
	HashWaitTimeout time.Duration
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:      envInt64("WARDEN_API_MAX_BODY_BYTES", 64<<10), // 64 KiB
		HashMaxConcurrent: envInt64("WARDEN_HASH_MAX_CONCURRENT", 4),
		HashWaitTimeout:   envDuration("WARDEN_HASH_WAIT_TIMEOUT", 5*time.Second),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	// Each slot may hold tens of MiB of Argon2id memory.
	if cfg.HashMaxConcurrent <= 0 {
		cfg.HashMaxConcurrent = 4
	}
	if cfg.HashMaxConcurrent > 64 {
		cfg.HashMaxConcurrent = 64
	}
	if cfg.HashWaitTimeout > time.Minute {
		cfg.HashWaitTimeout = time.Minute
	}

	return cfg
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
