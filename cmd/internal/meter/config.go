package meter

import (
	"os"
	"strconv"
	"strings"
	"time"

	"warden/cmd/internal/origins"
)

// Config controls the meter gateway.
type Config struct {
	// Origin is required by default; non-browser clients must send one too.
	OriginRequired bool
	Origins        origins.Allowlist

	// DevInsecure disables websocket.Accept's own origin check. Dev only.
	DevInsecure bool

	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	RateEvents int
	RateWindow time.Duration
}

// LoadConfigFromEnv loads meter settings. The origin allowlist is supplied by
// the caller so HTTP CORS and the WebSocket check share one list.
func LoadConfigFromEnv(allow origins.Allowlist) Config {
	return Config{
		OriginRequired:    envBool("WARDEN_METER_ORIGIN_REQUIRED", true),
		Origins:           allow,
		DevInsecure:       envBool("WARDEN_METER_DEV_INSECURE", false),
		WriteTimeout:      envDuration("WARDEN_METER_WRITE_TIMEOUT", wsDefaultWriteTimeout),
		ReadIdleTimeout:   envDuration("WARDEN_METER_READ_IDLE_TIMEOUT", wsDefaultReadIdle),
		HeartbeatInterval: envDuration("WARDEN_METER_HEARTBEAT_INTERVAL", heartbeatInterval),
		HeartbeatTimeout:  envDuration("WARDEN_METER_HEARTBEAT_TIMEOUT", heartbeatTimeout),
		RateEvents:        envInt("WARDEN_METER_RATE_EVENTS", rateLimitEvents),
		RateWindow:        envDuration("WARDEN_METER_RATE_WINDOW", rateLimitWindow),
	}
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = wsDefaultWriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = wsDefaultReadIdle
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = heartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = heartbeatTimeout
	}
	return c
}

// ---- env helpers ----

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
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
