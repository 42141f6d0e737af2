package meter

import "time"

// Security/performance limits.
const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 16 << 10 // 16 KiB

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second
	wsMaxPingFailures     = 3
)

const (
	// Heartbeat defaults (overridable by env).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (evaluations per window). A meter fires on
	// keystrokes, so the budget is generous but bounded.
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second
)
