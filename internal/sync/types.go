package sync

import (
	"time"
)

// Queue manager states. Failures are per-item; there is no error state.
const (
	StatusIdle     = "idle"
	StatusFlushing = "flushing"
)

const (
	// DefaultMaxRetries is the flat replay cap. An item is dropped once its
	// retry count reaches it; there is no backoff between attempts.
	DefaultMaxRetries = 3

	// DefaultFlushInterval is the periodic flush cadence.
	DefaultFlushInterval = 30 * time.Second
)
