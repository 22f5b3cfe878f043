package store

import (
	"encoding/json"
)

// Record is an opaque entity stored in one of the named partitions. The
// payload is caller-defined JSON; the store only cares about the key.
type Record struct {
	ID   string          `db:"id"`
	Data json.RawMessage `db:"data"`
}

// QueueItem is one buffered outbound write awaiting replay against the
// remote service. Items are replayed in non-decreasing EnqueuedAt order and
// dropped once RetryCount reaches the configured cap.
type QueueItem struct {
	ID         string          `db:"id"`
	Endpoint   string          `db:"endpoint"`
	Method     string          `db:"method"`
	Payload    json.RawMessage `db:"payload"`
	EnqueuedAt int64           `db:"enqueued_at"`
	RetryCount int             `db:"retry_count"`
}

// MetadataRecord holds bookkeeping values such as last_sync_<partition>
// timestamps, keyed by purpose.
type MetadataRecord struct {
	Key   string          `db:"key"`
	Value json.RawMessage `db:"value"`
}
