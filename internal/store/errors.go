package store

import (
	"errors"
)

var (
	// ErrNotInitialized is returned when an operation runs against a store
	// that was never opened or has been closed.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrUnknownPartition is returned for partition names the schema does
	// not carry.
	ErrUnknownPartition = errors.New("unknown partition")

	// ErrStorageUnavailable wraps failures to open or reach the underlying
	// database file.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTransactionFailed wraps begin/commit/rollback failures.
	ErrTransactionFailed = errors.New("transaction failed")
)
