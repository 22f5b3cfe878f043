package store

import (
	"context"
	"encoding/json"
)

type Store interface {
	// Entity partitions
	GetAll(ctx context.Context, partition string) ([]Record, error)
	Get(ctx context.Context, partition, key string) (*Record, error)
	Put(ctx context.Context, partition string, rec Record) error
	Delete(ctx context.Context, partition, key string) error
	Clear(ctx context.Context, partition string) error

	// Outbound queue
	AppendQueueItem(ctx context.Context, item *QueueItem) error
	ListQueueItems(ctx context.Context) ([]*QueueItem, error)
	UpdateQueueItem(ctx context.Context, item *QueueItem) error
	DeleteQueueItem(ctx context.Context, id string) error
	CountQueueItems(ctx context.Context) (int, error)

	// Metadata
	GetMetadata(ctx context.Context, key string) (json.RawMessage, error)
	SetMetadata(ctx context.Context, key string, value json.RawMessage) error

	// General
	Close() error
}
