package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"clinic-sync-service/internal/config"
	"clinic-sync-service/internal/logger"
)

// SchemaVersion gates migration. Bumping it (together with adding the new
// partition to the config default) causes the next open to create any table
// not yet present. Migrations are additive only; nothing is ever dropped.
const SchemaVersion = 1

// SQLiteStore is the embedded local cache backing the offline-first layer.
// It runs SQLite in WAL mode so background queue replay and UI reads can
// proceed concurrently.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	partitions map[string]bool
}

// NewSQLiteStore opens (or creates) the database at cfg.FilePath and brings
// the schema up to SchemaVersion. The caller must Close the store when done.
func NewSQLiteStore(cfg config.StorageConfig) (*SQLiteStore, error) {
	return open(cfg, SchemaVersion)
}

func open(cfg config.StorageConfig, version int) (*SQLiteStore, error) {
	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %v", ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite3", "file:"+cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// WAL keeps readers unblocked while the queue manager writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL: %v", ErrStorageUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to set busy timeout: %v", ErrStorageUnavailable, err)
	}

	partitions := make(map[string]bool, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		partitions[p] = true
	}

	s := &SQLiteStore{
		db:         db,
		path:       cfg.FilePath,
		partitions: partitions,
	}

	if err := s.migrate(version); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Log.Info("Opened local store",
		zap.String("path", cfg.FilePath),
		zap.Int("partitions", len(cfg.Partitions)),
	)

	return s, nil
}

// migrate creates any table not yet present when the stored version is
// behind target. Existing tables and rows are never touched.
func (s *SQLiteStore) migrate(target int) error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("%w: failed to read schema version: %v", ErrStorageUnavailable, err)
	}
	if current >= target {
		return nil
	}

	return s.ExecTx(context.Background(), func(tx *sql.Tx) error {
		for p := range s.partitions {
			stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
				id TEXT PRIMARY KEY,
				data TEXT NOT NULL
			)`, p)
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create partition %s: %w", p, err)
			}
		}

		if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS sync_queue (
			id TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			payload TEXT,
			enqueued_at INTEGER NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0
		)`); err != nil {
			return fmt.Errorf("failed to create sync_queue: %w", err)
		}
		if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_sync_queue_enqueued_at
			ON sync_queue (enqueued_at)`); err != nil {
			return fmt.Errorf("failed to index sync_queue: %w", err)
		}

		if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		)`); err != nil {
			return fmt.Errorf("failed to create metadata: %w", err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ExecTx executes a function within a transaction.
func (s *SQLiteStore) ExecTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w: %v (rollback: %v)", ErrTransactionFailed, err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// table validates the partition name against the configured whitelist and
// returns it quoted for use as an identifier.
func (s *SQLiteStore) table(partition string) (string, error) {
	if s.db == nil {
		return "", ErrNotInitialized
	}
	if !s.partitions[partition] {
		return "", fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}
	return fmt.Sprintf("%q", partition), nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, partition string) ([]Record, error) {
	tbl, err := s.table(partition)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, data FROM %s ORDER BY id", tbl))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var data string
		if err := rows.Scan(&rec.ID, &data); err != nil {
			return nil, err
		}
		rec.Data = json.RawMessage(data)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, partition, key string) (*Record, error) {
	tbl, err := s.table(partition)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT id, data FROM %s WHERE id = ?", tbl), key)

	var rec Record
	var data string
	err = row.Scan(&rec.ID, &data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Data = json.RawMessage(data)
	return &rec, nil
}

func (s *SQLiteStore) Put(ctx context.Context, partition string, rec Record) error {
	tbl, err := s.table(partition)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`, tbl)
	_, err = s.db.ExecContext(ctx, query, rec.ID, string(rec.Data))
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, partition, key string) error {
	tbl, err := s.table(partition)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", tbl), key)
	return err
}

func (s *SQLiteStore) Clear(ctx context.Context, partition string) error {
	tbl, err := s.table(partition)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", tbl))
	return err
}

func (s *SQLiteStore) AppendQueueItem(ctx context.Context, item *QueueItem) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	query := `INSERT INTO sync_queue (id, endpoint, method, payload, enqueued_at, retry_count)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.Endpoint,
		item.Method,
		string(item.Payload),
		item.EnqueuedAt,
		item.RetryCount,
	)
	return err
}

// ListQueueItems returns every buffered write in replay order: ascending
// enqueued_at, id as a tiebreak so equal timestamps stay stable.
func (s *SQLiteStore) ListQueueItems(ctx context.Context) ([]*QueueItem, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	query := `SELECT id, endpoint, method, payload, enqueued_at, retry_count
			  FROM sync_queue ORDER BY enqueued_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		var item QueueItem
		var payload sql.NullString
		err := rows.Scan(
			&item.ID,
			&item.Endpoint,
			&item.Method,
			&payload,
			&item.EnqueuedAt,
			&item.RetryCount,
		)
		if err != nil {
			return nil, err
		}
		if payload.Valid {
			item.Payload = json.RawMessage(payload.String)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) UpdateQueueItem(ctx context.Context, item *QueueItem) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	query := `UPDATE sync_queue SET retry_count = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, item.RetryCount, item.ID)
	return err
}

func (s *SQLiteStore) DeleteQueueItem(ctx context.Context, id string) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) CountQueueItems(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrNotInitialized
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) GetMetadata(ctx context.Context, key string) (json.RawMessage, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !value.Valid {
		return nil, nil
	}
	return json.RawMessage(value.String), nil
}

func (s *SQLiteStore) SetMetadata(ctx context.Context, key string, value json.RawMessage) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	query := `INSERT INTO metadata (key, value) VALUES (?, ?)
			  ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	_, err := s.db.ExecContext(ctx, query, key, string(value))
	return err
}
