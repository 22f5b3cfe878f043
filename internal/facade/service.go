package facade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"clinic-sync-service/internal/connectivity"
	"clinic-sync-service/internal/logger"
	"clinic-sync-service/internal/remote"
	"clinic-sync-service/internal/store"
	"clinic-sync-service/internal/sync"
)

// Service is the only surface domain code talks to. It hides the
// online/offline branching: reads fall back to the local cache, writes
// degrade to the outbound queue, and callers never see a transient remote
// failure as an error.
type Service struct {
	store   store.Store
	remote  remote.Client
	monitor connectivity.Monitor
	queue   *sync.Manager
}

func New(st store.Store, rc remote.Client, mon connectivity.Monitor, q *sync.Manager) *Service {
	return &Service{
		store:   st,
		remote:  rc,
		monitor: mon,
		queue:   q,
	}
}

// CacheData refreshes one partition from the remote collection. Offline it
// is a no-op; on remote failure the existing cache is left untouched and the
// error is only logged. The refresh is a full replace: the partition is
// cleared, then repopulated. The clear and the repopulation are separate
// transactions, so a concurrent read can observe a transiently empty
// partition mid-refresh.
func (s *Service) CacheData(ctx context.Context, partition, endpoint string) error {
	if !s.monitor.IsOnline() {
		return nil
	}

	records, err := s.fetch(ctx, endpoint)
	if err != nil {
		logger.Log.Warn("Cache refresh failed, keeping existing cache",
			zap.String("partition", partition),
			zap.Error(err),
		)
		return nil
	}

	return s.replace(ctx, partition, records)
}

// GetData returns the remote collection when reachable, refreshing the
// local cache along the way; otherwise it serves whatever is cached.
func (s *Service) GetData(ctx context.Context, partition, endpoint string) ([]json.RawMessage, error) {
	if s.monitor.IsOnline() {
		records, err := s.fetch(ctx, endpoint)
		if err == nil {
			if rerr := s.replace(ctx, partition, records); rerr != nil {
				logger.Log.Warn("Failed to refresh cache from fetch",
					zap.String("partition", partition),
					zap.Error(rerr),
				)
			}
			return records, nil
		}
		logger.Log.Warn("Remote fetch failed, serving cached data",
			zap.String("partition", partition),
			zap.Error(err),
		)
	}

	cached, err := s.store.GetAll(ctx, partition)
	if err != nil {
		return nil, err
	}
	records := make([]json.RawMessage, 0, len(cached))
	for _, rec := range cached {
		records = append(records, rec.Data)
	}
	return records, nil
}

// SaveData writes through to the remote service when possible. Offline, or
// when the remote write fails, it stores an offline-tagged record locally,
// buffers the write in the sync queue, and still returns a usable record;
// the caller never sees the degradation as an error.
func (s *Service) SaveData(ctx context.Context, partition, endpoint string, payload json.RawMessage, method string) (json.RawMessage, error) {
	if s.monitor.IsOnline() {
		resp, err := s.dispatch(ctx, endpoint, method, payload)
		if err == nil {
			saved := resp.Data
			if len(saved) == 0 {
				saved = payload
			}
			if id := extractID(saved); id != "" {
				if perr := s.store.Put(ctx, partition, store.Record{ID: id, Data: saved}); perr != nil {
					return nil, perr
				}
			}
			return saved, nil
		}
		logger.Log.Warn("Remote write failed, buffering offline",
			zap.String("partition", partition),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	}

	return s.saveOffline(ctx, partition, endpoint, payload, method)
}

// OnlineStatus reports current reachability for UI indicators.
func (s *Service) OnlineStatus() bool {
	return s.monitor.IsOnline()
}

// PendingSyncCount reports how many buffered writes await replay.
func (s *Service) PendingSyncCount(ctx context.Context) (int, error) {
	return s.queue.PendingCount(ctx)
}

// fetch pulls the remote collection and decodes it into individual records.
func (s *Service) fetch(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	resp, err := s.remote.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &records); err != nil {
			return nil, fmt.Errorf("unexpected collection payload: %w", err)
		}
	}
	return records, nil
}

// replace clears the partition, repopulates it from the fetched records,
// and stamps last_sync_<partition>.
func (s *Service) replace(ctx context.Context, partition string, records []json.RawMessage) error {
	if err := s.store.Clear(ctx, partition); err != nil {
		return err
	}

	for _, rec := range records {
		id := extractID(rec)
		if id == "" {
			logger.Log.Warn("Skipping remote record without id", zap.String("partition", partition))
			continue
		}
		if err := s.store.Put(ctx, partition, store.Record{ID: id, Data: rec}); err != nil {
			return err
		}
	}

	ts, _ := json.Marshal(time.Now().UnixMilli())
	return s.store.SetMetadata(ctx, "last_sync_"+partition, ts)
}

// saveOffline is the degraded write path: tag the record, cache it, queue
// the original write for replay.
func (s *Service) saveOffline(ctx context.Context, partition, endpoint string, payload json.RawMessage, method string) (json.RawMessage, error) {
	doc := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("payload must be a JSON object: %w", err)
		}
	}
	if _, ok := doc["id"]; !ok {
		doc["id"] = time.Now().UnixMilli()
	}
	doc["_offline"] = true

	tagged, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode offline record: %w", err)
	}

	if err := s.store.Put(ctx, partition, store.Record{ID: extractID(tagged), Data: tagged}); err != nil {
		return nil, err
	}

	if _, err := s.queue.Enqueue(ctx, endpoint, method, payload); err != nil {
		return nil, err
	}

	return tagged, nil
}

func (s *Service) dispatch(ctx context.Context, endpoint, method string, payload json.RawMessage) (*remote.Response, error) {
	switch method {
	case http.MethodPost:
		return s.remote.Post(ctx, endpoint, payload)
	case http.MethodPut:
		return s.remote.Put(ctx, endpoint, payload)
	case http.MethodDelete:
		return s.remote.Delete(ctx, endpoint)
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
}

// extractID pulls the identifying key out of a record, preserving numeric
// ids exactly as written.
func extractID(raw json.RawMessage) string {
	var probe struct {
		ID any `json:"id"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&probe); err != nil {
		return ""
	}
	switch v := probe.ID.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Decode gives callers typed access to the schemaless records a partition
// holds.
func Decode[T any](records []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
