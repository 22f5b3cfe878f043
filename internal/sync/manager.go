package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinic-sync-service/internal/config"
	"clinic-sync-service/internal/connectivity"
	"clinic-sync-service/internal/logger"
	"clinic-sync-service/internal/remote"
	"clinic-sync-service/internal/store"
)

// Manager owns the outbound write queue: enqueue, ordered replay with a
// bounded retry cap, periodic and reconnect-triggered flushes, and the
// single-flight guarantee that at most one flush cycle runs at a time.
type Manager struct {
	store      store.Store
	remote     remote.Client
	monitor    connectivity.Monitor
	scheduler  *Scheduler
	maxRetries int
	flushing   atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

func NewManager(cfg config.SyncConfig, st store.Store, rc remote.Client, mon connectivity.Monitor) *Manager {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	interval := cfg.GetFlushInterval()
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		store:      st,
		remote:     rc,
		monitor:    mon,
		maxRetries: maxRetries,
		ctx:        ctx,
		cancel:     cancel,
	}
	m.scheduler = NewScheduler(interval, m)
	return m
}

// Enqueue buffers one outbound write. It does not attempt delivery; the
// next flush cycle does.
func (m *Manager) Enqueue(ctx context.Context, endpoint, method string, payload json.RawMessage) (*store.QueueItem, error) {
	item := &store.QueueItem{
		ID:         uuid.New().String(),
		Endpoint:   endpoint,
		Method:     method,
		Payload:    payload,
		EnqueuedAt: time.Now().UnixMilli(),
		RetryCount: 0,
	}

	if err := m.store.AppendQueueItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to enqueue write: %w", err)
	}

	logger.Log.Debug("Queued outbound write",
		zap.String("id", item.ID),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
	)
	return item, nil
}

// Start wires the periodic flush, the become-online trigger, and an
// immediate flush if the service comes up online.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("sync manager is already running")
	}

	logger.Log.Info("Starting sync queue manager")

	if err := m.scheduler.Start(); err != nil {
		return err
	}

	m.wg.Add(1)
	go m.watchConnectivity()

	if m.monitor.IsOnline() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.Flush(context.Background())
		}()
	}

	m.running = true
	return nil
}

// Stop cancels the timer and the connectivity watcher. An in-flight flush
// runs to completion; there is no cooperative cancellation of a network
// call already underway.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	logger.Log.Info("Stopping sync queue manager")

	m.scheduler.Stop()
	m.cancel()
	m.wg.Wait()

	m.running = false
}

func (m *Manager) watchConnectivity() {
	defer m.wg.Done()

	for {
		select {
		case ev, ok := <-m.monitor.Events():
			if !ok {
				return
			}
			if ev.Online {
				logger.Log.Info("Back online, flushing queued writes")
				m.Flush(context.Background())
			}
		case <-m.ctx.Done():
			return
		}
	}
}

// Flush replays every buffered write in enqueue order. It returns
// immediately when offline or when another flush is already in progress.
func (m *Manager) Flush(ctx context.Context) {
	if !m.monitor.IsOnline() {
		return
	}
	if !m.flushing.CompareAndSwap(false, true) {
		return
	}
	defer m.flushing.Store(false)

	items, err := m.store.ListQueueItems(ctx)
	if err != nil {
		logger.Log.Error("Failed to read sync queue", zap.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}

	// The store returns items ordered already; the stable sort keeps the
	// ordering guarantee local to this function.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].EnqueuedAt < items[j].EnqueuedAt
	})

	logger.Log.Info("Flushing sync queue", zap.Int("pending", len(items)))

	for _, item := range items {
		if err := m.dispatch(ctx, item); err != nil {
			m.handleFailure(ctx, item, err)
			continue
		}
		if err := m.store.DeleteQueueItem(ctx, item.ID); err != nil {
			logger.Log.Error("Failed to remove delivered item", zap.String("id", item.ID), zap.Error(err))
		}
	}
}

// handleFailure increments the retry count and either persists the item for
// the next cycle (original timestamp intact, so it keeps its place in line)
// or drops it once the cap is reached. One bad item never blocks the rest
// of the batch.
func (m *Manager) handleFailure(ctx context.Context, item *store.QueueItem, cause error) {
	item.RetryCount++

	if item.RetryCount >= m.maxRetries {
		logger.Log.Warn("Dropping queued write after repeated failures",
			zap.String("id", item.ID),
			zap.String("method", item.Method),
			zap.String("endpoint", item.Endpoint),
			zap.Int("attempts", item.RetryCount),
			zap.Error(cause),
		)
		if err := m.store.DeleteQueueItem(ctx, item.ID); err != nil {
			logger.Log.Error("Failed to drop queue item", zap.String("id", item.ID), zap.Error(err))
		}
		return
	}

	logger.Log.Warn("Queued write failed, will retry",
		zap.String("id", item.ID),
		zap.String("endpoint", item.Endpoint),
		zap.Int("attempts", item.RetryCount),
		zap.Error(cause),
	)
	if err := m.store.UpdateQueueItem(ctx, item); err != nil {
		logger.Log.Error("Failed to persist retry count", zap.String("id", item.ID), zap.Error(err))
	}
}

func (m *Manager) dispatch(ctx context.Context, item *store.QueueItem) error {
	switch item.Method {
	case http.MethodPost:
		_, err := m.remote.Post(ctx, item.Endpoint, item.Payload)
		return err
	case http.MethodPut:
		_, err := m.remote.Put(ctx, item.Endpoint, item.Payload)
		return err
	case http.MethodDelete:
		_, err := m.remote.Delete(ctx, item.Endpoint)
		return err
	default:
		return fmt.Errorf("unsupported method %q", item.Method)
	}
}

// PendingCount reports the queue length for UI indicators.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	return m.store.CountQueueItems(ctx)
}

func (m *Manager) Status() string {
	if m.flushing.Load() {
		return StatusFlushing
	}
	return StatusIdle
}
