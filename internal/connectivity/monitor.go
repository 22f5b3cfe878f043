package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"clinic-sync-service/internal/logger"
)

// Event marks one online/offline transition. Transitions are reported
// exactly once each and are never coalesced; rapid flapping produces rapid
// event pairs.
type Event struct {
	Online bool
	At     time.Time
}

// Monitor tracks remote reachability. Implementations are injected so the
// sync layer can be driven deterministically in tests.
type Monitor interface {
	IsOnline() bool
	Events() <-chan Event
	Start()
	Stop()
}

// ProbeFunc checks reachability; a nil error means online.
type ProbeFunc func(ctx context.Context) error

// Prober polls a reachability probe at a fixed interval and reports state
// transitions. It is the production Monitor for runtimes without a native
// reachability signal.
type Prober struct {
	probe    ProbeFunc
	interval time.Duration
	online   atomic.Bool
	events   chan Event
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewProber(probe ProbeFunc, interval time.Duration) *Prober {
	ctx, cancel := context.WithCancel(context.Background())
	return &Prober{
		probe:    probe,
		interval: interval,
		events:   make(chan Event, 16),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start seeds the current state with an immediate probe, then polls in the
// background until Stop.
func (p *Prober) Start() {
	p.online.Store(p.check())
	logger.Log.Info("Starting connectivity monitor",
		zap.Bool("online", p.online.Load()),
		zap.Duration("interval", p.interval),
	)
	go p.run()
}

func (p *Prober) Stop() {
	p.cancel()
	<-p.done
	close(p.events)
	logger.Log.Info("Stopped connectivity monitor")
}

func (p *Prober) IsOnline() bool {
	return p.online.Load()
}

func (p *Prober) Events() <-chan Event {
	return p.events
}

func (p *Prober) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := p.check()
			was := p.online.Swap(now)
			if was == now {
				continue
			}
			logger.Log.Info("Connectivity changed", zap.Bool("online", now))
			// Block rather than drop so no transition is lost.
			select {
			case p.events <- Event{Online: now, At: time.Now()}:
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Prober) check() bool {
	ctx, cancel := context.WithTimeout(p.ctx, p.interval)
	defer cancel()
	return p.probe(ctx) == nil
}

// Manual is a Monitor whose state is driven by the caller. Host runtimes
// with their own reachability signal feed it via SetOnline; tests use it to
// script transitions.
type Manual struct {
	mu     sync.Mutex
	online bool
	events chan Event
}

func NewManual(online bool) *Manual {
	return &Manual{
		online: online,
		events: make(chan Event, 16),
	}
}

func (m *Manual) Start() {}

func (m *Manual) Stop() {
	close(m.events)
}

func (m *Manual) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Manual) Events() <-chan Event {
	return m.events
}

// SetOnline updates the state, emitting an event only on an actual
// transition.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	m.events <- Event{Online: online, At: time.Now()}
}
