package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/telemetry"
)

// Config controls per-listener buffering for a Broadcaster.
//   - Name: label used in logs and metrics (for example "downloader").
//   - BufferSize: snapshots buffered per listener before the oldest is dropped (default 64).
//   - ListenerTimeout: deadline for a single Consume call (default 5s).
//   - BaseContext: parent context passed to listener calls (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	Name            string
	BufferSize      int
	ListenerTimeout time.Duration
	BaseContext     context.Context
	Logger          *zap.Logger
}

const (
	defaultBufferSize      = 64
	defaultListenerTimeout = 5 * time.Second
	dropLogInterval        = 5 * time.Second
)

// Broadcaster fans snapshots out to registered listeners. Publish never blocks:
// when a listener falls behind, its oldest buffered snapshot is discarded in
// favor of the new one. Because snapshots carry full state, the listener only
// loses intermediate values, never the latest one.
type Broadcaster[T any] struct {
	cfg         Config
	logger      *zap.Logger
	mu          sync.RWMutex
	subs        []*subscription[T]
	wg          sync.WaitGroup
	closed      bool
	dropLimiter rateLimiter
	dropped     atomic.Int64
	published   atomic.Int64
	closeOnce   sync.Once
	doneCh      chan struct{}
}

type subscription[T any] struct {
	listener Listener[T]
	ch       chan T
}

// New builds a Broadcaster with no listeners.
func New[T any](cfg Config) *Broadcaster[T] {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.ListenerTimeout <= 0 {
		cfg.ListenerTimeout = defaultListenerTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Name == "" {
		cfg.Name = "state"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster[T]{
		cfg:         cfg,
		logger:      logger.With(zap.String("broadcaster", cfg.Name)),
		dropLimiter: rateLimiter{interval: dropLogInterval},
		doneCh:      make(chan struct{}),
	}
}

// Register adds a listener and starts its delivery goroutine. Listeners added
// after Close are ignored.
func (b *Broadcaster[T]) Register(l Listener[T]) {
	if b == nil || l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	sub := &subscription[T]{listener: l, ch: make(chan T, b.cfg.BufferSize)}
	b.subs = append(b.subs, sub)
	b.wg.Add(1)
	go b.deliver(sub)
}

// Publish hands snapshot to every listener without blocking.
func (b *Broadcaster[T]) Publish(snapshot T) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.published.Add(1)
	for _, sub := range b.subs {
		b.offer(sub, snapshot)
	}
}

func (b *Broadcaster[T]) offer(sub *subscription[T], snapshot T) {
	for {
		select {
		case sub.ch <- snapshot:
			return
		default:
		}
		select {
		case <-sub.ch:
			b.recordDrop()
		default:
		}
	}
}

func (b *Broadcaster[T]) recordDrop() {
	b.dropped.Add(1)
	telemetry.ObserveBroadcastDrop(b.cfg.Name)
	if b.dropLimiter.Allow(time.Now()) {
		b.logger.Warn("state snapshots dropped due to slow listener", zap.Int64("dropped_total", b.dropped.Load()))
	}
}

// Dropped reports how many snapshots were discarded across all listeners.
func (b *Broadcaster[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Published reports how many snapshots were accepted by Publish.
func (b *Broadcaster[T]) Published() int64 {
	return b.published.Load()
}

func (b *Broadcaster[T]) deliver(sub *subscription[T]) {
	defer b.wg.Done()
	for snapshot := range sub.ch {
		ctx, cancel := context.WithTimeout(b.cfg.BaseContext, b.cfg.ListenerTimeout)
		if err := sub.listener.Consume(ctx, snapshot); err != nil {
			b.logger.Warn("progress listener consume failed", zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting snapshots, lets listeners finish what is buffered and
// blocks until every delivery goroutine exits or ctx ends. It is safe to call
// multiple times.
func (b *Broadcaster[T]) Close(ctx context.Context) error {
	if b == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		for _, sub := range b.subs {
			close(sub.ch)
		}
		b.mu.Unlock()
		go func() {
			b.wg.Wait()
			close(b.doneCh)
		}()
	})
	select {
	case <-b.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("broadcaster %s close wait: %w", b.cfg.Name, ctx.Err())
	}
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
