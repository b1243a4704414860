package sinks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/progress"
)

// Snapshot is the latest state reported by each broadcaster.
type Snapshot struct {
	Downloader crawler.DownloaderState `json:"downloader"`
	Scheduler  crawler.SchedulerState  `json:"scheduler"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// Stats keeps the most recent snapshots and logs each update at debug level.
type Stats struct {
	logger  *zap.Logger
	clock   crawler.Clock
	mu      sync.RWMutex
	latest  Snapshot
	updates atomic.Uint64
}

// NewStats returns an empty Stats.
func NewStats(clock crawler.Clock, logger *zap.Logger) *Stats {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stats{logger: logger, clock: clock}
}

// Downloader returns the listener to register on the downloader broadcaster.
func (s *Stats) Downloader() progress.Listener[crawler.DownloaderState] {
	return progress.ListenerFunc[crawler.DownloaderState](func(_ context.Context, st crawler.DownloaderState) error {
		s.mu.Lock()
		s.latest.Downloader = st
		s.latest.UpdatedAt = s.clock.Now()
		s.mu.Unlock()
		s.updates.Add(1)
		s.logger.Debug("downloader state",
			zap.Uint64("total", st.Total),
			zap.Uint64("success", st.Success),
			zap.Uint64("error", st.Error),
		)
		return nil
	})
}

// Scheduler returns the listener to register on the scheduler broadcaster.
func (s *Stats) Scheduler() progress.Listener[crawler.SchedulerState] {
	return progress.ListenerFunc[crawler.SchedulerState](func(_ context.Context, st crawler.SchedulerState) error {
		s.mu.Lock()
		changed := s.latest.Scheduler != st
		s.latest.Scheduler = st
		s.latest.UpdatedAt = s.clock.Now()
		s.mu.Unlock()
		s.updates.Add(1)
		if changed {
			s.logger.Debug("scheduler state", zap.Int("queue_len", st.QueueLen))
		}
		return nil
	})
}

// Snapshot returns the latest states.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Updates counts snapshots received from either broadcaster.
func (s *Stats) Updates() uint64 {
	return s.updates.Load()
}
