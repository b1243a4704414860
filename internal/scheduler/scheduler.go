// Package scheduler owns the crawl frontier and decides when the next request
// may go to the downloader. Admission is gated twice: by a ceiling on fetches
// in flight (taken from downloader feedback) and by a minimum spacing between
// dispatches. Both gates are only evaluated on the tick, so a newly queued
// request waits for the next tick even when capacity is free.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/frontier"
	"github.com/JakeFAU/rulecrawler/internal/progress"
	"github.com/JakeFAU/rulecrawler/internal/queue/memory"
)

// Downloader receives admitted requests. Dispatch must not block.
type Downloader interface {
	Send(req crawler.Request) error
}

// Config controls admission.
type Config struct {
	Strategy           crawler.Strategy
	DownloadDelay      time.Duration
	ConcurrentRequests int
}

// Scheduler is an actor: its frontier, feedback estimate and timestamps are
// only touched by the goroutine running Run.
type Scheduler struct {
	cfg        Config
	clock      crawler.Clock
	logger     *zap.Logger
	batches    *memory.Mailbox[[]crawler.Request]
	feedback   *memory.Mailbox[crawler.DownloaderState]
	downloader Downloader
	state      *progress.Broadcaster[crawler.SchedulerState]

	frontier     *frontier.Frontier
	lastFeedback crawler.DownloaderState
	dispatched   uint64
	lastDispatch time.Time
	tick         <-chan time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithTicker replaces the wall-clock ticker, letting tests drive ticks by hand.
func WithTicker(tick <-chan time.Time) Option {
	return func(s *Scheduler) { s.tick = tick }
}

// New builds a Scheduler reading request batches and downloader feedback from
// the given mailboxes.
func New(
	cfg Config,
	clock crawler.Clock,
	batches *memory.Mailbox[[]crawler.Request],
	feedback *memory.Mailbox[crawler.DownloaderState],
	downloader Downloader,
	state *progress.Broadcaster[crawler.SchedulerState],
	logger *zap.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if cfg.DownloadDelay <= 0 {
		return nil, fmt.Errorf("%w: download delay must be > 0", crawler.ErrConfig)
	}
	if cfg.ConcurrentRequests <= 0 {
		return nil, fmt.Errorf("%w: concurrent requests must be > 0", crawler.ErrConfig)
	}
	if clock == nil || batches == nil || feedback == nil || downloader == nil {
		return nil, fmt.Errorf("%w: scheduler dependencies missing", crawler.ErrConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cfg:          cfg,
		clock:        clock,
		logger:       logger.Named("scheduler"),
		batches:      batches,
		feedback:     feedback,
		downloader:   downloader,
		state:        state,
		frontier:     frontier.New(cfg.Strategy),
		lastDispatch: clock.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run processes batches, feedback and ticks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	tick := s.tick
	if tick == nil {
		ticker := time.NewTicker(s.cfg.DownloadDelay)
		defer ticker.Stop()
		tick = ticker.C
	}
	s.logger.Info("scheduler started",
		zap.String("strategy", s.cfg.Strategy.String()),
		zap.Duration("download_delay", s.cfg.DownloadDelay),
		zap.Int("concurrent_requests", s.cfg.ConcurrentRequests),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", zap.Int("queue_len", s.frontier.Len()))
			return nil
		case <-s.batches.Ready():
			for _, batch := range s.batches.Drain() {
				s.push(batch)
			}
		case <-s.feedback.Ready():
			for _, fb := range s.feedback.Drain() {
				s.lastFeedback = fb
			}
		case <-tick:
			if err := s.onTick(); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) push(batch []crawler.Request) {
	accepted := 0
	for _, req := range batch {
		if s.frontier.Push(req) {
			accepted++
		}
	}
	s.logger.Debug("requests queued",
		zap.Int("received", len(batch)),
		zap.Int("accepted", accepted),
		zap.Int("queue_len", s.frontier.Len()),
	)
	s.publish()
}

// inFlight is total - success - error from the last feedback. The
// scheduler's own dispatch count is used as a floor for total so that feedback
// still in transit can never let the ceiling be exceeded.
func (s *Scheduler) inFlight() uint64 {
	fb := s.lastFeedback
	if s.dispatched > fb.Total {
		fb.Total = s.dispatched
	}
	return fb.InFlight()
}

func (s *Scheduler) onTick() error {
	now := s.clock.Now()
	if s.inFlight() >= uint64(s.cfg.ConcurrentRequests) {
		return nil
	}
	if now.Sub(s.lastDispatch) <= s.cfg.DownloadDelay {
		return nil
	}
	if req, ok := s.frontier.Pop(); ok {
		if err := s.downloader.Send(req); err != nil {
			if errors.Is(err, memory.ErrClosed) {
				return nil
			}
			return fmt.Errorf("dispatch %s: %w", req.URL, err)
		}
		s.dispatched++
		s.logger.Debug("request dispatched",
			zap.String("url", req.URL),
			zap.Int("depth", req.Depth),
			zap.Uint64("priority", req.Priority),
		)
	}
	// Reset the window and report state even when nothing was dispatched.
	s.lastDispatch = now
	s.publish()
	return nil
}

func (s *Scheduler) publish() {
	s.state.Publish(crawler.SchedulerState{QueueLen: s.frontier.Len()})
}
