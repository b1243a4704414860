// Package engine assembles the crawl actors (scheduler, downloader, parser and
// pipeline), connects them with mailboxes and broadcasters, and supervises
// them for the lifetime of one crawl.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/downloader"
	"github.com/JakeFAU/rulecrawler/internal/parser"
	"github.com/JakeFAU/rulecrawler/internal/pipeline"
	"github.com/JakeFAU/rulecrawler/internal/progress"
	"github.com/JakeFAU/rulecrawler/internal/progress/sinks"
	"github.com/JakeFAU/rulecrawler/internal/queue/memory"
	"github.com/JakeFAU/rulecrawler/internal/scheduler"
	"github.com/JakeFAU/rulecrawler/internal/spider"
)

const (
	defaultCloseTimeout = 5 * time.Second
	minIdlePoll         = 10 * time.Millisecond
	maxIdlePoll         = time.Second
)

// ErrAlreadyRun is returned when Run is called more than once.
var ErrAlreadyRun = errors.New("engine already run")

// Options wires an Engine.
//   - Spider: rules and default seeds.
//   - Transport: performs fetches; decorate it before passing it in.
//   - Middleware and Elements: the downloader and pipeline chains, in order.
//   - Sink: where processed records go.
//   - IdleTimeout: stop after the crawl has been idle this long. Zero disables it.
//   - Registerer: when set, progress gauges are registered on it.
type Options struct {
	Spider         spider.Spider
	Scheduler      scheduler.Config
	Downloader     downloader.Config
	Pipeline       pipeline.Config
	Transport      crawler.Transport
	Middleware     downloader.Chain
	Elements       pipeline.Chain
	Sink           pipeline.Sink
	Clock          crawler.Clock
	Logger         *zap.Logger
	IdleTimeout    time.Duration
	ListenerBuffer int
	Registerer     prometheus.Registerer

	// SchedulerOptions are passed through to scheduler.New.
	SchedulerOptions []scheduler.Option
}

// State is what the engine reports about a running crawl.
type State struct {
	Spider       string                  `json:"spider"`
	Downloader   crawler.DownloaderState `json:"downloader"`
	Scheduler    crawler.SchedulerState  `json:"scheduler"`
	Parsed       uint64                  `json:"parsed"`
	Records      uint64                  `json:"records"`
	RecordErrors uint64                  `json:"record_errors"`
	UpdatedAt    time.Time               `json:"updated_at"`
	Running      bool                    `json:"running"`
}

// Engine owns one crawl.
type Engine struct {
	opts   Options
	logger *zap.Logger

	batches   *memory.Mailbox[[]crawler.Request]
	feedback  *memory.Mailbox[crawler.DownloaderState]
	requests  *memory.Mailbox[crawler.Request]
	responses *memory.Mailbox[crawler.Response]
	records   *memory.Mailbox[crawler.Record]

	schedState *progress.Broadcaster[crawler.SchedulerState]
	dlState    *progress.Broadcaster[crawler.DownloaderState]
	stats      *sinks.Stats

	scheduler  *scheduler.Scheduler
	downloader *downloader.Downloader
	parser     *parser.Parser
	pipeline   *pipeline.Pipeline

	started atomic.Bool
	running atomic.Bool
}

// New builds every mailbox and actor and registers the state listeners.
func New(opts Options) (*Engine, error) {
	if opts.Transport == nil || opts.Sink == nil || opts.Clock == nil {
		return nil, fmt.Errorf("%w: engine needs a transport, a sink and a clock", crawler.ErrConfig)
	}
	if opts.IdleTimeout < 0 {
		return nil, fmt.Errorf("%w: idle timeout must be >= 0", crawler.ErrConfig)
	}
	// The queue length is only reported on ticks, so a shorter idle window
	// could fire before the first dispatch.
	if opts.IdleTimeout > 0 && opts.IdleTimeout <= 2*opts.Scheduler.DownloadDelay {
		return nil, fmt.Errorf("%w: idle timeout must exceed twice the download delay", crawler.ErrConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		opts:      opts,
		logger:    logger.Named("engine").With(zap.String("spider", opts.Spider.Name)),
		batches:   memory.NewMailbox[[]crawler.Request](),
		feedback:  memory.NewMailbox[crawler.DownloaderState](),
		requests:  memory.NewMailbox[crawler.Request](),
		responses: memory.NewMailbox[crawler.Response](),
		records:   memory.NewMailbox[crawler.Record](),
		stats:     sinks.NewStats(opts.Clock, logger.Named("stats")),
	}
	e.schedState = progress.New[crawler.SchedulerState](progress.Config{
		Name:       "scheduler",
		BufferSize: opts.ListenerBuffer,
		Logger:     logger,
	})
	e.dlState = progress.New[crawler.DownloaderState](progress.Config{
		Name:       "downloader",
		BufferSize: opts.ListenerBuffer,
		Logger:     logger,
	})
	e.dlState.Register(e.feedback)
	e.dlState.Register(e.stats.Downloader())
	e.schedState.Register(e.stats.Scheduler())
	if opts.Registerer != nil {
		prom, err := sinks.NewPrometheusSink(opts.Registerer)
		if err != nil {
			return nil, err
		}
		e.dlState.Register(prom.Downloader())
		e.schedState.Register(prom.Scheduler())
	}

	var err error
	if e.scheduler, err = scheduler.New(opts.Scheduler, opts.Clock, e.batches, e.feedback, e.requests, e.schedState, logger, opts.SchedulerOptions...); err != nil {
		return nil, err
	}
	if e.downloader, err = downloader.New(opts.Downloader, opts.Transport, opts.Middleware, e.requests, e.responses, e.dlState, logger); err != nil {
		return nil, err
	}
	engine := parser.NewEngine(opts.Scheduler.Strategy, opts.Spider.Rules, logger)
	if e.parser, err = parser.New(engine, e.responses, e.batches, e.records, logger); err != nil {
		return nil, err
	}
	if e.pipeline, err = pipeline.New(opts.Pipeline, opts.Elements, e.records, opts.Sink, logger); err != nil {
		return nil, err
	}
	return e, nil
}

// Run pushes the seeds as one batch and runs every actor until ctx ends or,
// with an idle timeout, until the crawl goes idle. When seeds is empty the
// spider's start URLs are used. Broadcasters are closed before Run returns.
func (e *Engine) Run(ctx context.Context, seeds []crawler.Request) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	if len(seeds) == 0 {
		seeds = e.opts.Spider.Seeds(e.opts.Scheduler.Strategy)
	}
	if len(seeds) == 0 {
		return fmt.Errorf("%w: no seeds to crawl", crawler.ErrConfig)
	}
	if err := e.batches.Send(seeds); err != nil {
		return fmt.Errorf("push seeds: %w", err)
	}
	e.logger.Info("crawl started", zap.Int("seeds", len(seeds)), zap.Duration("idle_timeout", e.opts.IdleTimeout))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.running.Store(true)
	defer e.running.Store(false)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return e.scheduler.Run(gctx) })
	g.Go(func() error { return e.downloader.Run(gctx) })
	g.Go(func() error { return e.parser.Run(gctx) })
	g.Go(func() error { return e.pipeline.Run(gctx) })
	if e.opts.IdleTimeout > 0 {
		g.Go(func() error {
			if e.watchIdle(gctx) {
				e.logger.Info("crawl idle, stopping", zap.Duration("idle_timeout", e.opts.IdleTimeout))
				cancel()
			}
			return nil
		})
	}
	runErr := g.Wait()

	closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), defaultCloseTimeout)
	defer closeCancel()
	closeErr := errors.Join(e.dlState.Close(closeCtx), e.schedState.Close(closeCtx))

	st := e.State()
	e.logger.Info("crawl finished",
		zap.Uint64("fetched", st.Downloader.Success),
		zap.Uint64("failed", st.Downloader.Error),
		zap.Uint64("records", st.Records),
	)
	return errors.Join(runErr, closeErr)
}

// State returns the latest snapshots and counters.
func (e *Engine) State() State {
	snap := e.stats.Snapshot()
	return State{
		Spider:       e.opts.Spider.Name,
		Downloader:   snap.Downloader,
		Scheduler:    snap.Scheduler,
		Parsed:       e.parser.Processed(),
		Records:      e.pipeline.Processed(),
		RecordErrors: e.pipeline.Failed(),
		UpdatedAt:    snap.UpdatedAt,
		Running:      e.running.Load(),
	}
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}
