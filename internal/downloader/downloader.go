// Package downloader executes admitted requests concurrently and reports its
// saturation back to the scheduler.
//
// Each request is prepared by the middleware chain, counted, and then fetched
// on its own goroutine. Outcomes come back to the downloader goroutine, which
// is the only writer of the total/success/error counters; every counter change
// is broadcast as a full DownloaderState snapshot. Failed fetches are counted
// and dropped, never retried.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/progress"
	"github.com/JakeFAU/rulecrawler/internal/queue/memory"
	"github.com/JakeFAU/rulecrawler/internal/telemetry"
)

const defaultDrainTimeout = 5 * time.Second

// ResponseSink receives successful responses. Send must not block.
type ResponseSink interface {
	Send(resp crawler.Response) error
}

// Config controls the downloader.
//   - Client: starting transport config handed to the middleware chain.
//   - DrainTimeout: how long Run waits for in-flight fetches after ctx ends (default 5s).
type Config struct {
	Client       crawler.ClientConfig
	DrainTimeout time.Duration
}

type outcome struct {
	req  crawler.Request
	resp crawler.Response
	err  error
	dur  time.Duration
}

// Downloader is an actor; counters are only touched by the goroutine running Run.
type Downloader struct {
	cfg       Config
	transport crawler.Transport
	chain     Chain
	inbox     *memory.Mailbox[crawler.Request]
	responses ResponseSink
	state     *progress.Broadcaster[crawler.DownloaderState]
	outcomes  *memory.Mailbox[outcome]
	logger    *zap.Logger
	counters  crawler.DownloaderState
	inflight  sync.WaitGroup
}

// New builds a Downloader reading requests from inbox and forwarding
// responses to responses.
func New(
	cfg Config,
	transport crawler.Transport,
	chain Chain,
	inbox *memory.Mailbox[crawler.Request],
	responses ResponseSink,
	state *progress.Broadcaster[crawler.DownloaderState],
	logger *zap.Logger,
) (*Downloader, error) {
	if transport == nil || inbox == nil || responses == nil {
		return nil, fmt.Errorf("%w: downloader dependencies missing", crawler.ErrConfig)
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		cfg:       cfg,
		transport: transport,
		chain:     chain,
		inbox:     inbox,
		responses: responses,
		state:     state,
		outcomes:  memory.NewMailbox[outcome](),
		logger:    logger.Named("downloader"),
	}, nil
}

// Run starts fetches for incoming requests and records their outcomes until
// ctx ends. Fetches already started are not canceled; Run waits up to
// DrainTimeout for them before returning.
func (d *Downloader) Run(ctx context.Context) error {
	// Fetches outlive the run context; the transport timeout bounds them.
	fetchCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case <-d.inbox.Ready():
			for _, req := range d.inbox.Drain() {
				d.start(fetchCtx, req)
			}
		case <-d.outcomes.Ready():
			for _, o := range d.outcomes.Drain() {
				d.finish(o)
			}
		}
	}
}

// State returns the current counters. It must only be called from tests once
// Run has returned.
func (d *Downloader) State() crawler.DownloaderState {
	return d.counters
}

func (d *Downloader) start(ctx context.Context, req crawler.Request) {
	client := d.chain.Client(d.cfg.Client, req)
	fr := d.chain.Request(req)

	d.counters.Total++
	d.publish()

	d.inflight.Add(1)
	go d.fetch(ctx, client, fr)
}

func (d *Downloader) fetch(ctx context.Context, client crawler.ClientConfig, fr crawler.FetchRequest) {
	defer d.inflight.Done()
	ctx, span := telemetry.Tracer().Start(ctx, "downloader.fetch")
	span.SetAttributes(
		attribute.String("crawl.url", fr.URL),
		attribute.Int("crawl.depth", fr.Request.Depth),
	)
	defer span.End()

	start := time.Now()
	o := outcome{req: fr.Request}
	func() {
		defer func() {
			if r := recover(); r != nil {
				o.err = fmt.Errorf("%w: fetch panicked: %v", crawler.ErrTransport, r)
			}
		}()
		resp, err := d.transport.Fetch(ctx, client, fr)
		if err != nil {
			o.err = err
			return
		}
		resp.Request = fr.Request
		o.resp = d.chain.Response(resp)
	}()
	o.dur = time.Since(start)

	if o.err != nil {
		span.RecordError(o.err)
		span.SetStatus(codes.Error, o.err.Error())
	} else {
		span.SetAttributes(attribute.Int("http.status_code", o.resp.StatusCode))
	}
	if err := d.outcomes.Send(o); err != nil {
		d.logger.Warn("fetch outcome lost", zap.String("url", fr.URL), zap.Error(err))
	}
}

func (d *Downloader) finish(o outcome) {
	if o.err != nil {
		d.counters.Error++
		telemetry.ObserveFetch(o.req.URL, errorClass(o.err), 0, o.dur)
		d.logger.Warn("fetch failed",
			zap.String("url", o.req.URL),
			zap.Int("depth", o.req.Depth),
			zap.String("class", errorClass(o.err)),
			zap.Error(o.err),
		)
		d.publish()
		return
	}
	if err := d.responses.Send(o.resp); err != nil {
		d.logger.Warn("response dropped", zap.String("url", o.req.URL), zap.Error(err))
	}
	d.counters.Success++
	telemetry.ObserveFetch(o.req.URL, "success", len(o.resp.Body), o.dur)
	d.logger.Debug("fetch succeeded",
		zap.String("url", o.req.URL),
		zap.Int("status", o.resp.StatusCode),
		zap.Int("bytes", len(o.resp.Body)),
		zap.Duration("dur", o.dur),
	)
	d.publish()
}

func (d *Downloader) drain() {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	timer := time.NewTimer(d.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		d.logger.Warn("downloader stopped with fetches in flight", zap.Uint64("in_flight", d.counters.InFlight()))
		return
	}
	for _, o := range d.outcomes.Drain() {
		d.finish(o)
	}
}

func (d *Downloader) publish() {
	d.state.Publish(d.counters)
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, crawler.ErrRead):
		return "read_error"
	case errors.Is(err, crawler.ErrTransport):
		return "transport_error"
	default:
		return "error"
	}
}
