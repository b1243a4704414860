// Package server assembles a crawl process from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/api"
	"github.com/JakeFAU/rulecrawler/internal/clock/system"
	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/downloader"
	"github.com/JakeFAU/rulecrawler/internal/downloader/middleware"
	"github.com/JakeFAU/rulecrawler/internal/engine"
	"github.com/JakeFAU/rulecrawler/internal/hash/sha256"
	"github.com/JakeFAU/rulecrawler/internal/id/uuid"
	"github.com/JakeFAU/rulecrawler/internal/pipeline"
	"github.com/JakeFAU/rulecrawler/internal/pipeline/elements"
	"github.com/JakeFAU/rulecrawler/internal/pipeline/sinks"
	"github.com/JakeFAU/rulecrawler/internal/scheduler"
	"github.com/JakeFAU/rulecrawler/internal/spider"
	"github.com/JakeFAU/rulecrawler/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App contains the process's dependencies.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	spider     spider.Spider
	engine     *engine.Engine
	sinks      *sinks.Set
	transports *transportStack
	apiServer  *api.Server
}

type buildOptions struct {
	seeds       []string
	idleTimeout *time.Duration
	transport   crawler.Transport
	registerer  prometheus.Registerer
}

// Option customizes Build.
type Option func(*buildOptions)

// WithSeeds replaces the spider's start URLs.
func WithSeeds(urls ...string) Option {
	return func(o *buildOptions) { o.seeds = urls }
}

// WithIdleTimeout overrides scheduler.idle_timeout_seconds with a finer
// duration.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *buildOptions) { o.idleTimeout = &d }
}

// WithTransport replaces the configured transport stack. The rate limiter is
// still applied on top.
func WithTransport(t crawler.Transport) Option {
	return func(o *buildOptions) { o.transport = t }
}

// WithRegisterer sets where progress gauges are registered. The default is
// the process-wide Prometheus registry served on /metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) { o.registerer = reg }
}

// Build creates the application's dependencies. On error everything built so
// far is released.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (app *App, err error) {
	bo := buildOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&bo)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", crawler.ErrConfig, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idleTimeout := cfg.IdleTimeout()
	if bo.idleTimeout != nil {
		idleTimeout = *bo.idleTimeout
	}

	app = &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			_ = app.Close(closeCtx)
			app = nil
		}
	}()

	if _, _, err := telemetry.InitTelemetry(ctx, cfg.Telemetry); err != nil {
		return app, fmt.Errorf("telemetry init failed: %w", err)
	}

	app.spider, err = spider.FromConfig(cfg.Spider)
	if err != nil {
		return app, fmt.Errorf("spider: %w", err)
	}
	if len(bo.seeds) > 0 {
		app.spider, err = withSeeds(app.spider, bo.seeds)
		if err != nil {
			return app, err
		}
	}
	logger.Info("spider loaded",
		zap.String("name", app.spider.Name),
		zap.String("version", app.spider.Version),
		zap.Int("start_urls", len(app.spider.StartURLs)),
		zap.Int("rules", len(app.spider.Rules)),
	)

	clock := system.New()
	app.transports, err = buildTransport(cfg, bo.transport, logger)
	if err != nil {
		return app, err
	}
	chain, err := middleware.Build(cfg.Downloader, logger.Named("middleware"))
	if err != nil {
		return app, fmt.Errorf("middleware: %w", err)
	}
	elems, err := elements.Build(cfg.Pipeline, clock, logger.Named("elements"))
	if err != nil {
		return app, fmt.Errorf("pipeline elements: %w", err)
	}
	app.sinks, err = sinks.Build(ctx, cfg, sinks.Deps{
		Logger: logger.Named("sink"),
		Clock:  clock,
		IDs:    uuid.New(),
		Hasher: sha256.New(),
	})
	if err != nil {
		return app, fmt.Errorf("record sinks: %w", err)
	}

	app.engine, err = engine.New(engine.Options{
		Spider: app.spider,
		Scheduler: scheduler.Config{
			Strategy:           cfg.Strategy(),
			DownloadDelay:      cfg.DownloadDelay(),
			ConcurrentRequests: cfg.Scheduler.ConcurrentRequests,
		},
		Downloader: downloader.Config{
			Client: crawler.ClientConfig{
				Timeout:       cfg.FetchTimeout(),
				RespectRobots: cfg.Downloader.RespectRobots,
				MaxBodyBytes:  int64(cfg.Downloader.MaxBodyBytes),
			},
		},
		Pipeline:       pipeline.Config{},
		Transport:      app.transports.transport,
		Middleware:     chain,
		Elements:       elems,
		Sink:           app.sinks,
		Clock:          clock,
		Logger:         logger,
		IdleTimeout:    idleTimeout,
		ListenerBuffer: cfg.Scheduler.ListenerBuffer,
		Registerer:     bo.registerer,
	})
	if err != nil {
		return app, fmt.Errorf("engine: %w", err)
	}
	app.apiServer = api.NewServer(app.engine, logger.Named("api"))
	return app, nil
}

func withSeeds(s spider.Spider, seeds []string) (spider.Spider, error) {
	b := spider.NewBuilder(s.Name, s.Version).StartURLs(seeds...)
	for _, r := range s.Rules {
		b.Rule(r.Condition, r.Action)
	}
	out, err := b.Build()
	if err != nil {
		return spider.Spider{}, fmt.Errorf("seeds: %w", err)
	}
	return out, nil
}

// Run crawls until the context ends, SIGINT/SIGTERM arrives or, with an idle
// timeout, the crawl goes idle. The status server runs alongside when enabled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if a.cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", zap.Error(err))
				stop()
			}
		}()
	}

	err := a.engine.Run(ctx, nil)
	a.logger.Info("crawl ended", zap.Error(err))

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
	}
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	return nil
}

// Handler exposes the status API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// State returns the engine's latest state.
func (a *App) State() engine.State {
	return a.engine.State()
}

// Sinks returns the record sinks, including any in-process backends.
func (a *App) Sinks() *sinks.Set {
	return a.sinks
}

// Close releases the sinks, browsers and telemetry providers.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.sinks != nil {
		if err := a.sinks.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.transports != nil {
		a.transports.close()
	}
	if err := telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	// Sync fails on terminals; nothing to do about it.
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
