// Package collyfetcher implements crawler.Transport using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

const (
	defaultTimeout = 15 * time.Second
	outcomeKey     = "rulecrawler.outcome"
)

// Config controls collector behavior shared by every call.
type Config struct {
	UserAgent string
	Logger    *zap.Logger
}

// Fetcher implements crawler.Transport using Colly collectors. One collector is
// kept per distinct client configuration so robots.txt answers and pooled
// connections are reused across calls.
type Fetcher struct {
	cfg    Config
	base   *http.Transport
	logger *zap.Logger

	mu         sync.Mutex
	collectors map[collectorKey]*colly.Collector
}

type collectorKey struct {
	timeout  time.Duration
	proxy    string
	robots   bool
	maxBytes int64
}

type outcome struct {
	resp crawler.Response
	err  error
	seen bool
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:        cfg,
		base:       newHTTPTransport(),
		logger:     logger.Named("colly"),
		collectors: make(map[collectorKey]*colly.Collector),
	}
}

// Fetch executes a single request. Non-2xx statuses are returned as responses;
// only failures to obtain a response are errors.
func (f *Fetcher) Fetch(ctx context.Context, client crawler.ClientConfig, req crawler.FetchRequest) (crawler.Response, error) {
	collector := f.collectorFor(client)

	out := &outcome{}
	cctx := colly.NewContext()
	cctx.Put(outcomeKey, out)

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	headers := req.Headers.Clone()
	if headers == nil {
		headers = make(http.Header)
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, req.URL, nil, cctx, headers)
	}()

	select {
	case <-ctx.Done():
		return crawler.Response{}, fmt.Errorf("%w: colly fetch canceled: %w", crawler.ErrTransport, ctx.Err())
	case err := <-done:
		if err != nil {
			return crawler.Response{}, classify(err)
		}
		if out.err != nil {
			return crawler.Response{}, classify(out.err)
		}
		if !out.seen {
			return crawler.Response{}, fmt.Errorf("%w: no response for %s", crawler.ErrTransport, req.URL)
		}
		out.resp.Request = req.Request
		return out.resp, nil
	}
}

func (f *Fetcher) collectorFor(client crawler.ClientConfig) *colly.Collector {
	key := collectorKey{
		timeout:  client.Timeout,
		robots:   client.RespectRobots,
		maxBytes: client.MaxBodyBytes,
	}
	if key.timeout <= 0 {
		key.timeout = defaultTimeout
	}
	if client.Proxy != nil {
		key.proxy = client.Proxy.String()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.collectors[key]; ok {
		return c
	}

	opts := []colly.CollectorOption{
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	}
	if key.maxBytes > 0 {
		opts = append(opts, colly.MaxBodySize(int(key.maxBytes)))
	}
	c := colly.NewCollector(opts...)
	if f.cfg.UserAgent != "" {
		c.UserAgent = f.cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !key.robots
	c.SetRequestTimeout(key.timeout)

	var rt http.RoundTripper = f.base
	if client.Proxy != nil {
		proxied := f.base.Clone()
		proxied.Proxy = http.ProxyURL(client.Proxy)
		rt = proxied
	}
	if key.robots {
		rt = &robotsAwareTransport{base: rt, logger: f.logger}
	}
	c.WithTransport(rt)
	configureHooks(c)

	f.collectors[key] = c
	return c
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

func configureHooks(hooks collectorHooks) {
	hooks.OnResponse(func(r *colly.Response) {
		out, ok := r.Ctx.GetAny(outcomeKey).(*outcome)
		if !ok {
			return
		}
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		out.resp = crawler.Response{
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       string(r.Body),
			FetchedAt:  time.Now().UTC(),
		}
		out.seen = true
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		if out, ok := r.Ctx.GetAny(outcomeKey).(*outcome); ok {
			out.err = err
		}
	})
}

// classify maps collector failures onto crawler error kinds.
func classify(err error) error {
	if errors.Is(err, crawler.ErrTransport) || errors.Is(err, crawler.ErrRead) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, colly.ErrRobotsTxtBlocked) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", crawler.ErrTransport, err)
	}
	if errors.Is(err, colly.ErrMissingURL) || errors.Is(err, colly.ErrNoURLFiltersMatch) {
		return fmt.Errorf("%w: %w", crawler.ErrTransport, err)
	}
	return fmt.Errorf("%w: %w", crawler.ErrRead, err)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
