package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

type pageTransport struct {
	mu    sync.Mutex
	pages map[string]string
	seen  []crawler.FetchRequest
}

func (p *pageTransport) Fetch(_ context.Context, _ crawler.ClientConfig, req crawler.FetchRequest) (crawler.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, req)
	body, ok := p.pages[req.URL]
	if !ok {
		return crawler.Response{StatusCode: http.StatusNotFound}, nil
	}
	return crawler.Response{StatusCode: http.StatusOK, Body: body}, nil
}

func (p *pageTransport) Seen() []crawler.FetchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]crawler.FetchRequest(nil), p.seen...)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Spider: config.SpiderConfig{
			Name:      "wiki",
			Version:   "test",
			StartURLs: []string{"http://site.test/wiki/Start"},
			Rules: []config.RuleConfig{
				{Allow: []string{"/wiki/"}, Deny: []string{":"}, Action: "filter_urls"},
				{Allow: []string{"/wiki/"}, Action: "pattern", Field: "title", CSS: "h1", Transform: "first"},
			},
		},
		Scheduler: config.SchedulerConfig{
			Strategy:           "breadth_first",
			DownloadDelayMs:    5,
			ConcurrentRequests: 2,
		},
		Downloader: config.DownloaderConfig{
			Transport:      "colly",
			TimeoutSeconds: 5,
			MiddlewareList: []string{"user_agent"},
			Middleware:     config.MiddlewareConfig{UserAgent: config.UserAgentConfig{Value: "test-agent"}},
		},
		Pipeline: config.PipelineConfig{
			ElementList: []string{"timestamping"},
			Element: config.ElementConfig{Timestamping: config.TimestampingConfig{
				Offset: "utc", Format: "Rfc3339", Field: "timestamp",
			}},
			Sinks: []string{"memory"},
		},
		Telemetry: config.TelemetryConfig{ServiceName: "rulecrawler-test", SampleRatio: 1},
	}
}

func TestAppCrawlsWithConfiguredStack(t *testing.T) {
	t.Parallel()

	transport := &pageTransport{pages: map[string]string{
		"http://site.test/wiki/Start": `<h1>Start</h1><a href="/wiki/Next">n</a><a href="/wiki/Talk:Start">t</a>`,
		"http://site.test/wiki/Next":  `<h1>Next</h1>`,
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app, err := Build(ctx, testConfig(t), zaptest.NewLogger(t),
		WithTransport(transport),
		WithIdleTimeout(300*time.Millisecond),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	require.NoError(t, app.Run(ctx))
	require.NoError(t, ctx.Err())

	seen := transport.Seen()
	require.Len(t, seen, 2)
	for _, fr := range seen {
		require.Equal(t, "test-agent", fr.Headers.Get("User-Agent"))
	}

	msgs := app.Sinks().Memory.Messages()
	require.Len(t, msgs, 2)
	titles := map[string]bool{}
	for _, m := range msgs {
		var stored crawler.StoredRecord
		require.NoError(t, json.Unmarshal(m.Data, &stored))
		require.NotEmpty(t, stored.ID)
		require.Contains(t, stored.Data, "timestamp")
		titles[stored.Data["title"].(string)] = true
	}
	require.Equal(t, map[string]bool{"Start": true, "Next": true}, titles)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"spider":"wiki"`)
	require.Equal(t, uint64(2), app.State().Records)
}

func TestBuildOverridesSeeds(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), testConfig(t), nil,
		WithTransport(&pageTransport{}),
		WithSeeds("http://other.test/wiki/A"),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	require.Equal(t, []string{"http://other.test/wiki/A"}, app.spider.StartURLs)
	require.Len(t, app.spider.Rules, 2)
}

func TestBuildRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Spider.Rules = append(cfg.Spider.Rules, config.RuleConfig{Action: "scrape"})
	_, err := Build(context.Background(), cfg, nil, WithRegisterer(prometheus.NewRegistry()))
	require.ErrorIs(t, err, crawler.ErrConfig)

	cfg = testConfig(t)
	cfg.Scheduler.ConcurrentRequests = 0
	_, err = Build(context.Background(), cfg, nil)
	require.ErrorIs(t, err, crawler.ErrConfig)

	_, err = Build(context.Background(), testConfig(t), nil,
		WithSeeds("ftp://nope"),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.ErrorIs(t, err, crawler.ErrConfig)
}
