package middleware

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/rulecrawler/internal/config"
	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

func fetchRequest(url string) crawler.FetchRequest {
	return crawler.NewFetchRequest(crawler.Request{URL: url})
}

func TestUserAgentSetsHeader(t *testing.T) {
	t.Parallel()

	in := fetchRequest("https://example.com/")
	out := NewUserAgent("rulecrawler/1.0").ProcessRequest(in)
	require.Equal(t, "rulecrawler/1.0", out.Headers.Get("User-Agent"))
	require.Empty(t, in.Headers.Get("User-Agent"))

	out = NewUserAgent("").ProcessRequest(in)
	require.Empty(t, out.Headers.Get("User-Agent"))
}

func TestHeadersOverwrite(t *testing.T) {
	t.Parallel()

	in := fetchRequest("https://example.com/")
	in.Headers.Set("Accept", "text/plain")
	out := NewHeaders(map[string]string{"accept": "text/html", "X-Token": "abc"}).ProcessRequest(in)
	require.Equal(t, []string{"text/html"}, out.Headers.Values("Accept"))
	require.Equal(t, "abc", out.Headers.Get("X-Token"))
}

func TestProxyRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewProxy(nil, nil)
	require.ErrorIs(t, err, crawler.ErrConfig)

	_, err = NewProxy([]string{"not a url"}, nil)
	require.ErrorIs(t, err, crawler.ErrConfig)
}

func TestProxyPicksPerScheme(t *testing.T) {
	t.Parallel()

	p, err := NewProxy([]string{"http://p1:8080", "http://p2:8080"}, []string{"http://secure:3128"})
	require.NoError(t, err)

	base := crawler.ClientConfig{Timeout: time.Second}
	for range 20 {
		cfg := p.ProcessClient(base, crawler.Request{URL: "http://example.com/"})
		require.Contains(t, []string{"p1:8080", "p2:8080"}, cfg.Proxy.Host)
		require.Equal(t, time.Second, cfg.Timeout)
	}
	cfg := p.ProcessClient(base, crawler.Request{URL: "https://example.com/"})
	require.Equal(t, "secure:3128", cfg.Proxy.Host)

	onlyHTTP, err := NewProxy([]string{"http://p1:8080"}, nil)
	require.NoError(t, err)
	cfg = onlyHTTP.ProcessClient(base, crawler.Request{URL: "https://example.com/"})
	require.Nil(t, cfg.Proxy)
}

func TestDecompressSetsAcceptEncoding(t *testing.T) {
	t.Parallel()

	d := NewDecompress(nil)
	out := d.ProcessRequest(fetchRequest("https://example.com/"))
	require.Equal(t, "br, gzip", out.Headers.Get("Accept-Encoding"))

	in := fetchRequest("https://example.com/")
	in.Headers.Set("Accept-Encoding", "identity")
	require.Equal(t, "identity", d.ProcessRequest(in).Headers.Get("Accept-Encoding"))
}

func TestDecompressDecodesBodies(t *testing.T) {
	t.Parallel()

	const page = "<html><title>hi</title></html>"

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(page))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, err = bw.Write([]byte(page))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	d := NewDecompress(nil)
	tests := []struct {
		name     string
		encoding string
		body     string
		want     string
		header   bool
	}{
		{name: "gzip", encoding: "gzip", body: gz.String(), want: page},
		{name: "brotli", encoding: "br", body: br.String(), want: page},
		{name: "already decoded", encoding: "gzip", body: page, want: page, header: true},
		{name: "unknown", encoding: "zstd", body: "raw", want: "raw", header: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := crawler.Response{
				Headers: http.Header{"Content-Encoding": []string{tt.encoding}},
				Body:    tt.body,
			}
			got := d.ProcessResponse(resp)
			require.Equal(t, tt.want, got.Body)
			require.Equal(t, tt.header, got.Headers.Get("Content-Encoding") != "")
		})
	}
}

func TestPrintCropsBodyInLogsOnly(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	p := NewPrint(4, zap.New(core))

	resp := crawler.Response{Request: crawler.Request{URL: "https://example.com/"}, StatusCode: 200, Body: "abcdefgh"}
	require.Equal(t, resp, p.ProcessResponse(resp))

	entries := logs.FilterMessage("response").All()
	require.Len(t, entries, 1)
	require.Equal(t, "abcd...(4)", entries[0].ContextMap()["body"])
}

func TestBuildFollowsListOrder(t *testing.T) {
	t.Parallel()

	chain, err := Build(config.DownloaderConfig{
		MiddlewareList: []string{"headers", "user_agent", "decompress"},
		Middleware: config.MiddlewareConfig{
			UserAgent: config.UserAgentConfig{Value: "ua"},
			Headers:   map[string]string{"User-Agent": "overridden"},
		},
	}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, chain, 3)

	req := chain.Request(crawler.Request{URL: "https://example.com/"})
	require.Equal(t, "ua", req.Headers.Get("User-Agent"))
	require.Equal(t, "br, gzip", req.Headers.Get("Accept-Encoding"))

	_, err = Build(config.DownloaderConfig{MiddlewareList: []string{"proxy"}}, nil)
	require.ErrorIs(t, err, crawler.ErrConfig)

	_, err = Build(config.DownloaderConfig{MiddlewareList: []string{"nope"}}, nil)
	require.ErrorIs(t, err, crawler.ErrConfig)
}
