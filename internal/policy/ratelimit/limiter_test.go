package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

func TestLimiterWaitSpacesRequestsPerDomain(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://example.com/a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.com/b"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// A different host has its own bucket.
	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://other.example/"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, 2, l.Domains())
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.example/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://slow.example/"))
}

func TestLimiterUnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for range 100 {
		require.NoError(t, l.Wait(context.Background(), "not a url"))
	}
	require.Equal(t, 1, l.Domains())
}

func TestTransportWaitsBeforeFetching(t *testing.T) {
	t.Parallel()

	calls := 0
	next := crawler.TransportFunc(func(_ context.Context, _ crawler.ClientConfig, req crawler.FetchRequest) (crawler.Response, error) {
		calls++
		return crawler.Response{Request: req.Request, StatusCode: 200}, nil
	})
	tr := Wrap(next, New(Config{DefaultRPS: 0.1, DefaultBurst: 1}))
	req := crawler.NewFetchRequest(crawler.Request{URL: "https://example.com/"})

	_, err := tr.Fetch(context.Background(), crawler.ClientConfig{}, req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Fetch(ctx, crawler.ClientConfig{}, req)
	require.ErrorIs(t, err, crawler.ErrTransport)
	require.Equal(t, 1, calls)
}
