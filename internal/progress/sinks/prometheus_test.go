package sinks

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

func TestPrometheusSinkSetsGauges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Downloader().Consume(ctx, crawler.DownloaderState{Total: 5, Success: 3, Error: 1}))
	require.NoError(t, sink.Scheduler().Consume(ctx, crawler.SchedulerState{QueueLen: 7}))

	require.InDelta(t, 5, testutil.ToFloat64(sink.fetches.WithLabelValues("total")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(sink.fetches.WithLabelValues("success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.fetches.WithLabelValues("error")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.inFlight), 0)
	require.InDelta(t, 7, testutil.ToFloat64(sink.queueLen), 0)

	require.NoError(t, sink.Downloader().Consume(ctx, crawler.DownloaderState{Total: 5, Success: 4, Error: 1}))
	require.InDelta(t, 0, testutil.ToFloat64(sink.inFlight), 0)
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
