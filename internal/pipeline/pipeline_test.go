package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
	"github.com/JakeFAU/rulecrawler/internal/queue/memory"
)

type recordingSink struct {
	name string
	err  error

	mu      sync.Mutex
	records []crawler.Record
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, rec crawler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) Records() []crawler.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crawler.Record(nil), s.records...)
}

type closingSink struct {
	recordingSink
	closed bool
}

func (s *closingSink) Close(context.Context) error {
	s.closed = true
	return nil
}

func setField(key string, value any) Element {
	return ElementFunc(func(rec crawler.Record) crawler.Record {
		rec.Data[key] = value
		return rec
	})
}

func TestChainAppliesElementsInOrder(t *testing.T) {
	t.Parallel()

	chain := Chain{setField("a", 1), setField("a", 2), setField("b", 3)}
	out := chain.Process(crawler.Record{Data: map[string]any{}})
	require.Equal(t, map[string]any{"a": 2, "b": 3}, out.Data)

	in := crawler.Record{Data: map[string]any{"x": 1}}
	require.Equal(t, in, Chain(nil).Process(in))
}

func TestPipelineProcessesAndWrites(t *testing.T) {
	t.Parallel()

	inbox := memory.NewMailbox[crawler.Record]()
	sink := &recordingSink{name: "rec"}
	p, err := New(Config{}, Chain{setField("seen", true)}, inbox, sink, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	original := crawler.Record{Request: crawler.Request{URL: "http://x/"}, Data: map[string]any{"title": "t"}}
	require.NoError(t, inbox.Send(original))

	require.Eventually(t, func() bool { return p.Processed() == 1 }, time.Second, 5*time.Millisecond)
	got := sink.Records()
	require.Len(t, got, 1)
	require.Equal(t, map[string]any{"title": "t", "seen": true}, got[0].Data)
	require.NotContains(t, original.Data, "seen")

	cancel()
	require.NoError(t, <-done)
}

func TestPipelineCountsSinkFailures(t *testing.T) {
	t.Parallel()

	inbox := memory.NewMailbox[crawler.Record]()
	sink := &recordingSink{name: "broken", err: errors.New("disk full")}
	p, err := New(Config{}, nil, inbox, sink, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for range 3 {
		require.NoError(t, inbox.Send(crawler.Record{Data: map[string]any{}}))
	}
	require.Eventually(t, func() bool { return p.Failed() == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, uint64(3), p.Processed())

	cancel()
	require.NoError(t, <-done)
}

func TestPipelineFlushesQueuedRecordsOnShutdown(t *testing.T) {
	t.Parallel()

	inbox := memory.NewMailbox[crawler.Record]()
	sink := &recordingSink{name: "rec"}
	p, err := New(Config{DrainTimeout: time.Second}, nil, inbox, sink, nil)
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, inbox.Send(crawler.Record{Data: map[string]any{}}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	require.Len(t, sink.Records(), 5)
}

func TestMultiSinkWritesToAllAndJoinsErrors(t *testing.T) {
	t.Parallel()

	ok := &recordingSink{name: "ok"}
	bad := &recordingSink{name: "bad", err: errors.New("boom")}
	closer := &closingSink{recordingSink: recordingSink{name: "closer"}}
	multi := NewMultiSink(bad, ok, closer)

	err := multi.Write(context.Background(), crawler.Record{Data: map[string]any{}})
	require.ErrorContains(t, err, "bad: boom")
	require.Len(t, ok.Records(), 1)
	require.Len(t, closer.Records(), 1)
	require.Equal(t, "multi", multi.Name())

	require.NoError(t, multi.Close(context.Background()))
	require.True(t, closer.closed)
}

func TestNewPipelineRequiresSink(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, memory.NewMailbox[crawler.Record](), nil, nil)
	require.ErrorIs(t, err, crawler.ErrConfig)
}
