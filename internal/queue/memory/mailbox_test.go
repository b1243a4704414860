package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMailboxReceiveInOrder(t *testing.T) {
	t.Parallel()

	mb := NewMailbox[int]()
	for i := range 3 {
		require.NoError(t, mb.Send(i))
	}
	require.Equal(t, 3, mb.Len())
	for i := range 3 {
		got, err := mb.Receive(context.Background())
		require.NoError(t, err)
		require.Equal(t, i, got)
	}
	require.Zero(t, mb.Len())
}

func TestMailboxReceiveWaitsForSend(t *testing.T) {
	t.Parallel()

	mb := NewMailbox[string]()
	result := make(chan string, 1)
	go func() {
		v, err := mb.Receive(context.Background())
		if err == nil {
			result <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, mb.Send("hello"))
	select {
	case got := <-result:
		require.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("receive did not return")
	}
}

func TestMailboxDrainAfterReady(t *testing.T) {
	t.Parallel()

	mb := NewMailbox[int]()
	require.NoError(t, mb.Send(1))
	require.NoError(t, mb.Send(2))

	select {
	case <-mb.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready did not fire")
	}
	require.Equal(t, []int{1, 2}, mb.Drain())
	require.Nil(t, mb.Drain())
}

func TestMailboxConcurrentSenders(t *testing.T) {
	t.Parallel()

	mb := NewMailbox[int]()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				_ = mb.Send(n*100 + j)
			}
		}(i)
	}
	wg.Wait()
	require.Len(t, mb.Drain(), 1000)
}

func TestMailboxCancelationAndClose(t *testing.T) {
	t.Parallel()

	mb := NewMailbox[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mb.Receive(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, mb.Send(7))
	mb.Close()
	mb.Close()
	require.ErrorIs(t, mb.Send(8), ErrClosed)
	require.ErrorIs(t, mb.Consume(context.Background(), 9), ErrClosed)

	got, err := mb.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, got)
	_, err = mb.Receive(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
