// Package memory provides the in-process mailboxes that carry messages between
// crawl stages.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when sending to or receiving from a closed mailbox.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO inbox. Senders never block, so stages that feed
// each other in a cycle cannot deadlock. A mailbox is safe for concurrent use
// by any number of senders; receivers are expected to be a single goroutine.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	ready  chan struct{}
	closed bool
}

// NewMailbox constructs an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Send appends v to the mailbox.
func (m *Mailbox[T]) Send(v T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.items = append(m.items, v)
	m.mu.Unlock()
	m.signal()
	return nil
}

// Consume lets a mailbox act as a broadcast listener: each snapshot is queued
// for the owning stage.
func (m *Mailbox[T]) Consume(_ context.Context, v T) error {
	if err := m.Send(v); err != nil {
		return fmt.Errorf("deliver to mailbox: %w", err)
	}
	return nil
}

// Ready fires after one or more sends. Call Drain to collect the messages.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Drain removes and returns everything queued, in send order.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil
	}
	out := m.items
	m.items = nil
	return out
}

// Receive pops the oldest message, waiting until one arrives, the mailbox is
// closed and empty, or ctx ends.
func (m *Mailbox[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			v := m.items[0]
			m.items[0] = zero
			m.items = m.items[1:]
			m.mu.Unlock()
			return v, nil
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return zero, ErrClosed
		}
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("receive canceled: %w", ctx.Err())
		case <-m.ready:
		}
	}
}

// Len reports queued messages.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close rejects further sends. Messages already queued can still be received.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *Mailbox[T]) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
