package progress

import "context"

// Listener consumes state snapshots. Implementations must honor ctx deadlines.
// Each listener is invoked from a single goroutine, so Consume calls for one
// listener never overlap.
type Listener[T any] interface {
	Consume(ctx context.Context, snapshot T) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc[T any] func(ctx context.Context, snapshot T) error

// Consume calls f.
func (f ListenerFunc[T]) Consume(ctx context.Context, snapshot T) error {
	return f(ctx, snapshot)
}

// Publisher is the write side of a Broadcaster, so components can stay
// agnostic about how snapshots are delivered.
type Publisher[T any] interface {
	Publish(snapshot T)
}
