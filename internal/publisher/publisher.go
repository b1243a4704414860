// Package publisher defines the message publishing contract used by the
// pubsub record sink. Implementations live in the subpackages.
package publisher

import "context"

// Publisher sends one serialized payload and returns the broker's message ID.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
	Close() error
}
