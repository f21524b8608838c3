// Package queue implements the ordered relay queue on a Redis stream.
//
// Producers append message payloads with XADD; each relay instance consumes
// the stream through its own consumer group with XREADGROUP, acknowledging
// entries after broadcast. The stream preserves append order, and consumer
// groups give at-least-once delivery per instance.
package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// payloadField is the stream entry field carrying the serialized message.
const payloadField = "payload"

// Publisher appends message payloads to the relay stream.
// Safe for concurrent use by multiple ingress paths.
type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher creates a publisher for the configured stream.
func NewPublisher(client *redis.Client, cfg Config) (*Publisher, error) {
	if cfg.Stream == "" {
		return nil, ErrEmptyStreamName
	}
	return &Publisher{client: client, stream: cfg.Stream}, nil
}

// Publish appends one payload to the stream. Redis assigns the entry ID, so
// append order is the order publishers reach the server; a single producer's
// messages keep their send order.
func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
