package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/chatrelay/core/relay"
)

// Consumer reads the relay stream through a consumer group and implements
// the fan-out loop's consumer contract.
//
// A single Consumer serves one fan-out loop; entries are delivered in stream
// order and redelivered after a crash until acknowledged (at-least-once).
type Consumer struct {
	client    *redis.Client
	stream    string
	group     string
	consumer  string
	block     time.Duration
	count     int64
	ownsGroup bool
}

// NewConsumer creates the consumer group (starting at new entries) and
// returns a consumer bound to it. An existing group with the same name is
// reused. When cfg.Group is empty a unique per-process group is generated
// and destroyed again on Close.
func NewConsumer(ctx context.Context, client *redis.Client, cfg Config) (*Consumer, error) {
	if cfg.Stream == "" {
		return nil, ErrEmptyStreamName
	}

	group := cfg.Group
	ownsGroup := false
	if group == "" {
		group = "relay-" + uuid.NewString()
		ownsGroup = true
	}

	consumer := cfg.Consumer
	if consumer == "" {
		consumer = "fanout-" + uuid.NewString()
	}

	// "$" starts the group at the stream tail: live fan-out only, catch-up
	// goes through history retrieval.
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("%w: %w", ErrGroupCreateFailed, err)
	}

	block := cfg.PollInterval
	if block <= 0 {
		block = 2 * time.Second
	}
	count := cfg.FetchCount
	if count <= 0 {
		count = 64
	}

	return &Consumer{
		client:    client,
		stream:    cfg.Stream,
		group:     group,
		consumer:  consumer,
		block:     block,
		count:     count,
		ownsGroup: ownsGroup,
	}, nil
}

// Fetch blocks up to the poll interval for the next batch of entries.
// Returns (nil, nil) when the interval elapses with nothing to read, so the
// caller can check for shutdown and come back. Entries without a payload
// field keep a nil Payload; the fan-out loop acknowledges and skips them.
func (c *Consumer) Fetch(ctx context.Context) ([]relay.Entry, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.count,
		Block:    c.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var entries []relay.Entry
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			entry := relay.Entry{ID: msg.ID}
			if raw, ok := msg.Values[payloadField].(string); ok {
				entry.Payload = []byte(raw)
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Ack acknowledges processed entries so they are not redelivered.
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.client.XAck(ctx, c.stream, c.group, ids...).Err()
}

// Close removes the consumer from its group, and the group itself when it
// was generated for this process; a leaked group would accumulate the whole
// stream as pending entries.
func (c *Consumer) Close(ctx context.Context) error {
	if err := c.client.XGroupDelConsumer(ctx, c.stream, c.group, c.consumer).Err(); err != nil {
		return err
	}
	if c.ownsGroup {
		return c.client.XGroupDestroy(ctx, c.stream, c.group).Err()
	}
	return nil
}
