package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/chatrelay/core/logger"
)

// MessageStore persists messages. Append must be durable before it returns:
// ingress publishes only after a successful append.
type MessageStore interface {
	Append(ctx context.Context, msg Message) error
}

// Publisher appends a serialized message to the relay queue.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Ingress is the per-connection message path: parse and validate the raw
// frame, construct the Message, persist it, then publish it for fan-out.
// Safe for concurrent use by all connections.
type Ingress struct {
	store     MessageStore
	publisher Publisher
	log       *slog.Logger

	publishAttempts      int
	publishRetryInterval time.Duration
}

// NewIngress wires the ingress path. cfg zero-values fall back to defaults.
func NewIngress(store MessageStore, publisher Publisher, cfg Config, log *slog.Logger) *Ingress {
	if log == nil {
		log = logger.NewDiscard()
	}
	cfg = cfg.withDefaults()

	return &Ingress{
		store:                store,
		publisher:            publisher,
		log:                  log,
		publishAttempts:      cfg.PublishAttempts,
		publishRetryInterval: cfg.PublishRetryInterval,
	}
}

// Handle processes one raw client frame. The returned Message is valid
// whenever the message was persisted, even if the error is ErrQueuePublish
// (stored but not live-broadcast).
//
// Persistence strictly precedes publication: a message that cannot be
// replayed from history must never reach live fan-out.
func (i *Ingress) Handle(ctx context.Context, ident *Identity, payload []byte) (Message, error) {
	in, err := ParseInbound(payload)
	if err != nil {
		messagesRejected.WithLabelValues("invalid_payload").Inc()
		return Message{}, err
	}

	msg := NewMessage(ident, in)
	if err := validateAuthor(msg); err != nil {
		messagesRejected.WithLabelValues("invalid_payload").Inc()
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if err := i.store.Append(ctx, msg); err != nil {
		messagesRejected.WithLabelValues("persistence").Inc()
		return Message{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrQueuePublish, err)
	}

	if err := i.publish(ctx, data); err != nil {
		messagesRejected.WithLabelValues("queue").Inc()
		return msg, fmt.Errorf("%w: %w", ErrQueuePublish, err)
	}

	messagesAccepted.Inc()
	return msg, nil
}

// publish retries a bounded number of times with a fixed interval. The
// message is already durable at this point, so exhausting the budget delays
// live delivery without losing anything.
func (i *Ingress) publish(ctx context.Context, data []byte) error {
	var lastErr error
	for attempt := 0; attempt < i.publishAttempts; attempt++ {
		if attempt > 0 {
			i.log.Warn("retrying relay queue publish",
				logger.Component("relay.ingress"),
				logger.RetryCount(attempt),
				logger.Error(lastErr))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(i.publishRetryInterval):
			}
		}

		if lastErr = i.publisher.Publish(ctx, data); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
