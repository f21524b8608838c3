package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/chatrelay/core/logger"
)

// Entry is one relay queue item as seen by the fan-out loop. A nil Payload
// marks an entry that carried no message; it is acknowledged and skipped.
type Entry struct {
	ID      string
	Payload []byte
}

// Consumer is the relay queue read side. Fetch blocks for at most the
// queue's poll interval and returns (nil, nil) on an empty interval, which
// gives the loop its cooperative shutdown checks. Ack marks entries
// processed so they are not redelivered.
type Consumer interface {
	Fetch(ctx context.Context) ([]Entry, error)
	Ack(ctx context.Context, ids ...string) error
}

// Fanout is the singleton consumer loop: it drains the relay queue and
// broadcasts every entry to the registry. One Fanout runs per relay process.
type Fanout struct {
	consumer Consumer
	registry *Registry
	log      *slog.Logger

	errorBackoff    time.Duration
	shutdownTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFanout wires the fan-out loop. cfg zero-values fall back to defaults.
func NewFanout(consumer Consumer, registry *Registry, cfg Config, log *slog.Logger) *Fanout {
	if log == nil {
		log = logger.NewDiscard()
	}
	cfg = cfg.withDefaults()

	return &Fanout{
		consumer:        consumer,
		registry:        registry,
		log:             log,
		errorBackoff:    cfg.FanoutErrorBackoff,
		shutdownTimeout: cfg.FanoutShutdownTimeout,
	}
}

// Start runs the loop until the context is canceled. Queue outages are
// logged and retried after a backoff; a single bad entry is skipped, never
// fatal. Returns context.Err() on cancellation.
func (f *Fanout) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return fmt.Errorf("fanout already started")
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	f.mu.Unlock()

	defer close(f.done)

	f.log.InfoContext(ctx, "fanout loop started", logger.Component("relay.fanout"))

	for {
		select {
		case <-ctx.Done():
			f.log.InfoContext(context.Background(), "fanout loop stopping", logger.Component("relay.fanout"))
			return ctx.Err()
		default:
		}

		entries, err := f.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			fanoutErrors.Inc()
			f.log.Error("failed to fetch from relay queue",
				logger.Component("relay.fanout"),
				logger.Error(err))

			select {
			case <-ctx.Done():
			case <-time.After(f.errorBackoff):
			}
			continue
		}

		if len(entries) == 0 {
			continue
		}

		// The in-flight batch is broadcast and acknowledged even if shutdown
		// arrives mid-batch; only pulling new entries stops.
		acked := make([]string, 0, len(entries))
		for _, entry := range entries {
			if len(entry.Payload) == 0 || !json.Valid(entry.Payload) {
				fanoutErrors.Inc()
				f.log.Error("skipping undecodable relay entry",
					logger.Component("relay.fanout"),
					logger.ID("entry_id", entry.ID))
				acked = append(acked, entry.ID)
				continue
			}

			f.registry.Broadcast(entry.Payload)
			acked = append(acked, entry.ID)
		}

		// Acks use their own context so the batch lands even when the loop
		// context is already canceled.
		ackCtx, cancel := context.WithTimeout(context.Background(), f.shutdownTimeout)
		if err := f.consumer.Ack(ackCtx, acked...); err != nil {
			fanoutErrors.Inc()
			f.log.Error("failed to ack relay entries",
				logger.Component("relay.fanout"),
				logger.Count("entries", len(acked)),
				logger.Error(err))
		}
		cancel()
	}
}

// Stop cancels the loop and waits for it to finish, bounded by the shutdown
// timeout. Exceeding the timeout is logged and reported, not fatal.
func (f *Fanout) Stop() error {
	f.mu.Lock()
	if f.cancel == nil {
		f.mu.Unlock()
		return fmt.Errorf("fanout not started")
	}
	cancel := f.cancel
	done := f.done
	f.cancel = nil
	f.mu.Unlock()

	cancel()

	select {
	case <-done:
		f.log.Info("fanout loop stopped cleanly", logger.Component("relay.fanout"))
		return nil
	case <-time.After(f.shutdownTimeout):
		f.log.Warn("fanout shutdown timeout exceeded",
			logger.Component("relay.fanout"),
			logger.Duration(f.shutdownTimeout))
		return fmt.Errorf("fanout shutdown timeout exceeded after %s", f.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the loop and performs graceful shutdown
// when the context is cancelled.
func (f *Fanout) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- f.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = f.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}
