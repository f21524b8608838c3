package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatrelay/core/relay"
)

type fakeStore struct {
	mu       sync.Mutex
	messages []relay.Message
	failWith error
}

func (s *fakeStore) Append(ctx context.Context, msg relay.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeStore) List(ctx context.Context) ([]relay.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]relay.Message(nil), s.messages...), nil
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fakePublisher struct {
	mu        sync.Mutex
	published [][]byte
	failures  int // fail this many calls before succeeding
	failWith  error
}

func (p *fakePublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		if p.failWith != nil {
			return p.failWith
		}
		return errors.New("queue unavailable")
	}
	p.published = append(p.published, append([]byte(nil), payload...))
	return nil
}

func (p *fakePublisher) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func fastConfig() relay.Config {
	cfg := relay.DefaultConfig()
	cfg.PublishRetryInterval = time.Millisecond
	return cfg
}

func TestIngressHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("persists then publishes an accepted message", func(t *testing.T) {
		store := &fakeStore{}
		pub := &fakePublisher{}
		ingress := relay.NewIngress(store, pub, fastConfig(), nil)

		msg, err := ingress.Handle(ctx, nil, []byte(`{"username":"alice","body":"hi"}`))

		require.NoError(t, err)
		assert.Equal(t, "alice", msg.Username)
		require.Equal(t, 1, store.len())
		require.Equal(t, 1, pub.len())

		var published relay.Message
		require.NoError(t, json.Unmarshal(pub.published[0], &published))
		assert.Equal(t, msg.ID, published.ID)
	})

	t.Run("rejects invalid payload without touching store or queue", func(t *testing.T) {
		store := &fakeStore{}
		pub := &fakePublisher{}
		ingress := relay.NewIngress(store, pub, fastConfig(), nil)

		_, err := ingress.Handle(ctx, nil, []byte(`{"body":123}`))

		assert.ErrorIs(t, err, relay.ErrInvalidPayload)
		assert.Zero(t, store.len())
		assert.Zero(t, pub.len())
	})

	t.Run("rejects message without an author", func(t *testing.T) {
		store := &fakeStore{}
		pub := &fakePublisher{}
		ingress := relay.NewIngress(store, pub, fastConfig(), nil)

		_, err := ingress.Handle(ctx, nil, []byte(`{"body":"hi"}`))

		assert.ErrorIs(t, err, relay.ErrInvalidPayload)
		assert.Zero(t, store.len())
	})

	t.Run("persistence failure prevents publication", func(t *testing.T) {
		store := &fakeStore{failWith: errors.New("db down")}
		pub := &fakePublisher{}
		ingress := relay.NewIngress(store, pub, fastConfig(), nil)

		_, err := ingress.Handle(ctx, nil, []byte(`{"username":"alice","body":"hi"}`))

		assert.ErrorIs(t, err, relay.ErrPersistence)
		assert.Zero(t, pub.len())
	})

	t.Run("publish retries recover from transient queue failures", func(t *testing.T) {
		store := &fakeStore{}
		pub := &fakePublisher{failures: 2}
		cfg := fastConfig()
		cfg.PublishAttempts = 3
		ingress := relay.NewIngress(store, pub, cfg, nil)

		_, err := ingress.Handle(ctx, nil, []byte(`{"username":"alice","body":"hi"}`))

		require.NoError(t, err)
		assert.Equal(t, 1, pub.len())
	})

	t.Run("exhausted publish budget keeps the message durable", func(t *testing.T) {
		store := &fakeStore{}
		pub := &fakePublisher{failures: 100}
		cfg := fastConfig()
		cfg.PublishAttempts = 2
		ingress := relay.NewIngress(store, pub, cfg, nil)

		msg, err := ingress.Handle(ctx, nil, []byte(`{"username":"alice","body":"hi"}`))

		assert.ErrorIs(t, err, relay.ErrQueuePublish)
		assert.Equal(t, 1, store.len())
		assert.Zero(t, pub.len())
		assert.Equal(t, "alice", msg.Username) // message returned for error reporting
	})

	t.Run("identity wins over payload author", func(t *testing.T) {
		store := &fakeStore{}
		pub := &fakePublisher{}
		ingress := relay.NewIngress(store, pub, fastConfig(), nil)

		ident := &relay.Identity{Login: "alice"}
		msg, err := ingress.Handle(ctx, ident, []byte(`{"username":"mallory","body":"hi"}`))

		require.NoError(t, err)
		assert.Equal(t, "alice", msg.Username)
	})
}
