package queue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/chatrelay/integration/queue"
)

func TestNewPublisher(t *testing.T) {
	t.Run("requires a stream name", func(t *testing.T) {
		_, err := queue.NewPublisher(nil, queue.Config{})

		assert.ErrorIs(t, err, queue.ErrEmptyStreamName)
	})
}

func TestNewConsumer(t *testing.T) {
	t.Run("requires a stream name", func(t *testing.T) {
		_, err := queue.NewConsumer(context.Background(), nil, queue.Config{})

		assert.ErrorIs(t, err, queue.ErrEmptyStreamName)
	})
}
