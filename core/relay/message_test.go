package relay_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatrelay/core/relay"
)

func TestParseInbound(t *testing.T) {
	t.Run("accepts a well-formed frame", func(t *testing.T) {
		in, err := relay.ParseInbound([]byte(`{"username":"alice","body":"hi"}`))

		require.NoError(t, err)
		assert.Equal(t, "alice", in.Username)
		assert.Equal(t, "hi", in.Body)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := relay.ParseInbound([]byte(`{"body":`))

		assert.ErrorIs(t, err, relay.ErrInvalidPayload)
	})

	t.Run("rejects wrong field type", func(t *testing.T) {
		_, err := relay.ParseInbound([]byte(`{"body":123}`))

		assert.ErrorIs(t, err, relay.ErrInvalidPayload)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		_, err := relay.ParseInbound([]byte(`{"username":"alice","body":""}`))

		require.ErrorIs(t, err, relay.ErrInvalidPayload)
		assert.ErrorIs(t, err, relay.ErrEmptyBody)
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		frame, err := json.Marshal(relay.Inbound{
			Username: "alice",
			Body:     strings.Repeat("x", relay.MaxBodyLength+1),
		})
		require.NoError(t, err)

		_, err = relay.ParseInbound(frame)

		assert.ErrorIs(t, err, relay.ErrBodyTooLong)
	})

	t.Run("rejects oversized username", func(t *testing.T) {
		frame, err := json.Marshal(relay.Inbound{
			Username: strings.Repeat("x", relay.MaxUsernameLength+1),
			Body:     "hi",
		})
		require.NoError(t, err)

		_, err = relay.ParseInbound(frame)

		assert.ErrorIs(t, err, relay.ErrUsernameTooLong)
	})
}

func TestNewMessage(t *testing.T) {
	t.Run("assigns id and server timestamp", func(t *testing.T) {
		before := time.Now().UTC()
		msg := relay.NewMessage(nil, relay.Inbound{Username: "alice", Body: "hi"})

		assert.NotEqual(t, uuid.Nil, msg.ID)
		assert.False(t, msg.CreatedAt.Before(before))
		assert.Equal(t, "alice", msg.Username)
	})

	t.Run("resolved identity overrides client-supplied author fields", func(t *testing.T) {
		ident := &relay.Identity{
			Login:     "alice",
			AvatarURL: "https://example.com/a.png",
			HTMLURL:   "https://github.com/alice",
		}
		msg := relay.NewMessage(ident, relay.Inbound{
			Username:  "mallory",
			Avatar:    "https://example.com/fake.png",
			GithubURL: "https://github.com/mallory",
			Body:      "hi",
		})

		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, "https://example.com/a.png", msg.Avatar)
		assert.Equal(t, "https://github.com/alice", msg.GithubURL)
	})

	t.Run("anonymous connection keeps client-supplied fields", func(t *testing.T) {
		msg := relay.NewMessage(nil, relay.Inbound{Username: "bob", Body: "yo"})

		assert.Equal(t, "bob", msg.Username)
		assert.Empty(t, msg.Avatar)
	})
}

func TestMessageWireFormat(t *testing.T) {
	t.Run("serializes with RFC3339 timestamp and snake_case keys", func(t *testing.T) {
		msg := relay.Message{
			ID:        uuid.New(),
			Username:  "alice",
			Body:      "hi",
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}

		data, err := json.Marshal(msg)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, msg.ID.String(), decoded["id"])
		assert.Equal(t, "2025-06-01T12:00:00Z", decoded["created_at"])
		assert.Equal(t, "hi", decoded["body"])
	})

	t.Run("omits empty optional fields", func(t *testing.T) {
		data, err := json.Marshal(relay.Message{ID: uuid.New(), Username: "alice", Body: "hi"})
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.NotContains(t, decoded, "avatar")
		assert.NotContains(t, decoded, "github_url")
	})
}
