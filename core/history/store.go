// Package history is the durable store adapter: append-only persistence of
// chat messages in PostgreSQL with ordered retrieval for reconnect catch-up.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/chatrelay/core/relay"
)

const (
	insertMessage = `
		INSERT INTO messages (id, username, avatar, github_url, body, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)`

	selectMessages = `
		SELECT id, username, COALESCE(avatar, ''), COALESCE(github_url, ''), body, created_at
		FROM messages
		ORDER BY created_at ASC, id ASC`
)

// Store persists messages through a pgx connection pool.
// Safe for concurrent use by all ingress paths.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append durably writes one message. Empty optional fields are stored as
// NULL. The write must succeed before the caller may publish the message.
func (s *Store) Append(ctx context.Context, msg relay.Message) error {
	_, err := s.pool.Exec(ctx, insertMessage,
		msg.ID, msg.Username, msg.Avatar, msg.GithubURL, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message %s: %w", msg.ID, err)
	}
	return nil
}

// List returns the full message history ordered by creation time ascending,
// with the message id as tiebreaker for identical timestamps.
func (s *Store) List(ctx context.Context) ([]relay.Message, error) {
	rows, err := s.pool.Query(ctx, selectMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to query message history: %w", err)
	}
	defer rows.Close()

	messages := make([]relay.Message, 0)
	for rows.Next() {
		var msg relay.Message
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.Avatar, &msg.GithubURL, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read message history: %w", err)
	}

	return messages, nil
}
