package relay

import "errors"

// Per-message errors. None of these terminate the connection: the rejected
// message is reported to the sender and the read loop keeps going.
var (
	// ErrInvalidPayload marks a malformed or failed-validation inbound frame.
	ErrInvalidPayload = errors.New("invalid message payload")

	// ErrPersistence marks a message rejected because the durable store
	// write failed. The message is not published.
	ErrPersistence = errors.New("message could not be persisted")

	// ErrQueuePublish marks a message that is durably stored but could not
	// be queued for live broadcast within the retry budget. Clients recover
	// it through history retrieval.
	ErrQueuePublish = errors.New("message stored but not queued for broadcast")

	ErrEmptyBody       = errors.New("message body is required")
	ErrBodyTooLong     = errors.New("message body exceeds the maximum length")
	ErrMissingUsername = errors.New("username is required")
	ErrUsernameTooLong = errors.New("username exceeds the maximum length")
)
