package queue

import "errors"

var (
	ErrEmptyStreamName   = errors.New("empty relay stream name")
	ErrPublishFailed     = errors.New("failed to publish to relay stream")
	ErrGroupCreateFailed = errors.New("failed to create relay consumer group")
)
