package relay

import "errors"

var (
	ErrTopicNotFound   = errors.New("relay: no topic bound for message")
	ErrSinkUnavailable = errors.New("relay: no healthy sink available")
	ErrQueueFull       = errors.New("relay: sink queue full")
	ErrShuttingDown    = errors.New("relay: shutting down")
)
