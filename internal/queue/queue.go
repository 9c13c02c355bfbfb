// Package queue provides the channel-addressed SPMC pub/sub primitive the
// pipeline stages coordinate through. Two backends satisfy the same contract:
// an in-process polling buffer and a Redis-list broker.
package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by Publish once the queue has been closed.
var ErrClosed = errors.New("queue is closed")

// Handler consumes one message. A given message reaches at most one handler
// per channel; delivery is decoupled from publish, so callers must not assume
// synchronous handling.
type Handler func(msg Message)

// Queue is the backend-agnostic pub/sub contract. Publish never blocks on
// subscriber processing and performs no retries of its own; transport errors
// surface to the caller. Messages still undelivered at Close time are dropped.
type Queue interface {
	Publish(ctx context.Context, channel string, msg Message) error
	Subscribe(channel string, h Handler)
	Drain(channel string) []Message
	Close() error
}
