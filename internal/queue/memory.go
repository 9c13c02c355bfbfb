package queue

import (
	"context"
	"sync"
	"time"
)

const defaultPollInterval = 50 * time.Millisecond

// MemoryQueue is the in-process backend: mutex-guarded per-channel backlogs
// drained by a single polling goroutine. Delivery is FIFO per channel, and a
// drained message reaches exactly one registered handler.
type MemoryQueue struct {
	mu       sync.Mutex
	backlog  map[string][]Message
	handlers map[string][]Handler
	cursor   map[string]int
	closed   bool

	stop chan struct{}
	done chan struct{}
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue starts the polling dispatcher. A non-positive pollInterval
// selects the default.
func NewMemoryQueue(pollInterval time.Duration) *MemoryQueue {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	q := &MemoryQueue{
		backlog:  map[string][]Message{},
		handlers: map[string][]Handler{},
		cursor:   map[string]int{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.poll(pollInterval)
	return q
}

// Publish stamps the emission time and appends to the channel backlog.
func (q *MemoryQueue) Publish(_ context.Context, channel string, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	msg.EmittedAt = time.Now().UTC()
	q.backlog[channel] = append(q.backlog[channel], msg)
	return nil
}

// Subscribe registers a handler for the channel. With several handlers on one
// channel, backlog messages are spread round-robin; no message is delivered
// twice.
func (q *MemoryQueue) Subscribe(channel string, h Handler) {
	if h == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.handlers[channel] = append(q.handlers[channel], h)
}

// Drain removes and returns every queued message on the channel without
// invoking subscribers.
func (q *MemoryQueue) Drain(channel string) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.backlog[channel]
	delete(q.backlog, channel)
	return drained
}

// Close stops the dispatcher and drops any undelivered messages. Idempotent.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.backlog = map[string][]Message{}
	q.handlers = map[string][]Handler{}
	close(q.stop)
	q.mu.Unlock()

	<-q.done
	return nil
}

func (q *MemoryQueue) poll(interval time.Duration) {
	defer close(q.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.dispatch()
		}
	}
}

type delivery struct {
	handler Handler
	msg     Message
}

// dispatch drains subscribed channels under the lock and invokes handlers
// outside it, so handlers may publish back without deadlocking.
func (q *MemoryQueue) dispatch() {
	q.mu.Lock()
	var deliveries []delivery
	for channel, handlers := range q.handlers {
		if len(handlers) == 0 {
			continue
		}
		pending := q.backlog[channel]
		if len(pending) == 0 {
			continue
		}
		delete(q.backlog, channel)
		for _, msg := range pending {
			h := handlers[q.cursor[channel]%len(handlers)]
			q.cursor[channel]++
			deliveries = append(deliveries, delivery{handler: h, msg: msg})
		}
	}
	q.mu.Unlock()

	for _, d := range deliveries {
		d.handler(d.msg)
	}
}
