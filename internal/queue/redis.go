package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "statuswatch:"
	redisPopTimeout = 2 * time.Second
)

// RedisQueue is the networked backend: one Redis list per channel, RPUSH to
// publish and a BLPOP loop per subscription. Competing consumers on the same
// list give the same SPMC semantics as the in-memory backend.
type RedisQueue struct {
	client *redis.Client
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue connects to the broker at addr. The connection is lazy;
// transport errors surface on the first Publish or subscription pop.
func NewRedisQueue(addr string, logger *slog.Logger) *RedisQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func redisKey(channel string) string {
	return redisKeyPrefix + channel
}

// Publish stamps the emission time and pushes the JSON-encoded message onto
// the channel list. Broker errors are returned to the caller, never retried
// here.
func (q *RedisQueue) Publish(ctx context.Context, channel string, msg Message) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}

	msg.EmittedAt = time.Now().UTC()
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.RPush(ctx, redisKey(channel), raw).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe starts a consumer loop popping messages off the channel list and
// handing each to h. Messages that fail to decode are logged and skipped.
func (q *RedisQueue) Subscribe(channel string, h Handler) {
	if h == nil {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		key := redisKey(channel)
		for {
			res, err := q.client.BLPop(q.ctx, redisPopTimeout, key).Result()
			if err != nil {
				if q.ctx.Err() != nil {
					return
				}
				if errors.Is(err, redis.Nil) {
					continue
				}
				q.log("broker pop failed", "channel", channel, "error", err)
				select {
				case <-q.ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var msg Message
			if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
				q.log("drop undecodable message", "channel", channel, "error", err)
				continue
			}
			h(msg)
		}
	}()
}

// Drain pops and returns everything currently queued on the channel.
func (q *RedisQueue) Drain(channel string) []Message {
	var drained []Message
	key := redisKey(channel)
	for {
		raw, err := q.client.LPop(q.ctx, key).Result()
		if err != nil {
			return drained
		}
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			q.log("drop undecodable message", "channel", channel, "error", err)
			continue
		}
		drained = append(drained, msg)
	}
}

// Close stops all consumer loops and releases the connection. Idempotent.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

func (q *RedisQueue) log(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Warn(msg, args...)
	}
}
