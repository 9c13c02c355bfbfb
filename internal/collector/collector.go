// Package collector implements the first pipeline stage: fetch every source
// named by a collect task, with bounded retries, and publish exactly one
// result message carrying all per-source outcomes.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"StatusWatch/internal/domain"
	"StatusWatch/internal/ports"
	"StatusWatch/internal/queue"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 5 * time.Second
)

// Config bounds the per-source retry loop. RetryDelay is a fixed wait between
// attempts, not an exponential backoff.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Collector consumes collect tasks and fetches each named source in turn.
type Collector struct {
	queue      queue.Queue
	fetcher    ports.FeedFetcher
	parser     ports.FeedParser
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// New wires the collection stage. MaxRetries defaults to 3 when unset.
func New(q queue.Queue, fetcher ports.FeedFetcher, parser ports.FeedParser, cfg Config, logger *slog.Logger) *Collector {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay < 0 {
		retryDelay = defaultRetryDelay
	}
	return &Collector{
		queue:      q,
		fetcher:    fetcher,
		parser:     parser,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Start subscribes the collector to the collect-task channel.
func (c *Collector) Start() {
	c.queue.Subscribe(queue.ChannelCollectTasks, c.handleTask)
}

func (c *Collector) handleTask(msg queue.Message) {
	if msg.Kind != queue.KindCollect || msg.Collect == nil {
		c.logger.Warn("ignoring unexpected message", "kind", msg.Kind, "correlation_id", msg.CorrelationID)
		return
	}

	sources := make([]domain.Source, 0, len(msg.Collect.Sources))
	for name, url := range msg.Collect.Sources {
		sources = append(sources, domain.Source{Name: name, URL: url})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })

	c.Collect(context.Background(), sources, msg.CorrelationID)
}

// Collect fetches every source and publishes a single collected result for
// the cycle. Sources are independent: one source exhausting its retries never
// aborts the others.
func (c *Collector) Collect(ctx context.Context, sources []domain.Source, correlationID string) {
	outcomes := make([]domain.CollectionOutcome, 0, len(sources))
	totalItems := 0
	for _, src := range sources {
		outcome := c.collectSource(ctx, src)
		totalItems += outcome.ItemCount
		outcomes = append(outcomes, outcome)
	}

	msg := queue.NewCollectedResult(correlationID, outcomes, totalItems)
	if err := c.queue.Publish(ctx, queue.ChannelResults, msg); err != nil {
		c.logger.Error("publish collected result", "correlation_id", correlationID, "error", err)
		return
	}
	c.logger.Info("collection complete",
		"correlation_id", correlationID,
		"sources", len(sources),
		"total_items", totalItems)
}

func (c *Collector) collectSource(ctx context.Context, src domain.Source) domain.CollectionOutcome {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		items, err := c.fetchOnce(ctx, src.URL)
		if err == nil {
			return domain.CollectionOutcome{
				Status:    domain.OutcomeSuccess,
				Name:      src.Name,
				URL:       src.URL,
				Items:     items,
				ItemCount: len(items),
				FetchedAt: time.Now().UTC(),
			}
		}
		lastErr = err
		c.logger.Warn("fetch attempt failed",
			"source", src.Name,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"error", err)
		if attempt < c.maxRetries {
			wait(ctx, c.retryDelay)
		}
	}

	return domain.CollectionOutcome{
		Status:    domain.OutcomeFailure,
		Name:      src.Name,
		URL:       src.URL,
		Error:     fmt.Sprintf("all %d attempts failed: %v", c.maxRetries, lastErr),
		FetchedAt: time.Now().UTC(),
	}
}

func (c *Collector) fetchOnce(ctx context.Context, url string) ([]domain.Item, error) {
	raw, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	items, err := c.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return items, nil
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
