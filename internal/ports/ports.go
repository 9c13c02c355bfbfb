package ports

import (
	"context"

	"StatusWatch/internal/domain"
)

// FeedFetcher retrieves raw feed bytes for a URL within a bounded timeout.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FeedParser turns raw feed bytes into items.
type FeedParser interface {
	Parse(raw []byte) ([]domain.Item, error)
}

// Notifier forwards aggregated risk digests downstream (Telegram, etc.).
type Notifier interface {
	PublishSummary(ctx context.Context, digest string) error
}
