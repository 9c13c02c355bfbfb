// Package feed adapts HTTP retrieval and RSS/Atom parsing behind the
// collector's fetcher/parser ports.
package feed

import (
	"bytes"
	"fmt"

	"github.com/mmcdole/gofeed"

	"StatusWatch/internal/domain"
	"StatusWatch/internal/ports"
)

// Parser converts raw RSS/Atom bytes into domain items via gofeed.
type Parser struct {
	inner *gofeed.Parser
}

var _ ports.FeedParser = (*Parser)(nil)

// NewParser builds a reusable feed parser.
func NewParser() *Parser {
	return &Parser{inner: gofeed.NewParser()}
}

// Parse decodes the document and maps entries to items. An entry without a
// GUID falls back to its link for identity.
func (p *Parser) Parse(raw []byte) ([]domain.Item, error) {
	parsed, err := p.inner.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item := domain.Item{
			Title:       entry.Title,
			Description: entry.Description,
			Link:        entry.Link,
			GUID:        entry.GUID,
			Categories:  entry.Categories,
		}
		if item.GUID == "" {
			item.GUID = entry.Link
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			item.PublishedAt = *entry.UpdatedParsed
		}
		items = append(items, item)
	}
	return items, nil
}
