package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"StatusWatch/internal/domain"
)

// Keywords holds the ordered severity vocabularies. Critical is checked
// first, then warning; informational is the default level.
type Keywords struct {
	Critical      []string
	Warning       []string
	Informational []string
}

// DefaultKeywords returns the stock severity vocabularies.
func DefaultKeywords() Keywords {
	return Keywords{
		Critical:      []string{"outage", "down", "unavailable", "failed", "critical"},
		Warning:       []string{"investigating", "degraded", "issues", "problems", "delayed"},
		Informational: []string{"resolved", "completed", "update", "maintenance", "scheduled"},
	}
}

// defaultServices lists known service names matched against item text,
// in this order.
var defaultServices = []string{
	"ec2", "rds", "s3", "lambda", "cloudfront", "route53", "elb",
	"compute engine", "cloud storage", "kubernetes", "app engine",
	"cloud sql", "cloud cdn", "cloud dns",
}

// Classifier derives a ClassifiedItem from an Item using keyword tables and
// a known-service list. Classification is a pure function of the item text.
type Classifier struct {
	keywords Keywords
	services []string
}

// NewClassifier builds a classifier; nil/empty arguments select the defaults.
func NewClassifier(keywords Keywords, services []string) *Classifier {
	if len(keywords.Critical) == 0 && len(keywords.Warning) == 0 && len(keywords.Informational) == 0 {
		keywords = DefaultKeywords()
	}
	if len(services) == 0 {
		services = defaultServices
	}
	return &Classifier{keywords: keywords, services: services}
}

// Classify scores one item. The working text is the lowercased title plus
// description with any HTML markup stripped.
func (c *Classifier) Classify(item domain.Item) domain.ClassifiedItem {
	text := strings.ToLower(strings.TrimSpace(item.Title + " " + stripHTML(item.Description)))
	level, matched := c.level(text)

	id := item.GUID
	if id == "" {
		id = item.Link
	}

	return domain.ClassifiedItem{
		ID:              id,
		Title:           item.Title,
		Link:            item.Link,
		Timestamp:       item.PublishedAt,
		StatusLevel:     level,
		Services:        c.matchServices(text),
		WordCount:       len(strings.Fields(text)),
		MatchedKeywords: matched,
	}
}

// level applies the fixed priority order: the first vocabulary with any
// match wins.
func (c *Classifier) level(text string) (domain.StatusLevel, []string) {
	if matched := matchAny(text, c.keywords.Critical); len(matched) > 0 {
		return domain.LevelCritical, matched
	}
	if matched := matchAny(text, c.keywords.Warning); len(matched) > 0 {
		return domain.LevelWarning, matched
	}
	return domain.LevelInformational, matchAny(text, c.keywords.Informational)
}

func (c *Classifier) matchServices(text string) []string {
	matched := make([]string, 0)
	for _, svc := range c.services {
		if strings.Contains(text, svc) {
			matched = append(matched, svc)
		}
	}
	return matched
}

func matchAny(text string, keywords []string) []string {
	matched := make([]string, 0)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// stripHTML extracts the plain text of an HTML fragment so markup around a
// keyword does not hide it from matching. Plain strings pass through.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}
