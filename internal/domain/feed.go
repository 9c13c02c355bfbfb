package domain

import "time"

// Source identifies one provider status feed to poll.
type Source struct {
	Name string
	URL  string
}

// Item is a single entry parsed from a provider status feed. GUID is the
// downstream identity; uniqueness is the upstream feed's responsibility.
type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"publishedAt"`
	GUID        string    `json:"guid"`
	Categories  []string  `json:"categories,omitempty"`
}

// OutcomeStatus tags a CollectionOutcome as terminal success or failure.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// CollectionOutcome is the per-source result of one collection cycle.
// A failure carries no items and ItemCount always equals len(Items).
type CollectionOutcome struct {
	Status    OutcomeStatus `json:"status"`
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Items     []Item        `json:"items,omitempty"`
	Error     string        `json:"error,omitempty"`
	FetchedAt time.Time     `json:"fetchedAt"`
	ItemCount int           `json:"itemCount"`
}
