package domain

import "time"

// StatusLevel ranks item severity; critical outranks warning outranks informational.
type StatusLevel string

const (
	LevelCritical      StatusLevel = "critical"
	LevelWarning       StatusLevel = "warning"
	LevelInformational StatusLevel = "informational"
)

// ClassifiedItem is the pure classification of one feed item.
type ClassifiedItem struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Link            string      `json:"link"`
	Timestamp       time.Time   `json:"timestamp"`
	StatusLevel     StatusLevel `json:"statusLevel"`
	Services        []string    `json:"services"`
	WordCount       int         `json:"wordCount"`
	MatchedKeywords []string    `json:"matchedKeywords"`
}

// LevelCounts tallies classified items per status level.
type LevelCounts struct {
	Critical      int `json:"critical"`
	Warning       int `json:"warning"`
	Informational int `json:"informational"`
}

// ProviderSummary aggregates one provider's classified items for a cycle.
// LastUpdate is nil when the provider produced no items.
type ProviderSummary struct {
	TotalItems     int         `json:"totalItems"`
	Counts         LevelCounts `json:"counts"`
	UniqueServices []string    `json:"uniqueServices"`
	RiskScore      int         `json:"riskScore"`
	LastUpdate     *time.Time  `json:"lastUpdate"`
}

// AnalysisStatus tags a per-provider analysis result.
type AnalysisStatus string

const (
	AnalysisSuccess AnalysisStatus = "success"
	AnalysisError   AnalysisStatus = "error"
	AnalysisFailed  AnalysisStatus = "analysis_error"
)

// ProviderAnalysis is the per-provider analyzer output. Items and Summary are
// present only for AnalysisSuccess; Error carries the cause otherwise.
type ProviderAnalysis struct {
	Provider string           `json:"provider"`
	Status   AnalysisStatus   `json:"status"`
	Error    string           `json:"error,omitempty"`
	Items    []ClassifiedItem `json:"items,omitempty"`
	Summary  *ProviderSummary `json:"summary,omitempty"`
}

// OverallSummary rolls all providers of a cycle into one figure. Counts and
// Services cover successful providers only; Providers counts every outcome.
type OverallSummary struct {
	Providers        int         `json:"providers"`
	Counts           LevelCounts `json:"counts"`
	Services         []string    `json:"services"`
	OverallRiskScore int         `json:"overallRiskScore"`
}
