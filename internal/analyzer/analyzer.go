// Package analyzer implements the second pipeline stage: classify every
// collected item, aggregate per-provider and overall summaries, and publish
// exactly one analysis result per task.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"StatusWatch/internal/domain"
	"StatusWatch/internal/queue"
)

// Risk score weights per status level; the score is capped at 100.
const (
	weightCritical      = 50
	weightWarning       = 20
	weightInformational = 5
	maxRiskScore        = 100
)

// Analyzer consumes analyze tasks from the queue.
type Analyzer struct {
	queue      queue.Queue
	classifier *Classifier
	logger     *slog.Logger
}

// New wires the analysis stage.
func New(q queue.Queue, classifier *Classifier, logger *slog.Logger) *Analyzer {
	if classifier == nil {
		classifier = NewClassifier(Keywords{}, nil)
	}
	return &Analyzer{queue: q, classifier: classifier, logger: logger}
}

// Start subscribes the analyzer to the analyze-task channel.
func (a *Analyzer) Start() {
	a.queue.Subscribe(queue.ChannelAnalyzeTasks, a.handleTask)
}

func (a *Analyzer) handleTask(msg queue.Message) {
	if msg.Kind != queue.KindAnalyze || msg.Analyze == nil {
		a.logger.Warn("ignoring unexpected message", "kind", msg.Kind, "correlation_id", msg.CorrelationID)
		return
	}
	a.Analyze(context.Background(), msg.Analyze.Data, msg.CorrelationID)
}

// Analyze processes a batch of collection outcomes and publishes a single
// analysis-complete result carrying per-provider analyses plus the overall
// summary, under the same correlation ID.
func (a *Analyzer) Analyze(ctx context.Context, outcomes []domain.CollectionOutcome, correlationID string) {
	analyses := make([]domain.ProviderAnalysis, 0, len(outcomes))
	for _, outcome := range outcomes {
		analyses = append(analyses, a.analyzeOutcome(outcome))
	}
	summary := Summarize(analyses)

	msg := queue.NewAnalysisResult(correlationID, analyses, summary)
	if err := a.queue.Publish(ctx, queue.ChannelResults, msg); err != nil {
		a.logger.Error("publish analysis result", "correlation_id", correlationID, "error", err)
		return
	}
	a.logger.Info("analysis complete",
		"correlation_id", correlationID,
		"providers", summary.Providers,
		"risk_score", summary.OverallRiskScore)
}

// analyzeOutcome classifies one provider's outcome. A collection failure maps
// to status error; a panic inside classification is confined to this provider
// and maps to status analysis_error.
func (a *Analyzer) analyzeOutcome(outcome domain.CollectionOutcome) (analysis domain.ProviderAnalysis) {
	if outcome.Status == domain.OutcomeFailure {
		return domain.ProviderAnalysis{
			Provider: outcome.Name,
			Status:   domain.AnalysisError,
			Error:    outcome.Error,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("classification panicked", "provider", outcome.Name, "panic", r)
			analysis = domain.ProviderAnalysis{
				Provider: outcome.Name,
				Status:   domain.AnalysisFailed,
				Error:    fmt.Sprintf("classification failed: %v", r),
			}
		}
	}()

	items := make([]domain.ClassifiedItem, 0, len(outcome.Items))
	for _, item := range outcome.Items {
		items = append(items, a.classifier.Classify(item))
	}
	summary := SummarizeProvider(items)

	return domain.ProviderAnalysis{
		Provider: outcome.Name,
		Status:   domain.AnalysisSuccess,
		Items:    items,
		Summary:  &summary,
	}
}

// SummarizeProvider aggregates one provider's classified items.
func SummarizeProvider(items []domain.ClassifiedItem) domain.ProviderSummary {
	summary := domain.ProviderSummary{
		TotalItems:     len(items),
		UniqueServices: make([]string, 0),
	}
	seen := map[string]struct{}{}
	for _, item := range items {
		switch item.StatusLevel {
		case domain.LevelCritical:
			summary.Counts.Critical++
		case domain.LevelWarning:
			summary.Counts.Warning++
		default:
			summary.Counts.Informational++
		}
		for _, svc := range item.Services {
			if _, ok := seen[svc]; ok {
				continue
			}
			seen[svc] = struct{}{}
			summary.UniqueServices = append(summary.UniqueServices, svc)
		}
		if summary.LastUpdate == nil || item.Timestamp.After(*summary.LastUpdate) {
			ts := item.Timestamp
			summary.LastUpdate = &ts
		}
	}
	summary.RiskScore = RiskScore(summary.Counts)
	return summary
}

// RiskScore is the capped weighted sum of severity counts.
func RiskScore(counts domain.LevelCounts) int {
	score := counts.Critical*weightCritical +
		counts.Warning*weightWarning +
		counts.Informational*weightInformational
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}

// Summarize rolls provider analyses into the overall summary. Counts,
// services, and the risk average cover successful providers only; with zero
// successful providers the overall risk score is 0.
func Summarize(analyses []domain.ProviderAnalysis) domain.OverallSummary {
	overall := domain.OverallSummary{
		Providers: len(analyses),
		Services:  make([]string, 0),
	}
	seen := map[string]struct{}{}
	var scoreSum, successes int
	for _, pa := range analyses {
		if pa.Status != domain.AnalysisSuccess || pa.Summary == nil {
			continue
		}
		overall.Counts.Critical += pa.Summary.Counts.Critical
		overall.Counts.Warning += pa.Summary.Counts.Warning
		overall.Counts.Informational += pa.Summary.Counts.Informational
		for _, svc := range pa.Summary.UniqueServices {
			if _, ok := seen[svc]; ok {
				continue
			}
			seen[svc] = struct{}{}
			overall.Services = append(overall.Services, svc)
		}
		scoreSum += pa.Summary.RiskScore
		successes++
	}
	if successes > 0 {
		overall.OverallRiskScore = int(math.Round(float64(scoreSum) / float64(successes)))
	}
	return overall
}
