package queue

import (
	"time"

	"StatusWatch/internal/domain"
)

// Kind discriminates message envelopes on the wire.
type Kind string

const (
	KindCollect Kind = "collect_feeds"
	KindAnalyze Kind = "analyze_rss_data"
	KindResult  Kind = "result"
)

// Agent names a pipeline stage in result envelopes.
type Agent string

const (
	AgentCollector    Agent = "collector"
	AgentAnalyzer     Agent = "analyzer"
	AgentOrchestrator Agent = "orchestrator"
)

// ResultType discriminates agent results on the shared result channel.
type ResultType string

const (
	ResultCollected        ResultType = "rss_data_collected"
	ResultAnalysisComplete ResultType = "analysis_complete"
)

// Channel names. Publishers and subscribers must agree on these exactly.
const (
	ChannelCollectTasks = "tasks.collect"
	ChannelAnalyzeTasks = "tasks.analyze"
	ChannelResults      = "results"
)

// Message is the unit of queue traffic: a kind discriminant, the cycle's
// correlation ID, and exactly one non-nil payload matching the kind.
// EmittedAt is stamped by the backend at publish time.
type Message struct {
	Kind          Kind      `json:"kind"`
	CorrelationID string    `json:"correlationId"`
	EmittedAt     time.Time `json:"emittedAt"`

	Collect *CollectTask `json:"collect,omitempty"`
	Analyze *AnalyzeTask `json:"analyze,omitempty"`
	Result  *AgentResult `json:"result,omitempty"`
}

// CollectTask asks the collector to fetch every named source.
type CollectTask struct {
	Sources     map[string]string `json:"sources"`
	ScheduledAt time.Time         `json:"scheduledAt"`
}

// AnalyzeTask forwards collection outcomes to the analyzer.
type AnalyzeTask struct {
	Data           []domain.CollectionOutcome `json:"data"`
	ForwardedBy    Agent                      `json:"forwardedBy"`
	OriginalSource Agent                      `json:"originalSource"`
}

// AgentResult is a pipeline stage's reply on the shared result channel.
// Exactly one of Collected/Analysis is set, matching Type.
type AgentResult struct {
	FromAgent   Agent          `json:"fromAgent"`
	Type        ResultType     `json:"type"`
	Collected   *CollectedData `json:"collected,omitempty"`
	Analysis    *AnalysisData  `json:"analysis,omitempty"`
	CompletedAt time.Time      `json:"completedAt"`
}

// CollectedData carries all per-source outcomes of one collection pass.
type CollectedData struct {
	Outcomes   []domain.CollectionOutcome `json:"data"`
	TotalItems int                        `json:"totalItems"`
}

// AnalysisData carries per-provider analyses plus the overall summary.
type AnalysisData struct {
	Analyses []domain.ProviderAnalysis `json:"data"`
	Summary  domain.OverallSummary     `json:"summary"`
}

// NewCollectTask builds a collection task for one cycle.
func NewCollectTask(correlationID string, sources map[string]string) Message {
	return Message{
		Kind:          KindCollect,
		CorrelationID: correlationID,
		Collect: &CollectTask{
			Sources:     sources,
			ScheduledAt: time.Now().UTC(),
		},
	}
}

// NewAnalyzeTask republishes collected outcomes as an analysis task,
// preserving the cycle's correlation ID.
func NewAnalyzeTask(correlationID string, outcomes []domain.CollectionOutcome, forwardedBy, originalSource Agent) Message {
	return Message{
		Kind:          KindAnalyze,
		CorrelationID: correlationID,
		Analyze: &AnalyzeTask{
			Data:           outcomes,
			ForwardedBy:    forwardedBy,
			OriginalSource: originalSource,
		},
	}
}

// NewCollectedResult wraps collection outcomes for the result channel.
func NewCollectedResult(correlationID string, outcomes []domain.CollectionOutcome, totalItems int) Message {
	return Message{
		Kind:          KindResult,
		CorrelationID: correlationID,
		Result: &AgentResult{
			FromAgent:   AgentCollector,
			Type:        ResultCollected,
			Collected:   &CollectedData{Outcomes: outcomes, TotalItems: totalItems},
			CompletedAt: time.Now().UTC(),
		},
	}
}

// NewAnalysisResult wraps the analyzer's output for the result channel.
func NewAnalysisResult(correlationID string, analyses []domain.ProviderAnalysis, summary domain.OverallSummary) Message {
	return Message{
		Kind:          KindResult,
		CorrelationID: correlationID,
		Result: &AgentResult{
			FromAgent:   AgentAnalyzer,
			Type:        ResultAnalysisComplete,
			Analysis:    &AnalysisData{Analyses: analyses, Summary: summary},
			CompletedAt: time.Now().UTC(),
		},
	}
}
