// Package orchestrator drives the scheduling loop: it dispatches collect
// tasks on a fixed interval, forwards collector output to the analyzer, and
// counts completed cycles. All four hops of a cycle share one correlation ID.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"StatusWatch/internal/domain"
	"StatusWatch/internal/ports"
	"StatusWatch/internal/queue"
)

const (
	defaultInterval    = 15 * time.Minute
	collectionTaskName = "rss_collection"
)

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	IsRunning   bool
	ActiveTasks []string
	CycleCount  int
}

// Orchestrator owns the scheduling state machine. Cycles are distinguished
// purely by correlation ID; several may be in flight at once.
type Orchestrator struct {
	queue    queue.Queue
	sources  []domain.Source
	interval time.Duration
	notifier ports.Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	subscribed bool
	stop       chan struct{}
	cycleCount int
}

// New wires the scheduler. A non-positive interval selects the 15m default;
// notifier may be nil.
func New(q queue.Queue, sources []domain.Source, interval time.Duration, notifier ports.Notifier, logger *slog.Logger) *Orchestrator {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Orchestrator{
		queue:    q,
		sources:  sources,
		interval: interval,
		notifier: notifier,
		logger:   logger,
	}
}

// StartScheduling begins the dispatch loop: one immediate dispatch, then one
// per interval tick. Idempotent while running. The result subscription is
// registered once and survives stop/start.
func (o *Orchestrator) StartScheduling() {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	o.stop = make(chan struct{})
	stop := o.stop
	subscribe := !o.subscribed
	o.subscribed = true
	o.mu.Unlock()

	if subscribe {
		o.queue.Subscribe(queue.ChannelResults, o.handleResult)
	}

	o.dispatchCollection()
	go o.run(stop)
}

// StopScheduling cancels the timer. In-flight pipeline work is left to run to
// completion; calling while stopped is a no-op.
func (o *Orchestrator) StopScheduling() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	o.running = false
	close(o.stop)
	o.stop = nil
}

// CurrentStatus reports the scheduler snapshot without touching pipeline state.
func (o *Orchestrator) CurrentStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := Status{
		IsRunning:   o.running,
		ActiveTasks: make([]string, 0, 1),
		CycleCount:  o.cycleCount,
	}
	if o.running {
		status.ActiveTasks = append(status.ActiveTasks, collectionTaskName)
	}
	return status
}

func (o *Orchestrator) run(stop chan struct{}) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.dispatchCollection()
		}
	}
}

// dispatchCollection opens a new cycle under a fresh correlation ID. A
// publish failure skips this cycle rather than crashing the scheduler.
func (o *Orchestrator) dispatchCollection() {
	correlationID := uuid.NewString()
	sources := make(map[string]string, len(o.sources))
	for _, src := range o.sources {
		sources[src.Name] = src.URL
	}

	msg := queue.NewCollectTask(correlationID, sources)
	if err := o.queue.Publish(context.Background(), queue.ChannelCollectTasks, msg); err != nil {
		o.logger.Error("publish collect task, skipping cycle", "correlation_id", correlationID, "error", err)
		return
	}
	o.logger.Info("dispatched collection", "correlation_id", correlationID, "sources", len(sources))
}

func (o *Orchestrator) handleResult(msg queue.Message) {
	if msg.Kind != queue.KindResult || msg.Result == nil {
		return
	}
	switch msg.Result.Type {
	case queue.ResultCollected:
		o.forwardToAnalyzer(msg)
	case queue.ResultAnalysisComplete:
		o.completeCycle(msg)
	default:
		// Unknown result types stay forward-compatible.
		o.logger.Debug("ignoring result", "type", msg.Result.Type, "correlation_id", msg.CorrelationID)
	}
}

// forwardToAnalyzer republishes collected outcomes as an analyze task under
// the same correlation ID. This is a handoff within the cycle, not a new one.
func (o *Orchestrator) forwardToAnalyzer(msg queue.Message) {
	if msg.Result.Collected == nil {
		o.logger.Warn("collected result without payload", "correlation_id", msg.CorrelationID)
		return
	}
	task := queue.NewAnalyzeTask(msg.CorrelationID, msg.Result.Collected.Outcomes, queue.AgentOrchestrator, msg.Result.FromAgent)
	if err := o.queue.Publish(context.Background(), queue.ChannelAnalyzeTasks, task); err != nil {
		o.logger.Error("forward to analyzer, skipping", "correlation_id", msg.CorrelationID, "error", err)
	}
}

// completeCycle is the terminal event: count the cycle and forward the
// digest downstream when a notifier is configured.
func (o *Orchestrator) completeCycle(msg queue.Message) {
	o.mu.Lock()
	o.cycleCount++
	count := o.cycleCount
	o.mu.Unlock()

	o.logger.Info("cycle complete", "correlation_id", msg.CorrelationID, "cycles", count)

	if o.notifier == nil || msg.Result.Analysis == nil {
		return
	}
	if err := o.notifier.PublishSummary(context.Background(), formatDigest(msg.Result.Analysis)); err != nil {
		o.logger.Error("publish summary digest", "correlation_id", msg.CorrelationID, "error", err)
	}
}

func formatDigest(analysis *queue.AnalysisData) string {
	var b strings.Builder
	summary := analysis.Summary
	fmt.Fprintf(&b, "Status risk %d/100 across %d providers (critical %d, warning %d, informational %d)\n",
		summary.OverallRiskScore,
		summary.Providers,
		summary.Counts.Critical,
		summary.Counts.Warning,
		summary.Counts.Informational)
	for _, pa := range analysis.Analyses {
		if pa.Status == domain.AnalysisSuccess && pa.Summary != nil {
			fmt.Fprintf(&b, "- %s: risk %d, %d items\n", pa.Provider, pa.Summary.RiskScore, pa.Summary.TotalItems)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", pa.Provider, pa.Status, pa.Error)
	}
	return b.String()
}
