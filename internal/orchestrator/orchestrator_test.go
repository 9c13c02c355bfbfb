package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"StatusWatch/internal/analyzer"
	"StatusWatch/internal/collector"
	"StatusWatch/internal/domain"
	"StatusWatch/internal/queue"
)

type published struct {
	channel string
	msg     queue.Message
}

// captureQueue records publishes and subscriptions but delivers nothing.
type captureQueue struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]queue.Handler
}

var _ queue.Queue = (*captureQueue)(nil)

func newCaptureQueue() *captureQueue {
	return &captureQueue{handlers: map[string]queue.Handler{}}
}

func (q *captureQueue) Publish(_ context.Context, channel string, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, published{channel: channel, msg: msg})
	return nil
}

func (q *captureQueue) Subscribe(channel string, h queue.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[channel] = h
}

func (q *captureQueue) Drain(string) []queue.Message { return nil }
func (q *captureQueue) Close() error                 { return nil }

func (q *captureQueue) all() []published {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]published(nil), q.published...)
}

func (q *captureQueue) on(channel string) []published {
	var matched []published
	for _, p := range q.all() {
		if p.channel == channel {
			matched = append(matched, p)
		}
	}
	return matched
}

func (q *captureQueue) handler(channel string) queue.Handler {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handlers[channel]
}

// recordingQueue delegates to a real backend while recording every publish.
type recordingQueue struct {
	queue.Queue
	mu        sync.Mutex
	published []published
}

func (q *recordingQueue) Publish(ctx context.Context, channel string, msg queue.Message) error {
	q.mu.Lock()
	q.published = append(q.published, published{channel: channel, msg: msg})
	q.mu.Unlock()
	return q.Queue.Publish(ctx, channel, msg)
}

func (q *recordingQueue) all() []published {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]published(nil), q.published...)
}

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	return []byte("raw"), nil
}

type stubParser struct{}

func (stubParser) Parse([]byte) ([]domain.Item, error) {
	return []domain.Item{
		{Title: "Investigating degraded EC2 performance", GUID: "g1"},
	}, nil
}

type stubNotifier struct {
	mu      sync.Mutex
	digests []string
}

func (n *stubNotifier) PublishSummary(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests = append(n.digests, digest)
	return nil
}

func (n *stubNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.digests...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestCycleCorrelationEndToEnd(t *testing.T) {
	t.Parallel()

	mem := queue.NewMemoryQueue(5 * time.Millisecond)
	defer mem.Close()
	q := &recordingQueue{Queue: mem}

	col := collector.New(q, stubFetcher{}, stubParser{},
		collector.Config{MaxRetries: 1, RetryDelay: 0}, testLogger())
	an := analyzer.New(q, nil, testLogger())
	o := New(q, []domain.Source{{Name: "aws", URL: "https://status.example/rss"}},
		time.Hour, nil, testLogger())

	col.Start()
	an.Start()
	o.StartScheduling()
	defer o.StopScheduling()

	waitFor(t, 3*time.Second, func() bool {
		return o.CurrentStatus().CycleCount == 1
	})

	all := q.all()
	if len(all) != 4 {
		t.Fatalf("recorded %d publishes, want the 4 hops of one cycle", len(all))
	}

	correlationID := all[0].msg.CorrelationID
	if correlationID == "" {
		t.Fatal("collect task has no correlation id")
	}
	for i, p := range all {
		if p.msg.CorrelationID != correlationID {
			t.Fatalf("hop %d carries correlation id %s, want %s", i, p.msg.CorrelationID, correlationID)
		}
	}

	if all[0].msg.Kind != queue.KindCollect || all[0].channel != queue.ChannelCollectTasks {
		t.Fatalf("hop 0 is %s on %s, want collect task", all[0].msg.Kind, all[0].channel)
	}
	if all[1].msg.Kind != queue.KindResult || all[1].msg.Result.Type != queue.ResultCollected {
		t.Fatalf("hop 1 is not the collected result: %+v", all[1].msg)
	}
	if all[2].msg.Kind != queue.KindAnalyze || all[2].channel != queue.ChannelAnalyzeTasks {
		t.Fatalf("hop 2 is %s on %s, want analyze task", all[2].msg.Kind, all[2].channel)
	}
	if all[3].msg.Kind != queue.KindResult || all[3].msg.Result.Type != queue.ResultAnalysisComplete {
		t.Fatalf("hop 3 is not the analysis result: %+v", all[3].msg)
	}

	summary := all[3].msg.Result.Analysis.Summary
	if summary.Providers != 1 || summary.OverallRiskScore != 20 {
		t.Fatalf("summary %+v, want one provider at risk 20 (single warning item)", summary)
	}
}

func TestStartSchedulingDispatchesImmediately(t *testing.T) {
	t.Parallel()

	q := newCaptureQueue()
	o := New(q, []domain.Source{{Name: "aws", URL: "u"}}, time.Hour, nil, testLogger())

	o.StartScheduling()
	defer o.StopScheduling()

	tasks := q.on(queue.ChannelCollectTasks)
	if len(tasks) != 1 {
		t.Fatalf("published %d collect tasks, want 1 immediate dispatch", len(tasks))
	}
	task := tasks[0].msg
	if task.Kind != queue.KindCollect || task.Collect == nil {
		t.Fatalf("unexpected task envelope: %+v", task)
	}
	if task.Collect.Sources["aws"] != "u" {
		t.Fatalf("task sources %v, want all configured sources", task.Collect.Sources)
	}

	// Starting while running is a no-op.
	o.StartScheduling()
	if got := len(q.on(queue.ChannelCollectTasks)); got != 1 {
		t.Fatalf("idempotent start dispatched again: %d tasks", got)
	}
}

func TestStopStartResumes(t *testing.T) {
	t.Parallel()

	q := newCaptureQueue()
	o := New(q, []domain.Source{{Name: "aws", URL: "u"}}, time.Hour, nil, testLogger())

	o.StartScheduling()
	o.StopScheduling()
	if status := o.CurrentStatus(); status.IsRunning {
		t.Fatal("still running after StopScheduling")
	}
	o.StopScheduling() // no-op while stopped

	o.StartScheduling()
	defer o.StopScheduling()

	if got := len(q.on(queue.ChannelCollectTasks)); got != 2 {
		t.Fatalf("dispatched %d collect tasks across stop/start, want 2", got)
	}

	status := o.CurrentStatus()
	if !status.IsRunning {
		t.Fatal("not running after restart")
	}
	if len(status.ActiveTasks) != 1 || status.ActiveTasks[0] != collectionTaskName {
		t.Fatalf("active tasks %v, want [%s]", status.ActiveTasks, collectionTaskName)
	}
	if status.CycleCount != 0 {
		t.Fatalf("cycle count %d changed by stop/start, want 0", status.CycleCount)
	}

	// The result subscription must not stack across restarts.
	if q.handler(queue.ChannelResults) == nil {
		t.Fatal("no result subscription registered")
	}
}

func TestResultHandlingForwardsAndCounts(t *testing.T) {
	t.Parallel()

	q := newCaptureQueue()
	o := New(q, []domain.Source{{Name: "aws", URL: "u"}}, time.Hour, nil, testLogger())
	o.StartScheduling()
	defer o.StopScheduling()

	handle := q.handler(queue.ChannelResults)
	if handle == nil {
		t.Fatal("orchestrator did not subscribe to the result channel")
	}

	outcomes := []domain.CollectionOutcome{{Status: domain.OutcomeSuccess, Name: "aws", ItemCount: 0}}
	handle(queue.NewCollectedResult("cycle-9", outcomes, 0))

	forwarded := q.on(queue.ChannelAnalyzeTasks)
	if len(forwarded) != 1 {
		t.Fatalf("forwarded %d analyze tasks, want 1", len(forwarded))
	}
	task := forwarded[0].msg
	if task.CorrelationID != "cycle-9" {
		t.Fatalf("forwarded correlation id %s, want cycle-9 preserved", task.CorrelationID)
	}
	if task.Analyze == nil || task.Analyze.ForwardedBy != queue.AgentOrchestrator {
		t.Fatalf("unexpected analyze task: %+v", task)
	}
	if o.CurrentStatus().CycleCount != 0 {
		t.Fatal("forwarding handoff must not count as a completed cycle")
	}

	handle(queue.NewAnalysisResult("cycle-9", nil, domain.OverallSummary{}))
	if got := o.CurrentStatus().CycleCount; got != 1 {
		t.Fatalf("cycle count %d after analysis result, want 1", got)
	}

	// Unknown result types are ignored.
	handle(queue.Message{
		Kind:          queue.KindResult,
		CorrelationID: "cycle-10",
		Result:        &queue.AgentResult{FromAgent: "someone", Type: "heartbeat"},
	})
	if got := o.CurrentStatus().CycleCount; got != 1 {
		t.Fatalf("cycle count %d after unknown result, want still 1", got)
	}

	handle(queue.NewAnalysisResult("cycle-11", nil, domain.OverallSummary{}))
	if got := o.CurrentStatus().CycleCount; got != 2 {
		t.Fatalf("cycle count %d, want one increment per analysis result", got)
	}
}

func TestCycleCompletionNotifiesDownstream(t *testing.T) {
	t.Parallel()

	q := newCaptureQueue()
	notifier := &stubNotifier{}
	o := New(q, []domain.Source{{Name: "aws", URL: "u"}}, time.Hour, notifier, testLogger())
	o.StartScheduling()
	defer o.StopScheduling()

	risk := 50
	analyses := []domain.ProviderAnalysis{
		{Provider: "aws", Status: domain.AnalysisSuccess, Summary: &domain.ProviderSummary{RiskScore: risk, TotalItems: 1}},
		{Provider: "azure", Status: domain.AnalysisError, Error: "all 3 attempts failed"},
	}
	summary := domain.OverallSummary{Providers: 2, OverallRiskScore: risk}

	q.handler(queue.ChannelResults)(queue.NewAnalysisResult("cycle-12", analyses, summary))

	digests := notifier.all()
	if len(digests) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(digests))
	}
	if !strings.Contains(digests[0], "aws") || !strings.Contains(digests[0], "azure") {
		t.Fatalf("digest %q does not mention every provider", digests[0])
	}
	if !strings.Contains(digests[0], "50/100") {
		t.Fatalf("digest %q does not carry the overall risk", digests[0])
	}
}
