package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"StatusWatch/internal/analyzer"
	"StatusWatch/internal/collector"
	"StatusWatch/internal/config"
	"StatusWatch/internal/domain"
	"StatusWatch/internal/infrastructure/feed"
	"StatusWatch/internal/infrastructure/telegram"
	"StatusWatch/internal/logging"
	"StatusWatch/internal/orchestrator"
	"StatusWatch/internal/ports"
	"StatusWatch/internal/queue"
)

// Application wires configs to the pipeline stages and owns their lifecycle.
type Application struct {
	cfg          config.Config
	queue        queue.Queue
	collector    *collector.Collector
	analyzer     *analyzer.Analyzer
	orchestrator *orchestrator.Orchestrator
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	q, err := buildQueue(cfg.Queue, baseLogger)
	if err != nil {
		return nil, err
	}

	fetcher := feed.NewHTTPFetcher(nil, cfg.Collection.FetchTimeout())
	parser := feed.NewParser()

	col := collector.New(q, fetcher, parser, collector.Config{
		MaxRetries: cfg.Collection.MaxRetries,
		RetryDelay: cfg.Collection.RetryDelay(),
	}, baseLogger.With("component", "collector"))

	classifier := analyzer.NewClassifier(analyzer.DefaultKeywords(), nil)
	an := analyzer.New(q, classifier, baseLogger.With("component", "analyzer"))

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	orch := orchestrator.New(q, sourceList(cfg.Sources), cfg.Collection.Interval(), notifier,
		baseLogger.With("component", "orchestrator"))

	return &Application{
		cfg:          cfg,
		queue:        q,
		collector:    col,
		analyzer:     an,
		orchestrator: orch,
	}, nil
}

// Run starts both pipeline stages and the scheduler, then blocks until ctx is
// done. In-flight pipeline work is not cancelled, only new cycles stop.
func (a *Application) Run(ctx context.Context) error {
	a.collector.Start()
	a.analyzer.Start()
	a.orchestrator.StartScheduling()

	<-ctx.Done()

	a.orchestrator.StopScheduling()
	if err := a.queue.Close(); err != nil {
		return fmt.Errorf("close queue: %w", err)
	}
	return nil
}

// Status reports the scheduler snapshot for any thin outer layer.
func (a *Application) Status() orchestrator.Status {
	return a.orchestrator.CurrentStatus()
}

func buildQueue(cfg config.QueueConfig, logger *slog.Logger) (queue.Queue, error) {
	switch cfg.Backend {
	case "", config.QueueBackendMemory:
		return queue.NewMemoryQueue(0), nil
	case config.QueueBackendRedis:
		return queue.NewRedisQueue(cfg.Redis.Addr, logger.With("component", "queue.redis")), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func sourceList(sources map[string]string) []domain.Source {
	list := make([]domain.Source, 0, len(sources))
	for name, url := range sources {
		list = append(list, domain.Source{Name: name, URL: url})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
