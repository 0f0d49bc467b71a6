// Package engine runs the scrape-store-analyze pipeline as a single-run
// state machine with cooperative cancellation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rohitw3code/sentinews-api/internal/analysis"
	"github.com/Rohitw3code/sentinews-api/internal/sources"
)

var (
	// ErrAlreadyRunning rejects a Start while a run is in flight.
	ErrAlreadyRunning = errors.New("pipeline is already running")

	// ErrNotRunning rejects a Stop when no run is in flight.
	ErrNotRunning = errors.New("pipeline is not running")
)

// Store is the persistence surface the engine writes through. Each call
// must be durable on return; the engine never batches across articles.
type Store interface {
	// ExistsURL reports whether an article with this exact URL is stored.
	ExistsURL(ctx context.Context, url string) (bool, error)

	// SaveArticle stores one article and returns its row id.
	SaveArticle(ctx context.Context, art *sources.Article) (int64, error)

	// SaveEntitySentiments stores all sentiment rows for one article
	// atomically and marks it analyzed.
	SaveEntitySentiments(ctx context.Context, articleID int64, entities []analysis.EntitySentiment) error

	// SavePipelineRun records a per-run summary row.
	SavePipelineRun(ctx context.Context, run *RunSummary) error
}

// Analyzer is the engine's view of sentiment analysis.
type Analyzer interface {
	Analyze(ctx context.Context, articleURL, text string) ([]analysis.EntitySentiment, error)
}

// AnalyzerFactory builds an analyzer for the provider and model a run
// was started with. Credential or provider errors surface here, before
// the run is admitted.
type AnalyzerFactory func(provider, model string) (Analyzer, error)

// RunSummary is the durable record of one finished run.
type RunSummary struct {
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Status           Status    `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	ArticlesTotal    int       `json:"articles_total"`
	ArticlesStored   int       `json:"articles_stored"`
	ExtractionFailed int       `json:"extraction_failed"`
	AnalysisFailed   int       `json:"analysis_failed"`
	SentimentRows    int       `json:"sentiment_rows"`
	Error            string    `json:"error,omitempty"`
}

// Engine coordinates at most one pipeline run at a time.
type Engine struct {
	registry    *sources.Registry
	store       Store
	newAnalyzer AnalyzerFactory
	logger      *slog.Logger

	running  atomic.Bool
	stopFlag atomic.Bool
	tracker  *tracker

	mu   sync.Mutex // guards done
	done chan struct{}
}

// New builds an idle engine.
func New(registry *sources.Registry, store Store, factory AnalyzerFactory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	closed := make(chan struct{})
	close(closed)
	return &Engine{
		registry:    registry,
		store:       store,
		newAnalyzer: factory,
		logger:      logger.With("component", "engine"),
		tracker:     newTracker(),
		done:        closed,
	}
}

// Start admits a new run and returns immediately. Invalid source names
// or analyzer construction errors reject the run without a state change.
// A second Start while running returns ErrAlreadyRunning.
func (e *Engine) Start(provider, model string, sourceNames []string) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	srcs, err := e.registry.Select(sourceNames)
	if err != nil {
		e.running.Store(false)
		return fmt.Errorf("select sources: %w", err)
	}
	analyzer, err := e.newAnalyzer(provider, model)
	if err != nil {
		e.running.Store(false)
		return fmt.Errorf("build analyzer: %w", err)
	}

	names := make([]string, len(srcs))
	for i, s := range srcs {
		names[i] = s.Name()
	}

	e.stopFlag.Store(false)
	e.tracker.begin(provider, model, names)

	done := make(chan struct{})
	e.mu.Lock()
	e.done = done
	e.mu.Unlock()

	e.logger.Info("pipeline run started", "provider", provider, "model", model, "sources", names)
	go e.run(analyzer, srcs, provider, model, done)
	return nil
}

// Stop requests cooperative cancellation. The current article finishes;
// nothing already stored is rolled back.
func (e *Engine) Stop() error {
	if !e.running.Load() {
		return ErrNotRunning
	}
	e.stopFlag.Store(true)
	e.tracker.requestStop()
	e.logger.Info("pipeline stop requested")
	return nil
}

// Status returns a snapshot of the current or most recent run. It never
// blocks on run I/O.
func (e *Engine) Status() RunState {
	return e.tracker.snapshot()
}

// Running reports whether a run is in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Done returns a channel closed when the current run finishes. Closed
// immediately when idle.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

type workItem struct {
	source sources.Source
	url    string
}

func (e *Engine) run(analyzer Analyzer, srcs []sources.Source, provider, model string, done chan struct{}) {
	ctx := context.Background()
	started := time.Now().UTC()
	summary := &RunSummary{Provider: provider, Model: model, StartedAt: started}

	defer func() {
		e.running.Store(false)
		close(done)
	}()

	// Discovery phase. Total is fixed only after every selected source
	// has been queried, so progress/total stays deterministic.
	seen := make(map[string]struct{})
	var queue []workItem
	for _, src := range srcs {
		e.tracker.setTask("Discovering articles from " + src.Name())
		urls, err := src.DiscoverURLs(ctx)
		if err != nil {
			e.logger.Warn("source unavailable, skipping", "source", src.Name(), "error", err)
			continue
		}
		for _, url := range urls {
			if _, dup := seen[url]; dup {
				continue
			}
			exists, err := e.store.ExistsURL(ctx, url)
			if err != nil {
				e.finish(summary, StatusFailed, fmt.Errorf("check url %s: %w", url, err))
				return
			}
			if exists {
				continue
			}
			seen[url] = struct{}{}
			queue = append(queue, workItem{source: src, url: url})
		}
	}

	summary.ArticlesTotal = len(queue)
	e.tracker.setTotal(len(queue))

	for _, item := range queue {
		if e.stopFlag.Load() {
			e.finish(summary, StatusStopped, nil)
			return
		}
		e.tracker.setTask("Processing " + item.url)

		art, err := item.source.FetchArticle(ctx, item.url)
		if err != nil {
			// The URL is not recorded anywhere, so it stays novel for
			// the next run.
			e.logger.Warn("extraction failed, skipping article", "url", item.url, "error", err)
			summary.ExtractionFailed++
			e.tracker.incProgress()
			continue
		}

		articleID, err := e.store.SaveArticle(ctx, art)
		if err != nil {
			e.finish(summary, StatusFailed, fmt.Errorf("save article %s: %w", art.URL, err))
			return
		}
		summary.ArticlesStored++

		entities, err := analyzer.Analyze(ctx, art.URL, art.Body)
		if err != nil {
			// Stored article stays without sentiment rows.
			e.logger.Warn("analysis failed, article stored bare", "url", art.URL, "error", err)
			summary.AnalysisFailed++
			e.tracker.incProgress()
			continue
		}

		if len(entities) > 0 {
			if err := e.store.SaveEntitySentiments(ctx, articleID, entities); err != nil {
				e.finish(summary, StatusFailed, fmt.Errorf("save sentiments for %s: %w", art.URL, err))
				return
			}
			summary.SentimentRows += len(entities)
		}
		e.tracker.incProgress()
	}

	e.finish(summary, StatusCompleted, nil)
}

// finish records the terminal state and writes the run summary row.
// Summary persistence is best-effort; a failed write never changes the
// run outcome.
func (e *Engine) finish(summary *RunSummary, status Status, runErr error) {
	summary.Status = status
	summary.FinishedAt = time.Now().UTC()
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		summary.Error = errMsg
	}
	e.tracker.finish(status, errMsg)

	if err := e.store.SavePipelineRun(context.Background(), summary); err != nil {
		e.logger.Warn("failed to persist run summary", "error", err)
	}

	e.logger.Info("pipeline run finished",
		"status", status,
		"total", summary.ArticlesTotal,
		"stored", summary.ArticlesStored,
		"extraction_failed", summary.ExtractionFailed,
		"analysis_failed", summary.AnalysisFailed,
		"sentiment_rows", summary.SentimentRows,
		"error", errMsg,
	)
}
