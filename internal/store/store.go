// Package store provides SQLite persistence for articles, sentiment rows,
// usage logs, schedule config and pipeline run summaries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Rohitw3code/sentinews-api/internal/analysis"
	"github.com/Rohitw3code/sentinews-api/internal/engine"
	"github.com/Rohitw3code/sentinews-api/internal/scheduler"
	"github.com/Rohitw3code/sentinews-api/internal/sources"
	"github.com/Rohitw3code/sentinews-api/pkg/storage"
)

// scheduleKey is the app_config row holding the daily trigger settings.
const scheduleKey = "schedule"

// Schema is the full SQLite schema. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    url              TEXT NOT NULL UNIQUE,
    source           TEXT NOT NULL,
    title            TEXT,
    author           TEXT,
    publication_date TEXT,
    raw_text         TEXT,
    cleaned_text     TEXT,
    is_analyzed      INTEGER NOT NULL DEFAULT 0,
    scraped_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sentiments (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    article_id          INTEGER NOT NULL REFERENCES articles(id),
    entity_name         TEXT NOT NULL,
    entity_type         TEXT NOT NULL,
    financial_sentiment TEXT NOT NULL,
    overall_sentiment   TEXT NOT NULL,
    reasoning           TEXT
);

CREATE TABLE IF NOT EXISTS usage_logs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    article_url       TEXT,
    provider          TEXT NOT NULL,
    model             TEXT,
    prompt_tokens     INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    total_tokens      INTEGER NOT NULL DEFAULT 0,
    total_cost_usd    REAL NOT NULL DEFAULT 0,
    outcome           TEXT NOT NULL,
    timestamp         TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS app_config (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    provider          TEXT,
    model             TEXT,
    status            TEXT NOT NULL,
    started_at        TIMESTAMP NOT NULL,
    finished_at       TIMESTAMP NOT NULL,
    articles_total    INTEGER NOT NULL DEFAULT 0,
    articles_stored   INTEGER NOT NULL DEFAULT 0,
    extraction_failed INTEGER NOT NULL DEFAULT 0,
    analysis_failed   INTEGER NOT NULL DEFAULT 0,
    sentiment_rows    INTEGER NOT NULL DEFAULT 0,
    error             TEXT
);

CREATE INDEX IF NOT EXISTS idx_sentiments_article ON sentiments(article_id);
CREATE INDEX IF NOT EXISTS idx_sentiments_entity ON sentiments(entity_name);
CREATE INDEX IF NOT EXISTS idx_articles_pubdate ON articles(publication_date);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_runs_started ON pipeline_runs(started_at);
`

// Store wraps the shared database handle. It satisfies the engine's
// persistence surface, the analyzer's usage sink and the scheduler's
// config store.
type Store struct {
	db     *storage.DB
	logger *slog.Logger
}

var (
	_ engine.Store          = (*Store)(nil)
	_ analysis.UsageSink    = (*Store)(nil)
	_ scheduler.ConfigStore = (*Store)(nil)
)

// New applies the schema and returns a ready store.
func New(ctx context.Context, db *storage.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Migrate(ctx, Schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger.With("component", "store")}, nil
}

// ExistsURL reports whether an article with this exact URL is stored.
func (s *Store) ExistsURL(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM articles WHERE url = ?", url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check url: %w", err)
	}
	return n > 0, nil
}

// SaveArticle inserts one article and returns its row id.
func (s *Store) SaveArticle(ctx context.Context, art *sources.Article) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (url, source, title, author, publication_date, raw_text, cleaned_text, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, art.URL, art.Source, art.Title, art.Author, art.Published, art.RawText, art.Body, art.ScrapedAt)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("article id: %w", err)
	}
	return id, nil
}

// SaveEntitySentiments writes all sentiment rows for one article and flips
// its analyzed flag in a single transaction.
func (s *Store) SaveEntitySentiments(ctx context.Context, articleID int64, entities []analysis.EntitySentiment) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, e := range entities {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sentiments (article_id, entity_name, entity_type, financial_sentiment, overall_sentiment, reasoning)
				VALUES (?, ?, ?, ?, ?, ?)
			`, articleID, e.EntityName, e.EntityType, e.FinancialSentiment, e.OverallSentiment, e.Reasoning); err != nil {
				return fmt.Errorf("insert sentiment: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, "UPDATE articles SET is_analyzed = 1 WHERE id = ?", articleID); err != nil {
			return fmt.Errorf("mark analyzed: %w", err)
		}
		return nil
	})
}

// AppendUsage records one model invocation.
func (s *Store) AppendUsage(ctx context.Context, rec *analysis.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_logs (article_url, provider, model, prompt_tokens, completion_tokens, total_tokens, total_cost_usd, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ArticleURL, rec.Provider, rec.Model, rec.PromptTokens, rec.CompletionTokens,
		rec.TotalTokens, rec.CostUSD, rec.Outcome, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}

// SavePipelineRun records a per-run summary row.
func (s *Store) SavePipelineRun(ctx context.Context, run *engine.RunSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (provider, model, status, started_at, finished_at,
			articles_total, articles_stored, extraction_failed, analysis_failed, sentiment_rows, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Provider, run.Model, string(run.Status), run.StartedAt, run.FinishedAt,
		run.ArticlesTotal, run.ArticlesStored, run.ExtractionFailed, run.AnalysisFailed,
		run.SentimentRows, run.Error)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// GetConfig reads one app_config value; ok is false when the key is absent.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

// SetConfig upserts one app_config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO app_config (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// LoadSchedule reads the persisted daily trigger settings. A missing row
// yields the zero (disabled) settings.
func (s *Store) LoadSchedule(ctx context.Context) (scheduler.Settings, error) {
	raw, ok, err := s.GetConfig(ctx, scheduleKey)
	if err != nil || !ok {
		return scheduler.Settings{}, err
	}
	var settings scheduler.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return scheduler.Settings{}, fmt.Errorf("decode schedule: %w", err)
	}
	return settings, nil
}

// SaveSchedule persists the daily trigger settings.
func (s *Store) SaveSchedule(ctx context.Context, settings scheduler.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return s.SetConfig(ctx, scheduleKey, string(raw))
}
