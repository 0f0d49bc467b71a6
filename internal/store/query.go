package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Rohitw3code/sentinews-api/internal/engine"
)

// SentimentRow is one entity sentiment attached to an article.
type SentimentRow struct {
	EntityName         string `json:"entity_name"`
	EntityType         string `json:"entity_type"`
	FinancialSentiment string `json:"financial_sentiment"`
	OverallSentiment   string `json:"overall_sentiment"`
	Reasoning          string `json:"reasoning"`
}

// ArticleWithSentiments is the article list item returned to clients.
type ArticleWithSentiments struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	URL             string         `json:"url"`
	Author          string         `json:"author"`
	PublicationDate string         `json:"publication_date"`
	Sentiments      []SentimentRow `json:"sentiments"`
}

// ArticleFilter narrows the article listing. Zero values mean no filter.
type ArticleFilter struct {
	EntityName         string
	EntityType         string
	FinancialSentiment string
	OverallSentiment   string
	Limit              uint64
}

// Entity is one distinct extracted entity.
type Entity struct {
	EntityName string `json:"entity_name"`
	EntityType string `json:"entity_type"`
}

// EntityCount ranks an entity by how often a sentiment was assigned.
type EntityCount struct {
	EntityName     string `json:"entity_name"`
	EntityType     string `json:"entity_type"`
	SentimentCount int    `json:"sentiment_count"`
}

// TopEntitiesQuery selects the ranking dimension.
type TopEntitiesQuery struct {
	SentimentType string // "financial" or "overall"
	Sentiment     string // "positive", "negative" or "neutral"
	Descending    bool
	Limit         uint64
}

// TrendPoint is one (publication date, score) pair. Score is +1 for
// positive, -1 for negative, 0 for neutral.
type TrendPoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// SentimentTrend is an entity's sentiment history for graphing.
type SentimentTrend struct {
	EntityName     string       `json:"entity_name"`
	FinancialTrend []TrendPoint `json:"financial_sentiment_trend"`
	OverallTrend   []TrendPoint `json:"overall_sentiment_trend"`
}

// DashboardStats is the headline numbers for a dashboard view.
type DashboardStats struct {
	TotalEntities         int            `json:"total_entities"`
	ArticlesAnalyzed      int            `json:"articles_analyzed"`
	TotalSentimentPoints  int            `json:"total_sentiment_points"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
}

// UsageEntry is one usage_logs row.
type UsageEntry struct {
	ID               int64     `json:"id"`
	ArticleURL       string    `json:"article_url"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          float64   `json:"total_cost_usd"`
	Outcome          string    `json:"outcome"`
	Timestamp        time.Time `json:"timestamp"`
}

// UsageSummary aggregates usage per provider.
type UsageSummary struct {
	Provider    string  `json:"provider"`
	TotalCalls  int     `json:"total_calls"`
	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
}

// ArticleRef links an article to one sentiment's reasoning, used for
// grouping articles by sentiment per entity.
type ArticleRef struct {
	Title              string `json:"title"`
	URL                string `json:"url"`
	Reasoning          string `json:"reasoning"`
	FinancialSentiment string `json:"-"`
	OverallSentiment   string `json:"-"`
}

// ListArticles returns the newest articles with their sentiment rows,
// optionally narrowed by entity filters.
func (s *Store) ListArticles(ctx context.Context, filter ArticleFilter) ([]ArticleWithSentiments, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}

	inner := sq.Select("DISTINCT article_id").From("sentiments")
	filtered := false
	if filter.EntityName != "" {
		inner = inner.Where(sq.Like{"entity_name": "%" + filter.EntityName + "%"})
		filtered = true
	}
	if filter.EntityType != "" {
		inner = inner.Where(sq.Eq{"entity_type": filter.EntityType})
		filtered = true
	}
	if filter.FinancialSentiment != "" {
		inner = inner.Where(sq.Eq{"financial_sentiment": filter.FinancialSentiment})
		filtered = true
	}
	if filter.OverallSentiment != "" {
		inner = inner.Where(sq.Eq{"overall_sentiment": filter.OverallSentiment})
		filtered = true
	}

	ids := sq.Select("id").From("articles")
	if filtered {
		innerSQL, innerArgs, err := inner.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build filter query: %w", err)
		}
		ids = ids.Where("id IN ("+innerSQL+")", innerArgs...)
	}
	ids = ids.OrderBy("publication_date DESC").Limit(limit)

	idSQL, idArgs, err := ids.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article query: %w", err)
	}

	query := `
		SELECT a.id, a.title, a.url, a.author, a.publication_date,
		       s.id, s.entity_name, s.entity_type, s.financial_sentiment, s.overall_sentiment, s.reasoning
		FROM articles a
		LEFT JOIN sentiments s ON a.id = s.article_id
		WHERE a.id IN (` + idSQL + `)
		ORDER BY a.publication_date DESC, a.id, s.id`

	rows, err := s.db.QueryContext(ctx, query, idArgs...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []ArticleWithSentiments
	index := map[int64]int{}
	for rows.Next() {
		var (
			art         ArticleWithSentiments
			title       sql.NullString
			author      sql.NullString
			pubDate     sql.NullString
			sentimentID sql.NullInt64
			row         SentimentRow
			reasoning   sql.NullString
			name, typ   sql.NullString
			fin, ovr    sql.NullString
		)
		if err := rows.Scan(&art.ID, &title, &art.URL, &author, &pubDate,
			&sentimentID, &name, &typ, &fin, &ovr, &reasoning); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		art.Title = title.String
		art.Author = author.String
		art.PublicationDate = pubDate.String

		i, ok := index[art.ID]
		if !ok {
			art.Sentiments = []SentimentRow{}
			out = append(out, art)
			i = len(out) - 1
			index[art.ID] = i
		}
		if sentimentID.Valid {
			row.EntityName = name.String
			row.EntityType = typ.String
			row.FinancialSentiment = fin.String
			row.OverallSentiment = ovr.String
			row.Reasoning = reasoning.String
			out[i].Sentiments = append(out[i].Sentiments, row)
		}
	}
	return out, rows.Err()
}

// ListEntities returns all distinct entities, sorted by name.
func (s *Store) ListEntities(ctx context.Context) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT entity_name, entity_type FROM sentiments ORDER BY entity_name")
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.EntityName, &e.EntityType); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TopEntities ranks entities by how many times a given sentiment was
// assigned on the chosen dimension.
func (s *Store) TopEntities(ctx context.Context, q TopEntitiesQuery) ([]EntityCount, error) {
	var column string
	switch q.SentimentType {
	case "financial":
		column = "financial_sentiment"
	case "overall":
		column = "overall_sentiment"
	default:
		return nil, fmt.Errorf("invalid sentiment_type %q", q.SentimentType)
	}
	switch q.Sentiment {
	case "positive", "negative", "neutral":
	default:
		return nil, fmt.Errorf("invalid sentiment %q", q.Sentiment)
	}
	order := "sentiment_count ASC"
	if q.Descending {
		order = "sentiment_count DESC"
	}
	limit := q.Limit
	if limit == 0 {
		limit = 10
	}

	query, args, err := sq.Select("entity_name", "entity_type", "COUNT(*) AS sentiment_count").
		From("sentiments").
		Where(sq.Eq{column: q.Sentiment}).
		GroupBy("entity_name", "entity_type").
		OrderBy(order).
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top entities query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top entities: %w", err)
	}
	defer rows.Close()

	var out []EntityCount
	for rows.Next() {
		var c EntityCount
		if err := rows.Scan(&c.EntityName, &c.EntityType, &c.SentimentCount); err != nil {
			return nil, fmt.Errorf("scan entity count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SentimentOverTime returns the dated sentiment scores for one entity,
// matched by substring, ordered by publication date.
func (s *Store) SentimentOverTime(ctx context.Context, entityName string) (*SentimentTrend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.publication_date, s.financial_sentiment, s.overall_sentiment
		FROM sentiments s
		JOIN articles a ON s.article_id = a.id
		WHERE s.entity_name LIKE ?
		ORDER BY a.publication_date ASC
	`, "%"+entityName+"%")
	if err != nil {
		return nil, fmt.Errorf("sentiment over time: %w", err)
	}
	defer rows.Close()

	trend := &SentimentTrend{
		EntityName:     entityName,
		FinancialTrend: []TrendPoint{},
		OverallTrend:   []TrendPoint{},
	}
	for rows.Next() {
		var date sql.NullString
		var fin, ovr string
		if err := rows.Scan(&date, &fin, &ovr); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		trend.FinancialTrend = append(trend.FinancialTrend, TrendPoint{Date: date.String, Score: sentimentScore(fin)})
		trend.OverallTrend = append(trend.OverallTrend, TrendPoint{Date: date.String, Score: sentimentScore(ovr)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(trend.FinancialTrend) == 0 {
		return nil, nil
	}
	return trend, nil
}

func sentimentScore(sentiment string) int {
	switch sentiment {
	case "positive":
		return 1
	case "negative":
		return -1
	default:
		return 0
	}
}

// Dashboard returns the headline counters and the sentiment distribution
// across both dimensions.
func (s *Store) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		SentimentDistribution: map[string]int{"positive": 0, "negative": 0, "neutral": 0},
	}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT entity_name) FROM sentiments").Scan(&stats.TotalEntities)
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT article_id) FROM sentiments").Scan(&stats.ArticlesAnalyzed)
	if err != nil {
		return nil, fmt.Errorf("count analyzed articles: %w", err)
	}
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sentiments").Scan(&stats.TotalSentimentPoints)
	if err != nil {
		return nil, fmt.Errorf("count sentiments: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sentiment, COUNT(*) FROM (
			SELECT financial_sentiment AS sentiment FROM sentiments
			UNION ALL
			SELECT overall_sentiment AS sentiment FROM sentiments
		) GROUP BY sentiment
	`)
	if err != nil {
		return nil, fmt.Errorf("sentiment distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sentiment string
		var count int
		if err := rows.Scan(&sentiment, &count); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		if _, ok := stats.SentimentDistribution[sentiment]; ok {
			stats.SentimentDistribution[sentiment] = count
		}
	}
	return stats, rows.Err()
}

// EntityArticles returns the articles mentioning an entity together with
// each mention's sentiments, for grouping by the caller.
func (s *Store) EntityArticles(ctx context.Context, entityName, entityType string) ([]ArticleRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.title, a.url, s.reasoning, s.financial_sentiment, s.overall_sentiment
		FROM sentiments s
		JOIN articles a ON s.article_id = a.id
		WHERE s.entity_name LIKE ? AND s.entity_type = ?
	`, "%"+entityName+"%", entityType)
	if err != nil {
		return nil, fmt.Errorf("entity articles: %w", err)
	}
	defer rows.Close()

	var out []ArticleRef
	for rows.Next() {
		var ref ArticleRef
		var title, reasoning sql.NullString
		if err := rows.Scan(&title, &ref.URL, &reasoning, &ref.FinancialSentiment, &ref.OverallSentiment); err != nil {
			return nil, fmt.Errorf("scan article ref: %w", err)
		}
		ref.Title = title.String
		ref.Reasoning = reasoning.String
		out = append(out, ref)
	}
	return out, rows.Err()
}

// ListUsage returns the raw usage log, newest first.
func (s *Store) ListUsage(ctx context.Context) ([]UsageEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, article_url, provider, model, prompt_tokens, completion_tokens,
		       total_tokens, total_cost_usd, outcome, timestamp
		FROM usage_logs ORDER BY timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	var out []UsageEntry
	for rows.Next() {
		var e UsageEntry
		var articleURL, model sql.NullString
		if err := rows.Scan(&e.ID, &articleURL, &e.Provider, &model, &e.PromptTokens,
			&e.CompletionTokens, &e.TotalTokens, &e.CostUSD, &e.Outcome, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan usage entry: %w", err)
		}
		e.ArticleURL = articleURL.String
		e.Model = model.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// SummarizeUsage aggregates calls, tokens and cost per provider.
func (s *Store) SummarizeUsage(ctx context.Context) ([]UsageSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(total_cost_usd), 0)
		FROM usage_logs GROUP BY provider ORDER BY provider
	`)
	if err != nil {
		return nil, fmt.Errorf("summarize usage: %w", err)
	}
	defer rows.Close()

	var out []UsageSummary
	for rows.Next() {
		var u UsageSummary
		if err := rows.Scan(&u.Provider, &u.TotalCalls, &u.TotalTokens, &u.TotalCost); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// LastRun returns the most recent pipeline run summary, or nil when no
// run has finished yet.
func (s *Store) LastRun(ctx context.Context) (*engine.RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT provider, model, status, started_at, finished_at,
		       articles_total, articles_stored, extraction_failed, analysis_failed, sentiment_rows, error
		FROM pipeline_runs ORDER BY started_at DESC, id DESC LIMIT 1
	`)

	var run engine.RunSummary
	var provider, model, errMsg sql.NullString
	var status string
	err := row.Scan(&provider, &model, &status, &run.StartedAt, &run.FinishedAt,
		&run.ArticlesTotal, &run.ArticlesStored, &run.ExtractionFailed,
		&run.AnalysisFailed, &run.SentimentRows, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	run.Provider = provider.String
	run.Model = model.String
	run.Status = engine.Status(strings.ToLower(status))
	run.Error = errMsg.String
	return &run, nil
}
