package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rohitw3code/sentinews-api/internal/analysis"
	"github.com/Rohitw3code/sentinews-api/internal/engine"
	"github.com/Rohitw3code/sentinews-api/internal/scheduler"
	"github.com/Rohitw3code/sentinews-api/internal/sources"
	"github.com/Rohitw3code/sentinews-api/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(context.Background(), db, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func saveArticle(t *testing.T, s *Store, url, title, pubDate string) int64 {
	t.Helper()
	id, err := s.SaveArticle(context.Background(), &sources.Article{
		URL:       url,
		Source:    "zawya.com",
		Title:     title,
		Author:    "Staff",
		Published: pubDate,
		Body:      "body",
		RawText:   "raw",
		ScrapedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestArticleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "https://www.zawya.com/en/markets/story-one"

	exists, err := s.ExistsURL(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("url must not exist before save")
	}

	id := saveArticle(t, s, url, "Story one", "2026-08-20")

	exists, err = s.ExistsURL(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("url must exist after save")
	}

	err = s.SaveEntitySentiments(ctx, id, []analysis.EntitySentiment{
		{EntityName: "Emirates NBD", EntityType: "company", FinancialSentiment: "positive", OverallSentiment: "neutral", Reasoning: "earnings"},
		{EntityName: "Bitcoin", EntityType: "crypto", FinancialSentiment: "negative", OverallSentiment: "negative", Reasoning: "selloff"},
	})
	if err != nil {
		t.Fatal(err)
	}

	articles, err := s.ListArticles(ctx, ArticleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if len(articles[0].Sentiments) != 2 {
		t.Fatalf("expected 2 sentiment rows, got %d", len(articles[0].Sentiments))
	}
	if articles[0].Title != "Story one" || articles[0].URL != url {
		t.Fatalf("unexpected article: %+v", articles[0])
	}
}

func TestDuplicateURLRejected(t *testing.T) {
	s := newTestStore(t)
	url := "https://www.zawya.com/en/markets/dup"
	saveArticle(t, s, url, "First", "2026-08-20")

	_, err := s.SaveArticle(context.Background(), &sources.Article{URL: url, Source: "zawya.com", ScrapedAt: time.Now()})
	if err == nil {
		t.Fatal("expected unique constraint violation for duplicate url")
	}
}

func TestListArticles_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1 := saveArticle(t, s, "https://a/1", "Banks rally", "2026-08-21")
	id2 := saveArticle(t, s, "https://a/2", "Crypto slump", "2026-08-22")
	saveArticle(t, s, "https://a/3", "No entities", "2026-08-23")

	if err := s.SaveEntitySentiments(ctx, id1, []analysis.EntitySentiment{
		{EntityName: "Emirates NBD", EntityType: "company", FinancialSentiment: "positive", OverallSentiment: "positive"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveEntitySentiments(ctx, id2, []analysis.EntitySentiment{
		{EntityName: "Bitcoin", EntityType: "crypto", FinancialSentiment: "negative", OverallSentiment: "neutral"},
	}); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListArticles(ctx, ArticleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 articles unfiltered, got %d", len(all))
	}
	// Newest publication date first.
	if all[0].URL != "https://a/3" {
		t.Fatalf("expected newest first, got %s", all[0].URL)
	}

	byName, err := s.ListArticles(ctx, ArticleFilter{EntityName: "bitcoin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byName) != 1 || byName[0].ID != id2 {
		t.Fatalf("entity_name filter failed: %+v", byName)
	}

	byType, err := s.ListArticles(ctx, ArticleFilter{EntityType: "company"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byType) != 1 || byType[0].ID != id1 {
		t.Fatalf("entity_type filter failed: %+v", byType)
	}

	bySentiment, err := s.ListArticles(ctx, ArticleFilter{FinancialSentiment: "negative"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySentiment) != 1 || bySentiment[0].ID != id2 {
		t.Fatalf("financial_sentiment filter failed: %+v", bySentiment)
	}

	limited, err := s.ListArticles(ctx, ArticleFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit not applied, got %d", len(limited))
	}
}

func TestListEntitiesAndTopEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1 := saveArticle(t, s, "https://a/1", "One", "2026-08-21")
	id2 := saveArticle(t, s, "https://a/2", "Two", "2026-08-22")

	if err := s.SaveEntitySentiments(ctx, id1, []analysis.EntitySentiment{
		{EntityName: "Aramco", EntityType: "company", FinancialSentiment: "positive", OverallSentiment: "positive"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveEntitySentiments(ctx, id2, []analysis.EntitySentiment{
		{EntityName: "Aramco", EntityType: "company", FinancialSentiment: "positive", OverallSentiment: "neutral"},
		{EntityName: "Ethereum", EntityType: "crypto", FinancialSentiment: "positive", OverallSentiment: "negative"},
	}); err != nil {
		t.Fatal(err)
	}

	entities, err := s.ListEntities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 distinct entities, got %d", len(entities))
	}
	if entities[0].EntityName != "Aramco" || entities[1].EntityName != "Ethereum" {
		t.Fatalf("expected name-sorted entities, got %+v", entities)
	}

	top, err := s.TopEntities(ctx, TopEntitiesQuery{SentimentType: "financial", Sentiment: "positive", Descending: true, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 ranked entities, got %d", len(top))
	}
	if top[0].EntityName != "Aramco" || top[0].SentimentCount != 2 {
		t.Fatalf("unexpected ranking: %+v", top)
	}

	if _, err := s.TopEntities(ctx, TopEntitiesQuery{SentimentType: "bogus", Sentiment: "positive"}); err == nil {
		t.Fatal("expected error for invalid sentiment_type")
	}
	if _, err := s.TopEntities(ctx, TopEntitiesQuery{SentimentType: "overall", Sentiment: "bogus"}); err == nil {
		t.Fatal("expected error for invalid sentiment")
	}
}

func TestSentimentOverTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1 := saveArticle(t, s, "https://a/1", "One", "2026-08-20")
	id2 := saveArticle(t, s, "https://a/2", "Two", "2026-08-22")

	if err := s.SaveEntitySentiments(ctx, id1, []analysis.EntitySentiment{
		{EntityName: "Aramco", EntityType: "company", FinancialSentiment: "negative", OverallSentiment: "neutral"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveEntitySentiments(ctx, id2, []analysis.EntitySentiment{
		{EntityName: "Aramco", EntityType: "company", FinancialSentiment: "positive", OverallSentiment: "positive"},
	}); err != nil {
		t.Fatal(err)
	}

	trend, err := s.SentimentOverTime(ctx, "Aramco")
	if err != nil {
		t.Fatal(err)
	}
	if trend == nil {
		t.Fatal("expected trend data")
	}
	if len(trend.FinancialTrend) != 2 || len(trend.OverallTrend) != 2 {
		t.Fatalf("expected 2 points per dimension, got %+v", trend)
	}
	// Ascending by publication date; scores map positive=1, negative=-1, neutral=0.
	if trend.FinancialTrend[0].Score != -1 || trend.FinancialTrend[1].Score != 1 {
		t.Fatalf("unexpected financial trend: %+v", trend.FinancialTrend)
	}
	if trend.OverallTrend[0].Score != 0 || trend.OverallTrend[1].Score != 1 {
		t.Fatalf("unexpected overall trend: %+v", trend.OverallTrend)
	}

	missing, err := s.SentimentOverTime(ctx, "Unknown Corp")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("expected nil trend for unknown entity")
	}
}

func TestDashboard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Dashboard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty.TotalEntities != 0 || empty.TotalSentimentPoints != 0 {
		t.Fatalf("expected zeroed stats, got %+v", empty)
	}

	id := saveArticle(t, s, "https://a/1", "One", "2026-08-20")
	if err := s.SaveEntitySentiments(ctx, id, []analysis.EntitySentiment{
		{EntityName: "Aramco", EntityType: "company", FinancialSentiment: "positive", OverallSentiment: "negative"},
		{EntityName: "Bitcoin", EntityType: "crypto", FinancialSentiment: "neutral", OverallSentiment: "neutral"},
	}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Dashboard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntities != 2 || stats.ArticlesAnalyzed != 1 || stats.TotalSentimentPoints != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// Four sentiment assignments across both dimensions.
	if stats.SentimentDistribution["positive"] != 1 ||
		stats.SentimentDistribution["negative"] != 1 ||
		stats.SentimentDistribution["neutral"] != 2 {
		t.Fatalf("unexpected distribution: %+v", stats.SentimentDistribution)
	}
}

func TestEntityArticles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := saveArticle(t, s, "https://a/1", "One", "2026-08-20")
	if err := s.SaveEntitySentiments(ctx, id, []analysis.EntitySentiment{
		{EntityName: "Aramco", EntityType: "company", FinancialSentiment: "positive", OverallSentiment: "negative", Reasoning: "why"},
	}); err != nil {
		t.Fatal(err)
	}

	refs, err := s.EntityArticles(ctx, "aramco", "company")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 article ref, got %d", len(refs))
	}
	if refs[0].FinancialSentiment != "positive" || refs[0].OverallSentiment != "negative" || refs[0].Reasoning != "why" {
		t.Fatalf("unexpected ref: %+v", refs[0])
	}

	none, err := s.EntityArticles(ctx, "aramco", "crypto")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("type mismatch must return nothing, got %+v", none)
	}
}

func TestUsageLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	records := []*analysis.UsageRecord{
		{Provider: "openai", Model: "gpt-4o-mini", PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120, CostUSD: 0.00003, Outcome: analysis.OutcomeOK, ArticleURL: "https://a/1", Timestamp: base},
		{Provider: "openai", Model: "gpt-4o-mini", TotalTokens: 50, CostUSD: 0.00001, Outcome: analysis.OutcomeInvalidOutput, ArticleURL: "https://a/2", Timestamp: base.Add(time.Minute)},
		{Provider: "groq", Model: "llama3-8b-8192", TotalTokens: 80, Outcome: analysis.OutcomeOK, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		if err := s.AppendUsage(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.ListUsage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 usage entries, got %d", len(entries))
	}
	if entries[0].Provider != "groq" {
		t.Fatalf("expected newest first, got %+v", entries[0])
	}

	summary, err := s.SummarizeUsage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(summary))
	}
	// Sorted by provider: groq then openai.
	if summary[0].Provider != "groq" || summary[0].TotalCalls != 1 || summary[0].TotalTokens != 80 {
		t.Fatalf("unexpected groq summary: %+v", summary[0])
	}
	if summary[1].Provider != "openai" || summary[1].TotalCalls != 2 || summary[1].TotalTokens != 170 {
		t.Fatalf("unexpected openai summary: %+v", summary[1])
	}
}

func TestConfigAndSchedule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetConfig(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("missing key must report ok=false")
	}

	if err := s.SetConfig(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetConfig(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	value, ok, err := s.GetConfig(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || value != "v2" {
		t.Fatalf("expected v2, got %q ok=%v", value, ok)
	}

	empty, err := s.LoadSchedule(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty != (scheduler.Settings{}) {
		t.Fatalf("expected disabled default schedule, got %+v", empty)
	}

	want := scheduler.Settings{Enabled: true, Hour: 1, Minute: 30}
	if err := s.SaveSchedule(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadSchedule(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("schedule round trip failed: %+v", got)
	}
}

func TestPipelineRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	none, err := s.LastRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Fatal("expected nil before any run")
	}

	first := &engine.RunSummary{
		Provider: "openai", Model: "gpt-4o-mini", Status: engine.StatusCompleted,
		StartedAt:  time.Date(2026, 8, 22, 1, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 22, 1, 5, 0, 0, time.UTC),
		ArticlesTotal: 4, ArticlesStored: 3, ExtractionFailed: 1, SentimentRows: 7,
	}
	second := &engine.RunSummary{
		Provider: "groq", Model: "llama3-8b-8192", Status: engine.StatusFailed,
		StartedAt:  time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 23, 1, 1, 0, 0, time.UTC),
		Error:      "disk I/O error",
	}
	if err := s.SavePipelineRun(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.SavePipelineRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	last, err := s.LastRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil {
		t.Fatal("expected a run")
	}
	if last.Provider != "groq" || last.Status != engine.StatusFailed || last.Error != "disk I/O error" {
		t.Fatalf("unexpected last run: %+v", last)
	}
}
