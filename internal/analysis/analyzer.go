// Package analysis turns article text into validated entity sentiment via an
// LLM, with retry on malformed output and per-attempt usage accounting.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Rohitw3code/sentinews-api/pkg/llm"
)

const (
	defaultMaxRetries = 3
	baseBackoff       = 500 * time.Millisecond
	maxBackoff        = 30 * time.Second
)

// Attempt outcomes recorded in usage logs.
const (
	OutcomeOK            = "ok"
	OutcomeInvalidOutput = "invalid_output"
	OutcomeProviderError = "provider_error"
)

// EntitySentiment is one validated entity extracted from an article,
// scored from two perspectives.
type EntitySentiment struct {
	EntityName         string `json:"entity_name"`
	EntityType         string `json:"entity_type"`
	FinancialSentiment string `json:"financial_sentiment"`
	OverallSentiment   string `json:"overall_sentiment"`
	Reasoning          string `json:"reasoning"`
}

// UsageRecord is one model invocation. One record is appended per attempt,
// including failed ones, so spend is never under-counted.
type UsageRecord struct {
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          float64   `json:"total_cost_usd"`
	Outcome          string    `json:"outcome"`
	ArticleURL       string    `json:"article_url,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// UsageSink receives usage records. Sink failures are logged and never
// interrupt analysis.
type UsageSink interface {
	AppendUsage(ctx context.Context, rec *UsageRecord) error
}

// AnalysisError reports that all attempts for one article were exhausted.
type AnalysisError struct {
	Attempts int
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Analyzer runs dual-perspective sentiment extraction against a provider
// client. Safe for use by a single pipeline goroutine.
type Analyzer struct {
	client     llm.Client
	sink       UsageSink
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewAnalyzer builds an analyzer with the default retry budget.
func NewAnalyzer(client llm.Client, sink UsageSink, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		client:     client,
		sink:       sink,
		logger:     logger.With("component", "analyzer"),
		maxRetries: defaultMaxRetries,
		baseDelay:  baseBackoff,
	}
}

// SetMaxRetries overrides the per-article attempt budget.
func (a *Analyzer) SetMaxRetries(n int) {
	if n > 0 {
		a.maxRetries = n
	}
}

// Analyze extracts entity sentiments from article text. Each attempt is
// an independent model call; malformed output and transient provider
// errors are retried with exponential backoff. articleURL is carried into
// usage records only.
func (a *Analyzer) Analyze(ctx context.Context, articleURL, text string) ([]EntitySentiment, error) {
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(a.baseDelay, attempt-1)
			a.logger.Warn("analysis attempt failed, retrying",
				"attempt", attempt,
				"max_retries", a.maxRetries,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := a.client.Generate(ctx, &llm.Request{
			System: systemPrompt,
			Messages: []llm.Message{
				{Role: "user", Content: text},
			},
			Temperature: 0,
			JSONMode:    true,
		})
		if err != nil {
			a.record(ctx, articleURL, nil, OutcomeProviderError)
			lastErr = err
			if !isRetryable(err) {
				return nil, &AnalysisError{Attempts: attempt + 1, Err: err}
			}
			continue
		}

		entities, err := parseEntities(resp.Content)
		if err != nil {
			a.record(ctx, articleURL, resp, OutcomeInvalidOutput)
			lastErr = err
			continue
		}

		a.record(ctx, articleURL, resp, OutcomeOK)
		return entities, nil
	}
	return nil, &AnalysisError{Attempts: a.maxRetries, Err: lastErr}
}

// record appends one usage row. resp may be nil when the call itself failed.
func (a *Analyzer) record(ctx context.Context, articleURL string, resp *llm.Response, outcome string) {
	if a.sink == nil {
		return
	}
	rec := &UsageRecord{
		Provider:   string(a.client.Provider()),
		Outcome:    outcome,
		ArticleURL: articleURL,
		Timestamp:  time.Now().UTC(),
	}
	if resp != nil {
		rec.Model = resp.Model
		rec.PromptTokens = resp.TokensIn
		rec.CompletionTokens = resp.TokensOut
		rec.TotalTokens = resp.TokensIn + resp.TokensOut
		rec.CostUSD = resp.Cost
	}
	if err := a.sink.AppendUsage(ctx, rec); err != nil {
		a.logger.Warn("failed to append usage record", "error", err)
	}
}

type analysisEnvelope struct {
	Entities []EntitySentiment `json:"entities"`
}

// parseEntities decodes and validates the model's JSON output. Any
// structural or enum violation makes the whole attempt invalid.
func parseEntities(content string) ([]EntitySentiment, error) {
	var envelope analysisEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	for i, e := range envelope.Entities {
		if strings.TrimSpace(e.EntityName) == "" {
			return nil, fmt.Errorf("entity %d: empty entity_name", i)
		}
		if e.EntityType != "company" && e.EntityType != "crypto" {
			return nil, fmt.Errorf("entity %d: invalid entity_type %q", i, e.EntityType)
		}
		if !validSentiment(e.FinancialSentiment) {
			return nil, fmt.Errorf("entity %d: invalid financial_sentiment %q", i, e.FinancialSentiment)
		}
		if !validSentiment(e.OverallSentiment) {
			return nil, fmt.Errorf("entity %d: invalid overall_sentiment %q", i, e.OverallSentiment)
		}
	}
	return envelope.Entities, nil
}

func validSentiment(s string) bool {
	return s == "positive" || s == "negative" || s == "neutral"
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// isRetryable reports whether a provider error is worth another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, keyword := range []string{"429", "500", "502", "503", "timeout", "connection reset"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

const systemPrompt = `You are a highly precise financial analyst. Your task is to extract only legitimate companies and cryptocurrencies from the provided text and analyze them from two different perspectives: financial sentiment and overall sentiment.

CRITICAL RULES:
1. RESOLVE FULL ENTITY NAME: You MUST return the full, official name of the entity (e.g., "IBM" becomes "International Business Machines").
2. DO NOT EXTRACT LOCATIONS: Ignore countries, cities, etc.
3. EMPTY LIST IS VALID: If you find no valid entities, return an empty list.

RULES FOR DUAL SENTIMENT ANALYSIS:
1. Financial Sentiment: strictly about quantitative performance (stocks, earnings). One of "positive", "negative", "neutral".
2. Overall Sentiment: about qualitative, operational news (products, partnerships). One of "positive", "negative", "neutral".

OUTPUT FORMAT:
Respond with a JSON object of the form {"entities": [...]}. Each entity object MUST contain all of: "entity_name", "entity_type" ("company" or "crypto"), "financial_sentiment", "overall_sentiment", "reasoning".`
