package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rohitw3code/sentinews-api/pkg/llm"
)

// scriptedClient returns one canned result per Generate call.
type scriptedClient struct {
	responses []*llm.Response
	errs      []error
	calls     int
}

func (c *scriptedClient) Generate(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return nil, errors.New("no scripted response")
}

func (c *scriptedClient) Provider() llm.Provider { return llm.OpenAI }
func (c *scriptedClient) Close() error           { return nil }

type memorySink struct {
	records []*UsageRecord
	err     error
}

func (s *memorySink) AppendUsage(_ context.Context, rec *UsageRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func fastAnalyzer(client llm.Client, sink UsageSink) *Analyzer {
	a := NewAnalyzer(client, sink, nil)
	a.baseDelay = time.Microsecond
	return a
}

const validOutput = `{"entities":[{"entity_name":"International Business Machines","entity_type":"company","financial_sentiment":"positive","overall_sentiment":"neutral","reasoning":"Earnings beat expectations."}]}`

func TestAnalyze_Success(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{{
		Content:   validOutput,
		Model:     "gpt-4o-mini",
		TokensIn:  200,
		TokensOut: 40,
		Cost:      0.000054,
	}}}
	sink := &memorySink{}

	entities, err := fastAnalyzer(client, sink).Analyze(context.Background(), "https://example.com/a", "IBM beat earnings.")
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	if entities[0].EntityName != "International Business Machines" {
		t.Fatalf("unexpected entity name: %q", entities[0].EntityName)
	}
	if entities[0].FinancialSentiment != "positive" || entities[0].OverallSentiment != "neutral" {
		t.Fatalf("unexpected sentiments: %+v", entities[0])
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 usage record, got %d", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Outcome != OutcomeOK {
		t.Fatalf("expected outcome ok, got %q", rec.Outcome)
	}
	if rec.TotalTokens != 240 || rec.PromptTokens != 200 || rec.CompletionTokens != 40 {
		t.Fatalf("unexpected token counts: %+v", rec)
	}
	if rec.ArticleURL != "https://example.com/a" {
		t.Fatalf("unexpected article url: %q", rec.ArticleURL)
	}
}

func TestAnalyze_EmptyEntityListIsValid(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{{Content: `{"entities":[]}`, Model: "gpt-4o-mini"}}}
	sink := &memorySink{}

	entities, err := fastAnalyzer(client, sink).Analyze(context.Background(), "u", "Nothing relevant here.")
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 0 {
		t.Fatalf("expected no entities, got %d", len(entities))
	}
	if client.calls != 1 {
		t.Fatalf("empty list must not be retried, got %d calls", client.calls)
	}
}

func TestAnalyze_InvalidOutputRetriesThenSucceeds(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		{Content: `{"entities":[{"entity_name":"Tesla","entity_type":"automaker","financial_sentiment":"positive","overall_sentiment":"neutral"}]}`, Model: "gpt-4o-mini"},
		{Content: validOutput, Model: "gpt-4o-mini"},
	}}
	sink := &memorySink{}

	entities, err := fastAnalyzer(client, sink).Analyze(context.Background(), "u", "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", client.calls)
	}
	if len(sink.records) != 2 {
		t.Fatalf("expected a usage record per attempt, got %d", len(sink.records))
	}
	if sink.records[0].Outcome != OutcomeInvalidOutput || sink.records[1].Outcome != OutcomeOK {
		t.Fatalf("unexpected outcomes: %q, %q", sink.records[0].Outcome, sink.records[1].Outcome)
	}
}

func TestAnalyze_ExhaustedRetries(t *testing.T) {
	bad := &llm.Response{Content: `not json`, Model: "gpt-4o-mini"}
	client := &scriptedClient{responses: []*llm.Response{bad, bad, bad}}
	sink := &memorySink{}

	a := fastAnalyzer(client, sink)
	_, err := a.Analyze(context.Background(), "u", "text")

	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("expected AnalysisError, got %v", err)
	}
	if analysisErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", analysisErr.Attempts)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", client.calls)
	}
	if len(sink.records) != 3 {
		t.Fatalf("expected 3 usage records, got %d", len(sink.records))
	}
	for i, rec := range sink.records {
		if rec.Outcome != OutcomeInvalidOutput {
			t.Fatalf("record %d: expected invalid_output, got %q", i, rec.Outcome)
		}
	}
}

func TestAnalyze_NonRetryableProviderError(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("API error (status 401): invalid api key")}}
	sink := &memorySink{}

	_, err := fastAnalyzer(client, sink).Analyze(context.Background(), "u", "text")
	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("expected AnalysisError, got %v", err)
	}
	if analysisErr.Attempts != 1 {
		t.Fatalf("auth errors must not be retried, got %d attempts", analysisErr.Attempts)
	}
	if len(sink.records) != 1 || sink.records[0].Outcome != OutcomeProviderError {
		t.Fatalf("expected one provider_error record, got %+v", sink.records)
	}
}

func TestAnalyze_SinkFailureDoesNotBlock(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{{Content: validOutput, Model: "gpt-4o-mini"}}}
	sink := &memorySink{err: errors.New("disk full")}

	entities, err := fastAnalyzer(client, sink).Analyze(context.Background(), "u", "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected analysis to succeed despite sink failure, got %d entities", len(entities))
	}
}

func TestParseEntities_Validation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"valid", validOutput, false},
		{"empty list", `{"entities":[]}`, false},
		{"bad json", `{`, true},
		{"missing name", `{"entities":[{"entity_name":"","entity_type":"company","financial_sentiment":"neutral","overall_sentiment":"neutral"}]}`, true},
		{"bad type", `{"entities":[{"entity_name":"X","entity_type":"person","financial_sentiment":"neutral","overall_sentiment":"neutral"}]}`, true},
		{"bad financial", `{"entities":[{"entity_name":"X","entity_type":"crypto","financial_sentiment":"bullish","overall_sentiment":"neutral"}]}`, true},
		{"bad overall", `{"entities":[{"entity_name":"X","entity_type":"crypto","financial_sentiment":"neutral","overall_sentiment":"great"}]}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseEntities(tc.content)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 500 * time.Millisecond
	if d := backoffDelay(base, 0); d != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %v", d)
	}
	if d := backoffDelay(base, 2); d != 2*time.Second {
		t.Fatalf("expected 2s, got %v", d)
	}
	if d := backoffDelay(base, 10); d != 30*time.Second {
		t.Fatalf("expected 30s cap, got %v", d)
	}
}
