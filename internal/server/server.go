// Package server provides the REST API for pipeline control and
// sentiment queries.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rohitw3code/sentinews-api/internal/engine"
	"github.com/Rohitw3code/sentinews-api/internal/scheduler"
	"github.com/Rohitw3code/sentinews-api/internal/store"
)

// Pipeline is the control surface over the engine.
type Pipeline interface {
	Start(provider, model string, sourceNames []string) error
	Stop() error
	Status() engine.RunState
}

// Schedule is the control surface over the daily trigger.
type Schedule interface {
	Settings() scheduler.Settings
	Reconfigure(ctx context.Context, settings scheduler.Settings) error
}

// Queries is the read side backed by the store.
type Queries interface {
	ListArticles(ctx context.Context, filter store.ArticleFilter) ([]store.ArticleWithSentiments, error)
	ListEntities(ctx context.Context) ([]store.Entity, error)
	TopEntities(ctx context.Context, q store.TopEntitiesQuery) ([]store.EntityCount, error)
	SentimentOverTime(ctx context.Context, entityName string) (*store.SentimentTrend, error)
	Dashboard(ctx context.Context) (*store.DashboardStats, error)
	EntityArticles(ctx context.Context, entityName, entityType string) ([]store.ArticleRef, error)
	ListUsage(ctx context.Context) ([]store.UsageEntry, error)
	SummarizeUsage(ctx context.Context) ([]store.UsageSummary, error)
	LastRun(ctx context.Context) (*engine.RunSummary, error)
}

// Server holds the API dependencies.
type Server struct {
	pipeline     Pipeline
	schedule     Schedule
	queries      Queries
	sourceNames  []string
	passwordHash []byte
	jwtSecret    []byte
	logger       *slog.Logger
}

// NewServer wires the API against its collaborators. sourceNames is the
// fixed list of registered scrapers.
func NewServer(pipeline Pipeline, schedule Schedule, queries Queries, sourceNames []string, passwordHash, jwtSecret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		pipeline:     pipeline,
		schedule:     schedule,
		queries:      queries,
		sourceNames:  sourceNames,
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		logger:       logger.With("component", "api"),
	}
}

// Routes returns the configured http.Handler for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Auth (public)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin())

	// Pipeline control (admin)
	mux.Handle("POST /api/trigger_pipeline", s.requireAuthHandler(http.HandlerFunc(s.handleTriggerPipeline())))
	mux.Handle("POST /api/stop_pipeline", s.requireAuthHandler(http.HandlerFunc(s.handleStopPipeline())))
	mux.Handle("POST /api/configure_schedule", s.requireAuthHandler(http.HandlerFunc(s.handleConfigureSchedule())))

	// Reads (public)
	mux.HandleFunc("GET /api/pipeline_status", s.handlePipelineStatus())
	mux.HandleFunc("GET /api/pipeline_last_run", s.handlePipelineLastRun())
	mux.HandleFunc("GET /api/scrapers", s.handleListScrapers())
	mux.HandleFunc("GET /api/schedule", s.handleGetSchedule())
	mux.HandleFunc("GET /api/articles", s.handleArticles())
	mux.HandleFunc("GET /api/entities", s.handleEntities())
	mux.HandleFunc("GET /api/top_entities", s.handleTopEntities())
	mux.HandleFunc("GET /api/sentiment_over_time", s.handleSentimentOverTime())
	mux.HandleFunc("GET /api/dashboard_stats", s.handleDashboardStats())
	mux.HandleFunc("GET /api/entity_articles_by_sentiment", s.handleEntityArticlesBySentiment())
	mux.HandleFunc("GET /api/usage_stats", s.handleUsageStats())

	return s.withCORS(s.withLogging(mux))
}

// withCORS allows browser dashboards on any origin to call the API.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
