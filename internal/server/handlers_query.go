package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Rohitw3code/sentinews-api/internal/store"
)

func (s *Server) handleArticles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.ArticleFilter{
			EntityName:         q.Get("entity_name"),
			EntityType:         q.Get("entity_type"),
			FinancialSentiment: q.Get("financial_sentiment"),
			OverallSentiment:   q.Get("overall_sentiment"),
		}
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}

		articles, err := s.queries.ListArticles(r.Context(), filter)
		if err != nil {
			s.logger.Error("article query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load articles")
			return
		}
		if articles == nil {
			articles = []store.ArticleWithSentiments{}
		}
		respondJSON(w, http.StatusOK, articles)
	}
}

func (s *Server) handleEntities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entities, err := s.queries.ListEntities(r.Context())
		if err != nil {
			s.logger.Error("entity query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load entities")
			return
		}
		if entities == nil {
			entities = []store.Entity{}
		}
		respondJSON(w, http.StatusOK, entities)
	}
}

func (s *Server) handleTopEntities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := store.TopEntitiesQuery{
			SentimentType: q.Get("sentiment_type"),
			Sentiment:     q.Get("sentiment"),
			Descending:    true,
			Limit:         10,
		}
		if query.SentimentType == "" {
			query.SentimentType = "overall"
		}
		if query.Sentiment == "" {
			query.Sentiment = "positive"
		}
		switch strings.ToLower(q.Get("order")) {
		case "", "desc":
		case "asc":
			query.Descending = false
		default:
			respondError(w, http.StatusBadRequest, "invalid order, use asc or desc")
			return
		}
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			query.Limit = n
		}

		ranked, err := s.queries.TopEntities(r.Context(), query)
		if err != nil {
			if strings.HasPrefix(err.Error(), "invalid") {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.logger.Error("top entities query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load top entities")
			return
		}
		if ranked == nil {
			ranked = []store.EntityCount{}
		}
		respondJSON(w, http.StatusOK, ranked)
	}
}

func (s *Server) handleSentimentOverTime() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityName := r.URL.Query().Get("entity_name")
		if entityName == "" {
			respondError(w, http.StatusBadRequest, "an entity_name query parameter is required")
			return
		}

		trend, err := s.queries.SentimentOverTime(r.Context(), entityName)
		if err != nil {
			s.logger.Error("trend query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load sentiment trend")
			return
		}
		if trend == nil {
			respondError(w, http.StatusNotFound, "no sentiment data found for entity: "+entityName)
			return
		}
		respondJSON(w, http.StatusOK, trend)
	}
}

func (s *Server) handleDashboardStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.queries.Dashboard(r.Context())
		if err != nil {
			s.logger.Error("dashboard query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load dashboard stats")
			return
		}
		respondJSON(w, http.StatusOK, stats)
	}
}

// handleEntityArticlesBySentiment groups an entity's articles into six
// sentiment buckets, deduplicated by URL within each bucket.
func (s *Server) handleEntityArticlesBySentiment() http.HandlerFunc {
	type article struct {
		Title     string `json:"title"`
		URL       string `json:"url"`
		Reasoning string `json:"reasoning"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		entityName := r.URL.Query().Get("entity_name")
		entityType := r.URL.Query().Get("entity_type")
		if entityName == "" || entityType == "" {
			respondError(w, http.StatusBadRequest, "both entity_name and entity_type query parameters are required")
			return
		}

		refs, err := s.queries.EntityArticles(r.Context(), entityName, entityType)
		if err != nil {
			s.logger.Error("entity articles query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load entity articles")
			return
		}
		if len(refs) == 0 {
			respondError(w, http.StatusNotFound,
				"no articles found for entity '"+entityName+"' of type '"+entityType+"'")
			return
		}

		groups := map[string][]article{
			"positive_financial": {}, "negative_financial": {}, "neutral_financial": {},
			"positive_overall": {}, "negative_overall": {}, "neutral_overall": {},
		}
		seen := map[string]map[string]bool{}
		add := func(bucket string, ref store.ArticleRef) {
			if seen[bucket] == nil {
				seen[bucket] = map[string]bool{}
			}
			if seen[bucket][ref.URL] {
				return
			}
			seen[bucket][ref.URL] = true
			groups[bucket] = append(groups[bucket], article{Title: ref.Title, URL: ref.URL, Reasoning: ref.Reasoning})
		}
		for _, ref := range refs {
			add(ref.FinancialSentiment+"_financial", ref)
			add(ref.OverallSentiment+"_overall", ref)
		}
		respondJSON(w, http.StatusOK, groups)
	}
}

func (s *Server) handleUsageStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.URL.Query().Get("summarize"), "true") {
			summary, err := s.queries.SummarizeUsage(r.Context())
			if err != nil {
				s.logger.Error("usage summary query failed", "error", err)
				respondError(w, http.StatusInternalServerError, "failed to load usage stats")
				return
			}
			if summary == nil {
				summary = []store.UsageSummary{}
			}
			respondJSON(w, http.StatusOK, summary)
			return
		}

		entries, err := s.queries.ListUsage(r.Context())
		if err != nil {
			s.logger.Error("usage query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load usage stats")
			return
		}
		if entries == nil {
			entries = []store.UsageEntry{}
		}
		respondJSON(w, http.StatusOK, entries)
	}
}
