package server

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/Rohitw3code/sentinews-api/internal/engine"
	"github.com/Rohitw3code/sentinews-api/internal/scheduler"
)

var scheduleTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// handleTriggerPipeline starts a run in the background.
func (s *Server) handleTriggerPipeline() http.HandlerFunc {
	type request struct {
		Provider  string   `json:"provider"`
		ModelName string   `json:"model_name"`
		Scrapers  []string `json:"scrapers"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil && r.ContentLength > 0 {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := s.pipeline.Start(req.Provider, req.ModelName, req.Scrapers)
		if errors.Is(err, engine.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, "a pipeline is already running")
			return
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{
			"message": "pipeline triggered successfully in the background",
		})
	}
}

// handleStopPipeline requests cooperative cancellation.
func (s *Server) handleStopPipeline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.pipeline.Stop()
		if errors.Is(err, engine.ErrNotRunning) {
			respondError(w, http.StatusNotFound, "no pipeline is currently running")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{
			"message": "pipeline stop signal sent, it will terminate shortly",
		})
	}
}

// handlePipelineStatus returns the live run state snapshot.
func (s *Server) handlePipelineStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.pipeline.Status())
	}
}

// handlePipelineLastRun returns the most recent run summary.
func (s *Server) handlePipelineLastRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := s.queries.LastRun(r.Context())
		if err != nil {
			s.logger.Error("last run query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load last run")
			return
		}
		if run == nil {
			respondError(w, http.StatusNotFound, "no previous pipeline run found")
			return
		}
		respondJSON(w, http.StatusOK, run)
	}
}

// handleListScrapers lists registered source names.
func (s *Server) handleListScrapers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.sourceNames)
	}
}

// handleConfigureSchedule updates the daily UTC trigger time.
func (s *Server) handleConfigureSchedule() http.HandlerFunc {
	type request struct {
		ScheduleTime string `json:"schedule_time"`
		Enabled      *bool  `json:"enabled"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !scheduleTimePattern.MatchString(req.ScheduleTime) {
			respondError(w, http.StatusBadRequest, "invalid time format, use HH:MM")
			return
		}

		parts := strings.SplitN(req.ScheduleTime, ":", 2)
		hour, _ := strconv.Atoi(parts[0])
		minute, _ := strconv.Atoi(parts[1])

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		settings := scheduler.Settings{Enabled: enabled, Hour: hour, Minute: minute}
		if err := s.schedule.Reconfigure(r.Context(), settings); err != nil {
			s.logger.Error("schedule update failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to update schedule")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "pipeline schedule updated successfully to " + req.ScheduleTime + " UTC",
		})
	}
}

// handleGetSchedule returns the current trigger settings.
func (s *Server) handleGetSchedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.schedule.Settings())
	}
}
