// Package scheduler triggers one pipeline run per day at a configured
// UTC time of day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rohitw3code/sentinews-api/internal/engine"
)

// Settings is the persisted schedule: a daily UTC fire time and an
// enabled flag. Disabled keeps the loop alive but fires nothing.
type Settings struct {
	Enabled bool `json:"enabled"`
	Hour    int  `json:"hour"`
	Minute  int  `json:"minute"`
}

// Validate checks the fire time is a real UTC time of day.
func (s Settings) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("hour must be 0-23, got %d", s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("minute must be 0-59, got %d", s.Minute)
	}
	return nil
}

// ConfigStore persists schedule settings across restarts.
type ConfigStore interface {
	LoadSchedule(ctx context.Context) (Settings, error)
	SaveSchedule(ctx context.Context, s Settings) error
}

// Starter admits pipeline runs. Satisfied by *engine.Engine.
type Starter interface {
	Start(provider, model string, sourceNames []string) error
}

// Scheduler owns the daily trigger loop. Reconfigure takes effect on
// the running loop without a restart.
type Scheduler struct {
	store    ConfigStore
	pipeline Starter
	provider string
	model    string
	logger   *slog.Logger

	mu       sync.Mutex
	settings Settings
	reload   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New builds a scheduler that starts runs with the given provider and
// model defaults. Settings are loaded from the store on Run.
func New(store ConfigStore, pipeline Starter, provider, model string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		pipeline: pipeline,
		provider: provider,
		model:    model,
		logger:   logger.With("component", "scheduler"),
		reload:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Settings returns the current schedule.
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Reconfigure validates, persists and applies new settings. The loop
// re-arms its timer immediately.
func (s *Scheduler) Reconfigure(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveSchedule(ctx, settings); err != nil {
		return fmt.Errorf("persist schedule: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	select {
	case s.reload <- struct{}{}:
	default:
	}
	s.logger.Info("schedule updated",
		"enabled", settings.Enabled, "hour", settings.Hour, "minute", settings.Minute)
	return nil
}

// Run drives the trigger loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	settings, err := s.store.LoadSchedule(ctx)
	if err != nil {
		s.logger.Warn("failed to load schedule, scheduler disabled until reconfigured", "error", err)
		settings = Settings{}
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		"enabled", settings.Enabled, "hour", settings.Hour, "minute", settings.Minute)

	for {
		settings = s.Settings()
		fireAt := nextFire(time.Now().UTC(), settings.Hour, settings.Minute)
		timer := time.NewTimer(time.Until(fireAt))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return
		case <-s.done:
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return
		case <-s.reload:
			timer.Stop()
			continue
		case <-timer.C:
			if !s.Settings().Enabled {
				continue
			}
			s.fire()
		}
	}
}

// Stop shuts the loop down. Idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) fire() {
	s.logger.Info("scheduled pipeline trigger", "provider", s.provider, "model", s.model)
	if err := s.pipeline.Start(s.provider, s.model, nil); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			s.logger.Warn("scheduled run skipped, pipeline already running")
			return
		}
		s.logger.Error("scheduled run failed to start", "error", err)
	}
}

// nextFire returns the next occurrence of hour:minute UTC strictly
// after now.
func nextFire(now time.Time, hour, minute int) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}
