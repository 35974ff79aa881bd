// Package cron schedules the recurring maintenance jobs: the daily trend
// scan that persists red flags as insights, and the report cache sweep.
package cron

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/caretide/caretide/internal/config"
	"github.com/caretide/caretide/internal/engine"
	"github.com/caretide/caretide/internal/metrics"
	"github.com/caretide/caretide/internal/store"
)

// Runner manages scheduled job execution
type Runner struct {
	config  config.JobsConfig
	engine  *engine.Engine
	store   *store.Store
	logger  *zap.Logger
	cron    *cron.Cron
	mu      sync.RWMutex
	running bool
}

// NewRunner creates a new cron runner
func NewRunner(cfg config.JobsConfig, eng *engine.Engine, st *store.Store, logger *zap.Logger) *Runner {
	return &Runner{
		config: cfg,
		engine: eng,
		store:  st,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start registers the jobs and starts the scheduler
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("cron runner already running")
	}

	if _, err := r.cron.AddFunc(r.config.RedFlagScanCron, r.runRedFlagScan); err != nil {
		return fmt.Errorf("invalid red flag scan schedule: %w", err)
	}
	if _, err := r.cron.AddFunc(r.config.CacheSweepCron, r.runCacheSweep); err != nil {
		return fmt.Errorf("invalid cache sweep schedule: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("Cron runner started",
		zap.String("red_flag_scan", r.config.RedFlagScanCron),
		zap.String("cache_sweep", r.config.CacheSweepCron))
	return nil
}

// Stop stops the scheduler and waits for in-flight jobs
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("Cron runner stopped")
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// runRedFlagScan scans the last two weeks of daily samples and persists any
// red flags as insights
func (r *Runner) runRedFlagScan() {
	now := time.Now()
	from := now.AddDate(0, 0, -14)

	vitals, err := r.store.VitalsBetween(from, now)
	if err != nil {
		r.logger.Error("Red flag scan failed to load vitals", zap.Error(err))
		return
	}
	moods, err := r.store.MoodSamples(from, now)
	if err != nil {
		r.logger.Error("Red flag scan failed to load mood entries", zap.Error(err))
		return
	}

	report, err := r.engine.BuildReport(engine.ReportInput{
		From:    from,
		To:      now,
		Now:     now,
		Vitals:  store.EngineVitals(vitals),
		Samples: moods,
	})
	if err != nil {
		r.logger.Error("Red flag scan failed", zap.Error(err))
		return
	}

	for _, flag := range report.RedFlags {
		if err := r.store.SaveInsight(flag, now); err != nil {
			r.logger.Error("Failed to persist insight",
				zap.String("category", flag.Category),
				zap.Error(err))
			continue
		}
		metrics.RecordRedFlag(string(flag.Severity))
	}

	r.logger.Info("Red flag scan completed",
		zap.Int("flags", len(report.RedFlags)))
}

// runCacheSweep reclaims space from expired report cache entries
func (r *Runner) runCacheSweep() {
	if err := r.store.SweepReportCache(); err != nil {
		r.logger.Error("Cache sweep failed", zap.Error(err))
		return
	}
	r.logger.Debug("Cache sweep completed")
}
