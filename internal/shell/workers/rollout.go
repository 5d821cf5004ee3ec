// Package workers contains background loops that move submitted plans
// through their provisioning lifecycle.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/topoplan/internal/core/domain"
	"github.com/artpar/topoplan/internal/shell/store"
)

// Executor applies a single unit of a submitted plan.
type Executor interface {
	Apply(ctx context.Context, submissionID, unit string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, submissionID, unit string) error

func (f ExecutorFunc) Apply(ctx context.Context, submissionID, unit string) error {
	return f(ctx, submissionID, unit)
}

// DryRunExecutor logs each unit and reports success.
type DryRunExecutor struct {
	Logger *slog.Logger
}

func (e DryRunExecutor) Apply(ctx context.Context, submissionID, unit string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dry run: apply unit", "submission_id", submissionID, "unit", unit)
	return nil
}

// RolloutConfig configures the rollout worker.
type RolloutConfig struct {
	Interval      time.Duration
	MaxConcurrent int
	// CycleTimeout bounds a single polling cycle.
	CycleTimeout time.Duration
}

// DefaultRolloutConfig returns default configuration.
func DefaultRolloutConfig() RolloutConfig {
	return RolloutConfig{
		Interval:      5 * time.Second,
		MaxConcurrent: 3,
		CycleTimeout:  5 * time.Minute,
	}
}

// Rollout polls for pending and running submissions and applies their
// units in plan order.
type Rollout struct {
	store    store.Store
	executor Executor
	config   RolloutConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRollout creates a new rollout worker.
func NewRollout(s store.Store, executor Executor, config RolloutConfig, logger *slog.Logger) *Rollout {
	defaults := DefaultRolloutConfig()
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.CycleTimeout == 0 {
		config.CycleTimeout = defaults.CycleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = DryRunExecutor{Logger: logger}
	}

	return &Rollout{
		store:    s,
		executor: executor,
		config:   config,
		logger:   logger.With("component", "rollout"),
	}
}

// Start begins the rollout background goroutine.
func (r *Rollout) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.wg.Add(1)
	go r.run()
	r.logger.Info("rollout started", "interval", r.config.Interval, "max_concurrent", r.config.MaxConcurrent)
}

// Stop gracefully stops the rollout worker.
func (r *Rollout) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("rollout stopped")
}

func (r *Rollout) run() {
	defer r.wg.Done()

	// Run immediately on start
	r.RunOnce(r.ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(r.ctx)
		}
	}
}

// RunOnce processes every active submission once and waits for them.
func (r *Rollout) RunOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, r.config.CycleTimeout)
	defer cancel()

	subs, err := r.store.ListSubmissionsByStatus(ctx, domain.StatePending, domain.StateRunning)
	if err != nil {
		r.logger.Error("failed to list active submissions", "error", err)
		return
	}

	if len(subs) == 0 {
		return
	}

	r.logger.Debug("processing active submissions", "count", len(subs))

	sem := make(chan struct{}, r.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range subs {
		sub := &subs[i]
		wg.Add(1)
		go func(s *domain.Submission) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}
			r.processSubmission(ctx, s)
		}(sub)
	}

	wg.Wait()
}

func (r *Rollout) processSubmission(ctx context.Context, sub *domain.Submission) {
	logger := r.logger.With("submission_id", sub.ID, "name", sub.Name, "status", sub.Status)

	if sub.Status == domain.StatePending {
		if err := sub.Transition(domain.StateRunning); err != nil {
			logger.Error("failed to start submission", "error", err)
			return
		}
		if !r.save(ctx, sub, logger) {
			return
		}
		logger.Info("rollout started", "units", len(sub.Order))
	}

	for _, unit := range sub.Remaining() {
		if ctx.Err() != nil {
			// Left running; the next cycle resumes from Progress.
			return
		}
		if err := r.executor.Apply(ctx, sub.ID, unit); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.failSubmission(ctx, sub, fmt.Sprintf("unit %s: %v", unit, err), logger)
			return
		}
		if err := sub.Advance(); err != nil {
			r.failSubmission(ctx, sub, err.Error(), logger)
			return
		}
		if !r.save(ctx, sub, logger) {
			return
		}
		logger.Debug("unit applied", "unit", unit, "progress", sub.Progress)
	}

	if err := sub.Transition(domain.StateSucceeded); err != nil {
		logger.Error("failed to complete submission", "error", err)
		return
	}
	if r.save(ctx, sub, logger) {
		logger.Info("rollout complete", "units", len(sub.Order))
	}
}

func (r *Rollout) save(ctx context.Context, sub *domain.Submission, logger *slog.Logger) bool {
	if err := r.store.UpdateSubmission(ctx, sub); err != nil {
		logger.Error("failed to persist submission", "error", err)
		return false
	}
	return true
}

func (r *Rollout) failSubmission(ctx context.Context, sub *domain.Submission, errMsg string, logger *slog.Logger) {
	logger.Error("rollout failed", "error", errMsg)
	if err := sub.Fail(errMsg); err != nil {
		logger.Error("failed to mark submission failed", "error", err)
		return
	}
	r.save(ctx, sub, logger)
}
