// Package engine implements the care timeline and adherence rules. Every
// function is a pure computation over an explicit snapshot and an explicit
// now: the engine never reads the system clock, never performs I/O, and
// degrades cleanly to empty results when handed an empty snapshot.
package engine

import "go.uber.org/zap"

// Engine evaluates care timelines, adherence, and trends.
type Engine struct {
	cfg      Config
	policies PolicyTable
	logger   *zap.Logger
}

// New creates an engine with the given tuning and kind policies. A nil
// policies table uses DefaultPolicyTable.
func New(cfg Config, policies PolicyTable, logger *zap.Logger) *Engine {
	if policies == nil {
		policies = DefaultPolicyTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, policies: policies, logger: logger}
}

// Config returns the engine's tuning.
func (e *Engine) Config() Config { return e.cfg }

// Policies returns the kind policy table.
func (e *Engine) Policies() PolicyTable { return e.policies }
