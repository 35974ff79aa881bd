package engine

import (
	"context"
	"sync"
	"time"

	"github.com/caretide/caretide/internal/errors"
	"go.uber.org/zap"
)

// CompletionSnapshot is the stored completion state of an item at one read.
type CompletionSnapshot struct {
	CompletedAt *time.Time
	Skipped     bool
}

// CompletionStore is the single write path into the caller's store. The
// store must apply SetCompletion atomically: compare the row against expect
// and reject the write with ErrStaleCompletion when it no longer matches, so
// near-simultaneous requests cannot corrupt undo tracking.
type CompletionStore interface {
	GetCompletion(ctx context.Context, itemID string) (CompletionSnapshot, error)
	SetCompletion(ctx context.Context, itemID string, next, expect CompletionSnapshot) error
}

type undoEntry struct {
	itemID string
	prior  CompletionSnapshot
}

// Completer mutates item completion state with bounded, single-level undo.
// It is the engine's only mutating component.
type Completer struct {
	store  CompletionStore
	cfg    Config
	logger *zap.Logger

	mu sync.Mutex
	// undo holds at most one pending reversal; a completion of a different
	// item discards it.
	undo *undoEntry
	// lastAccepted debounces duplicate taps per item.
	lastAccepted map[string]time.Time
}

// NewCompleter wires a completer to the store's write path.
func NewCompleter(store CompletionStore, cfg Config, logger *zap.Logger) *Completer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		store:        store,
		cfg:          cfg,
		logger:       logger,
		lastAccepted: make(map[string]time.Time),
	}
}

// Complete records a completion at the given timestamp. It is idempotent:
// re-completing an already-done item only updates the timestamp, and keeps
// the item's original undo record so one undo still restores the true
// pre-completion state. Duplicate calls for the same item inside the
// debounce window are dropped; wrote reports whether a write actually
// landed, so callers can count drops separately and skip their side effects.
func (c *Completer) Complete(ctx context.Context, itemID string, at time.Time) (wrote bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior, err := c.store.GetCompletion(ctx, itemID)
	if err != nil {
		return false, err
	}

	if last, ok := c.lastAccepted[itemID]; ok && prior.CompletedAt != nil {
		if d := at.Sub(last); d >= 0 && d < c.cfg.DebounceWindow {
			c.logger.Debug("duplicate completion dropped",
				zap.String("item_id", itemID),
				zap.Duration("since_last", d))
			return false, nil
		}
	}

	next := CompletionSnapshot{CompletedAt: &at, Skipped: prior.Skipped}
	if err := c.store.SetCompletion(ctx, itemID, next, prior); err != nil {
		return false, err
	}
	c.lastAccepted[itemID] = at

	if c.undo != nil && c.undo.itemID == itemID && prior.CompletedAt != nil {
		// Idempotent re-completion: the pending undo keeps pointing at the
		// state before the first completion.
	} else {
		c.undo = &undoEntry{itemID: itemID, prior: prior}
	}

	c.logger.Info("item completed",
		zap.String("item_id", itemID),
		zap.Time("at", at))
	return true, nil
}

// Undo reverses exactly the most recent completion, restoring the item's
// prior stored state, and returns the affected item id. With nothing pending
// it returns ErrNothingToUndo.
func (c *Completer) Undo(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.undo == nil {
		return "", errors.ErrNothingToUndo
	}
	entry := c.undo

	current, err := c.store.GetCompletion(ctx, entry.itemID)
	if err != nil {
		return "", err
	}
	if err := c.store.SetCompletion(ctx, entry.itemID, entry.prior, current); err != nil {
		return "", err
	}

	c.undo = nil
	delete(c.lastAccepted, entry.itemID)
	c.logger.Info("completion undone", zap.String("item_id", entry.itemID))
	return entry.itemID, nil
}

// CanUndo reports whether a reversal is pending.
func (c *Completer) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.undo != nil
}
