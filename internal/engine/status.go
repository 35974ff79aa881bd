package engine

import (
	"sort"
	"time"
)

// Placement is the derived window and status of one item at one evaluation.
type Placement struct {
	Window TimeWindow
	Status ItemStatus
	// Fallback is true when the item's timestamp was unparseable and the
	// morning window fallback was used.
	Fallback bool
}

// Classify derives exactly one status per item for the given now. It must be
// invoked over the whole set, not item-by-item: "next" is relative to all
// pending items, the chronologically earliest one in the active or nearest
// future window.
//
// Decision order, first match wins:
//
//	done      completedAt is set
//	skipped   explicitly skipped and not completed
//	overdue   strict policy, now past scheduledTime + grace; monotonic, a
//	          strict item stays overdue however far the clock advances
//	missed    soft policy, the item's calendar day ended without a log
//	available soft policy, the item's own window has closed
//	next      earliest pending item
//	upcoming  everything else
func (e *Engine) Classify(items []ScheduledItem, now time.Time) (map[string]Placement, error) {
	placements := make(map[string]Placement, len(items))

	// First pass: everything except "next", which needs the full pending set.
	var pending []ScheduledItem
	for _, item := range items {
		window, parsed := e.cfg.ResolveWindow(item.ScheduledAt)
		p := Placement{Window: window, Fallback: !parsed}

		policy, err := e.policies.For(item.Kind)
		if err != nil {
			return nil, err
		}

		switch {
		case item.Done():
			p.Status = StatusDone
		case item.Skipped:
			p.Status = StatusSkipped
		case !parsed:
			// Unknown schedule time: keep the item actionable without
			// alarming, and never promote it to "next".
			p.Status = StatusAvailable
		case policy == PolicyStrict && now.After(item.ScheduledAt.Add(e.cfg.GracePeriod)):
			p.Status = StatusOverdue
		case policy == PolicySoft && dayEnded(item.ScheduledAt, now) && now.After(e.cfg.windowEnd(item.ScheduledAt)):
			// The night window outlives its calendar day, so a day-ended item
			// is only missed once its own window has also closed.
			p.Status = StatusMissed
		case policy == PolicySoft && now.After(e.cfg.windowEnd(item.ScheduledAt)):
			p.Status = StatusAvailable
		default:
			p.Status = StatusUpcoming
			pending = append(pending, item)
		}
		placements[item.ID] = p
	}

	if next, ok := earliest(pending); ok {
		p := placements[next.ID]
		p.Status = StatusNext
		placements[next.ID] = p
	}

	return placements, nil
}

// earliest picks the chronologically first item, breaking ties on insertion
// order so repeated evaluations are deterministic.
func earliest(items []ScheduledItem) (ScheduledItem, bool) {
	if len(items) == 0 {
		return ScheduledItem{}, false
	}
	best := items[0]
	for _, it := range items[1:] {
		if it.ScheduledAt.Before(best.ScheduledAt) ||
			(it.ScheduledAt.Equal(best.ScheduledAt) && it.Seq < best.Seq) {
			best = it
		}
	}
	return best, true
}

// dayEnded reports whether now is on a later calendar day than t.
func dayEnded(t, now time.Time) bool {
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if ny != ty {
		return ny > ty
	}
	if nm != tm {
		return nm > tm
	}
	return nd > td
}

// sortItems orders items ascending by scheduled time with a stable insertion
// order tiebreak. Unparseable (zero) times sort first.
func sortItems(items []ScheduledItem) []ScheduledItem {
	out := make([]ScheduledItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
