package engine

import "time"

// TimelineEntry pairs an item with its derived placement.
type TimelineEntry struct {
	Item   ScheduledItem `json:"item"`
	Window TimeWindow    `json:"window"`
	Status ItemStatus    `json:"status"`
}

// WindowGroup is one window's entries, sorted by scheduled time.
type WindowGroup struct {
	Window  TimeWindow      `json:"window"`
	Entries []TimelineEntry `json:"entries"`
}

// TomorrowPreview is a bounded look at the next day.
type TomorrowPreview struct {
	Items []ScheduledItem `json:"items"`
	Total int             `json:"total"`
}

// DashboardState is the macro state of the day view.
type DashboardState string

const (
	// StateUpNext surfaces the most urgent actionable item.
	StateUpNext DashboardState = "up-next"
	// StateCaughtUp means everything today is done or skipped.
	StateCaughtUp DashboardState = "caught-up"
	// StateEndOfDay is caught-up during the night window; the UI prompts a
	// reflection note or mood log.
	StateEndOfDay DashboardState = "end-of-day"
	// StateEmpty means nothing was ever scheduled for today.
	StateEmpty DashboardState = "empty"
)

// Dashboard is the derived macro state plus the item it surfaces, if any.
type Dashboard struct {
	State     DashboardState `json:"state"`
	Spotlight *TimelineEntry `json:"spotlight,omitempty"`
}

// Timeline is the grouped day view handed to renderers.
type Timeline struct {
	Groups    []WindowGroup   `json:"groups"`
	Tomorrow  TomorrowPreview `json:"tomorrow"`
	Dashboard Dashboard       `json:"dashboard"`
	// FallbackCount is how many items needed the morning window fallback.
	FallbackCount int `json:"fallback_count"`
}

// AssembleTimeline groups today's items by window, sorted ascending by
// scheduled time with a stable insertion-order tiebreak, derives the
// dashboard state, and attaches a bounded tomorrow preview.
func (e *Engine) AssembleTimeline(today, tomorrow []ScheduledItem, now time.Time) (*Timeline, error) {
	placements, err := e.Classify(today, now)
	if err != nil {
		return nil, err
	}

	groups := make([]WindowGroup, 0, len(WindowOrder))
	fallbacks := 0
	sorted := sortItems(today)
	for _, w := range WindowOrder {
		g := WindowGroup{Window: w}
		for _, item := range sorted {
			p := placements[item.ID]
			if p.Window != w {
				continue
			}
			if p.Fallback {
				fallbacks++
			}
			g.Entries = append(g.Entries, TimelineEntry{Item: item, Window: w, Status: p.Status})
		}
		groups = append(groups, g)
	}

	preview := TomorrowPreview{Total: len(tomorrow)}
	next := sortItems(tomorrow)
	if len(next) > e.cfg.TomorrowPreviewLimit {
		next = next[:e.cfg.TomorrowPreviewLimit]
	}
	preview.Items = next

	dash := e.dashboard(sorted, placements, now)

	return &Timeline{
		Groups:        groups,
		Tomorrow:      preview,
		Dashboard:     dash,
		FallbackCount: fallbacks,
	}, nil
}

// AssembleDashboard derives only the macro state for today's items.
func (e *Engine) AssembleDashboard(today []ScheduledItem, now time.Time) (Dashboard, error) {
	placements, err := e.Classify(today, now)
	if err != nil {
		return Dashboard{}, err
	}
	return e.dashboard(sortItems(today), placements, now), nil
}

// dashboard picks the macro state by priority, first match wins:
//
//  1. any overdue item        -> up-next, surfacing the longest-overdue one
//  2. any pending item        -> up-next, surfacing the nearest one
//  3. all done/skipped, night -> end-of-day
//  4. all done/skipped        -> caught-up
//  5. nothing scheduled       -> empty
func (e *Engine) dashboard(sorted []ScheduledItem, placements map[string]Placement, now time.Time) Dashboard {
	if len(sorted) == 0 {
		return Dashboard{State: StateEmpty}
	}

	// Items come in sorted ascending, so the first match in each scan is the
	// earliest and therefore the most urgent.
	for _, item := range sorted {
		if p := placements[item.ID]; p.Status == StatusOverdue {
			return Dashboard{State: StateUpNext, Spotlight: &TimelineEntry{Item: item, Window: p.Window, Status: p.Status}}
		}
	}
	for _, item := range sorted {
		switch p := placements[item.ID]; p.Status {
		case StatusNext, StatusUpcoming, StatusAvailable:
			return Dashboard{State: StateUpNext, Spotlight: &TimelineEntry{Item: item, Window: p.Window, Status: p.Status}}
		}
	}

	if window, _ := e.cfg.ResolveWindow(now); window == WindowNight {
		return Dashboard{State: StateEndOfDay}
	}
	return Dashboard{State: StateCaughtUp}
}
