package engine

import "time"

// ResolveWindow maps a wall-clock timestamp to its time window. The four
// windows exhaustively and disjointly partition the 24-hour clock, with night
// wrapping midnight. A boundary hour belongs to the window it opens: 05:00 is
// morning, 21:00 is night.
//
// A zero timestamp means the upstream value could not be parsed; it resolves
// to morning (the documented fallback) and ok is false so callers can attach
// a data-quality warning instead of failing.
func (c Config) ResolveWindow(t time.Time) (window TimeWindow, ok bool) {
	if t.IsZero() {
		return WindowMorning, false
	}
	return c.windowOfHour(t.Hour()), true
}

func (c Config) windowOfHour(hour int) TimeWindow {
	b := c.Windows
	switch {
	case hour >= b.MorningStart && hour < b.AfternoonStart:
		return WindowMorning
	case hour >= b.AfternoonStart && hour < b.EveningStart:
		return WindowAfternoon
	case hour >= b.EveningStart && hour < b.NightStart:
		return WindowEvening
	default:
		return WindowNight
	}
}

// windowEnd returns the instant the window containing t closes. The night
// window wraps midnight: a 22:00 slot closes at 05:00 the next day while a
// 02:00 slot closes at 05:00 the same day.
func (c Config) windowEnd(t time.Time) time.Time {
	b := c.Windows
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch c.windowOfHour(t.Hour()) {
	case WindowMorning:
		return day.Add(time.Duration(b.AfternoonStart) * time.Hour)
	case WindowAfternoon:
		return day.Add(time.Duration(b.EveningStart) * time.Hour)
	case WindowEvening:
		return day.Add(time.Duration(b.NightStart) * time.Hour)
	default:
		if t.Hour() >= b.NightStart {
			day = day.AddDate(0, 0, 1)
		}
		return day.Add(time.Duration(b.MorningStart) * time.Hour)
	}
}
