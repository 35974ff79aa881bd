package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caretide/caretide/internal/engine"
)

// RenderReport formats a built report for the terminal. Every format reads
// the same ReportData; none recomputes a fact.
func RenderReport(report *engine.ReportData, format string) (string, error) {
	switch format {
	case "", "text":
		return renderText(report), nil
	case "json":
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode report: %w", err)
		}
		return string(b) + "\n", nil
	case "yaml":
		b, err := yaml.Marshal(report)
		if err != nil {
			return "", fmt.Errorf("failed to encode report: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, or yaml)", format)
	}
}

func renderText(r *engine.ReportData) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Care Report  %s to %s\n", r.From.Format("Jan 2"), r.To.Format("Jan 2, 2006"))
	sb.WriteString(strings.Repeat("=", 40) + "\n\n")

	s := r.Summary
	fmt.Fprintf(&sb, "Medications: %d of %d taken\n", s.MedsTaken, s.MedsTotal)
	fmt.Fprintf(&sb, "Vitals recorded: %s\n", yesNo(s.VitalsRecorded))
	fmt.Fprintf(&sb, "Wellness logged: %d\n", s.WellnessLogged)
	fmt.Fprintf(&sb, "Appointments today: %d\n", s.AppointmentsToday)
	sb.WriteString("\n")

	if len(r.Adherence) > 0 {
		sb.WriteString("Adherence\n---------\n")
		for _, rec := range r.Adherence {
			fmt.Fprintf(&sb, "  %-24s %s  (%d/%d", rec.Name, pct(rec.Percentage), rec.Taken, rec.Scheduled)
			if rec.Late > 0 {
				fmt.Fprintf(&sb, ", %d late", rec.Late)
			}
			sb.WriteString(")\n")
		}
		fmt.Fprintf(&sb, "  %-24s %s  (%d/%d)\n", "overall", pct(r.Aggregate.Percentage), r.Aggregate.Taken, r.Aggregate.Scheduled)
		sb.WriteString("\n")
	}

	if len(r.Vitals) > 0 {
		sb.WriteString("Vitals\n------\n")
		for _, v := range r.Vitals {
			fmt.Fprintf(&sb, "  %s  %-16s %s", v.Reading.TakenAt.Format("Jan 2 15:04"), v.Reading.Kind, formatReading(v.Reading))
			if v.Class == engine.RangeAbnormal {
				sb.WriteString("  [out of range]")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(r.RedFlags) > 0 {
		sb.WriteString("Red Flags\n---------\n")
		for _, f := range r.RedFlags {
			fmt.Fprintf(&sb, "  [%s] %s over %d days\n", strings.ToUpper(string(f.Severity)), f.Category, len(f.Evidence))
		}
		sb.WriteString("\n")
	}

	if len(r.Notes) > 0 {
		sb.WriteString("Notes\n-----\n")
		for _, n := range r.Notes {
			fmt.Fprintf(&sb, "  %s (%s): %s\n", n.At.Format("Jan 2 15:04"), n.Author, n.Text)
		}
		sb.WriteString("\n")
	}

	if len(r.Activity) > 0 {
		sb.WriteString("Team Activity\n-------------\n")
		for _, a := range r.Activity {
			fmt.Fprintf(&sb, "  %s  %s %s\n", a.At.Format("Jan 2 15:04"), a.Actor, a.Action)
		}
		sb.WriteString("\n")
	}

	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "Warning: %s\n", w)
	}

	return sb.String()
}

// RenderDashboard formats the current dashboard state for the terminal.
func RenderDashboard(d engine.Dashboard) string {
	var sb strings.Builder

	switch d.State {
	case engine.StateEmpty:
		sb.WriteString("Nothing scheduled today.\n")
	case engine.StateCaughtUp:
		sb.WriteString("All caught up.\n")
	case engine.StateEndOfDay:
		sb.WriteString("Day complete. See tomorrow's preview on the timeline.\n")
	case engine.StateUpNext:
		if d.Spotlight != nil {
			verb := "Up next"
			if d.Spotlight.Status == engine.StatusOverdue {
				verb = "Overdue"
			}
			fmt.Fprintf(&sb, "%s: %s", verb, d.Spotlight.Item.Title)
			if !d.Spotlight.Item.ScheduledAt.IsZero() {
				fmt.Fprintf(&sb, " (%s)", d.Spotlight.Item.ScheduledAt.Format("15:04"))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func pct(p *int) string {
	if p == nil {
		return "  --"
	}
	return fmt.Sprintf("%3d%%", *p)
}

func formatReading(v engine.VitalReading) string {
	if v.Kind == engine.VitalBloodPressure {
		return fmt.Sprintf("%.0f/%.0f %s", v.Value, v.Secondary, v.Unit)
	}
	return fmt.Sprintf("%.1f %s", v.Value, v.Unit)
}
