package engine

import (
	"fmt"
	"time"
)

// CareNote is a caregiver's free-text note, passed through reports verbatim.
type CareNote struct {
	ID     string    `json:"id"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// ActivityEntry is one care-team action, passed through reports verbatim.
type ActivityEntry struct {
	ID     string    `json:"id"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// ClassifiedVital pairs a reading with its range judgment.
type ClassifiedVital struct {
	Reading VitalReading `json:"reading"`
	Class   RangeClass   `json:"class"`
}

// Summary is the report's top line.
type Summary struct {
	MedsTaken         int  `json:"meds_taken"`
	MedsTotal         int  `json:"meds_total"`
	VitalsRecorded    bool `json:"vitals_recorded"`
	WellnessLogged    int  `json:"wellness_logged"`
	AppointmentsToday int  `json:"appointments_today"`
}

// ReportInput is the snapshot a report is built from.
type ReportInput struct {
	From, To    time.Time
	Now         time.Time
	Items       []ScheduledItem
	Vitals      []VitalReading
	Medications []Medication
	// Samples are extra daily aggregates (e.g. mood scores) to scan for
	// trends; daily vital samples are derived from Vitals internally.
	Samples      []DailySample
	Notes        []CareNote
	Activity     []ActivityEntry
	LookbackDays int
}

// ReportData is the renderer-agnostic aggregate. Every renderer (plain text,
// structured markup, interactive view) must consume this one structure and
// never recompute its facts. It is immutable once built.
type ReportData struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`

	Adherence []AdherenceRecord `json:"adherence"`
	Aggregate AdherenceRecord   `json:"aggregate"`

	Vitals   []ClassifiedVital `json:"vitals"`
	RedFlags []RedFlag         `json:"red_flags"`

	Notes    []CareNote      `json:"notes"`
	Activity []ActivityEntry `json:"activity"`

	// Warnings lists data-quality problems encountered while building, such
	// as items whose schedule time was unparseable and fell back to the
	// morning window. A degraded report never fails silently.
	Warnings []string `json:"warnings,omitempty"`
}

// BuildReport composes the period's facts into one ReportData. An empty
// snapshot degrades cleanly to zeroed summary fields, never an error.
func (e *Engine) BuildReport(in ReportInput) (*ReportData, error) {
	placements, err := e.Classify(in.Items, in.Now)
	if err != nil {
		return nil, err
	}

	report := &ReportData{
		From:        in.From,
		To:          in.To,
		GeneratedAt: in.Now,
		Notes:       in.Notes,
		Activity:    in.Activity,
	}

	fallbacks := 0
	for _, item := range in.Items {
		p := placements[item.ID]
		if p.Fallback {
			fallbacks++
		}
		switch item.Kind {
		case KindMedication:
			report.Summary.MedsTotal++
			if item.Done() {
				report.Summary.MedsTaken++
			}
		case KindWellness:
			if item.Done() {
				report.Summary.WellnessLogged++
			}
		case KindAppointment:
			if sameDay(item.ScheduledAt, in.Now) {
				report.Summary.AppointmentsToday++
			}
		}
	}
	if fallbacks > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"%d item(s) had unreadable schedule times and were grouped under the morning window", fallbacks))
	}

	report.Summary.VitalsRecorded = len(in.Vitals) > 0
	report.Vitals = make([]ClassifiedVital, 0, len(in.Vitals))
	for _, v := range in.Vitals {
		report.Vitals = append(report.Vitals, ClassifiedVital{Reading: v, Class: ClassifyReading(v)})
	}

	lookback := in.LookbackDays
	if lookback <= 0 {
		lookback = int(in.Now.Sub(in.From).Hours()/24) + 1
	}
	report.Adherence = e.ComputeAdherence(in.Medications, in.Items, in.Now, lookback)
	report.Aggregate = AggregateAdherence(report.Adherence)

	samples := append(dailyVitalSamples(in.Vitals), in.Samples...)
	report.RedFlags = e.DetectRedFlags(samples)

	return report, nil
}

// dailyVitalSamples reduces raw readings to one sample per kind per day (the
// last reading wins), the granularity the trend detector works at.
func dailyVitalSamples(vitals []VitalReading) []DailySample {
	type key struct {
		kind VitalKind
		day  string
	}
	latest := make(map[key]VitalReading)
	var order []key
	for _, v := range vitals {
		k := key{kind: v.Kind, day: v.TakenAt.Format("2006-01-02")}
		if prev, ok := latest[k]; !ok {
			order = append(order, k)
			latest[k] = v
		} else if v.TakenAt.After(prev.TakenAt) {
			latest[k] = v
		}
	}

	samples := make([]DailySample, 0, len(order))
	for _, k := range order {
		v := latest[k]
		day := time.Date(v.TakenAt.Year(), v.TakenAt.Month(), v.TakenAt.Day(), 0, 0, 0, 0, v.TakenAt.Location())
		samples = append(samples, DailySample{
			Day:       day,
			Metric:    string(v.Kind),
			Value:     v.Value,
			Secondary: v.Secondary,
			Unit:      v.Unit,
		})
	}
	return samples
}
