package engine

import (
	"time"

	"github.com/caretide/caretide/internal/errors"
)

// ItemKind identifies what a scheduled care item is.
type ItemKind string

const (
	KindMedication  ItemKind = "medication"
	KindVitals      ItemKind = "vitals"
	KindWellness    ItemKind = "wellness"
	KindAppointment ItemKind = "appointment"
	KindNote        ItemKind = "note"
)

// Policy controls how an incomplete item ages once its scheduled time passes.
type Policy string

const (
	// PolicyStrict items go overdue once the grace period elapses.
	PolicyStrict Policy = "strict"
	// PolicySoft items stay loggable for the rest of the day and never go
	// hard-overdue.
	PolicySoft Policy = "soft"
)

// PolicyTable maps item kinds to their overdue policy. Lookups are exhaustive
// over the known kinds: an unrecognized kind is an error, never a silent
// default.
type PolicyTable map[ItemKind]Policy

// DefaultPolicyTable returns the standard kind policies: medications and
// appointments age strictly, everything loggable-at-leisure is soft.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		KindMedication:  PolicyStrict,
		KindAppointment: PolicyStrict,
		KindVitals:      PolicySoft,
		KindWellness:    PolicySoft,
		KindNote:        PolicySoft,
	}
}

// For resolves the policy for a kind.
func (t PolicyTable) For(kind ItemKind) (Policy, error) {
	if p, ok := t[kind]; ok {
		return p, nil
	}
	switch kind {
	case KindMedication, KindAppointment:
		return PolicyStrict, nil
	case KindVitals, KindWellness, KindNote:
		return PolicySoft, nil
	default:
		return "", errors.Wrap(errors.ErrUnknownKind, "ENGINE_001", "unknown item kind: "+string(kind))
	}
}

// TimeWindow is one of the four named segments partitioning a day.
type TimeWindow string

const (
	WindowMorning   TimeWindow = "morning"
	WindowAfternoon TimeWindow = "afternoon"
	WindowEvening   TimeWindow = "evening"
	WindowNight     TimeWindow = "night"
)

// WindowOrder lists the windows in display order.
var WindowOrder = []TimeWindow{WindowMorning, WindowAfternoon, WindowEvening, WindowNight}

// ItemStatus is the derived lifecycle status of a scheduled item. It is
// recomputed on every evaluation and never persisted; only completedAt and
// skipped are stored facts.
type ItemStatus string

const (
	StatusUpcoming  ItemStatus = "upcoming"
	StatusNext      ItemStatus = "next"
	StatusAvailable ItemStatus = "available"
	StatusOverdue   ItemStatus = "overdue"
	StatusDone      ItemStatus = "done"
	StatusMissed    ItemStatus = "missed"
	StatusSkipped   ItemStatus = "skipped"
)

// ScheduledItem is a read-only snapshot of one scheduled occurrence. The
// caller's store owns the underlying record; the engine only derives from it.
type ScheduledItem struct {
	ID           string
	Kind         ItemKind
	Title        string
	MedicationID string // set for medication occurrences
	// ScheduledAt is zero when the upstream timestamp could not be parsed;
	// such items resolve to the morning window fallback.
	ScheduledAt time.Time
	CompletedAt *time.Time
	Skipped     bool
	// Seq is the creation/insertion order, used as a stable sort tiebreak.
	Seq int
}

// Done reports whether the item has a completion recorded.
func (s ScheduledItem) Done() bool { return s.CompletedAt != nil }

// Pending reports whether the item still wants action.
func (s ScheduledItem) Pending() bool { return s.CompletedAt == nil && !s.Skipped }

// Medication is the subset of medication facts the engine needs.
type Medication struct {
	ID     string
	Name   string
	Dosage string
	Active bool
}

// VitalKind identifies a vital-sign series.
type VitalKind string

const (
	VitalBloodPressure VitalKind = "blood_pressure"
	VitalHeartRate     VitalKind = "heart_rate"
	VitalSpO2          VitalKind = "spo2"
	VitalTemperature   VitalKind = "temperature"
	VitalGlucose       VitalKind = "glucose"
	VitalWeight        VitalKind = "weight"
)

// VitalReading is a single measured value. Secondary carries the diastolic
// value for blood pressure and is zero otherwise.
type VitalReading struct {
	Kind      VitalKind
	Value     float64
	Secondary float64
	Unit      string
	TakenAt   time.Time
}

// RangeClass is the reference-range judgment of a reading.
type RangeClass string

const (
	RangeNormal   RangeClass = "normal"
	RangeAbnormal RangeClass = "abnormal"
	// RangeUnknown means no reference range exists for the kind (e.g. weight).
	RangeUnknown RangeClass = "unknown"
)

// Severity grades a red flag.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DailySample is one day's aggregate of a monitored metric. Metric is either
// a VitalKind or a wellness series such as "mood". Secondary carries the
// diastolic value for blood pressure samples.
type DailySample struct {
	Day       time.Time
	Metric    string
	Value     float64
	Secondary float64
	Unit      string
}

// RedFlag is a detected multi-day trend worth surfacing to a caregiver.
// Rendering the human-readable description is left to consumers.
type RedFlag struct {
	Category string
	Severity Severity
	// Evidence lists the contributing samples in date order.
	Evidence []DailySample
}

// Config holds the engine tunables. It is threaded in at construction so the
// engine carries no ambient globals.
type Config struct {
	// GracePeriod is the delay after a scheduled time before a strict item
	// goes overdue.
	GracePeriod time.Duration
	Windows     WindowBounds
	// TomorrowPreviewLimit bounds how many next-day items a timeline surfaces.
	TomorrowPreviewLimit int
	// DebounceWindow suppresses duplicate completion requests for the same
	// item arriving within this interval.
	DebounceWindow time.Duration
	// TrendMinRun is the minimum number of qualifying consecutive days before
	// a red flag is declared.
	TrendMinRun int
}

// WindowBounds holds the opening hour of each window. A boundary hour belongs
// to the window it opens.
type WindowBounds struct {
	MorningStart   int
	AfternoonStart int
	EveningStart   int
	NightStart     int
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		GracePeriod:          30 * time.Minute,
		Windows:              WindowBounds{MorningStart: 5, AfternoonStart: 12, EveningStart: 17, NightStart: 21},
		TomorrowPreviewLimit: 3,
		DebounceWindow:       2 * time.Second,
		TrendMinRun:          3,
	}
}
