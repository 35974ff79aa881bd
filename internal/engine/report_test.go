package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportInput(now time.Time) ReportInput {
	return ReportInput{
		From:         now.AddDate(0, 0, -7),
		To:           now,
		Now:          now,
		LookbackDays: 7,
	}
}

func TestBuildReport_EmptySnapshot(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	report, err := e.BuildReport(reportInput(now))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Summary.MedsTotal)
	assert.False(t, report.Summary.VitalsRecorded)
	assert.Empty(t, report.Adherence)
	assert.Nil(t, report.Aggregate.Percentage)
	assert.Empty(t, report.RedFlags)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, now, report.GeneratedAt)
}

func TestBuildReport_SummaryCounts(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	taken := now.Add(-2 * time.Hour)

	in := reportInput(now)
	in.Medications = []Medication{{ID: "m1", Name: "Lisinopril"}}
	in.Items = []ScheduledItem{
		{ID: "d1", Kind: KindMedication, MedicationID: "m1",
			ScheduledAt: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), CompletedAt: &taken},
		{ID: "d2", Kind: KindMedication, MedicationID: "m1",
			ScheduledAt: time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)},
		{ID: "w1", Kind: KindWellness, Title: "Log lunch",
			ScheduledAt: time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC), CompletedAt: &taken},
		{ID: "a1", Kind: KindAppointment, Title: "Cardiology",
			ScheduledAt: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)},
		{ID: "a2", Kind: KindAppointment, Title: "Dentist",
			ScheduledAt: time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)},
	}

	report, err := e.BuildReport(in)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.MedsTotal)
	assert.Equal(t, 1, report.Summary.MedsTaken)
	assert.Equal(t, 1, report.Summary.WellnessLogged)
	assert.Equal(t, 1, report.Summary.AppointmentsToday)
}

func TestBuildReport_ClassifiesEveryVital(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	in := reportInput(now)
	in.Vitals = []VitalReading{
		{Kind: VitalBloodPressure, Value: 128, Secondary: 78, TakenAt: now.Add(-time.Hour)},
		{Kind: VitalGlucose, Value: 200, TakenAt: now.Add(-30 * time.Minute)},
	}

	report, err := e.BuildReport(in)
	require.NoError(t, err)

	assert.True(t, report.Summary.VitalsRecorded)
	require.Len(t, report.Vitals, 2)
	assert.Equal(t, RangeNormal, report.Vitals[0].Class)
	assert.Equal(t, RangeAbnormal, report.Vitals[1].Class)
}

func TestBuildReport_UnreadableSchedulesSurfaceAsWarning(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	in := reportInput(now)
	in.Items = []ScheduledItem{
		{ID: "x1", Kind: KindWellness, Title: "Stretch"},
		{ID: "x2", Kind: KindWellness, Title: "Walk"},
	}

	report, err := e.BuildReport(in)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "2 item(s)")
}

func TestBuildReport_RedFlagsFromRawVitals(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	// Two abnormal glucose readings on the 10th; the later one represents the
	// day. Three abnormal days in a row flag.
	in := reportInput(now)
	in.Vitals = []VitalReading{
		{Kind: VitalGlucose, Value: 195, TakenAt: time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)},
		{Kind: VitalGlucose, Value: 201, TakenAt: time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)},
		{Kind: VitalGlucose, Value: 120, TakenAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		{Kind: VitalGlucose, Value: 190, TakenAt: time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)},
	}

	report, err := e.BuildReport(in)
	require.NoError(t, err)
	require.Len(t, report.RedFlags, 1)
	assert.Equal(t, "glucose", report.RedFlags[0].Category)
	require.Len(t, report.RedFlags[0].Evidence, 3)
	assert.Equal(t, float64(190), report.RedFlags[0].Evidence[2].Value)
}

func TestBuildReport_ExternalSamplesFeedTrends(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	in := reportInput(now)
	in.Samples = []DailySample{
		sample("mood", 8, 7),
		sample("mood", 9, 5),
		sample("mood", 10, 3),
	}

	report, err := e.BuildReport(in)
	require.NoError(t, err)
	require.Len(t, report.RedFlags, 1)
	assert.Equal(t, "mood", report.RedFlags[0].Category)
}

func TestBuildReport_AdherencePerMedicationAndAggregate(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	done := time.Date(2025, 3, 9, 8, 10, 0, 0, time.UTC)

	in := reportInput(now)
	in.Medications = []Medication{{ID: "m1", Name: "Lisinopril"}, {ID: "m2", Name: "Metformin"}}
	in.Items = []ScheduledItem{
		{ID: "d1", Kind: KindMedication, MedicationID: "m1",
			ScheduledAt: time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC), CompletedAt: &done},
		{ID: "d2", Kind: KindMedication, MedicationID: "m2",
			ScheduledAt: time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)},
	}

	report, err := e.BuildReport(in)
	require.NoError(t, err)

	require.Len(t, report.Adherence, 2)
	byID := map[string]AdherenceRecord{}
	for _, r := range report.Adherence {
		byID[r.MedicationID] = r
	}
	assert.Equal(t, 1, byID["m1"].Taken)
	assert.Equal(t, 0, byID["m2"].Taken)
	assert.Equal(t, 2, report.Aggregate.Scheduled)
	require.NotNil(t, report.Aggregate.Percentage)
	assert.Equal(t, 50, *report.Aggregate.Percentage)
}

func TestBuildReport_NotesAndActivityPassThrough(t *testing.T) {
	e := newTestEngine()
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	in := reportInput(now)
	in.Notes = []CareNote{{ID: "n1", Author: "dana", Text: "Slept well"}}
	in.Activity = []ActivityEntry{{ID: "e1", Actor: "sam", Action: "completed Morning meds"}}

	report, err := e.BuildReport(in)
	require.NoError(t, err)
	require.Len(t, report.Notes, 1)
	assert.Equal(t, "Slept well", report.Notes[0].Text)
	require.Len(t, report.Activity, 1)
	assert.Equal(t, "sam", report.Activity[0].Actor)
}
