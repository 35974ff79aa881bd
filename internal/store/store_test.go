package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caretide/caretide/internal/config"
	"github.com/caretide/caretide/internal/engine"
	"github.com/caretide/caretide/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DataDir:    dir,
			SQLitePath: filepath.Join(dir, "test.db"),
			BadgerPath: filepath.Join(dir, "badger"),
		},
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetItem(t *testing.T) {
	s := newTestStore(t)

	item := &CareItem{
		Kind:         "medication",
		Title:        "Lisinopril 10mg",
		ScheduledRaw: "2025-03-10T09:00:00Z",
	}
	require.NoError(t, s.CreateItem(item))
	require.NotEmpty(t, item.ID)
	require.NotNil(t, item.ScheduledAt)

	got, err := s.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisinopril 10mg", got.Title)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), got.ScheduledAt.UTC())
}

func TestGetItemNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetItem("missing")
	assert.ErrorIs(t, err, errors.ErrItemNotFound)
}

func TestItemsBetweenIncludesUnparseable(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateItem(&CareItem{Kind: "wellness", Title: "Walk", ScheduledRaw: "2025-03-10T10:00:00Z"}))
	require.NoError(t, s.CreateItem(&CareItem{Kind: "wellness", Title: "Garbled", ScheduledRaw: "not-a-time"}))
	require.NoError(t, s.CreateItem(&CareItem{Kind: "wellness", Title: "Next week", ScheduledRaw: "2025-03-17T10:00:00Z"}))

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	items, err := s.ItemsBetween(from, from.AddDate(0, 0, 1))
	require.NoError(t, err)

	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	assert.Contains(t, titles, "Walk")
	assert.Contains(t, titles, "Garbled")
	assert.NotContains(t, titles, "Next week")
}

func TestEngineItemsFallback(t *testing.T) {
	items := EngineItems([]CareItem{
		{ID: "a", Kind: "medication", ScheduledRaw: "2025-03-10 09:00"},
		{ID: "b", Kind: "wellness", ScheduledRaw: "whenever"},
	})
	require.Len(t, items, 2)
	assert.False(t, items[0].ScheduledAt.IsZero())
	assert.True(t, items[1].ScheduledAt.IsZero())
	assert.Equal(t, engine.KindMedication, items[0].Kind)
}

func TestSetCompletionStaleGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := &CareItem{Kind: "medication", Title: "Dose", ScheduledRaw: "2025-03-10T09:00:00Z"}
	require.NoError(t, s.CreateItem(item))

	done := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)
	next := engine.CompletionSnapshot{CompletedAt: &done}

	require.NoError(t, s.SetCompletion(ctx, item.ID, next, engine.CompletionSnapshot{}))

	// A writer that still thinks the item is pending loses.
	err := s.SetCompletion(ctx, item.ID, next, engine.CompletionSnapshot{})
	assert.ErrorIs(t, err, errors.ErrStaleCompletion)

	// A writer holding the current state wins.
	snap, err := s.GetCompletion(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.CompletedAt)
	require.NoError(t, s.SetCompletion(ctx, item.ID, engine.CompletionSnapshot{}, snap))

	snap, err = s.GetCompletion(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.CompletedAt)
}

func TestSetCompletionMissingItem(t *testing.T) {
	s := newTestStore(t)

	err := s.SetCompletion(context.Background(), "missing", engine.CompletionSnapshot{}, engine.CompletionSnapshot{})
	assert.ErrorIs(t, err, errors.ErrItemNotFound)
}

func TestCompleterAgainstRealStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := &CareItem{Kind: "medication", Title: "Dose", ScheduledRaw: "2025-03-10T09:00:00Z"}
	require.NoError(t, s.CreateItem(item))

	c := engine.NewCompleter(s, engine.DefaultConfig(), nil)
	wrote, err := c.Complete(ctx, item.ID, time.Date(2025, 3, 10, 9, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, wrote)

	id, err := c.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, item.ID, id)

	snap, err := s.GetCompletion(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.CompletedAt)
}

func TestMedications(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateMedication(&Medication{Name: "Metformin", Dosage: "500mg", Active: true}))
	require.NoError(t, s.CreateMedication(&Medication{Name: "Old med", Dosage: "5mg", Active: false}))

	active, err := s.ListMedications(true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Metformin", active[0].Name)

	all, err := s.ListMedications(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	engMeds := EngineMedications(active)
	require.Len(t, engMeds, 1)
	assert.True(t, engMeds[0].Active)
}

func TestVitalsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	taken := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateVital(&VitalRecord{
		Kind: "blood_pressure", Value: 132, Secondary: 78, Unit: "mmHg", TakenAt: taken,
	}))

	vitals, err := s.VitalsBetween(taken.Add(-time.Hour), taken.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, vitals, 1)

	readings := EngineVitals(vitals)
	require.Len(t, readings, 1)
	assert.Equal(t, engine.VitalBloodPressure, readings[0].Kind)
	assert.Equal(t, float64(78), readings[0].Secondary)
}

func TestMoodSamplesLatestPerDay(t *testing.T) {
	s := newTestStore(t)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateMood(&MoodEntry{Score: 4, Day: day}))
	require.NoError(t, s.CreateMood(&MoodEntry{Score: 7, Day: day}))
	require.NoError(t, s.CreateMood(&MoodEntry{Score: 5, Day: day.AddDate(0, 0, 1)}))

	samples, err := s.MoodSamples(day, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, float64(7), samples[0].Value)
	assert.Equal(t, float64(5), samples[1].Value)
}

func TestInsights(t *testing.T) {
	s := newTestStore(t)

	flag := engine.RedFlag{
		Category: "glucose",
		Severity: engine.SeverityHigh,
		Evidence: []engine.DailySample{{Metric: "glucose", Value: 260}},
	}
	require.NoError(t, s.SaveInsight(flag, time.Now()))

	insights, err := s.ListInsights(10)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "glucose", insights[0].Category)
	assert.Equal(t, "high", insights[0].Severity)

	require.NoError(t, s.DismissInsight(insights[0].ID))
	insights, err = s.ListInsights(10)
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestReportCache(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CachedReport("today")
	assert.ErrorIs(t, err, errors.ErrReportCacheMiss)

	require.NoError(t, s.CacheReport("today", []byte(`{"ok":true}`), time.Minute))

	payload, err := s.CachedReport("today")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(payload))
}

func TestRecordActivity(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordActivity("dana", "completed Morning meds", "item-1"))

	now := time.Now()
	acts, err := s.ActivityBetween(now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "dana", acts[0].Actor)
}

func TestReportInputGathersWindow(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.CreateItem(&CareItem{
		Kind: "medication", Title: "Morning meds",
		ScheduledRaw: now.Format("2006-01-02 15:04"),
	}))
	require.NoError(t, s.CreateVital(&VitalRecord{
		Kind: "glucose", Value: 110, Unit: "mg/dL", TakenAt: now,
	}))
	require.NoError(t, s.CreateMedication(&Medication{Name: "Metformin", Dosage: "500mg", Active: true}))
	require.NoError(t, s.CreateNote(&CareNote{Author: "dana", Text: "Slept well", NotedAt: now}))
	require.NoError(t, s.RecordActivity("dana", "completed item", "item-1"))
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	require.NoError(t, s.CreateMood(&MoodEntry{Score: 6, Day: day}))

	in, err := s.ReportInput(now, 7)
	require.NoError(t, err)

	// Window spans the start of the first covered day to the end of today.
	assert.Equal(t, day.AddDate(0, 0, -6), in.From)
	assert.Equal(t, day.AddDate(0, 0, 1), in.To)
	assert.Equal(t, 7, in.LookbackDays)

	require.Len(t, in.Items, 1)
	require.Len(t, in.Vitals, 1)
	require.Len(t, in.Medications, 1)
	require.Len(t, in.Samples, 1)

	require.Len(t, in.Notes, 1)
	assert.Equal(t, "Slept well", in.Notes[0].Text)
	require.Len(t, in.Activity, 1)
	assert.Equal(t, "completed item", in.Activity[0].Action)
}
