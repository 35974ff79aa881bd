package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/caretide/caretide/internal/config"
	"github.com/caretide/caretide/internal/engine"
	"github.com/caretide/caretide/internal/errors"
)

// Store provides unified access to SQLite and BadgerDB
type Store struct {
	db     *gorm.DB
	badger *badger.DB
	config *config.StorageConfig
}

// New creates a new Store instance
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "caretide.db")
	}

	// Open SQLite with optimizations
	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := db.AutoMigrate(
		&Caregiver{},
		&CareItem{},
		&Medication{},
		&VitalRecord{},
		&CareNote{},
		&MoodEntry{},
		&TeamActivity{},
		&Insight{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	badgerPath := cfg.Storage.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}

	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	store := &Store{
		db:     db,
		badger: badgerDB,
		config: &cfg.Storage,
	}

	if err := store.createDefaultCaregiver(); err != nil {
		return nil, fmt.Errorf("failed to create default caregiver: %w", err)
	}

	return store, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	return s.badger.Close()
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Badger returns the BadgerDB instance
func (s *Store) Badger() *badger.DB {
	return s.badger
}

// createDefaultCaregiver seeds an owner account if the database is empty
func (s *Store) createDefaultCaregiver() error {
	var count int64
	if err := s.db.Model(&Caregiver{}).Count(&count).Error; err != nil {
		return err
	}

	if count == 0 {
		return s.db.Create(&Caregiver{
			ID:          "admin",
			Username:    "admin",
			DisplayName: "Primary Caregiver",
			Role:        "owner",
		}).Error
	}

	return nil
}

// ==================== Caregiver Methods ====================

// GetCaregiver retrieves a caregiver by username
func (s *Store) GetCaregiver(username string) (*Caregiver, error) {
	var cg Caregiver
	if err := s.db.First(&cg, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &cg, nil
}

// ==================== Care Item Methods ====================

// CreateItem creates a scheduled care item
func (s *Store) CreateItem(item *CareItem) error {
	if item.ScheduledAt == nil && item.ScheduledRaw != "" {
		if t, ok := parseSchedule(item.ScheduledRaw); ok {
			item.ScheduledAt = &t
		}
	}
	return s.db.Create(item).Error
}

// GetItem retrieves a care item by ID
func (s *Store) GetItem(id string) (*CareItem, error) {
	var item CareItem
	if err := s.db.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ItemsBetween lists items scheduled inside [from, to), plus any with an
// unreadable schedule so they are never silently dropped
func (s *Store) ItemsBetween(from, to time.Time) ([]CareItem, error) {
	var items []CareItem
	err := s.db.
		Where("(scheduled_at >= ? AND scheduled_at < ?) OR scheduled_at IS NULL", from, to).
		Order("scheduled_at ASC, seq ASC").
		Find(&items).Error
	return items, err
}

// UpdateItem updates a care item
func (s *Store) UpdateItem(item *CareItem) error {
	return s.db.Save(item).Error
}

// SetSkipped marks an item intentionally skipped or clears the skip
func (s *Store) SetSkipped(id string, skipped bool) error {
	res := s.db.Model(&CareItem{}).Where("id = ?", id).Update("skipped", skipped)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrItemNotFound
	}
	return nil
}

// EngineItems converts stored rows to the engine's item shape. Rows whose
// schedule never parsed come through with a zero time and take the engine's
// fallback path.
func EngineItems(items []CareItem) []engine.ScheduledItem {
	out := make([]engine.ScheduledItem, 0, len(items))
	for _, it := range items {
		e := engine.ScheduledItem{
			ID:           it.ID,
			Kind:         engine.ItemKind(it.Kind),
			Title:        it.Title,
			MedicationID: it.MedicationID,
			CompletedAt:  it.CompletedAt,
			Skipped:      it.Skipped,
			Seq:          it.Seq,
		}
		if it.ScheduledAt != nil {
			e.ScheduledAt = *it.ScheduledAt
		} else if t, ok := parseSchedule(it.ScheduledRaw); ok {
			e.ScheduledAt = t
		}
		out = append(out, e)
	}
	return out
}

var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

func parseSchedule(raw string) (time.Time, bool) {
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ==================== Completion Methods ====================

// GetCompletion implements engine.CompletionStore
func (s *Store) GetCompletion(ctx context.Context, itemID string) (engine.CompletionSnapshot, error) {
	var item CareItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return engine.CompletionSnapshot{}, errors.ErrItemNotFound
		}
		return engine.CompletionSnapshot{}, err
	}
	return engine.CompletionSnapshot{CompletedAt: item.CompletedAt, Skipped: item.Skipped}, nil
}

// SetCompletion implements engine.CompletionStore. The write only lands if
// the row still matches expect; a concurrent writer getting there first
// surfaces as ErrStaleCompletion.
func (s *Store) SetCompletion(ctx context.Context, itemID string, next, expect engine.CompletionSnapshot) error {
	q := s.db.WithContext(ctx).Model(&CareItem{}).
		Where("id = ?", itemID).
		Where("skipped = ?", expect.Skipped)
	if expect.CompletedAt == nil {
		q = q.Where("completed_at IS NULL")
	} else {
		q = q.Where("completed_at = ?", *expect.CompletedAt)
	}

	res := q.Updates(map[string]interface{}{
		"completed_at": next.CompletedAt,
		"skipped":      next.Skipped,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&CareItem{}).Where("id = ?", itemID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errors.ErrItemNotFound
		}
		return errors.ErrStaleCompletion
	}
	return nil
}

// ==================== Medication Methods ====================

// CreateMedication creates a medication
func (s *Store) CreateMedication(med *Medication) error {
	return s.db.Create(med).Error
}

// GetMedication retrieves a medication by ID
func (s *Store) GetMedication(id string) (*Medication, error) {
	var med Medication
	if err := s.db.First(&med, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrMedicationNotFound
		}
		return nil, err
	}
	return &med, nil
}

// ListMedications lists medications, optionally only active ones
func (s *Store) ListMedications(activeOnly bool) ([]Medication, error) {
	var meds []Medication
	q := s.db.Order("name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	err := q.Find(&meds).Error
	return meds, err
}

// EngineMedications converts stored medications to the engine's shape
func EngineMedications(meds []Medication) []engine.Medication {
	out := make([]engine.Medication, 0, len(meds))
	for _, m := range meds {
		out = append(out, engine.Medication{ID: m.ID, Name: m.Name, Dosage: m.Dosage, Active: m.Active})
	}
	return out
}

// ==================== Vital Methods ====================

// CreateVital records a vital reading
func (s *Store) CreateVital(v *VitalRecord) error {
	return s.db.Create(v).Error
}

// VitalsBetween lists readings taken inside [from, to)
func (s *Store) VitalsBetween(from, to time.Time) ([]VitalRecord, error) {
	var vitals []VitalRecord
	err := s.db.
		Where("taken_at >= ? AND taken_at < ?", from, to).
		Order("taken_at ASC").
		Find(&vitals).Error
	return vitals, err
}

// EngineVitals converts stored readings to the engine's shape
func EngineVitals(vitals []VitalRecord) []engine.VitalReading {
	out := make([]engine.VitalReading, 0, len(vitals))
	for _, v := range vitals {
		out = append(out, engine.VitalReading{
			Kind:      engine.VitalKind(v.Kind),
			Value:     v.Value,
			Secondary: v.Secondary,
			Unit:      v.Unit,
			TakenAt:   v.TakenAt,
		})
	}
	return out
}

// ==================== Note and Mood Methods ====================

// CreateNote records a caregiver note
func (s *Store) CreateNote(n *CareNote) error {
	return s.db.Create(n).Error
}

// NotesBetween lists notes inside [from, to)
func (s *Store) NotesBetween(from, to time.Time) ([]CareNote, error) {
	var notes []CareNote
	err := s.db.
		Where("noted_at >= ? AND noted_at < ?", from, to).
		Order("noted_at ASC").
		Find(&notes).Error
	return notes, err
}

// CreateMood records a mood score
func (s *Store) CreateMood(m *MoodEntry) error {
	return s.db.Create(m).Error
}

// MoodSamples returns one mood sample per day inside [from, to), the latest
// entry of each day winning
func (s *Store) MoodSamples(from, to time.Time) ([]engine.DailySample, error) {
	var entries []MoodEntry
	err := s.db.
		Where("day >= ? AND day < ?", from, to).
		Order("day ASC, created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]MoodEntry)
	var days []string
	for _, e := range entries {
		key := e.Day.Format("2006-01-02")
		if _, ok := byDay[key]; !ok {
			days = append(days, key)
		}
		byDay[key] = e
	}

	samples := make([]engine.DailySample, 0, len(days))
	for _, key := range days {
		e := byDay[key]
		samples = append(samples, engine.DailySample{
			Day:    e.Day,
			Metric: "mood",
			Value:  float64(e.Score),
		})
	}
	return samples, nil
}

// ==================== Activity Methods ====================

// RecordActivity appends one care-team action to the audit trail
func (s *Store) RecordActivity(actor, action, itemID string) error {
	return s.db.Create(&TeamActivity{Actor: actor, Action: action, ItemID: itemID}).Error
}

// ActivityBetween lists audited actions inside [from, to)
func (s *Store) ActivityBetween(from, to time.Time) ([]TeamActivity, error) {
	var acts []TeamActivity
	err := s.db.
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&acts).Error
	return acts, err
}

// ==================== Report Snapshot ====================

// ReportInput gathers everything a report covering the last `days` days
// needs: items, vitals, active medications, notes, activity, and two weeks
// of mood samples for trend scanning. The window runs from the start of the
// first covered day to the end of today.
func (s *Store) ReportInput(now time.Time, days int) (engine.ReportInput, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := dayStart.AddDate(0, 0, -(days - 1))
	to := dayStart.AddDate(0, 0, 1)

	var in engine.ReportInput

	rows, err := s.ItemsBetween(from, to)
	if err != nil {
		return in, err
	}
	vitals, err := s.VitalsBetween(from, to)
	if err != nil {
		return in, err
	}
	meds, err := s.ListMedications(true)
	if err != nil {
		return in, err
	}
	notes, err := s.NotesBetween(from, to)
	if err != nil {
		return in, err
	}
	acts, err := s.ActivityBetween(from, to)
	if err != nil {
		return in, err
	}
	moods, err := s.MoodSamples(now.AddDate(0, 0, -14), to)
	if err != nil {
		return in, err
	}

	engNotes := make([]engine.CareNote, 0, len(notes))
	for _, n := range notes {
		engNotes = append(engNotes, engine.CareNote{ID: n.ID, Author: n.Author, Text: n.Text, At: n.NotedAt})
	}
	engActs := make([]engine.ActivityEntry, 0, len(acts))
	for _, a := range acts {
		engActs = append(engActs, engine.ActivityEntry{ID: a.ID, Actor: a.Actor, Action: a.Action, At: a.CreatedAt})
	}

	return engine.ReportInput{
		From:         from,
		To:           to,
		Now:          now,
		Items:        EngineItems(rows),
		Vitals:       EngineVitals(vitals),
		Medications:  EngineMedications(meds),
		Samples:      moods,
		Notes:        engNotes,
		Activity:     engActs,
		LookbackDays: days,
	}, nil
}

// ==================== Insight Methods ====================

// SaveInsight persists a red flag found by a trend scan
func (s *Store) SaveInsight(flag engine.RedFlag, scannedAt time.Time) error {
	return s.db.Create(&Insight{
		Category:  flag.Category,
		Severity:  string(flag.Severity),
		Evidence:  ToJSON(flag.Evidence),
		ScannedAt: scannedAt,
	}).Error
}

// ListInsights lists recent undismissed insights
func (s *Store) ListInsights(limit int) ([]Insight, error) {
	var insights []Insight
	err := s.db.
		Where("dismissed = ?", false).
		Order("scanned_at DESC").
		Limit(limit).
		Find(&insights).Error
	return insights, err
}

// DismissInsight marks an insight as seen
func (s *Store) DismissInsight(id string) error {
	return s.db.Model(&Insight{}).Where("id = ?", id).Update("dismissed", true).Error
}

// ==================== Report Cache Methods (BadgerDB) ====================

// CacheReport stores a rendered report payload with a TTL
func (s *Store) CacheReport(key string, payload []byte, ttl time.Duration) error {
	return s.badger.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte("report:"+key), payload).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

// CachedReport retrieves a cached report payload
func (s *Store) CachedReport(key string) ([]byte, error) {
	var val []byte
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("report:" + key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = append([]byte{}, v...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrReportCacheMiss
	}
	return val, err
}

// SweepReportCache reclaims space left by expired report entries
func (s *Store) SweepReportCache() error {
	err := s.badger.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}
