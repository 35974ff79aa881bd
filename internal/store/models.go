package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Caregiver represents a care-team member who can sign in
type Caregiver struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex" json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // owner, member, viewer
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CareItem is one scheduled occurrence on the care timeline
type CareItem struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Kind         string `gorm:"index" json:"kind"` // medication, vitals, wellness, appointment, note
	Title        string `json:"title"`
	Details      string `json:"details,omitempty" gorm:"type:text"`
	MedicationID string `gorm:"index" json:"medication_id,omitempty"`
	// ScheduledRaw keeps the time exactly as the source provided it; parsing
	// happens on read so bad input degrades instead of being rejected.
	ScheduledRaw string     `json:"scheduled_raw"`
	ScheduledAt  *time.Time `gorm:"index:idx_item_sched" json:"scheduled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CompletedBy  string     `json:"completed_by,omitempty"`
	Skipped      bool       `json:"skipped"`
	Seq          int        `json:"seq"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Medication is a prescribed medication the timeline schedules doses for
type Medication struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Schedule  string    `json:"schedule"` // human-readable, e.g. "8am and 8pm"
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	Active    bool      `gorm:"index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VitalRecord is one recorded vital sign reading
type VitalRecord struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Kind       string    `gorm:"index:idx_vital_kind_taken" json:"kind"`
	Value      float64   `json:"value"`
	Secondary  float64   `json:"secondary,omitempty"` // diastolic for blood pressure
	Unit       string    `json:"unit"`
	Note       string    `json:"note,omitempty"`
	RecordedBy string    `json:"recorded_by,omitempty"`
	TakenAt    time.Time `gorm:"index:idx_vital_kind_taken" json:"taken_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// CareNote is a free-text observation from a caregiver
type CareNote struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text" gorm:"type:text"`
	NotedAt   time.Time `gorm:"index" json:"noted_at"`
	CreatedAt time.Time `json:"created_at"`
}

// MoodEntry is a daily subjective wellbeing score (1-10)
type MoodEntry struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Score      int       `json:"score"`
	Note       string    `json:"note,omitempty"`
	RecordedBy string    `json:"recorded_by,omitempty"`
	Day        time.Time `gorm:"index" json:"day"`
	CreatedAt  time.Time `json:"created_at"`
}

// TeamActivity is one audited care-team action (completion, skip, undo)
type TeamActivity struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	ItemID    string    `gorm:"index" json:"item_id,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Insight is a persisted red flag from a trend scan, kept so the care team
// sees it even if the triggering data later changes
type Insight struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	Category  string          `gorm:"index" json:"category"`
	Severity  string          `json:"severity"`
	Evidence  json.RawMessage `json:"evidence" gorm:"type:text"`
	ScannedAt time.Time       `json:"scanned_at"`
	Dismissed bool            `json:"dismissed"`
	CreatedAt time.Time       `json:"created_at"`
}

// BeforeCreate hook for Caregiver
func (c *Caregiver) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Role == "" {
		c.Role = "member"
	}
	return nil
}

// BeforeCreate hook for CareItem
func (i *CareItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// BeforeCreate hook for Medication
func (m *Medication) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// BeforeCreate hook for VitalRecord
func (v *VitalRecord) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.TakenAt.IsZero() {
		v.TakenAt = time.Now()
	}
	return nil
}

// BeforeCreate hook for CareNote
func (n *CareNote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.NotedAt.IsZero() {
		n.NotedAt = time.Now()
	}
	return nil
}

// BeforeCreate hook for MoodEntry
func (m *MoodEntry) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// BeforeCreate hook for TeamActivity
func (a *TeamActivity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// BeforeCreate hook for Insight
func (i *Insight) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// ToJSON converts struct to JSON bytes
func ToJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// FromJSON parses JSON bytes into struct
func FromJSON(data json.RawMessage, v interface{}) error {
	return json.Unmarshal(data, v)
}
