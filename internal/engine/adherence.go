package engine

import (
	"math"
	"time"
)

// AdherenceRecord summarizes one medication's completion ratio over a
// lookback window. Percentage is nil, never NaN, when nothing was scheduled.
type AdherenceRecord struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"name"`
	Scheduled    int    `json:"scheduled"`
	Taken        int    `json:"taken"`
	Late         int    `json:"late"`
	Percentage   *int   `json:"percentage"`
}

// ComputeAdherence builds one record per medication from the scheduled
// occurrences inside [now - lookbackDays, now]. An occurrence counts as
// scheduled once its grace threshold has passed or it was completed; Taken
// is occurrences with a completion; Late is taken occurrences completed
// after their own grace threshold.
func (e *Engine) ComputeAdherence(meds []Medication, items []ScheduledItem, now time.Time, lookbackDays int) []AdherenceRecord {
	from := now.AddDate(0, 0, -lookbackDays)

	records := make([]AdherenceRecord, 0, len(meds))
	for _, med := range meds {
		rec := AdherenceRecord{MedicationID: med.ID, Name: med.Name}
		for _, item := range items {
			if item.Kind != KindMedication || item.MedicationID != med.ID {
				continue
			}
			if item.ScheduledAt.IsZero() || item.ScheduledAt.Before(from) || item.ScheduledAt.After(now) {
				continue
			}
			deadline := item.ScheduledAt.Add(e.cfg.GracePeriod)
			if !now.After(deadline) && item.CompletedAt == nil {
				// Window still open and nothing logged yet: not countable.
				continue
			}
			rec.Scheduled++
			if item.CompletedAt != nil {
				rec.Taken++
				if item.CompletedAt.After(deadline) {
					rec.Late++
				}
			}
		}
		rec.Percentage = percentage(rec.Taken, rec.Scheduled)
		records = append(records, rec)
	}
	return records
}

// AggregateAdherence sums counts across records before dividing, rather than
// averaging percentages, so a medication with many doses weighs accordingly.
func AggregateAdherence(records []AdherenceRecord) AdherenceRecord {
	agg := AdherenceRecord{}
	for _, r := range records {
		agg.Scheduled += r.Scheduled
		agg.Taken += r.Taken
		agg.Late += r.Late
	}
	agg.Percentage = percentage(agg.Taken, agg.Scheduled)
	return agg
}

func percentage(taken, scheduled int) *int {
	if scheduled == 0 {
		return nil
	}
	p := int(math.Round(float64(taken) / float64(scheduled) * 100))
	return &p
}
