package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/caretide/caretide/internal/engine"
	"github.com/caretide/caretide/internal/errors"
	"github.com/caretide/caretide/internal/metrics"
	"github.com/caretide/caretide/internal/store"
)

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	if s.config.Security.AdminPassword != "" && req.Password != s.config.Security.AdminPassword {
		return c.Status(401).JSON(fiber.Map{"error": "invalid credentials"})
	}

	sub := req.Username
	if sub == "" {
		sub = "admin"
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(7 * 24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	return c.JSON(fiber.Map{"token": tokenString})
}

// ==================== Timeline ====================

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	now := time.Now()
	items, err := s.todayItems(now)
	if err != nil {
		s.logger.Error("Failed to load items", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to load items"})
	}

	dashboard, err := s.engine.AssembleDashboard(items, now)
	if err != nil {
		return s.appError(c, err)
	}
	return c.JSON(dashboard)
}

func (s *Server) handleTimeline(c *fiber.Ctx) error {
	now := time.Now()
	today, err := s.todayItems(now)
	if err != nil {
		s.logger.Error("Failed to load items", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to load items"})
	}

	dayStart := startOfDay(now)
	tomorrowRows, err := s.store.ItemsBetween(dayStart.AddDate(0, 0, 1), dayStart.AddDate(0, 0, 2))
	if err != nil {
		s.logger.Error("Failed to load tomorrow's items", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to load items"})
	}

	timeline, err := s.engine.AssembleTimeline(today, store.EngineItems(tomorrowRows), now)
	if err != nil {
		return s.appError(c, err)
	}
	if timeline.FallbackCount > 0 {
		metrics.RecordWindowFallbacks(timeline.FallbackCount)
	}
	return c.JSON(timeline)
}

// ==================== Care Items ====================

func (s *Server) handleCreateItem(c *fiber.Ctx) error {
	var req struct {
		Kind         string `json:"kind"`
		Title        string `json:"title"`
		Details      string `json:"details"`
		MedicationID string `json:"medication_id"`
		ScheduledAt  string `json:"scheduled_at"`
		Seq          int    `json:"seq"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Title == "" {
		return c.Status(400).JSON(fiber.Map{"error": "title is required"})
	}
	if _, err := s.engine.Policies().For(engine.ItemKind(req.Kind)); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "unknown item kind"})
	}

	item := &store.CareItem{
		Kind:         req.Kind,
		Title:        req.Title,
		Details:      req.Details,
		MedicationID: req.MedicationID,
		ScheduledRaw: req.ScheduledAt,
		Seq:          req.Seq,
	}
	if err := s.store.CreateItem(item); err != nil {
		s.logger.Error("Failed to create item", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to create item"})
	}

	s.hub.NotifyChanged()
	return c.Status(201).JSON(item)
}

func (s *Server) handleCompleteItem(c *fiber.Ctx) error {
	id := c.Params("id")

	wrote, err := s.completer.Complete(c.Context(), id, time.Now())
	if err != nil {
		return s.appError(c, err)
	}
	if !wrote {
		// Duplicate tap inside the debounce window: nothing changed, so no
		// activity entry and no broadcast.
		metrics.RecordDebounced()
		return c.JSON(fiber.Map{"status": "completed", "can_undo": s.completer.CanUndo()})
	}

	metrics.RecordCompletion()
	actor := caregiverName(c)
	if err := s.store.RecordActivity(actor, "completed item", id); err != nil {
		s.logger.Warn("Failed to record activity", zap.Error(err))
	}
	s.hub.NotifyChanged()

	return c.JSON(fiber.Map{"status": "completed", "can_undo": s.completer.CanUndo()})
}

func (s *Server) handleSkipItem(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.store.SetSkipped(id, true); err != nil {
		return s.appError(c, err)
	}

	actor := caregiverName(c)
	if err := s.store.RecordActivity(actor, "skipped item", id); err != nil {
		s.logger.Warn("Failed to record activity", zap.Error(err))
	}
	s.hub.NotifyChanged()

	return c.JSON(fiber.Map{"status": "skipped"})
}

func (s *Server) handleUndo(c *fiber.Ctx) error {
	id, err := s.completer.Undo(c.Context())
	if err != nil {
		return s.appError(c, err)
	}

	metrics.RecordUndo()
	actor := caregiverName(c)
	if err := s.store.RecordActivity(actor, "undid completion", id); err != nil {
		s.logger.Warn("Failed to record activity", zap.Error(err))
	}
	s.hub.NotifyChanged()

	return c.JSON(fiber.Map{"status": "undone", "item_id": id})
}

// ==================== Medications ====================

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)
	meds, err := s.store.ListMedications(activeOnly)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list medications"})
	}
	return c.JSON(meds)
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Dosage   string `json:"dosage"`
		Schedule string `json:"schedule"`
		Notes    string `json:"notes"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}

	med := &store.Medication{
		Name:     req.Name,
		Dosage:   req.Dosage,
		Schedule: req.Schedule,
		Notes:    req.Notes,
		Active:   true,
	}
	if err := s.store.CreateMedication(med); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to create medication"})
	}
	return c.Status(201).JSON(med)
}

func (s *Server) handleAdherence(c *fiber.Ctx) error {
	now := time.Now()
	days := c.QueryInt("days", s.config.Engine.AdherenceLookback)

	meds, err := s.store.ListMedications(true)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list medications"})
	}
	rows, err := s.store.ItemsBetween(now.AddDate(0, 0, -days), now.AddDate(0, 0, 1))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load items"})
	}

	records := s.engine.ComputeAdherence(store.EngineMedications(meds), store.EngineItems(rows), now, days)
	return c.JSON(fiber.Map{
		"days":      days,
		"records":   records,
		"aggregate": engine.AggregateAdherence(records),
	})
}

// ==================== Vitals, Notes, Mood ====================

func (s *Server) handleListVitals(c *fiber.Ctx) error {
	now := time.Now()
	days := c.QueryInt("days", 7)

	vitals, err := s.store.VitalsBetween(now.AddDate(0, 0, -days), now)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list vitals"})
	}

	classified := make([]fiber.Map, 0, len(vitals))
	for _, v := range vitals {
		reading := store.EngineVitals([]store.VitalRecord{v})[0]
		classified = append(classified, fiber.Map{
			"record": v,
			"class":  engine.ClassifyReading(reading),
		})
	}
	return c.JSON(classified)
}

func (s *Server) handleCreateVital(c *fiber.Ctx) error {
	var req struct {
		Kind      string  `json:"kind"`
		Value     float64 `json:"value"`
		Secondary float64 `json:"secondary"`
		Unit      string  `json:"unit"`
		Note      string  `json:"note"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	record := &store.VitalRecord{
		Kind:       req.Kind,
		Value:      req.Value,
		Secondary:  req.Secondary,
		Unit:       req.Unit,
		Note:       req.Note,
		RecordedBy: caregiverName(c),
		TakenAt:    time.Now(),
	}
	if err := s.store.CreateVital(record); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to record vital"})
	}

	class := engine.ClassifyVital(engine.VitalKind(req.Kind), req.Value, req.Secondary)
	return c.Status(201).JSON(fiber.Map{"record": record, "class": class})
}

func (s *Server) handleCreateNote(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Text == "" {
		return c.Status(400).JSON(fiber.Map{"error": "text is required"})
	}

	note := &store.CareNote{Author: caregiverName(c), Text: req.Text, NotedAt: time.Now()}
	if err := s.store.CreateNote(note); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to create note"})
	}
	return c.Status(201).JSON(note)
}

func (s *Server) handleCreateMood(c *fiber.Ctx) error {
	var req struct {
		Score int    `json:"score"`
		Note  string `json:"note"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Score < 1 || req.Score > 10 {
		return c.Status(400).JSON(fiber.Map{"error": "score must be between 1 and 10"})
	}

	entry := &store.MoodEntry{
		Score:      req.Score,
		Note:       req.Note,
		RecordedBy: caregiverName(c),
		Day:        startOfDay(time.Now()),
	}
	if err := s.store.CreateMood(entry); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to record mood"})
	}
	return c.Status(201).JSON(entry)
}

// ==================== Reports and Insights ====================

func (s *Server) handleReport(c *fiber.Ctx) error {
	now := time.Now()
	days := c.QueryInt("days", 1)
	if days < 1 || days > 90 {
		return c.Status(400).JSON(fiber.Map{"error": "days must be between 1 and 90"})
	}

	cacheKey := fmt.Sprintf("%s:%d", now.Format("2006-01-02"), days)
	if payload, err := s.store.CachedReport(cacheKey); err == nil {
		metrics.RecordReportBuilt(true)
		c.Set("Content-Type", "application/json")
		return c.Send(payload)
	}

	report, err := s.buildReport(now, days)
	if err != nil {
		return s.appError(c, err)
	}
	metrics.RecordReportBuilt(false)

	payload, err := json.Marshal(report)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to encode report"})
	}
	if err := s.store.CacheReport(cacheKey, payload, 5*time.Minute); err != nil {
		s.logger.Warn("Failed to cache report", zap.Error(err))
	}

	c.Set("Content-Type", "application/json")
	return c.Send(payload)
}

func (s *Server) buildReport(now time.Time, days int) (*engine.ReportData, error) {
	in, err := s.store.ReportInput(now, days)
	if err != nil {
		return nil, err
	}
	return s.engine.BuildReport(in)
}

func (s *Server) handleListInsights(c *fiber.Ctx) error {
	insights, err := s.store.ListInsights(c.QueryInt("limit", 20))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list insights"})
	}
	return c.JSON(insights)
}

func (s *Server) handleDismissInsight(c *fiber.Ctx) error {
	if err := s.store.DismissInsight(c.Params("id")); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to dismiss insight"})
	}
	return c.SendStatus(204)
}

// ==================== Helpers ====================

func (s *Server) todayItems(now time.Time) ([]engine.ScheduledItem, error) {
	dayStart := startOfDay(now)
	rows, err := s.store.ItemsBetween(dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return store.EngineItems(rows), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// appError maps domain errors onto HTTP statuses.
func (s *Server) appError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errors.ErrItemNotFound), errors.Is(err, errors.ErrMedicationNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errors.ErrStaleCompletion):
		metrics.RecordStaleWrite()
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errors.ErrNothingToUndo):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errors.ErrUnknownKind):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	default:
		s.logger.Error("Request failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "internal error"})
	}
}
