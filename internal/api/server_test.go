package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caretide/caretide/internal/config"
	"github.com/caretide/caretide/internal/engine"
	"github.com/caretide/caretide/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	cfg.Security.AdminPassword = "test-password"

	st, err := store.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	eng := engine.New(cfg.EngineConfig(), nil, zap.NewNop())
	return New(cfg, st, eng, zap.NewNop())
}

func doJSON(t *testing.T, s *Server, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func login(t *testing.T, s *Server) string {
	t.Helper()

	resp := doJSON(t, s, "POST", "/api/auth/login", "", map[string]string{
		"username": "sam",
		"password": "test-password",
	})
	require.Equal(t, 200, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	decode(t, resp, &body)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, "GET", "/api/health", "", nil)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, "GET", "/api/dashboard", "", nil)
	assert.Equal(t, 401, resp.StatusCode)

	resp = doJSON(t, s, "GET", "/api/dashboard", "not-a-token", nil)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, "POST", "/api/auth/login", "", map[string]string{
		"password": "wrong",
	})
	assert.Equal(t, 401, resp.StatusCode)
}

func TestDashboardEmpty(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "GET", "/api/dashboard", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	var dash engine.Dashboard
	decode(t, resp, &dash)
	assert.Equal(t, engine.StateEmpty, dash.State)
}

func TestItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/items", token, map[string]interface{}{
		"kind":         "medication",
		"title":        "Morning meds",
		"scheduled_at": time.Now().Add(time.Hour).Format("2006-01-02 15:04"),
	})
	require.Equal(t, 201, resp.StatusCode)

	var item store.CareItem
	decode(t, resp, &item)
	require.NotEmpty(t, item.ID)
	assert.NotNil(t, item.ScheduledAt)

	// Complete it
	resp = doJSON(t, s, "POST", "/api/items/"+item.ID+"/complete", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	var completed struct {
		Status  string `json:"status"`
		CanUndo bool   `json:"can_undo"`
	}
	decode(t, resp, &completed)
	assert.Equal(t, "completed", completed.Status)
	assert.True(t, completed.CanUndo)

	// Undo restores it
	resp = doJSON(t, s, "POST", "/api/undo", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	var undone struct {
		ItemID string `json:"item_id"`
	}
	decode(t, resp, &undone)
	assert.Equal(t, item.ID, undone.ItemID)

	// Nothing left to undo
	resp = doJSON(t, s, "POST", "/api/undo", token, nil)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestCompleteDuplicateTapLeavesOneActivityEntry(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/items", token, map[string]interface{}{
		"kind":         "medication",
		"title":        "Evening meds",
		"scheduled_at": time.Now().Format("2006-01-02 15:04"),
	})
	require.Equal(t, 201, resp.StatusCode)

	var item store.CareItem
	decode(t, resp, &item)

	// A double tap lands two requests well inside the debounce window. Both
	// succeed from the client's point of view, but only the first writes.
	resp = doJSON(t, s, "POST", "/api/items/"+item.ID+"/complete", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	resp = doJSON(t, s, "POST", "/api/items/"+item.ID+"/complete", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	var completed struct {
		Status  string `json:"status"`
		CanUndo bool   `json:"can_undo"`
	}
	decode(t, resp, &completed)
	assert.Equal(t, "completed", completed.Status)
	assert.True(t, completed.CanUndo)

	entries, err := s.store.ActivityBetween(time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "completed item", entries[0].Action)
}

func TestRequestDurationIsObserved(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, "GET", "/api/health", "", nil)
	require.Equal(t, 200, resp.StatusCode)

	resp = doJSON(t, s, "GET", "/metrics", "", nil)
	require.Equal(t, 200, resp.StatusCode)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body),
		`caretide_request_duration_seconds_count{route="/api/health",status="200"}`)
}

func TestCompleteMissingItem(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/items/no-such-id/complete", token, nil)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestCreateItemRejectsUnknownKind(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/items", token, map[string]interface{}{
		"kind":  "grocery",
		"title": "Buy milk",
	})
	assert.Equal(t, 400, resp.StatusCode)
}

func TestCreateVitalReturnsClass(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/vitals", token, map[string]interface{}{
		"kind":      "blood_pressure",
		"value":     150,
		"secondary": 95,
		"unit":      "mmHg",
	})
	require.Equal(t, 201, resp.StatusCode)

	var body struct {
		Class engine.RangeClass `json:"class"`
	}
	decode(t, resp, &body)
	assert.Equal(t, engine.RangeAbnormal, body.Class)
}

func TestCreateMoodValidatesScore(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/mood", token, map[string]interface{}{"score": 11})
	assert.Equal(t, 400, resp.StatusCode)

	resp = doJSON(t, s, "POST", "/api/mood", token, map[string]interface{}{"score": 7})
	assert.Equal(t, 201, resp.StatusCode)
}

func TestReportEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "GET", "/api/report?days=0", token, nil)
	assert.Equal(t, 400, resp.StatusCode)

	resp = doJSON(t, s, "GET", "/api/report?days=7", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	var report engine.ReportData
	decode(t, resp, &report)
	assert.Equal(t, 0, report.Summary.MedsTotal)

	// Second call is served from cache with the same payload
	resp = doJSON(t, s, "GET", "/api/report?days=7", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	var cached engine.ReportData
	decode(t, resp, &cached)
	assert.Equal(t, report.GeneratedAt.Unix(), cached.GeneratedAt.Unix())
}

func TestAdherenceEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/medications", token, map[string]interface{}{
		"name":   "Metformin",
		"dosage": "500mg",
	})
	require.Equal(t, 201, resp.StatusCode)

	var med store.Medication
	decode(t, resp, &med)

	past := time.Now().Add(-2 * time.Hour).Format("2006-01-02 15:04")
	resp = doJSON(t, s, "POST", "/api/items", token, map[string]interface{}{
		"kind":          "medication",
		"title":         "Metformin 500mg",
		"medication_id": med.ID,
		"scheduled_at":  past,
	})
	require.Equal(t, 201, resp.StatusCode)

	resp = doJSON(t, s, "GET", "/api/medications/adherence", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	var body struct {
		Days    int                      `json:"days"`
		Records []engine.AdherenceRecord `json:"records"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Records, 1)
	assert.Equal(t, 1, body.Records[0].Scheduled)
	assert.Equal(t, 0, body.Records[0].Taken)
}

func TestRateLimitReturns429(t *testing.T) {
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	cfg.Server.RateLimit = 2

	st, err := store.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := New(cfg, st, engine.New(cfg.EngineConfig(), nil, zap.NewNop()), zap.NewNop())

	var got429 bool
	for i := 0; i < 10; i++ {
		resp := doJSON(t, s, "GET", "/api/health", "", nil)
		if resp.StatusCode == 429 {
			got429 = true
			break
		}
	}
	assert.True(t, got429, "expected a 429 once the bucket drained")
}

func TestSkipItem(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/items", token, map[string]interface{}{
		"kind":         "wellness",
		"title":        "Short walk",
		"scheduled_at": time.Now().Format("2006-01-02 15:04"),
	})
	require.Equal(t, 201, resp.StatusCode)

	var item store.CareItem
	decode(t, resp, &item)

	resp = doJSON(t, s, "POST", "/api/items/"+item.ID+"/skip", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	resp = doJSON(t, s, "GET", "/api/dashboard", token, nil)
	require.Equal(t, 200, resp.StatusCode)

	var dash engine.Dashboard
	decode(t, resp, &dash)
	assert.NotEqual(t, engine.StateUpNext, dash.State)
}
