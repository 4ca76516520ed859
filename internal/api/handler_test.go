package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saviour-labs/alertfeed/internal/changefeed"
	"github.com/saviour-labs/alertfeed/internal/location"
	"github.com/saviour-labs/alertfeed/internal/models"
	"github.com/saviour-labs/alertfeed/internal/store"
)

type stubRefresher struct {
	called int
	err    error
}

func (s *stubRefresher) Refresh(_ context.Context) error {
	s.called++
	return s.err
}

type stubTipProducer struct {
	lastTitle string
}

func (s *stubTipProducer) AddSafetyTip(_ context.Context, subscriberID, title, description string, tips []string) (*models.Alert, error) {
	s.lastTitle = title
	return &models.Alert{
		ID:       "safety-tip-1",
		Title:    title,
		Type:     models.AlertTypeSafety,
		Severity: models.SeverityInformation,
		UserID:   subscriberID,
	}, nil
}

type testEnv struct {
	router    *gin.Engine
	db        *store.SQLiteDB
	feed      *changefeed.Feed
	refresher *stubRefresher
	tips      *stubTipProducer
	loc       *location.Manual
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.NewSQLiteDB(":memory:", 20)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:        db,
		feed:      changefeed.New(),
		refresher: &stubRefresher{},
		tips:      &stubTipProducer{},
		loc:       location.NewManual(models.Coordinates{}),
	}
	t.Cleanup(env.feed.Close)
	db.SetPublisher(env.feed)

	router := gin.New()
	handler := NewHandler(db, env.feed, env.refresher, env.tips, env.loc)
	handler.RegisterRoutes(router)
	env.router = router
	return env
}

func seedAlert(t *testing.T, env *testEnv, userID, id string, createdAt time.Time) {
	t.Helper()
	_, _, err := env.db.UpsertFeed(context.Background(), userID, &models.Alert{
		ID:         id,
		Title:      "Flood Warning",
		Type:       models.AlertTypeWeather,
		Severity:   models.SeverityWarning,
		Source:     "OpenWeather",
		Areas:      "Your area",
		StartTime:  createdAt,
		EndTime:    createdAt.Add(time.Hour),
		CreatedAt:  createdAt,
		SafetyTips: []string{"Move to higher ground immediately"},
	})
	if err != nil {
		t.Fatalf("failed to seed alert: %v", err)
	}
}

func TestHandler_Health(t *testing.T) {
	env := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHandler_ListAlerts(t *testing.T) {
	env := setupTestRouter(t)
	now := time.Now()
	seedAlert(t, env, "u1", "a1", now)
	seedAlert(t, env, "u1", "a2", now.Add(time.Second))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/alerts", nil)
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Alerts []models.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(resp.Alerts))
	}
	if resp.Alerts[0].ID != "a2" {
		t.Errorf("expected newest first, got %s", resp.Alerts[0].ID)
	}
}

func TestHandler_ListAlerts_EmptyFeed(t *testing.T) {
	env := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/alerts", nil)
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"alerts":[]`)) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestHandler_MarkReadAndUnreadCount(t *testing.T) {
	env := setupTestRouter(t)
	now := time.Now()
	seedAlert(t, env, "u1", "a1", now)
	seedAlert(t, env, "u1", "a2", now.Add(time.Second))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/alerts/a1/read", nil)
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/users/u1/alerts/unread_count", nil)
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Unread int `json:"unread"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Unread != 1 {
		t.Errorf("expected 1 unread, got %d", resp.Unread)
	}
}

func TestHandler_Refresh(t *testing.T) {
	env := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/refresh", nil)
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", w.Code)
	}
	if env.refresher.called != 1 {
		t.Errorf("expected 1 refresh call, got %d", env.refresher.called)
	}
}

func TestHandler_AddSafetyTip(t *testing.T) {
	env := setupTestRouter(t)

	body := bytes.NewBufferString(`{"title":"Be prepared","description":"Storm season","tips":["Keep a flashlight handy"]}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/safety-tips", body)
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if env.tips.lastTitle != "Be prepared" {
		t.Errorf("expected tip title to reach producer, got %q", env.tips.lastTitle)
	}
}

func TestHandler_AddSafetyTip_RequiresTitle(t *testing.T) {
	env := setupTestRouter(t)

	body := bytes.NewBufferString(`{"description":"missing title"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/u1/safety-tips", body)
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_ReportLocation(t *testing.T) {
	env := setupTestRouter(t)

	body := bytes.NewBufferString(`{"latitude":40.7,"longitude":-74.0}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/location", body)
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	coords, err := env.loc.Current(context.Background())
	if err != nil {
		t.Fatalf("expected location to be known: %v", err)
	}
	if coords.Latitude != 40.7 || coords.Longitude != -74.0 {
		t.Errorf("unexpected coordinates: %+v", coords)
	}
}

func TestHandler_RateLimit(t *testing.T) {
	env := setupTestRouter(t)

	limited := gin.New()
	limited.Use(RateLimitMiddleware(1, nil))
	handler := NewHandler(env.db, env.feed, env.refresher, env.tips, env.loc)
	handler.RegisterRoutes(limited)

	sawLimit := false
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		limited.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			sawLimit = true
		}
	}
	if !sawLimit {
		t.Error("expected at least one rate-limited response")
	}
}

func TestHandler_RateLimit_PerSubscriberBuckets(t *testing.T) {
	env := setupTestRouter(t)

	limited := gin.New()
	limited.Use(RateLimitMiddleware(1, nil))
	handler := NewHandler(env.db, env.feed, env.refresher, env.tips, env.loc)
	handler.RegisterRoutes(limited)

	// Exhaust u1's budget.
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/users/u1/alerts", nil)
		limited.ServeHTTP(w, req)
	}

	// u2 has its own bucket and still gets through.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/u2/alerts", nil)
	limited.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected u2 unaffected by u1's limit, got %d", w.Code)
	}
}
