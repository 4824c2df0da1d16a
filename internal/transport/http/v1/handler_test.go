package v1_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/assistant/internal/adapter/llm"
	"github.com/fieldline/assistant/internal/config"
	"github.com/fieldline/assistant/internal/domain"
	"github.com/fieldline/assistant/internal/event"
	"github.com/fieldline/assistant/internal/planner"
	"github.com/fieldline/assistant/internal/planstore"
	store "github.com/fieldline/assistant/internal/repository"
	"github.com/fieldline/assistant/internal/service"
	"github.com/fieldline/assistant/internal/testutil"
	"github.com/fieldline/assistant/internal/tools"
	transport "github.com/fieldline/assistant/internal/transport/http"
)

func newTestServer(t *testing.T) (*echo.Echo, *store.SQLiteStore) {
	t.Helper()

	db := testutil.NewTestSQLiteStore(t)
	log := testutil.NewTestLogger(t)

	registry := planner.NewRegistry(nil)
	tools.RegisterBuiltins(registry)

	matcher := planner.NewMatcher()
	for _, pattern := range tools.DefaultPatterns() {
		matcher.Register(pattern)
	}

	executor := planner.NewExecutor(registry, 5*time.Second, log)
	plans := planstore.New(db, time.Hour, log)
	bus := event.NewBus(log)
	cfg := &config.Config{HistoryLimit: 20, LLMModel: "test-model"}

	svc := service.New(db, llm.NewMockClient(), registry, matcher, executor, plans, bus, cfg, log)

	require.NoError(t, db.CreateAPIToken(context.Background(), &domain.APIToken{
		Token:      "test-token",
		UserID:     "u1",
		BusinessID: "b1",
		CreatedAt:  time.Now(),
	}))

	return transport.NewServer(svc, db, bus), db
}

func seedCompletedJob(t *testing.T, db *store.SQLiteStore, jobID string) {
	t.Helper()
	done := time.Now().Add(-24 * time.Hour)
	require.NoError(t, db.CreateJob(context.Background(), &domain.Job{
		JobID:       jobID,
		BusinessID:  "b1",
		CustomerID:  "c1",
		Title:       "test job",
		Status:      "completed",
		CompletedAt: &done,
		CreatedAt:   done,
	}))
}

func doRequest(e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEvents(t *testing.T, body string) []domain.StreamEvent {
	t.Helper()
	var events []domain.StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev domain.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	return events
}

func TestHealthNeedsNoAuth(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatRequiresAuth(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/v1/chat", "", domain.ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(e, http.MethodPost, "/v1/chat", "wrong-token", domain.ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doRequest(e, http.MethodPost, "/v1/chat", "test-token", domain.ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreamsNDJSON(t *testing.T) {
	e, db := newTestServer(t)
	seedCompletedJob(t, db, "j1")

	rec := doRequest(e, http.MethodPost, "/v1/chat", "test-token", domain.ChatRequest{
		Message: "invoice all completed jobs",
		Entities: map[string]any{
			"jobs": []any{map[string]any{"job_id": "j1", "amount_cents": float64(10000)}},
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get(echo.HeaderContentType))

	events := decodeEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypePlanPreview, events[0].Type)
	assert.NotNil(t, events[0].Plan)
}

func TestPlanLifecycleOverHTTP(t *testing.T) {
	e, db := newTestServer(t)
	seedCompletedJob(t, db, "j1")

	// Propose.
	rec := doRequest(e, http.MethodPost, "/v1/chat", "test-token", domain.ChatRequest{
		Message: "invoice all completed jobs",
		Entities: map[string]any{
			"jobs": []any{map[string]any{"job_id": "j1", "amount_cents": float64(10000)}},
		},
	})
	events := decodeEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	planID := events[0].PlanID

	// The pending plan is visible.
	rec = doRequest(e, http.MethodGet, "/v1/plans/pending", "test-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending domain.PendingPlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	assert.Equal(t, planID, pending.Plan.PlanID)

	// Approve it.
	rec = doRequest(e, http.MethodPost, "/v1/plans/"+planID+"/decide", "test-token",
		domain.PlanDecisionRequest{Decision: "approve"})
	require.Equal(t, http.StatusOK, rec.Code)
	events = decodeEvents(t, rec.Body.String())
	last := events[len(events)-1]
	assert.Equal(t, domain.EventTypePlanComplete, last.Type)

	// A second decision finds nothing.
	rec = doRequest(e, http.MethodPost, "/v1/plans/"+planID+"/decide", "test-token",
		domain.PlanDecisionRequest{Decision: "approve"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodGet, "/v1/plans/pending", "test-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTools(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodGet, "/v1/tools", "test-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tools []domain.ToolDescriptor `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tools, 8)
	assert.Equal(t, "create_invoice", resp.Tools[0].Name)
}
