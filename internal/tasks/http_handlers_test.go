package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/analytics"
	"smart-tasks-backend/internal/auth"
)

func serve(t *testing.T, h http.HandlerFunc, uid uint, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := auth.WithUserID(r.Context(), uid)
	ctx = analytics.WithUserID(ctx, uid)

	mux := http.NewServeMux()
	mux.HandleFunc(method+" "+pattern(target), h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r.WithContext(ctx))
	return rec
}

// pattern turns /tasks/12/ai_analysis into /tasks/{id}/ai_analysis.
func pattern(target string) string {
	path := strings.SplitN(target, "?", 2)[0]
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p != "" && strings.Trim(p, "0123456789") == "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func TestCreateHandlerRecordsEvent(t *testing.T) {
	s, gdb := newService(t, nil)
	require.NoError(t, gdb.AutoMigrate(&analytics.Event{}))
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, analytics.NewRecorder(gdb), zap.NewNop())

	rec := serve(t, h.Create, uid, http.MethodPost, "/tasks", `{"title":"Draft plan","priority":"high"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got TaskDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Draft plan", got.Title)
	require.Equal(t, "high", got.Priority)
	require.Equal(t, "medium", got.UrgencyLevel)
	require.Empty(t, got.Comments)
	require.Equal(t, []string{}, got.AISuggestedTags)

	var events []analytics.Event
	require.NoError(t, gdb.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, "task_created", events[0].EventName)
}

func TestCreateHandlerRejectsShortTitle(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, nil, zap.NewNop())

	rec := serve(t, h.Create, uid, http.MethodPost, "/tasks", `{"title":"  ab "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"title"`)
}

func TestPutRequiresTitle(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	task := createTask(t, s, uid, "Original", 50)
	h := NewHandlers(s, nil, zap.NewNop())

	target := fmt.Sprintf("/tasks/%d", task.ID)
	rec := serve(t, h.Put, uid, http.MethodPut, target, `{"status":"in_progress"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.Patch, uid, http.MethodPatch, target, `{"status":"in_progress"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGetHandlerHidesOtherUsersTasks(t *testing.T) {
	s, gdb := newService(t, nil)
	ana := newUser(t, gdb, "ana")
	bob := newUser(t, gdb, "bob")
	task := createTask(t, s, ana, "Secret", 50)
	h := NewHandlers(s, nil, zap.NewNop())

	rec := serve(t, h.Get, bob, http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkCompletedHandler(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	task := createTask(t, s, uid, "Finish", 50)
	h := NewHandlers(s, nil, zap.NewNop())

	rec := serve(t, h.MarkCompleted, uid, http.MethodPost, fmt.Sprintf("/tasks/%d/mark_completed", task.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"Task marked as completed"}`, rec.Body.String())
}

func TestBulkUpdateHandlerMessage(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	a := createTask(t, s, uid, "One", 50)
	b := createTask(t, s, uid, "Two", 50)
	h := NewHandlers(s, nil, zap.NewNop())

	body := fmt.Sprintf(`{"task_ids":[%d,%d],"updates":{"priority":"low"}}`, a.ID, b.ID)
	rec := serve(t, h.BulkUpdate, uid, http.MethodPost, "/tasks/bulk_update", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, fmt.Sprintf(`{"message":"Successfully updated 2 tasks","updated_tasks":[%d,%d]}`, a.ID, b.ID), rec.Body.String())
}

func TestAIAnalysisHandlerFlagsScorerFailure(t *testing.T) {
	scorer := fakeScorer{
		Scorer: ai.NewMockScorer(time.Now),
		analyze: func(context.Context, ai.TaskInput) (*ai.TaskAnalysis, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	s, gdb := newService(t, scorer)
	uid := newUser(t, gdb, "ana")
	task := createTask(t, s, uid, "Analyze me", 50)
	h := NewHandlers(s, nil, zap.NewNop())

	rec := serve(t, h.AIAnalysis, uid, http.MethodPost, fmt.Sprintf("/tasks/%d/ai_analysis", task.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-AI-Error"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "failed", body["status"])
	require.NotNil(t, body["ai_request_id"])
}

func TestAIAnalysisHandlerSuccess(t *testing.T) {
	s, gdb := newService(t, nil)
	require.NoError(t, gdb.AutoMigrate(&analytics.Event{}))
	uid := newUser(t, gdb, "ana")
	task := createTask(t, s, uid, "Analyze me", 50)
	h := NewHandlers(s, analytics.NewRecorder(gdb), zap.NewNop())

	rec := serve(t, h.AIAnalysis, uid, http.MethodPost, fmt.Sprintf("/tasks/%d/ai_analysis", task.ID), `{"context_data":{"meeting":"standup"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Empty(t, rec.Header().Get("X-AI-Error"))

	var res ai.TaskAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, task.ID, res.TaskID)
	require.Equal(t, 75.0, res.PriorityAnalysis.SuggestedPriorityScore)

	var ev analytics.Event
	require.NoError(t, gdb.Where("event_name = ?", "task_priority_assigned").First(&ev).Error)
}
