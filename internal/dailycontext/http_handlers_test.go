package dailycontext

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
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

func TestCreateEntryHandler(t *testing.T) {
	s, gdb := newService(t, nil)
	require.NoError(t, gdb.AutoMigrate(&analytics.Event{}))
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, analytics.NewRecorder(gdb), zap.NewNop())

	body := `{"content":"Send the invoice","source_type":"email","sender":"acme","timestamp":"2025-03-01T09:00:00Z"}`
	rec := serve(t, h.Create, uid, http.MethodPost, "/context/entries", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got EntryDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Send the invoice", got.Content)
	require.Equal(t, StatusPending, got.ProcessingStatus)
	require.Equal(t, "low", got.UrgencyLevel)
	require.False(t, got.HasExtractedTasks)
	require.Empty(t, got.Insights)

	var events []analytics.Event
	require.NoError(t, gdb.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, "context_entry_created", events[0].EventName)
}

func TestCreateEntryHandlerValidation(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, nil, zap.NewNop())

	future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	rec := serve(t, h.Create, uid, http.MethodPost, "/context/entries",
		`{"content":"later","source_type":"notes","timestamp":"`+future+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"timestamp"`)

	rec = serve(t, h.Create, uid, http.MethodPost, "/context/entries",
		`{"content":"  ","source_type":"notes","timestamp":"2025-03-01T09:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"content"`)
}

func TestListShowsPreviewAndInsightCount(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, nil, zap.NewNop())

	e := createEntry(t, s, uid, "Long", strings.Repeat("a", 250))
	_, _, err := s.Analyze(context.Background(), uid, e.ID, AnalyzeRequest{})
	require.NoError(t, err)

	rec := serve(t, h.List, uid, http.MethodGet, "/context/entries", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got []EntryListView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Len(t, got[0].ContentPreview, 103)
	require.True(t, strings.HasSuffix(got[0].ContentPreview, "..."))
	require.EqualValues(t, 1, got[0].InsightsCount)
	require.True(t, got[0].HasExtractedTasks)
	require.Equal(t, "high", got[0].UrgencyLevel)

	rec = serve(t, h.List, uid, http.MethodGet, "/context/entries?processing_status=bogus", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutRequiresContent(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, nil, zap.NewNop())
	e := createEntry(t, s, uid, "Title", "content")

	rec := serve(t, h.Put, uid, http.MethodPut, "/context/entries/"+itoa(e.ID), `{"title":"New"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.Patch, uid, http.MethodPatch, "/context/entries/"+itoa(e.ID), `{"title":"New"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"title":"New"`)
}

func TestAnalyzeHandlerFlagsScorerFailure(t *testing.T) {
	s, gdb := newService(t, fakeScorer{
		Scorer: ai.NewMockScorer(time.Now),
		analyze: func(context.Context, ai.ContextInput) (*ai.ContextAnalysis, error) {
			return nil, errors.New("model unavailable")
		},
	})
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, nil, zap.NewNop())
	e := createEntry(t, s, uid, "Title", "content")

	rec := serve(t, h.Analyze, uid, http.MethodPost, "/context/entries/"+itoa(e.ID)+"/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-AI-Error"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ai.StatusFailed, body["status"])
	require.NotNil(t, body["ai_request_id"])
}

func TestAnalyzeHandlerRecordsEvent(t *testing.T) {
	s, gdb := newService(t, nil)
	require.NoError(t, gdb.AutoMigrate(&analytics.Event{}))
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, analytics.NewRecorder(gdb), zap.NewNop())
	e := createEntry(t, s, uid, "Title", "content")

	rec := serve(t, h.Analyze, uid, http.MethodPost, "/context/entries/"+itoa(e.ID)+"/analyze",
		`{"analysis_type":"entities_only"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Empty(t, rec.Header().Get("X-AI-Error"))

	var got ai.ContextAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, ai.AnalysisEntitiesOnly, got.AnalysisType)
	require.Empty(t, got.Insights.ExtractedTasks)

	var events []analytics.Event
	require.NoError(t, gdb.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, "context_analyzed", events[0].EventName)
}

func TestInsightHandlers(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	h := NewHandlers(s, nil, zap.NewNop())
	e := createEntry(t, s, uid, "Title", "content")

	rec := serve(t, h.CreateInsight, uid, http.MethodPost, "/context/insights",
		`{"context_entry":`+itoa(e.ID)+`,"insight_type":"deadline","title":"Due Friday","confidence_score":101}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"confidence_score"`)

	rec = serve(t, h.CreateInsight, uid, http.MethodPost, "/context/insights",
		`{"context_entry":`+itoa(e.ID)+`,"insight_type":"deadline","title":"Due Friday","confidence_score":88,"is_actionable":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, h.ListInsights, uid, http.MethodGet, "/context/insights?is_actionable=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(t, h.ListInsights, uid, http.MethodGet, "/context/insights?insight_type=deadline&is_actionable=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []Insight
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, SourceManual, got[0].Source)

	rec = serve(t, h.ListInsights, uid, http.MethodGet, "/context/insights?is_actionable=maybe", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
