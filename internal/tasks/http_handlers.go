package tasks

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/analytics"
	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/auth"
	"smart-tasks-backend/internal/httpapi"
)

type Handlers struct {
	svc    *Service
	events *analytics.Recorder
	log    *zap.Logger
}

func NewHandlers(svc *Service, events *analytics.Recorder, log *zap.Logger) *Handlers {
	return &Handlers{svc: svc, events: events, log: log}
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	f := ListFilter{
		Status:   httpapi.QueryString(r, "status"),
		Priority: httpapi.QueryString(r, "priority"),
		Search:   httpapi.QueryString(r, "search"),
		Ordering: httpapi.QueryString(r, "ordering"),
	}
	v := &apperr.ValidationError{}
	if f.Status != "" && !slices.Contains(Statuses, f.Status) {
		v.Add("status", "select a valid choice")
	}
	if f.Priority != "" && !slices.Contains(Priorities, f.Priority) {
		v.Add("priority", "select a valid choice")
	}
	if cat, set, err := httpapi.QueryUint(r, "category"); err != nil {
		v.Add("category", "must be a positive integer")
	} else if set {
		f.CategoryID = &cat
	}
	if err := v.OrNil(); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	list, err := h.svc.List(r.Context(), uid, f)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeViews(w, r, list)
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	var body Fields
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	t, err := h.svc.Create(r.Context(), uid, body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.events.Track(r, "task_created", map[string]any{
		"task_id":       t.ID,
		"priority":      t.Priority,
		"priority_tier": analytics.TierFromScore(t.PriorityScore),
		"has_deadline":  t.Deadline != nil,
		"has_category":  t.CategoryID != nil,
	})

	h.writeDetail(w, r, http.StatusCreated, t)
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	t, err := h.svc.Get(r.Context(), uid, id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, t)
}

// Patch updates the fields present in the body.
func (h *Handlers) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Put behaves like Patch but insists on a title.
func (h *Handlers) Put(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request, full bool) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var body Fields
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if full && body.Title == nil {
		httpapi.Error(w, r, apperr.Invalid("title", "this field is required"))
		return
	}

	t, err := h.svc.Update(r.Context(), uid, id, body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, t)
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), uid, id); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	before, err := h.svc.Get(r.Context(), uid, id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	t, err := h.svc.MarkCompleted(r.Context(), uid, id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	if before.Status != StatusCompleted {
		h.events.Track(r, "task_completed", map[string]any{
			"task_id":                  t.ID,
			"priority_tier":            analytics.TierFromScore(t.PriorityScore),
			"time_since_created_sec":   int(t.CompletedAt.Sub(t.CreatedAt) / time.Second),
			"completed_after_deadline": t.Deadline != nil && t.CompletedAt.After(*t.Deadline),
		})
	}

	httpapi.OK(w, map[string]string{"status": "Task marked as completed"})
}

func (h *Handlers) Overdue(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.Overdue(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeViews(w, r, list)
}

func (h *Handlers) HighPriority(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.HighPriority(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeViews(w, r, list)
}

func (h *Handlers) ByStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	groups, err := h.svc.ByStatus(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	out := make(map[string][]TaskView, len(groups))
	for status, list := range groups {
		views, err := h.svc.Views(r.Context(), list)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		out[status] = views
	}
	httpapi.OK(w, out)
}

func (h *Handlers) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	var body BulkUpdateRequest
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	ids, err := h.svc.BulkUpdate(r.Context(), uid, body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, map[string]any{
		"message":       fmt.Sprintf("Successfully updated %d tasks", len(ids)),
		"updated_tasks": ids,
	})
}

// AIAnalysis runs the scorer on one task. A scorer failure still answers
// 200, flagged with X-AI-Error, and points at the failed AI request.
func (h *Handlers) AIAnalysis(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var body AnalysisRequest
	if err := httpapi.DecodeOptional(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	before, err := h.svc.Get(r.Context(), uid, id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	res, req, err := h.svc.Analyze(r.Context(), uid, id, body)
	if errors.Is(err, ai.ErrScorerFailed) {
		h.aiFailed(w, r, req, err, map[string]any{"task_id": id})
		return
	}
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.events.Track(r, "task_priority_assigned", map[string]any{
		"task_id":         id,
		"priority_before": analytics.TierFromScore(before.PriorityScore),
		"priority_after":  analytics.TierFromScore(res.PriorityAnalysis.SuggestedPriorityScore),
		"priority_source": "ai",
		"ai_request_id":   req.ID,
		"ai_scores": map[string]any{
			"suggested_priority_score": res.PriorityAnalysis.SuggestedPriorityScore,
			"confidence":               res.PriorityAnalysis.Confidence,
		},
	})

	httpapi.OK(w, res)
}

// LatestAnalysis returns the analysis stored by the last AIAnalysis call.
func (h *Handlers) LatestAnalysis(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	a, err := h.svc.LatestAnalysis(r.Context(), uid, id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, a)
}

func (h *Handlers) AIPrioritization(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	var body PrioritizationRequest
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	res, req, err := h.svc.Prioritize(r.Context(), uid, body)
	if errors.Is(err, ai.ErrScorerFailed) {
		h.aiFailed(w, r, req, err, map[string]any{"prioritized_tasks": []any{}})
		return
	}
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, res)
}

func (h *Handlers) DashboardStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.DashboardStats(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, stats)
}

func (h *Handlers) aiFailed(w http.ResponseWriter, r *http.Request, req *ai.Request, err error, body map[string]any) {
	h.log.Warn("ai analysis failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", httpapi.RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
	httpapi.FlagAIError(w)

	body["status"] = ai.StatusFailed
	body["error"] = err.Error()
	if req != nil {
		body["ai_request_id"] = req.ID
	}
	httpapi.OK(w, body)
}

func (h *Handlers) writeViews(w http.ResponseWriter, r *http.Request, list []Task) {
	views, err := h.svc.Views(r.Context(), list)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, views)
}

func (h *Handlers) writeDetail(w http.ResponseWriter, r *http.Request, status int, t *Task) {
	d, err := h.svc.Detail(r.Context(), t)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.JSON(w, status, d)
}
