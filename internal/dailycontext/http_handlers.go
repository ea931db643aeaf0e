package dailycontext

import (
	"errors"
	"net/http"
	"slices"

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

	f := EntryFilter{
		SourceType:       httpapi.QueryString(r, "source_type"),
		ProcessingStatus: httpapi.QueryString(r, "processing_status"),
		Search:           httpapi.QueryString(r, "search"),
		Ordering:         httpapi.QueryString(r, "ordering"),
	}
	v := &apperr.ValidationError{}
	if f.SourceType != "" && !slices.Contains(SourceTypes, f.SourceType) {
		v.Add("source_type", "select a valid choice")
	}
	if f.ProcessingStatus != "" && !slices.Contains(ProcessingStatuses, f.ProcessingStatus) {
		v.Add("processing_status", "select a valid choice")
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

	var body EntryInput
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	e, err := h.svc.Create(r.Context(), uid, body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.events.Track(r, "context_entry_created", map[string]any{
		"context_entry_id": e.ID,
		"source_type":      e.SourceType,
		"content_length":   len(e.Content),
	})

	h.writeDetail(w, r, http.StatusCreated, e)
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

	e, err := h.svc.Get(r.Context(), uid, id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, e)
}

func (h *Handlers) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Put behaves like Patch but insists on content.
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

	var body EntryFields
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if full && body.Content == nil {
		httpapi.Error(w, r, apperr.Invalid("content", "this field is required"))
		return
	}

	e, err := h.svc.Update(r.Context(), uid, id, body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeDetail(w, r, http.StatusOK, e)
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

func (h *Handlers) PendingProcessing(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.PendingProcessing(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeViews(w, r, list)
}

func (h *Handlers) HighRelevance(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.HighRelevance(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeViews(w, r, list)
}

func (h *Handlers) WithExtractedTasks(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.WithExtractedTasks(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	h.writeViews(w, r, list)
}

// Analyze runs the scorer on one entry. Like the task endpoints, a scorer
// failure answers 200 with X-AI-Error set.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var body AnalyzeRequest
	if err := httpapi.DecodeOptional(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	res, req, err := h.svc.Analyze(r.Context(), uid, id, body)
	if errors.Is(err, ai.ErrScorerFailed) {
		h.aiFailed(w, r, req, err, map[string]any{"context_entry_id": id})
		return
	}
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	h.events.Track(r, "context_analyzed", map[string]any{
		"context_entry_id": id,
		"analysis_type":    res.AnalysisType,
		"relevance_score":  res.RelevanceScore,
		"extracted_tasks":  len(res.Insights.ExtractedTasks),
		"ai_request_id":    req.ID,
	})

	httpapi.OK(w, res)
}

func (h *Handlers) BulkAnalyze(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	var body BulkAnalyzeRequest
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	res, req, err := h.svc.BulkAnalyze(r.Context(), uid, body)
	if errors.Is(err, ai.ErrScorerFailed) {
		h.aiFailed(w, r, req, err, map[string]any{"results": []any{}})
		return
	}
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, res)
}

func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	sum, err := h.svc.Summary(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, sum)
}

func (h *Handlers) ListInsights(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	f := InsightFilter{
		InsightType: httpapi.QueryString(r, "insight_type"),
		Ordering:    httpapi.QueryString(r, "ordering"),
	}
	v := &apperr.ValidationError{}
	if f.InsightType != "" && !slices.Contains(InsightTypes, f.InsightType) {
		v.Add("insight_type", "select a valid choice")
	}
	if act, set, err := httpapi.QueryBool(r, "is_actionable"); err != nil {
		v.Add("is_actionable", "must be true or false")
	} else if set {
		f.IsActionable = &act
	}
	if err := v.OrNil(); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	list, err := h.svc.ListInsights(r.Context(), uid, f)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, list)
}

func (h *Handlers) CreateInsight(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	var body InsightInput
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	ins, err := h.svc.CreateInsight(r.Context(), uid, body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, ins)
}

func (h *Handlers) ActionableInsights(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ActionableInsights(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, list)
}

func (h *Handlers) HighConfidenceInsights(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.HighConfidenceInsights(r.Context(), uid)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, list)
}

func (h *Handlers) aiFailed(w http.ResponseWriter, r *http.Request, req *ai.Request, err error, body map[string]any) {
	h.log.Warn("context analysis failed",
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

func (h *Handlers) writeViews(w http.ResponseWriter, r *http.Request, list []Entry) {
	views, err := h.svc.ListViews(r.Context(), list)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, views)
}

func (h *Handlers) writeDetail(w http.ResponseWriter, r *http.Request, status int, e *Entry) {
	d, err := h.svc.Detail(r.Context(), e)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.JSON(w, status, d)
}
