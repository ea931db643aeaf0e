package dailycontext

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/apperr"
)

type AnalyzeRequest struct {
	AnalysisType string `json:"analysis_type" validate:"omitempty,oneof=full tasks_only sentiment_only entities_only"`
	// ForceReprocess is accepted for compatibility; every call reprocesses.
	ForceReprocess bool `json:"force_reprocess"`
}

type BulkAnalyzeRequest struct {
	ContextEntryIDs []uint `json:"context_entry_ids" validate:"required,min=1"`
	AnalysisType    string `json:"analysis_type" validate:"omitempty,oneof=full tasks_only sentiment_only"`
	ForceReprocess  bool   `json:"force_reprocess"`
}

const analysisStep = "ai_analysis"

func contextInput(e *Entry, analysisType string) ai.ContextInput {
	if analysisType == "" {
		analysisType = ai.AnalysisFull
	}
	return ai.ContextInput{
		ID:             e.ID,
		SourceType:     e.SourceType,
		Title:          e.Title,
		Sender:         e.Sender,
		Content:        e.Content,
		Timestamp:      e.Timestamp,
		RelevanceScore: e.RelevanceScore,
		AnalysisType:   analysisType,
	}
}

// Analyze runs the scorer over one entry and stores what it found. A scorer
// failure leaves the entry failed and is returned as ai.ErrScorerFailed.
func (s *Service) Analyze(ctx context.Context, uid, id uint, in AnalyzeRequest) (*ai.ContextAnalysis, *ai.Request, error) {
	e, err := s.Get(ctx, uid, id)
	if err != nil {
		return nil, nil, err
	}

	e.ProcessingStatus = StatusProcessing
	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		return nil, nil, err
	}

	input := contextInput(e, in.AnalysisType)
	res, req, err := ai.Track(ctx, s.tracker, ai.Submission{
		UserID:         uid,
		RequestType:    ai.TypeContextAnalysis,
		PromptTemplate: ai.BuildContextPrompt(input),
		Input:          input,
	}, func(ctx context.Context) (*ai.ContextAnalysis, error) {
		return s.scorer.AnalyzeContext(ctx, input)
	})
	if err != nil {
		s.markFailed(ctx, e, req, err)
		return nil, req, err
	}

	if req.ProcessingTime != nil {
		res.ProcessingTime = *req.ProcessingTime
	}
	if err := s.storeAnalysis(ctx, e, req, res); err != nil {
		return nil, req, err
	}
	return res, req, nil
}

func (s *Service) storeAnalysis(ctx context.Context, e *Entry, req *ai.Request, res *ai.ContextAnalysis) error {
	now := s.now()
	found := res.Insights

	e.ProcessingStatus = StatusCompleted
	e.ProcessedInsights = datatypes.NewJSONType(found)
	e.RelevanceScore = clamp(res.RelevanceScore)
	e.LastProcessedAt = &now
	e.ProcessingError = ""
	if found.ExtractedTasks != nil {
		e.ExtractedTasks = datatypes.NewJSONType(found.ExtractedTasks)
	}
	if found.KeyEntities != nil {
		e.KeyEntities = datatypes.NewJSONType(found.KeyEntities)
	}
	if found.Sentiment != nil {
		e.SentimentAnalysis = datatypes.NewJSONType(found.Sentiment)
	}
	if found.PriorityIndicators != nil {
		e.PriorityIndicators = datatypes.NewJSONType(found.PriorityIndicators)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(e).Error; err != nil {
			return err
		}

		if found.ExtractedTasks != nil {
			if err := tx.Where("context_entry_id = ? AND source = ?", e.ID, SourceAI).Delete(&Insight{}).Error; err != nil {
				return err
			}
			for _, task := range found.ExtractedTasks {
				meta := datatypes.JSONMap{"priority_score": task.PriorityScore, "ai_request_id": req.ID}
				if task.SuggestedDeadline != nil {
					meta["suggested_deadline"] = task.SuggestedDeadline.UTC().Format(time.RFC3339)
				}
				ins := Insight{
					EntryID:         e.ID,
					InsightType:     "task",
					Title:           task.Title,
					Description:     task.Description,
					ConfidenceScore: clamp(task.Confidence),
					Metadata:        meta,
					IsActionable:    true,
					Source:          SourceAI,
				}
				if err := tx.Create(&ins).Error; err != nil {
					return err
				}
			}
		}

		return tx.Create(&ProcessingLog{
			EntryID:        e.ID,
			ProcessingStep: analysisStep,
			Status:         StatusCompleted,
			Details: datatypes.JSONMap{
				"analysis_type":   res.AnalysisType,
				"ai_request_id":   req.ID,
				"relevance_score": res.RelevanceScore,
				"extracted_tasks": len(found.ExtractedTasks),
			},
			ProcessingTime: res.ProcessingTime,
		}).Error
	})
}

// markFailed records a failed run on the entry. It is best-effort: the
// scorer error is what the caller sees.
func (s *Service) markFailed(ctx context.Context, e *Entry, req *ai.Request, cause error) {
	msg := cause.Error()
	var elapsed float64
	details := datatypes.JSONMap{"error": msg}
	if req != nil {
		details["ai_request_id"] = req.ID
		if req.ProcessingTime != nil {
			elapsed = *req.ProcessingTime
		}
	}

	e.ProcessingStatus = StatusFailed
	e.ProcessingError = msg
	e.ProcessingAttempts++

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(e).Error; err != nil {
			return err
		}
		return tx.Create(&ProcessingLog{
			EntryID:        e.ID,
			ProcessingStep: analysisStep,
			Status:         StatusFailed,
			Details:        details,
			ProcessingTime: elapsed,
		}).Error
	})
	if err != nil {
		s.log.Error("record failed context analysis", zap.Uint("entry_id", e.ID), zap.Error(err))
	}
	if !errors.Is(cause, ai.ErrScorerFailed) {
		s.log.Error("context analysis failed", zap.Uint("entry_id", e.ID), zap.Error(cause))
	}
}

// BulkAnalyze scores several owned entries in one AI request. Entries are
// not modified.
func (s *Service) BulkAnalyze(ctx context.Context, uid uint, in BulkAnalyzeRequest) (*ai.BulkContextAnalysis, *ai.Request, error) {
	ids := make([]uint, 0, len(in.ContextEntryIDs))
	seen := map[uint]bool{}
	for _, id := range in.ContextEntryIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	var entries []Entry
	if err := s.owned(ctx, uid).Where("id IN ?", ids).Order("id").Find(&entries).Error; err != nil {
		return nil, nil, err
	}
	if len(entries) != len(ids) {
		return nil, nil, apperr.Invalid("context_entry_ids", "some context entries not found or access denied")
	}

	analysisType := in.AnalysisType
	if analysisType == "" {
		analysisType = ai.AnalysisFull
	}
	bulk := ai.BulkContextInput{AnalysisType: analysisType, Entries: make([]ai.ContextInput, 0, len(entries))}
	for i := range entries {
		bulk.Entries = append(bulk.Entries, contextInput(&entries[i], analysisType))
	}

	return ai.Track(ctx, s.tracker, ai.Submission{
		UserID:         uid,
		RequestType:    ai.TypeContextAnalysis,
		PromptTemplate: bulkPrompt(bulk.Entries),
		Input:          bulk,
	}, func(ctx context.Context) (*ai.BulkContextAnalysis, error) {
		return s.scorer.BulkAnalyzeContext(ctx, bulk)
	})
}

func bulkPrompt(entries []ai.ContextInput) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("---\n")
		}
		b.WriteString(ai.BuildContextPrompt(e))
	}
	return b.String()
}

func clamp(v float64) float64 {
	return min(max(v, 0), 100)
}
