package tasks

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/db"
)

// AnalysisRequest carries the optional hints a client may attach to an
// analysis. They are recorded on the AI request and passed to the scorer.
type AnalysisRequest struct {
	ContextData     json.RawMessage `json:"context_data,omitempty"`
	UserPreferences json.RawMessage `json:"user_preferences,omitempty"`
	CurrentTaskLoad json.RawMessage `json:"current_task_load,omitempty"`
}

type analysisInput struct {
	Task            ai.TaskInput    `json:"task"`
	UserPreferences json.RawMessage `json:"user_preferences,omitempty"`
	CurrentTaskLoad json.RawMessage `json:"current_task_load,omitempty"`
}

func (s *Service) taskInput(ctx context.Context, t *Task) (ai.TaskInput, error) {
	in := ai.TaskInput{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		Status:            t.Status,
		Priority:          t.Priority,
		PriorityScore:     t.PriorityScore,
		Deadline:          t.Deadline,
		EstimatedDuration: t.EstimatedDuration,
	}
	if t.CategoryID != nil {
		var c Category
		err := s.db.WithContext(ctx).Select("name").Where("id = ?", *t.CategoryID).Take(&c).Error
		if err != nil && !db.IsNotFound(err) {
			return in, err
		}
		in.Category = c.Name
	}
	return in, nil
}

// Analyze runs the scorer over one owned task, keeps the latest analysis
// and copies its suggestions onto the task. A scorer failure is returned as
// ai.ErrScorerFailed together with the failed request.
func (s *Service) Analyze(ctx context.Context, uid, id uint, opts AnalysisRequest) (*ai.TaskAnalysis, *ai.Request, error) {
	t, err := s.Get(ctx, uid, id)
	if err != nil {
		return nil, nil, err
	}
	in, err := s.taskInput(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	if len(opts.ContextData) > 0 {
		in.ContextData = opts.ContextData
	}

	res, req, err := ai.Track(ctx, s.tracker, ai.Submission{
		UserID:         uid,
		RequestType:    ai.TypeTaskEnhancement,
		PromptTemplate: ai.BuildTaskPrompt(in),
		Input: analysisInput{
			Task:            in,
			UserPreferences: opts.UserPreferences,
			CurrentTaskLoad: opts.CurrentTaskLoad,
		},
	}, func(ctx context.Context) (*ai.TaskAnalysis, error) {
		return s.scorer.AnalyzeTask(ctx, in)
	})
	if err != nil {
		return nil, req, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := storeAnalysis(tx, t.ID, res); err != nil {
			return err
		}
		deadline := res.DeadlineSuggestion.SuggestedDeadline.UTC()
		t.AISuggestedDeadline = &deadline
		t.AIEnhancedDescription = res.EnhancedDescription
		t.AISuggestedTags = datatypes.NewJSONType(res.SuggestedTags)
		return tx.Save(t).Error
	})
	if err != nil {
		return nil, req, err
	}
	return res, req, nil
}

// storeAnalysis keeps one analysis row per task; a rerun overwrites it in
// place. dependency_analysis is never produced by the scorer and survives.
func storeAnalysis(tx *gorm.DB, taskID uint, res *ai.TaskAnalysis) error {
	categories := res.CategorySuggestions
	if categories == nil {
		categories = []string{}
	}
	a := TaskAIAnalysis{
		TaskID:                 taskID,
		PriorityAnalysis:       datatypes.NewJSONType(res.PriorityAnalysis),
		ComplexityAssessment:   datatypes.NewJSONType(res.Complexity),
		DeadlineRecommendation: datatypes.NewJSONType(res.DeadlineSuggestion),
		CategorySuggestions:    datatypes.NewJSONType(categories),
		DependencyAnalysis:     datatypes.JSONMap{},
		RiskAssessment:         datatypes.NewJSONType(res.Risk),
		AnalysisConfidence:     res.PriorityAnalysis.Confidence,
		AnalysisVersion:        analysisVersion,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"priority_analysis", "complexity_assessment", "deadline_recommendation",
			"category_suggestions", "risk_assessment", "analysis_confidence",
			"analysis_version", "last_updated",
		}),
	}).Create(&a).Error
}

// LatestAnalysis returns the stored analysis of an owned task.
func (s *Service) LatestAnalysis(ctx context.Context, uid, id uint) (*TaskAIAnalysis, error) {
	if _, err := s.Get(ctx, uid, id); err != nil {
		return nil, err
	}
	var a TaskAIAnalysis
	err := s.db.WithContext(ctx).Where("task_id = ?", id).First(&a).Error
	if db.IsNotFound(err) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type PrioritizationRequest struct {
	TaskIDs     []uint          `json:"task_ids" validate:"required,min=1"`
	ContextData json.RawMessage `json:"context_data,omitempty"`
}

// Prioritize ranks owned tasks through the scorer. Nothing but the AI
// request is persisted.
func (s *Service) Prioritize(ctx context.Context, uid uint, in PrioritizationRequest) (*ai.Prioritization, *ai.Request, error) {
	ids := uniqueIDs(in.TaskIDs)

	var list []Task
	err := s.db.WithContext(ctx).
		Where("id IN ? AND assigned_to_id = ?", ids, uid).
		Order("priority_score DESC").Order("id").
		Find(&list).Error
	if err != nil {
		return nil, nil, err
	}
	if len(list) != len(ids) {
		return nil, nil, apperr.Invalid("task_ids", "some tasks not found or access denied")
	}

	inputs := make([]ai.TaskInput, 0, len(list))
	for i := range list {
		ti, err := s.taskInput(ctx, &list[i])
		if err != nil {
			return nil, nil, err
		}
		if len(in.ContextData) > 0 {
			ti.ContextData = in.ContextData
		}
		inputs = append(inputs, ti)
	}

	return ai.Track(ctx, s.tracker, ai.Submission{
		UserID:         uid,
		RequestType:    ai.TypeTaskPrioritization,
		PromptTemplate: ai.BuildPrioritizationPrompt(inputs),
		Input:          map[string]any{"tasks": inputs},
	}, func(ctx context.Context) (*ai.Prioritization, error) {
		return s.scorer.PrioritizeTasks(ctx, inputs)
	})
}
