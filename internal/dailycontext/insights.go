package dailycontext

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/db"
)

type InsightInput struct {
	ContextEntry    uint           `json:"context_entry" validate:"required"`
	InsightType     string         `json:"insight_type" validate:"required,oneof=task deadline priority contact meeting project other"`
	Title           string         `json:"title" validate:"required,mintrim=1,max=200"`
	Description     string         `json:"description"`
	ConfidenceScore *float64       `json:"confidence_score" validate:"required,gte=0,lte=100"`
	Metadata        map[string]any `json:"metadata"`
	IsActionable    bool           `json:"is_actionable"`
}

type InsightFilter struct {
	InsightType  string
	IsActionable *bool
	Ordering     string
}

var insightOrdering = map[string]string{
	"confidence_score": "confidence_score",
	"created_at":       "created_at",
}

var defaultInsightOrdering = []string{"-confidence_score", "-created_at"}

// ownedInsights scopes insights to entries belonging to uid.
func (s *Service) ownedInsights(ctx context.Context, uid uint) *gorm.DB {
	mine := s.db.Model(&Entry{}).Select("id").Where("user_id = ?", uid)
	return s.db.WithContext(ctx).Model(&Insight{}).Where("context_entry_id IN (?)", mine)
}

func (s *Service) findInsights(q *gorm.DB, ordering string) ([]Insight, error) {
	q = db.Ordering(q, ordering, insightOrdering, defaultInsightOrdering, "id DESC")
	out := []Insight{}
	err := q.Find(&out).Error
	return out, err
}

func (s *Service) ListInsights(ctx context.Context, uid uint, f InsightFilter) ([]Insight, error) {
	q := s.ownedInsights(ctx, uid)
	if f.InsightType != "" {
		q = q.Where("insight_type = ?", f.InsightType)
	}
	if f.IsActionable != nil {
		q = q.Where("is_actionable = ?", *f.IsActionable)
	}
	return s.findInsights(q, f.Ordering)
}

func (s *Service) ActionableInsights(ctx context.Context, uid uint) ([]Insight, error) {
	return s.findInsights(s.ownedInsights(ctx, uid).Where("is_actionable = ?", true), "")
}

func (s *Service) HighConfidenceInsights(ctx context.Context, uid uint) ([]Insight, error) {
	return s.findInsights(s.ownedInsights(ctx, uid).Where("confidence_score >= ?", HighConfidenceScore), "")
}

// CreateInsight records a manual insight against one of the caller's
// entries. Out-of-range confidence is rejected, not clamped.
func (s *Service) CreateInsight(ctx context.Context, uid uint, in InsightInput) (*Insight, error) {
	if in.ConfidenceScore == nil || *in.ConfidenceScore < 0 || *in.ConfidenceScore > 100 {
		return nil, apperr.Invalid("confidence_score", "confidence score must be between 0 and 100")
	}
	if _, err := s.Get(ctx, uid, in.ContextEntry); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Invalid("context_entry", "access denied to this context entry")
		}
		return nil, err
	}

	ins := &Insight{
		EntryID:         in.ContextEntry,
		InsightType:     in.InsightType,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		ConfidenceScore: *in.ConfidenceScore,
		Metadata:        in.Metadata,
		IsActionable:    in.IsActionable,
		Source:          SourceManual,
	}
	if err := s.db.WithContext(ctx).Create(ins).Error; err != nil {
		return nil, err
	}
	return ins, nil
}
