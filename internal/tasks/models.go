package tasks

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/apperr"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	Statuses   = []string{StatusTodo, StatusInProgress, StatusCompleted, StatusCancelled}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
)

const (
	DefaultPriorityScore = 50.0
	HighPriorityScore    = 70.0
	DefaultCategoryColor = "#3B82F6"
)

// Category is shared by all users.
type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Color       string `gorm:"size:7;not null" json:"color"`
	Description string `json:"description"`
	// UsageFrequency is exposed read-only and no operation increments it.
	UsageFrequency int       `gorm:"not null" json:"usage_frequency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Task struct {
	ID                    uint                         `gorm:"primaryKey"`
	Title                 string                       `gorm:"size:200;not null"`
	Description           string                       `gorm:"not null"`
	Status                string                       `gorm:"size:15;not null;index:idx_tasks_status_score,priority:1;index:idx_tasks_owner_status,priority:2"`
	Priority              string                       `gorm:"size:10;not null"`
	PriorityScore         float64                      `gorm:"not null;index:idx_tasks_status_score,priority:2"`
	Deadline              *time.Time                   `gorm:"index"`
	AISuggestedDeadline   *time.Time                   `gorm:"column:ai_suggested_deadline"`
	CategoryID            *uint                        `gorm:"index"`
	AssignedToID          uint                         `gorm:"not null;index:idx_tasks_owner_status,priority:1"`
	AIEnhancedDescription string                       `gorm:"column:ai_enhanced_description;not null"`
	AISuggestedTags       datatypes.JSONType[[]string] `gorm:"column:ai_suggested_tags"`
	ContextInsights       datatypes.JSONMap            `gorm:"column:context_insights"`
	EstimatedDuration     *int
	ActualDuration        *int
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
}

// BeforeSave keeps priority_score inside [0,100] whatever path wrote it and
// normalises the JSON columns so they never read back as null.
func (t *Task) BeforeSave(*gorm.DB) error {
	if t.PriorityScore < 0 || t.PriorityScore > 100 {
		return apperr.Invalid("priority_score", fmt.Sprintf("must be between 0 and 100, got %v", t.PriorityScore))
	}
	if t.AISuggestedTags.Data() == nil {
		t.AISuggestedTags = datatypes.NewJSONType([]string{})
	}
	if t.ContextInsights == nil {
		t.ContextInsights = datatypes.JSONMap{}
	}
	return nil
}

// TaskComment is immutable once created.
type TaskComment struct {
	ID            uint      `gorm:"primaryKey"`
	TaskID        uint      `gorm:"not null;index"`
	AuthorID      uint      `gorm:"not null;index"`
	Content       string    `gorm:"not null"`
	IsAIGenerated bool      `gorm:"column:is_ai_generated;not null"`
	CreatedAt     time.Time `gorm:"index"`
}

// TaskAIAnalysis is the latest analysis of a task, one row per task.
type TaskAIAnalysis struct {
	ID                     uint                                        `gorm:"primaryKey" json:"id"`
	TaskID                 uint                                        `gorm:"uniqueIndex;not null" json:"task"`
	PriorityAnalysis       datatypes.JSONType[ai.PriorityAnalysis]     `json:"priority_analysis"`
	ComplexityAssessment   datatypes.JSONType[ai.ComplexityAssessment] `json:"complexity_assessment"`
	DeadlineRecommendation datatypes.JSONType[ai.DeadlineSuggestion]   `json:"deadline_recommendation"`
	CategorySuggestions    datatypes.JSONType[[]string]                `json:"category_suggestions"`
	DependencyAnalysis     datatypes.JSONMap                           `json:"dependency_analysis"`
	RiskAssessment         datatypes.JSONType[ai.RiskAssessment]       `json:"risk_assessment"`
	AnalysisConfidence     float64                                     `gorm:"not null" json:"analysis_confidence"`
	AnalysisVersion        string                                      `gorm:"size:20;not null" json:"analysis_version"`
	LastUpdated            time.Time                                   `gorm:"autoUpdateTime" json:"last_updated"`
	CreatedAt              time.Time                                   `json:"created_at"`
}

func (TaskAIAnalysis) TableName() string { return "task_ai_analyses" }

const analysisVersion = "1.0"

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&Category{}, &Task{}, &TaskComment{}, &TaskAIAnalysis{}}
}
