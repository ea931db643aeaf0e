package dailycontext

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
)

var SourceTypes = []string{"whatsapp", "email", "notes", "slack", "teams", "calendar", "manual", "other"}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var ProcessingStatuses = []string{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

var InsightTypes = []string{"task", "deadline", "priority", "contact", "meeting", "project", "other"}

const (
	HighRelevanceScore  = 70.0
	HighConfidenceScore = 80.0
)

// Entry is one captured message, email or note.
type Entry struct {
	ID                 uint                                   `gorm:"primaryKey"`
	Title              string                                 `gorm:"size:200;not null"`
	Content            string                                 `gorm:"not null"`
	SourceType         string                                 `gorm:"size:20;not null;index:idx_context_owner_source,priority:2"`
	UserID             uint                                   `gorm:"not null;index:idx_context_owner_source,priority:1"`
	Sender             string                                 `gorm:"size:100;not null"`
	Recipients         datatypes.JSONType[[]string]           `gorm:"column:recipients"`
	Timestamp          time.Time                              `gorm:"not null;index"`
	ProcessingStatus   string                                 `gorm:"size:15;not null;index"`
	ProcessedInsights  datatypes.JSONType[ai.ContextInsights] `gorm:"column:processed_insights"`
	ExtractedTasks     datatypes.JSONType[[]ai.ExtractedTask] `gorm:"column:extracted_tasks"`
	PriorityIndicators datatypes.JSONType[[]string]           `gorm:"column:priority_indicators"`
	DeadlineMentions   datatypes.JSONType[[]string]           `gorm:"column:deadline_mentions"`
	KeyEntities        datatypes.JSONType[[]string]           `gorm:"column:key_entities"`
	SentimentAnalysis  datatypes.JSONType[*ai.Sentiment]      `gorm:"column:sentiment_analysis"`
	Categories         datatypes.JSONType[[]string]           `gorm:"column:categories"`
	RelevanceScore     float64                                `gorm:"not null;index"`
	ProcessingAttempts int                                    `gorm:"not null"`
	LastProcessedAt    *time.Time
	ProcessingError    string `gorm:"not null"`
	ExtractedTaskCount int    `gorm:"not null;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Entry) TableName() string { return "context_entries" }

// BeforeSave keeps list columns non-null and extracted_task_count in step
// with extracted_tasks.
func (e *Entry) BeforeSave(*gorm.DB) error {
	for _, col := range []*datatypes.JSONType[[]string]{
		&e.Recipients, &e.PriorityIndicators, &e.DeadlineMentions, &e.KeyEntities, &e.Categories,
	} {
		if col.Data() == nil {
			*col = datatypes.NewJSONType([]string{})
		}
	}
	if e.ExtractedTasks.Data() == nil {
		e.ExtractedTasks = datatypes.NewJSONType([]ai.ExtractedTask{})
	}
	e.ExtractedTaskCount = len(e.ExtractedTasks.Data())
	if e.ProcessingStatus == "" {
		e.ProcessingStatus = StatusPending
	}
	return nil
}

type Insight struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	EntryID         uint              `gorm:"column:context_entry_id;not null;index" json:"context_entry"`
	InsightType     string            `gorm:"size:20;not null" json:"insight_type"`
	Title           string            `gorm:"size:200;not null" json:"title"`
	Description     string            `gorm:"not null" json:"description"`
	ConfidenceScore float64           `gorm:"not null;index" json:"confidence_score"`
	Metadata        datatypes.JSONMap `json:"metadata"`
	IsActionable    bool              `gorm:"not null" json:"is_actionable"`
	Source          string            `gorm:"size:10;not null" json:"source"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Insights are either entered by hand or derived from an analysis run; the
// derived ones are replaced on every run.
const (
	SourceManual = "manual"
	SourceAI     = "ai"
)

func (Insight) TableName() string { return "context_insights" }

func (i *Insight) BeforeSave(*gorm.DB) error {
	if i.Metadata == nil {
		i.Metadata = datatypes.JSONMap{}
	}
	if i.Source == "" {
		i.Source = SourceManual
	}
	return nil
}

// ProcessingLog records one step of an analysis run.
type ProcessingLog struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	EntryID        uint              `gorm:"column:context_entry_id;not null;index" json:"-"`
	ProcessingStep string            `gorm:"size:100;not null" json:"processing_step"`
	Status         string            `gorm:"size:20;not null" json:"status"`
	Details        datatypes.JSONMap `json:"details"`
	ProcessingTime float64           `gorm:"not null" json:"processing_time"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (ProcessingLog) TableName() string { return "context_processing_logs" }

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&Entry{}, &Insight{}, &ProcessingLog{}}
}
