package ai

import (
	"context"
	"time"
)

// Scorer is the analysis capability behind every AI endpoint. The shipped
// implementation is MockScorer; a model-backed one only has to satisfy this.
type Scorer interface {
	AnalyzeTask(ctx context.Context, in TaskInput) (*TaskAnalysis, error)
	PrioritizeTasks(ctx context.Context, in []TaskInput) (*Prioritization, error)
	AnalyzeContext(ctx context.Context, in ContextInput) (*ContextAnalysis, error)
	BulkAnalyzeContext(ctx context.Context, in BulkContextInput) (*BulkContextAnalysis, error)
}

// Usage is what a scorer reports about its own call. It never reaches the
// client directly; the tracker copies it onto the request row.
type Usage struct {
	Confidence *float64
	Tokens     TokenUsage
	Cost       Cost
}

func (u Usage) Metering() Usage { return u }

// Metered is implemented by every scorer result via the embedded Usage.
type Metered interface {
	Metering() Usage
}

type TaskInput struct {
	ID                uint       `json:"task_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Status            string     `json:"status"`
	Priority          string     `json:"priority"`
	PriorityScore     float64    `json:"priority_score"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	Category          string     `json:"category,omitempty"`
	EstimatedDuration *int       `json:"estimated_duration,omitempty"`
	ContextData       any        `json:"context_data,omitempty"`
}

type PriorityAnalysis struct {
	SuggestedPriorityScore float64  `json:"suggested_priority_score"`
	Factors                []string `json:"factors"`
	Confidence             float64  `json:"confidence"`
}

type DeadlineSuggestion struct {
	SuggestedDeadline time.Time `json:"suggested_deadline"`
	Reasoning         string    `json:"reasoning"`
	Confidence        float64   `json:"confidence"`
}

type ComplexityAssessment struct {
	Level            string `json:"level"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

type RiskAssessment struct {
	Level       string   `json:"level"`
	Risks       []string `json:"risks"`
	Mitigations []string `json:"mitigations"`
}

type TaskAnalysis struct {
	Usage                  `json:"-"`
	TaskID                 uint                 `json:"task_id"`
	PriorityAnalysis       PriorityAnalysis     `json:"priority_analysis"`
	DeadlineSuggestion     DeadlineSuggestion   `json:"deadline_suggestion"`
	EnhancementSuggestions []string             `json:"enhancement_suggestions"`
	EnhancedDescription    string               `json:"enhanced_description"`
	SuggestedTags          []string             `json:"suggested_tags"`
	CategorySuggestions    []string             `json:"category_suggestions"`
	Complexity             ComplexityAssessment `json:"complexity_assessment"`
	Risk                   RiskAssessment       `json:"risk_assessment"`
}

type PrioritizedTask struct {
	TaskID                 uint    `json:"task_id"`
	CurrentPriorityScore   float64 `json:"current_priority_score"`
	SuggestedPriorityScore float64 `json:"suggested_priority_score"`
	Ranking                int     `json:"ranking"`
	Reasoning              string  `json:"reasoning"`
}

type PrioritizationSummary struct {
	TotalTasksAnalyzed int      `json:"total_tasks_analyzed"`
	HighPriorityCount  int      `json:"high_priority_count"`
	Recommendations    []string `json:"recommendations"`
}

type Prioritization struct {
	Usage            `json:"-"`
	PrioritizedTasks []PrioritizedTask     `json:"prioritized_tasks"`
	AnalysisSummary  PrioritizationSummary `json:"analysis_summary"`
}

const (
	AnalysisFull          = "full"
	AnalysisTasksOnly     = "tasks_only"
	AnalysisSentimentOnly = "sentiment_only"
	AnalysisEntitiesOnly  = "entities_only"
)

type ContextInput struct {
	ID             uint      `json:"context_entry_id"`
	SourceType     string    `json:"source_type"`
	Title          string    `json:"title,omitempty"`
	Sender         string    `json:"sender,omitempty"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	RelevanceScore float64   `json:"relevance_score"`
	AnalysisType   string    `json:"analysis_type"`
}

type ExtractedTask struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	SuggestedDeadline *time.Time `json:"suggested_deadline,omitempty"`
	PriorityScore     float64    `json:"priority_score"`
	Confidence        float64    `json:"confidence"`
}

type Sentiment struct {
	Overall      string  `json:"overall"`
	UrgencyLevel string  `json:"urgency_level"`
	Confidence   float64 `json:"confidence"`
}

// ContextInsights holds the parts of an analysis selected by its type; the
// parts that were not requested stay empty.
type ContextInsights struct {
	ExtractedTasks     []ExtractedTask `json:"extracted_tasks,omitempty"`
	KeyEntities        []string        `json:"key_entities,omitempty"`
	Sentiment          *Sentiment      `json:"sentiment,omitempty"`
	PriorityIndicators []string        `json:"priority_indicators,omitempty"`
}

type ContextAnalysis struct {
	Usage          `json:"-"`
	ContextEntryID uint            `json:"context_entry_id"`
	AnalysisType   string          `json:"analysis_type"`
	Status         string          `json:"status"`
	Insights       ContextInsights `json:"insights"`
	RelevanceScore float64         `json:"relevance_score"`
	ProcessingTime float64         `json:"processing_time"`
}

type BulkContextInput struct {
	Entries      []ContextInput `json:"entries"`
	AnalysisType string         `json:"analysis_type"`
}

type BulkContextResult struct {
	ContextEntryID      uint    `json:"context_entry_id"`
	Status              string  `json:"status"`
	RelevanceScore      float64 `json:"relevance_score"`
	ExtractedTasksCount int     `json:"extracted_tasks_count"`
}

type BulkContextSummary struct {
	HighRelevanceCount  int     `json:"high_relevance_count"`
	TotalExtractedTasks int     `json:"total_extracted_tasks"`
	AvgRelevanceScore   float64 `json:"avg_relevance_score"`
}

type BulkContextAnalysis struct {
	Usage        `json:"-"`
	TotalEntries int                 `json:"total_entries"`
	AnalysisType string              `json:"analysis_type"`
	Results      []BulkContextResult `json:"results"`
	Summary      BulkContextSummary  `json:"summary"`
}
