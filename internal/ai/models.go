package ai

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusTimeout    = "timeout"
)

const (
	TypeContextAnalysis    = "context_analysis"
	TypeTaskPrioritization = "task_prioritization"
	TypeDeadlineSuggestion = "deadline_suggestion"
	TypeTaskEnhancement    = "task_enhancement"
	TypeCategorization     = "categorization"
	TypeSentimentAnalysis  = "sentiment_analysis"
	TypeEntityExtraction   = "entity_extraction"
)

var requestTypes = map[string]bool{
	TypeContextAnalysis:    true,
	TypeTaskPrioritization: true,
	TypeDeadlineSuggestion: true,
	TypeTaskEnhancement:    true,
	TypeCategorization:     true,
	TypeSentimentAnalysis:  true,
	TypeEntityExtraction:   true,
}

// ValidRequestType reports whether s is one of the known request kinds.
func ValidRequestType(s string) bool { return requestTypes[s] }

// IsTerminal reports whether no further transition is accepted from status.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

type Provider struct {
	ID                         uint      `gorm:"primaryKey" json:"id"`
	Name                       string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description                string    `json:"description"`
	APIEndpoint                string    `gorm:"column:api_endpoint" json:"api_endpoint"`
	IsActive                   bool      `gorm:"not null" json:"is_active"`
	SupportsContextAnalysis    bool      `gorm:"not null" json:"supports_context_analysis"`
	SupportsTaskPrioritization bool      `gorm:"not null" json:"supports_task_prioritization"`
	SupportsDeadlineSuggestion bool      `gorm:"not null" json:"supports_deadline_suggestion"`
	RateLimitPerMinute         int       `gorm:"not null" json:"rate_limit_per_minute"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

func (Provider) TableName() string { return "ai_providers" }

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is one tracked call into the scoring subsystem.
type Request struct {
	ID              uint                           `gorm:"primaryKey" json:"id"`
	UserID          uint                           `gorm:"index:idx_ai_requests_user_type,priority:1;not null" json:"user"`
	ProviderID      uint                           `gorm:"index:idx_ai_requests_provider_created,priority:1;not null" json:"provider"`
	RequestType     string                         `gorm:"size:30;index:idx_ai_requests_user_type,priority:2;not null" json:"request_type"`
	Status          string                         `gorm:"size:15;index;not null" json:"status"`
	InputData       datatypes.JSON                 `gorm:"not null" json:"input_data"`
	PromptTemplate  string                         `json:"prompt_template"`
	ModelName       string                         `gorm:"size:100" json:"model_name"`
	ResponseData    datatypes.JSON                 `json:"response_data"`
	ConfidenceScore *float64                       `json:"confidence_score"`
	ProcessingTime  *float64                       `json:"processing_time"`
	TokenUsage      datatypes.JSONType[TokenUsage] `json:"token_usage"`
	CostEstimate    *Cost                          `json:"cost_estimate"`
	ErrorMessage    string                         `json:"error_message"`
	RetryCount      int                            `gorm:"not null" json:"retry_count"`
	CreatedAt       time.Time                      `gorm:"index:idx_ai_requests_provider_created,priority:2" json:"created_at"`
	CompletedAt     *time.Time                     `json:"completed_at"`
}

func (Request) TableName() string { return "ai_requests" }

// ModelPerformance is the daily rollup for one provider, model and request type.
type ModelPerformance struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	ProviderID             uint           `gorm:"uniqueIndex:uq_ai_perf_key,priority:1;not null" json:"provider"`
	ModelName              string         `gorm:"size:100;uniqueIndex:uq_ai_perf_key,priority:2;not null" json:"model_name"`
	RequestType            string         `gorm:"size:30;uniqueIndex:uq_ai_perf_key,priority:3;not null" json:"request_type"`
	Date                   datatypes.Date `gorm:"uniqueIndex:uq_ai_perf_key,priority:4;not null" json:"date"`
	TotalRequests          int            `gorm:"not null" json:"total_requests"`
	SuccessfulRequests     int            `gorm:"not null" json:"successful_requests"`
	FailedRequests         int            `gorm:"not null" json:"failed_requests"`
	AverageProcessingTime  float64        `gorm:"not null" json:"average_processing_time"`
	ProcessingTimeSamples  int            `gorm:"not null" json:"-"`
	AverageConfidenceScore float64        `gorm:"not null" json:"average_confidence_score"`
	ConfidenceSamples      int            `gorm:"not null" json:"-"`
	TotalCost              Cost           `gorm:"not null" json:"total_cost"`
	TotalTokensUsed        int64          `gorm:"not null" json:"total_tokens_used"`
	UserSatisfactionScore  float64        `gorm:"not null" json:"user_satisfaction_score"`
	AccuracyScore          float64        `gorm:"not null" json:"accuracy_score"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

func (ModelPerformance) TableName() string { return perfTable }

// SuccessRate is successful/total as a percentage; 0 for an empty row.
func (p ModelPerformance) SuccessRate() float64 {
	if p.TotalRequests == 0 {
		return 0
	}
	return float64(p.SuccessfulRequests) / float64(p.TotalRequests) * 100
}

func (p ModelPerformance) MarshalJSON() ([]byte, error) {
	type plain ModelPerformance
	return json.Marshal(struct {
		plain
		Date        string  `json:"date"`
		SuccessRate float64 `json:"success_rate"`
	}{
		plain:       plain(p),
		Date:        time.Time(p.Date).Format(time.DateOnly),
		SuccessRate: p.SuccessRate(),
	})
}

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&Provider{}, &Request{}, &ModelPerformance{}}
}
