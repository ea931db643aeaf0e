package dailycontext

import (
	"context"
	"time"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/urgency"
)

type EntryListView struct {
	ID                uint      `json:"id"`
	Title             string    `json:"title"`
	SourceType        string    `json:"source_type"`
	Sender            string    `json:"sender"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingStatus  string    `json:"processing_status"`
	RelevanceScore    float64   `json:"relevance_score"`
	ContentPreview    string    `json:"content_preview"`
	UrgencyLevel      string    `json:"urgency_level"`
	HasExtractedTasks bool      `json:"has_extracted_tasks"`
	InsightsCount     int64     `json:"insights_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type EntryDetail struct {
	ID                 uint               `json:"id"`
	Title              string             `json:"title"`
	Content            string             `json:"content"`
	SourceType         string             `json:"source_type"`
	Sender             string             `json:"sender"`
	Recipients         []string           `json:"recipients"`
	Timestamp          time.Time          `json:"timestamp"`
	ProcessingStatus   string             `json:"processing_status"`
	ProcessedInsights  ai.ContextInsights `json:"processed_insights"`
	ExtractedTasks     []ai.ExtractedTask `json:"extracted_tasks"`
	PriorityIndicators []string           `json:"priority_indicators"`
	DeadlineMentions   []string           `json:"deadline_mentions"`
	KeyEntities        []string           `json:"key_entities"`
	SentimentAnalysis  *ai.Sentiment      `json:"sentiment_analysis"`
	Categories         []string           `json:"categories"`
	RelevanceScore     float64            `json:"relevance_score"`
	ProcessingAttempts int                `json:"processing_attempts"`
	LastProcessedAt    *time.Time         `json:"last_processed_at"`
	ProcessingError    string             `json:"processing_error"`
	UrgencyLevel       string             `json:"urgency_level"`
	HasExtractedTasks  bool               `json:"has_extracted_tasks"`
	Insights           []Insight          `json:"insights"`
	ProcessingLogs     []ProcessingLog    `json:"processing_logs"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// ListViews renders entries with their derived fields and insight counts.
func (s *Service) ListViews(ctx context.Context, list []Entry) ([]EntryListView, error) {
	counts := map[uint]int64{}
	if len(list) > 0 {
		ids := make([]uint, 0, len(list))
		for _, e := range list {
			ids = append(ids, e.ID)
		}
		var rows []struct {
			ContextEntryID uint
			N              int64
		}
		err := s.db.WithContext(ctx).Model(&Insight{}).
			Select("context_entry_id, COUNT(*) AS n").
			Where("context_entry_id IN ?", ids).
			Group("context_entry_id").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			counts[r.ContextEntryID] = r.N
		}
	}

	out := make([]EntryListView, 0, len(list))
	for _, e := range list {
		out = append(out, EntryListView{
			ID:                e.ID,
			Title:             e.Title,
			SourceType:        e.SourceType,
			Sender:            e.Sender,
			Timestamp:         e.Timestamp,
			ProcessingStatus:  e.ProcessingStatus,
			RelevanceScore:    e.RelevanceScore,
			ContentPreview:    urgency.Preview(e.Content),
			UrgencyLevel:      urgency.ContextLevel(e.RelevanceScore),
			HasExtractedTasks: urgency.HasExtractedTasks(e.ExtractedTaskCount),
			InsightsCount:     counts[e.ID],
			CreatedAt:         e.CreatedAt,
			UpdatedAt:         e.UpdatedAt,
		})
	}
	return out, nil
}

// Detail renders one entry with its insights and processing history.
func (s *Service) Detail(ctx context.Context, e *Entry) (*EntryDetail, error) {
	insights, err := s.findInsights(s.db.WithContext(ctx).Model(&Insight{}).Where("context_entry_id = ?", e.ID), "")
	if err != nil {
		return nil, err
	}
	logs := []ProcessingLog{}
	err = s.db.WithContext(ctx).Where("context_entry_id = ?", e.ID).
		Order("created_at DESC").Order("id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}

	return &EntryDetail{
		ID:                 e.ID,
		Title:              e.Title,
		Content:            e.Content,
		SourceType:         e.SourceType,
		Sender:             e.Sender,
		Recipients:         orEmpty(e.Recipients.Data()),
		Timestamp:          e.Timestamp,
		ProcessingStatus:   e.ProcessingStatus,
		ProcessedInsights:  e.ProcessedInsights.Data(),
		ExtractedTasks:     orEmpty(e.ExtractedTasks.Data()),
		PriorityIndicators: orEmpty(e.PriorityIndicators.Data()),
		DeadlineMentions:   orEmpty(e.DeadlineMentions.Data()),
		KeyEntities:        orEmpty(e.KeyEntities.Data()),
		SentimentAnalysis:  e.SentimentAnalysis.Data(),
		Categories:         orEmpty(e.Categories.Data()),
		RelevanceScore:     e.RelevanceScore,
		ProcessingAttempts: e.ProcessingAttempts,
		LastProcessedAt:    e.LastProcessedAt,
		ProcessingError:    e.ProcessingError,
		UrgencyLevel:       urgency.ContextLevel(e.RelevanceScore),
		HasExtractedTasks:  urgency.HasExtractedTasks(e.ExtractedTaskCount),
		Insights:           insights,
		ProcessingLogs:     logs,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}, nil
}
