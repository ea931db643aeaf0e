package dailycontext

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/db"
)

// Service implements context entry and insight operations for one caller
// at a time; every method is scoped by user id.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	scorer  ai.Scorer
	tracker *ai.Tracker
	now     func() time.Time
}

func NewService(gdb *gorm.DB, log *zap.Logger, scorer ai.Scorer, tracker *ai.Tracker) *Service {
	return &Service{
		db:      gdb,
		log:     log,
		scorer:  scorer,
		tracker: tracker,
		now:     db.Now,
	}
}

type EntryInput struct {
	Title      string    `json:"title" validate:"max=200"`
	Content    string    `json:"content" validate:"required,mintrim=1"`
	SourceType string    `json:"source_type" validate:"required,oneof=whatsapp email notes slack teams calendar manual other"`
	Sender     string    `json:"sender" validate:"max=100"`
	Recipients []string  `json:"recipients"`
	Timestamp  time.Time `json:"timestamp" validate:"required"`
}

// EntryFields are the attributes that stay editable after capture.
type EntryFields struct {
	Title      *string   `json:"title" validate:"omitempty,max=200"`
	Content    *string   `json:"content" validate:"omitempty,mintrim=1"`
	Sender     *string   `json:"sender" validate:"omitempty,max=100"`
	Recipients *[]string `json:"recipients"`
}

func (s *Service) Create(ctx context.Context, uid uint, in EntryInput) (*Entry, error) {
	if in.Timestamp.After(s.now()) {
		return nil, apperr.Invalid("timestamp", "timestamp cannot be in the future")
	}

	e := &Entry{
		Title:            strings.TrimSpace(in.Title),
		Content:          strings.TrimSpace(in.Content),
		SourceType:       in.SourceType,
		UserID:           uid,
		Sender:           strings.TrimSpace(in.Sender),
		Recipients:       datatypes.NewJSONType(in.Recipients),
		Timestamp:        in.Timestamp.UTC(),
		ProcessingStatus: StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, uid, id uint) (*Entry, error) {
	var e Entry
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, uid).First(&e).Error
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("context entry %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Service) Update(ctx context.Context, uid, id uint, f EntryFields) (*Entry, error) {
	e, err := s.Get(ctx, uid, id)
	if err != nil {
		return nil, err
	}

	if f.Title != nil {
		e.Title = strings.TrimSpace(*f.Title)
	}
	if f.Content != nil {
		e.Content = strings.TrimSpace(*f.Content)
	}
	if f.Sender != nil {
		e.Sender = strings.TrimSpace(*f.Sender)
	}
	if f.Recipients != nil {
		e.Recipients = datatypes.NewJSONType(*f.Recipients)
	}

	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes an entry together with its insights and processing logs.
func (s *Service) Delete(ctx context.Context, uid, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, uid).Delete(&Entry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("context entry %d: %w", id, apperr.ErrNotFound)
		}
		if err := tx.Where("context_entry_id = ?", id).Delete(&Insight{}).Error; err != nil {
			return err
		}
		return tx.Where("context_entry_id = ?", id).Delete(&ProcessingLog{}).Error
	})
}

type EntryFilter struct {
	SourceType       string
	ProcessingStatus string
	Search           string
	Ordering         string
}

var entryOrdering = map[string]string{
	"timestamp":       "timestamp",
	"relevance_score": "relevance_score",
	"created_at":      "created_at",
}

var defaultEntryOrdering = []string{"-timestamp", "-created_at"}

func (s *Service) owned(ctx context.Context, uid uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&Entry{}).Where("user_id = ?", uid)
}

func (s *Service) find(q *gorm.DB, ordering string) ([]Entry, error) {
	q = db.Ordering(q, ordering, entryOrdering, defaultEntryOrdering, "id DESC")
	out := []Entry{}
	err := q.Find(&out).Error
	return out, err
}

func (s *Service) List(ctx context.Context, uid uint, f EntryFilter) ([]Entry, error) {
	q := s.owned(ctx, uid)
	if f.SourceType != "" {
		q = q.Where("source_type = ?", f.SourceType)
	}
	if f.ProcessingStatus != "" {
		q = q.Where("processing_status = ?", f.ProcessingStatus)
	}
	q = db.Search(q, f.Search, "title", "content", "sender")
	return s.find(q, f.Ordering)
}

func (s *Service) PendingProcessing(ctx context.Context, uid uint) ([]Entry, error) {
	return s.find(s.owned(ctx, uid).Where("processing_status = ?", StatusPending), "")
}

func (s *Service) HighRelevance(ctx context.Context, uid uint) ([]Entry, error) {
	return s.find(s.owned(ctx, uid).Where("relevance_score >= ?", HighRelevanceScore), "")
}

func (s *Service) WithExtractedTasks(ctx context.Context, uid uint) ([]Entry, error) {
	return s.find(s.owned(ctx, uid).Where("extracted_task_count > 0"), "")
}

type Summary struct {
	TotalEntries         int64            `json:"total_entries"`
	EntriesBySource      map[string]int64 `json:"entries_by_source"`
	PendingProcessing    int64            `json:"pending_processing"`
	HighRelevanceEntries int64            `json:"high_relevance_entries"`
	ExtractedTasksCount  int64            `json:"extracted_tasks_count"`
	AvgRelevanceScore    float64          `json:"avg_relevance_score"`
	RecentActivity       []RecentEntry    `json:"recent_activity"`
}

type RecentEntry struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	SourceType     string    `json:"source_type"`
	Timestamp      time.Time `json:"timestamp"`
	RelevanceScore float64   `json:"relevance_score"`
}

const (
	recentWindow = 7 * 24 * time.Hour
	recentLimit  = 10
)

// Summary aggregates the caller's entries. Recent activity covers entries
// created in the last seven days, at most ten of them.
func (s *Service) Summary(ctx context.Context, uid uint) (*Summary, error) {
	out := &Summary{EntriesBySource: map[string]int64{}, RecentActivity: []RecentEntry{}}

	var bySource []struct {
		SourceType string
		N          int64
	}
	err := s.owned(ctx, uid).Select("source_type, COUNT(*) AS n").Group("source_type").Order("source_type").Scan(&bySource).Error
	if err != nil {
		return nil, err
	}
	for _, g := range bySource {
		out.EntriesBySource[g.SourceType] = g.N
		out.TotalEntries += g.N
	}

	if err := s.owned(ctx, uid).Where("processing_status = ?", StatusPending).Count(&out.PendingProcessing).Error; err != nil {
		return nil, err
	}
	if err := s.owned(ctx, uid).Where("relevance_score >= ?", HighRelevanceScore).Count(&out.HighRelevanceEntries).Error; err != nil {
		return nil, err
	}
	if err := s.owned(ctx, uid).Where("extracted_task_count > 0").Count(&out.ExtractedTasksCount).Error; err != nil {
		return nil, err
	}
	if err := s.owned(ctx, uid).Select("COALESCE(AVG(relevance_score), 0)").Scan(&out.AvgRelevanceScore).Error; err != nil {
		return nil, err
	}

	recent, err := s.find(s.owned(ctx, uid).Where("created_at >= ?", s.now().Add(-recentWindow)).Limit(recentLimit), "")
	if err != nil {
		return nil, err
	}
	for _, e := range recent {
		title := e.Title
		if title == "" {
			title = e.SourceType + " entry"
		}
		out.RecentActivity = append(out.RecentActivity, RecentEntry{
			ID:             e.ID,
			Title:          title,
			SourceType:     e.SourceType,
			Timestamp:      e.Timestamp,
			RelevanceScore: e.RelevanceScore,
		})
	}
	return out, nil
}
