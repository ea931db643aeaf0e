package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/auth"
	"smart-tasks-backend/internal/db"
	"smart-tasks-backend/internal/httpapi"
)

// Service implements task, category and comment operations. Every task
// method takes the caller's user id and only ever sees that user's rows.
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

// Fields are the user-writable task attributes. Absent fields leave the
// stored value alone; Nullable fields can also be cleared with null.
type Fields struct {
	Title             *string                     `json:"title" validate:"omitempty,mintrim=3,max=200"`
	Description       *string                     `json:"description"`
	Status            *string                     `json:"status" validate:"omitempty,oneof=todo in_progress completed cancelled"`
	Priority          *string                     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	PriorityScore     *float64                    `json:"priority_score" validate:"omitempty,gte=0,lte=100"`
	Deadline          httpapi.Nullable[time.Time] `json:"deadline"`
	Category          httpapi.Nullable[uint]      `json:"category"`
	EstimatedDuration httpapi.Nullable[int]       `json:"estimated_duration"`
	ActualDuration    httpapi.Nullable[int]       `json:"actual_duration"`
}

func (s *Service) apply(ctx context.Context, t *Task, f Fields) error {
	v := &apperr.ValidationError{}
	if f.EstimatedDuration.Set && !f.EstimatedDuration.Null && f.EstimatedDuration.Value < 0 {
		v.Add("estimated_duration", "must be greater than or equal to 0")
	}
	if f.ActualDuration.Set && !f.ActualDuration.Null && f.ActualDuration.Value < 0 {
		v.Add("actual_duration", "must be greater than or equal to 0")
	}
	if f.Category.Set && !f.Category.Null {
		var n int64
		if err := s.db.WithContext(ctx).Model(&Category{}).Where("id = ?", f.Category.Value).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			v.Add("category", fmt.Sprintf("invalid pk %d: category does not exist", f.Category.Value))
		}
	}
	if err := v.OrNil(); err != nil {
		return err
	}

	if f.Title != nil {
		t.Title = strings.TrimSpace(*f.Title)
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Status != nil {
		t.Status = *f.Status
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.PriorityScore != nil {
		t.PriorityScore = *f.PriorityScore
	}
	if f.Deadline.Set {
		t.Deadline = utc(f.Deadline.Ptr())
	}
	if f.Category.Set {
		t.CategoryID = f.Category.Ptr()
	}
	if f.EstimatedDuration.Set {
		t.EstimatedDuration = f.EstimatedDuration.Ptr()
	}
	if f.ActualDuration.Set {
		t.ActualDuration = f.ActualDuration.Ptr()
	}
	return nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Create stores a new task owned by uid. Past deadlines are accepted.
func (s *Service) Create(ctx context.Context, uid uint, f Fields) (*Task, error) {
	if f.Title == nil {
		return nil, apperr.Invalid("title", "this field is required")
	}

	t := &Task{
		AssignedToID:  uid,
		Status:        StatusTodo,
		Priority:      PriorityMedium,
		PriorityScore: DefaultPriorityScore,
	}
	if err := s.apply(ctx, t, f); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, uid, id uint) (*Task, error) {
	var t Task
	err := s.db.WithContext(ctx).Where("id = ? AND assigned_to_id = ?", id, uid).First(&t).Error
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("task %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update applies f to an owned task. Concurrent writers race; the last
// save wins.
func (s *Service) Update(ctx context.Context, uid, id uint, f Fields) (*Task, error) {
	t, err := s.Get(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, t, f); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, uid, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND assigned_to_id = ?", id, uid).Delete(&Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("task %d: %w", id, apperr.ErrNotFound)
		}
		if err := tx.Where("task_id = ?", id).Delete(&TaskComment{}).Error; err != nil {
			return err
		}
		return tx.Where("task_id = ?", id).Delete(&TaskAIAnalysis{}).Error
	})
}

// MarkCompleted is the only path that sets completed_at.
func (s *Service) MarkCompleted(ctx context.Context, uid, id uint) (*Task, error) {
	t, err := s.Get(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	t.Status = StatusCompleted
	t.CompletedAt = &now
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

type ListFilter struct {
	Status     string
	Priority   string
	CategoryID *uint
	Search     string
	Ordering   string
}

var taskOrdering = map[string]string{
	"priority_score": "priority_score",
	"deadline":       "deadline",
	"created_at":     "created_at",
	"updated_at":     "updated_at",
}

var defaultTaskOrdering = []string{"-priority_score", "-created_at"}

func (s *Service) owned(ctx context.Context, uid uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&Task{}).Where("assigned_to_id = ?", uid)
}

func (s *Service) find(q *gorm.DB, ordering string) ([]Task, error) {
	q = db.Ordering(q, ordering, taskOrdering, defaultTaskOrdering, "id DESC")
	out := []Task{}
	err := q.Find(&out).Error
	return out, err
}

func (s *Service) List(ctx context.Context, uid uint, f ListFilter) ([]Task, error) {
	q := s.owned(ctx, uid)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	q = db.Search(q, f.Search, "title", "description")
	return s.find(q, f.Ordering)
}

// Overdue lists open tasks whose deadline has passed.
func (s *Service) Overdue(ctx context.Context, uid uint) ([]Task, error) {
	q := s.owned(ctx, uid).
		Where("deadline IS NOT NULL AND deadline < ?", s.now()).
		Where("status IN ?", []string{StatusTodo, StatusInProgress})
	return s.find(q, "")
}

func (s *Service) HighPriority(ctx context.Context, uid uint) ([]Task, error) {
	return s.find(s.owned(ctx, uid).Where("priority_score >= ?", HighPriorityScore), "")
}

// ByStatus groups the caller's tasks under every status, empty groups included.
func (s *Service) ByStatus(ctx context.Context, uid uint) (map[string][]Task, error) {
	all, err := s.find(s.owned(ctx, uid), "")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Task, len(Statuses))
	for _, st := range Statuses {
		out[st] = []Task{}
	}
	for _, t := range all {
		if _, ok := out[t.Status]; ok {
			out[t.Status] = append(out[t.Status], t)
		}
	}
	return out, nil
}

// Views renders tasks with their derived fields and display names.
func (s *Service) Views(ctx context.Context, list []Task) ([]TaskView, error) {
	n, err := s.names(ctx, list, nil)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]TaskView, 0, len(list))
	for _, t := range list {
		out = append(out, newTaskView(t, n, now))
	}
	return out, nil
}

// Detail renders one task with its comments, newest first.
func (s *Service) Detail(ctx context.Context, t *Task) (*TaskDetail, error) {
	comments := []TaskComment{}
	err := s.db.WithContext(ctx).Where("task_id = ?", t.ID).
		Order("created_at DESC").Order("id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}

	n, err := s.names(ctx, []Task{*t}, comments)
	if err != nil {
		return nil, err
	}

	d := &TaskDetail{
		TaskView: newTaskView(*t, n, s.now()),
		Comments: make([]CommentView, 0, len(comments)),
	}
	for _, c := range comments {
		d.Comments = append(d.Comments, newCommentView(c, n))
	}
	return d, nil
}

func (s *Service) names(ctx context.Context, list []Task, comments []TaskComment) (names, error) {
	n := names{categories: map[uint]string{}, users: map[uint]string{}}

	var catIDs, userIDs []uint
	for _, t := range list {
		if t.CategoryID != nil {
			catIDs = append(catIDs, *t.CategoryID)
		}
		userIDs = append(userIDs, t.AssignedToID)
	}
	for _, c := range comments {
		userIDs = append(userIDs, c.AuthorID)
	}

	if len(catIDs) > 0 {
		var cats []Category
		if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", catIDs).Find(&cats).Error; err != nil {
			return n, err
		}
		for _, c := range cats {
			n.categories[c.ID] = c.Name
		}
	}
	if len(userIDs) > 0 {
		var users []auth.User
		if err := s.db.WithContext(ctx).Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return n, err
		}
		for _, u := range users {
			n.users[u.ID] = u.Username
		}
	}
	return n, nil
}
