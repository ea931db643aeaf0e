package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/db"
)

type CommentInput struct {
	Task          uint   `json:"task" validate:"required"`
	Content       string `json:"content" validate:"required,mintrim=1"`
	IsAIGenerated bool   `json:"is_ai_generated"`
}

// ownedComments scopes comments to tasks assigned to uid.
func (s *Service) ownedComments(ctx context.Context, uid uint) *gorm.DB {
	mine := s.db.Model(&Task{}).Select("id").Where("assigned_to_id = ?", uid)
	return s.db.WithContext(ctx).Model(&TaskComment{}).Where("task_id IN (?)", mine)
}

// ListComments returns comments on the caller's tasks, newest first,
// optionally narrowed to one task.
func (s *Service) ListComments(ctx context.Context, uid uint, taskID *uint) ([]CommentView, error) {
	q := s.ownedComments(ctx, uid)
	if taskID != nil {
		q = q.Where("task_id = ?", *taskID)
	}

	var list []TaskComment
	if err := q.Order("created_at DESC").Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return s.commentViews(ctx, list)
}

func (s *Service) GetComment(ctx context.Context, uid, id uint) (*CommentView, error) {
	var c TaskComment
	err := s.ownedComments(ctx, uid).Where("id = ?", id).First(&c).Error
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("comment %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	views, err := s.commentViews(ctx, []TaskComment{c})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// CreateComment adds a comment authored by uid to one of uid's tasks.
func (s *Service) CreateComment(ctx context.Context, uid uint, in CommentInput) (*CommentView, error) {
	if _, err := s.Get(ctx, uid, in.Task); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Invalid("task", "task not found or access denied")
		}
		return nil, err
	}

	c := TaskComment{
		TaskID:        in.Task,
		AuthorID:      uid,
		Content:       strings.TrimSpace(in.Content),
		IsAIGenerated: in.IsAIGenerated,
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}

	views, err := s.commentViews(ctx, []TaskComment{c})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) commentViews(ctx context.Context, list []TaskComment) ([]CommentView, error) {
	n, err := s.names(ctx, nil, list)
	if err != nil {
		return nil, err
	}
	out := make([]CommentView, 0, len(list))
	for _, c := range list {
		out = append(out, newCommentView(c, n))
	}
	return out, nil
}
