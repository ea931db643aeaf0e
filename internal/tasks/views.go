package tasks

import (
	"time"

	"smart-tasks-backend/internal/urgency"
)

// TaskView is the wire shape of a task. urgency_level and is_overdue are
// computed at read time and never stored.
type TaskView struct {
	ID                    uint           `json:"id"`
	Title                 string         `json:"title"`
	Description           string         `json:"description"`
	Status                string         `json:"status"`
	Priority              string         `json:"priority"`
	PriorityScore         float64        `json:"priority_score"`
	Deadline              *time.Time     `json:"deadline"`
	AISuggestedDeadline   *time.Time     `json:"ai_suggested_deadline"`
	Category              *uint          `json:"category"`
	CategoryName          *string        `json:"category_name"`
	AssignedTo            uint           `json:"assigned_to"`
	AssignedToName        string         `json:"assigned_to_name"`
	AIEnhancedDescription string         `json:"ai_enhanced_description"`
	AISuggestedTags       []string       `json:"ai_suggested_tags"`
	ContextInsights       map[string]any `json:"context_insights"`
	EstimatedDuration     *int           `json:"estimated_duration"`
	ActualDuration        *int           `json:"actual_duration"`
	UrgencyLevel          string         `json:"urgency_level"`
	IsOverdue             bool           `json:"is_overdue"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	CompletedAt           *time.Time     `json:"completed_at"`
}

type TaskDetail struct {
	TaskView
	Comments []CommentView `json:"comments"`
}

type CommentView struct {
	ID            uint      `json:"id"`
	Task          uint      `json:"task"`
	Content       string    `json:"content"`
	Author        uint      `json:"author"`
	AuthorName    string    `json:"author_name"`
	IsAIGenerated bool      `json:"is_ai_generated"`
	CreatedAt     time.Time `json:"created_at"`
}

// names carries the display names a view needs besides the task row.
type names struct {
	categories map[uint]string
	users      map[uint]string
}

func newTaskView(t Task, n names, now time.Time) TaskView {
	tags := t.AISuggestedTags.Data()
	if tags == nil {
		tags = []string{}
	}
	insights := map[string]any(t.ContextInsights)
	if insights == nil {
		insights = map[string]any{}
	}

	v := TaskView{
		ID:                    t.ID,
		Title:                 t.Title,
		Description:           t.Description,
		Status:                t.Status,
		Priority:              t.Priority,
		PriorityScore:         t.PriorityScore,
		Deadline:              t.Deadline,
		AISuggestedDeadline:   t.AISuggestedDeadline,
		Category:              t.CategoryID,
		AssignedTo:            t.AssignedToID,
		AssignedToName:        n.users[t.AssignedToID],
		AIEnhancedDescription: t.AIEnhancedDescription,
		AISuggestedTags:       tags,
		ContextInsights:       insights,
		EstimatedDuration:     t.EstimatedDuration,
		ActualDuration:        t.ActualDuration,
		UrgencyLevel:          urgency.TaskLevel(t.Deadline, t.Status, t.PriorityScore, now),
		IsOverdue:             urgency.TaskIsOverdue(t.Deadline, t.Status, now),
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		CompletedAt:           t.CompletedAt,
	}
	if t.CategoryID != nil {
		if name, ok := n.categories[*t.CategoryID]; ok {
			v.CategoryName = &name
		}
	}
	return v
}

func newCommentView(c TaskComment, n names) CommentView {
	return CommentView{
		ID:            c.ID,
		Task:          c.TaskID,
		Content:       c.Content,
		Author:        c.AuthorID,
		AuthorName:    n.users[c.AuthorID],
		IsAIGenerated: c.IsAIGenerated,
		CreatedAt:     c.CreatedAt,
	}
}
