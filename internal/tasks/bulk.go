package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/httpapi"
)

// bulkFields are the only attributes a bulk update may touch.
var bulkFields = map[string]bool{
	"status":   true,
	"priority": true,
	"category": true,
	"deadline": true,
}

type BulkUpdateRequest struct {
	TaskIDs []uint                     `json:"task_ids" validate:"required,min=1"`
	Updates map[string]json.RawMessage `json:"updates" validate:"required"`
}

// BulkUpdate applies updates to every listed task in one transaction. A key
// outside the allow-list, or any id the caller does not own, rejects the
// whole request.
func (s *Service) BulkUpdate(ctx context.Context, uid uint, in BulkUpdateRequest) ([]uint, error) {
	if len(in.Updates) == 0 {
		return nil, apperr.Invalid("updates", "this field is required")
	}

	var rejected []string
	for k := range in.Updates {
		if !bulkFields[k] {
			rejected = append(rejected, k)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return nil, apperr.Invalid("updates", "fields not allowed in bulk update: "+strings.Join(rejected, ", "))
	}

	raw, err := json.Marshal(in.Updates)
	if err != nil {
		return nil, err
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, apperr.Invalid("updates", "invalid value: "+err.Error())
	}
	if err := httpapi.Validate(&f); err != nil {
		return nil, err
	}

	ids := uniqueIDs(in.TaskIDs)
	var list []Task
	err = s.db.WithContext(ctx).Where("id IN ? AND assigned_to_id = ?", ids, uid).Find(&list).Error
	if err != nil {
		return nil, err
	}
	if len(list) != len(ids) {
		return nil, apperr.Invalid("task_ids", "some tasks not found or access denied")
	}

	for i := range list {
		if err := s.apply(ctx, &list[i], f); err != nil {
			return nil, err
		}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range list {
			if err := tx.Save(&list[i]).Error; err != nil {
				return fmt.Errorf("task %d: %w", list[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type DashboardStats struct {
	TotalTasks        int64            `json:"total_tasks"`
	CompletedTasks    int64            `json:"completed_tasks"`
	PendingTasks      int64            `json:"pending_tasks"`
	OverdueTasks      int64            `json:"overdue_tasks"`
	HighPriorityTasks int64            `json:"high_priority_tasks"`
	AvgPriorityScore  float64          `json:"avg_priority_score"`
	TasksByStatus     map[string]int64 `json:"tasks_by_status"`
	TasksByPriority   map[string]int64 `json:"tasks_by_priority"`
}

type groupCount struct {
	Name string
	N    int64
}

// DashboardStats aggregates the caller's tasks. Every status and priority
// appears in the breakdowns, zero or not.
func (s *Service) DashboardStats(ctx context.Context, uid uint) (*DashboardStats, error) {
	out := &DashboardStats{
		TasksByStatus:   make(map[string]int64, len(Statuses)),
		TasksByPriority: make(map[string]int64, len(Priorities)),
	}
	for _, st := range Statuses {
		out.TasksByStatus[st] = 0
	}
	for _, p := range Priorities {
		out.TasksByPriority[p] = 0
	}

	var byStatus []groupCount
	if err := s.owned(ctx, uid).Select("status AS name, COUNT(*) AS n").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, g := range byStatus {
		out.TasksByStatus[g.Name] = g.N
		out.TotalTasks += g.N
	}
	out.CompletedTasks = out.TasksByStatus[StatusCompleted]
	out.PendingTasks = out.TasksByStatus[StatusTodo] + out.TasksByStatus[StatusInProgress]

	var byPriority []groupCount
	if err := s.owned(ctx, uid).Select("priority AS name, COUNT(*) AS n").Group("priority").Scan(&byPriority).Error; err != nil {
		return nil, err
	}
	for _, g := range byPriority {
		out.TasksByPriority[g.Name] = g.N
	}

	err := s.owned(ctx, uid).
		Where("deadline IS NOT NULL AND deadline < ?", s.now()).
		Where("status IN ?", []string{StatusTodo, StatusInProgress}).
		Count(&out.OverdueTasks).Error
	if err != nil {
		return nil, err
	}
	if err := s.owned(ctx, uid).Where("priority_score >= ?", HighPriorityScore).Count(&out.HighPriorityTasks).Error; err != nil {
		return nil, err
	}
	if err := s.owned(ctx, uid).Select("COALESCE(AVG(priority_score), 0)").Scan(&out.AvgPriorityScore).Error; err != nil {
		return nil, err
	}
	return out, nil
}
