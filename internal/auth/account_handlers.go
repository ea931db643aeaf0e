package auth

import (
	"context"
	"net/http"

	"gorm.io/gorm"

	"smart-tasks-backend/internal/httpapi"
)

// accountCleanup lists, child tables first, everything owned by a user.
var accountCleanup = []string{
	`DELETE FROM task_comments WHERE task_id IN (SELECT id FROM tasks WHERE assigned_to_id = ?)`,
	`DELETE FROM task_ai_analyses WHERE task_id IN (SELECT id FROM tasks WHERE assigned_to_id = ?)`,
	`DELETE FROM tasks WHERE assigned_to_id = ?`,
	`DELETE FROM context_insights WHERE context_entry_id IN (SELECT id FROM context_entries WHERE user_id = ?)`,
	`DELETE FROM context_processing_logs WHERE context_entry_id IN (SELECT id FROM context_entries WHERE user_id = ?)`,
	`DELETE FROM context_entries WHERE user_id = ?`,
	`DELETE FROM ai_requests WHERE user_id = ?`,
	`DELETE FROM analytics_events WHERE user_id = ?`,
	`DELETE FROM users WHERE id = ?`,
}

// DeleteAccount removes the user and all of their owned records in one
// transaction. Rollups in ai_model_performances are process-wide and stay.
func DeleteAccount(ctx context.Context, dbx *gorm.DB, uid uint) error {
	return dbx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range accountCleanup {
			if err := tx.Exec(stmt, uid).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func DeleteAccountHandler(dbx *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := Caller(w, r)
		if !ok {
			return
		}

		if err := DeleteAccount(r.Context(), dbx, uid); err != nil {
			httpapi.Error(w, r, err)
			return
		}

		httpapi.OK(w, map[string]any{"ok": true})
	}
}
