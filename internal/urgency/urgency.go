// Package urgency derives read-only presentation fields from stored task and
// context-entry attributes. Nothing here is persisted; callers recompute on
// every read.
package urgency

import (
	"time"
	"unicode/utf8"
)

const (
	Overdue  = "overdue"
	Critical = "critical"
	High     = "high"
	Medium   = "medium"
	Low      = "low"
)

// PreviewLength is the number of characters kept by Preview.
const PreviewLength = 100

const ellipsis = "..."

// TaskIsOverdue is true when a deadline exists, has passed, and the task is
// neither completed nor cancelled.
func TaskIsOverdue(deadline *time.Time, status string, now time.Time) bool {
	if deadline == nil {
		return false
	}
	if status == "completed" || status == "cancelled" {
		return false
	}
	return deadline.Before(now)
}

// TaskLevel classifies a task. Overdue wins over any score.
func TaskLevel(deadline *time.Time, status string, score float64, now time.Time) string {
	switch {
	case TaskIsOverdue(deadline, status, now):
		return Overdue
	case score >= 80:
		return Critical
	case score >= 60:
		return High
	case score >= 40:
		return Medium
	default:
		return Low
	}
}

// ContextLevel classifies a context entry by relevance score.
func ContextLevel(relevance float64) string {
	switch {
	case relevance >= 80:
		return High
	case relevance >= 50:
		return Medium
	default:
		return Low
	}
}

// Preview returns content unchanged up to PreviewLength characters, otherwise
// the first PreviewLength characters followed by "...".
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:PreviewLength]) + ellipsis
}

// HasExtractedTasks reports whether analysis found at least one task.
func HasExtractedTasks(n int) bool {
	return n > 0
}
