package urgency

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestTaskIsOverdue(t *testing.T) {
	yesterday := ptr(now.Add(-24 * time.Hour))
	tomorrow := ptr(now.Add(24 * time.Hour))

	cases := []struct {
		name     string
		deadline *time.Time
		status   string
		want     bool
	}{
		{"no deadline", nil, "todo", false},
		{"past todo", yesterday, "todo", true},
		{"past in progress", yesterday, "in_progress", true},
		{"past completed", yesterday, "completed", false},
		{"past cancelled", yesterday, "cancelled", false},
		{"future todo", tomorrow, "todo", false},
		{"exactly now", ptr(now), "todo", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, TaskIsOverdue(c.deadline, c.status, now))
		})
	}
}

func TestTaskLevelOverdueTakesPrecedence(t *testing.T) {
	yesterday := ptr(now.Add(-24 * time.Hour))

	require.Equal(t, Overdue, TaskLevel(yesterday, "todo", 10, now))
	require.Equal(t, Overdue, TaskLevel(yesterday, "in_progress", 95, now))
	require.Equal(t, Overdue, TaskLevel(yesterday, "todo", 50, now))
}

func TestTaskLevelBoundaries(t *testing.T) {
	cases := map[float64]string{
		100:  Critical,
		80.0: Critical,
		79.9: High,
		60.0: High,
		59.9: Medium,
		40.0: Medium,
		39.9: Low,
		0:    Low,
	}
	for score, want := range cases {
		require.Equal(t, want, TaskLevel(nil, "todo", score, now), "score %v", score)
	}
}

func TestContextLevelBoundaries(t *testing.T) {
	require.Equal(t, High, ContextLevel(80))
	require.Equal(t, Medium, ContextLevel(79.99))
	require.Equal(t, Medium, ContextLevel(50))
	require.Equal(t, Low, ContextLevel(49.99))
	require.Equal(t, Low, ContextLevel(0))
}

func TestPreview(t *testing.T) {
	exact := strings.Repeat("a", 100)
	require.Equal(t, exact, Preview(exact))

	over := strings.Repeat("b", 101)
	require.Equal(t, strings.Repeat("b", 100)+"...", Preview(over))

	long := strings.Repeat("c", 250)
	require.Len(t, Preview(long), 103)

	require.Equal(t, "", Preview(""))
}

func TestPreviewCountsCharactersNotBytes(t *testing.T) {
	s := strings.Repeat("é", 100)
	require.Equal(t, s, Preview(s))
}

func TestHasExtractedTasks(t *testing.T) {
	require.False(t, HasExtractedTasks(0))
	require.True(t, HasExtractedTasks(1))
}
