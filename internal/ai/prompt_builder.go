package ai

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BuildTaskPrompt renders the line-oriented input a model sees for one task.
// It is stored on the request as prompt_template.
func BuildTaskPrompt(in TaskInput) string {
	var b strings.Builder

	b.WriteString("task_title: ")
	b.WriteString(in.Title)
	b.WriteString("\n")

	if in.Description != "" {
		b.WriteString("task_description: ")
		b.WriteString(in.Description)
		b.WriteString("\n")
	}

	b.WriteString("status: ")
	b.WriteString(in.Status)
	b.WriteString("\n")

	b.WriteString("priority: ")
	b.WriteString(in.Priority)
	b.WriteString("\n")

	b.WriteString("priority_score: ")
	b.WriteString(strconv.FormatFloat(in.PriorityScore, 'f', -1, 64))
	b.WriteString("\n")

	if in.Deadline != nil {
		b.WriteString("optional_deadline: ")
		b.WriteString(in.Deadline.UTC().Format(time.RFC3339))
		b.WriteString("\n")
	}

	if in.EstimatedDuration != nil {
		b.WriteString("optional_estimated_duration: ")
		b.WriteString(strconv.Itoa(*in.EstimatedDuration))
		b.WriteString("m\n")
	}

	if in.Category != "" {
		b.WriteString("optional_category: ")
		b.WriteString(in.Category)
		b.WriteString("\n")
	}

	return b.String()
}

// BuildPrioritizationPrompt lists the tasks to rank, one per line.
func BuildPrioritizationPrompt(in []TaskInput) string {
	var b strings.Builder
	b.WriteString("rank_tasks:\n")
	for _, t := range in {
		fmt.Fprintf(&b, "- id=%d score=%s title=%s\n",
			t.ID, strconv.FormatFloat(t.PriorityScore, 'f', -1, 64), t.Title)
	}
	return b.String()
}

// BuildContextPrompt renders one context entry for analysis.
func BuildContextPrompt(in ContextInput) string {
	var b strings.Builder

	b.WriteString("analysis_type: ")
	b.WriteString(in.AnalysisType)
	b.WriteString("\n")

	b.WriteString("source_type: ")
	b.WriteString(in.SourceType)
	b.WriteString("\n")

	if in.Title != "" {
		b.WriteString("optional_title: ")
		b.WriteString(in.Title)
		b.WriteString("\n")
	}

	if in.Sender != "" {
		b.WriteString("optional_sender: ")
		b.WriteString(in.Sender)
		b.WriteString("\n")
	}

	b.WriteString("content: ")
	b.WriteString(in.Content)
	b.WriteString("\n")

	return b.String()
}
