package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// MockScorer returns fixed or trivially derived analyses. Values only depend
// on the input and the clock, so responses are stable in tests.
type MockScorer struct {
	now func() time.Time
}

func NewMockScorer(now func() time.Time) *MockScorer {
	if now == nil {
		now = time.Now
	}
	return &MockScorer{now: now}
}

var _ Scorer = (*MockScorer)(nil)

const (
	mockCompletionTokens = 64
	// per token, in Cost units: 0.0002
	mockTokenPrice = 2
)

func mockUsage(confidence *float64, text ...string) Usage {
	n := 0
	for _, s := range text {
		n += utf8.RuneCountInString(s)
	}
	prompt := n/4 + 1
	total := prompt + mockCompletionTokens
	return Usage{
		Confidence: confidence,
		Tokens: TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: mockCompletionTokens,
			TotalTokens:      total,
		},
		Cost: Cost(total * mockTokenPrice),
	}
}

func ptr[T any](v T) *T { return &v }

func (m *MockScorer) AnalyzeTask(_ context.Context, in TaskInput) (*TaskAnalysis, error) {
	now := m.now().UTC()
	deadline := now.Add(7 * 24 * time.Hour).Truncate(time.Hour)
	if in.Deadline != nil && in.Deadline.After(now) && in.Deadline.Before(deadline) {
		deadline = *in.Deadline
	}

	tags := []string{"priority:" + in.Priority}
	categories := []string{}
	if in.Category != "" {
		tags = append(tags, strings.ToLower(in.Category))
		categories = append(categories, in.Category)
	}

	desc := strings.TrimSpace(in.Description)
	enhanced := in.Title
	if desc != "" {
		enhanced += ": " + desc
	}
	enhanced += ". Define the deliverable and a checkpoint before the deadline."

	minutes := 60
	if in.EstimatedDuration != nil && *in.EstimatedDuration > 0 {
		minutes = *in.EstimatedDuration
	}

	return &TaskAnalysis{
		Usage:  mockUsage(ptr(85.0), in.Title, in.Description),
		TaskID: in.ID,
		PriorityAnalysis: PriorityAnalysis{
			SuggestedPriorityScore: 75,
			Factors:                []string{"Deadline proximity", "Task complexity", "Dependencies"},
			Confidence:             85,
		},
		DeadlineSuggestion: DeadlineSuggestion{
			SuggestedDeadline: deadline,
			Reasoning:         "Based on task complexity and current workload",
			Confidence:        80,
		},
		EnhancementSuggestions: []string{
			"Break down into smaller subtasks",
			"Add specific deliverables",
			"Set intermediate checkpoints",
		},
		EnhancedDescription: enhanced,
		SuggestedTags:       tags,
		CategorySuggestions: categories,
		Complexity:          ComplexityAssessment{Level: "medium", EstimatedMinutes: minutes},
		Risk: RiskAssessment{
			Level:       "low",
			Risks:       []string{"Scope creep"},
			Mitigations: []string{"Agree on acceptance criteria up front"},
		},
	}, nil
}

func (m *MockScorer) PrioritizeTasks(_ context.Context, in []TaskInput) (*Prioritization, error) {
	ranked := make([]TaskInput, len(in))
	copy(ranked, in)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].PriorityScore != ranked[j].PriorityScore {
			return ranked[i].PriorityScore > ranked[j].PriorityScore
		}
		return ranked[i].ID < ranked[j].ID
	})

	out := &Prioritization{
		PrioritizedTasks: make([]PrioritizedTask, 0, len(ranked)),
		AnalysisSummary: PrioritizationSummary{
			TotalTasksAnalyzed: len(ranked),
			Recommendations: []string{
				"Focus on overdue tasks first",
				"Consider delegating lower priority items",
			},
		},
	}

	titles := make([]string, 0, len(ranked))
	for i, t := range ranked {
		out.PrioritizedTasks = append(out.PrioritizedTasks, PrioritizedTask{
			TaskID:                 t.ID,
			CurrentPriorityScore:   t.PriorityScore,
			SuggestedPriorityScore: min(t.PriorityScore+10, 100),
			Ranking:                i + 1,
			Reasoning:              fmt.Sprintf("Task %q requires immediate attention", t.Title),
		})
		if t.PriorityScore >= 70 {
			out.AnalysisSummary.HighPriorityCount++
		}
		titles = append(titles, t.Title)
	}

	out.Usage = mockUsage(nil, titles...)
	return out, nil
}

func (m *MockScorer) AnalyzeContext(_ context.Context, in ContextInput) (*ContextAnalysis, error) {
	analysisType := in.AnalysisType
	if analysisType == "" {
		analysisType = AnalysisFull
	}

	deadline := m.now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	full := ContextInsights{
		ExtractedTasks: []ExtractedTask{{
			Title:             "Complete project presentation",
			Description:       "Prepare slides for client meeting",
			SuggestedDeadline: &deadline,
			PriorityScore:     85,
			Confidence:        90,
		}},
		KeyEntities: []string{"project", "presentation", "client"},
		Sentiment: &Sentiment{
			Overall:      "neutral",
			UrgencyLevel: "medium",
			Confidence:   75,
		},
		PriorityIndicators: []string{"deadline mentioned", "client meeting context"},
	}

	var insights ContextInsights
	switch analysisType {
	case AnalysisTasksOnly:
		insights.ExtractedTasks = full.ExtractedTasks
		insights.PriorityIndicators = full.PriorityIndicators
	case AnalysisSentimentOnly:
		insights.Sentiment = full.Sentiment
	case AnalysisEntitiesOnly:
		insights.KeyEntities = full.KeyEntities
	default:
		insights = full
	}

	return &ContextAnalysis{
		Usage:          mockUsage(ptr(90.0), in.Title, in.Content),
		ContextEntryID: in.ID,
		AnalysisType:   analysisType,
		Status:         StatusCompleted,
		Insights:       insights,
		RelevanceScore: 85,
	}, nil
}

func (m *MockScorer) BulkAnalyzeContext(_ context.Context, in BulkContextInput) (*BulkContextAnalysis, error) {
	analysisType := in.AnalysisType
	if analysisType == "" {
		analysisType = AnalysisFull
	}

	out := &BulkContextAnalysis{
		TotalEntries: len(in.Entries),
		AnalysisType: analysisType,
		Results:      make([]BulkContextResult, 0, len(in.Entries)),
	}

	var sum float64
	contents := make([]string, 0, len(in.Entries))
	for _, e := range in.Entries {
		out.Results = append(out.Results, BulkContextResult{
			ContextEntryID:      e.ID,
			Status:              StatusCompleted,
			RelevanceScore:      min(e.RelevanceScore+10, 100),
			ExtractedTasksCount: 1,
		})
		if e.RelevanceScore >= 70 {
			out.Summary.HighRelevanceCount++
		}
		sum += e.RelevanceScore
		contents = append(contents, e.Content)
	}

	out.Summary.TotalExtractedTasks = len(in.Entries)
	if len(in.Entries) > 0 {
		out.Summary.AvgRelevanceScore = sum / float64(len(in.Entries))
	}

	out.Usage = mockUsage(nil, contents...)
	return out, nil
}
