package dailycontext

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/auth"
	"smart-tasks-backend/internal/httpapi"
	"smart-tasks-backend/internal/testutil"
)

type fakeScorer struct {
	ai.Scorer
	analyze func(context.Context, ai.ContextInput) (*ai.ContextAnalysis, error)
}

func (f fakeScorer) AnalyzeContext(ctx context.Context, in ai.ContextInput) (*ai.ContextAnalysis, error) {
	if f.analyze != nil {
		return f.analyze(ctx, in)
	}
	return f.Scorer.AnalyzeContext(ctx, in)
}

func newService(t *testing.T, scorer ai.Scorer) (*Service, *gorm.DB) {
	t.Helper()

	models := append([]any{&auth.User{}}, ai.Models()...)
	models = append(models, Models()...)
	gdb := testutil.NewTestDB(t, models...)

	p, err := ai.EnsureProvider(context.Background(), gdb, ai.Provider{Name: "mock", IsActive: true})
	require.NoError(t, err)
	tr := ai.NewTracker(gdb, zap.NewNop(), p, "mock-v1")

	if scorer == nil {
		scorer = ai.NewMockScorer(time.Now)
	}
	return NewService(gdb, zap.NewNop(), scorer, tr), gdb
}

func newUser(t *testing.T, gdb *gorm.DB, name string) uint {
	t.Helper()
	u := auth.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, gdb.Create(&u).Error)
	return u.ID
}

func createEntry(t *testing.T, s *Service, uid uint, title, content string) *Entry {
	t.Helper()
	e, err := s.Create(context.Background(), uid, EntryInput{
		Title:      title,
		Content:    content,
		SourceType: "email",
		Sender:     "boss@example.com",
		Timestamp:  time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	return e
}

func requireInvalid(t *testing.T, err error, field string) {
	t.Helper()
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Fields, field)
}

func TestCreateEntry(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")

	e := createEntry(t, s, uid, " Weekly sync ", "Please send the slides by Friday")
	require.Equal(t, "Weekly sync", e.Title)
	require.Equal(t, StatusPending, e.ProcessingStatus)
	require.Equal(t, []string{}, e.Recipients.Data())
	require.Zero(t, e.RelevanceScore)
	require.Zero(t, e.ExtractedTaskCount)
}

func TestCreateEntryRejectsFutureTimestamp(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")

	_, err := s.Create(context.Background(), uid, EntryInput{
		Content:    "tomorrow's note",
		SourceType: "notes",
		Timestamp:  time.Now().Add(time.Hour),
	})
	requireInvalid(t, err, "timestamp")
}

func TestEntryInputValidation(t *testing.T) {
	in := EntryInput{Content: "   ", SourceType: "fax", Timestamp: time.Now()}
	err := httpapi.Validate(&in)
	requireInvalid(t, err, "content")
	requireInvalid(t, err, "source_type")
}

func TestEntriesAreScopedToOwner(t *testing.T) {
	s, gdb := newService(t, nil)
	ana := newUser(t, gdb, "ana")
	bob := newUser(t, gdb, "bob")
	e := createEntry(t, s, ana, "", "ana's note")

	_, err := s.Get(context.Background(), bob, e.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, s.Delete(context.Background(), bob, e.ID), apperr.ErrNotFound)

	list, err := s.List(context.Background(), bob, EntryFilter{})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestListFiltersAndSearch(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	createEntry(t, s, uid, "Invoice", "Pay the invoice")
	createEntry(t, s, uid, "Lunch", "Lunch on Tuesday")

	list, err := s.List(context.Background(), uid, EntryFilter{Search: "invoice"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Invoice", list[0].Title)

	list, err = s.List(context.Background(), uid, EntryFilter{SourceType: "slack"})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestAnalyzeStoresResults(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	e := createEntry(t, s, uid, "Client", "Prepare the client presentation")
	ctx := context.Background()

	res, req, err := s.Analyze(ctx, uid, e.ID, AnalyzeRequest{})
	require.NoError(t, err)
	require.Equal(t, ai.AnalysisFull, res.AnalysisType)
	require.Equal(t, ai.StatusCompleted, req.Status)
	require.Equal(t, ai.TypeContextAnalysis, req.RequestType)

	got, err := s.Get(ctx, uid, e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.ProcessingStatus)
	require.Equal(t, 85.0, got.RelevanceScore)
	require.Equal(t, 1, got.ExtractedTaskCount)
	require.NotNil(t, got.LastProcessedAt)
	require.NotNil(t, got.SentimentAnalysis.Data())
	require.Equal(t, []string{"project", "presentation", "client"}, got.KeyEntities.Data())

	insights, err := s.ListInsights(ctx, uid, InsightFilter{})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, SourceAI, insights[0].Source)
	require.True(t, insights[0].IsActionable)

	var logs []ProcessingLog
	require.NoError(t, gdb.Where("context_entry_id = ?", e.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, StatusCompleted, logs[0].Status)

	withTasks, err := s.WithExtractedTasks(ctx, uid)
	require.NoError(t, err)
	require.Len(t, withTasks, 1)
	high, err := s.HighRelevance(ctx, uid)
	require.NoError(t, err)
	require.Len(t, high, 1)
}

func TestAnalyzeReplacesDerivedInsightsOnly(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	e := createEntry(t, s, uid, "Client", "Prepare the client presentation")
	ctx := context.Background()

	_, err := s.CreateInsight(ctx, uid, InsightInput{
		ContextEntry:    e.ID,
		InsightType:     "contact",
		Title:           "Call the client",
		ConfidenceScore: ptr(60.0),
	})
	require.NoError(t, err)

	for range 2 {
		_, _, err := s.Analyze(ctx, uid, e.ID, AnalyzeRequest{})
		require.NoError(t, err)
	}

	var n int64
	require.NoError(t, gdb.Model(&Insight{}).Where("source = ?", SourceAI).Count(&n).Error)
	require.EqualValues(t, 1, n)
	require.NoError(t, gdb.Model(&Insight{}).Where("source = ?", SourceManual).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestAnalyzeSentimentOnlyKeepsTasks(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	e := createEntry(t, s, uid, "Client", "Prepare the client presentation")
	ctx := context.Background()

	_, _, err := s.Analyze(ctx, uid, e.ID, AnalyzeRequest{AnalysisType: ai.AnalysisFull})
	require.NoError(t, err)
	res, _, err := s.Analyze(ctx, uid, e.ID, AnalyzeRequest{AnalysisType: ai.AnalysisSentimentOnly})
	require.NoError(t, err)
	require.Empty(t, res.Insights.ExtractedTasks)

	got, err := s.Get(ctx, uid, e.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ExtractedTaskCount)
}

func TestAnalyzeFailureMarksEntryFailed(t *testing.T) {
	s, gdb := newService(t, fakeScorer{
		Scorer: ai.NewMockScorer(time.Now),
		analyze: func(context.Context, ai.ContextInput) (*ai.ContextAnalysis, error) {
			return nil, errors.New("model unavailable")
		},
	})
	uid := newUser(t, gdb, "ana")
	e := createEntry(t, s, uid, "Client", "Prepare the client presentation")
	ctx := context.Background()

	_, req, err := s.Analyze(ctx, uid, e.ID, AnalyzeRequest{})
	require.ErrorIs(t, err, ai.ErrScorerFailed)
	require.NotNil(t, req)
	require.Equal(t, ai.StatusFailed, req.Status)

	got, err := s.Get(ctx, uid, e.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.ProcessingStatus)
	require.Equal(t, 1, got.ProcessingAttempts)
	require.Contains(t, got.ProcessingError, "model unavailable")

	var logs []ProcessingLog
	require.NoError(t, gdb.Where("context_entry_id = ?", e.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, StatusFailed, logs[0].Status)
}

func TestBulkAnalyzeRequiresOwnership(t *testing.T) {
	s, gdb := newService(t, nil)
	ana := newUser(t, gdb, "ana")
	bob := newUser(t, gdb, "bob")
	mine := createEntry(t, s, ana, "", "mine")
	theirs := createEntry(t, s, bob, "", "theirs")
	ctx := context.Background()

	_, _, err := s.BulkAnalyze(ctx, ana, BulkAnalyzeRequest{ContextEntryIDs: []uint{mine.ID, theirs.ID}})
	requireInvalid(t, err, "context_entry_ids")

	res, req, err := s.BulkAnalyze(ctx, ana, BulkAnalyzeRequest{ContextEntryIDs: []uint{mine.ID, mine.ID}})
	require.NoError(t, err)
	require.Equal(t, ai.StatusCompleted, req.Status)
	require.Equal(t, 1, res.TotalEntries)
	require.Equal(t, 10.0, res.Results[0].RelevanceScore)
	require.Equal(t, 1, res.Summary.TotalExtractedTasks)

	got, err := s.Get(ctx, ana, mine.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.ProcessingStatus)
}

func TestSummary(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	ctx := context.Background()

	for i := range 11 {
		createEntry(t, s, uid, fmt.Sprintf("Entry %d", i), "content")
	}
	untitled, err := s.Create(ctx, uid, EntryInput{Content: "note", SourceType: "notes", Timestamp: time.Now()})
	require.NoError(t, err)
	old := createEntry(t, s, uid, "Old", "content")
	require.NoError(t, gdb.Model(&Entry{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", time.Now().UTC().Add(-10*24*time.Hour)).Error)

	sum, err := s.Summary(ctx, uid)
	require.NoError(t, err)
	require.EqualValues(t, 13, sum.TotalEntries)
	require.EqualValues(t, 12, sum.EntriesBySource["email"])
	require.EqualValues(t, 1, sum.EntriesBySource["notes"])
	require.EqualValues(t, 13, sum.PendingProcessing)
	require.Len(t, sum.RecentActivity, 10)
	require.Equal(t, untitled.ID, sum.RecentActivity[0].ID)
	require.Equal(t, "notes entry", sum.RecentActivity[0].Title)
	for _, r := range sum.RecentActivity {
		require.NotEqual(t, old.ID, r.ID)
	}
}

func TestInsightRules(t *testing.T) {
	s, gdb := newService(t, nil)
	ana := newUser(t, gdb, "ana")
	bob := newUser(t, gdb, "bob")
	e := createEntry(t, s, ana, "", "note")
	ctx := context.Background()

	_, err := s.CreateInsight(ctx, ana, InsightInput{ContextEntry: e.ID, InsightType: "task", Title: "x", ConfidenceScore: ptr(120.0)})
	requireInvalid(t, err, "confidence_score")

	_, err = s.CreateInsight(ctx, bob, InsightInput{ContextEntry: e.ID, InsightType: "task", Title: "x", ConfidenceScore: ptr(50.0)})
	requireInvalid(t, err, "context_entry")

	_, err = s.CreateInsight(ctx, ana, InsightInput{ContextEntry: e.ID, InsightType: "task", Title: "Low", ConfidenceScore: ptr(40.0), IsActionable: true})
	require.NoError(t, err)
	_, err = s.CreateInsight(ctx, ana, InsightInput{ContextEntry: e.ID, InsightType: "meeting", Title: "High", ConfidenceScore: ptr(95.0)})
	require.NoError(t, err)

	all, err := s.ListInsights(ctx, ana, InsightFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "High", all[0].Title)

	high, err := s.HighConfidenceInsights(ctx, ana)
	require.NoError(t, err)
	require.Len(t, high, 1)
	require.Equal(t, "High", high[0].Title)

	actionable, err := s.ActionableInsights(ctx, ana)
	require.NoError(t, err)
	require.Len(t, actionable, 1)
	require.Equal(t, "Low", actionable[0].Title)

	none, err := s.ListInsights(ctx, bob, InsightFilter{})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestDeleteRemovesInsightsAndLogs(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	e := createEntry(t, s, uid, "Client", "Prepare the client presentation")
	ctx := context.Background()

	_, _, err := s.Analyze(ctx, uid, e.ID, AnalyzeRequest{})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, uid, e.ID))

	var n int64
	require.NoError(t, gdb.Model(&Insight{}).Count(&n).Error)
	require.Zero(t, n)
	require.NoError(t, gdb.Model(&ProcessingLog{}).Count(&n).Error)
	require.Zero(t, n)
}

func ptr[T any](v T) *T { return &v }
