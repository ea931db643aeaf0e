package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/httpapi"
)

func TestCategoryCRUD(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()

	work, err := s.CreateCategory(ctx, CategoryFields{Name: str(" Work "), Description: str("day job")})
	require.NoError(t, err)
	require.Equal(t, "Work", work.Name)
	require.Equal(t, DefaultCategoryColor, work.Color)
	require.Zero(t, work.UsageFrequency)

	_, err = s.CreateCategory(ctx, CategoryFields{Name: str("Home"), Color: str("#00FF00")})
	require.NoError(t, err)

	_, err = s.CreateCategory(ctx, CategoryFields{Name: str("Work")})
	requireInvalid(t, err, "name")

	list, err := s.ListCategories(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Home", list[0].Name)

	list, err = s.ListCategories(ctx, "job", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, work.ID, list[0].ID)

	updated, err := s.UpdateCategory(ctx, work.ID, CategoryFields{Color: str("#112233")})
	require.NoError(t, err)
	require.Equal(t, "#112233", updated.Color)
	require.Equal(t, "Work", updated.Name)
}

func TestCategoryColorValidation(t *testing.T) {
	f := CategoryFields{Name: str("Bad"), Color: str("blue")}
	requireInvalid(t, httpapi.Validate(&f), "color")
}

func TestDeleteCategoryDetachesTasks(t *testing.T) {
	s, gdb := newService(t, nil)
	uid := newUser(t, gdb, "ana")
	ctx := context.Background()

	c, err := s.CreateCategory(ctx, CategoryFields{Name: str("Errands")})
	require.NoError(t, err)
	task, err := s.Create(ctx, uid, Fields{
		Title:    str("Buy milk"),
		Category: httpapi.Nullable[uint]{Set: true, Value: c.ID},
	})
	require.NoError(t, err)

	views, err := s.Views(ctx, []Task{*task})
	require.NoError(t, err)
	require.NotNil(t, views[0].CategoryName)
	require.Equal(t, "Errands", *views[0].CategoryName)

	require.NoError(t, s.DeleteCategory(ctx, c.ID))

	got, err := s.Get(ctx, uid, task.ID)
	require.NoError(t, err)
	require.Nil(t, got.CategoryID)

	_, err = s.GetCategory(ctx, c.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, s.DeleteCategory(ctx, c.ID), apperr.ErrNotFound)
}

func TestCommentsAreScopedToOwnTasks(t *testing.T) {
	s, gdb := newService(t, nil)
	ana := newUser(t, gdb, "ana")
	bob := newUser(t, gdb, "bob")
	ctx := context.Background()

	mine := createTask(t, s, ana, "Mine", 50)
	other := createTask(t, s, ana, "Also mine", 50)
	theirs := createTask(t, s, bob, "Theirs", 50)

	first, err := s.CreateComment(ctx, ana, CommentInput{Task: mine.ID, Content: " first "})
	require.NoError(t, err)
	require.Equal(t, "first", first.Content)
	require.Equal(t, "ana", first.AuthorName)

	_, err = s.CreateComment(ctx, ana, CommentInput{Task: other.ID, Content: "second"})
	require.NoError(t, err)

	_, err = s.CreateComment(ctx, ana, CommentInput{Task: theirs.ID, Content: "sneaky"})
	requireInvalid(t, err, "task")

	all, err := s.ListComments(ctx, ana, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	one, err := s.ListComments(ctx, ana, &mine.ID)
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, first.ID, one[0].ID)

	none, err := s.ListComments(ctx, bob, nil)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = s.GetComment(ctx, bob, first.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	detail, err := s.Detail(ctx, mine)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
}
