package tasks_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/models"
	"taskmaster/internal/tasks"
	"taskmaster/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*tasks.Service, *testutil.Users) {
	t.Helper()

	users := testutil.NewUsers()
	return tasks.New(sl.Discard(), testutil.NewTasks(users)), users
}

func newUser(t *testing.T, users *testutil.Users, email string) string {
	t.Helper()

	u, err := users.SaveUser(context.Background(), email)
	require.NoError(t, err)

	return u.ID
}

func input(title string) models.NewTask {
	return models.NewTask{
		Title:   title,
		DueDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateDefaults(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	uid := newUser(t, users, "a@example.com")

	first, err := svc.Create(ctx, uid, input("first"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, first.Status)
	assert.Equal(t, int64(0), first.Order)
	assert.Equal(t, uid, first.UserID)
	assert.Empty(t, first.Description)

	second, err := svc.Create(ctx, uid, input("second"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Order)
}

func TestCreateUnknownOwner(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "not-a-uuid", input("x"))
	assert.ErrorIs(t, err, tasks.ErrUnknownOwner)

	_, err = svc.Create(ctx, "5d0e1b7c-8f8f-4d57-9a1e-6f2f5a0c1b2d", input("x"))
	assert.ErrorIs(t, err, tasks.ErrUnknownOwner)
}

func TestCreateGetRoundTrip(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	uid := newUser(t, users, "a@example.com")

	in := input("write report")
	in.Description = "quarterly"
	in.Status = models.StatusInProgress

	created, err := svc.Create(ctx, uid, in)
	require.NoError(t, err)

	got, err := svc.Get(ctx, uid, created.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Description, got.Description)
	assert.True(t, in.DueDate.Equal(got.DueDate))
	assert.Equal(t, in.Status, got.Status)
}

func TestPagination(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	uid := newUser(t, users, "a@example.com")

	for i := range 25 {
		_, err := svc.Create(ctx, uid, input(fmt.Sprintf("task %02d", i)))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, uid, models.TaskQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 5)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, int64(3), page.TotalPages)
	assert.Equal(t, 3, page.Page)

	page, err = svc.List(ctx, uid, models.TaskQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, tasks.DefaultLimit, page.Limit)
	assert.Len(t, page.Tasks, 10)

	page, err = svc.List(ctx, uid, models.TaskQuery{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Tasks)
	assert.Empty(t, page.Tasks)
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total int64
		limit int
		want  int64
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{100, 100, 1},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tasks.TotalPages(tc.total, tc.limit), "total=%d limit=%d", tc.total, tc.limit)
	}
}

func TestListFilterAndSort(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	uid := newUser(t, users, "a@example.com")

	for _, title := range []string{"Buy milk", "buy bread", "Call mom"} {
		_, err := svc.Create(ctx, uid, input(title))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, uid, models.TaskQuery{Search: "BUY", SortBy: "title", SortOrder: models.SortAsc})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 2)
	assert.Equal(t, "Buy milk", page.Tasks[0].Title)
	assert.Equal(t, "buy bread", page.Tasks[1].Title)

	page, err = svc.List(ctx, uid, models.TaskQuery{Status: models.StatusCompleted})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestToggleTwice(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	uid := newUser(t, users, "a@example.com")

	in := input("toggle me")
	in.Status = models.StatusInProgress

	task, err := svc.Create(ctx, uid, in)
	require.NoError(t, err)

	once, err := svc.ToggleComplete(ctx, uid, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, once.Status)

	twice, err := svc.ToggleComplete(ctx, uid, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotStarted, twice.Status)

	thrice, err := svc.ToggleComplete(ctx, uid, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, thrice.Status)
}

func TestOwnershipIsolation(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	alice := newUser(t, users, "alice@example.com")
	bob := newUser(t, users, "bob@example.com")

	task, err := svc.Create(ctx, alice, input("private"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, task.ID)
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)

	title := "hijacked"
	_, err = svc.Update(ctx, bob, task.ID, models.TaskPatch{Title: &title})
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)

	_, err = svc.ToggleComplete(ctx, bob, task.ID)
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, bob, task.ID), tasks.ErrTaskNotFound)
	assert.ErrorIs(t, svc.Reorder(ctx, bob, []string{task.ID}), tasks.ErrTaskNotFound)

	page, err := svc.List(ctx, bob, models.TaskQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	got, err := svc.Get(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Title)
}

func TestMalformedID(t *testing.T) {
	svc, users := setup(t)
	uid := newUser(t, users, "a@example.com")

	_, err := svc.Get(context.Background(), uid, "42")
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)
}

func TestUpdate(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	uid := newUser(t, users, "a@example.com")

	task, err := svc.Create(ctx, uid, input("old"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, uid, task.ID, models.TaskPatch{})
	assert.ErrorIs(t, err, tasks.ErrEmptyUpdate)

	title := "new"
	updated, err := svc.Update(ctx, uid, task.ID, models.TaskPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, task.Status, updated.Status)
	assert.False(t, updated.UpdatedAt.Before(task.UpdatedAt))
}

func TestDelete(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	uid := newUser(t, users, "a@example.com")

	task, err := svc.Create(ctx, uid, input("gone"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, uid, task.ID))
	assert.ErrorIs(t, svc.Delete(ctx, uid, task.ID), tasks.ErrTaskNotFound)
}

func TestReorder(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	uid := newUser(t, users, "a@example.com")

	var ids []string
	for i := range 3 {
		task, err := svc.Create(ctx, uid, input(fmt.Sprint(i)))
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	reversed := []string{ids[2], ids[1], ids[0]}
	require.NoError(t, svc.Reorder(ctx, uid, reversed))

	for want, id := range reversed {
		task, err := svc.Get(ctx, uid, id)
		require.NoError(t, err)
		assert.Equal(t, int64(want), task.Order)
	}

	assert.ErrorIs(t, svc.Reorder(ctx, uid, []string{ids[0], ids[0]}), tasks.ErrTaskNotFound)
	assert.ErrorIs(t, svc.Reorder(ctx, uid, []string{"bogus"}), tasks.ErrTaskNotFound)
}
