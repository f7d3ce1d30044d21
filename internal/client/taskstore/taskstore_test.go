package taskstore_test

import (
	"testing"

	"taskmaster/internal/client/taskstore"
	"taskmaster/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(id string) models.Task {
	return models.Task{ID: id, Title: "task " + id, Status: models.StatusNotStarted}
}

func seeded(ids ...string) taskstore.State {
	tasks := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, task(id))
	}
	return taskstore.Reduce(taskstore.State{}, taskstore.SetAll{Tasks: tasks})
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := seeded("a", "b")

	after := taskstore.Reduce(before, taskstore.Delete{ID: "a"})

	assert.Equal(t, []string{"a", "b"}, before.Order)
	assert.Contains(t, before.ByID, "a")
	assert.Equal(t, []string{"b"}, after.Order)
}

func TestAddAndReplaceID(t *testing.T) {
	s := taskstore.Reduce(seeded("a"), taskstore.Add{Task: task("temp-1")})
	s = taskstore.Reduce(s, taskstore.Add{Task: task("b")})
	require.Equal(t, []string{"a", "temp-1", "b"}, s.Order)

	server := task("real-1")
	server.Order = 7
	s = taskstore.Reduce(s, taskstore.ReplaceID{TempID: "temp-1", RealID: "real-1", Task: &server})

	assert.Equal(t, []string{"a", "real-1", "b"}, s.Order)
	assert.NotContains(t, s.ByID, "temp-1")
	assert.Equal(t, int64(7), s.ByID["real-1"].Order)

	unchanged := taskstore.Reduce(s, taskstore.ReplaceID{TempID: "missing", RealID: "x"})
	assert.Equal(t, s.Order, unchanged.Order)
}

func TestReplaceIDWithKnownRealID(t *testing.T) {
	s := taskstore.Reduce(seeded("a"), taskstore.Add{Task: task("temp-1")})
	s = taskstore.Reduce(s, taskstore.Add{Task: task("real-1")})
	require.Equal(t, []string{"a", "temp-1", "real-1"}, s.Order)

	server := task("real-1")
	server.Title = "from server"
	s = taskstore.Reduce(s, taskstore.ReplaceID{TempID: "temp-1", RealID: "real-1", Task: &server})

	assert.Equal(t, []string{"a", "real-1"}, s.Order)
	assert.NotContains(t, s.ByID, "temp-1")
	assert.Equal(t, "from server", s.ByID["real-1"].Title)
	assert.Len(t, s.ByID, 2)
}

func TestUpdateAndToggle(t *testing.T) {
	title := "renamed"
	s := taskstore.Reduce(seeded("a"), taskstore.Update{ID: "a", Patch: models.TaskPatch{Title: &title}})
	assert.Equal(t, "renamed", s.ByID["a"].Title)

	s = taskstore.Reduce(s, taskstore.ToggleComplete{ID: "a"})
	assert.Equal(t, models.StatusCompleted, s.ByID["a"].Status)

	s = taskstore.Reduce(s, taskstore.ToggleComplete{ID: "a"})
	assert.Equal(t, models.StatusNotStarted, s.ByID["a"].Status)

	s = taskstore.Reduce(s, taskstore.Update{ID: "ghost", Patch: models.TaskPatch{Title: &title}})
	assert.NotContains(t, s.ByID, "ghost")
}

func TestReorder(t *testing.T) {
	s := seeded("a", "b", "c", "d")

	assert.Equal(t, []string{"b", "c", "a", "d"}, taskstore.Reduce(s, taskstore.Reorder{From: 0, To: 2}).Order)
	assert.Equal(t, []string{"d", "a", "b", "c"}, taskstore.Reduce(s, taskstore.Reorder{From: 3, To: 0}).Order)
	assert.Equal(t, []string{"a", "b", "c", "d"}, taskstore.Reduce(s, taskstore.Reorder{From: 0, To: 9}).Order)

	moved := taskstore.Reduce(s, taskstore.Reorder{From: 1, To: 3})
	back := taskstore.Reduce(moved, taskstore.Reorder{From: 3, To: 1})
	assert.Equal(t, s.Order, back.Order)
}

func TestDeleteThenInsert(t *testing.T) {
	s := seeded("a", "b", "c")
	removed := s.ByID["b"]
	idx := s.Index("b")

	s = taskstore.Reduce(s, taskstore.Delete{ID: "b"})
	s = taskstore.Reduce(s, taskstore.Insert{Task: removed, Index: idx})

	assert.Equal(t, []string{"a", "b", "c"}, s.Order)
}

func TestStoreSubscribe(t *testing.T) {
	store := taskstore.New()

	var seen []int
	unsubscribe := store.Subscribe(func(s taskstore.State) {
		seen = append(seen, len(s.Order))
	})

	store.Dispatch(taskstore.Add{Task: task("a")})
	store.Dispatch(taskstore.Add{Task: task("b")})
	unsubscribe()
	store.Dispatch(taskstore.Delete{ID: "a"})

	assert.Equal(t, []int{1, 2}, seen)

	got, ok := store.Get("b")
	require.True(t, ok)
	assert.Equal(t, "task b", got.Title)
	assert.Len(t, store.Snapshot().Tasks(), 1)
}
