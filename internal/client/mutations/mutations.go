// Package mutations applies task changes to the local store before the
// server confirms them and reverts them when the server call fails.
package mutations

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"taskmaster/internal/client"
	"taskmaster/internal/client/taskstore"
	"taskmaster/internal/lib/validation"
	"taskmaster/internal/models"

	"github.com/google/uuid"
)

const tempPrefix = "temp-"

var (
	ErrUnknownTask = errors.New("task is not in the local store")
	ErrBadPosition = errors.New("position out of range")
)

type API interface {
	CreateTask(ctx context.Context, in client.TaskInput) (models.Task, error)
	UpdateTask(ctx context.Context, id string, in client.TaskUpdate) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ToggleTask(ctx context.Context, id string) (models.Task, error)
	ReorderTasks(ctx context.Context, ids []string) error
	ListTasks(ctx context.Context, p client.ListParams) (models.TaskPage, error)
}

type Mutations struct {
	api   API
	store *taskstore.Store
}

func New(api API, store *taskstore.Store) *Mutations {
	return &Mutations{api: api, store: store}
}

// IsTemp reports whether id is a placeholder not yet confirmed by the
// server.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// Create shows a placeholder right away, swaps in the server id on
// success and removes the placeholder on failure.
func (m *Mutations) Create(ctx context.Context, in client.TaskInput) (models.Task, error) {
	due, err := validation.ParseDate(in.DueDate)
	if err != nil {
		return models.Task{}, fmt.Errorf("mutations.Create: %w", err)
	}

	status := in.Status
	if status == "" {
		status = models.StatusNotStarted
	}

	tempID := tempPrefix + uuid.NewString()
	m.store.Dispatch(taskstore.Add{Task: models.Task{
		ID:          tempID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     due,
		Status:      status,
	}})

	created, err := m.api.CreateTask(ctx, in)
	if err != nil {
		m.store.Dispatch(taskstore.Delete{ID: tempID})
		return models.Task{}, err
	}

	m.store.Dispatch(taskstore.ReplaceID{TempID: tempID, RealID: created.ID, Task: &created})

	return created, nil
}

// Update applies the change locally and restores the previous record if
// the server rejects it.
func (m *Mutations) Update(ctx context.Context, id string, in client.TaskUpdate) (models.Task, error) {
	prev, ok := m.store.Get(id)
	if !ok {
		return models.Task{}, ErrUnknownTask
	}

	patch := models.TaskPatch{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
	}
	if in.DueDate != nil {
		due, err := validation.ParseDate(*in.DueDate)
		if err != nil {
			return models.Task{}, fmt.Errorf("mutations.Update: %w", err)
		}
		patch.DueDate = &due
	}

	m.store.Dispatch(taskstore.Update{ID: id, Patch: patch})

	updated, err := m.api.UpdateTask(ctx, id, in)
	if err != nil {
		m.store.Dispatch(taskstore.Put{Task: prev})
		return models.Task{}, err
	}

	m.store.Dispatch(taskstore.Put{Task: updated})

	return updated, nil
}

// Delete removes the task locally and puts it back at its old position
// if the server call fails.
func (m *Mutations) Delete(ctx context.Context, id string) error {
	snapshot := m.store.Snapshot()

	prev, ok := snapshot.ByID[id]
	if !ok {
		return ErrUnknownTask
	}
	idx := snapshot.Index(id)

	m.store.Dispatch(taskstore.Delete{ID: id})

	if err := m.api.DeleteTask(ctx, id); err != nil {
		m.store.Dispatch(taskstore.Insert{Task: prev, Index: idx})
		return err
	}

	return nil
}

// Toggle flips completion locally and flips it back on failure.
func (m *Mutations) Toggle(ctx context.Context, id string) (models.Task, error) {
	prev, ok := m.store.Get(id)
	if !ok {
		return models.Task{}, ErrUnknownTask
	}

	m.store.Dispatch(taskstore.ToggleComplete{ID: id})

	toggled, err := m.api.ToggleTask(ctx, id)
	if err != nil {
		m.store.Dispatch(taskstore.Put{Task: prev})
		return models.Task{}, err
	}

	m.store.Dispatch(taskstore.Put{Task: toggled})

	return toggled, nil
}

// Reorder moves the task at from to to and persists the resulting order.
// Placeholders are left out of the persisted order.
func (m *Mutations) Reorder(ctx context.Context, from, to int) error {
	n := len(m.store.Snapshot().Order)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrBadPosition
	}

	m.store.Dispatch(taskstore.Reorder{From: from, To: to})

	ids := slices.DeleteFunc(m.store.Snapshot().Order, IsTemp)

	if err := m.api.ReorderTasks(ctx, ids); err != nil {
		m.store.Dispatch(taskstore.Reorder{From: to, To: from})
		return err
	}

	return nil
}

// Refetch replaces the local state with a page from the server.
func (m *Mutations) Refetch(ctx context.Context, p client.ListParams) (models.TaskPage, error) {
	page, err := m.api.ListTasks(ctx, p)
	if err != nil {
		return models.TaskPage{}, err
	}

	m.store.Dispatch(taskstore.SetAll{Tasks: page.Tasks})

	return page, nil
}
