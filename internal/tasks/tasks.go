package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/models"
	"taskmaster/internal/storage"

	"github.com/google/uuid"
)

var (
	// ErrTaskNotFound is returned for unknown ids, malformed ids and tasks
	// owned by someone else alike.
	ErrTaskNotFound = errors.New("task not found")
	ErrUnknownOwner = errors.New("unknown task owner")
	ErrEmptyUpdate  = errors.New("at least one field must be provided for update")
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "createdAt"
)

type Storage interface {
	CreateTask(ctx context.Context, userID uuid.UUID, in models.NewTask) (models.Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID, q models.TaskQuery) ([]models.Task, int64, error)
	TaskByID(ctx context.Context, userID, id uuid.UUID) (models.Task, error)
	UpdateTask(ctx context.Context, userID, id uuid.UUID, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, userID, id uuid.UUID) error
	ToggleTask(ctx context.Context, userID, id uuid.UUID) (models.Task, error)
	ReorderTasks(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
}

type Service struct {
	log     *slog.Logger
	storage Storage
}

func New(log *slog.Logger, storage Storage) *Service {
	return &Service{
		log:     log,
		storage: storage,
	}
}

func (s *Service) Create(ctx context.Context, userID string, in models.NewTask) (models.Task, error) {
	const op = "tasks.Create"

	log := s.log.With(slog.String("op", op))

	owner, err := parseOwner(userID)
	if err != nil {
		return models.Task{}, err
	}

	if in.Status == "" {
		in.Status = models.StatusNotStarted
	}

	task, err := s.storage.CreateTask(ctx, owner, in)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Task{}, ErrUnknownOwner
		}
		log.Error("failed to create task", sl.Err(err))
		return models.Task{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("task created", slog.String("task_id", task.ID), slog.Int64("order", task.Order))

	return task, nil
}

func (s *Service) List(ctx context.Context, userID string, q models.TaskQuery) (models.TaskPage, error) {
	const op = "tasks.List"

	owner, err := parseOwner(userID)
	if err != nil {
		return models.TaskPage{}, err
	}

	q = normalizeQuery(q)

	tasks, total, err := s.storage.ListTasks(ctx, owner, q)
	if err != nil {
		s.log.Error("failed to list tasks", slog.String("op", op), sl.Err(err))
		return models.TaskPage{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.TaskPage{
		Tasks:      tasks,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: TotalPages(total, q.Limit),
	}, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (models.Task, error) {
	const op = "tasks.Get"

	owner, taskID, err := parseIDs(userID, id)
	if err != nil {
		return models.Task{}, err
	}

	task, err := s.storage.TaskByID(ctx, owner, taskID)
	if err != nil {
		return models.Task{}, s.mapErr(op, err)
	}

	return task, nil
}

// Update applies the non-nil fields of patch. There is no version check;
// the last writer wins.
func (s *Service) Update(ctx context.Context, userID, id string, patch models.TaskPatch) (models.Task, error) {
	const op = "tasks.Update"

	if patch.Empty() {
		return models.Task{}, ErrEmptyUpdate
	}

	owner, taskID, err := parseIDs(userID, id)
	if err != nil {
		return models.Task{}, err
	}

	task, err := s.storage.UpdateTask(ctx, owner, taskID, patch)
	if err != nil {
		return models.Task{}, s.mapErr(op, err)
	}

	return task, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	const op = "tasks.Delete"

	owner, taskID, err := parseIDs(userID, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteTask(ctx, owner, taskID); err != nil {
		return s.mapErr(op, err)
	}

	s.log.Info("task deleted", slog.String("op", op), slog.String("task_id", id))

	return nil
}

// ToggleComplete moves a task to COMPLETED, or back to NOT_STARTED if it
// already was.
func (s *Service) ToggleComplete(ctx context.Context, userID, id string) (models.Task, error) {
	const op = "tasks.ToggleComplete"

	owner, taskID, err := parseIDs(userID, id)
	if err != nil {
		return models.Task{}, err
	}

	task, err := s.storage.ToggleTask(ctx, owner, taskID)
	if err != nil {
		return models.Task{}, s.mapErr(op, err)
	}

	return task, nil
}

// Reorder sets each task's order to its position in ids.
func (s *Service) Reorder(ctx context.Context, userID string, ids []string) error {
	const op = "tasks.Reorder"

	owner, err := parseOwner(userID)
	if err != nil {
		return err
	}

	taskIDs := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		taskID, err := uuid.Parse(id)
		if err != nil || slices.Contains(taskIDs, taskID) {
			return ErrTaskNotFound
		}
		taskIDs = append(taskIDs, taskID)
	}

	if err := s.storage.ReorderTasks(ctx, owner, taskIDs); err != nil {
		return s.mapErr(op, err)
	}

	return nil
}

func (s *Service) mapErr(op string, err error) error {
	if errors.Is(err, storage.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	s.log.Error("storage failure", slog.String("op", op), sl.Err(err))

	return fmt.Errorf("%s: %w", op, err)
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}

func normalizeQuery(q models.TaskQuery) models.TaskQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if !slices.Contains(models.TaskSortFields, q.SortBy) {
		q.SortBy = DefaultSort
	}
	if q.SortOrder != models.SortAsc {
		q.SortOrder = models.SortDesc
	}

	return q
}

func parseOwner(userID string) (uuid.UUID, error) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, ErrUnknownOwner
	}

	return owner, nil
}

func parseIDs(userID, id string) (uuid.UUID, uuid.UUID, error) {
	owner, err := parseOwner(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	taskID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrTaskNotFound
	}

	return owner, taskID, nil
}
