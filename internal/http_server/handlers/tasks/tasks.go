// Package tasks holds the HTTP handlers of the /tasks routes. Every
// handler expects authn.Access in front of it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	resp "taskmaster/internal/lib/api/response"
	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/lib/validation"
	"taskmaster/internal/middleware/authn"
	"taskmaster/internal/models"
	tasksvc "taskmaster/internal/tasks"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Service interface {
	Create(ctx context.Context, userID string, in models.NewTask) (models.Task, error)
	List(ctx context.Context, userID string, q models.TaskQuery) (models.TaskPage, error)
	Get(ctx context.Context, userID, id string) (models.Task, error)
	Update(ctx context.Context, userID, id string, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, userID, id string) error
	ToggleComplete(ctx context.Context, userID, id string) (models.Task, error)
	Reorder(ctx context.Context, userID string, ids []string) error
}

type CreateRequest struct {
	Title       string            `json:"title" validate:"required,max=100"`
	Description string            `json:"description" validate:"max=500"`
	DueDate     string            `json:"dueDate" validate:"required,duedate"`
	Status      models.TaskStatus `json:"status" validate:"omitempty,oneof=NOT_STARTED IN_PROGRESS COMPLETED CANCELLED"`
}

type UpdateRequest struct {
	Title       *string            `json:"title" validate:"omitnil,min=1,max=100"`
	Description *string            `json:"description" validate:"omitnil,max=500"`
	DueDate     *string            `json:"dueDate" validate:"omitnil,duedate"`
	Status      *models.TaskStatus `json:"status" validate:"omitnil,oneof=NOT_STARTED IN_PROGRESS COMPLETED CANCELLED"`
}

type ListQuery struct {
	Page      int    `json:"page" validate:"min=1"`
	Limit     int    `json:"limit" validate:"min=1,max=100"`
	Status    string `json:"status" validate:"omitempty,oneof=NOT_STARTED IN_PROGRESS COMPLETED CANCELLED"`
	Search    string `json:"search" validate:"max=100"`
	SortBy    string `json:"sortBy" validate:"omitempty,oneof=title status dueDate createdAt updatedAt"`
	SortOrder string `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	DueDate   string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

type ReorderRequest struct {
	TaskIDs []string `json:"taskIds" validate:"required,min=1,max=1000,dive,required"`
}

type TaskResponse struct {
	resp.Response
	Task models.Task `json:"task"`
}

type ListResponse struct {
	resp.Response
	models.TaskPage
}

func Create(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tasks.Create"

		log := requestLog(log, r, op)

		var req CreateRequest
		if !decode(w, r, log, validate, &req, func() {
			req.Title = strings.TrimSpace(req.Title)
			req.Description = strings.TrimSpace(req.Description)
		}) {
			return
		}

		// Validated above.
		due, _ := validation.ParseDate(req.DueDate)

		task, err := svc.Create(r.Context(), authn.UserID(r.Context()), models.NewTask{
			Title:       req.Title,
			Description: req.Description,
			DueDate:     due,
			Status:      req.Status,
		})
		if err != nil {
			renderError(w, r, log, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, TaskResponse{Response: resp.OK(), Task: task})
	}
}

func List(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tasks.List"

		log := requestLog(log, r, op)

		q, err := parseListQuery(r.URL.Query())
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Validation failed: "+err.Error()))

			return
		}

		if err := validate.Struct(q); err != nil {
			renderValidation(w, r, log, err)
			return
		}

		query := models.TaskQuery{
			Page:      q.Page,
			Limit:     q.Limit,
			Status:    models.TaskStatus(q.Status),
			Search:    q.Search,
			SortBy:    q.SortBy,
			SortOrder: q.SortOrder,
		}
		if q.DueDate != "" {
			query.DueDate, _ = validation.ParseDate(q.DueDate)
		}

		page, err := svc.List(r.Context(), authn.UserID(r.Context()), query)
		if err != nil {
			renderError(w, r, log, err)
			return
		}

		render.JSON(w, r, ListResponse{Response: resp.OK(), TaskPage: page})
	}
}

func Get(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tasks.Get"

		log := requestLog(log, r, op)

		task, err := svc.Get(r.Context(), authn.UserID(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			renderError(w, r, log, err)
			return
		}

		render.JSON(w, r, TaskResponse{Response: resp.OK(), Task: task})
	}
}

func Update(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tasks.Update"

		log := requestLog(log, r, op)

		var req UpdateRequest
		if !decode(w, r, log, validate, &req, func() {
			trimPtr(req.Title)
			trimPtr(req.Description)
		}) {
			return
		}

		patch := models.TaskPatch{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
		}
		if req.DueDate != nil {
			due, _ := validation.ParseDate(*req.DueDate)
			patch.DueDate = &due
		}

		task, err := svc.Update(r.Context(), authn.UserID(r.Context()), chi.URLParam(r, "id"), patch)
		if err != nil {
			renderError(w, r, log, err)
			return
		}

		render.JSON(w, r, TaskResponse{Response: resp.OK(), Task: task})
	}
}

func Delete(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tasks.Delete"

		log := requestLog(log, r, op)

		if err := svc.Delete(r.Context(), authn.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
			renderError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp.OKMessage("Task deleted successfully"))
	}
}

func ToggleComplete(log *slog.Logger, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tasks.ToggleComplete"

		log := requestLog(log, r, op)

		task, err := svc.ToggleComplete(r.Context(), authn.UserID(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			renderError(w, r, log, err)
			return
		}

		render.JSON(w, r, TaskResponse{Response: resp.OK(), Task: task})
	}
}

func Reorder(log *slog.Logger, validate *validator.Validate, svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.tasks.Reorder"

		log := requestLog(log, r, op)

		var req ReorderRequest
		if !decode(w, r, log, validate, &req, nil) {
			return
		}

		if err := svc.Reorder(r.Context(), authn.UserID(r.Context()), req.TaskIDs); err != nil {
			renderError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp.OKMessage("Tasks reordered successfully"))
	}
}

func requestLog(log *slog.Logger, r *http.Request, op string) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// decode reads the JSON body into dst, runs normalize and validates the
// result. On failure the 400 response is already written.
func decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any, normalize func()) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Error("Failed to decode request body", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("Failed to decode request"))

		return false
	}

	if normalize != nil {
		normalize()
	}

	if err := validate.Struct(dst); err != nil {
		renderValidation(w, r, log, err)
		return false
	}

	return true
}

func renderValidation(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Info("Invalid request", sl.Err(err))

	render.Status(r, http.StatusBadRequest)

	var validateErr validator.ValidationErrors
	if errors.As(err, &validateErr) {
		render.JSON(w, r, resp.ValidationError(validateErr))
		return
	}

	render.JSON(w, r, resp.Error("Invalid request"))
}

func renderError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, tasksvc.ErrTaskNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("Task not found"))
	case errors.Is(err, tasksvc.ErrUnknownOwner):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, resp.Error("Invalid token"))
	case errors.Is(err, tasksvc.ErrEmptyUpdate):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("At least one field must be provided for update"))
	default:
		log.Error("task operation failed", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))
	}
}

func parseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{
		Page:      tasksvc.DefaultPage,
		Limit:     tasksvc.DefaultLimit,
		Status:    values.Get("status"),
		Search:    strings.TrimSpace(values.Get("search")),
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
		DueDate:   values.Get("dueDate"),
	}

	for name, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}

		n, err := strconv.Atoi(raw)
		if err != nil {
			return ListQuery{}, fmt.Errorf("field %s must be a number", name)
		}
		*dst = n
	}

	return q, nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
