package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskmaster/internal/models"
	"taskmaster/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

//go:embed schema.sql
var schema string

const (
	userColumns = `id::text, email, created_at, updated_at`
	taskColumns = `id::text, user_id::text, title, description, due_date, status, sort_order, created_at, updated_at`
)

// sortColumns maps the API sort fields onto table columns. Anything not
// listed here never reaches the ORDER BY clause.
var sortColumns = map[string]string{
	"title":     "title",
	"status":    "status",
	"dueDate":   "due_date",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// Migrate creates the tables and indexes if they do not exist yet.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (id, email)
		VALUES ($1, $2)
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, uuid.New(), email))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.UserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// CreateTask inserts a task with the owner's next order value. The
// counter row is locked by the UPDATE, so concurrent creations for the
// same user serialize and never share an order.
func (r *PostgresRepo) CreateTask(ctx context.Context, userID uuid.UUID, in models.NewTask) (models.Task, error) {
	const op = "storage.postgres.CreateTask"

	query := `
		WITH seq AS (
			UPDATE users SET next_order = next_order + 1
			WHERE id = $1
			RETURNING next_order - 1 AS sort_order
		)
		INSERT INTO tasks (id, user_id, title, description, due_date, status, sort_order)
		SELECT $2, $1, $3, $4, $5, $6, seq.sort_order FROM seq
		RETURNING ` + taskColumns

	t, err := scanTask(r.pool.QueryRow(ctx, query,
		userID,
		uuid.New(),
		in.Title,
		in.Description,
		in.DueDate.UTC(),
		string(in.Status),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, storage.ErrUserNotFound
		}

		return models.Task{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) ListTasks(ctx context.Context, userID uuid.UUID, q models.TaskQuery) ([]models.Task, int64, error) {
	const op = "storage.postgres.ListTasks"

	where, args := taskFilter(userID, q)

	sortColumn, ok := sortColumns[q.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	direction := "DESC"
	if q.SortOrder == models.SortAsc {
		direction = "ASC"
	}

	listQuery := fmt.Sprintf(
		`SELECT %s FROM tasks WHERE %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		taskColumns, where, sortColumn, direction, direction, len(args)+1, len(args)+2,
	)
	listArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)

	countQuery := `SELECT count(*) FROM tasks WHERE ` + where

	var (
		tasks []models.Task
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, listQuery, listArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}

		return rows.Err()
	})

	g.Go(func() error {
		return r.pool.QueryRow(gctx, countQuery, args...).Scan(&total)
	})

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	if tasks == nil {
		tasks = []models.Task{}
	}

	return tasks, total, nil
}

func (r *PostgresRepo) TaskByID(ctx context.Context, userID, id uuid.UUID) (models.Task, error) {
	const op = "storage.postgres.TaskByID"

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`

	t, err := scanTask(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, storage.ErrTaskNotFound
		}

		return models.Task{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) UpdateTask(ctx context.Context, userID, id uuid.UUID, patch models.TaskPatch) (models.Task, error) {
	const op = "storage.postgres.UpdateTask"

	args := []any{id, userID}
	set := []string{"updated_at = NOW()"}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.DueDate != nil {
		add("due_date", patch.DueDate.UTC())
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}

	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE id = $1 AND user_id = $2 RETURNING %s`,
		strings.Join(set, ", "), taskColumns,
	)

	t, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, storage.ErrTaskNotFound
		}

		return models.Task{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

func (r *PostgresRepo) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	const op = "storage.postgres.DeleteTask"

	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrTaskNotFound
	}

	return nil
}

// ToggleTask flips COMPLETED to NOT_STARTED and anything else to
// COMPLETED in a single statement.
func (r *PostgresRepo) ToggleTask(ctx context.Context, userID, id uuid.UUID) (models.Task, error) {
	const op = "storage.postgres.ToggleTask"

	query := `
		UPDATE tasks
		SET status = CASE WHEN status = 'COMPLETED' THEN 'NOT_STARTED' ELSE 'COMPLETED' END,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + taskColumns

	t, err := scanTask(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, storage.ErrTaskNotFound
		}

		return models.Task{}, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// ReorderTasks assigns order = position in ids. All ids must belong to
// the user, otherwise nothing changes.
func (r *PostgresRepo) ReorderTasks(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	const op = "storage.postgres.ReorderTasks"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var owned int
	err = tx.QueryRow(ctx,
		`SELECT count(*) FROM tasks WHERE user_id = $1 AND id = ANY($2)`,
		userID, ids,
	).Scan(&owned)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if owned != len(ids) {
		return storage.ErrTaskNotFound
	}

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(
			`UPDATE tasks SET sort_order = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
			int64(i), id, userID,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func taskFilter(userID uuid.UUID, q models.TaskQuery) (string, []any) {
	args := []any{userID}
	where := []string{"user_id = $1"}

	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}

	if !q.DueDate.IsZero() {
		start, end := DayRange(q.DueDate)
		args = append(args, start, end)
		where = append(where, fmt.Sprintf("due_date >= $%d AND due_date <= $%d", len(args)-1, len(args)))
	}

	return strings.Join(where, " AND "), args
}

// DayRange returns [00:00:00.000, 23:59:59.999] of day's calendar date in UTC.
func DayRange(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	return start, start.Add(24*time.Hour - time.Millisecond)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)

	return u, err
}

func scanTask(row pgx.Row) (models.Task, error) {
	var (
		t      models.Task
		status string
	)

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.DueDate,
		&status,
		&t.Order,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	t.Status = models.TaskStatus(status)

	return t, err
}
