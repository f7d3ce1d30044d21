// Package testutil provides in-memory fakes of the storage and mail
// dependencies used by the services and the HTTP layer.
package testutil

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"taskmaster/internal/mail"
	"taskmaster/internal/models"
	"taskmaster/internal/storage"

	"github.com/google/uuid"
)

// Users is an in-memory user table.
type Users struct {
	mu    sync.RWMutex
	byID  map[string]models.User
	order map[string]int64

	// Error injection for testing
	SaveErr   error
	LookupErr error
}

func NewUsers() *Users {
	return &Users{
		byID:  make(map[string]models.User),
		order: make(map[string]int64),
	}
}

func (u *Users) SaveUser(_ context.Context, email string) (models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.SaveErr != nil {
		return models.User{}, u.SaveErr
	}

	for _, existing := range u.byID {
		if existing.Email == email {
			return models.User{}, storage.ErrUserExists
		}
	}

	now := time.Now().UTC()
	user := models.User{ID: uuid.NewString(), Email: email, CreatedAt: now, UpdatedAt: now}
	u.byID[user.ID] = user

	return user, nil
}

func (u *Users) UserByEmail(_ context.Context, email string) (models.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.LookupErr != nil {
		return models.User{}, u.LookupErr
	}

	for _, user := range u.byID {
		if user.Email == email {
			return user, nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

func (u *Users) UserByID(_ context.Context, id uuid.UUID) (models.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.LookupErr != nil {
		return models.User{}, u.LookupErr
	}

	user, ok := u.byID[id.String()]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return user, nil
}

// Count returns the number of stored users.
func (u *Users) Count() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.byID)
}

// nextOrder hands out the per-user task order counter.
func (u *Users) nextOrder(id string) (int64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.byID[id]; !ok {
		return 0, false
	}

	n := u.order[id]
	u.order[id] = n + 1

	return n, true
}

// Challenges is an in-memory OTP challenge store. Expiry is not
// simulated; tests call Expire instead.
type Challenges struct {
	mu   sync.Mutex
	data map[string]models.Challenge

	SaveErr    error
	ConsumeErr error
}

func NewChallenges() *Challenges {
	return &Challenges{data: make(map[string]models.Challenge)}
}

func (c *Challenges) SaveChallenge(_ context.Context, ch models.Challenge, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SaveErr != nil {
		return c.SaveErr
	}

	ch.State = models.ChallengePending
	c.data[ch.Email] = ch

	return nil
}

func (c *Challenges) ConsumeChallenge(_ context.Context, email string, match func(models.Challenge) bool) (models.Challenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ConsumeErr != nil {
		return models.Challenge{}, c.ConsumeErr
	}

	ch, ok := c.data[email]
	if !ok {
		return models.Challenge{}, storage.ErrChallengeAbsent
	}

	if !match(ch) {
		return models.Challenge{}, storage.ErrCodeMismatch
	}

	delete(c.data, email)

	return ch, nil
}

// Expire drops the challenge for email.
func (c *Challenges) Expire(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, email)
}

// Mailer records every message instead of sending it.
type Mailer struct {
	mu   sync.Mutex
	sent []mail.Message

	Err error
}

func (m *Mailer) SendOTP(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.sent = append(m.sent, msg)

	return nil
}

// Last returns the most recent message sent to email.
func (m *Mailer) Last(email string) (mail.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == email {
			return m.sent[i], true
		}
	}

	return mail.Message{}, false
}

// Tasks is an in-memory task table sharing the user counter of Users.
type Tasks struct {
	mu    sync.RWMutex
	users *Users
	data  map[string]models.Task

	Err error
}

func NewTasks(users *Users) *Tasks {
	return &Tasks{
		users: users,
		data:  make(map[string]models.Task),
	}
}

func (t *Tasks) CreateTask(_ context.Context, userID uuid.UUID, in models.NewTask) (models.Task, error) {
	if t.Err != nil {
		return models.Task{}, t.Err
	}

	order, ok := t.users.nextOrder(userID.String())
	if !ok {
		return models.Task{}, storage.ErrUserNotFound
	}

	now := time.Now().UTC()
	task := models.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      in.Status,
		Order:       order,
		UserID:      userID.String(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	t.mu.Lock()
	t.data[task.ID] = task
	t.mu.Unlock()

	return task, nil
}

func (t *Tasks) ListTasks(_ context.Context, userID uuid.UUID, q models.TaskQuery) ([]models.Task, int64, error) {
	if t.Err != nil {
		return nil, 0, t.Err
	}

	t.mu.RLock()
	matched := make([]models.Task, 0, len(t.data))
	for _, task := range t.data {
		if matches(task, userID.String(), q) {
			matched = append(matched, task)
		}
	}
	t.mu.RUnlock()

	slices.SortFunc(matched, func(a, b models.Task) int {
		c := compareBy(a, b, q.SortBy)
		if q.SortOrder == models.SortDesc {
			c = -c
		}
		return cmp.Or(c, strings.Compare(a.ID, b.ID))
	})

	total := int64(len(matched))

	start := min((q.Page-1)*q.Limit, len(matched))
	end := min(start+q.Limit, len(matched))

	return slices.Clone(matched[start:end]), total, nil
}

func (t *Tasks) TaskByID(_ context.Context, userID, id uuid.UUID) (models.Task, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.owned(userID, id)
}

func (t *Tasks) UpdateTask(_ context.Context, userID, id uuid.UUID, patch models.TaskPatch) (models.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, err := t.owned(userID, id)
	if err != nil {
		return models.Task{}, err
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.DueDate != nil {
		task.DueDate = *patch.DueDate
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	task.UpdatedAt = time.Now().UTC()

	t.data[task.ID] = task

	return task, nil
}

func (t *Tasks) DeleteTask(_ context.Context, userID, id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.owned(userID, id); err != nil {
		return err
	}

	delete(t.data, id.String())

	return nil
}

func (t *Tasks) ToggleTask(_ context.Context, userID, id uuid.UUID) (models.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, err := t.owned(userID, id)
	if err != nil {
		return models.Task{}, err
	}

	task.Status = task.Status.Toggled()
	task.UpdatedAt = time.Now().UTC()
	t.data[task.ID] = task

	return task, nil
}

func (t *Tasks) ReorderTasks(_ context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range ids {
		if _, err := t.owned(userID, id); err != nil {
			return err
		}
	}

	for i, id := range ids {
		task := t.data[id.String()]
		task.Order = int64(i)
		t.data[task.ID] = task
	}

	return nil
}

func (t *Tasks) owned(userID, id uuid.UUID) (models.Task, error) {
	task, ok := t.data[id.String()]
	if !ok || task.UserID != userID.String() {
		return models.Task{}, storage.ErrTaskNotFound
	}

	return task, nil
}

func matches(task models.Task, owner string, q models.TaskQuery) bool {
	if task.UserID != owner {
		return false
	}
	if q.Status != "" && task.Status != q.Status {
		return false
	}
	if q.Search != "" {
		s := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(task.Title), s) &&
			!strings.Contains(strings.ToLower(task.Description), s) {
			return false
		}
	}
	if !q.DueDate.IsZero() {
		day := q.DueDate.UTC().Truncate(24 * time.Hour)
		due := task.DueDate.UTC()
		if due.Before(day) || !due.Before(day.Add(24*time.Hour)) {
			return false
		}
	}

	return true
}

func compareBy(a, b models.Task, field string) int {
	switch field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "dueDate":
		return a.DueDate.Compare(b.DueDate)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
