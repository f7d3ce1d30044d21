package router_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskmaster/internal/auth"
	"taskmaster/internal/http_server/router"
	"taskmaster/internal/lib/jwt"
	sl "taskmaster/internal/lib/logger/sl"
	"taskmaster/internal/lib/validation"
	"taskmaster/internal/models"
	"taskmaster/internal/tasks"
	"taskmaster/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status       string        `json:"status"`
	Message      string        `json:"message"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         models.User   `json:"user"`
	Task         models.Task   `json:"task"`
	Tasks        []models.Task `json:"tasks"`
	Total        int64         `json:"total"`
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
	TotalPages   int64         `json:"totalPages"`
}

type server struct {
	t      *testing.T
	srv    *httptest.Server
	mailer *testutil.Mailer
}

func newServer(t *testing.T) *server {
	t.Helper()

	log := sl.Discard()
	users := testutil.NewUsers()
	mailer := &testutil.Mailer{}
	issuer := jwt.NewIssuer("access-secret", 15*time.Minute, "refresh-secret", time.Hour)

	h := router.New(router.Deps{
		Log:            log,
		Validate:       validation.New(),
		Auth:           auth.New(log, users, testutil.NewChallenges(), mailer, issuer, 6, 5*time.Minute),
		Tasks:          tasks.New(log, testutil.NewTasks(users)),
		Tokens:         issuer,
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &server{t: t, srv: srv, mailer: mailer}
}

func (s *server) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(res.Body).Decode(&env))

	return res.StatusCode, env
}

func (s *server) login(email string) envelope {
	s.t.Helper()

	code, _ := s.do(http.MethodPost, "/auth/initiate", "", map[string]string{"email": email})
	require.Equal(s.t, http.StatusOK, code)

	msg, ok := s.mailer.Last(email)
	require.True(s.t, ok)

	code, env := s.do(http.MethodPost, "/auth/verify-otp", "", map[string]string{"email": email, "otp": msg.Code})
	require.Equal(s.t, http.StatusOK, code)

	return env
}

func (s *server) createTask(token, title string) models.Task {
	s.t.Helper()

	code, env := s.do(http.MethodPost, "/tasks", token, map[string]string{
		"title":   title,
		"dueDate": "2025-01-15",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)

	return env.Task
}

func TestHealthz(t *testing.T) {
	s := newServer(t)

	code, env := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Status)
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)

	code, env := s.do(http.MethodPost, "/auth/initiate", "", map[string]string{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OTP sent successfully", env.Message)

	msg, ok := s.mailer.Last("a@example.com")
	require.True(t, ok)

	wrong := "000000"
	if msg.Code == wrong {
		wrong = "999999"
	}

	code, env = s.do(http.MethodPost, "/auth/verify-otp", "", map[string]string{"email": "a@example.com", "otp": wrong})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Invalid OTP", env.Message)

	code, env = s.do(http.MethodPost, "/auth/verify-otp", "", map[string]string{"email": "a@example.com", "otp": msg.Code})
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, env.AccessToken)
	require.NotEmpty(t, env.RefreshToken)

	access, refreshToken := env.AccessToken, env.RefreshToken

	code, env = s.do(http.MethodGet, "/auth/me", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "a@example.com", env.User.Email)

	code, _ = s.do(http.MethodGet, "/auth/me", refreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(http.MethodGet, "/auth/refresh", refreshToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, env.AccessToken)
	assert.NotEmpty(t, env.RefreshToken)

	code, _ = s.do(http.MethodGet, "/auth/refresh", access, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	for _, token := range []string{access, refreshToken} {
		code, env = s.do(http.MethodGet, "/auth/refresh-access", token, nil)
		require.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, env.AccessToken)
	}
}

func TestEmailIsCaseInsensitive(t *testing.T) {
	s := newServer(t)

	code, _ := s.do(http.MethodPost, "/auth/initiate", "", map[string]string{"email": "A@Example.COM"})
	require.Equal(t, http.StatusOK, code)

	msg, ok := s.mailer.Last("a@example.com")
	require.True(t, ok)

	code, env := s.do(http.MethodPost, "/auth/verify-otp", "", map[string]string{"email": "a@EXAMPLE.com", "otp": msg.Code})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, "/auth/me", env.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "a@example.com", env.User.Email)
}

func TestInitiateErrors(t *testing.T) {
	s := newServer(t)

	code, env := s.do(http.MethodPost, "/auth/initiate", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "email")

	code, _ = s.do(http.MethodPost, "/auth/initiate", "", "{broken")
	assert.Equal(t, http.StatusBadRequest, code)

	s.mailer.Err = errors.New("smtp down")

	code, env = s.do(http.MethodPost, "/auth/initiate", "", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Failed to send OTP", env.Message)
}

func TestTasksRequireToken(t *testing.T) {
	s := newServer(t)

	code, env := s.do(http.MethodGet, "/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "error", env.Status)

	code, _ = s.do(http.MethodGet, "/tasks", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTaskLifecycle(t *testing.T) {
	s := newServer(t)
	token := s.login("a@example.com").AccessToken

	task := s.createTask(token, "  write tests  ")
	assert.Equal(t, "write tests", task.Title)
	assert.Equal(t, models.StatusNotStarted, task.Status)
	assert.Equal(t, int64(0), task.Order)
	assert.True(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC).Equal(task.DueDate))

	code, env := s.do(http.MethodGet, "/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, task.ID, env.Task.ID)

	code, env = s.do(http.MethodPatch, "/tasks/"+task.ID, token, map[string]string{
		"description": "with testify",
		"status":      "IN_PROGRESS",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "with testify", env.Task.Description)
	assert.Equal(t, models.StatusInProgress, env.Task.Status)
	assert.Equal(t, "write tests", env.Task.Title)

	code, env = s.do(http.MethodPatch, "/tasks/"+task.ID+"/toggle-complete", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusCompleted, env.Task.Status)

	code, env = s.do(http.MethodPatch, "/tasks/"+task.ID+"/toggle-complete", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusNotStarted, env.Task.Status)

	code, env = s.do(http.MethodDelete, "/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Task deleted successfully", env.Message)

	code, _ = s.do(http.MethodGet, "/tasks/"+task.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateValidation(t *testing.T) {
	s := newServer(t)
	token := s.login("a@example.com").AccessToken

	code, _ := s.do(http.MethodPost, "/tasks", token, map[string]string{
		"title":   strings.Repeat("a", 100),
		"dueDate": "2025-01-15T10:00:00Z",
	})
	assert.Equal(t, http.StatusCreated, code)

	code, env := s.do(http.MethodPost, "/tasks", token, map[string]string{
		"title":   strings.Repeat("a", 101),
		"dueDate": "2025-01-15",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "title")

	code, env = s.do(http.MethodPost, "/tasks", token, map[string]string{"title": "no date"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "dueDate")

	code, env = s.do(http.MethodPost, "/tasks", token, map[string]string{
		"title":   "x",
		"dueDate": "tomorrow",
		"status":  "DONE",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "dueDate")
	assert.Contains(t, env.Message, "status")
}

func TestUpdateValidation(t *testing.T) {
	s := newServer(t)
	token := s.login("a@example.com").AccessToken
	task := s.createTask(token, "x")

	code, _ := s.do(http.MethodPatch, "/tasks/"+task.ID, token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.do(http.MethodPatch, "/tasks/"+task.ID, token, map[string]string{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "title")
}

func TestListPagination(t *testing.T) {
	s := newServer(t)
	token := s.login("a@example.com").AccessToken

	for i := range 25 {
		s.createTask(token, fmt.Sprintf("task %02d", i))
	}

	code, env := s.do(http.MethodGet, "/tasks?page=3&limit=10", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, env.Tasks, 5)
	assert.Equal(t, int64(25), env.Total)
	assert.Equal(t, int64(3), env.TotalPages)
	assert.Equal(t, 3, env.Page)
	assert.Equal(t, 10, env.Limit)

	code, env = s.do(http.MethodGet, "/tasks?sortBy=title&sortOrder=asc&search=task%200", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, env.Tasks, 10)
	assert.Equal(t, "task 00", env.Tasks[0].Title)

	for _, query := range []string{"limit=101", "limit=0", "page=0", "page=abc", "sortBy=owner", "status=DONE", "dueDate=15-01-2025"} {
		code, _ = s.do(http.MethodGet, "/tasks?"+query, token, nil)
		assert.Equal(t, http.StatusBadRequest, code, query)
	}

	code, env = s.do(http.MethodGet, "/tasks?dueDate=2025-01-15", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(25), env.Total)

	code, env = s.do(http.MethodGet, "/tasks?dueDate=2025-01-16", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, env.Total)
	assert.NotNil(t, env.Tasks)
}

func TestOwnershipIsolation(t *testing.T) {
	s := newServer(t)
	alice := s.login("alice@example.com").AccessToken
	bob := s.login("bob@example.com").AccessToken

	task := s.createTask(alice, "alice only")

	code, _ := s.do(http.MethodGet, "/tasks/"+task.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodDelete, "/tasks/"+task.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/tasks/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := s.do(http.MethodGet, "/tasks", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, env.Total)
}

func TestReorder(t *testing.T) {
	s := newServer(t)
	token := s.login("a@example.com").AccessToken

	first := s.createTask(token, "first")
	second := s.createTask(token, "second")

	code, env := s.do(http.MethodPatch, "/tasks/reorder", token, map[string][]string{
		"taskIds": {second.ID, first.ID},
	})
	require.Equal(t, http.StatusOK, code, env.Message)

	_, env = s.do(http.MethodGet, "/tasks/"+first.ID, token, nil)
	assert.Equal(t, int64(1), env.Task.Order)

	_, env = s.do(http.MethodGet, "/tasks/"+second.ID, token, nil)
	assert.Equal(t, int64(0), env.Task.Order)

	code, _ = s.do(http.MethodPatch, "/tasks/reorder", token, map[string][]string{"taskIds": {}})
	assert.Equal(t, http.StatusBadRequest, code)
}
