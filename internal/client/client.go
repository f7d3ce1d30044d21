// Package client wraps the taskmaster REST API for Go callers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskmaster/internal/models"
)

// HTTPError is returned for every non-2xx answer. Status is 0 when the
// request never reached the server.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or -1.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return -1
}

type TokenSource interface {
	AccessToken() string
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// New returns a client for the API at baseURL. tokens may be nil for
// unauthenticated use.
func New(baseURL string, httpClient *http.Client, tokens TokenSource) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
	}
}

// Do sends body as JSON with the current access token and decodes the
// answer into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var token string
	if c.tokens != nil {
		token = c.tokens.AccessToken()
	}

	return c.do(ctx, method, path, query, token, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &HTTPError{Status: 0, Message: "Network error"}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return &HTTPError{Status: 0, Message: "Network error"}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var envelope struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &envelope)

		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}

		return &HTTPError{Status: res.StatusCode, Message: msg}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}

	return nil
}

type message struct {
	Message string `json:"message"`
}

// Initiate asks the server to mail a login code to email.
func (c *Client) Initiate(ctx context.Context, email string) (string, error) {
	var out message
	err := c.do(ctx, http.MethodPost, "/auth/initiate", nil, "", map[string]string{"email": email}, &out)
	return out.Message, err
}

func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (models.TokenPair, error) {
	var out models.TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/verify-otp", nil, "", map[string]string{"email": email, "otp": otp}, &out)
	return out, err
}

// Refresh trades a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var out models.TokenPair
	err := c.do(ctx, http.MethodGet, "/auth/refresh", nil, refreshToken, nil, &out)
	return out, err
}

// RefreshAccess trades an access or refresh token for a new access token.
func (c *Client) RefreshAccess(ctx context.Context, token string) (string, error) {
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/refresh-access", nil, token, nil, &out)
	return out.AccessToken, err
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	err := c.Do(ctx, http.MethodGet, "/auth/me", nil, nil, &out)
	return out.User, err
}

// TaskInput is the body of a task creation. DueDate is RFC 3339 or
// YYYY-MM-DD.
type TaskInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	DueDate     string            `json:"dueDate"`
	Status      models.TaskStatus `json:"status,omitempty"`
}

// TaskUpdate carries the fields to change; nil fields are not sent.
type TaskUpdate struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	DueDate     *string            `json:"dueDate,omitempty"`
	Status      *models.TaskStatus `json:"status,omitempty"`
}

type ListParams struct {
	Page      int
	Limit     int
	Status    models.TaskStatus
	Search    string
	SortBy    string
	SortOrder string
	DueDate   string
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("status", string(p.Status))
	set("search", p.Search)
	set("sortBy", p.SortBy)
	set("sortOrder", p.SortOrder)
	set("dueDate", p.DueDate)

	return v
}

type taskEnvelope struct {
	Task models.Task `json:"task"`
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (models.Task, error) {
	var out taskEnvelope
	err := c.Do(ctx, http.MethodPost, "/tasks", nil, in, &out)
	return out.Task, err
}

func (c *Client) ListTasks(ctx context.Context, p ListParams) (models.TaskPage, error) {
	var out models.TaskPage
	err := c.Do(ctx, http.MethodGet, "/tasks", p.values(), nil, &out)
	return out, err
}

func (c *Client) GetTask(ctx context.Context, id string) (models.Task, error) {
	var out taskEnvelope
	err := c.Do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, &out)
	return out.Task, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, in TaskUpdate) (models.Task, error) {
	var out taskEnvelope
	err := c.Do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), nil, in, &out)
	return out.Task, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	var out taskEnvelope
	err := c.Do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id)+"/toggle-complete", nil, nil, &out)
	return out.Task, err
}

func (c *Client) ReorderTasks(ctx context.Context, ids []string) error {
	return c.Do(ctx, http.MethodPatch, "/tasks/reorder", nil, map[string][]string{"taskIds": ids}, nil)
}
