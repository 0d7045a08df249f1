// Package client — HTTP-клиент API задач.
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
	"strings"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/tasks"
)

// APIError — ответ сервера с кодом не 2xx.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// IsStatus сообщает, что err является APIError с данным кодом.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client ходит в /api/v1 сервера.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New создаёт клиента. token может быть пустым до логина.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken меняет токен сессии.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Register регистрирует пользователя.
func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (auth.User, error) {
	var user auth.User
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", req, &user)
	return user, err
}

// Login входит и запоминает токен.
func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (auth.Session, error) {
	var s auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", req, &s); err != nil {
		return auth.Session{}, err
	}
	c.token = s.Token
	return s, nil
}

// List возвращает задачи текущего пользователя.
func (c *Client) List(ctx context.Context) ([]tasks.Task, error) {
	var out []tasks.Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []tasks.Task{}
	}
	return out, nil
}

// Create создаёт задачу.
func (c *Client) Create(ctx context.Context, title string) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(ctx, http.MethodPost, "/api/v1/tasks", tasks.CreateTaskRequest{Title: title}, &t)
	return t, err
}

// Patch частично обновляет задачу.
func (c *Client) Patch(ctx context.Context, id string, req tasks.PatchTaskRequest) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(ctx, http.MethodPatch, "/api/v1/tasks/"+url.PathEscape(id), req, &t)
	return t, err
}

// Delete удаляет задачу.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(id), nil, nil)
}

// ClearCompleted удаляет все выполненные задачи.
func (c *Client) ClearCompleted(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks?done=true", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
