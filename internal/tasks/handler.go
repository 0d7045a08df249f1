package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	appMiddleware "taskboard/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Handler — HTTP-слой модуля задач: роуты, парсинг JSON, коды ответов.
// Состояние и бизнес-логика живут в Service: handler -> service -> store.
type Handler struct {
	svc *Service
	log logrus.FieldLogger
}

// NewHandler создаёт Handler.
func NewHandler(svc *Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Router собирает роутер задач. Монтируется в /api/v1/tasks.
// Владелец должен быть уже положен в контекст middleware.Authenticate.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(appMiddleware.JSONHeaderMiddleware)

	r.Get("/", h.listTasks)
	r.Post("/", h.createTask)
	r.Delete("/", h.clearCompleted)

	r.Patch("/{id}", h.patchTask)
	r.Delete("/{id}", h.deleteTask)
	return r
}

// listTasks обрабатывает GET /api/v1/tasks
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListTasks(r.Context(), appMiddleware.OwnerID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// createTask обрабатывает POST /api/v1/tasks
func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	ownerID := appMiddleware.OwnerID(r.Context())
	if ownerID == "" {
		h.writeServiceError(w, r, ErrUnauthorized)
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid body")
		return
	}

	created, err := h.svc.CreateTask(r.Context(), ownerID, req.Title)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// patchTask обрабатывает PATCH /api/v1/tasks/{id}
func (h *Handler) patchTask(w http.ResponseWriter, r *http.Request) {
	ownerID := appMiddleware.OwnerID(r.Context())
	if ownerID == "" {
		h.writeServiceError(w, r, ErrUnauthorized)
		return
	}

	req, err := decodePatch(r.Body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	updated, err := h.svc.PatchTask(r.Context(), ownerID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// decodePatch разбирает тело PATCH. Поле можно не присылать, но явный
// null или значение другого типа отклоняются. Проверяется сначала title.
func decodePatch(body io.Reader) (PatchTaskRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil || raw == nil {
		return PatchTaskRequest{}, &ValidationError{Message: msgInvalidBody}
	}

	var req PatchTaskRequest
	if v, ok := raw["title"]; ok {
		var title string
		if isJSONNull(v) || json.Unmarshal(v, &title) != nil {
			return PatchTaskRequest{}, &ValidationError{Message: msgTitleNotString}
		}
		req.Title = &title
	}
	if v, ok := raw["done"]; ok {
		var done bool
		if isJSONNull(v) || json.Unmarshal(v, &done) != nil {
			return PatchTaskRequest{}, &ValidationError{Message: msgDoneNotBool}
		}
		req.Done = &done
	}
	return req, nil
}

func isJSONNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

// deleteTask обрабатывает DELETE /api/v1/tasks/{id}
func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteTask(r.Context(), appMiddleware.OwnerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// clearCompleted обрабатывает DELETE /api/v1/tasks?done=true
//
// Другие варианты массового удаления не поддерживаются.
func (h *Handler) clearCompleted(w http.ResponseWriter, r *http.Request) {
	ownerID := appMiddleware.OwnerID(r.Context())
	if ownerID == "" {
		h.writeServiceError(w, r, ErrUnauthorized)
		return
	}
	if done, err := strconv.ParseBool(r.URL.Query().Get("done")); err != nil || !done {
		WriteError(w, http.StatusBadRequest, "unsupported delete")
		return
	}

	n, err := h.svc.ClearCompleted(r.Context(), ownerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true, Deleted: &n})
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Deleted *int64 `json:"deleted,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeServiceError переводит ошибки сервиса в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized")
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	case handleContextError(w, err):
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("task request failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleContextError обрабатывает отмену и таймаут запроса.
func handleContextError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		// Клиент ушёл или идёт graceful shutdown: отвечать уже некому.
		return true
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusRequestTimeout, "request timeout")
		return true
	default:
		return false
	}
}

// WriteError пишет {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeJSON рассчитывает на JSONHeaderMiddleware в роутере пакета.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
