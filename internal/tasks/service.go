package tasks

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Service — слой бизнес-логики: handler -> service -> store.
//
// Владелец передаётся явным аргументом в каждый метод. Пустой ownerID
// означает, что запрос не аутентифицирован, и превращается в
// ErrUnauthorized до любого обращения к хранилищу.
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени (нужно в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор ID.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService создаёт сервис поверх хранилища.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTasks возвращает задачи владельца: сначала недавно изменённые,
// при равенстве недавно созданные.
func (s *Service) ListTasks(ctx context.Context, ownerID string) ([]Task, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tasks, err := s.store.Query(ctx, Filter{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	SortByRecency(tasks)
	return tasks, nil
}

// CreateTask валидирует заголовок и создаёт задачу с Done=false.
func (s *Service) CreateTask(ctx context.Context, ownerID, title string) (Task, error) {
	if ownerID == "" {
		return Task{}, ErrUnauthorized
	}
	clean, err := ValidateTitle(title)
	if err != nil {
		return Task{}, err
	}
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	now := s.now()
	return s.store.Insert(ctx, Task{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Title:     clean,
		Done:      false,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// PatchTask обновляет только присланные поля задачи владельца.
func (s *Service) PatchTask(ctx context.Context, ownerID, id string, req PatchTaskRequest) (Task, error) {
	if ownerID == "" {
		return Task{}, ErrUnauthorized
	}
	req, err := normalizePatch(req)
	if err != nil {
		return Task{}, err
	}
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	scope := Filter{ID: id, OwnerID: ownerID}
	n, err := s.store.UpdateWhere(ctx, scope, Changes{
		Title:     req.Title,
		Done:      req.Done,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Task{}, err
	}
	if n == 0 {
		return Task{}, ErrNotFound
	}

	found, err := s.store.Query(ctx, scope)
	if err != nil {
		return Task{}, err
	}
	if len(found) == 0 {
		// Задачу удалили между UPDATE и SELECT.
		return Task{}, ErrNotFound
	}
	return found[0], nil
}

// DeleteTask удаляет задачу владельца по ID.
func (s *Service) DeleteTask(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := s.store.DeleteWhere(ctx, Filter{ID: id, OwnerID: ownerID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCompleted удаляет все выполненные задачи владельца.
// Ноль удалённых строк не считается ошибкой.
func (s *Service) ClearCompleted(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	done := true
	return s.store.DeleteWhere(ctx, Filter{OwnerID: ownerID, Done: &done})
}

// SortByRecency сортирует по UpdatedAt desc, затем CreatedAt desc.
func SortByRecency(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
