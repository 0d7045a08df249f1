package tasks

import "context"

// Store — хранилище задач.
//
// Все методы принимают Filter, в котором OwnerID обязателен: так один
// пользователь не может прочитать или изменить чужую строку даже по
// угаданному ID.
type Store interface {
	Query(ctx context.Context, f Filter) ([]Task, error)
	Insert(ctx context.Context, t Task) (Task, error)
	UpdateWhere(ctx context.Context, f Filter, c Changes) (int64, error)
	DeleteWhere(ctx context.Context, f Filter) (int64, error)
}

func checkScope(f Filter) error {
	if f.OwnerID == "" {
		return ErrUnscopedFilter
	}
	return nil
}
