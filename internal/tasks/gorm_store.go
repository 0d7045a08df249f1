package tasks

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GormStore — хранилище задач поверх gorm (SQLite в проде и в тестах).
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore создаёт хранилище и мигрирует таблицу tasks.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Task{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tasks: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Task{}).Where("owner_id = ?", f.OwnerID)
	if f.ID != "" {
		q = q.Where("id = ?", f.ID)
	}
	if f.Done != nil {
		q = q.Where("done = ?", *f.Done)
	}
	return q
}

// Query возвращает задачи владельца, подходящие под фильтр.
func (s *GormStore) Query(ctx context.Context, f Filter) ([]Task, error) {
	if err := checkScope(f); err != nil {
		return nil, err
	}

	var out []Task
	if err := s.scoped(ctx, f).Order("updated_at DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	return out, nil
}

// Insert сохраняет новую задачу.
func (s *GormStore) Insert(ctx context.Context, t Task) (Task, error) {
	if t.OwnerID == "" {
		return Task{}, ErrUnscopedFilter
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// UpdateWhere обновляет только переданные поля. owner_id не пишется никогда.
func (s *GormStore) UpdateWhere(ctx context.Context, f Filter, c Changes) (int64, error) {
	if err := checkScope(f); err != nil {
		return 0, err
	}

	values := map[string]any{"updated_at": c.UpdatedAt}
	if c.Title != nil {
		values["title"] = *c.Title
	}
	if c.Done != nil {
		values["done"] = *c.Done
	}

	result := s.scoped(ctx, f).Updates(values)
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to update tasks: %w", err)
	}
	return result.RowsAffected, nil
}

// DeleteWhere удаляет строки физически: мягкого удаления нет.
func (s *GormStore) DeleteWhere(ctx context.Context, f Filter) (int64, error) {
	if err := checkScope(f); err != nil {
		return 0, err
	}

	result := s.scoped(ctx, f).Delete(&Task{})
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return result.RowsAffected, nil
}
