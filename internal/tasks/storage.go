package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// FileStore хранит задачи в JSON-файле.
//
// Каждая операция читает файл целиком и, если что-то поменялось,
// записывает его обратно. Подходит для локального запуска и демо.
type FileStore struct {
	mu       sync.RWMutex
	filename string
}

var _ Store = (*FileStore)(nil)

// NewFileStore создаёт файловое хранилище задач.
func NewFileStore(filename string) *FileStore {
	return &FileStore{filename: filename}
}

// Query возвращает задачи, подходящие под фильтр.
func (fs *FileStore) Query(ctx context.Context, f Filter) ([]Task, error) {
	if err := checkScope(f); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	all, err := fs.load()
	if err != nil {
		return nil, err
	}

	out := make([]Task, 0, len(all))
	for _, t := range all {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Insert добавляет задачу. ID должен быть уже выставлен.
func (fs *FileStore) Insert(ctx context.Context, t Task) (Task, error) {
	if t.OwnerID == "" {
		return Task{}, ErrUnscopedFilter
	}
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	all, err := fs.load()
	if err != nil {
		return Task{}, err
	}
	for _, existing := range all {
		if existing.ID == t.ID {
			return Task{}, fmt.Errorf("task %s already exists", t.ID)
		}
	}

	if err := fs.save(append(all, t)); err != nil {
		return Task{}, err
	}
	return t, nil
}

// UpdateWhere применяет изменения ко всем подходящим задачам.
func (fs *FileStore) UpdateWhere(ctx context.Context, f Filter, c Changes) (int64, error) {
	if err := checkScope(f); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	all, err := fs.load()
	if err != nil {
		return 0, err
	}

	var n int64
	for i := range all {
		if f.Match(all[i]) {
			all[i] = c.Apply(all[i])
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := fs.save(all); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteWhere удаляет подходящие задачи и возвращает их количество.
func (fs *FileStore) DeleteWhere(ctx context.Context, f Filter) (int64, error) {
	if err := checkScope(f); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	all, err := fs.load()
	if err != nil {
		return 0, err
	}

	kept := make([]Task, 0, len(all))
	for _, t := range all {
		if !f.Match(t) {
			kept = append(kept, t)
		}
	}
	n := int64(len(all) - len(kept))
	if n == 0 {
		return 0, nil
	}
	if err := fs.save(kept); err != nil {
		return 0, err
	}
	return n, nil
}

// save вызывается под Lock.
func (fs *FileStore) save(tasks []Task) error {
	data, err := json.MarshalIndent(tasks, "", "   ")
	if err != nil {
		return err
	}
	return os.WriteFile(fs.filename, data, 0o644)
}

// load вызывается под RLock или Lock.
func (fs *FileStore) load() ([]Task, error) {
	data, err := os.ReadFile(fs.filename)
	if err != nil {
		if os.IsNotExist(err) {
			// Первый запуск: файла ещё нет.
			return []Task{}, nil
		}
		return nil, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return []Task{}, nil
	}

	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fs.filename, err)
	}
	return tasks, nil
}
