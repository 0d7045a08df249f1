package tasks

import "time"

// Task — модель задачи.
//
// OwnerID выставляется один раз при создании из аутентифицированного
// пользователя и больше никогда не меняется.
type Task struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	OwnerID   string    `json:"ownerId" gorm:"index;not null;size:36"`
	Title     string    `json:"title" gorm:"size:480;not null"`
	Done      bool      `json:"done" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName возвращает имя таблицы для gorm.
func (Task) TableName() string {
	return "tasks"
}

// CreateTaskRequest описывает контракт входящего JSON для создания задачи.
// Title валидируется после обрезки пробелов, см. ValidateTitle.
type CreateTaskRequest struct {
	Title string `json:"title"`
}

// PatchTaskRequest — частичное обновление: nil означает "поле не прислали".
// Явный null в JSON отклоняет обработчик, см. decodePatch.
type PatchTaskRequest struct {
	Title *string `json:"title,omitempty"`
	Done  *bool   `json:"done,omitempty"`
}

// Filter — условие выборки для Store.
// OwnerID обязателен всегда: хранилище не принимает фильтр только по ID.
type Filter struct {
	ID      string
	OwnerID string
	Done    *bool
}

// Changes — набор полей для UpdateWhere. UpdatedAt пишется всегда.
type Changes struct {
	Title     *string
	Done      *bool
	UpdatedAt time.Time
}

// Match проверяет, подходит ли задача под фильтр.
func (f Filter) Match(t Task) bool {
	if t.OwnerID != f.OwnerID {
		return false
	}
	if f.ID != "" && t.ID != f.ID {
		return false
	}
	if f.Done != nil && t.Done != *f.Done {
		return false
	}
	return true
}

// Apply применяет изменения к копии задачи.
func (c Changes) Apply(t Task) Task {
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Done != nil {
		t.Done = *c.Done
	}
	t.UpdatedAt = c.UpdatedAt
	return t
}
