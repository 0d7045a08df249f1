package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"taskboard/internal/tasks"
)

// API — серверные операции, которые нужны доске.
type API interface {
	List(ctx context.Context) ([]tasks.Task, error)
	Create(ctx context.Context, title string) (tasks.Task, error)
	Patch(ctx context.Context, id string, req tasks.PatchTaskRequest) (tasks.Task, error)
	Delete(ctx context.Context, id string) error
	ClearCompleted(ctx context.Context) error
}

// UndoPolicy определяет, что происходит с уже ожидающим удалением,
// когда пользователь удаляет ещё одну задачу.
type UndoPolicy int

const (
	// UndoSingleSlot: слот отмены один. Новое удаление останавливает таймер
	// предыдущего, и предыдущая задача не возвращается в список и не
	// удаляется на сервере.
	UndoSingleSlot UndoPolicy = iota
	// UndoQueue: у каждого удаления свой таймер и своя отмена.
	UndoQueue
)

const DefaultUndoDelay = 3 * time.Second

const (
	msgLoadFailed    = "Failed to load tasks"
	msgAddFailed     = "Add failed"
	msgUpdateFailed  = "Update failed"
	msgEditFailed    = "Edit failed"
	msgDeleteFailed  = "Delete failed"
	msgClearFailed   = "Clear done failed"
	msgEmptyTitle    = "Title cannot be empty"
	msgTitleRequired = "Title is required"
)

var msgTitleTooLong = fmt.Sprintf("Title too long (max %d)", tasks.TitleMaxLen)

// Options настраивают Controller. Нулевые значения заменяются дефолтами.
type Options struct {
	UndoDelay      time.Duration
	UndoPolicy     UndoPolicy
	RequestTimeout time.Duration
	Scheduler      Scheduler
	Logger         logrus.FieldLogger
}

// Controller — клиентская доска задач.
//
// Локальная коллекция меняется только под mu; на время сетевого запроса
// mu отпускается, а задачу держит busy-маркер.
type Controller struct {
	api            API
	sched          Scheduler
	log            logrus.FieldLogger
	undoDelay      time.Duration
	policy         UndoPolicy
	requestTimeout time.Duration

	mu      sync.Mutex
	tasks   []tasks.Task
	busy    map[string]bool
	bulk    bool
	adding  bool
	loading bool
	filter  Filter
	query   string
	edit    *editState
	pending []*pendingDelete
	message string
	// gen растёт при начале каждой мутации; Refresh сверяет его, чтобы
	// не применить ответ, полученный до мутации.
	gen uint64
}

type editState struct {
	id    string
	draft string
}

type pendingDelete struct {
	task  tasks.Task
	timer Timer
}

// txn — оптимистичная мутация в полёте. revert вызывается под mu.
type txn struct {
	op     string
	id     string
	revert func()
}

// New создаёт доску поверх API.
func New(api API, opts Options) *Controller {
	c := &Controller{
		api:            api,
		sched:          opts.Scheduler,
		log:            opts.Logger,
		undoDelay:      opts.UndoDelay,
		policy:         opts.UndoPolicy,
		requestTimeout: opts.RequestTimeout,
		tasks:          []tasks.Task{},
		busy:           make(map[string]bool),
		filter:         FilterAll,
	}
	if c.sched == nil {
		c.sched = realScheduler{}
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	if c.undoDelay <= 0 {
		c.undoDelay = DefaultUndoDelay
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = 10 * time.Second
	}
	return c
}

// Refresh заменяет локальный список ответом сервера целиком.
//
// Пока любая мутация в полёте, вызов игнорируется. Если мутация началась
// во время запроса, ответ отбрасывается. Задачи с ожидающим удалением в
// список не попадают. При ошибке текущий список сохраняется.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || c.bulk || len(c.busy) > 0 {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.message = ""
	gen := c.gen
	c.mu.Unlock()

	list, err := c.api.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.message = messageFor(err, msgLoadFailed)
		c.log.WithError(err).Warn("refresh failed")
		return err
	}
	if gen != c.gen || c.bulk || len(c.busy) > 0 {
		c.log.Debug("refresh result superseded by local mutation")
		return nil
	}

	fresh := make([]tasks.Task, 0, len(list))
	for _, t := range list {
		if !c.isPendingLocked(t.ID) {
			fresh = append(fresh, t)
		}
	}
	c.tasks = fresh
	return nil
}

// Add создаёт задачу. После успеха поиск и фильтр сбрасываются, чтобы
// новая задача была видна.
func (c *Controller) Add(ctx context.Context, title string) error {
	c.mu.Lock()
	if c.adding || c.bulk {
		c.mu.Unlock()
		return nil
	}
	clean, msg := validateDraft(title, msgTitleRequired)
	if msg != "" {
		c.message = msg
		c.mu.Unlock()
		return &tasks.ValidationError{Message: msg}
	}
	c.message = ""
	c.adding = true
	c.gen++
	c.mu.Unlock()

	created, err := c.api.Create(ctx, clean)

	c.mu.Lock()
	c.adding = false
	if err != nil {
		c.message = messageFor(err, msgAddFailed)
		c.mu.Unlock()
		c.log.WithError(err).Warn("add failed")
		return err
	}
	c.query = ""
	c.filter = FilterAll
	if c.indexLocked(created.ID) < 0 {
		c.tasks = append([]tasks.Task{created}, c.tasks...)
	}
	c.mu.Unlock()

	// Ошибка обновления уже лежит в Message; сама задача создана.
	_ = c.Refresh(ctx)
	return nil
}

// Toggle переключает Done оптимистично.
func (c *Controller) Toggle(ctx context.Context, id string) error {
	c.mu.Lock()
	if !c.acquireLocked(id) {
		c.mu.Unlock()
		return nil
	}
	var next bool
	tx, ok := c.beginLocked("toggle", id, func(t *tasks.Task) func(*tasks.Task) {
		prev := t.Done
		t.Done = !prev
		next = t.Done
		return func(t *tasks.Task) { t.Done = prev }
	})
	if !ok {
		c.releaseLocked(id)
		c.mu.Unlock()
		return nil
	}
	c.message = ""
	c.mu.Unlock()

	updated, err := c.api.Patch(ctx, id, tasks.PatchTaskRequest{Done: &next})
	c.finish(tx, updated, err, msgUpdateFailed)
	return err
}

// StartEdit открывает редактирование заголовка. Черновик берётся из текущего заголовка.
func (c *Controller) StartEdit(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bulk || c.busy[id] {
		return false
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		return false
	}
	c.edit = &editState{id: id, draft: c.tasks[idx].Title}
	return true
}

// SetDraft меняет черновик открытого редактирования.
func (c *Controller) SetDraft(draft string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit != nil {
		c.edit.draft = draft
	}
}

// CancelEdit закрывает редактирование без сохранения.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = nil
}

// Editing возвращает открытое редактирование.
func (c *Controller) Editing() (id, draft string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return "", "", false
	}
	return c.edit.id, c.edit.draft, true
}

// SaveEdit сохраняет черновик.
//
// Пустой черновик отклоняется локально. Черновик, равный текущему
// заголовку, закрывает редактирование без запроса. При ошибке заголовок
// откатывается, а редактирование остаётся открытым.
func (c *Controller) SaveEdit(ctx context.Context) error {
	c.mu.Lock()
	if c.edit == nil {
		c.mu.Unlock()
		return nil
	}
	id := c.edit.id
	next, msg := validateDraft(c.edit.draft, msgEmptyTitle)
	if msg != "" {
		c.message = msg
		c.mu.Unlock()
		return &tasks.ValidationError{Message: msg}
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		c.edit = nil
		c.mu.Unlock()
		return nil
	}
	if next == strings.TrimSpace(c.tasks[idx].Title) {
		c.edit = nil
		c.mu.Unlock()
		return nil
	}
	if !c.acquireLocked(id) {
		c.mu.Unlock()
		return nil
	}
	tx, _ := c.beginLocked("edit", id, func(t *tasks.Task) func(*tasks.Task) {
		prev := t.Title
		t.Title = next
		return func(t *tasks.Task) { t.Title = prev }
	})
	c.message = ""
	c.mu.Unlock()

	updated, err := c.api.Patch(ctx, id, tasks.PatchTaskRequest{Title: &next})
	c.finish(tx, updated, err, msgEditFailed)
	if err == nil {
		c.mu.Lock()
		if c.edit != nil && c.edit.id == id {
			c.edit = nil
		}
		c.mu.Unlock()
	}
	return err
}

// Delete убирает задачу из списка и откладывает запрос на UndoDelay.
func (c *Controller) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bulk || c.busy[id] {
		return false
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		return false
	}
	task := c.tasks[idx]
	c.tasks = append(c.tasks[:idx:idx], c.tasks[idx+1:]...)
	c.message = ""
	if c.edit != nil && c.edit.id == id {
		c.edit = nil
	}

	if c.policy == UndoSingleSlot {
		for _, prev := range c.pending {
			prev.timer.Stop()
			c.log.WithField("task_id", prev.task.ID).Debug("pending delete superseded")
		}
		c.pending = nil
	}

	p := &pendingDelete{task: task}
	p.timer = c.sched.AfterFunc(c.undoDelay, func() { c.fire(p) })
	c.pending = append(c.pending, p)
	return true
}

// Undo отменяет последнее ожидающее удаление и возвращает задачу в начало списка.
func (c *Controller) Undo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return false
	}
	return c.undoLocked(c.pending[len(c.pending)-1])
}

// UndoTask отменяет ожидающее удаление конкретной задачи.
func (c *Controller) UndoTask(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pending {
		if p.task.ID == id {
			return c.undoLocked(p)
		}
	}
	return false
}

func (c *Controller) undoLocked(p *pendingDelete) bool {
	if !c.removePendingLocked(p) {
		return false
	}
	p.timer.Stop()
	c.tasks = append([]tasks.Task{p.task}, c.tasks...)
	c.message = ""
	return true
}

// Pending возвращает задачи, ожидающие удаления (для баннера Undo).
func (c *Controller) Pending() []tasks.Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]tasks.Task, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p.task)
	}
	return out
}

// Flush немедленно отправляет все ожидающие удаления.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	for _, p := range batch {
		p.timer.Stop()
		c.busy[p.task.ID] = true
	}
	if len(batch) > 0 {
		c.gen++
	}
	c.mu.Unlock()

	var errs []error
	for _, p := range batch {
		if err := c.runDelete(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fire вызывается таймером. Если удаление уже отменено или вытеснено,
// ничего не делает.
func (c *Controller) fire(p *pendingDelete) {
	c.mu.Lock()
	if !c.removePendingLocked(p) {
		c.mu.Unlock()
		return
	}
	c.busy[p.task.ID] = true
	c.gen++
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()
	_ = c.runDelete(ctx, p)
}

func (c *Controller) runDelete(ctx context.Context, p *pendingDelete) error {
	err := c.api.Delete(ctx, p.task.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, p.task.ID)
	if err != nil {
		if c.indexLocked(p.task.ID) < 0 {
			c.tasks = append([]tasks.Task{p.task}, c.tasks...)
		}
		c.message = messageFor(err, msgDeleteFailed)
		c.log.WithError(err).WithField("task_id", p.task.ID).Warn("delete failed, task restored")
		return err
	}
	return nil
}

// ClearCompleted удаляет все выполненные задачи после подтверждения.
//
// confirm получает число выполненных задач; без true запрос не уходит.
// При ошибке список целиком возвращается к снимку.
func (c *Controller) ClearCompleted(ctx context.Context, confirm func(doneCount int) bool) error {
	c.mu.Lock()
	if c.bulk || len(c.busy) > 0 {
		c.mu.Unlock()
		return nil
	}
	doneCount := countStats(c.tasks).Done
	c.mu.Unlock()

	if doneCount == 0 || confirm == nil || !confirm(doneCount) {
		return nil
	}

	c.mu.Lock()
	// Пока ждали подтверждения, могла начаться другая операция.
	if c.bulk || len(c.busy) > 0 {
		c.mu.Unlock()
		return nil
	}
	c.bulk = true
	c.gen++
	c.message = ""
	snapshot := append([]tasks.Task(nil), c.tasks...)
	tx := &txn{op: "clear", revert: func() { c.tasks = snapshot }}

	kept := make([]tasks.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if !t.Done {
			kept = append(kept, t)
		}
	}
	c.tasks = kept
	c.mu.Unlock()

	err := c.api.ClearCompleted(ctx)
	c.finish(tx, tasks.Task{}, err, msgClearFailed)
	return err
}

// SetFilter меняет вкладку.
func (c *Controller) SetFilter(f Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// SetQuery меняет строку поиска.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
}

// View возвращает отфильтрованный и отсортированный для показа список.
func (c *Controller) View() []tasks.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deriveView(c.tasks, c.filter, c.query)
}

// Tasks возвращает копию локального списка в исходном порядке.
func (c *Controller) Tasks() []tasks.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tasks.Task(nil), c.tasks...)
}

// Stats считает задачи по всему списку, без учёта фильтра.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return countStats(c.tasks)
}

// Message — последняя ошибка для показа пользователю, "" если её нет.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Busy сообщает, занята ли задача (или идёт массовая операция).
func (c *Controller) Busy(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulk || c.busy[id]
}

func (c *Controller) acquireLocked(id string) bool {
	if c.bulk || c.busy[id] {
		return false
	}
	c.busy[id] = true
	c.gen++
	return true
}

func (c *Controller) releaseLocked(id string) {
	delete(c.busy, id)
}

// beginLocked применяет mutate к задаче id и возвращает txn с откатом.
func (c *Controller) beginLocked(op, id string, mutate func(*tasks.Task) func(*tasks.Task)) (*txn, bool) {
	idx := c.indexLocked(id)
	if idx < 0 {
		return nil, false
	}
	undo := mutate(&c.tasks[idx])
	return &txn{
		op: op,
		id: id,
		revert: func() {
			if i := c.indexLocked(id); i >= 0 {
				undo(&c.tasks[i])
			}
		},
	}, true
}

// finish завершает txn: освобождает слот, при ошибке откатывает и
// выставляет сообщение, при успехе подхватывает запись сервера.
func (c *Controller) finish(tx *txn, updated tasks.Task, err error, fallback string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tx.id == "" {
		c.bulk = false
	} else {
		c.releaseLocked(tx.id)
	}

	if err != nil {
		tx.revert()
		c.message = messageFor(err, fallback)
		c.log.WithError(err).WithFields(logrus.Fields{
			"op":      tx.op,
			"task_id": tx.id,
		}).Warn("mutation failed, local state reverted")
		return
	}
	if updated.ID != "" {
		if i := c.indexLocked(updated.ID); i >= 0 {
			c.tasks[i] = updated
		}
	}
}

func (c *Controller) indexLocked(id string) int {
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) isPendingLocked(id string) bool {
	for _, p := range c.pending {
		if p.task.ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) removePendingLocked(p *pendingDelete) bool {
	for i, q := range c.pending {
		if q == p {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// validateDraft обрезает пробелы и проверяет длину до запроса.
func validateDraft(raw, emptyMsg string) (string, string) {
	title := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(title)
	switch {
	case n < tasks.TitleMinLen:
		return "", emptyMsg
	case n > tasks.TitleMaxLen:
		return "", msgTitleTooLong
	}
	return title, ""
}

func messageFor(err error, fallback string) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}
