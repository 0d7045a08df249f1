package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/tasks"
)

// fakeAPI держит задачи в памяти и считает вызовы.
// gate, если задан, блокирует все вызовы до закрытия; gates блокирует
// только указанные операции.
type fakeAPI struct {
	mu      sync.Mutex
	tasks   []tasks.Task
	calls   map[string]int
	failOn  map[string]error
	gate    chan struct{}
	gates   map[string]chan struct{}
	entered chan string
}

func newFakeAPI(ts ...tasks.Task) *fakeAPI {
	return &fakeAPI{
		tasks:  append([]tasks.Task(nil), ts...),
		calls:  make(map[string]int),
		failOn: make(map[string]error),
	}
}

func (f *fakeAPI) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	err := f.failOn[op]
	gate, entered := f.gate, f.entered
	if g, ok := f.gates[op]; ok {
		gate = g
	}
	f.mu.Unlock()

	if entered != nil {
		entered <- op
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op] = err
}

func (f *fakeAPI) List(ctx context.Context) ([]tasks.Task, error) {
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tasks.Task(nil), f.tasks...), nil
}

func (f *fakeAPI) Create(ctx context.Context, title string) (tasks.Task, error) {
	if err := f.enter("create"); err != nil {
		return tasks.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := tasks.Task{ID: "new-" + title, Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.tasks = append([]tasks.Task{t}, f.tasks...)
	return t, nil
}

func (f *fakeAPI) Patch(ctx context.Context, id string, req tasks.PatchTaskRequest) (tasks.Task, error) {
	if err := f.enter("patch"); err != nil {
		return tasks.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			if req.Title != nil {
				f.tasks[i].Title = *req.Title
			}
			if req.Done != nil {
				f.tasks[i].Done = *req.Done
			}
			f.tasks[i].UpdatedAt = f.tasks[i].UpdatedAt.Add(time.Second)
			return f.tasks[i], nil
		}
	}
	return tasks.Task{}, errors.New("not found")
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeAPI) ClearCompleted(ctx context.Context) error {
	if err := f.enter("clear"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.tasks[:0]
	for _, t := range f.tasks {
		if !t.Done {
			kept = append(kept, t)
		}
	}
	f.tasks = kept
	return nil
}

// manualScheduler срабатывает только по Fire.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

// FireAll запускает все не остановленные таймеры.
func (s *manualScheduler) FireAll() {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

var base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func task(id, title string, done bool, created, updated int) tasks.Task {
	return tasks.Task{
		ID:        id,
		OwnerID:   "owner",
		Title:     title,
		Done:      done,
		CreatedAt: base.Add(time.Duration(created) * time.Minute),
		UpdatedAt: base.Add(time.Duration(updated) * time.Minute),
	}
}

func setup(t *testing.T, policy UndoPolicy, ts ...tasks.Task) (*Controller, *fakeAPI, *manualScheduler) {
	t.Helper()

	api := newFakeAPI(ts...)
	sched := &manualScheduler{}
	c := New(api, Options{Scheduler: sched, UndoPolicy: policy})
	require.NoError(t, c.Refresh(context.Background()))
	return c, api, sched
}

func ids(ts []tasks.Task) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func find(t *testing.T, c *Controller, id string) tasks.Task {
	t.Helper()
	for _, x := range c.Tasks() {
		if x.ID == id {
			return x
		}
	}
	t.Fatalf("task %s not in local view", id)
	return tasks.Task{}
}

func TestRefresh_ReplacesCollection(t *testing.T) {
	c, api, _ := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1))
	assert.Equal(t, []string{"a"}, ids(c.Tasks()))

	api.mu.Lock()
	api.tasks = []tasks.Task{task("b", "B", false, 2, 2), task("c", "C", true, 3, 3)}
	api.mu.Unlock()

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"b", "c"}, ids(c.Tasks()))
}

func TestRefresh_FailureKeepsCollection(t *testing.T) {
	c, api, _ := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1))
	api.fail("list", errors.New("boom"))

	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, ids(c.Tasks()))
	assert.Equal(t, "boom", c.Message())
}

func TestToggle_Optimistic(t *testing.T) {
	c, api, _ := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1))

	require.NoError(t, c.Toggle(context.Background(), "a"))

	got := find(t, c, "a")
	assert.True(t, got.Done)
	assert.Equal(t, 1, api.count("patch"))
	assert.Empty(t, c.Message())
	assert.False(t, c.Busy("a"))
}

func TestToggle_FailureReverts(t *testing.T) {
	c, api, _ := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1))
	api.fail("patch", errors.New("server down"))

	err := c.Toggle(context.Background(), "a")
	require.Error(t, err)

	assert.False(t, find(t, c, "a").Done)
	assert.Equal(t, "server down", c.Message())
	assert.False(t, c.Busy("a"))
}

func TestToggle_ReentrantCallIgnored(t *testing.T) {
	c, api, _ := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1))

	api.gate = make(chan struct{})
	api.entered = make(chan string, 1)

	done := make(chan error, 1)
	go func() { done <- c.Toggle(context.Background(), "a") }()
	<-api.entered

	// Вторая попытка, пока первая в полёте.
	require.NoError(t, c.Toggle(context.Background(), "a"))
	assert.True(t, c.Busy("a"))
	assert.True(t, find(t, c, "a").Done, "second toggle must not flip back")

	// Редактирование и удаление той же задачи тоже игнорируются.
	assert.False(t, c.StartEdit("a"))
	assert.False(t, c.Delete("a"))

	close(api.gate)
	require.NoError(t, <-done)

	assert.Equal(t, 1, api.count("patch"))
	assert.True(t, find(t, c, "a").Done)
	assert.False(t, c.Busy("a"))
}

func TestToggle_OtherTaskNotBlocked(t *testing.T) {
	c, api, _ := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1), task("b", "B", false, 2, 2))

	api.gate = make(chan struct{})
	api.entered = make(chan string, 2)

	done := make(chan error, 2)
	go func() { done <- c.Toggle(context.Background(), "a") }()
	<-api.entered
	go func() { done <- c.Toggle(context.Background(), "b") }()
	<-api.entered

	close(api.gate)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, 2, api.count("patch"))
}

func TestSaveEdit(t *testing.T) {
	t.Run("success closes edit", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, task("a", "Buy milk", false, 1, 1))

		require.True(t, c.StartEdit("a"))
		c.SetDraft("  Buy oat milk ")
		require.NoError(t, c.SaveEdit(context.Background()))

		assert.Equal(t, "Buy oat milk", find(t, c, "a").Title)
		assert.Equal(t, 1, api.count("patch"))
		_, _, editing := c.Editing()
		assert.False(t, editing)
	})

	t.Run("unchanged draft makes no request", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, task("a", "Buy milk", false, 1, 1))

		require.True(t, c.StartEdit("a"))
		c.SetDraft(" Buy milk  ")
		require.NoError(t, c.SaveEdit(context.Background()))

		assert.Zero(t, api.count("patch"))
		_, _, editing := c.Editing()
		assert.False(t, editing)
	})

	t.Run("empty draft rejected locally", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, task("a", "Buy milk", false, 1, 1))

		require.True(t, c.StartEdit("a"))
		c.SetDraft("   ")
		err := c.SaveEdit(context.Background())

		assert.True(t, tasks.IsValidation(err))
		assert.Equal(t, "Title cannot be empty", c.Message())
		assert.Zero(t, api.count("patch"))
		_, _, editing := c.Editing()
		assert.True(t, editing)
	})

	t.Run("failure reverts title and keeps edit open", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, task("a", "Buy milk", false, 1, 1))
		api.fail("patch", errors.New("title too long"))

		require.True(t, c.StartEdit("a"))
		c.SetDraft("Buy oat milk")
		require.Error(t, c.SaveEdit(context.Background()))

		assert.Equal(t, "Buy milk", find(t, c, "a").Title)
		assert.Equal(t, "title too long", c.Message())
		id, draft, editing := c.Editing()
		assert.True(t, editing)
		assert.Equal(t, "a", id)
		assert.Equal(t, "Buy oat milk", draft)
	})
}

func TestDelete_UndoBeforeTimer(t *testing.T) {
	orig := task("b", "B", true, 2, 5)
	c, api, sched := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1), orig)

	require.True(t, c.Delete("b"))
	assert.Equal(t, []string{"a"}, ids(c.Tasks()))

	require.True(t, c.Undo())
	sched.FireAll()

	assert.Zero(t, api.count("delete"))
	got := c.Tasks()
	require.Len(t, got, 2)
	assert.Equal(t, orig, got[0], "restored at the front with original fields")
	assert.Empty(t, c.Pending())
}

func TestDelete_TimerFiresAndCommits(t *testing.T) {
	c, api, sched := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1))

	require.True(t, c.Delete("a"))
	assert.Zero(t, api.count("delete"))

	sched.FireAll()

	assert.Equal(t, 1, api.count("delete"))
	assert.Empty(t, c.Tasks())
	assert.Empty(t, c.Message())
	assert.False(t, c.Undo(), "nothing left to undo")
}

func TestDelete_FailureReinstates(t *testing.T) {
	c, api, sched := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1), task("b", "B", false, 2, 2))
	api.fail("delete", errors.New("not found"))

	require.True(t, c.Delete("b"))
	sched.FireAll()

	assert.Equal(t, []string{"b", "a"}, ids(c.Tasks()))
	assert.Equal(t, "not found", c.Message())
	assert.False(t, c.Busy("b"))
}

func TestDelete_SingleSlotAbandonsPrevious(t *testing.T) {
	c, api, sched := setup(t, UndoSingleSlot,
		task("a", "A", false, 1, 1), task("b", "B", false, 2, 2), task("c", "C", false, 3, 3))

	require.True(t, c.Delete("a"))
	require.True(t, c.Delete("b"))

	// a пропал из списка и больше не ожидает удаления.
	assert.Equal(t, []string{"c"}, ids(c.Tasks()))
	assert.Equal(t, []string{"b"}, ids(c.Pending()))

	require.True(t, c.Undo())
	assert.Equal(t, []string{"b", "c"}, ids(c.Tasks()))

	sched.FireAll()
	assert.Zero(t, api.count("delete"), "abandoned delete never reaches the server")
}

func TestDelete_QueueKeepsIndependentUndo(t *testing.T) {
	c, api, sched := setup(t, UndoQueue,
		task("a", "A", false, 1, 1), task("b", "B", false, 2, 2), task("c", "C", false, 3, 3))

	require.True(t, c.Delete("a"))
	require.True(t, c.Delete("b"))
	assert.Equal(t, []string{"a", "b"}, ids(c.Pending()))

	require.True(t, c.UndoTask("a"))
	sched.FireAll()

	assert.Equal(t, 1, api.count("delete"))
	assert.Equal(t, []string{"a", "c"}, ids(c.Tasks()))
}

func TestFlush_CommitsPending(t *testing.T) {
	c, api, sched := setup(t, UndoQueue, task("a", "A", false, 1, 1), task("b", "B", false, 2, 2))

	require.True(t, c.Delete("a"))
	require.True(t, c.Delete("b"))
	require.NoError(t, c.Flush(context.Background()))

	assert.Equal(t, 2, api.count("delete"))
	sched.FireAll()
	assert.Equal(t, 2, api.count("delete"), "stopped timers do not fire again")
}

func TestRefresh_HidesPendingDeletes(t *testing.T) {
	c, _, _ := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1), task("b", "B", false, 2, 2))

	require.True(t, c.Delete("a"))
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, []string{"b"}, ids(c.Tasks()))
}

func TestClearCompleted(t *testing.T) {
	seed := []tasks.Task{
		task("a", "A", true, 1, 1),
		task("b", "B", false, 2, 2),
		task("c", "C", true, 3, 3),
	}

	t.Run("requires confirmation", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, seed...)

		var asked int
		require.NoError(t, c.ClearCompleted(context.Background(), func(n int) bool {
			asked = n
			return false
		}))

		assert.Equal(t, 2, asked)
		assert.Zero(t, api.count("clear"))
		assert.Len(t, c.Tasks(), 3)
	})

	t.Run("removes exactly the done tasks", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, seed...)

		require.NoError(t, c.ClearCompleted(context.Background(), func(int) bool { return true }))

		assert.Equal(t, 1, api.count("clear"))
		assert.Equal(t, []string{"b"}, ids(c.Tasks()))
	})

	t.Run("failure restores snapshot", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, seed...)
		api.fail("clear", errors.New("db locked"))

		err := c.ClearCompleted(context.Background(), func(int) bool { return true })
		require.Error(t, err)

		assert.Equal(t, []string{"a", "b", "c"}, ids(c.Tasks()))
		assert.Equal(t, "db locked", c.Message())
	})

	t.Run("nothing done skips confirmation", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, task("b", "B", false, 2, 2))

		require.NoError(t, c.ClearCompleted(context.Background(), func(int) bool {
			t.Fatal("confirm must not be called")
			return true
		}))
		assert.Zero(t, api.count("clear"))
	})
}

func TestClearCompleted_BlocksPerTaskMutations(t *testing.T) {
	c, api, _ := setup(t, UndoSingleSlot, task("a", "A", true, 1, 1), task("b", "B", false, 2, 2))

	api.gate = make(chan struct{})
	api.entered = make(chan string, 1)

	done := make(chan error, 1)
	go func() {
		done <- c.ClearCompleted(context.Background(), func(int) bool { return true })
	}()
	<-api.entered

	require.NoError(t, c.Toggle(context.Background(), "b"))
	assert.False(t, c.Delete("b"))
	assert.False(t, c.StartEdit("b"))
	assert.True(t, c.Busy("b"))

	close(api.gate)
	require.NoError(t, <-done)
	assert.Zero(t, api.count("patch"))
	assert.False(t, find(t, c, "b").Done)
}

func TestAdd(t *testing.T) {
	t.Run("validates locally", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot)

		err := c.Add(context.Background(), "   ")
		assert.True(t, tasks.IsValidation(err))
		assert.Equal(t, "Title is required", c.Message())

		long := make([]rune, tasks.TitleMaxLen+1)
		for i := range long {
			long[i] = 'я'
		}
		err = c.Add(context.Background(), string(long))
		assert.True(t, tasks.IsValidation(err))
		assert.Equal(t, "Title too long (max 120)", c.Message())
		assert.Zero(t, api.count("create"))
	})

	t.Run("resets search and filter", func(t *testing.T) {
		c, api, _ := setup(t, UndoSingleSlot, task("a", "A", true, 1, 1))
		c.SetFilter(FilterDone)
		c.SetQuery("zzz")

		require.NoError(t, c.Add(context.Background(), "  Buy milk "))

		assert.Equal(t, 1, api.count("create"))
		view := c.View()
		require.Len(t, view, 2)
		assert.Equal(t, "Buy milk", view[0].Title)
		assert.False(t, view[0].Done)
	})
}

func TestStats(t *testing.T) {
	c, _, _ := setup(t, UndoSingleSlot,
		task("a", "A", true, 1, 1), task("b", "B", false, 2, 2), task("c", "C", false, 3, 3))

	assert.Equal(t, Stats{Total: 3, Active: 2, Done: 1}, c.Stats())
}

func TestRefresh_DroppedWhenDeleteFiresDuringFetch(t *testing.T) {
	for _, tc := range []struct {
		name    string
		failure error
		want    []string
	}{
		{"delete fails", errors.New("server down"), []string{"a", "b"}},
		{"delete succeeds", nil, []string{"b"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, api, sched := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1), task("b", "B", false, 2, 2))
			if tc.failure != nil {
				api.fail("delete", tc.failure)
			}

			listGate, deleteGate := make(chan struct{}), make(chan struct{})
			api.gates = map[string]chan struct{}{"list": listGate, "delete": deleteGate}
			api.entered = make(chan string, 2)

			require.True(t, c.Delete("a"))

			refreshed := make(chan error, 1)
			go func() { refreshed <- c.Refresh(context.Background()) }()
			require.Equal(t, "list", <-api.entered)

			fired := make(chan struct{})
			go func() { sched.FireAll(); close(fired) }()
			require.Equal(t, "delete", <-api.entered)

			// Ответ List ещё содержит "a", но удаление уже в полёте.
			close(listGate)
			require.NoError(t, <-refreshed)
			assert.Equal(t, []string{"b"}, ids(c.Tasks()))

			close(deleteGate)
			<-fired
			assert.Equal(t, tc.want, ids(c.Tasks()))
		})
	}
}

func TestRefresh_DroppedWhenToggleStartsDuringFetch(t *testing.T) {
	c, api, _ := setup(t, UndoSingleSlot, task("a", "A", false, 1, 1))

	listGate, patchGate := make(chan struct{}), make(chan struct{})
	api.gates = map[string]chan struct{}{"list": listGate, "patch": patchGate}
	api.entered = make(chan string, 2)

	refreshed := make(chan error, 1)
	go func() { refreshed <- c.Refresh(context.Background()) }()
	require.Equal(t, "list", <-api.entered)

	toggled := make(chan error, 1)
	go func() { toggled <- c.Toggle(context.Background(), "a") }()
	require.Equal(t, "patch", <-api.entered)

	close(listGate)
	require.NoError(t, <-refreshed)
	assert.True(t, find(t, c, "a").Done, "optimistic toggle must survive a stale list")

	close(patchGate)
	require.NoError(t, <-toggled)
	assert.True(t, find(t, c, "a").Done)
}
