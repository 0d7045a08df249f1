package board

import "time"

// Timer — отменяемый отложенный вызов.
type Timer interface {
	// Stop возвращает false, если вызов уже произошёл или был отменён.
	Stop() bool
}

// Scheduler запускает f через d. Единственный источник событий,
// не инициированных пользователем.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
