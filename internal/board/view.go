package board

import (
	"sort"
	"strings"

	"taskboard/internal/tasks"
)

// Filter — вкладка списка.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterActive Filter = "active"
	FilterDone   Filter = "done"
)

// ParseFilter разбирает имя вкладки. Для неизвестного имени ok=false.
func ParseFilter(s string) (Filter, bool) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterActive, FilterDone:
		return f, true
	default:
		return "", false
	}
}

// Stats — счётчики для шапки доски.
type Stats struct {
	Total  int
	Active int
	Done   int
}

// deriveView фильтрует и сортирует копию списка: невыполненные выше
// выполненных, внутри группы сначала недавно созданные.
// Порядок не зависит от порядка, в котором список отдал сервер.
func deriveView(all []tasks.Task, filter Filter, query string) []tasks.Task {
	text := strings.ToLower(strings.TrimSpace(query))

	out := make([]tasks.Task, 0, len(all))
	for _, t := range all {
		switch filter {
		case FilterActive:
			if t.Done {
				continue
			}
		case FilterDone:
			if !t.Done {
				continue
			}
		}
		if text != "" && !strings.Contains(strings.ToLower(t.Title), text) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Done != b.Done {
			return !a.Done
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out
}

func countStats(all []tasks.Task) Stats {
	s := Stats{Total: len(all)}
	for _, t := range all {
		if t.Done {
			s.Done++
		}
	}
	s.Active = s.Total - s.Done
	return s
}
