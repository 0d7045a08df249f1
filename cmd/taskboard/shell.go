package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"taskboard/internal/board"
	"taskboard/internal/tasks"
)

const shellHelp = `commands:
  ls                   show the board
  filter all|active|done
  find [text]          search titles, empty text clears
  add <title>
  toggle <n>
  edit <n> <title>
  rm <n>               delete with undo window
  undo [title]         undo the last delete, or the pending delete of title
  clear                delete all done tasks (asks y/N)
  refresh
  help
  quit`

// shell — построчный интерфейс к board.Controller.
// Номер задачи означает позицию в последнем выводе ls.
type shell struct {
	ctrl *board.Controller
	in   *bufio.Scanner
	out  io.Writer
	last []tasks.Task
}

func newShell(ctrl *board.Controller, in io.Reader, out io.Writer) *shell {
	return &shell{ctrl: ctrl, in: bufio.NewScanner(in), out: out}
}

// Run читает команды до quit или EOF. На выходе отложенные удаления
// отправляются сразу.
func (s *shell) Run(ctx context.Context) error {
	if err := s.ctrl.Refresh(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	s.render()

	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			break
		}
		if quit := s.exec(ctx, s.in.Text()); quit {
			break
		}
	}
	if err := s.in.Err(); err != nil {
		return err
	}
	return s.ctrl.Flush(ctx)
}

func (s *shell) exec(ctx context.Context, line string) (quit bool) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "":
		return false
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
		return false
	case "ls":
	case "refresh":
		_ = s.ctrl.Refresh(ctx)
	case "filter":
		f, ok := board.ParseFilter(rest)
		if !ok {
			fmt.Fprintln(s.out, "filter: want all, active or done")
			return false
		}
		s.ctrl.SetFilter(f)
	case "find":
		s.ctrl.SetQuery(rest)
	case "add":
		_ = s.ctrl.Add(ctx, rest)
	case "toggle":
		if t, ok := s.pick(rest); ok {
			_ = s.ctrl.Toggle(ctx, t.ID)
		}
	case "edit":
		num, title, _ := strings.Cut(rest, " ")
		t, ok := s.pick(num)
		if !ok {
			return false
		}
		if !s.ctrl.StartEdit(t.ID) {
			fmt.Fprintln(s.out, "task is busy")
			return false
		}
		s.ctrl.SetDraft(title)
		if err := s.ctrl.SaveEdit(ctx); err != nil {
			// Черновик остался открытым; в CLI повторять его некому.
			s.ctrl.CancelEdit()
		}
	case "rm":
		if t, ok := s.pick(rest); ok && !s.ctrl.Delete(t.ID) {
			fmt.Fprintln(s.out, "task is busy")
		}
	case "undo":
		s.undo(rest)
	case "clear":
		_ = s.ctrl.ClearCompleted(ctx, s.confirm)
	default:
		fmt.Fprintf(s.out, "unknown command %q, try help\n", cmd)
		return false
	}

	s.render()
	return false
}

func (s *shell) undo(arg string) {
	if arg == "" {
		if !s.ctrl.Undo() {
			fmt.Fprintln(s.out, "nothing to undo")
		}
		return
	}
	for _, p := range s.ctrl.Pending() {
		if p.ID == arg || strings.EqualFold(p.Title, arg) {
			s.ctrl.UndoTask(p.ID)
			return
		}
	}
	fmt.Fprintln(s.out, "nothing to undo")
}

// confirm спрашивает подтверждение в той же строке ввода.
func (s *shell) confirm(doneCount int) bool {
	fmt.Fprintf(s.out, "delete %d done task(s)? [y/N] ", doneCount)
	if !s.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
	return answer == "y" || answer == "yes"
}

func (s *shell) pick(arg string) (tasks.Task, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(s.last) {
		fmt.Fprintf(s.out, "no task %q, run ls\n", arg)
		return tasks.Task{}, false
	}
	return s.last[n-1], true
}

func (s *shell) render() {
	s.last = s.ctrl.View()
	st := s.ctrl.Stats()

	fmt.Fprintf(s.out, "%d total, %d active, %d done\n", st.Total, st.Active, st.Done)
	for i, t := range s.last {
		mark := " "
		if t.Done {
			mark = "x"
		}
		busy := ""
		if s.ctrl.Busy(t.ID) {
			busy = " …"
		}
		fmt.Fprintf(s.out, "%3d [%s] %s%s\n", i+1, mark, t.Title, busy)
	}
	if len(s.last) == 0 {
		fmt.Fprintln(s.out, "    (no tasks)")
	}
	for _, p := range s.ctrl.Pending() {
		fmt.Fprintf(s.out, "deleted %q, type undo to restore\n", p.Title)
	}
	if msg := s.ctrl.Message(); msg != "" {
		fmt.Fprintln(s.out, "error:", msg)
	}
}
