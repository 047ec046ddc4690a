package app

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchedulerRunsDueTasksInOrder(t *testing.T) {
	s := NewScheduler()
	var log []string
	s.Every("reorder", 2, 2, func(context.Context) { log = append(log, "reorder") })
	s.Every("watchdog", 3, 1, func(context.Context) { log = append(log, "watchdog") })

	for tick := int64(1); tick <= 6; tick++ {
		s.Advance(context.Background(), tick)
	}

	// watchdog: 1, 4; reorder: 2, 4, 6
	want := []string{"watchdog", "reorder", "reorder", "watchdog", "reorder"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	runs := 0
	task := s.Every("reorder", 1, 1, func(context.Context) { runs++ })

	s.Advance(context.Background(), 1)
	task.Cancel()
	s.Advance(context.Background(), 2)

	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
	if s.Active() != 0 {
		t.Fatalf("active = %d, want 0", s.Active())
	}
	if !task.Cancelled() {
		t.Fatal("task not marked cancelled")
	}

	var nilTask *Task
	nilTask.Cancel()
}

func TestSchedulerCancelAll(t *testing.T) {
	s := NewScheduler()
	runs := 0
	s.Every("a", 1, 1, func(context.Context) { runs++ })
	s.Every("b", 1, 1, func(context.Context) { runs++ })
	s.CancelAll()
	s.Advance(context.Background(), 10)

	if runs != 0 || s.Active() != 0 {
		t.Fatalf("runs = %d active = %d, want 0 and 0", runs, s.Active())
	}
}

func TestSchedulerTaskCancelledByEarlierTask(t *testing.T) {
	s := NewScheduler()
	var second *Task
	ran := false
	s.Every("first", 1, 1, func(context.Context) { second.Cancel() })
	second = s.Every("second", 1, 1, func(context.Context) { ran = true })

	s.Advance(context.Background(), 1)
	if ran {
		t.Fatal("task ran after being cancelled in the same tick")
	}
}
