package app

import "context"

// Task is a periodic job registered with a Scheduler.
type Task struct {
	name      string
	every     int64
	next      int64
	run       func(ctx context.Context)
	cancelled bool
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Every returns the period in ticks.
func (t *Task) Every() int64 { return t.every }

// Cancel stops the task. A cancelled task never runs again.
func (t *Task) Cancel() {
	if t != nil {
		t.cancelled = true
	}
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool { return t == nil || t.cancelled }

// Scheduler runs tick-driven tasks on the match loop. Due tasks run in the order
// they were registered; there is no concurrency.
type Scheduler struct {
	tick  int64
	tasks []*Task
}

// NewScheduler returns an empty scheduler at tick 0.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Tick returns the last tick passed to Advance.
func (s *Scheduler) Tick() int64 { return s.tick }

// Every registers run to fire every `every` ticks, the first time `delay` ticks
// from now. Both are clamped to at least one tick.
func (s *Scheduler) Every(name string, every, delay int64, run func(ctx context.Context)) *Task {
	t := &Task{
		name:  name,
		every: max(every, 1),
		next:  s.tick + max(delay, 1),
		run:   run,
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves the clock to tick and runs every task that is due.
func (s *Scheduler) Advance(ctx context.Context, tick int64) {
	if tick > s.tick {
		s.tick = tick
	}
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	s.tasks = live

	for _, t := range append([]*Task(nil), s.tasks...) {
		if t.cancelled || s.tick < t.next {
			continue
		}
		t.next = s.tick + t.every
		t.run(ctx)
	}
}

// CancelAll cancels and forgets every task.
func (s *Scheduler) CancelAll() {
	for _, t := range s.tasks {
		t.cancelled = true
	}
	s.tasks = nil
}

// Active returns the number of live tasks.
func (s *Scheduler) Active() int {
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}
