package rasterize

import (
	"log/slog"
	"sync"
	"time"
)

// schedule is the runner-owned state of one task, guarded by Runner.mu.
type schedule struct {
	queued  bool
	running bool
	again   bool
	timer   *time.Timer
}

// Runner drains a FIFO of tasks with a fixed pool of worker goroutines. A
// task is queued at most once; a request for a task that is running is
// remembered and served right after it finishes.
type Runner struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Task
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewRunner(workers int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{logger: logger}
	r.cond = sync.NewCond(&r.mu)
	workers = max(workers, 1)
	for i := range workers {
		r.wg.Add(1)
		go r.worker(i)
	}
	logger.Debug("raster runner started", "workers", workers)
	return r
}

// Request schedules t to run as soon as a worker is free.
func (r *Runner) Request(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestLocked(t)
}

func (r *Runner) requestLocked(t *Task) {
	if r.closed {
		return
	}
	s := &t.sched
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	switch {
	case s.running:
		s.again = true
	case s.queued:
	default:
		s.queued = true
		r.queue = append(r.queue, t)
		r.cond.Signal()
	}
}

// Cancel drops a pending timer and queue entry for t. A run in progress
// completes.
func (r *Runner) Cancel(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &t.sched
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.again = false
	if s.queued {
		s.queued = false
		for i, q := range r.queue {
			if q == t {
				r.queue = append(r.queue[:i], r.queue[i+1:]...)
				break
			}
		}
	}
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.closed {
			r.mu.Unlock()
			return
		}
		t := r.queue[0]
		r.queue = r.queue[1:]
		t.sched.queued = false
		t.sched.running = true
		r.mu.Unlock()

		next, continuous := t.run()

		r.mu.Lock()
		t.sched.running = false
		switch {
		case t.sched.again:
			t.sched.again = false
			r.requestLocked(t)
		case continuous && !r.closed:
			t.sched.timer = time.AfterFunc(next, func() { r.Request(t) })
		}
		r.mu.Unlock()
	}
}

// Close stops the workers after their current task and waits for them.
// Pending requests and timers are dropped.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, t := range r.queue {
		t.sched.queued = false
	}
	r.queue = nil
	r.cond.Broadcast()
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Debug("raster runner stopped")
}
