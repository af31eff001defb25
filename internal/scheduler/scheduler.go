// Package scheduler runs named tasks on cron schedules from one goroutine.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser supports standard 5-field cron expressions and descriptors like
// @hourly or @every 1m.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression and returns a Schedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// task is one scheduled unit of work in the heap.
type task struct {
	name     string
	schedule cron.Schedule
	run      func()
	nextRun  time.Time
}

// taskHeap is a min-heap of tasks ordered by nextRun (earliest first).
type taskHeap []task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].nextRun.Before(h[j].nextRun) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// Scheduler fires tasks when they fall due. Tasks run synchronously on the
// scheduler goroutine, so a slow task delays the ones behind it rather than
// overlapping with itself.
type Scheduler struct {
	mu       sync.Mutex
	heap     taskHeap
	timer    *time.Timer
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	reset    chan struct{}
	now      func() time.Time
}

// New creates an idle Scheduler.
func New() *Scheduler {
	return &Scheduler{
		done:  make(chan struct{}),
		reset: make(chan struct{}, 1),
		now:   time.Now,
	}
}

// AddTask schedules run under name, replacing any task with the same name.
func (s *Scheduler) AddTask(name string, schedule cron.Schedule, run func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(name)
	heap.Push(&s.heap, task{
		name:     name,
		schedule: schedule,
		run:      run,
		nextRun:  schedule.Next(s.now()),
	})
	s.resetTimerLocked()
}

// RemoveTask unschedules the named task.
func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.resetTimerLocked()
}

// removeLocked removes the task matching name. Caller must hold s.mu.
func (s *Scheduler) removeLocked(name string) {
	for i, t := range s.heap {
		if t.name == name {
			heap.Remove(&s.heap, i)
			return
		}
	}
}

// NextRunTime returns when the named task fires next.
func (s *Scheduler) NextRunTime(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.heap {
		if t.name == name {
			return t.nextRun, true
		}
	}
	return time.Time{}, false
}

// Start launches the scheduler goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.timer = time.NewTimer(time.Hour)
	s.timer.Stop()
	s.resetTimerLocked()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
}

// Stop signals the scheduler goroutine to exit and waits for the task in
// flight, if any. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			s.mu.Lock()
			s.timer.Stop()
			s.mu.Unlock()
			return
		case <-s.reset:
			continue
		case <-s.timer.C:
			s.mu.Lock()
			if s.heap.Len() == 0 {
				s.mu.Unlock()
				continue
			}

			now := s.now()
			t := s.heap[0]
			if t.nextRun.After(now) {
				s.resetTimerLocked()
				s.mu.Unlock()
				continue
			}

			heap.Pop(&s.heap)
			t.nextRun = t.schedule.Next(now)
			heap.Push(&s.heap, t)
			s.resetTimerLocked()
			s.mu.Unlock()

			t.run()
		}
	}
}

// resetTimerLocked arms the timer for the earliest task. Caller must hold
// s.mu. Before Start the timer is nil and this is a no-op.
func (s *Scheduler) resetTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	if s.heap.Len() == 0 {
		return
	}
	d := s.heap[0].nextRun.Sub(s.now())
	if d < 0 {
		d = 0
	}
	s.timer.Reset(d)

	select {
	case s.reset <- struct{}{}:
	default:
	}
}
