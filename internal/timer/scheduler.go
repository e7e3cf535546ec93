package timer

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Job is the unit of work run by the scheduler.
type Job func(ctx context.Context)

// NextFunc returns the next run time after now.
type NextFunc func(now time.Time) (time.Time, error)

// task is a job scheduled for a point in time
type task struct {
	id    string
	runAt time.Time
	job   Job
	index int // index in the heap (for heap.Interface)
}

// taskHeap is a min-heap of tasks ordered by runAt
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].runAt.Before(h[j].runAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler runs jobs at scheduled times on a fixed worker pool. Scheduling an
// id that is already pending replaces the pending run.
type Scheduler struct {
	mu      sync.Mutex
	heap    taskHeap
	tasks   map[string]*task
	wakeup  chan struct{}
	due     chan *task
	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler with the given number of workers
func NewScheduler(workers int, logger zerolog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		heap:    make(taskHeap, 0),
		tasks:   make(map[string]*task),
		wakeup:  make(chan struct{}, 1),
		due:     make(chan *task, workers),
		workers: workers,
		logger:  logger,
	}
	heap.Init(&s.heap)
	return s
}

// Start launches the scheduler loop and its workers. Jobs receive a context
// derived from ctx that is canceled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	s.wg.Add(1)
	go s.run()
}

// Stop cancels running jobs and waits for the workers to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Schedule runs job once at runAt.
func (s *Scheduler) Schedule(id string, runAt time.Time, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.tasks[id]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.tasks, id)
	}

	t := &task{id: id, runAt: runAt, job: job}
	heap.Push(&s.heap, t)
	s.tasks[id] = t

	if s.heap[0] == t {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Every runs job at each time returned by next. The next run is scheduled
// once the current one returns, even if it panics, so runs of the same id
// never overlap.
func (s *Scheduler) Every(id string, next NextFunc, job Job) error {
	runAt, err := next(time.Now())
	if err != nil {
		return err
	}

	var recurring Job
	recurring = func(ctx context.Context) {
		defer func() {
			if ctx.Err() != nil {
				return
			}
			runAt, err := next(time.Now())
			if err != nil {
				s.logger.Error().Err(err).Str("task", id).Msg("failed to compute next run, task dropped")
				return
			}
			if err := s.Schedule(id, runAt, recurring); err != nil {
				s.logger.Warn().Err(err).Str("task", id).Msg("task not rescheduled")
				return
			}
			s.logger.Info().Str("task", id).Time("next_run", runAt).Msg("task rescheduled")
		}()

		job(ctx)
	}

	if err := s.Schedule(id, runAt, recurring); err != nil {
		return err
	}
	s.logger.Info().Str("task", id).Time("next_run", runAt).Msg("task scheduled")
	return nil
}

// Cancel removes a pending task
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&s.heap, t.index)
	delete(s.tasks, id)
	return true
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		s.mu.Lock()

		var wait time.Duration
		if s.heap.Len() == 0 {
			wait = 24 * time.Hour
		} else {
			next := s.heap[0]
			wait = time.Until(next.runAt)

			if wait <= 0 {
				t := heap.Pop(&s.heap).(*task)
				delete(s.tasks, t.id)
				s.mu.Unlock()

				select {
				case s.due <- t:
				case <-s.ctx.Done():
					return
				}
				continue
			}
		}

		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// worker executes due tasks until the scheduler stops
func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case t := <-s.due:
			s.execute(t)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) execute(t *task) {
	runID := uuid.NewString()
	logger := s.logger.With().Str("task", t.id).Str("run_id", runID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("task panicked")
		}
	}()

	start := time.Now()
	logger.Debug().Msg("task started")
	t.job(logger.WithContext(s.ctx))
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("task finished")
}

// Stats returns statistics about the scheduler
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		ScheduledTasks: len(s.tasks),
		Workers:        s.workers,
	}
}

// Stats contains statistics about the scheduler
type Stats struct {
	ScheduledTasks int
	Workers        int
}

var (
	ErrSchedulerStopped = &SchedulerError{"scheduler is stopped"}
)

// SchedulerError represents a scheduler error
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string {
	return e.msg
}
