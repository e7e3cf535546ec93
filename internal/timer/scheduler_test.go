package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, workers int) *Scheduler {
	s := NewScheduler(workers, zerolog.Nop())
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func TestScheduler_Schedule(t *testing.T) {
	s := newTestScheduler(t, 2)

	done := make(chan struct{})
	err := s.Schedule("test1", time.Now().Add(50*time.Millisecond), func(ctx context.Context) {
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task was not executed")
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := newTestScheduler(t, 2)

	var executed atomic.Bool
	require.NoError(t, s.Schedule("test1", time.Now().Add(100*time.Millisecond), func(ctx context.Context) {
		executed.Store(true)
	}))

	assert.True(t, s.Cancel("test1"))
	assert.False(t, s.Cancel("test1"))

	time.Sleep(200 * time.Millisecond)
	assert.False(t, executed.Load(), "task ran despite being canceled")
}

func TestScheduler_Ordering(t *testing.T) {
	s := newTestScheduler(t, 1)

	var (
		mu      sync.Mutex
		results []int
		wg      sync.WaitGroup
	)
	record := func(n int) Job {
		return func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			results = append(results, n)
			mu.Unlock()
		}
	}

	wg.Add(3)
	now := time.Now()
	require.NoError(t, s.Schedule("task3", now.Add(150*time.Millisecond), record(3)))
	require.NoError(t, s.Schedule("task1", now.Add(50*time.Millisecond), record(1)))
	require.NoError(t, s.Schedule("task2", now.Add(100*time.Millisecond), record(2)))

	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, results)
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	s := newTestScheduler(t, 2)

	var runs atomic.Int32
	job := func(ctx context.Context) { runs.Add(1) }

	require.NoError(t, s.Schedule("weekly", time.Now().Add(time.Hour), job))
	require.NoError(t, s.Schedule("weekly", time.Now().Add(50*time.Millisecond), job))
	assert.Equal(t, 1, s.Stats().ScheduledTasks)

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.Stats().ScheduledTasks)
}

func TestScheduler_EveryReschedules(t *testing.T) {
	s := newTestScheduler(t, 1)

	var runs atomic.Int32
	next := func(now time.Time) (time.Time, error) { return now.Add(20 * time.Millisecond), nil }

	require.NoError(t, s.Every("agg", next, func(ctx context.Context) {
		if runs.Add(1) == 2 {
			panic("boom")
		}
	}))

	assert.Eventually(t, func() bool { return runs.Load() >= 4 }, 2*time.Second, 10*time.Millisecond,
		"recurring task keeps running after a panic")
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	s := NewScheduler(1, zerolog.Nop())
	s.Start(context.Background())

	started := make(chan struct{})
	finished := make(chan error, 1)
	require.NoError(t, s.Schedule("long", time.Now(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
	}))

	<-started
	s.Stop()

	assert.ErrorIs(t, <-finished, context.Canceled)
	assert.ErrorIs(t, s.Schedule("late", time.Now(), func(ctx context.Context) {}), ErrSchedulerStopped)
}
