package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingTask struct {
	Task
	runs     int32
	failures int32
	done     chan struct{}
}

func newCountingTask(failures int32) *countingTask {
	return &countingTask{
		Task:     NewTask(TaskTypeSweepMedia, "test"),
		failures: failures,
		done:     make(chan struct{}, 10),
	}
}

func (t *countingTask) Execute(ctx context.Context) error {
	n := atomic.AddInt32(&t.runs, 1)
	t.done <- struct{}{}
	if n <= t.failures {
		return errors.New("boom")
	}
	return nil
}

func waitRuns(t *testing.T, task *countingTask, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-task.done:
		case <-deadline:
			t.Fatalf("Expected %d runs, got %d", n, atomic.LoadInt32(&task.runs))
		}
	}
}

func TestScheduler_ExecutesTasks(t *testing.T) {
	s := NewScheduler(2)
	s.Start()
	defer s.Stop()

	task := newCountingTask(0)
	if err := s.EnqueueTask(task); err != nil {
		t.Fatal(err)
	}

	waitRuns(t, task, 1, 2*time.Second)

	if task.GetDuration() <= 0 {
		t.Error("Expected task to record its start time")
	}
}

func TestScheduler_RetriesFailedTasks(t *testing.T) {
	s := NewScheduler(1)
	s.Start()
	defer s.Stop()

	task := newCountingTask(1)
	if err := s.EnqueueTask(task); err != nil {
		t.Fatal(err)
	}

	// First retry is scheduled after one second.
	waitRuns(t, task, 2, 4*time.Second)

	if task.GetRetryCount() != 1 {
		t.Errorf("Expected retry count 1, got %d", task.GetRetryCount())
	}
}

func TestScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	task := newCountingTask(100)
	task.MaxRetries = 0

	s := NewScheduler(1)
	s.Start()
	defer s.Stop()

	if err := s.EnqueueTask(task); err != nil {
		t.Fatal(err)
	}
	waitRuns(t, task, 1, 2*time.Second)

	time.Sleep(1500 * time.Millisecond)
	if runs := atomic.LoadInt32(&task.runs); runs != 1 {
		t.Errorf("Expected no retries, got %d runs", runs)
	}
}

func TestScheduler_AddPeriodic(t *testing.T) {
	s := NewScheduler(1)

	task := newCountingTask(0)
	if err := s.AddPeriodic("test", "@every 1s", func() TaskInterface { return task }); err != nil {
		t.Fatal(err)
	}
	if err := s.AddPeriodic("disabled", "", func() TaskInterface { return task }); err != nil {
		t.Errorf("Expected empty schedule to be accepted, got %v", err)
	}
	if err := s.AddPeriodic("broken", "every now and then", func() TaskInterface { return task }); err == nil {
		t.Error("Expected error for invalid schedule")
	}

	s.Start()
	defer s.Stop()

	waitRuns(t, task, 1, 3*time.Second)
}

func TestScheduler_EnqueueAfterStop(t *testing.T) {
	s := NewScheduler(1)
	s.Start()
	s.Stop()

	if err := s.EnqueueTask(newCountingTask(0)); err == nil {
		t.Error("Expected enqueue to fail after stop")
	}
}

func TestScheduler_QueueFull(t *testing.T) {
	s := NewScheduler(1)
	defer s.cancel()

	for i := 0; i < queueSize; i++ {
		if err := s.EnqueueTask(newCountingTask(0)); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}

	if err := s.EnqueueTask(newCountingTask(0)); err == nil {
		t.Error("Expected error when queue is full")
	}
}

func TestTask(t *testing.T) {
	task := NewTask(TaskTypeRemirrorMedia, "all")

	if task.GetType() != TaskTypeRemirrorMedia || task.GetScope() != "all" {
		t.Errorf("Unexpected task: %+v", task)
	}
	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}
	if !task.CanRetry() {
		t.Error("Expected new task to be retryable")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected task to stop retrying after max retries")
	}
}
