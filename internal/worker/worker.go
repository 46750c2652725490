// ============================================================================
// Workclip Worker - Tick Execution Unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Function: Work unit that advances players, each Worker runs in an independent goroutine
//
// How it works:
//   Each Worker is an independent goroutine that continuously executes the following loop:
//   1. Receive task from taskCh (blocking wait)
//   2. Advance the target player by task.Delta
//   3. Send result to resultCh
//   4. Repeat above process until taskCh is closed
//
// Execution Model:
//   ┌─────────────────────────────────────┐
//   │  Worker Goroutine                   │
//   │  ┌──────────────────────────────┐   │
//   │  │ for task := range taskCh     │   │
//   │  │   ├─ execute(task)           │   │
//   │  │   │    └─ recover() panics   │   │
//   │  │   └─ send result to resultCh │   │
//   │  └──────────────────────────────┘   │
//   └─────────────────────────────────────┘
//
// Ownership:
//   A player is handed to exactly one worker per tick, and the scheduler
//   waits for every result before the next tick. A player is therefore
//   never driven by two goroutines at once.
//
// Error Handling:
//   - A panicking player is converted into Result.Error
//   - The worker keeps running; the scheduler decides what to do with the player
//
// ============================================================================

package worker

import (
	"fmt"
	"time"
)

// Worker represents a work execution unit
type Worker struct {
	id       int           // Worker unique identifier, used for logging and debugging
	taskCh   <-chan Task   // Task channel (read-only)
	resultCh chan<- Result // Result channel (write-only)
	stopCh   <-chan struct{}
}

// newWorker creates a new Worker instance
func newWorker(id int, taskCh <-chan Task, resultCh chan<- Result, stopCh <-chan struct{}) *Worker {
	return &Worker{
		id:       id,
		taskCh:   taskCh,
		resultCh: resultCh,
		stopCh:   stopCh,
	}
}

// Run is the main loop of Worker
// Results are delivered with a blocking send: the scheduler waits for one
// result per submitted task, so dropping one would stall the tick barrier.
func (w *Worker) Run() {
	for task := range w.taskCh {
		start := time.Now()
		err := w.execute(task)

		result := Result{
			PlayerID: task.PlayerID,
			Error:    err,
			Duration: time.Since(start),
		}
		if task.Target != nil {
			result.State = task.Target.State()
			result.Percent = task.Target.Percent()
			result.Elapsed = task.Target.Elapsed()
		}

		select {
		case w.resultCh <- result:
		case <-w.stopCh:
			return
		}
	}
}

// execute advances the target, converting a panic into an error
func (w *Worker) execute(task Task) (err error) {
	if task.Target == nil {
		return fmt.Errorf("worker %d: player %s has no target", w.id, task.PlayerID)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d: player %s panicked: %v", w.id, task.PlayerID, r)
		}
	}()
	task.Target.Tick(task.Delta)
	return nil
}
