package sched

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// idleBackoff is how long a hart sleeps after finding no runnable thread,
// so an empty scheduler doesn't spin a hart at 100% CPU.
const idleBackoff = time.Millisecond

// Executor is one simulated hart's local state: which thread it is
// currently stepping, if any. A real kernel keeps this in per-hart
// storage so a trap handler can find "the current thread" without a
// lookup; here it's one slot in Executors.harts indexed by hart ID.
type Executor struct {
	mu sync.RWMutex
	current *Thread
}

// Current returns the thread this hart is currently running, or nil if
// the hart is idle.
func (e *Executor) Current() *Thread {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

func (e *Executor) setCurrent(t *Thread) {
	e.mu.Lock()
	e.current = t
	e.mu.Unlock()
}

// Executors bounds how many harts may run threads concurrently, using a
// weighted semaphore the way a real machine's hart count bounds
// concurrent execution contexts, plus one Executor of hart-local state
// per simulated hart.
type Executors struct {
	sched *Scheduler
	sem *semaphore.Weighted
	harts []Executor
}

// NewExecutors creates a pool that runs at most numHarts threads at once.
func NewExecutors(s *Scheduler, numHarts int64) *Executors {
	return &Executors{sched: s, sem: semaphore.NewWeighted(numHarts), harts: make([]Executor, numHarts)}
}

// Hart returns the per-hart state for hartID, so a caller can inspect
// which thread is currently running there.
func (e *Executors) Hart(hartID int) *Executor {
	return &e.harts[hartID]
}

// Run drives one hart until ctx is cancelled. Call it once per hart,
// typically from its own goroutine.
func (e *Executors) Run(ctx context.Context, hartID int) error {
	hart := &e.harts[hartID]
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		t := e.sched.popNext()
		if t == nil {
			e.sem.Release(1)
			select {
			case <-time.After(idleBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		hart.setCurrent(t)
		status := t.Task.Step()
		hart.setCurrent(nil)
		e.sem.Release(1)

		t.mu.Lock()
		t.status = status
		t.mu.Unlock()

		if status == Runnable {
			e.sched.AddThread(t)
		}
		// Blocked/Suspended threads stay off the ready queue until
		// Scheduler.Wake or Scheduler.Hop puts them back; Exited threads
		// are simply dropped.
	}
}
