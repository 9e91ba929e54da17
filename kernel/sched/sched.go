// Package sched implements per-process-group priority scheduling of
// threads across a bounded number of hardware threads ("harts"). The
// run-a-quantum-then-report-back shape of Task/Status generalizes a
// cooperative Step model from a flat round robin to priority queues
// with aging and explicit suspend/wake points.
package sched

import (
	"container/heap"
	"sync"
	"time"
)

// Status is what a thread reports after running one quantum.
type Status uint8

const (
	Runnable Status = iota
	Blocked
	Suspended
	Exited
)

// Task is one quantum of work a Thread performs when scheduled.
type Task interface {
	Step() Status
}

// ProcessGroup is the priority and accounting unit: threads runnable
// under a group are held in a circular ready list local to the group, and
// the group itself (not any one thread) competes in the scheduler's
// priority queue. This way a group with many ready threads gets the same
// hart share as a group with one thread at the same priority — each turn
// through the queue picks one group, which then round-robins to its next
// thread.
type ProcessGroup struct {
	ID uint64
	Base int

	mu sync.Mutex
	ready []*Thread // circular ready list; index 0 runs next
	eff int         // effective, possibly aged, priority
	waitSince time.Time // when the group last entered the ready heap
	seq int            // FIFO tie-break among equal priorities, set on enqueue
	inHeap bool
}

// NewProcessGroup creates a group with the given base priority (higher
// runs first).
func NewProcessGroup(id uint64, basePriority int) *ProcessGroup {
	return &ProcessGroup{ID: id, Base: basePriority, eff: basePriority}
}

func (g *ProcessGroup) priority() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eff
}

// Thread is one schedulable unit of execution.
type Thread struct {
	ID uint64
	Group *ProcessGroup
	Task Task

	mu sync.Mutex
	status Status
}

// NewThread creates a thread under group, initially Blocked until
// Scheduler.Wake or Scheduler.AddThread makes it runnable.
func NewThread(id uint64, group *ProcessGroup, task Task) *Thread {
	return &Thread{ID: id, Group: group, Task: task, status: Blocked}
}

// groupHeap is a max-heap on a group's effective priority, FIFO among ties.
type groupHeap []*ProcessGroup

func (h groupHeap) Len() int { return len(h) }
func (h groupHeap) Less(i, j int) bool {
	pi, pj := h[i].priority(), h[j].priority()
	if pi != pj {
		return pi > pj
	}
	return h[i].seq < h[j].seq
}
func (h groupHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *groupHeap) Push(x any) { *h = append(*h, x.(*ProcessGroup)) }
func (h *groupHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler dispatches ready threads across NumHarts concurrent
// executors, aging waiting groups so a busy high-priority group cannot
// starve everyone else indefinitely.
type Scheduler struct {
	mu sync.Mutex
	ready groupHeap
	seq int

	agingInterval time.Duration
	agingStep int
	maxBoost int
}

// New creates a scheduler. agingInterval is how long a group must wait
// before its effective priority is bumped by agingStep, up to maxBoost
// above its base priority.
func New(agingInterval time.Duration, agingStep, maxBoost int) *Scheduler {
	return &Scheduler{agingInterval: agingInterval, agingStep: agingStep, maxBoost: maxBoost}
}

// enqueue appends t to its group's round-robin ready list under the
// group's own lock. It reports whether the group was not already
// represented in the scheduler's ready heap, in which case the caller
// (holding no locks at this point) must push it.
func (g *ProcessGroup) enqueue(t *Thread) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = append(g.ready, t)
	if g.inHeap {
		return false
	}
	g.inHeap = true
	g.eff = g.Base
	g.waitSince = time.Now()
	return true
}

// next removes and returns the group's next ready thread, round-robin.
// The second return reports whether the group has more ready threads
// after this one and should remain represented in the scheduler's ready
// heap.
func (g *ProcessGroup) next() (*Thread, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ready) == 0 {
		g.inHeap = false
		return nil, false
	}
	t := g.ready[0]
	g.ready = append(g.ready[:0:0], g.ready[1:]...)
	more := len(g.ready) > 0
	if !more {
		g.inHeap = false
	}
	return t, more
}

// AddThread marks t Runnable and enqueues it onto its group's ready list,
// pushing the group into the scheduler's priority queue if it wasn't
// already waiting there.
func (s *Scheduler) AddThread(t *Thread) {
	t.mu.Lock()
	t.status = Runnable
	t.mu.Unlock()

	g := t.Group
	if !g.enqueue(t) {
		return
	}

	s.mu.Lock()
	g.seq = s.seq
	s.seq++
	heap.Push(&s.ready, g)
	s.mu.Unlock()
}

// Wake transitions a Blocked or Suspended thread back to Runnable, the
// defined wakeup point for anything that put it to sleep (an I/O queue
// wait, a stream table wait, an explicit suspend syscall).
func (s *Scheduler) Wake(t *Thread) {
	t.mu.Lock()
	already := t.status == Runnable
	t.mu.Unlock()
	if already {
		return
	}
	s.AddThread(t)
}

// age boosts the effective priority of every group that has waited at
// least agingInterval since it entered the ready heap, up to maxBoost
// above its base priority, preventing indefinite starvation of low-base
// groups by busy high-base ones.
func (s *Scheduler) age() {
	if s.agingInterval <= 0 {
		return
	}
	now := time.Now()
	for _, g := range s.ready {
		g.mu.Lock()
		if now.Sub(g.waitSince) >= s.agingInterval {
			boost := g.eff - g.Base
			if boost < s.maxBoost {
				g.eff += s.agingStep
				if g.eff-g.Base > s.maxBoost {
					g.eff = g.Base + s.maxBoost
				}
			}
		}
		g.mu.Unlock()
	}
	heap.Init(&s.ready)
}

// popNext removes the highest-priority ready group, hands back its next
// thread round-robin, and re-enters the group into the ready heap if it
// still has threads waiting behind that one.
func (s *Scheduler) popNext() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.age()
	for s.ready.Len() > 0 {
		g := heap.Pop(&s.ready).(*ProcessGroup)
		t, more := g.next()
		if t == nil {
			continue // group emptied out between being queued and being picked
		}
		if more {
			// Re-entering with a fresh seq sends the group to the back of
			// its priority tier's FIFO order, the same as a group that was
			// just woken — otherwise a group with several ready threads
			// would keep winning ties against one with a single thread
			// (whose seq keeps advancing every time it's re-added) and
			// claim a disproportionate share of hart time.
			g.mu.Lock()
			g.seq = s.seq
			g.mu.Unlock()
			s.seq++
			heap.Push(&s.ready, g)
		}
		return t
	}
	return nil
}

// Hop implements thread hopping: an IPC send that wakes a receiver
// already waiting on it can hand execution to that receiver ahead of
// everything else ready, instead of paying for a full scheduling round
// trip through the aging heap. The target thread is spliced to the front
// of its own group's round robin so it is that group's next pick, and the
// group itself is boosted above the current maximum so it is picked next.
func (s *Scheduler) Hop(t *Thread) {
	t.mu.Lock()
	t.status = Runnable
	t.mu.Unlock()

	g := t.Group

	s.mu.Lock()
	defer s.mu.Unlock()

	top := 0
	if s.ready.Len() > 0 {
		top = s.ready[0].priority()
	}

	g.mu.Lock()
	front := make([]*Thread, 0, len(g.ready)+1)
	front = append(front, t)
	for _, o := range g.ready {
		if o != t {
			front = append(front, o)
		}
	}
	g.ready = front
	wasInHeap := g.inHeap
	if wasInHeap {
		g.eff = maxInt(g.eff, top+1)
	} else {
		g.eff = maxInt(g.Base, top+1)
	}
	g.inHeap = true
	g.waitSince = time.Now()
	g.seq = -1 // hops always win FIFO ties, they're meant to run next
	g.mu.Unlock()

	if wasInHeap {
		heap.Init(&s.ready)
	} else {
		heap.Push(&s.ready, g)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
