package sched

import (
	"context"
	"testing"
	"time"
)

type countingTask struct {
	remaining int
	ran *[]uint64
	id uint64
}

func (c *countingTask) Step() Status {
	*c.ran = append(*c.ran, c.id)
	c.remaining--
	if c.remaining <= 0 {
		return Exited
	}
	return Runnable
}

func TestHigherPriorityGroupRunsFirst(t *testing.T) {
	s := New(0, 0, 0)
	var order []uint64

	low := NewProcessGroup(1, 1)
	high := NewProcessGroup(2, 10)

	tLow := NewThread(1, low, &countingTask{remaining: 1, ran: &order, id: 1})
	tHigh := NewThread(2, high, &countingTask{remaining: 1, ran: &order, id: 2})

	s.AddThread(tLow)
	s.AddThread(tHigh)

	first := s.popNext()
	if first.ID != tHigh.ID {
		t.Fatalf("expected high priority thread first, got %d", first.ID)
	}
}

func TestWakeRequeuesBlockedThread(t *testing.T) {
	s := New(0, 0, 0)
	g := NewProcessGroup(1, 5)
	var order []uint64
	th := NewThread(1, g, &countingTask{remaining: 1, ran: &order, id: 1})

	if s.popNext() != nil {
		t.Fatal("expected empty ready queue before Wake")
	}
	s.Wake(th)
	if got := s.popNext(); got == nil || got.ID != th.ID {
		t.Fatal("expected thread to be runnable after Wake")
	}
}

func TestAgingBoostsStarvedThread(t *testing.T) {
	s := New(time.Millisecond, 5, 100)
	low := NewProcessGroup(1, 1)
	high := NewProcessGroup(2, 100)
	var order []uint64

	tLow := NewThread(1, low, &countingTask{remaining: 1, ran: &order, id: 1})
	s.AddThread(tLow)
	time.Sleep(5 * time.Millisecond)

	tHigh := NewThread(2, high, &countingTask{remaining: 1, ran: &order, id: 2})
	s.AddThread(tHigh)

	// tLow has waited past agingInterval, so the age() pass inside popNext
	// boosts its group by one agingStep of 5; that can't outrun a group
	// whose base priority starts 99 points higher, so tHigh still runs
	// first and the low group is left waiting at 1+5.
	first := s.popNext()
	if first == nil {
		t.Fatal("expected a runnable thread")
	}
	if got := low.priority(); got != 6 {
		t.Fatalf("low group priority after aging = %d, want 6", got)
	}
}

// TestGroupWithManyThreadsDoesNotOutrunSingleThreadGroup exercises the
// scheduler fairness property from the group-vs-thread-count spec (two
// equal-priority groups must split hart time roughly evenly regardless of
// how many ready threads each holds).
func TestGroupWithManyThreadsDoesNotOutrunSingleThreadGroup(t *testing.T) {
	s := New(0, 0, 0)
	solo := NewProcessGroup(1, 10)
	crowd := NewProcessGroup(2, 10)

	forever := func() Status { return Runnable }

	t1 := NewThread(1, solo, taskFunc(forever))
	t2 := NewThread(2, crowd, taskFunc(forever))
	t3 := NewThread(3, crowd, taskFunc(forever))
	t4 := NewThread(4, crowd, taskFunc(forever))

	s.AddThread(t1)
	s.AddThread(t2)
	s.AddThread(t3)
	s.AddThread(t4)

	const rounds = 4000
	counts := map[uint64]int{}
	for i := 0; i < rounds; i++ {
		th := s.popNext()
		if th == nil {
			t.Fatal("expected a runnable thread")
		}
		counts[th.Group.ID]++
		s.AddThread(th)
	}

	soloShare := float64(counts[solo.ID]) / float64(rounds)
	crowdShare := float64(counts[crowd.ID]) / float64(rounds)
	if soloShare < 0.45 || soloShare > 0.55 {
		t.Fatalf("solo group (1 thread) share = %.3f, want ~0.5 regardless of the other group's thread count", soloShare)
	}
	if crowdShare < 0.45 || crowdShare > 0.55 {
		t.Fatalf("crowd group (3 threads) share = %.3f, want ~0.5, not 3x the solo group's share", crowdShare)
	}
}

func TestExecutorsRunsAndDrainsThreads(t *testing.T) {
	s := New(0, 0, 0)
	g := NewProcessGroup(1, 1)
	var order []uint64
	th := NewThread(1, g, &countingTask{remaining: 3, ran: &order, id: 1})
	s.AddThread(th)

	ex := NewExecutors(s, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go ex.Run(ctx, 0)
	go ex.Run(ctx, 1)

	<-ctx.Done()
	if len(order) < 3 {
		t.Fatalf("expected thread to run to exhaustion, ran %d times", len(order))
	}
}

func TestExecutorTracksCurrentThread(t *testing.T) {
	s := New(0, 0, 0)
	g := NewProcessGroup(1, 1)
	var order []uint64
	seenCurrent := make(chan uint64, 1)
	th := NewThread(7, g, taskFunc(func() Status {
		order = append(order, 1)
		seenCurrent <- 7
		return Exited
	}))
	s.AddThread(th)

	ex := NewExecutors(s, 1)
	if ex.Hart(0).Current() != nil {
		t.Fatal("expected idle hart to have no current thread")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go ex.Run(ctx, 0)

	select {
	case id := <-seenCurrent:
		if id != 7 {
			t.Fatalf("unexpected thread id %d", id)
		}
	case <-ctx.Done():
		t.Fatal("thread never ran")
	}
}

type taskFunc func() Status

func (f taskFunc) Step() Status { return f() }

func TestHopRunsBeforeEqualPriorityReady(t *testing.T) {
	s := New(0, 0, 0)
	g := NewProcessGroup(1, 5)
	var order []uint64
	a := NewThread(1, g, &countingTask{remaining: 1, ran: &order, id: 1})
	b := NewThread(2, g, &countingTask{remaining: 1, ran: &order, id: 2})

	s.AddThread(a)
	s.Hop(b)

	first := s.popNext()
	if first.ID != b.ID {
		t.Fatalf("expected hopped thread to run first, got %d", first.ID)
	}
}
