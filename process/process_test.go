package process

import (
	"context"
	"testing"
	"time"

	"norostb/kernel/frame"
	"norostb/kernel/sched"
)

type stepOnce struct{ done chan struct{} }

func (s *stepOnce) Step() sched.Status {
	close(s.done)
	return sched.Blocked
}

func TestNotifyHopsToHandlerThread(t *testing.T) {
	fa, err := frame.New(16, 1)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	defer fa.Close()

	s := sched.New(0, 0, 0)
	group := sched.NewProcessGroup(1, 5)
	p := New(1, fa, group, s)

	task := &stepOnce{done: make(chan struct{})}
	handler := sched.NewThread(1, group, task)
	p.SetHandler(handler)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ex := sched.NewExecutors(s, 1)
	go ex.Run(ctx, 0)

	p.MemoryExhausted()

	select {
	case <-task.done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected handler thread to run after being hopped to")
	}

	n, ok := p.NextNotification()
	if !ok || n.Kind != NotifyMemoryExhaustion {
		t.Fatalf("expected queued notification, got %+v %v", n, ok)
	}
}

func TestExitClosesHandlesAndNotifies(t *testing.T) {
	fa, err := frame.New(16, 1)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	defer fa.Close()

	group := sched.NewProcessGroup(1, 5)
	p := New(1, fa, group, nil)
	p.Exit(7)

	n, ok := p.NextNotification()
	if !ok || n.Kind != NotifyExit || n.Code != 7 {
		t.Fatalf("expected exit notification code 7, got %+v %v", n, ok)
	}
}
