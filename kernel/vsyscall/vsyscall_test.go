package vsyscall

import (
	"testing"
	"time"
)

func TestPagePublishAndRead(t *testing.T) {
	p := NewPage()
	if p.Read() != 0 {
		t.Fatal("expected zero before first publish")
	}
	p.Publish(1234)
	if got := p.Read(); got != 1234 {
		t.Fatalf("got %d, want 1234", got)
	}
}

func TestClockAdvancesMonotonically(t *testing.T) {
	p := NewPage()
	c := NewClock(p, time.Millisecond)
	defer c.Stop()

	time.Sleep(5 * time.Millisecond)
	first := p.Read()
	time.Sleep(5 * time.Millisecond)
	second := p.Read()

	if !(second >= first) {
		t.Fatalf("expected monotonic non-decreasing time, got %d then %d", first, second)
	}
	if first == 0 {
		t.Fatal("expected a nonzero reading after publisher starts")
	}
}
