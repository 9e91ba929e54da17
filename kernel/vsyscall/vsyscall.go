// Package vsyscall implements the fixed virtual syscall page mapped at a
// well-known address into every process: a monotonic nanosecond clock a
// thread can read without trapping into the kernel, using a seqlock so a
// torn read is always detectable and retried.
package vsyscall

import (
	"sync/atomic"
	"time"
)

// PageAddr is the fixed virtual address every process maps this page at.
const PageAddr = 0x1000

// Page is the seqlock-protected clock structure living at PageAddr.
// Readers spin on Seq: an odd value means a write is in progress.
type Page struct {
	seq atomic.Uint32
	nanos atomic.Uint64
}

// NewPage creates an unpublished page (reads return 0 until the first
// Publish).
func NewPage() *Page { return &Page{} }

// Publish records elapsed nanoseconds since boot. Only the clock owner
// (the kernel's boot sequence) calls this.
func (p *Page) Publish(nanosSinceBoot uint64) {
	p.seq.Add(1) // now odd: writer in progress
	p.nanos.Store(nanosSinceBoot)
	p.seq.Add(1) // now even: safe to read
}

// Read returns the last published value, retrying if it observes a
// write in progress or a torn read (the sequence number moved between
// the two loads).
func (p *Page) Read() uint64 {
	for {
		s1 := p.seq.Load()
		if s1&1 == 1 {
			continue
		}
		n := p.nanos.Load()
		s2 := p.seq.Load()
		if s1 == s2 {
			return n
		}
	}
}

// Clock periodically publishes elapsed monotonic time into a Page. It
// uses time.Since against a fixed boot instant rather than wall-clock
// deltas, so the published value never runs backward across a system
// clock adjustment.
type Clock struct {
	page *Page
	boot time.Time
	done chan struct{}
}

// NewClock creates a clock publishing into page every interval, starting
// immediately.
func NewClock(page *Page, interval time.Duration) *Clock {
	c := &Clock{page: page, boot: time.Now(), done: make(chan struct{})}
	go c.run(interval)
	return c
}

func (c *Clock) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.page.Publish(uint64(time.Since(c.boot)))
	for {
		select {
		case <-ticker.C:
			c.page.Publish(uint64(time.Since(c.boot)))
		case <-c.done:
			return
		}
	}
}

// Stop halts the publisher goroutine.
func (c *Clock) Stop() { close(c.done) }
