// Package process ties together one process's address space, handle
// table, and scheduling group, and delivers kernel notifications
// (exit, page fault, memory exhaustion) to its handler thread via
// sched.Scheduler.Hop.
package process

import (
	"norostb/kernel/frame"
	"norostb/kernel/kerr"
	"norostb/kernel/object"
	"norostb/kernel/sched"
	"norostb/kernel/vmm"
)

// NotificationKind identifies why the kernel is interrupting a process.
type NotificationKind uint8

const (
	NotifyExit NotificationKind = iota
	NotifyPageFault
	NotifyMemoryExhaustion
)

// Notification is one queued kernel->process event.
type Notification struct {
	Kind NotificationKind
	Addr uint64 // valid for NotifyPageFault
	Code int // valid for NotifyExit
}

// Process is one schedulable unit of isolation: an address space, a
// handle table, and the process group its threads run under.
type Process struct {
	ID uint32
	Space *vmm.AddressSpace
	Handles *object.Table
	Group *sched.ProcessGroup

	sched *sched.Scheduler
	handler *sched.Thread // runs Notifications when hopped to, if set

	notifications chan Notification
}

// New creates a process with a fresh address space and handle table
// under the given scheduling group.
func New(id uint32, frames *frame.Allocator, group *sched.ProcessGroup, s *sched.Scheduler) *Process {
	return &Process{
		ID: id,
		Space: vmm.New(id, frames),
		Handles: object.New(),
		Group: group,
		sched: s,
		notifications: make(chan Notification, 16),
	}
}

// SetHandler designates the thread that should be hopped to when a
// notification is delivered (a process installs this once at startup,
// mirroring a signal handler thread).
func (p *Process) SetHandler(t *sched.Thread) { p.handler = t }

// Notify enqueues n and, if a handler thread is registered, hops
// execution to it immediately rather than waiting for the scheduler's
// normal priority order — the same fast path an IPC send to a blocked
// receiver uses.
func (p *Process) Notify(n Notification) {
	select {
	case p.notifications <- n:
	default:
		// Notification queue overflow drops this new event rather than
		// blocking the kernel; a process that never drains its
		// notifications has bigger problems than a missed one.
	}
	if p.handler != nil && p.sched != nil {
		p.sched.Hop(p.handler)
	}
}

// NextNotification is how the handler thread's Task.Step implementation
// drains queued notifications after being hopped to.
func (p *Process) NextNotification() (Notification, bool) {
	select {
	case n := <-p.notifications:
		return n, true
	default:
		return Notification{}, false
	}
}

// Exit tears down every open handle and every mapping, and notifies the
// handler thread (if any) of the exit code.
func (p *Process) Exit(code int) {
	p.Handles.CloseAll()
	p.Space.Teardown()
	p.Notify(Notification{Kind: NotifyExit, Code: code})
}

// PageFault is invoked by a syscall handler (Dispatcher.MapObject on an
// address-range conflict) when access to addr can't be satisfied.
func (p *Process) PageFault(addr uint64) {
	p.Notify(Notification{Kind: NotifyPageFault, Addr: addr})
}

// MemoryExhausted is invoked when an allocation on this process's behalf
// fails with kerr.OutOfMemory.
func (p *Process) MemoryExhausted() {
	p.Notify(Notification{Kind: NotifyMemoryExhaustion})
}

// CloseHandle is a thin convenience forwarding to the handle table,
// letting callers avoid reaching into Process.Handles directly.
func (p *Process) CloseHandle(h object.Handle) kerr.Code { return p.Handles.Close(h) }
