// Package streamtable implements the request/response ring a server
// process shares with its clients to answer object operations out of
// process.
package streamtable

import (
	"sync"
	"sync/atomic"

	"norostb/kernel/ioqueue"
	"norostb/kernel/kerr"
)

// DefaultSlots is the request-id space size used when a size isn't given
// explicitly.
const DefaultSlots = 128

const payloadSize = 48

// Request is one client->server call. ID is a recycled slot index, not a
// monotonic sequence number: the free list in Table hands out low IDs
// first and then the most recently freed one, so a table never needs more
// ID space than it has concurrent requests.
type Request struct {
	ID uint32
	Opcode ioqueue.Opcode
	Payload [payloadSize]byte
}

// Response is one server->client reply, matched back to its Request by ID.
type Response struct {
	ID uint32
	Result int64
	Payload [payloadSize]byte
}

// Table is a bidirectional pair of SPSC-ish rings plus a request-id free
// list. Unlike ioqueue.Queue, either side may in principle be structured
// as multiple readers over time (a server can be restarted and reattach),
// so the ring indices route through a mutex rather than bare atomics.
type Table struct {
	mu sync.Mutex
	slots uint32
	reqRing []Request
	respRing []Response
	reqHead uint32 // server consumes
	reqTail uint32 // client produces
	respHead uint32 // client consumes
	respTail uint32 // server produces

	freeIDs []uint32

	reqNotify chan struct{}
	respNotify chan struct{}

	closed atomic.Bool
}

// New creates a table with room for `slots` requests in flight at once.
func New(slots uint32) *Table {
	if slots == 0 {
		slots = DefaultSlots
	}
	free := make([]uint32, slots)
	for i := range free {
		free[i] = uint32(len(free)) - 1 - uint32(i) // hand out low IDs first
	}
	return &Table{
		slots: slots,
		reqRing: make([]Request, slots),
		respRing: make([]Response, slots),
		freeIDs: free,
		reqNotify: make(chan struct{}, 1),
		respNotify: make(chan struct{}, 1),
	}
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// AllocID reserves a request-id for the caller's next SubmitRequest.
func (t *Table) AllocID() (uint32, kerr.Code) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return 0, kerr.ServerGone
	}
	n := len(t.freeIDs)
	if n == 0 {
		return 0, kerr.RingFull
	}
	id := t.freeIDs[n-1]
	t.freeIDs = t.freeIDs[:n-1]
	return id, kerr.OK
}

// FreeID returns a request-id to the pool once its response has been
// consumed.
func (t *Table) FreeID(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.freeIDs = append(t.freeIDs, id)
}

// SubmitRequest enqueues req for the server to pick up.
func (t *Table) SubmitRequest(req Request) kerr.Code {
	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		return kerr.ServerGone
	}
	if t.reqTail-t.reqHead >= t.slots {
		t.mu.Unlock()
		return kerr.RingFull
	}
	t.reqRing[t.reqTail%t.slots] = req
	t.reqTail++
	t.mu.Unlock()
	wake(t.reqNotify)
	return kerr.OK
}

// PollRequest is the server-side non-blocking pop.
func (t *Table) PollRequest() (Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reqHead == t.reqTail {
		return Request{}, false
	}
	r := t.reqRing[t.reqHead%t.slots]
	t.reqHead++
	return r, true
}

// WaitRequest blocks the server until a request arrives, the table
// closes, or ctx is done.
func (t *Table) WaitRequest(ctx interface {
	Done() <-chan struct{}
}) (Request, kerr.Code) {
	for {
		if r, ok := t.PollRequest(); ok {
			return r, kerr.OK
		}
		if t.closed.Load() {
			return Request{}, kerr.ServerGone
		}
		select {
		case <-t.reqNotify:
		case <-ctx.Done():
			return Request{}, kerr.Cancelled
		}
	}
}

// PushResponse enqueues resp for the client to pick up.
func (t *Table) PushResponse(resp Response) kerr.Code {
	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		return kerr.ServerGone
	}
	if t.respTail-t.respHead >= t.slots {
		t.mu.Unlock()
		return kerr.RingFull
	}
	t.respRing[t.respTail%t.slots] = resp
	t.respTail++
	t.mu.Unlock()
	wake(t.respNotify)
	return kerr.OK
}

// PollResponse is the client-side non-blocking pop.
func (t *Table) PollResponse() (Response, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.respHead == t.respTail {
		return Response{}, false
	}
	r := t.respRing[t.respHead%t.slots]
	t.respHead++
	return r, true
}

// WaitResponse blocks the client until a response arrives, the table
// closes, or ctx is done. It returns the next response in order and
// expects the caller to match IDs itself when a table is shared by
// several concurrent requesters.
func (t *Table) WaitResponse(ctx interface {
	Done() <-chan struct{}
}) (Response, kerr.Code) {
	for {
		if r, ok := t.PollResponse(); ok {
			return r, kerr.OK
		}
		if t.closed.Load() {
			return Response{}, kerr.ServerGone
		}
		select {
		case <-t.respNotify:
		case <-ctx.Done():
			return Response{}, kerr.Cancelled
		}
	}
}

// Do is a convenience synchronous round trip: allocate an id, submit,
// wait for the matching response, and free the id.
func (t *Table) Do(ctx interface{ Done() <-chan struct{} }, opcode ioqueue.Opcode, payload [payloadSize]byte) (Response, kerr.Code) {
	id, code := t.AllocID()
	if code != kerr.OK {
		return Response{}, code
	}
	defer t.FreeID(id)
	if code := t.SubmitRequest(Request{ID: id, Opcode: opcode, Payload: payload}); code != kerr.OK {
		return Response{}, code
	}
	for {
		resp, code := t.WaitResponse(ctx)
		if code != kerr.OK {
			return Response{}, code
		}
		if resp.ID == id {
			return resp, kerr.OK
		}
		// Not ours (a concurrent caller's reply raced ahead); requeue is not
		// possible on a single response ring, so a Table used with Do from
		// multiple goroutines needs external demultiplexing. Single-caller
		// use, the common case, never reaches this branch.
	}
}

// Close marks the table gone. Any blocked or future Submit/Wait call
// observes kerr.ServerGone.
func (t *Table) Close() {
	if t.closed.CompareAndSwap(false, true) {
		wake(t.reqNotify)
		wake(t.respNotify)
	}
}

// Closed reports whether the table has been torn down.
func (t *Table) Closed() bool { return t.closed.Load() }
