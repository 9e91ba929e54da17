// Package ioqueue implements the submission/completion ring pair a process
// shares with the kernel for asynchronous object I/O.
package ioqueue

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"norostb/kernel/kerr"
)

// Opcode identifies the operation a Submission asks the kernel to perform.
type Opcode uint8

const (
	OpRead Opcode = iota
	OpPeek
	OpWrite
	OpGetMeta
	OpSetMeta
	OpOpen
	OpCreate
	OpDestroy
	OpSeek
	OpClose
	OpShare
)

// SubmissionSize and CompletionSize are the fixed wire sizes: a 64-byte
// submission (opcode + args + user_data) and a 16-byte completion
// (user_data + result).
const (
	SubmissionSize = 64
	argsSize = 55
	CompletionSize = 16
)

// Submission is the decoded form of one 64-byte submission ring entry.
type Submission struct {
	Opcode Opcode
	Args [argsSize]byte
	UserData uint64
}

func (s Submission) encode(b []byte) {
	b[0] = byte(s.Opcode)
	copy(b[1:1+argsSize], s.Args[:])
	binary.LittleEndian.PutUint64(b[1+argsSize:SubmissionSize], s.UserData)
}

func decodeSubmission(b []byte) Submission {
	var s Submission
	s.Opcode = Opcode(b[0])
	copy(s.Args[:], b[1:1+argsSize])
	s.UserData = binary.LittleEndian.Uint64(b[1+argsSize : SubmissionSize])
	return s
}

// Completion is the decoded form of one 16-byte completion ring entry.
// Result holds a non-negative byte count/value on success, or the negated
// value of a kerr.Code on failure.
type Completion struct {
	UserData uint64
	Result int64
}

func (c Completion) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], c.UserData)
	binary.LittleEndian.PutUint64(b[8:16], uint64(c.Result))
}

func decodeCompletion(b []byte) Completion {
	return Completion{
		UserData: binary.LittleEndian.Uint64(b[0:8]),
		Result: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
}

// EncodeResult packs a successful value into a Completion.Result.
func EncodeResult(v uint32) int64 { return int64(v) }

// EncodeError packs a kerr.Code into a Completion.Result as a negative value.
func EncodeError(c kerr.Code) int64 { return -int64(c) }

// Decode splits a Completion's Result back into a value or error, the
// same negative-errno convention Unix syscalls use to fold a status code
// into a single signed return value.
func (c Completion) Decode() (uint32, kerr.Code) {
	if c.Result < 0 {
		return 0, kerr.Code(-c.Result)
	}
	return uint32(c.Result), kerr.OK
}

// ClientQueueHeader mirrors the producer/consumer counters a client keeps
// alongside the ring slots, exposed as a convenience so callers need not
// recompute ring math by hand.
type ClientQueueHeader struct {
	SubTail uint32 // client-owned: next submission slot to fill
	SubHead uint32 // kernel-owned: next submission slot to consume
	ComTail uint32 // kernel-owned: next completion slot to fill
	ComHead uint32 // client-owned: next completion slot to consume
}

// Queue is a fixed-capacity pair of SPSC rings. Submissions flow
// client->kernel, completions flow kernel->client; each ring has exactly
// one writer and one reader, so the head/tail counters only need atomic
// loads/stores.
type Queue struct {
	subCap uint32
	comCap uint32

	subMem []byte // subCap * SubmissionSize
	comMem []byte // comCap * CompletionSize

	subTail atomic.Uint32
	subHead atomic.Uint32
	comTail atomic.Uint32
	comHead atomic.Uint32

	notify chan struct{}

	pendingMu sync.Mutex
	pending map[uint64]func() // user_data -> cancel hook registered by DoIo
}

// New creates a queue with room for subCap submissions and comCap
// completions in flight, backed by the supplied shared memory (typically a
// region carved out of a frame.Allocator's mmap-backed pool).
func New(mem []byte, subCap, comCap uint32) *Queue {
	need := int(subCap)*SubmissionSize + int(comCap)*CompletionSize
	if len(mem) < need {
		mem = make([]byte, need)
	}
	q := &Queue{
		subCap: subCap,
		comCap: comCap,
		subMem: mem[:int(subCap)*SubmissionSize],
		comMem: mem[int(subCap)*SubmissionSize : need],
		notify: make(chan struct{}, 1),
		pending: make(map[uint64]func()),
	}
	return q
}

// Header snapshots the current ring indices.
func (q *Queue) Header() ClientQueueHeader {
	return ClientQueueHeader{
		SubTail: q.subTail.Load(),
		SubHead: q.subHead.Load(),
		ComTail: q.comTail.Load(),
		ComHead: q.comHead.Load(),
	}
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// PushSubmission enqueues one submission from the client side. It returns
// kerr.RingFull if the submission ring has no free slot.
func (q *Queue) PushSubmission(s Submission) kerr.Code {
	tail := q.subTail.Load()
	head := q.subHead.Load()
	if tail-head >= q.subCap {
		return kerr.RingFull
	}
	slot := tail % q.subCap
	s.encode(q.subMem[int(slot)*SubmissionSize : int(slot+1)*SubmissionSize])
	q.subTail.Store(tail + 1)
	q.wake()
	return kerr.OK
}

// PopSubmission dequeues one submission from the kernel side.
func (q *Queue) PopSubmission() (Submission, bool) {
	head := q.subHead.Load()
	tail := q.subTail.Load()
	if head == tail {
		return Submission{}, false
	}
	slot := head % q.subCap
	s := decodeSubmission(q.subMem[int(slot)*SubmissionSize : int(slot+1)*SubmissionSize])
	q.subHead.Store(head + 1)
	return s, true
}

// PushCompletion enqueues one completion from the kernel side. The
// completion ring is sized so the kernel never blocks: it is the
// client's job to keep draining it, and a full ring here is a client
// bug rather than a recoverable I/O condition.
func (q *Queue) PushCompletion(c Completion) kerr.Code {
	tail := q.comTail.Load()
	head := q.comHead.Load()
	if tail-head >= q.comCap {
		return kerr.RingFull
	}
	slot := tail % q.comCap
	c.encode(q.comMem[int(slot)*CompletionSize : int(slot+1)*CompletionSize])
	q.comTail.Store(tail + 1)
	q.wake()
	return kerr.OK
}

// PollIoQueue is the non-blocking client-facing pop.
func (q *Queue) PollIoQueue() (Completion, bool) {
	head := q.comHead.Load()
	tail := q.comTail.Load()
	if head == tail {
		return Completion{}, false
	}
	slot := head % q.comCap
	c := decodeCompletion(q.comMem[int(slot)*CompletionSize : int(slot+1)*CompletionSize])
	q.comHead.Store(head + 1)
	return c, true
}

// WaitIoQueue blocks until a completion is available or ctx is cancelled.
func (q *Queue) WaitIoQueue(ctx interface {
	Done() <-chan struct{}
	Err() error
}) (Completion, kerr.Code) {
	for {
		if c, ok := q.PollIoQueue(); ok {
			return c, kerr.OK
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Completion{}, kerr.Cancelled
		}
	}
}

// registerCancel and Cancel implement cancellation-by-user-data-tag: a
// submission's opcode handler in DoIo may register a hook here before it
// starts blocking work, letting a later Cancel unwind it.
func (q *Queue) registerCancel(userData uint64, cancel func()) {
	q.pendingMu.Lock()
	q.pending[userData] = cancel
	q.pendingMu.Unlock()
}

func (q *Queue) clearCancel(userData uint64) {
	q.pendingMu.Lock()
	delete(q.pending, userData)
	q.pendingMu.Unlock()
}

// Cancel requests cancellation of the in-flight submission tagged
// userData. Returns kerr.NotFound if no such submission is outstanding.
func (q *Queue) Cancel(userData uint64) kerr.Code {
	q.pendingMu.Lock()
	cancel, ok := q.pending[userData]
	q.pendingMu.Unlock()
	if !ok {
		return kerr.NotFound
	}
	cancel()
	return kerr.OK
}
