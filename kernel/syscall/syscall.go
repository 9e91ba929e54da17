// Package syscall dispatches the fixed set of kernel entry points named
// in kernel/proto against a process's address space, handle table, I/O
// queues and stream tables.
package syscall

import (
	"sync"

	"norostb/kernel/frame"
	"norostb/kernel/ioqueue"
	"norostb/kernel/kerr"
	"norostb/kernel/object"
	"norostb/kernel/proto"
	"norostb/kernel/streamtable"
	"norostb/kernel/vmm"
	"norostb/process"
)

// Dispatcher answers syscalls on behalf of one process. A real kernel
// would have one Dispatcher per process, reached via a trap handler;
// here it's the direct call surface cmd/init and tests use.
type Dispatcher struct {
	proc *process.Process
	frames *frame.Allocator

	queuesMu sync.Mutex
	queues map[object.Handle]*ioqueue.Queue
	queueChains map[object.Handle]frame.Chain
	tablesMu sync.Mutex
	tables map[object.Handle]*streamtable.Table
}

// New creates a dispatcher for proc, allocating memory objects and I/O
// queue rings out of frames (stream tables use plain Go slices).
func New(proc *process.Process, frames *frame.Allocator) *Dispatcher {
	return &Dispatcher{
		proc: proc,
		frames: frames,
		queues: make(map[object.Handle]*ioqueue.Queue),
		queueChains: make(map[object.Handle]frame.Chain),
		tables: make(map[object.Handle]*streamtable.Table),
	}
}

// AllocMemory implements SysAllocMemory: allocate an anonymous memory
// region of sizeBytes and return a handle to it.
func (d *Dispatcher) AllocMemory(sizeBytes uint64) (object.Handle, kerr.Code) {
	region, code := object.NewAnonMemoryRegion(d.frames, sizeBytes)
	if code != kerr.OK {
		if code == kerr.OutOfMemory {
			d.proc.MemoryExhausted()
		}
		return 0, code
	}
	return d.proc.Handles.Insert(region), kerr.OK
}

// FreeMemory implements SysFreeMemory: close the handle, releasing its
// frames once its refcount drops to zero.
func (d *Dispatcher) FreeMemory(h object.Handle) kerr.Code {
	return d.proc.Handles.Close(h)
}

// NewSharedMemory implements the SharedMemory case of NewObject:
// sizeBytes worth of frames gathered into a fresh vmm.SharedSet owned by
// this process, wrapped in a MemoryRegion. Share plus the peer's own
// MapObject of the transferred handle joins the peer into the same
// SharedSet window, so both processes' mappings observe the same frames.
func (d *Dispatcher) NewSharedMemory(sizeBytes uint64) (object.Handle, kerr.Code) {
	pages := int((sizeBytes + frame.PageSize - 1) / frame.PageSize)
	if pages == 0 {
		pages = 1
	}
	set := vmm.NewSharedSet(d.proc.ID, d.frames)
	for i := 0; i < pages; i++ {
		f, code := d.frames.Alloc(frame.Class4K)
		if code != kerr.OK {
			if code == kerr.OutOfMemory {
				d.proc.MemoryExhausted()
			}
			return 0, code
		}
		if code := set.AddFrame(d.proc.ID, f); code != kerr.OK {
			d.frames.Free(f)
			return 0, code
		}
	}
	region := object.NewSharedMemoryRegion(d.frames, set, 0, pages)
	return d.proc.Handles.Insert(region), kerr.OK
}

// MapObject implements SysMapObject: map an anonymous or shared-set-backed
// MemoryRegion object into the process's address space at vr with the
// given rights. A region shared across processes (built by NewSharedMemory
// and handed over via Share/InsertTransfer) maps through the same
// SharedSet window in every mapper's address space, so writes in one
// process are visible to reads in another.
func (d *Dispatcher) MapObject(h object.Handle, vr vmm.VRange, rwx vmm.RWX) kerr.Code {
	obj, code := d.proc.Handles.Get(h)
	if code != kerr.OK {
		return code
	}
	region, ok := obj.(*object.MemoryRegion)
	if !ok {
		return kerr.InvalidOperation
	}
	var src vmm.Source
	if set, offset, count, isShared := region.SharedWindow(); isShared {
		src = vmm.Source{Kind: vmm.SourceSharedSet, Set: set, SetOffset: offset, SetLength: count}
	} else {
		frames, _ := region.Pages()
		src = vmm.Source{Kind: vmm.SourceAnon, Frames: frames}
	}
	if code := d.proc.Space.Map(vr, src, rwx); code != kerr.OK {
		if code == kerr.AddressRangeConflict {
			d.proc.PageFault(vr.Base)
		}
		return code
	}
	return kerr.OK
}

// UnmapObject implements SysUnmapObject.
func (d *Dispatcher) UnmapObject(vr vmm.VRange) kerr.Code {
	return d.proc.Space.Unmap(vr)
}

// NewPipe implements the Pipe case of NewObject: create a connected
// write-end/read-end byte-stream pair and return both handles.
func (d *Dispatcher) NewPipe() (write, read object.Handle, code kerr.Code) {
	w, r := object.NewPipe()
	return d.proc.Handles.Insert(w), d.proc.Handles.Insert(r), kerr.OK
}

// NewMessagePipe implements the MessagePipe case of NewObject.
func (d *Dispatcher) NewMessagePipe() (write, read object.Handle, code kerr.Code) {
	w, r := object.NewMessagePipe()
	return d.proc.Handles.Insert(w), d.proc.Handles.Insert(r), kerr.OK
}

// NewSubrange implements the Subrange case of NewObject: a bounded
// [offset, offset+length) view of an existing object.
func (d *Dispatcher) NewSubrange(h object.Handle, offset, length uint64) (object.Handle, kerr.Code) {
	parent, code := d.proc.Handles.Get(h)
	if code != kerr.OK {
		return 0, code
	}
	return d.proc.Handles.Insert(object.NewMemorySubrange(parent, offset, length)), kerr.OK
}

// NewPermissionMask implements the PermissionMask case of NewObject:
// a handle to an existing object restricted to a subset of its rights.
func (d *Dispatcher) NewPermissionMask(h object.Handle, rwx vmm.RWX) (object.Handle, kerr.Code) {
	parent, code := d.proc.Handles.Get(h)
	if code != kerr.OK {
		return 0, code
	}
	return d.proc.Handles.Insert(object.NewPermissionMask(parent, rwx)), kerr.OK
}

// CreateIoQueue implements SysCreateIoQueue: allocate a contiguous run of
// frames for the ring pair and hand back a handle to it. The chain is
// addressed as one flat slice, so the queue operates on the live frame
// memory in place rather than a copy.
func (d *Dispatcher) CreateIoQueue(subCap, comCap uint32) (object.Handle, kerr.Code) {
	need := int(subCap)*ioqueue.SubmissionSize + int(comCap)*ioqueue.CompletionSize
	pages := (need + frame.PageSize - 1) / frame.PageSize
	if pages == 0 {
		pages = 1
	}
	chain, code := d.frames.AllocContiguous(pages)
	if code != kerr.OK {
		if code == kerr.OutOfMemory {
			d.proc.MemoryExhausted()
		}
		return 0, code
	}
	q := ioqueue.New(d.frames.ChainBytes(chain)[:need], subCap, comCap)
	h := d.proc.Handles.Insert(object.NewIoQueueObject(q))
	d.queuesMu.Lock()
	d.queues[h] = q
	d.queueChains[h] = chain
	d.queuesMu.Unlock()
	return h, kerr.OK
}

// Submit pushes one submission onto the I/O queue referenced by h, the
// client-side half of SysDoIo's protocol (the kernel-side half, draining
// and executing it, is DoIo below).
func (d *Dispatcher) Submit(h object.Handle, sub ioqueue.Submission) kerr.Code {
	d.queuesMu.Lock()
	q, ok := d.queues[h]
	d.queuesMu.Unlock()
	if !ok {
		return kerr.InvalidHandle
	}
	return q.PushSubmission(sub)
}

// DestroyIoQueue implements SysDestroyIoQueue.
func (d *Dispatcher) DestroyIoQueue(h object.Handle) kerr.Code {
	d.queuesMu.Lock()
	delete(d.queues, h)
	if chain, ok := d.queueChains[h]; ok {
		d.frames.ReleaseChain(chain)
		delete(d.queueChains, h)
	}
	d.queuesMu.Unlock()
	return d.proc.Handles.Close(h)
}

// DoIo implements SysDoIo: drain and execute one pending submission.
func (d *Dispatcher) DoIo(h object.Handle) (bool, kerr.Code) {
	d.queuesMu.Lock()
	q, ok := d.queues[h]
	d.queuesMu.Unlock()
	if !ok {
		return false, kerr.InvalidHandle
	}
	return ioqueue.DoIo(q, d.proc.Handles), kerr.OK
}

// PollIoQueue implements SysPollIoQueue.
func (d *Dispatcher) PollIoQueue(h object.Handle) (ioqueue.Completion, bool, kerr.Code) {
	d.queuesMu.Lock()
	q, ok := d.queues[h]
	d.queuesMu.Unlock()
	if !ok {
		return ioqueue.Completion{}, false, kerr.InvalidHandle
	}
	c, ok := q.PollIoQueue()
	return c, ok, kerr.OK
}

// WaitIoQueue implements SysWaitIoQueue.
func (d *Dispatcher) WaitIoQueue(h object.Handle, ctx interface {
	Done() <-chan struct{}
	Err() error
}) (ioqueue.Completion, kerr.Code) {
	d.queuesMu.Lock()
	q, ok := d.queues[h]
	d.queuesMu.Unlock()
	if !ok {
		return ioqueue.Completion{}, kerr.InvalidHandle
	}
	return q.WaitIoQueue(ctx)
}

// CancelIo implements SysCancelIo.
func (d *Dispatcher) CancelIo(h object.Handle, userData uint64) kerr.Code {
	d.queuesMu.Lock()
	q, ok := d.queues[h]
	d.queuesMu.Unlock()
	if !ok {
		return kerr.InvalidHandle
	}
	return q.Cancel(userData)
}

// CreateStreamTable implements SysCreateStreamTbl.
func (d *Dispatcher) CreateStreamTable(slots uint32) object.Handle {
	tbl := streamtable.New(slots)
	h := d.proc.Handles.Insert(object.NewStreamTableObject(tbl))
	d.tablesMu.Lock()
	d.tables[h] = tbl
	d.tablesMu.Unlock()
	return h
}

// DestroyStreamTable implements SysDestroyStreamTbl.
func (d *Dispatcher) DestroyStreamTable(h object.Handle) kerr.Code {
	d.tablesMu.Lock()
	if tbl, ok := d.tables[h]; ok {
		tbl.Close()
		delete(d.tables, h)
	}
	d.tablesMu.Unlock()
	return d.proc.Handles.Close(h)
}

// DuplicateHandle implements SysDuplicateHandle.
func (d *Dispatcher) DuplicateHandle(h object.Handle) (object.Handle, kerr.Code) {
	return d.proc.Handles.Duplicate(h)
}

// Share transfers the object referenced by h to the peer of the Pipe or
// MessagePipe referenced by via, the common Share operation every object
// variant answers through Table.Share (a stream-table via handle yields
// InvalidOperation).
func (d *Dispatcher) Share(h, via object.Handle) kerr.Code {
	return d.proc.Handles.Share(h, via)
}

// CloseHandle implements SysCloseHandle.
func (d *Dispatcher) CloseHandle(h object.Handle) kerr.Code {
	return d.proc.Handles.Close(h)
}

// NewObject implements the generic NewObject(type, a0, a1, a2) entry point:
// a single dispatch surface over every object variant, keyed on
// proto.ObjectType, on top of the type-specific constructors above. Callers
// that already know statically which variant they want (cmd/init, tests)
// can keep calling NewPipe/NewSubrange/NewSharedMemory/etc. directly; a
// generic trap dispatcher has exactly this one method to invoke for every
// case. h2 and its code are only meaningful for the two-handle variants
// (Pipe, MessagePipe); other variants leave h2 zero.
func (d *Dispatcher) NewObject(objType proto.ObjectType, a0, a1, a2 uint64) (h1, h2 object.Handle, code kerr.Code) {
	switch objType {
	case proto.ObjRoot:
		return d.proc.Handles.Insert(object.NewRoot()), 0, kerr.OK
	case proto.ObjDuplicate:
		h, code := d.DuplicateHandle(object.Handle(a0))
		return h, 0, code
	case proto.ObjSubrange:
		h, code := d.NewSubrange(object.Handle(a0), a1, a2)
		return h, 0, code
	case proto.ObjPermissionMask:
		h, code := d.NewPermissionMask(object.Handle(a0), vmm.RWX(a1))
		return h, 0, code
	case proto.ObjSharedMemory:
		h, code := d.NewSharedMemory(a0)
		return h, 0, code
	case proto.ObjStreamTable:
		return d.CreateStreamTable(uint32(a0)), 0, kerr.OK
	case proto.ObjPipe:
		w, r, code := d.NewPipe()
		return w, r, code
	case proto.ObjMessagePipe:
		w, r, code := d.NewMessagePipe()
		return w, r, code
	default:
		return 0, 0, kerr.InvalidArgument
	}
}

