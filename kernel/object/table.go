package object

import (
	"sync"

	"norostb/kernel/kerr"
)

type entry struct {
	obj Object
	refs *int32 // shared by every handle referencing the same object
}

// Table is a process's handle table: a dense, table-indexed array of
// entries that grows but never shrinks, with closed slots recycled via a
// free list.
type Table struct {
	mu sync.Mutex
	entries []*entry
	free []Handle
}

// New creates an empty handle table.
func New() *Table { return &Table{} }

// Insert adds a brand-new object (handle count 1) and returns its handle.
func (t *Table) Insert(obj Object) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	refs := new(int32)
	*refs = 1
	return t.insertLocked(&entry{obj: obj, refs: refs})
}

func (t *Table) insertLocked(e *entry) Handle {
	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[h] = e
		return h
	}
	t.entries = append(t.entries, e)
	return Handle(len(t.entries) - 1)
}

// Get resolves a handle to its object.
func (t *Table) Get(h Handle) (Object, kerr.Code) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookupLocked(h)
	if e == nil {
		return nil, kerr.InvalidHandle
	}
	return e.obj, kerr.OK
}

func (t *Table) lookupLocked(h Handle) *entry {
	if int(h) < 0 || int(h) >= len(t.entries) {
		return nil
	}
	return t.entries[h]
}

// Duplicate creates a new handle in the same table referencing the same
// underlying object, incrementing its handle count.
func (t *Table) Duplicate(h Handle) (Handle, kerr.Code) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookupLocked(h)
	if e == nil {
		return 0, kerr.InvalidHandle
	}
	*e.refs++
	return t.insertLocked(&entry{obj: e.obj, refs: e.refs}), kerr.OK
}

// Close decrements the referenced object's handle count. Reaching zero
// destroys the object. Closing an already-closed (or never-valid) handle
// returns InvalidHandle, making Close idempotent.
func (t *Table) Close(h Handle) kerr.Code {
	t.mu.Lock()
	e := t.lookupLocked(h)
	if e == nil {
		t.mu.Unlock()
		return kerr.InvalidHandle
	}
	t.entries[h] = nil
	t.free = append(t.free, h)
	*e.refs--
	destroy := *e.refs == 0
	t.mu.Unlock()

	if destroy {
		e.obj.Close()
	}
	return kerr.OK
}

// CloseAll tears down every live handle, as happens when a process exits.
func (t *Table) CloseAll() {
	t.mu.Lock()
	live := make([]Handle, 0, len(t.entries))
	for h, e := range t.entries {
		if e != nil {
			live = append(live, Handle(h))
		}
	}
	t.mu.Unlock()
	for _, h := range live {
		t.Close(h)
	}
}

// InsertTransfer inserts a capability received from another process's
// Share, giving it a fresh handle in this table and sharing the original
// refcount.
//
// A Transfer coming out of Share already carries a refcount that Share
// incremented to protect the object while the capability sits in transit
// (e.g. queued inside a Pipe, not yet picked up by the peer); the handle
// InsertTransfer installs here is exactly the handle that increment was
// for, so it must not increment again. Only a Transfer built directly with
// a nil refs (no Share involved, as pipe_test.go's raw Transfer literals
// do) needs a fresh refcount of its own.
func (t *Table) InsertTransfer(tr Transfer) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tr.refs == nil {
		refs := new(int32)
		*refs = 1
		tr.refs = refs
	}
	return t.insertLocked(&entry{obj: tr.Obj, refs: tr.refs})
}

// Share implements the common Share(handle) operation: it duplicates the
// object referenced by h into a Transfer and hands it to the Sharer
// object referenced by via (a Pipe or MessagePipe handle; any other
// object, stream tables included, yields InvalidOperation).
func (t *Table) Share(h, via Handle) kerr.Code {
	t.mu.Lock()
	src := t.lookupLocked(h)
	dst := t.lookupLocked(via)
	if src == nil || dst == nil {
		t.mu.Unlock()
		return kerr.InvalidHandle
	}
	sharer, ok := dst.obj.(Sharer)
	if !ok {
		t.mu.Unlock()
		return kerr.InvalidOperation
	}
	*src.refs++
	tr := Transfer{Obj: src.obj, refs: src.refs}
	t.mu.Unlock()

	if code := sharer.SendShare(tr); code != kerr.OK {
		t.mu.Lock()
		*src.refs--
		t.mu.Unlock()
		return code
	}
	return kerr.OK
}

// Len reports the current table size (including recycled/free slots).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
