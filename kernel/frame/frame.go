// Package frame implements the physical frame allocator: a hierarchical
// summary bitmap backing store plus a per-hart colored cache for the
// O(1) hot path.
//
// Physical memory itself is a single anonymous shared mapping obtained
// from the host kernel via golang.org/x/sys/unix (see pool_unix.go), so
// a Frame's Base is a real offset into real memory rather than a value
// with no backing storage — the same trick a hosted build of the original
// kernel would use to test the allocator without real physical RAM.
package frame

import (
	"sync"

	"norostb/internal/bitmap"
	"norostb/kernel/kerr"
)

// SizeClass identifies a frame's page size.
type SizeClass uint8

const (
	Class4K SizeClass = iota
	Class2M
	Class1G
)

// Pages returns the number of base 4 KiB pages a frame of this class spans.
func (c SizeClass) Pages() int {
	switch c {
	case Class2M:
		return 512
	case Class1G:
		return 512 * 512
	default:
		return 1
	}
}

// Bytes returns the size in bytes of a frame of this class.
func (c SizeClass) Bytes() int64 { return int64(c.Pages()) * PageSize }

// PageSize is the base page size in bytes.
const PageSize = 4096

// Frame is a fixed-size unit of physical memory.
type Frame struct {
	Base int // base 4 KiB page index
	Class SizeClass
}

// Addr returns the byte offset of the frame within the allocator's pool.
func (f Frame) Addr() int64 { return int64(f.Base) * PageSize }

type refKey struct {
	base int
	class SizeClass
}

// Allocator is the physical frame allocator: one hierarchical bitmap
// backing store guarded by a single lock, plus lock-free per-hart colored
// caches for base-page allocations.
type Allocator struct {
	mem []byte

	mu sync.Mutex
	bm *bitmap.Hierarchical
	refs map[refKey]uint32

	caches []coloredCache
}

// New creates an allocator managing the given number of 4 KiB pages,
// with numHarts colored caches (one per simulated hart/CPU).
func New(pages, numHarts int) (*Allocator, error) {
	mem, err := allocPool(int64(pages) * PageSize)
	if err != nil {
		return nil, err
	}
	if numHarts < 1 {
		numHarts = 1
	}
	a := &Allocator{
		mem: mem,
		bm: bitmap.New(pages),
		refs: make(map[refKey]uint32),
	}
	a.caches = make([]coloredCache, numHarts)
	return a, nil
}

// Bytes returns the byte slice of physical memory at the given frame.
func (a *Allocator) Bytes(f Frame) []byte {
	n := int64(f.Class.Pages()) * PageSize
	return a.mem[f.Addr() : f.Addr()+n]
}

// Alloc allocates a single frame of the given size class from the backing
// store directly (bypassing the colored cache), used for huge pages and
// cold-path allocation.
func (a *Allocator) Alloc(class SizeClass) (Frame, kerr.Code) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocLocked(class)
}

func (a *Allocator) allocLocked(class SizeClass) (Frame, kerr.Code) {
	n := class.Pages()
	var base int
	var ok bool
	if n == 1 {
		base, ok = a.bm.Alloc()
	} else {
		base, ok = a.bm.AllocRun(n)
	}
	if !ok {
		return Frame{}, kerr.OutOfMemory
	}
	return Frame{Base: base, Class: class}, kerr.OK
}

// Free returns a frame to the backing store directly.
func (a *Allocator) Free(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeLocked(f)
}

func (a *Allocator) freeLocked(f Frame) {
	a.bm.FreeRun(f.Base, f.Class.Pages())
	delete(a.refs, refKey{f.Base, Class4K})
	delete(a.refs, refKey{f.Base, Class2M})
	delete(a.refs, refKey{f.Base, Class1G})
}

// IncRef increments the reference count of a frame for the given size
// class and returns the new count.
func (a *Allocator) IncRef(f Frame, class SizeClass) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := refKey{f.Base, class}
	a.refs[k]++
	return a.refs[k]
}

// DecRef decrements the reference count of a frame for the given size
// class. If the count reaches zero the frame is returned to the backing
// store and released is true.
func (a *Allocator) DecRef(f Frame, class SizeClass) (remaining uint32, released bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := refKey{f.Base, class}
	if a.refs[k] == 0 {
		return 0, false
	}
	a.refs[k]--
	if a.refs[k] == 0 {
		delete(a.refs, k)
		a.freeLocked(Frame{Base: f.Base, Class: class})
		return 0, true
	}
	return a.refs[k], false
}

// RefCount reports the current reference count of a frame for a size class.
func (a *Allocator) RefCount(f Frame, class SizeClass) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refs[refKey{f.Base, class}]
}

// FreePages returns the number of currently free base pages.
func (a *Allocator) FreePages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bm.FreeCount()
}

// Close releases the pool's backing memory.
func (a *Allocator) Close() error { return freePool(a.mem) }

// Chain is a run of contiguous base pages allocated and released as one
// unit, used by callers like kernel/syscall's CreateIoQueue that need one
// flat backing region for an I/O queue's rings rather than a scattered set
// of frames.
type Chain struct {
	Base int
	Count int
}

// Frames expands the chain into its individual 4 KiB frames.
func (c Chain) Frames() []Frame {
	out := make([]Frame, c.Count)
	for i := range out {
		out[i] = Frame{Base: c.Base + i, Class: Class4K}
	}
	return out
}

// AllocContiguous allocates a run of n contiguous 4 KiB pages. Unlike
// repeated calls to Alloc, the returned Chain is guaranteed physically
// contiguous, so its bytes can be addressed as one flat slice via
// Allocator.ChainBytes.
func (a *Allocator) AllocContiguous(n int) (Chain, kerr.Code) {
	if n <= 0 {
		return Chain{}, kerr.InvalidArgument
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	base, ok := a.bm.AllocRun(n)
	if !ok {
		return Chain{}, kerr.OutOfMemory
	}
	return Chain{Base: base, Count: n}, kerr.OK
}

// ReleaseChain returns every page in c to the backing store.
func (a *Allocator) ReleaseChain(c Chain) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bm.FreeRun(c.Base, c.Count)
}

// ChainBytes returns the flat byte slice backing a contiguous chain.
func (a *Allocator) ChainBytes(c Chain) []byte {
	start := int64(c.Base) * PageSize
	end := start + int64(c.Count)*PageSize
	return a.mem[start:end]
}
