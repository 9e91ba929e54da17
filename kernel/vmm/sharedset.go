package vmm

import (
	"sync"

	"norostb/kernel/frame"
	"norostb/kernel/kerr"
)

// SharedSet is an append-only, owner-controlled collection of frames with
// a set-level reference count.
type SharedSet struct {
	mu sync.Mutex
	owner uint32
	frames *frame.Allocator

	pages []frame.Frame // append-only

	setRefs int // number of processes with any live mapping
	procPages map[uint32]int // per-process count of this set's pages currently mapped
}

// NewSharedSet creates an empty set owned by owner.
func NewSharedSet(owner uint32, frames *frame.Allocator) *SharedSet {
	return &SharedSet{
		owner: owner,
		frames: frames,
		procPages: make(map[uint32]int),
	}
}

// Owner returns the process ID that may append frames.
func (s *SharedSet) Owner() uint32 { return s.owner }

// AddFrame appends a frame to the set. Only the owner may add frames: a
// requester other than the owner gets PermissionDenied. Sets never
// support removal.
func (s *SharedSet) AddFrame(requester uint32, f frame.Frame) kerr.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requester != s.owner {
		return kerr.PermissionDenied
	}
	s.pages = append(s.pages, f)
	return kerr.OK
}

// PageCount returns the number of frames currently in the set.
func (s *SharedSet) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// FrameAt returns the frame at the given page offset within the set.
func (s *SharedSet) FrameAt(offset int) (frame.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 || offset >= len(s.pages) {
		return frame.Frame{}, false
	}
	return s.pages[offset], true
}

// MapIn records that proc has mapped `length` more pages of this set at
// the given size class, incrementing the per-page-per-class frame
// refcount for every covered frame and, on proc's first mapping, the
// set-level reference count.
func (s *SharedSet) MapIn(proc uint32, offset, length int, class frame.SizeClass) kerr.Code {
	s.mu.Lock()
	if offset < 0 || length < 0 || offset+length > len(s.pages) {
		s.mu.Unlock()
		return kerr.InvalidArgument
	}
	if s.procPages[proc] == 0 {
		s.setRefs++
	}
	s.procPages[proc] += length
	frames := append([]frame.Frame(nil), s.pages[offset:offset+length]...)
	s.mu.Unlock()

	for _, f := range frames {
		s.frames.IncRef(f, class)
	}
	return kerr.OK
}

// UnmapFrom reverses MapIn. When proc's mapped-page count for this set
// reaches zero its set-level reference is dropped; when the set-level
// refcount reaches zero every frame is returned to the allocator (via
// DecRef reaching zero on the last mapping).
func (s *SharedSet) UnmapFrom(proc uint32, offset, length int, class frame.SizeClass) kerr.Code {
	s.mu.Lock()
	if offset < 0 || length < 0 || offset+length > len(s.pages) {
		s.mu.Unlock()
		return kerr.InvalidArgument
	}
	frames := append([]frame.Frame(nil), s.pages[offset:offset+length]...)
	s.procPages[proc] -= length
	if s.procPages[proc] <= 0 {
		delete(s.procPages, proc)
		s.setRefs--
	}
	s.mu.Unlock()

	for _, f := range frames {
		s.frames.DecRef(f, class)
	}
	return kerr.OK
}

// RefCount returns the set-level reference count (number of processes
// with at least one live mapping of this set).
func (s *SharedSet) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setRefs
}
