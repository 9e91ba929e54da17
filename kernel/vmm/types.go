// Package vmm implements the virtual memory manager: per-process
// address spaces mapping anonymous, shared-set, and object-backed pages
// with independent RWX permissions.
package vmm

import "norostb/kernel/frame"

// RWX is a permission mask: read, write, execute.
type RWX uint8

const (
	R RWX = 1 << iota
	W
	X
)

// Subset reports whether every bit in r is also set in max.
func (r RWX) Subset(max RWX) bool { return r&^max == 0 }

// VRange is a half-open virtual address range [Base, Base+Length).
type VRange struct {
	Base uint64
	Length uint64
}

// End returns the exclusive end of the range.
func (v VRange) End() uint64 { return v.Base + v.Length }

// Overlaps reports whether v and o share any address.
func (v VRange) Overlaps(o VRange) bool {
	return v.Base < o.End() && o.Base < v.End()
}

// SourceKind identifies what backs a mapping.
type SourceKind uint8

const (
	SourceAnon SourceKind = iota
	SourceSharedSet
	SourceObject
)

// Source describes what a mapping's pages are bound to.
type Source struct {
	Kind SourceKind

	// SourceAnon: Frames holds the process-owned frames backing the range,
	// one per base page (huge-page runs are stored as a single frame
	// whose Class.Pages() covers multiple base pages).
	Frames []frame.Frame

	// SourceSharedSet: the set plus a page-offset/length window into it.
	Set *SharedSet
	SetOffset int
	SetLength int
	SharedRWX RWX // maximum RWX inherited by mappings of this set, if locked
	SharedLock bool

	// SourceObject: the memory-mapped backing store's identity and its
	// maximum RWX (e.g. constrained by a PermissionMask).
	ObjectID uint64
	ObjectRWX RWX
}

// MaxRWX returns the strongest RWX a mapping of this source may request.
func (s Source) MaxRWX() RWX {
	switch s.Kind {
	case SourceSharedSet:
		if s.SharedLock {
			return s.SharedRWX
		}
		return R | W | X
	case SourceObject:
		return s.ObjectRWX
	default:
		return R | W | X
	}
}

// Mapping is one entry in a process's address space.
type Mapping struct {
	Range VRange
	RWX RWX
	Source Source
}
