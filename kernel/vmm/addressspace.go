package vmm

import (
	"sort"
	"sync"

	"norostb/kernel/frame"
	"norostb/kernel/kerr"
)

// AddressSpace is a per-process set of non-overlapping mappings.
//
// Processes are expected to track their own free ranges; the kernel only
// enforces non-overlap, permission legality, and source validity.
type AddressSpace struct {
	mu sync.RWMutex
	pid uint32
	mappings []Mapping // kept sorted by Range.Base
	frames *frame.Allocator
}

// New creates an empty address space for the given process.
func New(pid uint32, frames *frame.Allocator) *AddressSpace {
	return &AddressSpace{pid: pid, frames: frames}
}

func (a *AddressSpace) indexOf(base uint64) int {
	return sort.Search(len(a.mappings), func(i int) bool { return a.mappings[i].Range.Base >= base })
}

func (a *AddressSpace) overlapsLocked(vr VRange) bool {
	for _, m := range a.mappings {
		if m.Range.Overlaps(vr) {
			return true
		}
	}
	return false
}

// Map installs a new mapping. rwx must be a subset of the source's
// maximum permitted RWX (e.g. a PermissionMask denies escalation).
func (a *AddressSpace) Map(vr VRange, src Source, rwx RWX) kerr.Code {
	if vr.Length == 0 {
		return kerr.InvalidArgument
	}
	if !rwx.Subset(src.MaxRWX()) {
		return kerr.PermissionDenied
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.overlapsLocked(vr) {
		return kerr.AddressRangeConflict
	}

	if src.Kind == SourceSharedSet {
		class := frame.Class4K
		if code := src.Set.MapIn(a.pid, src.SetOffset, src.SetLength, class); code != kerr.OK {
			return code
		}
	}

	i := a.indexOf(vr.Base)
	a.mappings = append(a.mappings, Mapping{})
	copy(a.mappings[i+1:], a.mappings[i:])
	a.mappings[i] = Mapping{Range: vr, RWX: rwx, Source: src}
	return kerr.OK
}

// Unmap removes the mapping covering exactly vr. Partial-range unmap of a
// huge-page mapping splits it into base-page mappings, matching
// huge-page demotion-on-partial-unmap requirement.
func (a *AddressSpace) Unmap(vr VRange) kerr.Code {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, m := range a.mappings {
		if m.Range == vr {
			a.releaseLocked(m)
			a.mappings = append(a.mappings[:i:i], a.mappings[i+1:]...)
			return kerr.OK
		}
		if m.Range.Overlaps(vr) {
			return a.splitUnmapLocked(i, m, vr)
		}
	}
	return kerr.InvalidArgument
}

// sliceSource narrows src to the [startPage, startPage+numPages) window of
// the pages it backs, so a mapping split off from a larger one only ever
// references (and later releases) the frames or shared-set window it
// actually covers, not the whole original mapping's backing store.
func sliceSource(src Source, startPage, numPages int) Source {
	out := src
	switch src.Kind {
	case SourceAnon:
		end := startPage + numPages
		if end > len(src.Frames) {
			end = len(src.Frames)
		}
		if startPage > end {
			startPage = end
		}
		out.Frames = append([]frame.Frame(nil), src.Frames[startPage:end]...)
	case SourceSharedSet:
		out.SetOffset = src.SetOffset + startPage
		out.SetLength = numPages
	}
	return out
}

// splitUnmapLocked demotes mapping m (which contains vr) into up to two
// remaining mappings around the unmapped hole. A vr that reaches outside m
// is rejected with InvalidArgument.
func (a *AddressSpace) splitUnmapLocked(i int, m Mapping, vr VRange) kerr.Code {
	if vr.Base < m.Range.Base || vr.End() > m.Range.End() {
		return kerr.InvalidArgument // partial unmap must stay within one mapping
	}

	a.mappings = append(a.mappings[:i:i], a.mappings[i+1:]...)

	leftPages := int((vr.Base - m.Range.Base) / frame.PageSize)
	holePages := int(vr.Length / frame.PageSize)
	totalPages := int(m.Range.Length / frame.PageSize)
	rightPages := totalPages - leftPages - holePages

	if vr.Base > m.Range.Base {
		left := m
		left.Range = VRange{Base: m.Range.Base, Length: vr.Base - m.Range.Base}
		left.Source = sliceSource(m.Source, 0, leftPages)
		a.insertLocked(left)
	}
	if vr.End() < m.Range.End() {
		right := m
		right.Range = VRange{Base: vr.End(), Length: m.Range.End() - vr.End()}
		right.Source = sliceSource(m.Source, leftPages+holePages, rightPages)
		a.insertLocked(right)
	}

	hole := m
	hole.Range = vr
	hole.Source = sliceSource(m.Source, leftPages, holePages)
	a.releaseLocked(hole)
	return kerr.OK
}

func (a *AddressSpace) insertLocked(m Mapping) {
	i := a.indexOf(m.Range.Base)
	a.mappings = append(a.mappings, Mapping{})
	copy(a.mappings[i+1:], a.mappings[i:])
	a.mappings[i] = m
}

func (a *AddressSpace) releaseLocked(m Mapping) {
	switch m.Source.Kind {
	case SourceAnon:
		for _, f := range m.Source.Frames {
			a.frames.Free(f)
		}
	case SourceSharedSet:
		m.Source.Set.UnmapFrom(a.pid, m.Source.SetOffset, m.Source.SetLength, frame.Class4K)
	}
}

// Lookup returns the mapping containing addr, if any.
func (a *AddressSpace) Lookup(addr uint64) (Mapping, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, m := range a.mappings {
		if addr >= m.Range.Base && addr < m.Range.End() {
			return m, true
		}
	}
	return Mapping{}, false
}

// Mappings returns a snapshot of all current mappings, sorted by base.
func (a *AddressSpace) Mappings() []Mapping {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Mapping(nil), a.mappings...)
}

// Teardown releases every mapping, as happens when a process exits.
func (a *AddressSpace) Teardown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.mappings {
		a.releaseLocked(m)
	}
	a.mappings = nil
}

// ShareRange transfers a mapping in vr from a to b. If move is true the
// mapping is unmapped from a atomically with installation in b; otherwise
// it is installed in b while a keeps its mapping and reference counts are
// adjusted accordingly.
func ShareRange(a, b *AddressSpace, vr VRange, move bool) kerr.Code {
	a.mu.Lock()
	var found *Mapping
	for i := range a.mappings {
		if a.mappings[i].Range == vr {
			found = &a.mappings[i]
			break
		}
	}
	if found == nil {
		a.mu.Unlock()
		return kerr.InvalidArgument
	}
	m := *found
	a.mu.Unlock()

	if move {
		if code := a.Unmap(vr); code != kerr.OK {
			return code
		}
		if code := b.Map(vr, m.Source, m.RWX); code != kerr.OK {
			// best effort: re-map into a to avoid silently dropping the mapping
			a.Map(vr, m.Source, m.RWX)
			return code
		}
		return kerr.OK
	}

	return b.Map(vr, m.Source, m.RWX)
}
