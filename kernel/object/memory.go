package object

import (
	"sync"

	"norostb/kernel/frame"
	"norostb/kernel/kerr"
	"norostb/kernel/vmm"
)

// pageSource abstracts over where a MemoryRegion's pages come from:
// process-owned anonymous frames, or a window into a SharedSet.
type pageSource interface {
	frameAt(i int) (frame.Frame, bool)
	numPages() int
}

type anonPages struct{ frames []frame.Frame }

func (p *anonPages) frameAt(i int) (frame.Frame, bool) {
	if i < 0 || i >= len(p.frames) {
		return frame.Frame{}, false
	}
	return p.frames[i], true
}
func (p *anonPages) numPages() int { return len(p.frames) }

type sharedPages struct {
	set *vmm.SharedSet
	offset, count int
}

func (p *sharedPages) frameAt(i int) (frame.Frame, bool) {
	if i < 0 || i >= p.count {
		return frame.Frame{}, false
	}
	return p.set.FrameAt(p.offset + i)
}
func (p *sharedPages) numPages() int { return p.count }

// MemoryRegion is an anonymous or shared-set-backed memory object.
type MemoryRegion struct {
	Base

	mu sync.Mutex
	fa *frame.Allocator
	src pageSource
	meta map[string][]byte

	// set is non-nil for shared regions; closing releases this process's
	// hold rather than freeing pages outright (the vmm layer owns the
	// per-mapping refcounts; this just tracks whether the object itself
	// still needs bookkeeping on Close).
	set *vmm.SharedSet
}

// NewAnonMemoryRegion allocates enough 4 KiB frames to cover sizeBytes.
func NewAnonMemoryRegion(fa *frame.Allocator, sizeBytes uint64) (*MemoryRegion, kerr.Code) {
	pages := int((sizeBytes + frame.PageSize - 1) / frame.PageSize)
	if pages == 0 {
		pages = 1
	}
	frames := make([]frame.Frame, pages)
	for i := 0; i < pages; i++ {
		f, code := fa.Alloc(frame.Class4K)
		if code != kerr.OK {
			for j := 0; j < i; j++ {
				fa.Free(frames[j])
			}
			return nil, code
		}
		frames[i] = f
	}
	return &MemoryRegion{fa: fa, src: &anonPages{frames: frames}, meta: map[string][]byte{}}, kerr.OK
}

// NewSharedMemoryRegion views count pages of set starting at offset.
func NewSharedMemoryRegion(fa *frame.Allocator, set *vmm.SharedSet, offset, count int) *MemoryRegion {
	return &MemoryRegion{fa: fa, set: set, src: &sharedPages{set: set, offset: offset, count: count}, meta: map[string][]byte{}}
}

// Pages exposes the underlying page source for the vmm layer to build a
// Source out of when mapping this object into an address space.
func (m *MemoryRegion) Pages() (frames []frame.Frame, isShared bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.src.(*anonPages); ok {
		return append([]frame.Frame(nil), a.frames...), false
	}
	return nil, true
}

// SharedWindow exposes the SharedSet window backing a shared MemoryRegion,
// for the vmm layer to build a SourceSharedSet Source out of when mapping
// this object into an address space. ok is false for an anonymous region.
func (m *MemoryRegion) SharedWindow() (set *vmm.SharedSet, offset, count int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.src.(*sharedPages)
	if !ok {
		return nil, 0, 0, false
	}
	return sp.set, sp.offset, sp.count, true
}

func (m *MemoryRegion) sizeBytes() uint64 { return uint64(m.src.numPages()) * frame.PageSize }

func (m *MemoryRegion) Read(off uint64, length uint32) ([]byte, kerr.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off+uint64(length) > m.sizeBytes() {
		return nil, kerr.InvalidArgument
	}
	out := make([]byte, length)
	var remaining uint32 = length
	pos, o := off, 0
	for remaining > 0 {
		idx := int(pos / frame.PageSize)
		pageOff := pos % frame.PageSize
		f, ok := m.src.frameAt(idx)
		if !ok {
			return nil, kerr.InvalidArgument
		}
		avail := uint32(frame.PageSize - pageOff)
		n := avail
		if n > remaining {
			n = remaining
		}
		copy(out[o:o+int(n)], m.fa.Bytes(f)[pageOff:pageOff+uint64(n)])
		pos += uint64(n)
		remaining -= n
		o += int(n)
	}
	return out, kerr.OK
}

func (m *MemoryRegion) Peek(off uint64, length uint32) ([]byte, kerr.Code) {
	return m.Read(off, length)
}

// WriteAt writes data at an explicit offset; Write (the common op) always
// appends at offset 0, matching how the other object variants use it, so
// memory regions expose WriteAt for callers (like MapObject and syscalls)
// that need positional writes, and Write for the common-op surface.
func (m *MemoryRegion) WriteAt(off uint64, data []byte) (uint32, kerr.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off+uint64(len(data)) > m.sizeBytes() {
		return 0, kerr.InvalidArgument
	}
	pos, o := off, 0
	for o < len(data) {
		idx := int(pos / frame.PageSize)
		pageOff := pos % frame.PageSize
		f, ok := m.src.frameAt(idx)
		if !ok {
			return uint32(o), kerr.InvalidArgument
		}
		avail := int(frame.PageSize - pageOff)
		n := avail
		if n > len(data)-o {
			n = len(data) - o
		}
		copy(m.fa.Bytes(f)[pageOff:pageOff+uint64(n)], data[o:o+n])
		pos += uint64(n)
		o += n
	}
	return uint32(len(data)), kerr.OK
}

func (m *MemoryRegion) Write(data []byte) (uint32, kerr.Code) { return m.WriteAt(0, data) }

func (m *MemoryRegion) GetMeta(key string) ([]byte, kerr.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.meta[key]
	if !ok {
		return nil, kerr.NotFound
	}
	return append([]byte(nil), v...), kerr.OK
}

func (m *MemoryRegion) SetMeta(key string, val []byte) kerr.Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = append([]byte(nil), val...)
	return kerr.OK
}

func (m *MemoryRegion) Close() kerr.Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.src.(*anonPages); ok {
		for _, f := range a.frames {
			m.fa.Free(f)
		}
		a.frames = nil
	}
	// Shared regions: the vmm layer's Unmap already dropped the mapping's
	// refcounts; the object itself owns no frames to release.
	return kerr.OK
}

// MemorySubrange is a bounded view of another memory object with its own
// offset and length.
type MemorySubrange struct {
	Base
	parent Object
	offset uint64
	length uint64
}

// NewMemorySubrange creates a [offset, offset+length) view of parent.
func NewMemorySubrange(parent Object, offset, length uint64) *MemorySubrange {
	return &MemorySubrange{parent: parent, offset: offset, length: length}
}

func (s *MemorySubrange) bounds(off uint64, length uint32) kerr.Code {
	if off+uint64(length) > s.length {
		return kerr.InvalidArgument
	}
	return kerr.OK
}

func (s *MemorySubrange) Read(off uint64, length uint32) ([]byte, kerr.Code) {
	if code := s.bounds(off, length); code != kerr.OK {
		return nil, code
	}
	return s.parent.Read(s.offset+off, length)
}

func (s *MemorySubrange) Peek(off uint64, length uint32) ([]byte, kerr.Code) {
	if code := s.bounds(off, length); code != kerr.OK {
		return nil, code
	}
	return s.parent.Peek(s.offset+off, length)
}

func (s *MemorySubrange) Write(data []byte) (uint32, kerr.Code) {
	if code := s.bounds(0, uint32(len(data))); code != kerr.OK {
		return 0, code
	}
	if wa, ok := s.parent.(interface {
		WriteAt(uint64, []byte) (uint32, kerr.Code)
	}); ok {
		return wa.WriteAt(s.offset, data)
	}
	return s.parent.Write(data)
}

func (s *MemorySubrange) GetMeta(key string) ([]byte, kerr.Code) { return s.parent.GetMeta(key) }
func (s *MemorySubrange) Close() kerr.Code { return kerr.OK }
