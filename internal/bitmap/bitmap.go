// Package bitmap implements the hierarchical summary bitmap used by the
// physical frame allocator (kernel/frame): a level-0 bitmap of individual
// pages, a level-1 byte-per-256-page free count, and a level-2
// uint16-per-65536-page free count. Higher levels only ever hold an
// approximate free count of their subtree; because a byte can represent
// 0-255 but a group holds up to 256 pages, a fully-free group's counter
// wraps to the same value (0) as a fully-used one, so callers must fall
// back to inspecting the level-0 words directly whenever a summary count
// reads zero. See Hierarchical.groupIsFree.
package bitmap

import "math/bits"

const (
	// GroupPages is the number of level-0 pages summarized by one level-1 byte.
	GroupPages = 256
	// RegionGroups is the number of level-1 groups summarized by one level-2 word.
	RegionGroups = 256
	// RegionPages is the number of level-0 pages summarized by one level-2 word.
	RegionPages = GroupPages * RegionGroups
)

// Hierarchical is a three-level free-page summary bitmap.
//
// A set bit in words means the corresponding page is free.
type Hierarchical struct {
	words []uint64
	l1 []uint8
	l2 []uint16
	pages int
	groups int
}

// New creates a summary bitmap tracking pages pages, all initially free.
func New(pages int) *Hierarchical {
	nwords := (pages + 63) / 64
	ngroups := (pages + GroupPages - 1) / GroupPages
	nregions := (pages + RegionPages - 1) / RegionPages

	h := &Hierarchical{
		words: make([]uint64, nwords),
		l1: make([]uint8, ngroups),
		l2: make([]uint16, nregions),
		pages: pages,
		groups: ngroups,
	}
	for i := range h.words {
		h.words[i] = ^uint64(0)
	}
	// Clear bits beyond `pages` in the final word so they never appear free.
	if rem := pages % 64; rem != 0 && nwords > 0 {
		h.words[nwords-1] &= (uint64(1) << rem) - 1
	}
	for g := 0; g < ngroups; g++ {
		h.l1[g] = uint8(h.countGroupBits(g))
	}
	for r := 0; r < nregions; r++ {
		h.l2[r] = uint16(h.countRegionBits(r))
	}
	return h
}

func (h *Hierarchical) countGroupBits(group int) int {
	start := group * GroupPages
	end := start + GroupPages
	if end > h.pages {
		end = h.pages
	}
	return h.countRangeBits(start, end)
}

func (h *Hierarchical) countRegionBits(region int) int {
	start := region * RegionPages
	end := start + RegionPages
	if end > h.pages {
		end = h.pages
	}
	return h.countRangeBits(start, end)
}

func (h *Hierarchical) countRangeBits(start, end int) int {
	n := 0
	for p := start; p < end; p++ {
		if h.bit(p) {
			n++
		}
	}
	return n
}

func (h *Hierarchical) bit(p int) bool {
	return h.words[p/64]&(uint64(1)<<(uint(p)%64)) != 0
}

func (h *Hierarchical) setBit(p int, free bool) {
	w := &h.words[p/64]
	mask := uint64(1) << (uint(p) % 64)
	if free {
		*w |= mask
	} else {
		*w &^= mask
	}
}

// groupIsFree reports whether every page in the group is free, resolving
// the 256-wraps-to-0 ambiguity in l1 by inspecting the raw words.
func (h *Hierarchical) groupIsFree(group int) bool {
	start := group * GroupPages
	end := start + GroupPages
	if end > h.pages {
		end = h.pages
	}
	for p := start; p < end; p += 64 {
		wend := p + 64
		if wend > end {
			wend = end
		}
		want := wend - p
		w := h.words[p/64] >> (uint(p) % 64)
		if bits.OnesCount64(w&((uint64(1)<<uint(want))-1)) != want {
			return false
		}
	}
	return true
}

// Alloc finds and marks used the first free page, returning its index.
// ok is false if no page is free.
func (h *Hierarchical) Alloc() (page int, ok bool) {
	for r := range h.l2 {
		if h.l2[r] == 0 && !h.regionHasFree(r) {
			continue
		}
		start := r * RegionGroups
		end := start + RegionGroups
		if end > h.groups {
			end = h.groups
		}
		for g := start; g < end; g++ {
			if h.l1[g] == 0 && !h.groupIsFree(g) {
				continue
			}
			if p, ok := h.allocInGroup(g); ok {
				return p, true
			}
		}
	}
	return 0, false
}

// regionHasFree resolves the same 65536-wraps-to-0 ambiguity at level 2.
func (h *Hierarchical) regionHasFree(region int) bool {
	start := region * RegionGroups
	end := start + RegionGroups
	if end > h.groups {
		end = h.groups
	}
	for g := start; g < end; g++ {
		if h.l1[g] != 0 || h.groupIsFree(g) {
			return true
		}
	}
	return false
}

func (h *Hierarchical) allocInGroup(group int) (int, bool) {
	start := group * GroupPages
	end := start + GroupPages
	if end > h.pages {
		end = h.pages
	}
	for p := start; p < end; p++ {
		if h.bit(p) {
			h.markUsed(p)
			return p, true
		}
	}
	return 0, false
}

// AllocRun finds n contiguous free pages aligned to n (n must be a power
// of two), marks them used, and returns the first page index.
func (h *Hierarchical) AllocRun(n int) (page int, ok bool) {
	if n <= 0 {
		return 0, false
	}
	for base := 0; base+n <= h.pages; base += n {
		if h.runIsFree(base, n) {
			for p := base; p < base+n; p++ {
				h.markUsed(p)
			}
			return base, true
		}
	}
	return 0, false
}

func (h *Hierarchical) runIsFree(start, n int) bool {
	for p := start; p < start+n; p++ {
		if !h.bit(p) {
			return false
		}
	}
	return true
}

func (h *Hierarchical) markUsed(p int) {
	h.setBit(p, false)
	h.l1[p/GroupPages]--
	h.l2[p/RegionPages]--
}

func (h *Hierarchical) markFree(p int) {
	h.setBit(p, true)
	h.l1[p/GroupPages]++
	h.l2[p/RegionPages]++
}

// Free marks a page free. Freeing an already-free page is a no-op that
// returns false.
func (h *Hierarchical) Free(page int) bool {
	if page < 0 || page >= h.pages || h.bit(page) {
		return false
	}
	h.markFree(page)
	return true
}

// FreeRun frees n contiguous pages starting at page.
func (h *Hierarchical) FreeRun(page, n int) {
	for p := page; p < page+n; p++ {
		h.Free(p)
	}
}

// IsFree reports whether page is currently free.
func (h *Hierarchical) IsFree(page int) bool {
	if page < 0 || page >= h.pages {
		return false
	}
	return h.bit(page)
}

// FreeCount returns the total number of free pages by summing level-1
// groups, resolving each group's wrap ambiguity.
func (h *Hierarchical) FreeCount() int {
	total := 0
	for g := 0; g < h.groups; g++ {
		if h.l1[g] == 0 && h.groupIsFree(g) {
			total += GroupPages
		} else {
			total += int(h.l1[g])
		}
	}
	return total
}
