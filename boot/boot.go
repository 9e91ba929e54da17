// Package boot describes what the bootloader hands the kernel before it
// takes over: the memory map, the kernel and initramfs spans, and an
// opaque platform-specific blob.
package boot

// Region is a physical address range in bytes.
type Region struct {
	Base uint64
	Length uint64
}

// End returns the exclusive end of the region.
func (r Region) End() uint64 { return r.Base + r.Length }

// Info is the boot-time snapshot the kernel builds its frame allocator
// and initramfs-backed Root object from.
type Info struct {
	// FreeMemory lists the physical ranges available for the frame
	// allocator's pool, excluding the kernel image and initramfs.
	FreeMemory []Region

	// KernelImage is where the running kernel's own code and data live,
	// carved out of FreeMemory so the allocator never hands it out.
	KernelImage Region

	// Initramfs is the compressed boot filesystem span. cmd/kernel does
	// not mount it in the object namespace.
	Initramfs Region

	// PlatformBlob is opaque platform description data (ACPI tables,
	// a device tree blob, or similar) passed through untouched for
	// drivers to parse.
	PlatformBlob []byte
}

// TotalFreeBytes sums FreeMemory, the size the frame allocator's pool
// should be created with.
func (i Info) TotalFreeBytes() uint64 {
	var total uint64
	for _, r := range i.FreeMemory {
		total += r.Length
	}
	return total
}
