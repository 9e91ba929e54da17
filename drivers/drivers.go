// Package drivers names the contracts a userland driver process
// implements against the kernel object model: block storage, network,
// human-interface, and display interfaces. These are named-interface
// contracts only: a real driver wires one of these up behind a
// StreamTableServer (kernel/object) so clients interact with it exactly
// like any other object.
package drivers

import "context"

// BlockDevice is a raw block storage backend.
type BlockDevice interface {
	SizeBytes() uint64
	BlockSizeBytes() uint32
	ReadAt(p []byte, off uint64) (int, error)
	WriteAt(p []byte, off uint64) (int, error)
}

// NetDevice is a low-level packet transport.
type NetDevice interface {
	Send(pkt []byte) error
	Recv(ctx context.Context, pkt []byte) (int, error)
}

// KeyCode identifies a physical key, independent of layout.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
)

// KeyEvent is a single keyboard transition.
type KeyEvent struct {
	Code KeyCode
	Press bool
	Rune rune
}

// HID is a human-interface device producing key events.
type HID interface {
	Events() <-chan KeyEvent
}

// PixelFormat names a framebuffer's pixel encoding.
type PixelFormat uint8

const (
	PixelFormatRGB565 PixelFormat = iota + 1
	PixelFormatRGBA8888
)

// Framebuffer is a presentable pixel buffer.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	Present() error
}

// FileSystem is a named-object namespace a filesystem server exposes
// over a stream table, mapping paths to backing block ranges.
type FileSystem interface {
	Stat(path string) (size uint64, isDir bool, err error)
	ReadDir(path string) ([]string, error)
	ReadFile(path string, off uint64, length uint32) ([]byte, error)
	WriteFile(path string, off uint64, data []byte) (int, error)
	Create(path string) error
	Remove(path string) error
}

// Bootloader describes what handed control to the kernel: where the
// kernel image, initramfs, and free memory regions sit in physical
// address space at boot.
type Bootloader interface {
	KernelImageSpan() (base, length uint64)
	InitramfsSpan() (base, length uint64)
	FreeMemoryRegions() []struct{ Base, Length uint64 }
	PlatformBlob() []byte
}

// WindowServer composites Framebuffer surfaces from multiple clients; a
// concrete implementation multiplexes MemoryRegion objects representing
// each client's surface into one Framebuffer.
type WindowServer interface {
	CreateSurface(width, height int) (handle uint32, err error)
	DestroySurface(handle uint32) error
	Present(handle uint32, pixels []byte) error
}

// HTTPServer is a minimal userland HTTP endpoint contract, backed by a
// StreamTable exposing raw request/response bytes rather than the
// kernel understanding HTTP framing itself.
type HTTPServer interface {
	Serve(ctx context.Context, addr string) error
}

// SSHServer is the equivalent contract for a userland SSH endpoint.
type SSHServer interface {
	Serve(ctx context.Context, addr string) error
}
