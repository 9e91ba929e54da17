//go:build linux || darwin

package frame

import "golang.org/x/sys/unix"

// allocPool carves out size bytes of anonymous shared memory from the
// host, standing in for the physical RAM the real kernel would have been
// handed by the bootloader's free-memory region. MAP_SHARED is used, not
// MAP_PRIVATE, because the pages
// handed out of this pool back I/O queue rings (kernel/ioqueue) and
// shared memory objects that are genuinely shared between the
// simulated kernel goroutine and simulated user goroutines.
func allocPool(size int64) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
}

func freePool(mem []byte) error {
	return unix.Munmap(mem)
}
