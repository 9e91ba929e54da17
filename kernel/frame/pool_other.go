//go:build !linux && !darwin

package frame

// allocPool falls back to a plain heap allocation on platforms without an
// anonymous-mmap syscall wrapper in golang.org/x/sys/unix. The kernel/user
// shared-memory illusion (see pool_unix.go) is only exercised on the
// platforms this module actually targets for testing.
func allocPool(size int64) ([]byte, error) {
	return make([]byte, size), nil
}

func freePool(mem []byte) error { return nil }
