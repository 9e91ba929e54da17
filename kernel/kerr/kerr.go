// Package kerr defines the error taxonomy shared by every kernel entry
// point. Kernel operations never return a Go error across the syscall
// boundary; they return a Code so the value can be copied verbatim into a
// completion entry or a stream-table response.
package kerr

// Code is a kernel result code.
type Code uint8

const (
	OK Code = iota
	InvalidHandle
	InvalidOperation
	PermissionDenied
	OutOfMemory
	AddressRangeConflict
	InvalidArgument
	WouldBlock
	Cancelled
	AlreadyCompleted
	Timeout
	Closed
	ServerGone
	RingFull
	NotFound
	AlreadyExists
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case InvalidHandle:
		return "invalid handle"
	case InvalidOperation:
		return "invalid operation"
	case PermissionDenied:
		return "permission denied"
	case OutOfMemory:
		return "out of memory"
	case AddressRangeConflict:
		return "address range conflict"
	case InvalidArgument:
		return "invalid argument"
	case WouldBlock:
		return "would block"
	case Cancelled:
		return "cancelled"
	case AlreadyCompleted:
		return "already completed"
	case Timeout:
		return "timeout"
	case Closed:
		return "closed"
	case ServerGone:
		return "server gone"
	case RingFull:
		return "ring full"
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	default:
		return "unknown"
	}
}

// Ok reports whether c is the success code.
func (c Code) Ok() bool { return c == OK }
