// Package object implements the object & handle table: process-local
// integer handles resolving to kernel objects, and the common operation
// surface every object variant answers.
package object

import "norostb/kernel/kerr"

// Handle is a process-local integer naming a kernel Object.
type Handle uint32

// Whence selects the reference point for Seek.
type Whence uint8

const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// Object is the common operation surface every kernel object variant
// answers. Not every variant implements every operation; unsupported
// operations return InvalidOperation. Concrete variants embed Base to get
// that default for free and override only what they support.
type Object interface {
	Read(off uint64, length uint32) ([]byte, kerr.Code)
	Peek(off uint64, length uint32) ([]byte, kerr.Code)
	Write(data []byte) (uint32, kerr.Code)
	GetMeta(key string) ([]byte, kerr.Code)
	SetMeta(key string, val []byte) kerr.Code
	Open(path string) (Object, kerr.Code)
	Create(path string) (Object, kerr.Code)
	Destroy(path string) kerr.Code
	Seek(whence Whence, off int64) (uint64, kerr.Code)
	Close() kerr.Code
}

// Base implements Object with InvalidOperation for every method except
// Close, which succeeds with OK. Concrete object variants embed it and
// override the operations they support.
type Base struct{}

func (Base) Read(uint64, uint32) ([]byte, kerr.Code) { return nil, kerr.InvalidOperation }
func (Base) Peek(uint64, uint32) ([]byte, kerr.Code) { return nil, kerr.InvalidOperation }
func (Base) Write([]byte) (uint32, kerr.Code) { return 0, kerr.InvalidOperation }
func (Base) GetMeta(string) ([]byte, kerr.Code) { return nil, kerr.InvalidOperation }
func (Base) SetMeta(string, []byte) kerr.Code { return kerr.InvalidOperation }
func (Base) Open(string) (Object, kerr.Code) { return nil, kerr.InvalidOperation }
func (Base) Create(string) (Object, kerr.Code) { return nil, kerr.InvalidOperation }
func (Base) Destroy(string) kerr.Code { return kerr.InvalidOperation }
func (Base) Seek(Whence, int64) (uint64, kerr.Code) { return 0, kerr.InvalidOperation }
func (Base) Close() kerr.Code { return kerr.OK }

// Sharer is implemented by object variants that can carry a transferred
// handle to a peer process: Pipe and MessagePipe. The stream-table objects
// (StreamTableObject, StreamTableServer) do not implement it, so sharing
// through a stream-table handle fails with InvalidOperation. Table.Share
// uses it to implement the common Share(handle) operation without every
// object needing to know about cross-process handle tables.
type Sharer interface {
	// SendShare enqueues a capability transfer (the shared object plus its
	// live entry) to whichever process reads the peer end next.
	SendShare(share Transfer) kerr.Code
}

// Transfer is a capability in flight across a Pipe or MessagePipe Share
// operation.
type Transfer struct {
	Obj Object
	refs *int32
}
