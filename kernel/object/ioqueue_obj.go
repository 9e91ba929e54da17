package object

import (
	"norostb/kernel/ioqueue"
	"norostb/kernel/kerr"
)

// IoQueueObject is the handle a process holds on its own submission/
// completion ring pair. The common Read/Write surface doesn't fit an
// I/O queue (it's driven by DoIo/PollIoQueue/WaitIoQueue instead), so
// only Close is meaningful; every other op falls back to Base's
// InvalidOperation.
type IoQueueObject struct {
	Base
	Queue *ioqueue.Queue
}

// NewIoQueueObject wraps q for insertion into a process's handle table.
func NewIoQueueObject(q *ioqueue.Queue) *IoQueueObject {
	return &IoQueueObject{Queue: q}
}

func (o *IoQueueObject) Close() kerr.Code { return kerr.OK }
