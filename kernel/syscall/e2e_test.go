package syscall

import (
	"norostb/kernel/kerr"
	"norostb/kernel/object"
	"norostb/kernel/vmm"
	"testing"
)

// TestSharedCounterAcrossProcesses walks the "shared counter" scenario:
// one process builds a SharedMemory region, maps it into its own address
// space, writes a value, and shares the handle to a second process over a
// MessagePipe; the second process picks up the transfer, maps the same
// SharedSet window into its own address space, and reads back the same
// bytes.
func TestSharedCounterAcrossProcesses(t *testing.T) {
	p1, _ := newTestDispatcher(t)
	p2, _ := newTestDispatcher(t)

	counter, code := p1.NewSharedMemory(4096)
	if code != kerr.OK {
		t.Fatalf("p1 NewSharedMemory: %v", code)
	}
	if code := p1.MapObject(counter, vmm.VRange{Base: 0x10000, Length: 4096}, vmm.R|vmm.W); code != kerr.OK {
		t.Fatalf("p1 MapObject: %v", code)
	}
	if _, code := mustGet(t, p1, counter).Write([]byte{42, 0, 0, 0}); code != kerr.OK {
		t.Fatalf("p1 write counter: %v", code)
	}

	w, r, code := p1.NewMessagePipe()
	if code != kerr.OK {
		t.Fatalf("p1 NewMessagePipe: %v", code)
	}
	if code := p1.Share(counter, w); code != kerr.OK {
		t.Fatalf("p1 Share: %v", code)
	}

	tr := popTransfer(t, mustGet(t, p1, r))
	p2Handle := p2.proc.Handles.InsertTransfer(tr)

	if code := p2.MapObject(p2Handle, vmm.VRange{Base: 0x20000, Length: 4096}, vmm.R); code != kerr.OK {
		t.Fatalf("p2 MapObject: %v", code)
	}

	got, code := mustGet(t, p2, p2Handle).Read(0, 4)
	if code != kerr.OK {
		t.Fatalf("p2 read counter: %v", code)
	}
	if got[0] != 42 {
		t.Fatalf("expected counter value 42, got %d", got[0])
	}

	region, ok := mustGet(t, p1, counter).(*object.MemoryRegion)
	if !ok {
		t.Fatalf("expected counter to resolve to a MemoryRegion")
	}
	set, _, _, ok := region.SharedWindow()
	if !ok {
		t.Fatalf("expected counter to be shared-set backed")
	}
	if got := set.RefCount(); got != 2 {
		t.Fatalf("expected both p1 and p2 to hold a live mapping, set refcount = %d", got)
	}
}

// TestPipeStreamingAcrossProcesses walks the "pipe streaming" scenario: one
// process creates a Pipe and shares the read end to a second process (via a
// MessagePipe carrying the capability transfer), then writes 10,000 bytes in
// small chunks; the second process reads until the writer closes and the
// concatenated bytes must match exactly.
func TestPipeStreamingAcrossProcesses(t *testing.T) {
	p1, _ := newTestDispatcher(t)
	p2, _ := newTestDispatcher(t)

	w, r, code := p1.NewPipe()
	if code != kerr.OK {
		t.Fatalf("p1 NewPipe: %v", code)
	}

	carrierW, carrierR, code := p1.NewMessagePipe()
	if code != kerr.OK {
		t.Fatalf("p1 NewMessagePipe: %v", code)
	}
	if code := p1.Share(r, carrierW); code != kerr.OK {
		t.Fatalf("p1 Share read end: %v", code)
	}
	tr := popTransfer(t, mustGet(t, p1, carrierR))
	p2ReadHandle := p2.proc.Handles.InsertTransfer(tr)

	const total = 10000
	const chunk = 17
	sent := make([]byte, total)
	for i := range sent {
		sent[i] = byte(i)
	}

	writeObj := mustGet(t, p1, w)
	for off := 0; off < total; off += chunk {
		end := off + chunk
		if end > total {
			end = total
		}
		if _, code := writeObj.Write(sent[off:end]); code != kerr.OK {
			t.Fatalf("write chunk at %d: %v", off, code)
		}
	}
	if code := writeObj.Close(); code != kerr.OK {
		t.Fatalf("close write end: %v", code)
	}

	readObj := mustGet(t, p2, p2ReadHandle)
	var received []byte
	for {
		buf, code := readObj.Read(0, 4096)
		if code == kerr.Closed {
			break
		}
		if code != kerr.OK {
			t.Fatalf("read: %v", code)
		}
		received = append(received, buf...)
	}
	if len(received) != total {
		t.Fatalf("expected %d bytes, got %d", total, len(received))
	}
	for i := range sent {
		if received[i] != sent[i] {
			t.Fatalf("byte mismatch at %d: sent %d, got %d", i, sent[i], received[i])
		}
	}
}

func mustGet(t *testing.T, d *Dispatcher, h object.Handle) object.Object {
	t.Helper()
	obj, code := d.proc.Handles.Get(h)
	if code != kerr.OK {
		t.Fatalf("Get handle %d: %v", h, code)
	}
	return obj
}

// popTransfer pops a pending Share transfer off a Pipe or MessagePipe read
// end, the same way a receiving process would before InsertTransfer.
func popTransfer(t *testing.T, readEnd object.Object) object.Transfer {
	t.Helper()
	peer, ok := readEnd.(interface {
		LastTransfer() (object.Transfer, bool)
	})
	if !ok {
		t.Fatalf("read end does not implement LastTransfer")
	}
	tr, ok := peer.LastTransfer()
	if !ok {
		t.Fatalf("expected a pending transfer")
	}
	return tr
}
