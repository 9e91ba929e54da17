package object

import "testing"

import "norostb/kernel/kerr"

func TestPipeByteStreamRoundTrip(t *testing.T) {
	w, r := NewPipe()
	if _, code := w.Write([]byte("hello")); code != kerr.OK {
		t.Fatalf("write: %v", code)
	}
	if _, code := w.Write([]byte(" world")); code != kerr.OK {
		t.Fatalf("write: %v", code)
	}
	got, code := r.Read(0, 5)
	if code != kerr.OK || string(got) != "hello" {
		t.Fatalf("read: %q, %v", got, code)
	}
	got, code = r.Read(0, 64)
	if code != kerr.OK || string(got) != " world" {
		t.Fatalf("read: %q, %v", got, code)
	}
}

func TestPipeReadEmptyWouldBlock(t *testing.T) {
	_, r := NewPipe()
	if _, code := r.Read(0, 16); code != kerr.WouldBlock {
		t.Fatalf("expected WouldBlock, got %v", code)
	}
}

func TestPipeCloseDrainsThenReportsClosed(t *testing.T) {
	w, r := NewPipe()
	w.Write([]byte("x"))
	w.Close()
	if got, code := r.Read(0, 16); code != kerr.OK || string(got) != "x" {
		t.Fatalf("expected final drain, got %q %v", got, code)
	}
	if _, code := r.Read(0, 16); code != kerr.Closed {
		t.Fatalf("expected Closed after drain, got %v", code)
	}
}

func TestPipeWrongEndDenied(t *testing.T) {
	w, r := NewPipe()
	if _, code := w.Read(0, 1); code != kerr.InvalidOperation {
		t.Fatalf("write end Read should be InvalidOperation, got %v", code)
	}
	if _, code := r.Write([]byte("x")); code != kerr.InvalidOperation {
		t.Fatalf("read end Write should be InvalidOperation, got %v", code)
	}
}

func TestMessagePipeWholeMessageRoundTrip(t *testing.T) {
	w, r := NewMessagePipe()
	w.Write([]byte("first"))
	w.Write([]byte("second"))

	got, code := r.Read(0, 64)
	if code != kerr.OK || string(got) != "first" {
		t.Fatalf("read 1: %q %v", got, code)
	}
	got, code = r.Read(0, 64)
	if code != kerr.OK || string(got) != "second" {
		t.Fatalf("read 2: %q %v", got, code)
	}
}

func TestMessagePipeUndersizedBufferRejectedNoPartial(t *testing.T) {
	w, r := NewMessagePipe()
	w.Write([]byte("0123456789"))

	if _, code := r.Read(0, 4); code != kerr.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", code)
	}
	// message must still be intact for a correctly sized retry
	sz, code := r.GetMeta("next_size")
	if code != kerr.OK || len(sz) != 4 {
		t.Fatalf("next_size meta: %v %v", sz, code)
	}
	got, code := r.Read(0, 10)
	if code != kerr.OK || string(got) != "0123456789" {
		t.Fatalf("retry read: %q %v", got, code)
	}
}

func TestPipeSendShareDeliversTransfer(t *testing.T) {
	w, r := NewPipe()
	capObj := &Root{children: map[string]Object{}}
	tr := Transfer{Obj: capObj}
	if code := w.SendShare(tr); code != kerr.OK {
		t.Fatalf("SendShare: %v", code)
	}
	got, ok := r.LastTransfer()
	if !ok || got.Obj != capObj {
		t.Fatalf("expected transfer delivered, got %v %v", got, ok)
	}
}

func TestMessagePipeShareViaTable(t *testing.T) {
	tbl := New()
	w, r := NewMessagePipe()
	wh := tbl.Insert(w)
	capObj := NewRoot()
	ch := tbl.Insert(capObj)

	if code := tbl.Share(ch, wh); code != kerr.OK {
		t.Fatalf("Share: %v", code)
	}
	tr, ok := r.LastTransfer()
	if !ok || tr.Obj != capObj {
		t.Fatalf("expected capability delivered via share, got %v %v", tr, ok)
	}
}
