package object

import (
	"testing"
	"time"

	"norostb/kernel/frame"
	"norostb/kernel/kerr"
	"norostb/kernel/streamtable"
)

func TestStreamTableObjectReadWriteRoundTrip(t *testing.T) {
	tbl := streamtable.New(4)
	fa, err := frame.New(8, 1)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	defer fa.Close()
	target, code := NewAnonMemoryRegion(fa, 4096)
	if code != kerr.OK {
		t.Fatalf("region: %v", code)
	}
	server := NewStreamTableServer(tbl, target)
	client := NewStreamTableObject(tbl)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				if !server.Serve() {
					time.Sleep(time.Millisecond)
				}
			}
		}
	}()
	defer close(stop)

	if _, code := client.Write([]byte("abc")); code != kerr.OK {
		t.Fatalf("write: %v", code)
	}
	got, code := client.Read(0, 3)
	if code != kerr.OK || string(got) != "abc" {
		t.Fatalf("read: %q %v", got, code)
	}
}

func TestStreamTableObjectReadRejectsOversizedLength(t *testing.T) {
	tbl := streamtable.New(4)
	fa, err := frame.New(8, 1)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	defer fa.Close()
	target, code := NewAnonMemoryRegion(fa, 4096)
	if code != kerr.OK {
		t.Fatalf("region: %v", code)
	}
	if _, code := target.WriteAt(0, make([]byte, 4096)); code != kerr.OK {
		t.Fatalf("seed write: %v", code)
	}
	server := NewStreamTableServer(tbl, target)
	client := NewStreamTableObject(tbl)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				if !server.Serve() {
					time.Sleep(time.Millisecond)
				}
			}
		}
	}()
	defer close(stop)

	// A read whose requested length exceeds the response's inline payload
	// capacity must be rejected outright, not silently truncated with a
	// Result that overstates how many bytes actually came back.
	got, code := client.Read(0, 1024)
	if code != kerr.InvalidArgument {
		t.Fatalf("Read(length=1024) code = %v, want InvalidArgument", code)
	}
	if got != nil {
		t.Fatalf("Read(length=1024) data = %v, want nil", got)
	}
}
