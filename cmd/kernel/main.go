// Command kernel boots a Norost B kernel instance on the host: it lays
// out the frame allocator over a fixed-size mmap-backed memory pool,
// mounts the object namespace root, and starts the hart executors and
// the virtual syscall clock, the sequence a real bootloader handoff
// would trigger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"norostb/boot"
	"norostb/internal/buildinfo"
	"norostb/kernel/frame"
	"norostb/kernel/kerr"
	"norostb/kernel/klog"
	"norostb/kernel/object"
	"norostb/kernel/sched"
	"norostb/kernel/vsyscall"
)

func main() {
	memMiB := flag.Int("mem", 64, "size in MiB of the frame allocator's backing pool")
	harts := flag.Int("harts", runtime.NumCPU(), "number of concurrent hart executors")
	flag.Parse()

	log := klog.NewRingSink(256)
	log.WriteLine(fmt.Sprintf("norostb kernel %s booting", buildinfo.Short()))

	pages := (*memMiB * 1024 * 1024) / frame.PageSize
	info := boot.Info{
		FreeMemory: []boot.Region{{Base: 0, Length: uint64(*memMiB) * 1024 * 1024}},
	}
	log.WriteLine(fmt.Sprintf("boot: %d bytes free across %d region(s)", info.TotalFreeBytes(), len(info.FreeMemory)))

	fa, err := frame.New(pages, *harts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "frame allocator init failed:", err)
		os.Exit(1)
	}
	defer fa.Close()

	root := object.NewRoot()
	root.Mount("sys/log", newLogObject(log))

	clockPage := vsyscall.NewPage()
	clock := vsyscall.NewClock(clockPage, time.Millisecond)
	defer clock.Stop()

	scheduler := sched.New(50*time.Millisecond, 1, 20)
	executors := sched.NewExecutors(scheduler, int64(*harts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for h := 0; h < *harts; h++ {
		hartID := h
		g.Go(func() error {
			err := executors.Run(gctx, hartID)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	log.WriteLine(fmt.Sprintf("boot complete: %d hart(s), %d free pages", *harts, fa.FreePages()))

	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "kernel halted:", err)
		os.Exit(1)
	}
}

// logObject exposes the boot ring log as a read-only kernel object,
// mounted at /sys/log so any process can read startup diagnostics.
type logObject struct {
	object.Base
	sink *klog.RingSink
}

func newLogObject(sink *klog.RingSink) *logObject { return &logObject{sink: sink} }

func (l *logObject) Read(off uint64, length uint32) ([]byte, kerr.Code) {
	var buf []byte
	for _, line := range l.sink.Lines() {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if off >= uint64(len(buf)) {
		return []byte{}, kerr.OK
	}
	end := off + uint64(length)
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}
	return buf[off:end], kerr.OK
}

func (l *logObject) Peek(off uint64, length uint32) ([]byte, kerr.Code) {
	return l.Read(off, length)
}
