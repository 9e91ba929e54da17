// Command init is the first userland process: a minimal line-oriented
// shell that exercises the kernel object/syscall ABI end to end
// (allocate memory, then read and write it through an I/O queue) the
// way a real init would before handing off to a service manager.
package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"

	"github.com/google/shlex"

	"norostb/kernel/frame"
	"norostb/kernel/ioqueue"
	"norostb/kernel/kerr"
	"norostb/kernel/object"
	"norostb/kernel/sched"
	"norostb/kernel/syscall"
	"norostb/process"
)

type shell struct {
	d *syscall.Dispatcher
	qh object.Handle
	memory map[string]object.Handle
}

func main() {
	fa, err := frame.New(4096, 1)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init: frame allocator:", err)
		os.Exit(1)
	}
	defer fa.Close()

	group := sched.NewProcessGroup(1, 5)
	proc := process.New(1, fa, group, nil)
	d := syscall.New(proc, fa)

	qh, code := d.CreateIoQueue(16, 16)
	if code != kerr.OK {
		fmt.Fprintln(os.Stderr, "init: create io queue:", code)
		os.Exit(1)
	}

	sh := &shell{d: d, qh: qh, memory: map[string]object.Handle{}}

	fmt.Println("norostb init shell. commands: alloc <name> <bytes>, write <name> <text>, read <name> <len>, exit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields, err := shlex.Split(scanner.Text())
		if err != nil || len(fields) == 0 {
			continue
		}
		if !sh.dispatch(fields) {
			break
		}
	}
}

func (s *shell) dispatch(fields []string) bool {
	switch fields[0] {
	case "exit":
		return false
	case "alloc":
		if len(fields) != 3 {
			fmt.Println("usage: alloc <name> <bytes>")
			return true
		}
		n, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			fmt.Println("bad size:", err)
			return true
		}
		h, code := s.d.AllocMemory(n)
		if code != kerr.OK {
			fmt.Println("alloc failed:", code)
			return true
		}
		s.memory[fields[1]] = h
		fmt.Println("ok, handle", h)
	case "write":
		if len(fields) < 3 {
			fmt.Println("usage: write <name> <text>")
			return true
		}
		h, ok := s.memory[fields[1]]
		if !ok {
			fmt.Println("no such object:", fields[1])
			return true
		}
		data := []byte(fields[2])
		var sub ioqueue.Submission
		sub.Opcode = ioqueue.OpWrite
		binary.LittleEndian.PutUint32(sub.Args[0:4], uint32(h))
		binary.LittleEndian.PutUint32(sub.Args[4:8], uint32(len(data)))
		copy(sub.Args[8:], data)
		s.submitAndWait(sub)
	case "read":
		if len(fields) != 3 {
			fmt.Println("usage: read <name> <len>")
			return true
		}
		h, ok := s.memory[fields[1]]
		if !ok {
			fmt.Println("no such object:", fields[1])
			return true
		}
		n, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			fmt.Println("bad length:", err)
			return true
		}
		var sub ioqueue.Submission
		sub.Opcode = ioqueue.OpRead
		binary.LittleEndian.PutUint32(sub.Args[0:4], uint32(h))
		binary.LittleEndian.PutUint64(sub.Args[4:12], 0)
		binary.LittleEndian.PutUint32(sub.Args[12:16], uint32(n))
		s.submitAndWait(sub)
	default:
		fmt.Println("unknown command:", fields[0])
	}
	return true
}

func (s *shell) submitAndWait(sub ioqueue.Submission) {
	if code := s.d.Submit(s.qh, sub); code != kerr.OK {
		fmt.Println("submit:", code)
		return
	}
	if _, code := s.d.DoIo(s.qh); code != kerr.OK {
		fmt.Println("do io:", code)
		return
	}
	c, ok, code := s.d.PollIoQueue(s.qh)
	if code != kerr.OK || !ok {
		fmt.Println("no completion")
		return
	}
	if v, code := c.Decode(); code != kerr.OK {
		fmt.Println("error:", code)
	} else {
		fmt.Println("ok:", v)
	}
}
