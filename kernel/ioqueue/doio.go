package ioqueue

import (
	"encoding/binary"

	"norostb/kernel/kerr"
	"norostb/kernel/object"
)

// DoIo drains one submission from q, executes it against tbl, and pushes
// its completion. It reports whether a submission was actually present.
// Argument layout within a Submission.Args:
//
//	all ops: [0:4] handle (uint32 LE)
//	OpRead/OpPeek: [4:12] offset (uint64 LE), [12:16] length (uint32 LE)
//	OpWrite: [4:8] length (uint32 LE), [8:8+length] inline data
//	OpGetMeta: [4] key length, [5:5+n] key bytes
//	OpSetMeta: [4] key length, [5:5+n] key, [5+n] value length, value bytes
//	OpOpen/OpCreate/OpDestroy: [4] path length, [5:5+n] path bytes
//	OpSeek: [4] whence, [5:13] offset (int64 bits, LE)
//	OpClose/OpShare: OpShare adds [4:8] via-handle (uint32 LE)
func DoIo(q *Queue, tbl *object.Table) bool {
	sub, ok := q.PopSubmission()
	if !ok {
		return false
	}
	q.PushCompletion(exec(sub, tbl))
	return true
}

func exec(sub Submission, tbl *object.Table) Completion {
	a := sub.Args
	h := object.Handle(binary.LittleEndian.Uint32(a[0:4]))

	switch sub.Opcode {
	case OpRead, OpPeek:
		obj, code := tbl.Get(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		off := binary.LittleEndian.Uint64(a[4:12])
		length := binary.LittleEndian.Uint32(a[12:16])
		var data []byte
		if sub.Opcode == OpRead {
			data, code = obj.Read(off, length)
		} else {
			data, code = obj.Peek(off, length)
		}
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		return Completion{UserData: sub.UserData, Result: EncodeResult(uint32(len(data)))}

	case OpWrite:
		obj, code := tbl.Get(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		n := binary.LittleEndian.Uint32(a[4:8])
		if int(n) > len(a)-8 {
			return errCompletion(sub, kerr.InvalidArgument)
		}
		written, code := obj.Write(a[8 : 8+n])
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		return Completion{UserData: sub.UserData, Result: EncodeResult(written)}

	case OpGetMeta:
		obj, code := tbl.Get(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		n := a[4]
		key := string(a[5 : 5+n])
		val, code := obj.GetMeta(key)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		return Completion{UserData: sub.UserData, Result: EncodeResult(uint32(len(val)))}

	case OpSetMeta:
		obj, code := tbl.Get(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		n := a[4]
		key := string(a[5 : 5+n])
		vn := a[5+n]
		val := a[6+n : 6+n+vn]
		code = obj.SetMeta(key, val)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		return Completion{UserData: sub.UserData, Result: EncodeResult(0)}

	case OpOpen:
		obj, code := tbl.Get(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		n := a[4]
		path := string(a[5 : 5+n])
		child, code := obj.Open(path)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		newH := tbl.Insert(child)
		return Completion{UserData: sub.UserData, Result: EncodeResult(uint32(newH))}

	case OpCreate:
		obj, code := tbl.Get(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		n := a[4]
		path := string(a[5 : 5+n])
		child, code := obj.Create(path)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		newH := tbl.Insert(child)
		return Completion{UserData: sub.UserData, Result: EncodeResult(uint32(newH))}

	case OpDestroy:
		obj, code := tbl.Get(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		n := a[4]
		path := string(a[5 : 5+n])
		if code := obj.Destroy(path); code != kerr.OK {
			return errCompletion(sub, code)
		}
		return Completion{UserData: sub.UserData, Result: EncodeResult(0)}

	case OpSeek:
		obj, code := tbl.Get(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		whence := object.Whence(a[4])
		off := int64(binary.LittleEndian.Uint64(a[5:13]))
		pos, code := obj.Seek(whence, off)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		return Completion{UserData: sub.UserData, Result: EncodeResult(uint32(pos))}

	case OpClose:
		code := tbl.Close(h)
		if code != kerr.OK {
			return errCompletion(sub, code)
		}
		return Completion{UserData: sub.UserData, Result: EncodeResult(0)}

	case OpShare:
		via := object.Handle(binary.LittleEndian.Uint32(a[4:8]))
		if code := tbl.Share(h, via); code != kerr.OK {
			return errCompletion(sub, code)
		}
		return Completion{UserData: sub.UserData, Result: EncodeResult(0)}

	default:
		return errCompletion(sub, kerr.InvalidArgument)
	}
}

func errCompletion(sub Submission, code kerr.Code) Completion {
	return Completion{UserData: sub.UserData, Result: EncodeError(code)}
}
