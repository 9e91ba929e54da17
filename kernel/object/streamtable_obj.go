package object

import (
	"context"
	"encoding/binary"

	"norostb/kernel/ioqueue"
	"norostb/kernel/kerr"
	"norostb/kernel/streamtable"
)

// StreamTableObject is the handle a client holds onto a server's
// streamtable.Table: Read/Write/GetMeta/etc. become synchronous request/
// response round trips over the shared table.
type StreamTableObject struct {
	Base
	tbl *streamtable.Table
	ctx context.Context
}

// NewStreamTableObject wraps tbl for client-side object-style access.
func NewStreamTableObject(tbl *streamtable.Table) *StreamTableObject {
	return &StreamTableObject{tbl: tbl, ctx: context.Background()}
}

func (s *StreamTableObject) roundTrip(op ioqueue.Opcode, payload [48]byte) (streamtable.Response, kerr.Code) {
	return s.tbl.Do(s.ctx, op, payload)
}

func (s *StreamTableObject) Read(off uint64, length uint32) ([]byte, kerr.Code) {
	var p [48]byte
	binary.LittleEndian.PutUint64(p[0:8], off)
	binary.LittleEndian.PutUint32(p[8:12], length)
	resp, code := s.roundTrip(ioqueue.OpRead, p)
	if code != kerr.OK {
		return nil, code
	}
	if resp.Result < 0 {
		return nil, kerr.Code(-resp.Result)
	}
	n := uint32(resp.Result)
	if n > uint32(len(resp.Payload)) {
		n = uint32(len(resp.Payload))
	}
	return append([]byte(nil), resp.Payload[:n]...), kerr.OK
}

func (s *StreamTableObject) Write(data []byte) (uint32, kerr.Code) {
	var p [48]byte
	n := copy(p[:], data)
	resp, code := s.roundTrip(ioqueue.OpWrite, p)
	if code != kerr.OK {
		return 0, code
	}
	if resp.Result < 0 {
		return 0, kerr.Code(-resp.Result)
	}
	return uint32(n), kerr.OK
}

func (s *StreamTableObject) Close() kerr.Code {
	s.tbl.Close()
	return kerr.OK
}

// StreamTableServer is the server-side handle: a driver process pulls
// requests off it and answers them against the real object it fronts.
type StreamTableServer struct {
	Base
	tbl *streamtable.Table
	target Object
}

// NewStreamTableServer creates a server-side wrapper answering requests
// against target.
func NewStreamTableServer(tbl *streamtable.Table, target Object) *StreamTableServer {
	return &StreamTableServer{tbl: tbl, target: target}
}

// Serve answers one pending request, if any, and reports whether it did.
func (s *StreamTableServer) Serve() bool {
	req, ok := s.tbl.PollRequest()
	if !ok {
		return false
	}
	var resp streamtable.Response
	resp.ID = req.ID
	switch req.Opcode {
	case ioqueue.OpRead:
		off := binary.LittleEndian.Uint64(req.Payload[0:8])
		length := binary.LittleEndian.Uint32(req.Payload[8:12])
		if int(length) > len(resp.Payload) {
			// The inline response payload can't carry more than payloadSize
			// bytes; a client asking for more would otherwise get a Result
			// claiming a byte count the wire payload never actually held.
			resp.Result = -int64(kerr.InvalidArgument)
			break
		}
		data, code := s.target.Read(off, length)
		if code != kerr.OK {
			resp.Result = -int64(code)
		} else {
			resp.Result = int64(copy(resp.Payload[:], data))
		}
	case ioqueue.OpWrite:
		n, code := s.target.Write(req.Payload[:])
		if code != kerr.OK {
			resp.Result = -int64(code)
		} else {
			resp.Result = int64(n)
		}
	default:
		resp.Result = -int64(kerr.InvalidOperation)
	}
	s.tbl.PushResponse(resp)
	return true
}

func (s *StreamTableServer) Close() kerr.Code {
	s.tbl.Close()
	return kerr.OK
}
