package object

import (
	"encoding/binary"
	"sync"

	"norostb/kernel/kerr"
)

// pipeCore is the shared state behind one Pipe/MessagePipe pair. Both ends
// see the same core; Pipe/MessagePipe just gate which operations their
// end supports.
type pipeCore struct {
	mu sync.Mutex

	// Pipe (byte stream) state.
	bytes []byte

	// MessagePipe (datagram) state: one []byte per queued message.
	messages [][]byte

	// Capability transfers in flight via Share, delivered out of band
	// from ordinary data (see object.go's Sharer interface).
	transfers []Transfer

	writerClosed bool
	readerClosed bool
}

// Pipe is one end of a unidirectional byte-stream channel.
type Pipe struct {
	Base
	core *pipeCore
	writable bool
	lastXfer *Transfer
}

// NewPipe creates a connected write-end/read-end pair.
func NewPipe() (write, read *Pipe) {
	c := &pipeCore{}
	return &Pipe{core: c, writable: true}, &Pipe{core: c, writable: false}
}

func (p *Pipe) Write(data []byte) (uint32, kerr.Code) {
	if !p.writable {
		return 0, kerr.InvalidOperation
	}
	p.core.mu.Lock()
	defer p.core.mu.Unlock()
	if p.core.readerClosed {
		return 0, kerr.Closed
	}
	p.core.bytes = append(p.core.bytes, data...)
	return uint32(len(data)), kerr.OK
}

func (p *Pipe) Read(off uint64, length uint32) ([]byte, kerr.Code) {
	if p.writable {
		return nil, kerr.InvalidOperation
	}
	p.core.mu.Lock()
	defer p.core.mu.Unlock()
	if len(p.core.bytes) == 0 {
		if p.core.writerClosed {
			return []byte{}, kerr.Closed
		}
		return nil, kerr.WouldBlock
	}
	n := uint32(len(p.core.bytes))
	if length < n {
		n = length
	}
	out := append([]byte(nil), p.core.bytes[:n]...)
	p.core.bytes = p.core.bytes[n:]
	return out, kerr.OK
}

func (p *Pipe) Close() kerr.Code {
	p.core.mu.Lock()
	defer p.core.mu.Unlock()
	if p.writable {
		p.core.writerClosed = true
	} else {
		p.core.readerClosed = true
	}
	return kerr.OK
}

// SendShare implements Sharer: the capability rides along as an
// out-of-band transfer, picked up by the peer's next Read via LastTransfer.
func (p *Pipe) SendShare(tr Transfer) kerr.Code {
	p.core.mu.Lock()
	defer p.core.mu.Unlock()
	if p.core.readerClosed || p.core.writerClosed {
		return kerr.ServerGone
	}
	p.core.transfers = append(p.core.transfers, tr)
	return kerr.OK
}

// LastTransfer pops one pending capability transfer for the reading end.
func (p *Pipe) LastTransfer() (Transfer, bool) {
	p.core.mu.Lock()
	defer p.core.mu.Unlock()
	if len(p.core.transfers) == 0 {
		return Transfer{}, false
	}
	tr := p.core.transfers[0]
	p.core.transfers = p.core.transfers[1:]
	return tr, true
}

// MessagePipe is one end of a unidirectional datagram channel: every Read
// returns exactly one prior Write's payload.
type MessagePipe struct {
	Base
	core *pipeCore
	writable bool
}

// NewMessagePipe creates a connected write-end/read-end pair.
func NewMessagePipe() (write, read *MessagePipe) {
	c := &pipeCore{}
	return &MessagePipe{core: c, writable: true}, &MessagePipe{core: c, writable: false}
}

func (m *MessagePipe) Write(data []byte) (uint32, kerr.Code) {
	if !m.writable {
		return 0, kerr.InvalidOperation
	}
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	if m.core.readerClosed {
		return 0, kerr.Closed
	}
	m.core.messages = append(m.core.messages, append([]byte(nil), data...))
	return uint32(len(data)), kerr.OK
}

// GetMeta("next_size") reports the byte length of the next queued message
// as a little-endian uint32, so a client can size its read buffer before
// calling Read (avoiding the truncation InvalidArgument below).
func (m *MessagePipe) GetMeta(key string) ([]byte, kerr.Code) {
	if key != "next_size" {
		return nil, kerr.NotFound
	}
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	if len(m.core.messages) == 0 {
		return nil, kerr.NotFound
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(m.core.messages[0])))
	return buf, kerr.OK
}

func (m *MessagePipe) Read(off uint64, length uint32) ([]byte, kerr.Code) {
	if m.writable {
		return nil, kerr.InvalidOperation
	}
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	if len(m.core.messages) == 0 {
		if m.core.writerClosed {
			return nil, kerr.Closed
		}
		return nil, kerr.WouldBlock
	}
	next := m.core.messages[0]
	if uint32(len(next)) > length {
		return nil, kerr.InvalidArgument
	}
	m.core.messages = m.core.messages[1:]
	return next, kerr.OK
}

func (m *MessagePipe) Close() kerr.Code {
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	if m.writable {
		m.core.writerClosed = true
	} else {
		m.core.readerClosed = true
	}
	return kerr.OK
}

func (m *MessagePipe) SendShare(tr Transfer) kerr.Code {
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	if m.core.readerClosed || m.core.writerClosed {
		return kerr.ServerGone
	}
	m.core.transfers = append(m.core.transfers, tr)
	return kerr.OK
}

func (m *MessagePipe) LastTransfer() (Transfer, bool) {
	m.core.mu.Lock()
	defer m.core.mu.Unlock()
	if len(m.core.transfers) == 0 {
		return Transfer{}, false
	}
	tr := m.core.transfers[0]
	m.core.transfers = m.core.transfers[1:]
	return tr, true
}
