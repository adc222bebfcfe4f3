// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import (
	"bufio"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"unicode/utf8"
)

// State is the lifecycle phase of a connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is a server-side WebSocket connection produced by Upgrader.Upgrade.
// The Serve method reads and dispatches frames until the connection closes.
//
// The write methods may be called concurrently from any goroutine: a mutex
// admits one writer at a time, each frame is written with a single call to
// the underlying connection, and callers are served in the order they
// acquire the lock.
type Conn struct {
	conn        net.Conn
	br          *bufio.Reader
	policy      Policy
	subprotocol string

	plugin  Plugin
	session *Session

	state atomic.Int32

	// Write serializer. closeSent and writeBuf are guarded by mu. A frame
	// buffer grown past writeBufLimit is not retained between frames.
	mu            sync.Mutex
	writeBuf      []byte
	writeBufLimit int
	closeSent     bool
	rawWrites     bool

	// Partial-message reassembly, owned by the Serve goroutine. The
	// accumulated size is tracked separately from len(msgBuf) because a
	// frame's declared length counts against the limit before its payload
	// is read.
	assembling bool
	msgOpcode  int
	msgSize    uint64
	msgBuf     []byte
}

func newConn(conn net.Conn, br *bufio.Reader, policy Policy, writeBufSize int) *Conn {
	if br == nil {
		br = bufio.NewReader(conn)
	}
	return &Conn{
		conn:          conn,
		br:            br,
		policy:        policy,
		writeBuf:      make([]byte, 0, writeBufSize),
		writeBufLimit: maxFrameHeaderSize + writeBufSize,
	}
}

// State returns the connection's lifecycle phase.
func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// Subprotocol returns the negotiated subprotocol, or the empty string if
// none was selected.
func (c *Conn) Subprotocol() string { return c.subprotocol }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// exceedsLimit reports whether size violates the policy's MaxMessageSize.
func (c *Conn) exceedsLimit(size uint64) bool {
	return c.policy.MaxMessageSize != 0 && size > c.policy.MaxMessageSize
}

// WriteMessage sends a complete message or control frame. messageType must
// be TextMessage, BinaryMessage, PingMessage or PongMessage.
func (c *Conn) WriteMessage(messageType int, data []byte) error {
	switch messageType {
	case TextMessage, BinaryMessage:
	case PingMessage, PongMessage:
		if len(data) > maxControlFramePayloadSize {
			return errProtocol("control frame payload exceeds 125 bytes")
		}
	default:
		return errProtocol("bad message type")
	}
	return c.writeFrame(messageType, data)
}

// WriteClose sends a close frame carrying the given code and reason and
// moves the connection to the Closing state. A zero code sends an empty
// close payload, which the peer reports as 1005. Only the first close frame
// is sent; later calls return ErrCloseSent. Before the opening handshake has
// completed nothing may be written, so WriteClose returns ErrNotOpen.
func (c *Conn) WriteClose(code int, reason string) error {
	payload := closePayload(code, reason)
	if len(payload) > maxControlFramePayloadSize {
		return errProtocol("control frame payload exceeds 125 bytes")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeSent {
		return ErrCloseSent
	}
	if s := c.State(); s != StateOpen && s != StateClosing {
		return ErrNotOpen
	}
	c.closeSent = true
	c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
	return c.writeFrameLocked(CloseMessage, payload)
}

func (c *Conn) writeFrame(opcode int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeSent {
		return ErrCloseSent
	}
	if s := c.State(); s != StateOpen && s != StateClosing {
		return ErrNotOpen
	}
	return c.writeFrameLocked(opcode, payload)
}

// writeFrameLocked assembles header and payload into one buffer and writes
// it with a single Write call, so a frame's bytes are never interleaved with
// another writer's.
func (c *Conn) writeFrameLocked(opcode int, payload []byte) error {
	buf := appendFrameHeader(c.writeBuf[:0], true, opcode, len(payload))
	buf = append(buf, payload...)
	_, err := c.conn.Write(buf)
	if cap(buf) <= c.writeBufLimit {
		c.writeBuf = buf[:0]
	}
	return err
}

// rawWrite bypasses the frame encoder and writes p directly to the
// transport, still under the write serializer. It exists for test harnesses
// that need to produce malformed output; it is not reachable through the
// Session surface handed to plugins.
func (c *Conn) rawWrite(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.rawWrites {
		return errors.New("websocket: raw writes are not enabled on this connection")
	}
	_, err := c.conn.Write(p)
	return err
}

// Serve runs the frame dispatch loop until the connection closes. It must
// be called exactly once, on the Conn returned by Upgrade. When Serve
// returns the underlying transport has been closed and the plugin notified.
func (c *Conn) Serve() {
	defer func() {
		c.setState(StateClosed)
		c.conn.Close()
		if c.plugin != nil {
			dispatchDisconnect(c.plugin, c.session)
		}
	}()

	for {
		h, err := readFrameHeader(c.br)
		if err != nil {
			var pe ProtocolError
			if errors.As(err, &pe) {
				c.WriteClose(CloseProtocolError, "")
			}
			return
		}
		if !h.masked {
			// Client-to-server frames must be masked.
			c.WriteClose(CloseProtocolError, "")
			return
		}

		if isControl(h.opcode) {
			if !c.handleControl(h) {
				return
			}
			continue
		}
		if !c.handleData(h) {
			return
		}
	}
}

// handleControl processes a close, ping or pong frame. It returns false when
// the dispatch loop should stop.
func (c *Conn) handleControl(h frameHeader) bool {
	// The size guard applies to control payloads too; a close frame's code
	// and reason count together. The declared length is enough to reject.
	if c.exceedsLimit(h.length) {
		c.discardPartial()
		c.WriteClose(CloseMessageTooBig, "")
		return false
	}

	if err := readMaskKey(c.br, &h); err != nil {
		return false
	}
	payload, err := readPayload(c.br, h)
	if err != nil {
		return false
	}

	switch h.opcode {
	case PingMessage:
		// Answer between fragments without disturbing reassembly.
		c.WriteMessage(PongMessage, payload)
		return true
	case PongMessage:
		return true
	default:
		c.handleClose(payload)
		return false
	}
}

// handleClose validates a received close payload and completes the closing
// handshake.
func (c *Conn) handleClose(payload []byte) {
	code := 0
	if len(payload) == 1 {
		c.WriteClose(CloseProtocolError, "")
		return
	}
	if len(payload) >= 2 {
		code = int(binary.BigEndian.Uint16(payload))
		if !utf8.Valid(payload[2:]) {
			c.WriteClose(CloseProtocolError, "")
			return
		}
		if !c.policy.allowCloseCode(code) {
			c.WriteClose(CloseProtocolError, "")
			return
		}
	}
	// Echo the close code unless we already sent one.
	c.WriteClose(code, "")
}

// handleData accumulates a data frame into the in-flight message and
// delivers the message when its final fragment arrives. It returns false
// when the dispatch loop should stop.
func (c *Conn) handleData(h frameHeader) bool {
	if h.opcode == continuationFrame {
		if !c.assembling {
			c.WriteClose(CloseProtocolError, "")
			return false
		}
	} else {
		if c.assembling {
			c.WriteClose(CloseProtocolError, "")
			return false
		}
		c.assembling = true
		c.msgOpcode = h.opcode
		c.msgSize = 0
		c.msgBuf = nil
	}

	c.msgSize = addSize(c.msgSize, h.length)
	if c.exceedsLimit(c.msgSize) {
		c.discardPartial()
		c.WriteClose(CloseMessageTooBig, "")
		return false
	}

	if err := readMaskKey(c.br, &h); err != nil {
		return false
	}
	payload, err := readPayload(c.br, h)
	if err != nil {
		return false
	}
	c.msgBuf = append(c.msgBuf, payload...)

	if !h.fin {
		return true
	}

	opcode, data := c.msgOpcode, c.msgBuf
	c.discardPartial()
	if err := dispatchMessage(c.plugin, c.session, opcode, data); err != nil {
		c.WriteClose(CloseInternalServerErr, "")
		return false
	}
	return true
}

func (c *Conn) discardPartial() {
	c.assembling = false
	c.msgBuf = nil
	c.msgSize = 0
}
