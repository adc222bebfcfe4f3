// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// Message types copied from RFC 6455 section 11.8. Data messages use
// TextMessage or BinaryMessage; the remaining opcodes identify control
// frames.
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
	PingMessage   = 9
	PongMessage   = 10
)

const continuationFrame = 0

// Close codes defined in RFC 6455 section 11.7.
const (
	CloseNormalClosure           = 1000
	CloseGoingAway               = 1001
	CloseProtocolError           = 1002
	CloseUnsupportedData         = 1003
	CloseNoStatusReceived        = 1005
	CloseAbnormalClosure         = 1006
	CloseInvalidFramePayloadData = 1007
	ClosePolicyViolation         = 1008
	CloseMessageTooBig           = 1009
	CloseMandatoryExtension      = 1010
	CloseInternalServerErr       = 1011
	CloseServiceRestart          = 1012
	CloseTryAgainLater           = 1013
	CloseTLSHandshake            = 1015
)

const (
	maxFrameHeaderSize  = 2 + 8 + 4 // fixed header + length + mask
	maxControlFramePayloadSize = 125

	finalBit = 1 << 7
	rsv1Bit  = 1 << 6
	rsv2Bit  = 1 << 5
	rsv3Bit  = 1 << 4
	maskBit  = 1 << 7
)

func isControl(opcode int) bool { return opcode >= CloseMessage }
func isData(opcode int) bool    { return opcode == TextMessage || opcode == BinaryMessage }

// frameHeader is the decoded fixed portion of a wire frame. The payload
// length is kept unsigned so that lengths with the 63rd bit set cannot be
// misread as small or negative values.
type frameHeader struct {
	fin    bool
	opcode int
	masked bool
	mask   [4]byte
	length uint64
}

// readFrameHeader decodes one frame header from br, up to but not including
// the masking key, and validates the parts that do not depend on the
// connection's role or policy: the reserved bits must be zero (no extensions
// are negotiated), the opcode must be known, and control frames must be
// final with a payload of at most 125 bytes. The 64-bit extended length must
// not have its most significant bit set.
//
// The masking key is read separately by readMaskKey so that the caller can
// reject an over-limit declared length as soon as it arrives, before the
// peer is required to send any more of the frame.
func readFrameHeader(br *bufio.Reader) (frameHeader, error) {
	var h frameHeader

	b0, err := br.ReadByte()
	if err != nil {
		return h, err
	}
	if b0&(rsv1Bit|rsv2Bit|rsv3Bit) != 0 {
		return h, errProtocol("unexpected reserved bits")
	}
	h.fin = b0&finalBit != 0
	h.opcode = int(b0 & 0xf)

	switch h.opcode {
	case continuationFrame, TextMessage, BinaryMessage:
	case CloseMessage, PingMessage, PongMessage:
		if !h.fin {
			return h, errProtocol("fragmented control frame")
		}
	default:
		return h, errProtocol("unknown opcode")
	}

	b1, err := br.ReadByte()
	if err != nil {
		return h, err
	}
	h.masked = b1&maskBit != 0
	h.length = uint64(b1 & 0x7f)

	switch h.length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(br, ext[:]); err != nil {
			return h, err
		}
		h.length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(br, ext[:]); err != nil {
			return h, err
		}
		h.length = binary.BigEndian.Uint64(ext[:])
		if h.length&(1<<63) != 0 {
			return h, errProtocol("payload length with high bit set")
		}
	}

	if isControl(h.opcode) && h.length > maxControlFramePayloadSize {
		return h, errProtocol("control frame payload exceeds 125 bytes")
	}
	return h, nil
}

// readMaskKey reads the masking key of a masked frame. It is a no-op for
// unmasked frames.
func readMaskKey(br *bufio.Reader, h *frameHeader) error {
	if !h.masked {
		return nil
	}
	_, err := io.ReadFull(br, h.mask[:])
	return err
}

// readPayload reads and unmasks a frame payload of the given declared
// length. The buffer grows with the data actually received, in bounded
// chunks, so a hostile length declaration cannot force a huge allocation up
// front.
func readPayload(br *bufio.Reader, h frameHeader) ([]byte, error) {
	if h.length == 0 {
		return nil, nil
	}
	const chunk = 32 << 10

	var payload []byte
	if h.length < chunk {
		payload = make([]byte, 0, h.length)
	} else {
		payload = make([]byte, 0, chunk)
	}

	remaining := h.length
	maskPos := 0
	var buf [chunk]byte
	for remaining > 0 {
		n := uint64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(br, buf[:n]); err != nil {
			return nil, err
		}
		if h.masked {
			maskPos = maskBytes(h.mask, maskPos, buf[:n])
		}
		payload = append(payload, buf[:n]...)
		remaining -= n
	}
	return payload, nil
}

// appendFrameHeader encodes a server-to-client frame header. Server frames
// are never masked.
func appendFrameHeader(b []byte, fin bool, opcode int, length int) []byte {
	b0 := byte(opcode)
	if fin {
		b0 |= finalBit
	}
	b = append(b, b0)

	switch {
	case length < 126:
		b = append(b, byte(length))
	case length < 65536:
		b = append(b, 126, byte(length>>8), byte(length))
	default:
		b = append(b, 127)
		b = binary.BigEndian.AppendUint64(b, uint64(length))
	}
	return b
}

// closePayload encodes a close frame body: a two-byte big-endian code
// followed by an optional UTF-8 reason. A zero code produces an empty body,
// which the peer reports as 1005 (no status received).
func closePayload(code int, text string) []byte {
	if code == 0 {
		return nil
	}
	p := make([]byte, 2, 2+len(text))
	binary.BigEndian.PutUint16(p, uint16(code))
	return append(p, text...)
}

// addSize accumulates payload sizes without wrapping; the sum saturates at
// the maximum uint64 instead.
func addSize(a, b uint64) uint64 {
	if s := a + b; s >= a {
		return s
	}
	return math.MaxUint64
}
