// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// Plugin is the capability surface implemented by application logic. One
// Plugin value typically serves many connections; per-connection state
// belongs in whatever the plugin associates with the *Session it is handed.
//
// Callbacks run on the connection's Serve goroutine. They may start
// additional goroutines and use the Session from any of them. A panic in a
// callback is contained to the connection: it is caught at the dispatch
// boundary and converted into a close.
type Plugin interface {
	// OnConnect is called after the handshake request has been validated
	// and before the 101 response is written. Returning a non-nil error
	// refuses the connection; use Refuse to pick the HTTP status, any other
	// error maps to 403.
	OnConnect(s *Session) error

	// ChooseSubprotocol picks one of the subprotocols offered by the
	// client, by index, or returns a negative value to negotiate none.
	// offered preserves the client's order and is empty when the client
	// offered nothing.
	ChooseSubprotocol(offered []string) int

	// OnMessage is called once per completed message, after the message has
	// passed the connection's size checks and been reassembled from its
	// fragments. messageType is TextMessage or BinaryMessage.
	OnMessage(s *Session, messageType int, payload []byte)

	// OnDisconnect is called once when the connection reaches the Closed
	// state, whether or not the close was clean.
	OnDisconnect(s *Session)
}

// RefusalError instructs the handshake to refuse the connection with the
// given HTTP status.
type RefusalError struct {
	Status int
}

func (e RefusalError) Error() string {
	return fmt.Sprintf("websocket: connection refused by plugin with status %d", e.Status)
}

// Refuse returns an error that, when returned from Plugin.OnConnect, refuses
// the connection with the given HTTP status code.
func Refuse(status int) error { return RefusalError{Status: status} }

// Session is the per-connection handle given to plugin callbacks. Its read
// methods expose the handshake request; its write methods go through the
// connection's write serializer, so they are safe to call from any
// goroutine.
type Session struct {
	request    *http.Request
	respHeader http.Header
	offered    []string

	conn atomic.Pointer[Conn]
}

// Request returns the handshake request. It must be treated as read-only.
func (s *Session) Request() *http.Request { return s.request }

// Header returns the value of a handshake request header, or the empty
// string if the header is absent.
func (s *Session) Header(name string) string {
	return s.request.Header.Get(name)
}

// SetResponseHeader adds a header to the 101 handshake response. It has no
// effect once the handshake response has been written.
func (s *Session) SetResponseHeader(name, value string) {
	s.respHeader.Set(name, value)
}

// ProtocolCount returns the number of subprotocols offered by the client.
func (s *Session) ProtocolCount() int { return len(s.offered) }

// ProtocolAt returns the i'th client-offered subprotocol, in the client's
// order, or the empty string if i is out of range.
func (s *Session) ProtocolAt(i int) string {
	if i < 0 || i >= len(s.offered) {
		return ""
	}
	return s.offered[i]
}

// Subprotocol returns the negotiated subprotocol, or the empty string.
func (s *Session) Subprotocol() string {
	if c := s.conn.Load(); c != nil {
		return c.Subprotocol()
	}
	return ""
}

// State returns the connection's lifecycle phase.
func (s *Session) State() State {
	if c := s.conn.Load(); c != nil {
		return c.State()
	}
	return StateConnecting
}

// Send transmits a message or control frame to the client. messageType is
// TextMessage, BinaryMessage, PingMessage or PongMessage.
func (s *Session) Send(messageType int, data []byte) error {
	c := s.conn.Load()
	if c == nil {
		return ErrNotOpen
	}
	return c.WriteMessage(messageType, data)
}

// Close starts the closing handshake with an empty close payload; the peer
// observes close code 1005 (no status received). Further sends fail with
// ErrCloseSent.
func (s *Session) Close() error {
	c := s.conn.Load()
	if c == nil {
		return ErrNotOpen
	}
	return c.WriteClose(0, "")
}

// CloseWithCode starts the closing handshake with an explicit code and
// optional reason.
func (s *Session) CloseWithCode(code int, reason string) error {
	c := s.conn.Load()
	if c == nil {
		return ErrNotOpen
	}
	return c.WriteClose(code, reason)
}

// The dispatch helpers keep plugin faults contained to their connection: a
// panic in a callback is recovered here and surfaced as an error the caller
// converts into a connection-level close.

func dispatchConnect(p Plugin, s *Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("websocket: plugin panicked in OnConnect: %v", r)
		}
	}()
	return p.OnConnect(s)
}

func dispatchChooseSubprotocol(p Plugin, offered []string) (index int) {
	defer func() {
		if r := recover(); r != nil {
			index = -1
		}
	}()
	return p.ChooseSubprotocol(offered)
}

func dispatchMessage(p Plugin, s *Session, messageType int, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("websocket: plugin panicked in OnMessage: %v", r)
		}
	}()
	p.OnMessage(s, messageType, payload)
	return nil
}

func dispatchDisconnect(p Plugin, s *Session) {
	defer func() {
		recover()
	}()
	p.OnDisconnect(s)
}
