// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import (
	"net/http"
	"testing"
)

// testPlugin implements Plugin with overridable callbacks. The zero value
// accepts every connection, negotiates no subprotocol and ignores messages.
type testPlugin struct {
	onConnect    func(*Session) error
	choose       func([]string) int
	onMessage    func(*Session, int, []byte)
	onDisconnect func(*Session)
}

func (p *testPlugin) OnConnect(s *Session) error {
	if p.onConnect != nil {
		return p.onConnect(s)
	}
	return nil
}

func (p *testPlugin) ChooseSubprotocol(offered []string) int {
	if p.choose != nil {
		return p.choose(offered)
	}
	return -1
}

func (p *testPlugin) OnMessage(s *Session, messageType int, payload []byte) {
	if p.onMessage != nil {
		p.onMessage(s, messageType, payload)
	}
}

func (p *testPlugin) OnDisconnect(s *Session) {
	if p.onDisconnect != nil {
		p.onDisconnect(s)
	}
}

func TestSessionProtocolAccessors(t *testing.T) {
	s := &Session{
		request:    &http.Request{Header: http.Header{"X-Test": {"yes"}}},
		respHeader: http.Header{},
		offered:    []string{"a", "b", "c"},
	}
	if got := s.ProtocolCount(); got != 3 {
		t.Errorf("ProtocolCount() = %d, want 3", got)
	}
	if got := s.ProtocolAt(1); got != "b" {
		t.Errorf("ProtocolAt(1) = %q, want b", got)
	}
	if got := s.ProtocolAt(3); got != "" {
		t.Errorf("ProtocolAt(3) = %q, want empty", got)
	}
	if got := s.ProtocolAt(-1); got != "" {
		t.Errorf("ProtocolAt(-1) = %q, want empty", got)
	}
	if got := s.Header("X-Test"); got != "yes" {
		t.Errorf("Header(X-Test) = %q, want yes", got)
	}
	if got := s.Header("X-Missing"); got != "" {
		t.Errorf("Header(X-Missing) = %q, want empty", got)
	}
}

func TestSessionWritesBeforeOpen(t *testing.T) {
	s := &Session{respHeader: http.Header{}}
	if err := s.Send(TextMessage, []byte("x")); err != ErrNotOpen {
		t.Errorf("Send before open = %v, want ErrNotOpen", err)
	}
	if err := s.Close(); err != ErrNotOpen {
		t.Errorf("Close before open = %v, want ErrNotOpen", err)
	}
	if got := s.State(); got != StateConnecting {
		t.Errorf("State before open = %v, want connecting", got)
	}
}

func TestDispatchContainsPanics(t *testing.T) {
	p := &testPlugin{
		onConnect: func(*Session) error { panic("boom") },
		onMessage: func(*Session, int, []byte) { panic("boom") },
		choose:    func([]string) int { panic("boom") },
	}
	if err := dispatchConnect(p, nil); err == nil {
		t.Error("dispatchConnect did not surface the panic as an error")
	}
	if err := dispatchMessage(p, nil, TextMessage, nil); err == nil {
		t.Error("dispatchMessage did not surface the panic as an error")
	}
	if i := dispatchChooseSubprotocol(p, []string{"a"}); i != -1 {
		t.Errorf("dispatchChooseSubprotocol = %d, want -1 after panic", i)
	}
	// OnDisconnect panics are swallowed entirely.
	p.onDisconnect = func(*Session) { panic("boom") }
	dispatchDisconnect(p, nil)
}
