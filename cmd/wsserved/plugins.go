// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/plugboard/websocket"
)

// echoPlugin mirrors every completed message back to its sender.
type echoPlugin struct{}

func (p *echoPlugin) OnConnect(s *websocket.Session) error { return nil }

func (p *echoPlugin) ChooseSubprotocol(offered []string) int { return -1 }

func (p *echoPlugin) OnMessage(s *websocket.Session, messageType int, payload []byte) {
	if err := s.Send(messageType, payload); err != nil {
		log.Printf("echo: send failed: %v", err)
	}
}

func (p *echoPlugin) OnDisconnect(s *websocket.Session) {}

const incrementProtocol = "dumb-increment-protocol"

// incrementPlugin streams an increasing counter to each client from a
// background goroutine, so several writers (the counter goroutine and the
// dispatch goroutine answering commands) share one connection. The client
// may send "reset" to restart the count or "close" to end the session.
type incrementPlugin struct {
	mu       sync.Mutex
	sessions map[*websocket.Session]*incrementState
}

type incrementState struct {
	resets chan struct{}
	done   chan struct{}
}

func newIncrementPlugin() *incrementPlugin {
	return &incrementPlugin{sessions: make(map[*websocket.Session]*incrementState)}
}

func (p *incrementPlugin) OnConnect(s *websocket.Session) error {
	st := &incrementState{
		resets: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	p.mu.Lock()
	p.sessions[s] = st
	p.mu.Unlock()

	go p.count(s, st)
	return nil
}

func (p *incrementPlugin) count(s *websocket.Session, st *incrementState) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	n := 0
	for {
		select {
		case <-st.done:
			return
		case <-st.resets:
			n = 0
		case <-ticker.C:
			// OnConnect runs before the handshake response is written, so
			// the first ticks can fire while the connection is still being
			// set up. Give up if it never opens.
			if s.State() == websocket.StateConnecting {
				if time.Since(start) > 10*time.Second {
					return
				}
				continue
			}
			n++
			if err := s.Send(websocket.TextMessage, []byte(strconv.Itoa(n))); err != nil {
				return
			}
		}
	}
}

func (p *incrementPlugin) ChooseSubprotocol(offered []string) int {
	for i, name := range offered {
		if name == incrementProtocol {
			return i
		}
	}
	return -1
}

func (p *incrementPlugin) OnMessage(s *websocket.Session, messageType int, payload []byte) {
	if messageType != websocket.TextMessage {
		return
	}
	switch string(payload) {
	case "reset":
		p.mu.Lock()
		st := p.sessions[s]
		p.mu.Unlock()
		if st != nil {
			select {
			case st.resets <- struct{}{}:
			default:
			}
		}
	case "close":
		s.Close()
	}
}

func (p *incrementPlugin) OnDisconnect(s *websocket.Session) {
	p.mu.Lock()
	st := p.sessions[s]
	delete(p.sessions, s)
	p.mu.Unlock()
	if st != nil {
		close(st.done)
	}
}
