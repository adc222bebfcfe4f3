// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	defaultReadBufferSize  = 4096
	defaultWriteBufferSize = 4096
)

// Upgrader negotiates the WebSocket opening handshake and hands the
// connection to a Plugin.
type Upgrader struct {
	// HandshakeTimeout specifies the duration for the handshake to complete.
	HandshakeTimeout time.Duration

	// Input and output buffer sizes. If the buffer size is zero, then
	// default values will be used.
	ReadBufferSize, WriteBufferSize int

	// Policy is the security policy applied to connections accepted by this
	// Upgrader. The zero value is usable; see Policy.
	Policy Policy

	// Error specifies the function for generating HTTP error responses. If
	// Error is nil, then http.Error is used to generate the HTTP response.
	Error func(w http.ResponseWriter, r *http.Request, status int, reason error)
}

// Return an error depending on settings on the Upgrader
func (u *Upgrader) returnError(w http.ResponseWriter, r *http.Request, err HandshakeError) (*Conn, error) {
	if u.Error != nil {
		u.Error(w, r, err.Status, err)
	} else {
		http.Error(w, err.Error(), err.Status)
	}
	return nil, err
}

// IsWebSocketUpgrade reports whether r carries the Connection and Upgrade
// headers of a WebSocket handshake attempt.
func IsWebSocketUpgrade(r *http.Request) bool {
	return tokenListContainsValue(r.Header, "Connection", "upgrade") &&
		tokenListContainsValue(r.Header, "Upgrade", "websocket")
}

// Upgrade validates the opening handshake carried by r and, on success,
// hijacks the underlying connection and writes the 101 response. The checks
// run in a fixed order and the first failure wins; the corresponding HTTP
// error response is sent before Upgrade returns a HandshakeError.
//
// plugin is consulted during the handshake (subprotocol selection,
// connection refusal, response header injection) and then receives the
// connection's messages once Serve is called. A nil plugin marks a
// misconfigured endpoint and produces a 500 response.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request, plugin Plugin) (*Conn, error) {
	if plugin == nil {
		return u.returnError(w, r, handshakeError(ConfigurationError,
			http.StatusInternalServerError, "websocket: no plugin configured for this endpoint"))
	}

	if r.Method != http.MethodGet || !r.ProtoAtLeast(1, 1) {
		return u.returnError(w, r, handshakeError(MethodNotAllowed,
			http.StatusMethodNotAllowed, "websocket: handshake requires GET and HTTP/1.1 or later"))
	}

	if !tokenListContainsValue(r.Header, "Connection", "upgrade") {
		return u.returnError(w, r, handshakeError(MissingUpgrade,
			http.StatusBadRequest, "websocket: 'upgrade' token not found in Connection header"))
	}

	if !tokenListContainsValue(r.Header, "Upgrade", "websocket") {
		return u.returnError(w, r, handshakeError(MissingUpgrade,
			http.StatusBadRequest, "websocket: 'websocket' token not found in Upgrade header"))
	}

	challengeKey := r.Header.Get("Sec-Websocket-Key")
	if !validChallengeKey(challengeKey) {
		return u.returnError(w, r, handshakeError(BadKey,
			http.StatusBadRequest, "websocket: Sec-WebSocket-Key must be 16 bytes of base64"))
	}

	version, ok := parseVersion(r.Header.Get("Sec-Websocket-Version"))
	if !ok {
		return u.returnError(w, r, handshakeError(UnsupportedVersion,
			http.StatusBadRequest, "websocket: malformed Sec-WebSocket-Version"))
	}
	if !u.Policy.supportsVersion(version) {
		// Advertise the versions we do speak, in preference order.
		w.Header().Set("Sec-Websocket-Version", u.Policy.versionHeader())
		return u.returnError(w, r, handshakeError(UnsupportedVersion,
			http.StatusBadRequest, "websocket: unsupported Sec-WebSocket-Version"))
	}

	if !u.Policy.checkOrigin(r, version) {
		return u.returnError(w, r, handshakeError(OriginRejected,
			http.StatusForbidden, "websocket: request origin not allowed"))
	}

	offered, ok := parseProtocolList(r.Header["Sec-Websocket-Protocol"])
	if !ok {
		return u.returnError(w, r, handshakeError(BadSubprotocol,
			http.StatusBadRequest, "websocket: malformed Sec-WebSocket-Protocol header"))
	}

	subprotocol := ""
	if len(offered) > 0 {
		if i := dispatchChooseSubprotocol(plugin, offered); i >= 0 && i < len(offered) {
			subprotocol = offered[i]
		}
	}

	session := &Session{
		request:    r,
		respHeader: http.Header{},
		offered:    offered,
	}

	if err := dispatchConnect(plugin, session); err != nil {
		status := http.StatusForbidden
		var refusal RefusalError
		if errors.As(err, &refusal) {
			status = refusal.Status
		}
		return u.returnError(w, r, handshakeError(PluginRefused, status, err.Error()))
	}

	h, ok := w.(http.Hijacker)
	if !ok {
		return nil, errors.New("websocket: response does not implement http.Hijacker")
	}
	var (
		netConn net.Conn
		rw      *bufio.ReadWriter
		err     error
	)
	netConn, rw, err = h.Hijack()
	if err != nil {
		return nil, err
	}

	if rw.Reader.Buffered() > 0 {
		netConn.Close()
		return nil, errors.New("websocket: client sent data before handshake is complete")
	}

	readBufSize := u.ReadBufferSize
	if readBufSize == 0 {
		readBufSize = defaultReadBufferSize
	}
	writeBufSize := u.WriteBufferSize
	if writeBufSize == 0 {
		writeBufSize = defaultWriteBufferSize
	}

	var br *bufio.Reader
	if rw.Reader.Size() >= readBufSize {
		br = rw.Reader
	} else {
		br = bufio.NewReaderSize(netConn, readBufSize)
	}

	c := newConn(netConn, br, u.Policy, writeBufSize)
	c.subprotocol = subprotocol
	c.plugin = plugin
	c.session = session
	session.conn.Store(c)

	p := c.writeBuf[:0]
	p = append(p, "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: "...)
	p = append(p, computeAcceptKey(challengeKey)...)
	p = append(p, "\r\n"...)
	if c.subprotocol != "" {
		p = append(p, "Sec-WebSocket-Protocol: "...)
		p = append(p, c.subprotocol...)
		p = append(p, "\r\n"...)
	}
	for k, vs := range session.respHeader {
		switch k {
		case "Upgrade", "Connection", "Sec-Websocket-Accept", "Sec-Websocket-Protocol":
			continue
		}
		for _, v := range vs {
			p = append(p, k...)
			p = append(p, ": "...)
			for i := 0; i < len(v); i++ {
				b := v[i]
				if b <= 31 {
					// prevent response splitting.
					b = ' '
				}
				p = append(p, b)
			}
			p = append(p, "\r\n"...)
		}
	}
	p = append(p, "\r\n"...)

	if u.HandshakeTimeout > 0 {
		netConn.SetWriteDeadline(time.Now().Add(u.HandshakeTimeout))
	}
	if _, err = netConn.Write(p); err != nil {
		netConn.Close()
		return nil, err
	}
	if u.HandshakeTimeout > 0 {
		netConn.SetWriteDeadline(time.Time{})
	}

	c.setState(StateOpen)
	return c, nil
}
