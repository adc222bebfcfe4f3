// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import "errors"

// HandshakeKind identifies which handshake check failed.
type HandshakeKind int

const (
	MethodNotAllowed HandshakeKind = iota + 1
	MissingUpgrade
	BadKey
	UnsupportedVersion
	OriginRejected
	BadSubprotocol
	PluginRefused
	ConfigurationError
)

// HandshakeError describes a failed opening handshake. Status is the HTTP
// status code that was (or should be) sent to the client.
type HandshakeError struct {
	Kind    HandshakeKind
	Status  int
	message string
}

func (e HandshakeError) Error() string { return e.message }

func handshakeError(kind HandshakeKind, status int, message string) HandshakeError {
	return HandshakeError{Kind: kind, Status: status, message: message}
}

// ProtocolError describes a wire-level protocol violation. The connection is
// closed with close code 1002 when one is detected.
type ProtocolError struct {
	message string
}

func (e ProtocolError) Error() string { return e.message }

func errProtocol(message string) ProtocolError {
	return ProtocolError{message: "websocket: " + message}
}

// ErrCloseSent is returned by write methods after a close frame has been
// sent on the connection.
var ErrCloseSent = errors.New("websocket: close sent")

// ErrNotOpen is returned by Session write methods before the connection has
// finished the opening handshake or after it has closed.
var ErrNotOpen = errors.New("websocket: connection is not open")
