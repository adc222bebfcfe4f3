// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package websocket implements a server-side WebSocket protocol engine
// (RFC 6455) designed to host application plugins.
//
// # Overview
//
// An application implements the Plugin interface and registers it with an
// Upgrader. The Upgrader validates the opening handshake, negotiates a
// subprotocol, and hands back a *Conn whose Serve method runs the frame
// dispatch loop:
//
//	var upgrader = websocket.Upgrader{}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    conn, err := upgrader.Upgrade(w, r, plugin)
//	    if err != nil {
//	        log.Println(err) // an HTTP error response has already been sent
//	        return
//	    }
//	    conn.Serve()
//	}
//
// Incoming data messages are reassembled from their fragments and delivered
// to Plugin.OnMessage once complete. Control frames are handled between
// fragments: pings are answered automatically, and close frames run the
// closing handshake.
//
// # Policy
//
// Each connection carries an immutable Policy fixed at upgrade time. The
// policy controls the maximum message size, whether reserved close codes are
// accepted from the peer, the origin check mode, and the set of supported
// protocol versions. The zero Policy is usable: it checks the request origin
// against the Host header, accepts versions 13, 8 and 7, and places no limit
// on message sizes.
//
// # Concurrency
//
// Each connection is served by a single goroutine. Plugin callbacks may
// spawn additional goroutines and call Session.Send or Session.Close from
// any of them; outbound frames are serialized so that the bytes of two
// frames never interleave on the wire, in the order the calls acquire the
// writer.
package websocket
