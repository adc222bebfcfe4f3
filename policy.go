// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// OriginPolicy selects how the request origin is checked during the opening
// handshake.
type OriginPolicy int

const (
	// OriginSameOrigin requires the request origin's scheme, host and port
	// to match the request's own Host header. This is the default.
	OriginSameOrigin OriginPolicy = iota

	// OriginOff disables the origin check entirely.
	OriginOff

	// OriginTrusted accepts only origins listed verbatim in
	// Policy.TrustedOrigins. A same-origin request that is not on the list
	// is still rejected.
	OriginTrusted
)

// DefaultSupportedVersions lists the protocol versions accepted when
// Policy.SupportedVersions is nil, in preference order.
var DefaultSupportedVersions = []int{13, 8, 7}

// Policy is the per-connection security configuration. A Policy is fixed at
// upgrade time and never mutated afterwards; construct a modified copy if a
// different configuration is needed.
//
// The zero value checks the origin against the Host header, accepts versions
// 13, 8 and 7, rejects reserved close codes, and does not limit message
// sizes.
type Policy struct {
	// MaxMessageSize limits the cumulative payload size of a single logical
	// message, counting every fragment, and the payload of each control
	// frame (a close frame's code and reason count together). Zero means
	// unlimited. A violation closes the connection with close code 1009 as
	// soon as it is detected.
	MaxMessageSize uint64

	// AllowReservedCloseCodes accepts close codes from the reserved and
	// unassigned ranges that are rejected with close code 1002 by default.
	// The codes that exist only as library sentinels (1005, 1006, 1015)
	// remain forbidden regardless.
	AllowReservedCloseCodes bool

	// OriginPolicy selects the origin check mode.
	OriginPolicy OriginPolicy

	// TrustedOrigins is the allowlist consulted when OriginPolicy is
	// OriginTrusted. Entries are compared verbatim against the request
	// origin.
	TrustedOrigins []string

	// SupportedVersions lists acceptable Sec-WebSocket-Version values in
	// preference order. Nil means DefaultSupportedVersions.
	SupportedVersions []int
}

func (p *Policy) supportedVersions() []int {
	if p.SupportedVersions == nil {
		return DefaultSupportedVersions
	}
	return p.SupportedVersions
}

func (p *Policy) supportsVersion(v int) bool {
	for _, s := range p.supportedVersions() {
		if s == v {
			return true
		}
	}
	return false
}

// versionHeader returns the Sec-WebSocket-Version advertisement sent with a
// version-related refusal, e.g. "13, 8, 7".
func (p *Policy) versionHeader() string {
	var b []byte
	for i, v := range p.supportedVersions() {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = strconv.AppendInt(b, int64(v), 10)
	}
	return string(b)
}

// allowCloseCode reports whether code is acceptable as an explicitly sent
// close code under this policy. The sentinel codes 1005, 1006 and 1015 exist
// only to report status in-process and are never legal on the wire. 1000 and
// the other codes defined by the RFC are always legal, as is the registered
// and private-use range 3000-4999. The remainder of the reserved range is
// legal only when AllowReservedCloseCodes is set.
func (p *Policy) allowCloseCode(code int) bool {
	switch code {
	case CloseNoStatusReceived, CloseAbnormalClosure, CloseTLSHandshake:
		return false
	}
	switch {
	case code < CloseNormalClosure || code > 4999:
		return false
	case code >= 3000:
		return true
	case code <= CloseUnsupportedData:
		return true // 1000-1003
	case code >= CloseInvalidFramePayloadData && code <= CloseInternalServerErr:
		return true // 1007-1011
	default:
		return p.AllowReservedCloseCodes
	}
}

// checkOrigin applies the policy's origin check to r. version selects the
// header carrying the origin: drafts before 8 used Sec-WebSocket-Origin.
func (p *Policy) checkOrigin(r *http.Request, version int) bool {
	switch p.OriginPolicy {
	case OriginOff:
		return true
	}

	name := "Origin"
	if version < 8 {
		name = "Sec-Websocket-Origin"
	}
	origin := r.Header.Get(name)

	if p.OriginPolicy == OriginTrusted {
		for _, trusted := range p.TrustedOrigins {
			if origin == trusted {
				return true
			}
		}
		return false
	}

	// Same-origin: no origin asserted means a non-browser client, which the
	// check does not apply to.
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if u.Scheme != scheme {
		return false
	}
	return canonicalHostPort(u.Scheme, u.Host) == canonicalHostPort(scheme, r.Host)
}

// canonicalHostPort lowercases host and makes the scheme's default port
// explicit so that "example.org" and "example.org:80" compare equal.
func canonicalHostPort(scheme, hostport string) string {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, ""
	}
	if port == "" {
		switch scheme {
		case "https", "wss":
			port = "443"
		default:
			port = "80"
		}
	}
	return strings.ToLower(host) + ":" + port
}
