// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"
)

var keyGUID = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

func computeAcceptKey(challengeKey string) string {
	h := sha1.New()
	h.Write([]byte(challengeKey))
	h.Write(keyGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// validChallengeKey reports whether s is a well-formed Sec-WebSocket-Key
// value: strict base64 (canonical padding, no trailing junk) decoding to
// exactly 16 bytes. The key content itself is not interpreted.
func validChallengeKey(s string) bool {
	if s == "" {
		return false
	}
	decoded, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return false
	}
	return len(decoded) == 16
}

// parseVersion parses a Sec-WebSocket-Version value. The grammar is strict:
// decimal digits only, no sign, no leading zero (except "0" itself), and the
// value must fit the header's one-octet range.
func parseVersion(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
		if n > 255 {
			return 0, false
		}
	}
	return n, true
}

// Octet types from RFC 2616.
//
// CTL        = <any US-ASCII control character (octets 0 - 31) and DEL (127)>
// separators = "(" | ")" | "<" | ">" | "@" | "," | ";" | ":" | "\" | <">
//              | "/" | "[" | "]" | "?" | "=" | "{" | "}" | SP | HT
// token      = 1*<any CHAR except CTLs or separators>

func skipSpace(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
		default:
			return s[i:]
		}
	}
	return ""
}

func nextToken(s string) (token, rest string) {
	i := 0
loop:
	for ; i < len(s); i++ {
		c := s[i]
		if c <= 31 || c >= 127 { // control characters & non-ascii are not token octets
			break
		}
		switch c { //separators are not token octets
		case ' ', '\t', '"', '(', ')', ',', '/', ':', ';', '<',
			'=', '>', '?', '@', '[', ']', '\\', '{', '}':
			break loop
		}
	}
	return s[:i], s[i:]
}

// isToken reports whether s is a non-empty legal HTTP token.
func isToken(s string) bool {
	t, rest := nextToken(s)
	return s != "" && t == s && rest == ""
}

// equalASCIIFold returns true if s is equal to t with ASCII case folding.
func equalASCIIFold(s, t string) bool {
	for s != "" && t != "" {
		// get first rune from both strings
		var sr, tr rune
		if s[0] < utf8.RuneSelf {
			sr, s = rune(s[0]), s[1:]
		} else {
			r, size := utf8.DecodeRuneInString(s)
			sr, s = r, s[size:]
		}
		if t[0] < utf8.RuneSelf {
			tr, t = rune(t[0]), t[1:]
		} else {
			r, size := utf8.DecodeRuneInString(t)
			tr, t = r, t[size:]
		}

		// compare runes
		switch {
		case sr == tr:
		case 'A' <= sr && sr <= 'Z':
			if sr+'a'-'A' != tr {
				return false
			}
		case 'A' <= tr && tr <= 'Z':
			if tr+'a'-'A' != sr {
				return false
			}
		default:
			return false
		}
	}

	return s == t
}

// tokenListContainsValue returns true if the 1#token header with the given
// name contains a token equal to value with ASCII case folding.
func tokenListContainsValue(header http.Header, name string, value string) bool {
headers:
	for _, s := range header[name] {
		for {
			var t string
			t, s = nextToken(skipSpace(s))
			if t == "" {
				continue headers
			}
			s = skipSpace(s)
			if s != "" && s[0] != ',' {
				continue headers
			}
			if equalASCIIFold(t, value) {
				return true
			}
			if s == "" {
				continue headers
			}
			s = s[1:]
		}
	}
	return false
}

// parseProtocolList merges all Sec-WebSocket-Protocol header values into an
// ordered list of offered subprotocols. Empty list elements produced by
// leading, trailing or doubled commas are dropped, and duplicates keep their
// first position. ok is false if any remaining element is not a legal HTTP
// token, or if the header was present but offered no usable name at all.
func parseProtocolList(values []string) (protocols []string, ok bool) {
	if len(values) == 0 {
		return nil, true
	}
	seen := make(map[string]bool)
	for _, v := range values {
		for _, entry := range strings.Split(v, ",") {
			entry = strings.Trim(entry, " \t")
			if entry == "" {
				continue
			}
			if !isToken(entry) {
				return nil, false
			}
			if !seen[entry] {
				seen[entry] = true
				protocols = append(protocols, entry)
			}
		}
	}
	if len(protocols) == 0 {
		return nil, false
	}
	return protocols, true
}
