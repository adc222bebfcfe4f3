// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package websocket

import (
	"net/http"
	"reflect"
	"testing"
)

var tokenListContainsValueTests = []struct {
	value string
	ok    bool
}{
	{"WebSocket", true},
	{"WEBSOCKET", true},
	{"websocket", true},
	{"websockets", false},
	{"x websocket", false},
	{"websocket x", false},
	{"other,websocket,more", true},
	{"other, websocket, more", true},
	{"Upgrade, close", false},
	{"close, Upgrade,", false},
}

func TestTokenListContainsValue(t *testing.T) {
	for _, tt := range tokenListContainsValueTests {
		h := http.Header{"Upgrade": {tt.value}}
		ok := tokenListContainsValue(h, "Upgrade", "websocket")
		if ok != tt.ok {
			t.Errorf("tokenListContainsValue(h, n, %q) = %v, want %v", tt.value, ok, tt.ok)
		}
	}
}

func TestTokenListContainsUpgrade(t *testing.T) {
	// The upgrade token may sit anywhere in the Connection list, with
	// optional whitespace and empty elements.
	for _, value := range []string{"Upgrade", "Upgrade, close", "close, Upgrade,", "keep-alive , Upgrade"} {
		h := http.Header{"Connection": {value}}
		if !tokenListContainsValue(h, "Connection", "upgrade") {
			t.Errorf("tokenListContainsValue(%q, upgrade) = false, want true", value)
		}
	}
}

func TestComputeAcceptKey(t *testing.T) {
	tests := []struct {
		key, accept string
	}{
		// RFC 6455 section 1.3 sample.
		{"dGhlIHNhbXBsZSBub25jZQ==", "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="},
		{"36zg57EA+cDLixMBxrDj4g==", "eGic2At3BJQkGyA4Dq+3nczxEJo="},
	}
	for _, tt := range tests {
		if got := computeAcceptKey(tt.key); got != tt.accept {
			t.Errorf("computeAcceptKey(%q) = %q, want %q", tt.key, got, tt.accept)
		}
	}
}

var validChallengeKeyTests = []struct {
	key string
	ok  bool
}{
	{"dGhlIHNhbXBsZSBub25jZQ==", true},
	{"36zg57EA+cDLixMBxrDj4g==", true},
	{"", false},
	{"toosmall", false},
	{"wayyyyyyyyyyyyyyyyyyyytoobig", false},
	{"invalid!characters_89A==", false},
	// Non-canonical padding bits in the last symbol.
	{"badlastcharacterinkey+==", false},
	{"WRONGPADDINGLENGTH012A?=", false},
	{"JUNKATENDOFPADDING456A=?", false},
}

func TestValidChallengeKey(t *testing.T) {
	for _, tt := range validChallengeKeyTests {
		if got := validChallengeKey(tt.key); got != tt.ok {
			t.Errorf("validChallengeKey(%q) = %v, want %v", tt.key, got, tt.ok)
		}
	}
}

var parseVersionTests = []struct {
	s  string
	n  int
	ok bool
}{
	{"13", 13, true},
	{"8", 8, true},
	{"7", 7, true},
	{"0", 0, true},
	{"255", 255, true},
	{"", 0, false},
	{"abcdef", 0, false},
	{"+13", 0, false},
	{"13sdfj", 0, false},
	{"1300", 0, false},
	{"013", 0, false},
	{"-1", 0, false},
	{"256", 0, false},
	{"8_", 0, false},
}

func TestParseVersion(t *testing.T) {
	for _, tt := range parseVersionTests {
		n, ok := parseVersion(tt.s)
		if ok != tt.ok || (ok && n != tt.n) {
			t.Errorf("parseVersion(%q) = %d, %v, want %d, %v", tt.s, n, ok, tt.n, tt.ok)
		}
	}
}

var parseProtocolListTests = []struct {
	values    []string
	protocols []string
	ok        bool
}{
	{nil, nil, true},
	{[]string{"chat"}, []string{"chat"}, true},
	{[]string{"chat, superchat"}, []string{"chat", "superchat"}, true},
	{[]string{"  chat ,"}, []string{"chat"}, true},
	{[]string{"\tchat\t"}, []string{"chat"}, true},
	{[]string{", , chat, "}, []string{"chat"}, true},
	{[]string{"a", "b,c"}, []string{"a", "b", "c"}, true},
	{[]string{"a, b, a"}, []string{"a", "b"}, true},
	{[]string{""}, nil, false},
	{[]string{" "}, nil, false},
	{[]string{"\t"}, nil, false},
	{[]string{","}, nil, false},
	{[]string{",,"}, nil, false},
	{[]string{"bad token"}, nil, false},
	{[]string{"\"token\""}, nil, false},
	{[]string{"bad/token"}, nil, false},
	{[]string{"bad\\token"}, nil, false},
	{[]string{"valid, invalid{}"}, nil, false},
	{[]string{"bad; separator"}, nil, false},
	{[]string{"control\x05character"}, nil, false},
	{[]string{"bad\ttoken"}, nil, false},
}

func TestParseProtocolList(t *testing.T) {
	for _, tt := range parseProtocolListTests {
		protocols, ok := parseProtocolList(tt.values)
		if ok != tt.ok {
			t.Errorf("parseProtocolList(%q) ok = %v, want %v", tt.values, ok, tt.ok)
			continue
		}
		if !reflect.DeepEqual(protocols, tt.protocols) {
			t.Errorf("parseProtocolList(%q) = %#v, want %#v", tt.values, protocols, tt.protocols)
		}
	}
}

func TestIsToken(t *testing.T) {
	for s, want := range map[string]bool{
		"chat":                    true,
		"dumb-increment-protocol": true,
		"v1.echo":                 true,
		"":                        false,
		"two words":               false,
		"quoted\"":                false,
	} {
		if got := isToken(s); got != want {
			t.Errorf("isToken(%q) = %v, want %v", s, got, want)
		}
	}
}
