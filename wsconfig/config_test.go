// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wsconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugboard/websocket"
)

const sampleConfig = `
listen: "127.0.0.1:8080"
endpoints:
  - path: /echo
    plugin: echo
  - path: /echo-small
    plugin: echo
    max_message_size: 64
  - path: /echo-unlimited
    plugin: echo
    max_message_size: -1
    allow_reserved_close_codes: true
  - path: /internal
    plugin: echo
    origin_check: trusted
    trusted_origins: ["http://origin-one", "https://origin-two:55"]
  - path: /public
    plugin: echo
    origin_check: "off"
    supported_versions: [13]
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", c.Listen)
	require.Len(t, c.Endpoints, 5)

	assert.Equal(t, "/echo", c.Endpoints[0].Path)
	assert.Equal(t, "echo", c.Endpoints[0].Plugin)
	assert.Nil(t, c.Endpoints[0].MaxMessageSize)

	require.NotNil(t, c.Endpoints[1].MaxMessageSize)
	assert.Equal(t, int64(64), *c.Endpoints[1].MaxMessageSize)

	assert.True(t, c.Endpoints[2].AllowReservedCloseCodes)
	assert.Equal(t, "trusted", c.Endpoints[3].OriginCheck)
	assert.Equal(t, []int{13}, c.Endpoints[4].SupportedVersions)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "listen: [unterminated"},
		{"missing listen", "endpoints: [{path: /a, plugin: echo}]"},
		{"no endpoints", "listen: ':8080'"},
		{"duplicate path", `
listen: ":8080"
endpoints:
  - {path: /a, plugin: echo}
  - {path: /a, plugin: echo}
`},
		{"relative path", "listen: ':8080'\nendpoints: [{path: a, plugin: echo}]"},
		{"missing plugin", "listen: ':8080'\nendpoints: [{path: /a}]"},
		{"zero message size", "listen: ':8080'\nendpoints: [{path: /a, plugin: echo, max_message_size: 0}]"},
		{"negative message size", "listen: ':8080'\nendpoints: [{path: /a, plugin: echo, max_message_size: -2}]"},
		{"trusted without origins", "listen: ':8080'\nendpoints: [{path: /a, plugin: echo, origin_check: trusted}]"},
		{"unknown origin check", "listen: ':8080'\nendpoints: [{path: /a, plugin: echo, origin_check: maybe}]"},
		{"version out of range", "listen: ':8080'\nendpoints: [{path: /a, plugin: echo, supported_versions: [256]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsserved.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Endpoints, 5)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEndpointPolicy(t *testing.T) {
	c, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	// Defaults: same-origin checking and the stock size limit.
	p := c.Endpoints[0].Policy()
	assert.Equal(t, websocket.OriginSameOrigin, p.OriginPolicy)
	assert.Equal(t, uint64(DefaultMaxMessageSize), p.MaxMessageSize)
	assert.False(t, p.AllowReservedCloseCodes)
	assert.Nil(t, p.SupportedVersions)

	p = c.Endpoints[1].Policy()
	assert.Equal(t, uint64(64), p.MaxMessageSize)

	// -1 maps to the policy's "no limit" zero value.
	p = c.Endpoints[2].Policy()
	assert.Equal(t, uint64(0), p.MaxMessageSize)
	assert.True(t, p.AllowReservedCloseCodes)

	p = c.Endpoints[3].Policy()
	assert.Equal(t, websocket.OriginTrusted, p.OriginPolicy)
	assert.Equal(t, []string{"http://origin-one", "https://origin-two:55"}, p.TrustedOrigins)

	p = c.Endpoints[4].Policy()
	assert.Equal(t, websocket.OriginOff, p.OriginPolicy)
	assert.Equal(t, []int{13}, p.SupportedVersions)
}
