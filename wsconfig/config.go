// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wsconfig loads endpoint configuration for WebSocket plugin hosts.
//
// A configuration file is YAML:
//
//	listen: "127.0.0.1:8080"
//	endpoints:
//	  - path: /echo
//	    plugin: echo
//	    max_message_size: 33554432
//	  - path: /echo-allow-reserved
//	    plugin: echo
//	    allow_reserved_close_codes: true
//	  - path: /origin-trusted
//	    plugin: echo
//	    origin_check: trusted
//	    trusted_origins: ["http://origin-one", "https://origin-two:55"]
package wsconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plugboard/websocket"
)

// DefaultMaxMessageSize is applied to endpoints that do not set
// max_message_size explicitly.
const DefaultMaxMessageSize = 32 << 20

// Config is a host configuration: one listen address and a set of WebSocket
// endpoints.
type Config struct {
	Listen    string     `yaml:"listen"`
	Endpoints []Endpoint `yaml:"endpoints"`
}

// Endpoint binds a URL path to a named plugin and a connection policy.
type Endpoint struct {
	Path   string `yaml:"path"`
	Plugin string `yaml:"plugin"`

	// MaxMessageSize limits the cumulative size of one message.
	// Unset means DefaultMaxMessageSize; -1 means unlimited.
	MaxMessageSize *int64 `yaml:"max_message_size"`

	AllowReservedCloseCodes bool `yaml:"allow_reserved_close_codes"`

	// OriginCheck is "same-origin" (the default), "off" or "trusted".
	OriginCheck    string   `yaml:"origin_check"`
	TrustedOrigins []string `yaml:"trusted_origins"`

	SupportedVersions []int `yaml:"supported_versions"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}
	seen := make(map[string]bool)
	for i := range c.Endpoints {
		e := &c.Endpoints[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("endpoint %q: %w", e.Path, err)
		}
		if seen[e.Path] {
			return fmt.Errorf("endpoint %q: duplicate path", e.Path)
		}
		seen[e.Path] = true
	}
	return nil
}

func (e *Endpoint) Validate() error {
	if e.Path == "" || e.Path[0] != '/' {
		return fmt.Errorf("path must begin with /")
	}
	if e.Plugin == "" {
		return fmt.Errorf("plugin is required")
	}
	switch e.OriginCheck {
	case "", "same-origin", "off":
	case "trusted":
		if len(e.TrustedOrigins) == 0 {
			return fmt.Errorf("origin_check trusted requires trusted_origins")
		}
	default:
		return fmt.Errorf("unknown origin_check %q", e.OriginCheck)
	}
	if e.MaxMessageSize != nil && (*e.MaxMessageSize < -1 || *e.MaxMessageSize == 0) {
		return fmt.Errorf("invalid max_message_size %d", *e.MaxMessageSize)
	}
	for _, v := range e.SupportedVersions {
		if v < 0 || v > 255 {
			return fmt.Errorf("invalid supported version %d", v)
		}
	}
	return nil
}

// Policy converts the endpoint settings into a connection policy.
func (e *Endpoint) Policy() websocket.Policy {
	p := websocket.Policy{
		AllowReservedCloseCodes: e.AllowReservedCloseCodes,
		TrustedOrigins:          e.TrustedOrigins,
		SupportedVersions:       e.SupportedVersions,
	}

	switch e.OriginCheck {
	case "off":
		p.OriginPolicy = websocket.OriginOff
	case "trusted":
		p.OriginPolicy = websocket.OriginTrusted
	default:
		p.OriginPolicy = websocket.OriginSameOrigin
	}

	switch {
	case e.MaxMessageSize == nil:
		p.MaxMessageSize = DefaultMaxMessageSize
	case *e.MaxMessageSize == -1:
		p.MaxMessageSize = 0 // unlimited
	default:
		p.MaxMessageSize = uint64(*e.MaxMessageSize)
	}
	return p
}
