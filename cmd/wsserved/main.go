// Copyright 2023 The Plugboard Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// wsserved hosts WebSocket plugins behind net/http. Endpoints, plugins and
// per-connection policy come from a YAML configuration file:
//
//	wsserved -config wsserved.yaml
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/plugboard/websocket"
	"github.com/plugboard/websocket/wsconfig"
)

var (
	configPath = flag.String("config", "wsserved.yaml", "path to the endpoint configuration file")
	listenAddr = flag.String("listen", "", "listen address (overrides the config file)")
)

func main() {
	flag.Parse()

	cfg, err := wsconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("wsserved: %v", err)
	}
	addr := cfg.Listen
	if *listenAddr != "" {
		addr = *listenAddr
	}

	mux := http.NewServeMux()
	for i := range cfg.Endpoints {
		ep := cfg.Endpoints[i]
		plugin := pluginByName(ep.Plugin)
		if plugin == nil {
			log.Printf("wsserved: endpoint %s references unknown plugin %q; connections will get 500", ep.Path, ep.Plugin)
		}
		upgrader := &websocket.Upgrader{Policy: ep.Policy()}
		mux.HandleFunc(ep.Path, func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, plugin)
			if err != nil {
				log.Printf("wsserved: %s: handshake failed: %v", r.RemoteAddr, err)
				return
			}
			conn.Serve()
		})
		log.Printf("wsserved: serving %q at %s", ep.Plugin, ep.Path)
	}

	log.Printf("wsserved: listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

// pluginByName maps configuration names to plugin implementations. An
// unknown name returns nil, which the Upgrader reports as a configuration
// error (HTTP 500).
func pluginByName(name string) websocket.Plugin {
	switch name {
	case "echo":
		return &echoPlugin{}
	case "dumb-increment":
		return newIncrementPlugin()
	}
	return nil
}
