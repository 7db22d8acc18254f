// Copyright 2025 The Crest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketHandler serves an upgraded connection. The connection is closed
// when it returns.
type WebSocketHandler func(conn *websocket.Conn, req *Request) error

// WebSocket registers a GET rule that upgrades to the WebSocket protocol.
// Template parameters are available through [Request.Args]; the handler
// signature is not checked against them.
//
// Middleware run as for any rule; a middleware that stops the pipeline
// prevents the upgrade.
func (r *Router) WebSocket(template string, h WebSocketHandler, opts ...RuleOption) (*Rule, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	rules, err := r.commit([]routeSpec{{
		methods:  Methods(MethodGet),
		template: template,
		ws:       h,
		opts:     opts,
	}}, nil)
	if err != nil {
		return nil, err
	}
	return rules[0], nil
}

// upgrade switches protocols for a response marked by [Response.Upgrade].
// Headers set by middleware are sent with the handshake.
func (r *Router) upgrade(w http.ResponseWriter, req *Request, res *Response) {
	hr := req.HTTP()
	if hr == nil || !websocket.IsWebSocketUpgrade(hr) {
		res.reset(http.StatusBadRequest)
		res.Header().Set("Sec-Websocket-Version", "13")
		res.Text(http.StatusBadRequest, ErrNotUpgradable.Error())
		_, _ = res.Flush(w)
		return
	}

	conn, err := r.upgrader.Upgrade(w, hr, res.Header())
	if err != nil {
		// The upgrader has already replied.
		r.emit(DiagUpgradeFailed, "websocket upgrade failed", map[string]any{
			"path":  req.Path,
			"error": err.Error(),
		})
		return
	}
	defer conn.Close()

	if err := res.upgrade(conn, req); err != nil {
		r.logger.Debug("websocket handler ended", "path", req.Path, "error", err)
	}
}
