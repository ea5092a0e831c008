// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package server runs the broker's TCP accept loop: one task per
// connection, each looping over framed requests until the peer
// closes or a framing/auth error ends the connection.
package server

import (
	"errors"
	"log"
	"net"

	"github.com/google/uuid"

	"github.com/Lyn-liyuan/sonicrabMQ/internal/registry"
	"github.com/Lyn-liyuan/sonicrabMQ/internal/wire"
)

// Server accepts connections and dispatches PUSH/PULL requests
// against a broker registry, gated by a single shared credential.
type Server struct {
	ln            net.Listener
	registry      *registry.Registry
	authorization string
}

// New wraps an already-bound listener with a registry and the
// configured shared credential.
func New(ln net.Listener, reg *registry.Registry, authorization string) *Server {
	return &Server{ln: ln, registry: reg, authorization: authorization}
}

// Serve accepts connections until the listener is closed, handling
// each on its own goroutine — the one-task-per-connection model.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("error: accept: %s", err)
			continue
		}

		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer logClose(conn)

	remote := conn.RemoteAddr()
	connID := uuid.New()
	log.Printf("info: conn=%s accepted from %s", connID, remote)

	for {
		body, err := wire.ReadFrame(conn)
		if err != nil {
			// framing/transport errors end the connection silently
			return
		}

		req, err := wire.ParseRequest(body)
		if err != nil {
			log.Printf("warn: conn=%s malformed request: %s", connID, err)
			return
		}

		if req.Key != s.authorization {
			_ = wire.WriteFrame(conn, []byte(wire.RespAuthFailed))
			log.Printf("warn: conn=%s authentication failed", connID)
			return
		}

		switch req.Cmd {
		case wire.CmdPush:
			if !s.handlePush(conn, connID, req) {
				return
			}
		case wire.CmdPull:
			if !s.handlePull(conn, connID, req) {
				return
			}
		}
	}
}

func (s *Server) handlePush(conn net.Conn, connID uuid.UUID, req wire.Request) bool {
	st, err := s.registry.GetOrCreate(req.Broker)
	if err != nil {
		if errors.Is(err, registry.ErrBrokerLimitReached) {
			return wire.WriteFrame(conn, []byte(wire.RespNoBroker)) == nil
		}
		log.Printf("error: conn=%s push broker=%q: %s", connID, req.Broker, err)
		return false
	}

	if _, err := st.Append(req.Payload); err != nil {
		log.Printf("error: conn=%s append broker=%q: %s", connID, req.Broker, err)
		return false
	}

	return wire.WriteFrame(conn, []byte(wire.RespOK)) == nil
}

// handlePull treats a missing broker as a lookup miss rather than
// writing a framed NO_BROKER reply: PULL's success response is an
// unframed byte stream, so a framed text reply in its place would be
// indistinguishable on the wire from the start of a record whose
// payload length happens to match. Closing the connection instead
// keeps the two response shapes unambiguous for the client.
func (s *Server) handlePull(conn net.Conn, connID uuid.UUID, req wire.Request) bool {
	st, ok := s.registry.Get(req.Broker)
	if !ok {
		log.Printf("warn: conn=%s pull on unknown broker=%q", connID, req.Broker)
		return false
	}

	if _, err := st.ReadFrom(conn, req.Offset); err != nil {
		log.Printf("error: conn=%s pull broker=%q offset=%d: %s", connID, req.Broker, req.Offset, err)
		return false
	}

	return wire.WriteZeroSentinel(conn) == nil
}

func logClose(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		log.Printf("warn: close: %s", err)
	}
}
