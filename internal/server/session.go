package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"softcard/bridge/internal/config"
	"softcard/bridge/internal/metrics"
	"softcard/bridge/internal/protocol"
)

// Session is one reader client connection. The protocol is stateless across
// frames; the only per-session state beyond the connection itself is the
// start time, used when the warm-up window is scoped per session.
type Session struct {
	ID         string
	conn       *websocket.Conn
	clientAddr string
	startedAt  time.Time

	writeMu sync.Mutex // read loop and ping loop both write
	mu      sync.Mutex
	lastAct time.Time
}

func (sess *Session) touch() {
	sess.mu.Lock()
	sess.lastAct = time.Now()
	sess.mu.Unlock()
}

// LastActive reports when the session last received a message.
func (sess *Session) LastActive() time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastAct
}

func (sess *Session) write(data []byte) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.conn.WriteMessage(websocket.BinaryMessage, data)
}

// runSession executes the dispatch loop: read a message, decode, route by
// tag, answer. It returns when the peer disconnects, a malformed frame
// arrives, or the server shuts down.
func (s *Server) runSession(sess *Session) {
	defer s.closeSession(sess)

	s.sessions.Store(sess.ID, sess)
	s.registry.Register(s.ctx, sess.ID, sess.clientAddr)
	metrics.ActiveSessions.Inc()
	s.log.Info().Str("conn_id", sess.ID).Str("remote", sess.clientAddr).Msg("session opened")

	if s.cfg.MaxMessageSize > 0 {
		sess.conn.SetReadLimit(s.cfg.MaxMessageSize)
	}
	if s.cfg.PongTimeout > 0 {
		sess.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		sess.conn.SetPongHandler(func(string) error {
			return sess.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		})
	}
	if s.cfg.PingInterval > 0 {
		stop := make(chan struct{})
		defer close(stop)
		go s.pingLoop(sess, stop)
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		mt, raw, err := sess.conn.ReadMessage()
		if err != nil {
			// Peer disconnect is the expected end of a session.
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("conn_id", sess.ID).Msg("read ended")
			}
			return
		}
		sess.touch()
		s.registry.Touch(s.ctx, sess.ID)

		// Only binary messages carry frames.
		if mt != websocket.BinaryMessage {
			continue
		}
		if !s.dispatch(sess, raw) {
			return
		}
	}
}

// dispatch handles one raw inbound message. It returns false when the
// session must close: a malformed frame or a failed response write.
func (s *Server) dispatch(sess *Session, raw []byte) bool {
	if _, err := protocol.Decode(raw); err != nil {
		// Connection-fatal, no response.
		metrics.DecodeFailures.Inc()
		s.log.Warn().Err(err).Str("conn_id", sess.ID).Msg("malformed frame, dropping connection")
		return false
	}

	key, _ := protocol.RoutingTag(raw)
	kind := protocol.Kind(key)
	metrics.FramesIn.WithLabelValues(kind).Inc()

	switch key {
	case protocol.TagStatusRequest:
		return s.respond(sess, kind, key, raw, protocol.Encode(protocol.TagStatusResponse, protocol.StatusPayload))

	case protocol.TagATRRequest:
		return s.respond(sess, kind, key, raw, protocol.Encode(protocol.TagATRResponse, protocol.ATRPayload))

	case protocol.TagCommandAPDU:
		// The command APDU starts at raw index 2, after the routing prefix.
		command := raw[2:]
		var resp []byte
		if s.cfg.WarmupScope == config.WarmupScopeSession {
			resp = s.adapter.TransmitFrom(sess.startedAt, command)
		} else {
			resp = s.adapter.Transmit(command)
		}
		return s.respond(sess, kind, key, raw, protocol.Encode(protocol.TagAPDUResponse, resp))

	case protocol.TagAckA, protocol.TagAckB:
		// Acknowledged no-ops: no response, session stays open.
		return true

	case protocol.TagReset:
		// Reset is ignored; the backend is not reset.
		return true

	default:
		return s.respond(sess, kind, key, raw, protocol.UnknownTagResponse)
	}
}

func (s *Server) respond(sess *Session, kind string, key byte, request, response []byte) bool {
	if err := sess.write(response); err != nil {
		s.log.Debug().Err(err).Str("conn_id", sess.ID).Msg("response write failed")
		return false
	}
	metrics.FramesOut.Inc()
	s.events.Publish(sess.ID, kind, key, request, response)
	return true
}

func (s *Server) pingLoop(sess *Session, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sess.writeMu.Lock()
			err := sess.conn.WriteMessage(websocket.PingMessage, nil)
			sess.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) closeSession(sess *Session) {
	s.sessions.Delete(sess.ID)
	// s.ctx may already be cancelled during shutdown; removal still has to run.
	s.registry.Remove(context.Background(), sess.ID)
	metrics.ActiveSessions.Dec()
	sess.conn.Close()
	s.log.Info().Str("conn_id", sess.ID).Msg("session closed")
}
