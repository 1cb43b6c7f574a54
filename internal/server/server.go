package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"softcard/bridge/internal/card"
	"softcard/bridge/internal/config"
	"softcard/bridge/internal/events"
	"softcard/bridge/internal/registry"
)

// Server accepts WebSocket connections from reader clients and runs one
// session dispatcher per connection. All sessions share the card adapter.
type Server struct {
	cfg      *config.Config
	log      zerolog.Logger
	adapter  *card.Adapter
	registry *registry.Registry
	events   *events.Publisher

	upgrader websocket.Upgrader
	ws       *http.Server
	mgmt     *http.Server

	sessions sync.Map // conn ID -> *Session
	connSeq  atomic.Int64
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New wires a server. registry and events may be nil when the respective
// integrations are disabled.
func New(cfg *config.Config, log zerolog.Logger, adapter *card.Adapter, reg *registry.Registry, pub *events.Publisher) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		log:      log,
		adapter:  adapter,
		registry: reg,
		events:   pub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start binds the WebSocket listener and the management HTTP server. It
// returns once both are accepting; serving continues in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	s.ws = &http.Server{Handler: mux}

	go func() {
		if err := s.ws.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("websocket server stopped")
		}
	}()
	s.log.Info().Str("addr", s.cfg.ListenAddr()).Msg("websocket server listening")

	s.mgmt = &http.Server{Addr: s.cfg.HTTPAddr(), Handler: s.mgmtHandler()}
	go func() {
		if err := s.mgmt.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("management server stopped")
		}
	}()
	s.log.Info().Str("addr", s.cfg.HTTPAddr()).Msg("management server listening")

	return nil
}

// Stop performs a graceful shutdown: no new connections, in-flight dispatch
// may finish its current frame, then remaining sessions are force-closed
// after the grace period.
func (s *Server) Stop() {
	s.cancel()

	shCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	if s.ws != nil {
		s.ws.Shutdown(shCtx)
	}
	if s.mgmt != nil {
		s.mgmt.Shutdown(shCtx)
	}

	// Shutdown does not touch hijacked connections, so sessions blocked in a
	// read have to be closed out explicitly once the grace period lapses.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shCtx.Done():
		s.sessions.Range(func(_, value any) bool {
			value.(*Session).conn.Close()
			return true
		})
		<-done
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	sess := &Session{
		ID:         s.cfg.BridgeID + "-" + strconv.FormatInt(s.connSeq.Add(1), 10),
		conn:       conn,
		clientAddr: conn.RemoteAddr().String(),
		startedAt:  time.Now(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSession(sess)
	}()
}

func (s *Server) mgmtHandler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", s.handleHealth)
	r.GET("/sessions", s.handleSessions)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"bridge_id":       s.cfg.BridgeID,
		"warmup_complete": time.Since(s.adapter.StartedAt()) > s.adapter.Warmup(),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	out := make([]gin.H, 0)
	s.sessions.Range(func(_, value any) bool {
		sess := value.(*Session)
		out = append(out, gin.H{
			"conn_id":     sess.ID,
			"client_addr": sess.clientAddr,
			"started_at":  sess.startedAt,
			"last_active": sess.LastActive(),
		})
		return true
	})
	c.JSON(http.StatusOK, out)
}
