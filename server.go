package socket

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// broadcastParallelism is the number of concurrent session closes to
	// run at once during Shutdown.
	broadcastParallelism = 16
	// defaultWriteTimeout bounds frame writes when the caller sets none.
	defaultWriteTimeout = 5 * time.Second
)

// Server upgrades HTTP requests to websocket connections and runs a Session
// per connection, governed by a resolved Config.
type Server struct {
	// Config is the resolved protocol configuration. Required.
	Config *Config

	// Handler receives forwarded frames. May be nil, in which case they
	// are discarded.
	Handler Handler

	// WriteTimeout bounds individual frame writes. Zero means the
	// default of five seconds.
	WriteTimeout time.Duration

	sessionsMu sync.Mutex
	sessions   map[string]*Session
}

// ServeHTTP implements http.Handler. It enforces the configured path
// prefix, performs the upgrade with the configured handshake timeout and
// sub-protocol offer, and then runs the session loop on the caller's
// goroutine.
func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if s.Config.CheckPathPrefix && !strings.HasPrefix(r.URL.Path, s.Config.Path) {
		http.NotFound(rw, r)
		return
	}

	upgrader := ws.HTTPUpgrader{
		Timeout:  s.handshakeTimeout(),
		Protocol: s.acceptProtocol,
	}
	conn, _, hs, err := upgrader.Upgrade(r, rw)
	if err != nil {
		return // ws will have written out the error to the http response
	}

	s.ServeConn(conn, hs.Protocol)
}

// ServeConn runs a session over an already-upgraded connection. It blocks
// until the session ends.
func (s *Server) ServeConn(conn net.Conn, protocol string) {
	writeTimeout := s.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = defaultWriteTimeout
	}

	session := &Session{
		Socket:   NewSocket(conn, writeTimeout),
		id:       uuid.NewV4().String(),
		config:   s.Config,
		handler:  s.Handler,
		protocol: protocol,
		onEnd:    s.removeSession,
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.addSession(session)
	session.Run()
}

// acceptProtocol is the upgrade-time sub-protocol check: the peer's offers
// are tried in order and the first one present in the configured list is
// agreed.
func (s *Server) acceptProtocol(offered string) bool {
	for _, p := range s.Config.SubProtocols {
		if p == offered {
			return true
		}
	}
	return false
}

// handshakeTimeout converts the configured handshake timeout for the
// upgrader, which treats zero as unbounded.
func (s *Server) handshakeTimeout() time.Duration {
	if s.Config.HandshakeTimeoutMillis == nil {
		return 0
	}
	d := time.Duration(*s.Config.HandshakeTimeoutMillis) * time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}

// Shutdown broadcasts a close frame to every live session and waits, up to
// the force-close timeout per session, for the connections to be released.
// The frame is the configured close-on-closure frame when set, 1001 going
// away otherwise.
func (s *Server) Shutdown() {
	status := StatusGoingAway
	if s.Config.CloseFrameOnClosure != nil {
		status = *s.Config.CloseFrameOnClosure
	}

	s.sessionsMu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		open = append(open, session)
	}
	s.sessions = nil
	s.sessionsMu.Unlock()

	logrus.WithFields(logrus.Fields{"sessions": len(open), "status": status.Code}).
		Info("shutting down websocket sessions")

	g := new(errgroup.Group)
	g.SetLimit(broadcastParallelism)
	for _, session := range open {
		session := session
		g.Go(func() error {
			session.Close(status)
			<-session.Done()
			return nil
		})
	}
	g.Wait()
}

func (s *Server) addSession(session *Session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if s.sessions == nil {
		s.sessions = map[string]*Session{}
	}
	s.sessions[session.id] = session
}

func (s *Server) removeSession(session *Session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, session.id)
}
