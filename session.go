package socket

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/sirupsen/logrus"
)

// Session runs the frame loop for one upgraded connection, enforcing the
// resolved Config: pings are always answered, pongs are dropped or
// forwarded, close frames are answered or forwarded, everything else goes
// to the Handler.
//
// The Run goroutine is the only reader of the connection. A close started
// elsewhere (Close, Server.Shutdown) only writes the close frame and arms
// the force-close deadline; the read loop notices, drains until the peer's
// close reply or the deadline, and releases the connection. Done reports
// that release.
type Session struct {
	*Socket
	id       string
	config   *Config
	handler  Handler
	protocol string

	onEnd func(*Session)

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Protocol returns the sub-protocol negotiated during the handshake, or ""
// when none was agreed.
func (s *Session) Protocol() string { return s.protocol }

// Done is closed once the read loop has finished and the connection is
// released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run reads frames until the connection closes. It blocks; the Server calls
// it from the connection's goroutine.
func (s *Session) Run() {
	defer close(s.done)
	logrus.WithFields(logrus.Fields{"id": s.id, "protocol": s.protocol}).Info("session started")
	defer logrus.WithFields(logrus.Fields{"id": s.id}).Info("session ended")
	defer s.Socket.Close()
	if s.onEnd != nil {
		defer s.onEnd(s)
	}

	frame := &io.LimitedReader{R: s.Reader}
	for {
		// Drop whatever the previous frame left unread before the next
		// header.
		if _, err := s.Reader.Discard(int(frame.N)); err != nil {
			return
		}

		header, err := s.ReadHeader()
		if s.isClosing() {
			// A close is in flight and the force-close deadline is armed;
			// nothing is dispatched anymore, the loop only waits out the
			// peer's close reply.
			s.drainPeerClose(header, err)
			return
		}
		if err != nil {
			s.handleError(err)
			return
		}
		frame.N = header.Length

		switch header.OpCode {
		case ws.OpPing:
			payload, err := readPayload(header, frame)
			if err != nil {
				return
			}
			if err := s.WritePong(payload); err != nil {
				s.handleError(err)
				return
			}
		case ws.OpPong:
			if s.config.DropPongFrames {
				continue // payload discarded at the top of the loop
			}
			s.dispatch(header, frame)
		case ws.OpClose:
			if !s.config.HandleCloseFrames {
				// Forwarded close frames are the handler's problem; the
				// session ends without replying.
				s.dispatch(header, frame)
				return
			}
			s.answerClose(header, frame)
			return
		default:
			s.dispatch(header, frame)
		}
	}
}

// dispatch hands the frame to the handler with a deciphered payload reader.
func (s *Session) dispatch(header ws.Header, frame *io.LimitedReader) {
	if s.handler == nil {
		return
	}
	if err := s.handler.HandleFrame(s, header, payloadReader(header, frame)); err != nil {
		s.handleError(err)
	}
}

// answerClose replies to the peer's close frame: with the configured close
// frame when one is set, otherwise echoing the peer's own status.
func (s *Session) answerClose(header ws.Header, frame *io.LimitedReader) {
	payload, err := readPayload(header, frame)
	if err != nil {
		return
	}

	if s.config.CloseFrameOnClosure != nil {
		s.WriteClose(*s.config.CloseFrameOnClosure)
		return
	}

	if len(payload) >= 2 {
		code, reason := ws.ParseCloseFrameData(payload)
		s.WriteClose(CloseStatus{Code: int(code), Reason: reason})
		return
	}
	s.WriteFrame(ws.NewCloseFrame(nil))
}

// Close starts a server-initiated close: it sends the close frame and arms
// the force-close deadline, under which the read loop waits for the peer's
// close reply before dropping the connection. Without a configured timeout
// the connection is dropped immediately. Close is safe from any goroutine,
// including a Handler; callers that need to see the connection released
// wait on Done.
func (s *Session) Close(status CloseStatus) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.WriteClose(status)
		if d := s.forceCloseTimeout(); d > 0 {
			s.Conn.SetReadDeadline(time.Now().Add(d))
		} else {
			s.Socket.Close()
		}
		close(s.closing)
	})
	return err
}

// CloseNormally closes with the configured close frame, falling back to
// 1000 normal closure.
func (s *Session) CloseNormally() error {
	if s.config.CloseFrameOnClosure != nil {
		return s.Close(*s.config.CloseFrameOnClosure)
	}
	return s.Close(StatusNormalClosure)
}

// drainPeerClose discards frames until the peer's close reply, the armed
// force-close deadline, or a read error, then drops the connection. The
// header/err pair is the read the loop was blocked in when the close
// started.
func (s *Session) drainPeerClose(header ws.Header, err error) {
	defer s.Socket.Close()
	for err == nil {
		if _, derr := s.Reader.Discard(int(header.Length)); derr != nil {
			return
		}
		if header.OpCode == ws.OpClose {
			return
		}
		header, err = ws.ReadHeader(s.Reader)
	}
}

func (s *Session) forceCloseTimeout() time.Duration {
	if s.config.ForceCloseTimeoutMillis == nil {
		return 0
	}
	return time.Duration(*s.config.ForceCloseTimeoutMillis) * time.Millisecond
}

func (s *Session) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// handleError decides which errors are worth logging. Errors from the peer
// going away show up on the next read anyway.
func (s *Session) handleError(err error) {
	if err == io.EOF {
		return
	}

	switch err.(type) {
	case net.Error:
	default:
		logrus.WithError(err).WithField("id", s.id).Warn("unexpected session error")
	}
}
