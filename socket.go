package socket

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
)

// Socket is a thin wrapper around a websocket net.Conn that owns the
// buffered reader and serializes frame writes under a write deadline.
type Socket struct {
	Conn   net.Conn
	Reader *bufio.Reader

	writeMu      sync.Mutex
	writeTimeout time.Duration
}

// NewSocket wraps an already-upgraded connection.
func NewSocket(conn net.Conn, writeTimeout time.Duration) *Socket {
	return &Socket{
		Conn:         conn,
		Reader:       bufio.NewReader(conn),
		writeTimeout: writeTimeout,
	}
}

// ReadHeader reads the next frame header. The payload, header.Length bytes,
// is left in the Reader for the caller to consume or discard. Read
// deadlines are not touched here: a close in flight arms the force-close
// deadline and header reads must not wipe it.
func (s *Socket) ReadHeader() (ws.Header, error) {
	return ws.ReadHeader(s.Reader)
}

// WriteFrame writes a frame under the write deadline. Writes are
// serialized; the session loop and a concurrent Close may both be writing.
func (s *Socket) WriteFrame(frame ws.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		s.Conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return ws.WriteFrame(s.Conn, frame)
}

// WriteClose writes a close frame carrying the status.
func (s *Socket) WriteClose(status CloseStatus) error {
	body := ws.NewCloseFrameBody(ws.StatusCode(status.Code), status.Reason)
	return s.WriteFrame(ws.NewCloseFrame(body))
}

// WritePong answers a ping with the same payload.
func (s *Socket) WritePong(payload []byte) error {
	return s.WriteFrame(ws.NewPongFrame(payload))
}

// Close closes the underlying connection.
func (s *Socket) Close() error {
	return s.Conn.Close()
}
