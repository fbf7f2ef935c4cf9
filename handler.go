package socket

import (
	"io"

	"github.com/gobwas/ws"
)

// Handler receives the frames a Session does not consume itself: all data
// frames, plus pong frames when the configuration forwards them and close
// frames when automatic close handling is disabled.
//
// The payload reader is valid only until the handler returns; the session
// discards whatever the handler leaves unread. Masked payloads arrive
// already deciphered.
type Handler interface {
	HandleFrame(s *Session, header ws.Header, payload io.Reader) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(s *Session, header ws.Header, payload io.Reader) error

func (f HandlerFunc) HandleFrame(s *Session, header ws.Header, payload io.Reader) error {
	return f(s, header, payload)
}
