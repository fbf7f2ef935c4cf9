package socket

// Config is the concrete protocol configuration a Descriptor resolves to.
// It is produced by Resolve, typically once per server or route, and is
// treated as read-only from then on: the Server and every Session read it,
// nothing writes it.
//
// The timeout and close-frame fields are pointers because "not configured"
// must stay distinct from an explicit zero or negative value, which the
// resolver forwards without judgement.
type Config struct {
	// SubProtocols are offered during the handshake in the order their
	// leaves were combined.
	SubProtocols []string

	HandshakeTimeoutMillis  *int64
	ForceCloseTimeoutMillis *int64

	// HandleCloseFrames makes the engine answer and consume close frames
	// itself. When false, close frames reach the Handler.
	HandleCloseFrames bool

	// DropPongFrames makes the engine discard pong frames. When false,
	// pong frames reach the Handler.
	DropPongFrames bool

	// CloseFrameOnClosure, when set, is the close frame the engine sends
	// on normal closure instead of echoing the peer's code.
	CloseFrameOnClosure *CloseStatus

	// CheckPathPrefix and Path are fixed by resolution: prefix checking is
	// always on and the path is always empty. Real path routing belongs to
	// whatever mux sits in front of the Server.
	CheckPathPrefix bool
	Path            string
}
