package socket

import "time"

// A Descriptor is an immutable description of how the server side of a
// websocket connection should behave: which sub-protocols to offer, how long
// the opening handshake may take, whether close and pong frames are consumed
// by the engine or handed to the application, and which close frame to send
// on normal closure.
//
// Descriptors are built from the leaf constructors below and combined with
// Combine. Combination is associative; when two leaves set the same
// single-valued field, the one visited later (left to right) wins, while
// sub-protocols accumulate in order. A Descriptor carries no resources and
// is safe to share between goroutines.
type Descriptor interface {
	isDescriptor()
}

type defaultDescriptor struct{}

type subProtocol struct{ name string }

type handshakeTimeout struct{ d time.Duration }

type forceCloseTimeout struct{ d time.Duration }

type forwardCloseFrames struct{}

type forwardPongFrames struct{}

// closeWithStatus and closeWithCode are the two spellings of the same
// intent; both resolve into Config.CloseFrameOnClosure.
type closeWithStatus struct{ status CloseStatus }

type closeWithCode struct {
	code   int
	reason string
}

type concat struct{ left, right Descriptor }

func (defaultDescriptor) isDescriptor()  {}
func (subProtocol) isDescriptor()        {}
func (handshakeTimeout) isDescriptor()   {}
func (forceCloseTimeout) isDescriptor()  {}
func (forwardCloseFrames) isDescriptor() {}
func (forwardPongFrames) isDescriptor()  {}
func (closeWithStatus) isDescriptor()    {}
func (closeWithCode) isDescriptor()      {}
func (concat) isDescriptor()             {}

var (
	// Default contributes nothing; it is the identity of Combine and the
	// natural starting point for callers with no customization.
	Default Descriptor = defaultDescriptor{}

	// ForwardCloseFrames disables automatic close-frame handling: close
	// frames are handed to the Handler instead of being answered by the
	// engine.
	ForwardCloseFrames Descriptor = forwardCloseFrames{}

	// ForwardPongFrames disables automatic pong dropping: pong frames are
	// handed to the Handler instead of being discarded.
	ForwardPongFrames Descriptor = forwardPongFrames{}
)

// SubProtocol requests the named websocket sub-protocol during the opening
// handshake. The name is not validated; it is offered to the peer verbatim.
// Combining several SubProtocol leaves offers all of them, in order.
func SubProtocol(name string) Descriptor { return subProtocol{name} }

// HandshakeTimeout bounds the opening handshake. The duration is forwarded
// as-is; zero and negative values are a concern of the handshake engine.
func HandshakeTimeout(d time.Duration) Descriptor { return handshakeTimeout{d} }

// ForceCloseTimeout bounds how long the engine waits for the peer's close
// reply after a server-initiated close before dropping the connection.
func ForceCloseTimeout(d time.Duration) Descriptor { return forceCloseTimeout{d} }

// CloseFrameStatus sets the close frame sent on normal closure from a
// symbolic status.
func CloseFrameStatus(status CloseStatus) Descriptor { return closeWithStatus{status} }

// CloseFrame sets the close frame sent on normal closure from a raw code
// and reason. Neither is validated.
func CloseFrame(code int, reason string) Descriptor { return closeWithCode{code, reason} }

// Combine composes two descriptors. It always allocates a new node and
// never inspects or simplifies its operands; resolution order, not tree
// shape, is what gives Combine its associativity.
func Combine(a, b Descriptor) Descriptor { return concat{a, b} }

// Join left-folds Combine over its arguments. Join() is Default.
func Join(ds ...Descriptor) Descriptor {
	out := Default
	for _, d := range ds {
		out = Combine(out, d)
	}
	return out
}
